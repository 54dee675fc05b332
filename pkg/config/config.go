package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"fraudforge/internal/domain/models"
	"fraudforge/pkg/errs"
	"fraudforge/pkg/sampling"
)

var validate = validator.New()

// Data quality issue types.
const (
	IssueMissingValues = "MISSING_VALUES"
	IssueTyposNoise    = "TYPOS_NOISE"
	IssueOutlierAmount = "OUTLIER_AMOUNT"
	IssueDuplicateRows = "DUPLICATE_ROWS"
	IssueSwapFields    = "SWAP_FIELDS"
	IssueDateJitter    = "DATE_JITTER"
)

// IssueTypes lists all supported data quality issues.
func IssueTypes() []string {
	return []string{
		IssueMissingValues, IssueTyposNoise, IssueOutlierAmount,
		IssueDuplicateRows, IssueSwapFields, IssueDateJitter,
	}
}

// Output configures the streaming writer.
type Output struct {
	Format    string  `yaml:"format" json:"format" default:"csv" validate:"oneof=csv json parquet"`
	Outdir    string  `yaml:"outdir" json:"outdir"`
	ChunkSize int     `yaml:"chunk_size" json:"chunk_size" default:"50000" validate:"gte=1"`
	Bucket    *Bucket `yaml:"bucket,omitempty" json:"bucket,omitempty"`
	Kafka     *Kafka  `yaml:"kafka,omitempty" json:"kafka,omitempty"`
}

// Bucket configures artifact export after the run. With an endpoint set the
// artifacts are uploaded to S3-compatible storage, otherwise copied into Dir.
type Bucket struct {
	Endpoint  string `yaml:"endpoint" json:"endpoint"`
	Bucket    string `yaml:"bucket" json:"bucket"`
	Prefix    string `yaml:"prefix" json:"prefix"`
	AccessKey string `yaml:"access_key" json:"-"`
	SecretKey string `yaml:"secret_key" json:"-"`
	UseSSL    bool   `yaml:"use_ssl" json:"use_ssl"`
	Dir       string `yaml:"dir" json:"dir"`
}

// Kafka configures the optional sink that publishes generated rows to a topic.
type Kafka struct {
	Brokers      []string      `yaml:"brokers" json:"brokers"`
	Topic        string        `yaml:"topic" json:"topic"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
}

// DataQuality configures dirty-data injection.
type DataQuality struct {
	Enabled              bool               `yaml:"enabled" json:"enabled"`
	RowDirtyRate         float64            `yaml:"row_dirty_rate" json:"row_dirty_rate" validate:"gte=0,lte=1"`
	IssueDist            map[string]float64 `yaml:"issue_dist" json:"issue_dist"`
	MaxIssuesPerRow      int                `yaml:"max_issues_per_row" json:"max_issues_per_row" default:"2" validate:"gte=1"`
	MissingColsWhitelist []string           `yaml:"missing_cols_whitelist" json:"missing_cols_whitelist,omitempty"`
	TyposColsWhitelist   []string           `yaml:"typos_cols_whitelist" json:"typos_cols_whitelist,omitempty"`
}

// AmountModel holds the log-normal parameters of the transaction amount.
type AmountModel struct {
	LogMean  float64 `yaml:"log_mean" json:"log_mean"`
	LogSigma float64 `yaml:"log_sigma" json:"log_sigma"`
}

// TimeModel holds the 24-bucket hourly timestamp histogram.
type TimeModel struct {
	HourHist []float64 `yaml:"hour_hist" json:"hour_hist"`
}

// ReferenceFit configures profiling of a reference dataset.
type ReferenceFit struct {
	DPEpsilon        *float64 `yaml:"dp_epsilon" json:"dp_epsilon,omitempty" validate:"omitempty,gt=0"`
	FitMaxCategories int      `yaml:"fit_max_categories" json:"fit_max_categories" default:"10" validate:"gte=5"`
	FitFromPath      string   `yaml:"fit_from" json:"fit_from,omitempty"`
	TimeCol          string   `yaml:"time_col" json:"time_col" default:"event_time"`
}

// Generator is the top-level, immutable-after-Normalize configuration for one
// dataset generation run.
type Generator struct {
	Records              int                `yaml:"records" json:"records" validate:"gte=1"`
	Seed                 *int64             `yaml:"seed" json:"seed" validate:"omitempty,gte=0"`
	StartDate            time.Time          `yaml:"start_date" json:"start_date"`
	Days                 int                `yaml:"days" json:"days" default:"7" validate:"gte=1"`
	AgeDist              map[string]float64 `yaml:"age_dist" json:"age_dist" validate:"required"`
	ChannelDist          map[string]float64 `yaml:"channel_dist" json:"channel_dist,omitempty"`
	RegionDist           map[string]float64 `yaml:"region_dist" json:"region_dist,omitempty"`
	MerchantCategoryDist map[string]float64 `yaml:"merchant_category_dist" json:"merchant_category_dist,omitempty"`
	FraudRate            float64            `yaml:"fraud_rate" json:"fraud_rate" default:"0.02" validate:"gte=0,lte=1"`
	FraudTypeDist        map[string]float64 `yaml:"fraud_type_dist" json:"fraud_type_dist"`
	CausalFraud          bool               `yaml:"causal_fraud" json:"causal_fraud"`
	CausalFraudRate      float64            `yaml:"causal_fraud_rate" json:"causal_fraud_rate" validate:"gte=0,lte=1"`
	Output               Output             `yaml:"output" json:"output"`
	DataQuality          DataQuality        `yaml:"data_quality" json:"data_quality"`
	AmountModel          *AmountModel       `yaml:"amount_model" json:"amount_model,omitempty"`
	TimeModel            *TimeModel         `yaml:"time_model" json:"time_model,omitempty"`
	ReferenceFit         *ReferenceFit      `yaml:"reference_fit" json:"reference_fit,omitempty"`
	SynthBackend         string             `yaml:"synth_backend" json:"synth_backend" default:"none"`
	SynthCalibrateCols   []string           `yaml:"synth_calibrate_cols" json:"synth_calibrate_cols,omitempty"`
	SynthConditionCols   []string           `yaml:"synth_condition_cols" json:"synth_condition_cols,omitempty"`
}

// Load reads, defaults, validates and normalizes a YAML configuration file.
func Load(path string) (*Generator, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	c := &Generator{}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, errs.Configurationf("parse config").WithError(err)
	}
	if err := c.Finish(); err != nil {
		return nil, err
	}
	return c, nil
}

// Finish applies declared defaults to zero-valued fields, validates bounds
// and normalizes all distributions in place. Programmatically built configs
// must call it before use.
func (c *Generator) Finish() error {
	if err := defaults.Set(c); err != nil {
		return fmt.Errorf("apply defaults: %w", err)
	}
	if err := validate.Struct(c); err != nil {
		return errs.Configurationf("validate config").WithError(err)
	}
	return c.normalize()
}

func (c *Generator) normalize() error {
	if c.StartDate.IsZero() {
		now := time.Now().UTC()
		c.StartDate = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}

	var err error
	if c.AgeDist, err = normalizeKeyed(c.AgeDist, models.AgeBandValues(), "age_dist"); err != nil {
		return err
	}
	if c.ChannelDist != nil {
		if c.ChannelDist, err = normalizeKeyed(c.ChannelDist, models.ChannelValues(), "channel_dist"); err != nil {
			return err
		}
	}
	if c.RegionDist != nil {
		if c.RegionDist, err = normalizeKeyed(c.RegionDist, models.RegionValues(), "region_dist"); err != nil {
			return err
		}
	}
	if c.MerchantCategoryDist != nil {
		if c.MerchantCategoryDist, err = sampling.Normalize(c.MerchantCategoryDist); err != nil {
			return err
		}
	}
	if len(c.FraudTypeDist) == 0 {
		c.FraudTypeDist = map[string]float64{models.FraudCardNotPresent: 1.0}
	}
	if c.FraudTypeDist, err = normalizeKeyed(c.FraudTypeDist, models.FraudTypeValues(), "fraud_type_dist"); err != nil {
		return err
	}

	if c.CausalFraudRate > c.FraudRate+1e-9 {
		return errs.Configurationf("causal_fraud_rate must be <= fraud_rate")
	}
	if c.AmountModel != nil && c.AmountModel.LogSigma < 0 {
		return errs.Configurationf("amount_model.log_sigma must be non-negative")
	}
	if c.TimeModel != nil {
		if len(c.TimeModel.HourHist) != 24 {
			return errs.Configurationf("time_model.hour_hist must contain 24 values")
		}
		total := 0.0
		for _, v := range c.TimeModel.HourHist {
			if v < 0 {
				return errs.Configurationf("time_model.hour_hist must be non-negative")
			}
			total += v
		}
		if total <= 0 {
			return errs.Configurationf("time_model.hour_hist must sum to a positive value")
		}
		for i, v := range c.TimeModel.HourHist {
			c.TimeModel.HourHist[i] = v / total
		}
	}

	if err := c.normalizeDataQuality(); err != nil {
		return err
	}
	return nil
}

func (c *Generator) normalizeDataQuality() error {
	dq := &c.DataQuality
	if dq.Enabled && len(dq.IssueDist) == 0 {
		dq.IssueDist = make(map[string]float64, len(IssueTypes()))
		for _, issue := range IssueTypes() {
			dq.IssueDist[issue] = 1.0
		}
	}
	if len(dq.IssueDist) == 0 {
		return nil
	}
	norm, err := normalizeKeyed(dq.IssueDist, IssueTypes(), "data_quality.issue_dist")
	if err != nil {
		return err
	}
	dq.IssueDist = norm
	return nil
}

// EffectiveSeed is the master seed used to spawn component random streams.
func (c *Generator) EffectiveSeed() uint64 {
	if c.Seed == nil {
		return 0
	}
	return uint64(*c.Seed)
}

// Resolved renders the fully resolved configuration for lineage metadata.
func (c *Generator) Resolved() map[string]any {
	b, err := json.Marshal(c)
	if err != nil {
		return map[string]any{}
	}
	out := map[string]any{}
	if err := json.Unmarshal(b, &out); err != nil {
		return map[string]any{}
	}
	return out
}

func normalizeKeyed(dist map[string]float64, allowed []string, field string) (map[string]float64, error) {
	set := make(map[string]struct{}, len(allowed))
	for _, k := range allowed {
		set[k] = struct{}{}
	}
	for k := range dist {
		if _, ok := set[k]; !ok {
			return nil, errs.Configurationf("invalid key %q for %s", k, field)
		}
	}
	norm, err := sampling.Normalize(dist)
	if err != nil {
		return nil, errs.Configurationf("%s invalid", field).WithError(err)
	}
	return norm, nil
}
