// Package scenario implements the generation strategies that overlay fraud
// and causal labels on synthesized transaction batches.
package scenario

import (
	"fmt"
	"math"
	"time"

	"fraudforge/internal/domain/models"
	"fraudforge/pkg/config"
	"fraudforge/pkg/sampling"
)

var defaultChannelDist = map[string]float64{
	models.ChannelApp:  0.35,
	models.ChannelWeb:  0.35,
	models.ChannelATM:  0.10,
	models.ChannelPOS:  0.15,
	models.ChannelWire: 0.05,
}

var defaultRegionDist = map[string]float64{
	models.RegionNorth: 0.25,
	models.RegionSouth: 0.25,
	models.RegionEast:  0.25,
	models.RegionWest:  0.25,
}

var defaultMerchantCatDist = map[string]float64{
	"grocery":         0.20,
	"electronics":     0.15,
	"travel":          0.10,
	"restaurant":      0.20,
	"online_services": 0.15,
	"fashion":         0.20,
}

var osOptions = []string{"iOS", "Android", "Windows", "macOS", "Linux"}

const (
	defaultLogMean  = 3.5
	defaultLogSigma = 0.8
)

// Targets holds the exact row/fraud/causal quotas assigned to one scenario
// instance for its entire run.
type Targets struct {
	TotalRows  int
	FraudRows  int
	CausalRows int
}

// Scenario generates labeled batches while tracking its remaining quotas
// across repeated calls.
type Scenario interface {
	Name() string
	Description() string
	Generate(n int, src *sampling.Source, cfg *config.Generator) ([]*models.Record, error)
}

// core carries the quota state and base-row synthesis shared by all
// scenarios. Quotas are monotonically decremented, never replenished.
type core struct {
	name            string
	remainingFraud  int
	remainingCausal int
	samp            *baseSamplers
}

type baseSamplers struct {
	age       *sampling.Weighted
	channel   *sampling.Weighted
	region    *sampling.Weighted
	merchant  *sampling.Weighted
	fraudType *sampling.Weighted
	hour      *sampling.WeightedIndex
	logMean   float64
	logSigma  float64
}

func newCore(name string, t Targets) core {
	return core{name: name, remainingFraud: t.FraudRows, remainingCausal: t.CausalRows}
}

func (c *core) ensureSamplers(cfg *config.Generator) error {
	if c.samp != nil {
		return nil
	}
	s := &baseSamplers{logMean: defaultLogMean, logSigma: defaultLogSigma}
	if cfg.AmountModel != nil {
		s.logMean = cfg.AmountModel.LogMean
		s.logSigma = cfg.AmountModel.LogSigma
	}

	var err error
	if s.age, err = sampling.NewWeighted(cfg.AgeDist); err != nil {
		return err
	}
	if s.channel, err = sampling.NewWeighted(orDefault(cfg.ChannelDist, defaultChannelDist)); err != nil {
		return err
	}
	if s.region, err = sampling.NewWeighted(orDefault(cfg.RegionDist, defaultRegionDist)); err != nil {
		return err
	}
	if s.merchant, err = sampling.NewWeighted(orDefault(cfg.MerchantCategoryDist, defaultMerchantCatDist)); err != nil {
		return err
	}
	if s.fraudType, err = sampling.NewWeighted(cfg.FraudTypeDist); err != nil {
		return err
	}
	hist := make([]float64, 24)
	if cfg.TimeModel != nil {
		copy(hist, cfg.TimeModel.HourHist)
	} else {
		for i := range hist {
			hist[i] = 1.0 / 24
		}
	}
	if s.hour, err = sampling.NewWeightedIndex(hist); err != nil {
		return err
	}
	c.samp = s
	return nil
}

func orDefault(dist, fallback map[string]float64) map[string]float64 {
	if dist != nil {
		return dist
	}
	return fallback
}

// baseRows synthesizes n structurally complete rows with no fraud semantics.
func (c *core) baseRows(n int, src *sampling.Source, cfg *config.Generator) ([]*models.Record, error) {
	if err := c.ensureSamplers(cfg); err != nil {
		return nil, err
	}
	rows := make([]*models.Record, n)
	for i := 0; i < n; i++ {
		channel := c.samp.channel.Draw(src)
		amount := round2(src.LogNormal(c.samp.logMean, c.samp.logSigma))
		if amount < 0.01 {
			amount = 0.01
		}

		dayOffset := src.IntN(cfg.Days)
		hour := c.samp.hour.Draw(src)
		minute := src.IntN(60)
		second := src.IntN(60)
		eventTime := cfg.StartDate.
			AddDate(0, 0, dayOffset).
			Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute + time.Duration(second)*time.Second)

		avg7d := round2(amount * src.UniformRange(0.6, 1.4))
		if avg7d < 1.0 {
			avg7d = 1.0
		}

		rows[i] = &models.Record{
			TransactionID:      TransactionID(src),
			EventTime:          eventTime,
			CustomerID:         numericID("CUST", src),
			AccountID:          numericID("ACCT", src),
			AgeBand:            c.samp.age.Draw(src),
			Region:             c.samp.region.Draw(src),
			AccountTenureDays:  30 + src.IntN(3620),
			Channel:            channel,
			DeviceID:           numericID("DEV", src),
			DeviceType:         models.DeviceTypeFor(channel),
			OS:                 osOptions[src.IntN(len(osOptions))],
			AppVersion:         fmt.Sprintf("%d.%d.%d", 1+src.IntN(5), src.IntN(10), src.IntN(10)),
			IP:                 randomIP(src),
			MerchantID:         numericID("MCH", src),
			MerchantCategory:   c.samp.merchant.Draw(src),
			MerchantCountry:    "US",
			Amount:             amount,
			Currency:           models.CurrencyUSD,
			TxnsLast24h:        src.Poisson(2.0),
			AvgAmount7d:        avg7d,
			ChargebackCount90d: src.Poisson(0.2),
			DirtyIssues:        []string{},
		}
	}
	return rows, nil
}

// drawExactFlags marks exactly min(remaining, n) positions chosen uniformly
// without replacement and decrements the corresponding quota.
func (c *core) drawExactFlags(n int, src *sampling.Source, causal bool) []bool {
	remaining := c.remainingFraud
	if causal {
		remaining = c.remainingCausal
	}
	flags := make([]bool, n)
	if remaining <= 0 {
		return flags
	}
	take := min(n, remaining)
	for _, idx := range src.Perm(n)[:take] {
		flags[idx] = true
	}
	if causal {
		c.remainingCausal -= take
	} else {
		c.remainingFraud -= take
	}
	return flags
}

// reserveFraud claims up to n rows of the fraud quota (and, for causal
// scenarios, the same amount of the causal quota) and returns the claim.
func (c *core) reserveFraud(n int, alsoCausal bool) int {
	take := min(n, c.remainingFraud)
	if take < 0 {
		take = 0
	}
	c.remainingFraud -= take
	if alsoCausal {
		c.remainingCausal -= min(take, c.remainingCausal)
	}
	return take
}

// RemainingFraud exposes the outstanding fraud quota.
func (c *core) RemainingFraud() int { return c.remainingFraud }

// assignFraudTypes samples a fraud type for every flagged row, conditioned
// only on being flagged.
func (c *core) assignFraudTypes(rows []*models.Record, flags []bool, src *sampling.Source) {
	for i, r := range rows {
		if flags[i] {
			r.FraudType = c.samp.fraudType.Draw(src)
		}
	}
}

func (c *core) finishLabels(rows []*models.Record) {
	for _, r := range rows {
		r.Scenario = c.name
		r.SyncAlias()
	}
}

// TransactionID produces a 4-group hex token. Uniqueness is probabilistic.
func TransactionID(src *sampling.Source) string {
	return fmt.Sprintf("%08x-%08x-%08x-%08x", src.Uint32(), src.Uint32(), src.Uint32(), src.Uint32())
}

func numericID(prefix string, src *sampling.Source) string {
	return fmt.Sprintf("%s-%010d", prefix, 1+src.Int64N(9_999_999_998))
}

func randomIP(src *sampling.Source) string {
	return fmt.Sprintf("%d.%d.%d.%d", 1+src.IntN(254), 1+src.IntN(254), 1+src.IntN(254), 1+src.IntN(254))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
