// Package fit profiles reference datasets and calibrates generator
// configuration from the extracted profile.
package fit

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"fraudforge/internal/domain/models"
	"fraudforge/pkg/config"
	"fraudforge/pkg/errs"
	"fraudforge/pkg/sampling"
)

// OtherBucket absorbs the share of categories truncated by fit_max_categories.
const OtherBucket = "__OTHER__"

// Profile summarizes a reference dataset.
type Profile struct {
	AgeDist              map[string]float64 `json:"age_dist"`
	ChannelDist          map[string]float64 `json:"channel_dist"`
	RegionDist           map[string]float64 `json:"region_dist"`
	MerchantCategoryDist map[string]float64 `json:"merchant_category_dist"`
	FraudRate            float64            `json:"fraud_rate"`
	FraudTypeDist        map[string]float64 `json:"fraud_type_dist"`
	AmountLogMean        float64            `json:"amount_log_mean"`
	AmountLogSigma       float64            `json:"amount_log_sigma"`
	HourHist             []float64          `json:"hour_hist"`
}

// Profiler extracts a Profile from reference transactions.
type Profiler struct {
	cfg config.ReferenceFit
}

func NewProfiler(cfg config.ReferenceFit) *Profiler {
	return &Profiler{cfg: cfg}
}

// Fit profiles the reference rows. With dp_epsilon set, Laplace noise of
// scale 1/epsilon is added to every category and hour count before
// normalization.
func (p *Profiler) Fit(rows []*models.Record, src *sampling.Source) (*Profile, error) {
	if len(rows) == 0 {
		return nil, errs.Configurationf("reference dataset must not be empty")
	}

	ageDist := p.topK(countBy(rows, func(r *models.Record) string { return r.AgeBand }), src)
	channelDist := p.topK(countBy(rows, func(r *models.Record) string { return r.Channel }), src)
	regionDist := p.topK(countBy(rows, func(r *models.Record) string { return r.Region }), src)
	merchantDist := p.topK(countBy(rows, func(r *models.Record) string { return r.MerchantCategory }), src)

	fraudCount := 0
	fraudTypes := map[string]float64{}
	logAmounts := make([]float64, len(rows))
	hourCounts := make([]float64, 24)
	for i, r := range rows {
		if r.IsFraud {
			fraudCount++
			if r.FraudType != "" {
				fraudTypes[r.FraudType]++
			}
		}
		logAmounts[i] = math.Log(math.Max(r.Amount, 0.01))
		hourCounts[r.EventTime.Hour()]++
	}
	fraudRate := float64(fraudCount) / float64(len(rows))

	fraudTypeDist := map[string]float64{}
	if fraudRate > 0 {
		fraudTypeDist = p.topK(fraudTypes, src)
	}

	logMean := stat.Mean(logAmounts, nil)
	variance := 0.0
	for _, v := range logAmounts {
		d := v - logMean
		variance += d * d
	}
	logSigma := math.Sqrt(variance / float64(len(logAmounts)))

	if p.cfg.DPEpsilon != nil {
		scale := 1.0 / *p.cfg.DPEpsilon
		for h := range hourCounts {
			hourCounts[h] = math.Max(hourCounts[h]+src.Laplace(scale), 0)
		}
	}
	total := 0.0
	for _, v := range hourCounts {
		total += v
	}
	if total <= 0 {
		total = 1.0
	}
	hourHist := make([]float64, 24)
	for h, v := range hourCounts {
		hourHist[h] = v / total
	}

	return &Profile{
		AgeDist:              ageDist,
		ChannelDist:          channelDist,
		RegionDist:           regionDist,
		MerchantCategoryDist: merchantDist,
		FraudRate:            fraudRate,
		FraudTypeDist:        fraudTypeDist,
		AmountLogMean:        logMean,
		AmountLogSigma:       logSigma,
		HourHist:             hourHist,
	}, nil
}

// topK keeps the fit_max_categories most frequent categories, applies the
// optional Laplace noise and normalizes. Any positive residual share goes to
// the __OTHER__ bucket.
func (p *Profiler) topK(counts map[string]float64, src *sampling.Source) map[string]float64 {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > p.cfg.FitMaxCategories {
		keys = keys[:p.cfg.FitMaxCategories]
	}

	kept := make(map[string]float64, len(keys))
	total := 0.0
	for _, k := range keys {
		v := counts[k]
		if p.cfg.DPEpsilon != nil {
			v = math.Max(v+src.Laplace(1.0 / *p.cfg.DPEpsilon), 0)
		}
		kept[k] = v
		total += v
	}
	if total <= 0 {
		return map[string]float64{}
	}

	out := make(map[string]float64, len(kept)+1)
	sum := 0.0
	for k, v := range kept {
		out[k] = v / total
		sum += out[k]
	}
	if other := 1.0 - sum; other > 0 {
		out[OtherBucket] = other
	}
	return out
}

func countBy(rows []*models.Record, key func(*models.Record) string) map[string]float64 {
	counts := make(map[string]float64)
	for _, r := range rows {
		counts[key(r)]++
	}
	return counts
}

// Calibrator copies profile insights into generator settings the operator
// left unset. Explicit settings always win.
type Calibrator struct{}

// Calibrate mutates cfg in place and reports whether anything changed. The
// caller re-runs Finish afterwards to renormalize.
func (Calibrator) Calibrate(profile *Profile, cfg *config.Generator) bool {
	changed := false
	if cfg.ChannelDist == nil {
		cfg.ChannelDist = dropOther(profile.ChannelDist)
		changed = true
	}
	if cfg.RegionDist == nil {
		cfg.RegionDist = dropOther(profile.RegionDist)
		changed = true
	}
	if cfg.MerchantCategoryDist == nil {
		cfg.MerchantCategoryDist = dropOther(profile.MerchantCategoryDist)
		changed = true
	}
	if cfg.AmountModel == nil {
		cfg.AmountModel = &config.AmountModel{
			LogMean:  profile.AmountLogMean,
			LogSigma: profile.AmountLogSigma,
		}
		changed = true
	}
	if cfg.TimeModel == nil {
		hist := make([]float64, len(profile.HourHist))
		copy(hist, profile.HourHist)
		cfg.TimeModel = &config.TimeModel{HourHist: hist}
		changed = true
	}
	return changed
}

// dropOther removes the truncation bucket so calibrated distributions only
// carry real category values. Renormalization happens in config.Finish.
func dropOther(dist map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(dist))
	for k, v := range dist {
		if k == OtherBucket {
			continue
		}
		out[k] = v
	}
	return out
}

// Map renders the profile for the metadata sidecar.
func (p *Profile) Map() map[string]any {
	return map[string]any{
		"age_dist":               p.AgeDist,
		"channel_dist":           p.ChannelDist,
		"region_dist":            p.RegionDist,
		"merchant_category_dist": p.MerchantCategoryDist,
		"fraud_rate":             p.FraudRate,
		"fraud_type_dist":        p.FraudTypeDist,
		"amount_log_mean":        p.AmountLogMean,
		"amount_log_sigma":       p.AmountLogSigma,
		"hour_hist":              p.HourHist,
	}
}
