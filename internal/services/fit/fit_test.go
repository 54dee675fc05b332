package fit

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fraudforge/internal/domain/models"
	"fraudforge/pkg/config"
	"fraudforge/pkg/sampling"
)

func referenceRows(n int) []*models.Record {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]*models.Record, n)
	for i := range rows {
		r := &models.Record{
			EventTime:        base.Add(time.Duration(i) * time.Hour),
			AgeBand:          []string{"A18_25", "A26_35"}[i%2],
			Channel:          []string{"APP", "WEB"}[i%2],
			Region:           []string{"NORTH", "SOUTH"}[i%2],
			MerchantCategory: []string{"grocery", "travel"}[i%2],
			Amount:           20.0 + float64(i%7),
		}
		if i%10 == 0 {
			r.IsFraud = true
			r.FraudType = "CARD_NOT_PRESENT"
		}
		rows[i] = r
	}
	return rows
}

func fitConfig() config.ReferenceFit {
	return config.ReferenceFit{FitMaxCategories: 10, TimeCol: "event_time"}
}

func TestProfilerFit(t *testing.T) {
	p := NewProfiler(fitConfig())
	profile, err := p.Fit(referenceRows(100), sampling.Spawn(0, 0))
	require.NoError(t, err)

	assert.InDelta(t, 0.5, profile.AgeDist["A18_25"], 1e-9)
	assert.InDelta(t, 0.5, profile.ChannelDist["WEB"], 1e-9)
	assert.InDelta(t, 0.1, profile.FraudRate, 1e-9)
	assert.InDelta(t, 1.0, profile.FraudTypeDist["CARD_NOT_PRESENT"], 1e-9)
	assert.Greater(t, profile.AmountLogMean, 0.0)
	assert.GreaterOrEqual(t, profile.AmountLogSigma, 0.0)

	require.Len(t, profile.HourHist, 24)
	total := 0.0
	for _, v := range profile.HourHist {
		assert.GreaterOrEqual(t, v, 0.0)
		total += v
	}
	assert.InDelta(t, 1.0, total, 1e-9)
}

func TestProfilerRejectsEmpty(t *testing.T) {
	p := NewProfiler(fitConfig())
	_, err := p.Fit(nil, sampling.Spawn(0, 0))
	require.Error(t, err)
}

func TestProfilerTruncatesCategories(t *testing.T) {
	rows := referenceRows(100)
	cats := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	for i, r := range rows {
		r.MerchantCategory = cats[i%len(cats)]
	}

	cfg := fitConfig()
	cfg.FitMaxCategories = 5
	profile, err := NewProfiler(cfg).Fit(rows, sampling.Spawn(0, 0))
	require.NoError(t, err)

	withoutOther := 0
	for k := range profile.MerchantCategoryDist {
		if k != OtherBucket {
			withoutOther++
		}
	}
	assert.LessOrEqual(t, withoutOther, 5)
}

func TestProfilerNoFraud(t *testing.T) {
	rows := referenceRows(50)
	for _, r := range rows {
		r.IsFraud = false
		r.FraudType = ""
	}
	profile, err := NewProfiler(fitConfig()).Fit(rows, sampling.Spawn(0, 0))
	require.NoError(t, err)
	assert.Zero(t, profile.FraudRate)
	assert.Empty(t, profile.FraudTypeDist)
}

func TestProfilerDPNoise(t *testing.T) {
	eps := 0.5
	cfg := fitConfig()
	cfg.DPEpsilon = &eps
	profile, err := NewProfiler(cfg).Fit(referenceRows(200), sampling.Spawn(11, 0))
	require.NoError(t, err)

	// Noise perturbs but never breaks normalization.
	total := 0.0
	for _, v := range profile.ChannelDist {
		assert.GreaterOrEqual(t, v, 0.0)
		total += v
	}
	assert.InDelta(t, 1.0, total, 1e-9)

	histTotal := 0.0
	for _, v := range profile.HourHist {
		histTotal += v
	}
	assert.InDelta(t, 1.0, histTotal, 1e-9)
}

func TestProfilerAmountModel(t *testing.T) {
	rows := referenceRows(100)
	for _, r := range rows {
		r.Amount = math.E * math.E // log amount exactly 2
	}
	profile, err := NewProfiler(fitConfig()).Fit(rows, sampling.Spawn(0, 0))
	require.NoError(t, err)
	assert.InDelta(t, 2.0, profile.AmountLogMean, 1e-9)
	assert.InDelta(t, 0.0, profile.AmountLogSigma, 1e-9)
}

func TestCalibratorFillsOnlyUnset(t *testing.T) {
	profile := &Profile{
		ChannelDist:          map[string]float64{"APP": 0.6, "WEB": 0.4},
		RegionDist:           map[string]float64{"NORTH": 1.0},
		MerchantCategoryDist: map[string]float64{"grocery": 0.9, OtherBucket: 0.1},
		AmountLogMean:        2.5,
		AmountLogSigma:       0.4,
		HourHist:             uniformHist(),
	}

	cfg := &config.Generator{
		Records:     10,
		AgeDist:     map[string]float64{"A18_25": 1},
		ChannelDist: map[string]float64{"APP": 1},
		Output:      config.Output{Outdir: "out"},
	}
	require.NoError(t, cfg.Finish())

	changed := (Calibrator{}).Calibrate(profile, cfg)
	require.True(t, changed)
	require.NoError(t, cfg.Finish())

	// Explicit channel dist was kept, the rest was filled in.
	assert.InDelta(t, 1.0, cfg.ChannelDist["APP"], 1e-9)
	assert.InDelta(t, 1.0, cfg.RegionDist["NORTH"], 1e-9)
	assert.NotContains(t, cfg.MerchantCategoryDist, OtherBucket)
	assert.InDelta(t, 1.0, cfg.MerchantCategoryDist["grocery"], 1e-9)
	require.NotNil(t, cfg.AmountModel)
	assert.InDelta(t, 2.5, cfg.AmountModel.LogMean, 1e-9)
	require.NotNil(t, cfg.TimeModel)
	assert.Len(t, cfg.TimeModel.HourHist, 24)
}

func TestCalibratorNoOpWhenAllSet(t *testing.T) {
	profile := &Profile{HourHist: uniformHist()}
	cfg := &config.Generator{
		Records:              10,
		AgeDist:              map[string]float64{"A18_25": 1},
		ChannelDist:          map[string]float64{"APP": 1},
		RegionDist:           map[string]float64{"NORTH": 1},
		MerchantCategoryDist: map[string]float64{"grocery": 1},
		AmountModel:          &config.AmountModel{LogMean: 3, LogSigma: 1},
		TimeModel:            &config.TimeModel{HourHist: uniformHist()},
		Output:               config.Output{Outdir: "out"},
	}
	require.NoError(t, cfg.Finish())

	assert.False(t, (Calibrator{}).Calibrate(profile, cfg))
}

func TestProfileMap(t *testing.T) {
	profile, err := NewProfiler(fitConfig()).Fit(referenceRows(60), sampling.Spawn(0, 0))
	require.NoError(t, err)

	m := profile.Map()
	assert.Contains(t, m, "age_dist")
	assert.Contains(t, m, "fraud_rate")
	assert.Contains(t, m, "amount_log_mean")
	assert.Contains(t, m, "hour_hist")
}

func uniformHist() []float64 {
	hist := make([]float64, 24)
	for i := range hist {
		hist[i] = 1.0 / 24
	}
	return hist
}
