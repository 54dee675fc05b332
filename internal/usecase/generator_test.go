package usecase

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fraudforge/internal/domain/models"
	"fraudforge/internal/services/scenario"
	"fraudforge/internal/writer"
	"fraudforge/pkg/config"
)

type memoryWriter struct {
	rows      []*models.Record
	chunks    int
	metadata  map[string]any
	finalized bool
}

func (m *memoryWriter) Write(_ context.Context, rows []*models.Record) error {
	m.rows = append(m.rows, rows...)
	m.chunks++
	return nil
}

func (m *memoryWriter) Finalize(_ context.Context, metadata map[string]any) error {
	m.metadata = metadata
	m.finalized = true
	return nil
}

var _ writer.Writer = (*memoryWriter)(nil)

func generatorConfig(t *testing.T, mutate func(*config.Generator)) *config.Generator {
	t.Helper()
	seed := int64(123)
	cfg := &config.Generator{
		Records: 200,
		Seed:    &seed,
		AgeDist: map[string]float64{"A18_25": 0.4, "A26_35": 0.6},
		Output:  config.Output{Outdir: t.TempDir(), ChunkSize: 64},
	}
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, cfg.Finish())
	return cfg
}

func TestRunCausalScenarioMix(t *testing.T) {
	cfg := generatorConfig(t, func(c *config.Generator) {
		c.FraudRate = 0.08
		c.CausalFraud = true
		c.CausalFraudRate = 0.02
	})
	sink := &memoryWriter{}
	doc, err := NewWithWriter(cfg, zerolog.Nop(), sink).Run(context.Background())
	require.NoError(t, err)
	require.True(t, sink.finalized)
	require.Len(t, sink.rows, 200)

	fraud, causal, dirty := 0, 0, 0
	byScenario := map[string]int{}
	for _, r := range sink.rows {
		if r.IsFraud {
			fraud++
		}
		if r.IsCausalFraud {
			causal++
			assert.True(t, r.IsFraud)
		}
		if r.IsDirty {
			dirty++
		}
		assert.Equal(t, r.IsCausalFraud, r.AliasCausal)
		byScenario[r.Scenario]++
	}

	// records=200, fraud_rate=0.08, causal_fraud_rate=0.02: 16 fraud rows of
	// which 4 are causal, split 2/2 between the causal scenarios.
	assert.Equal(t, 16, fraud)
	assert.Equal(t, 4, causal)
	assert.Equal(t, 0, dirty)
	assert.Equal(t, 196, byScenario[scenario.BaselineName])
	assert.Equal(t, 2, byScenario[scenario.SimpsonName])
	assert.Equal(t, 2, byScenario[scenario.ColliderName])

	counts := doc["counts"].(map[string]any)
	assert.Equal(t, 200, counts["total_records"])
	assert.Equal(t, 16, counts["fraud_total"])
	assert.Equal(t, 184, counts["non_fraud"])

	causalMeta := doc["causal"].(map[string]any)
	assert.Equal(t, 4, causalMeta["causal_fraud_count"])
	scenarios := causalMeta["scenarios"].(map[string]any)
	require.Contains(t, scenarios, scenario.SimpsonName)
	require.Contains(t, scenarios, scenario.ColliderName)
	simpson := scenarios[scenario.SimpsonName].(map[string]any)
	assert.Equal(t, 2, simpson["count"])
	assert.NotEmpty(t, simpson["description"])
}

func TestRunDirtyInjection(t *testing.T) {
	cfg := generatorConfig(t, func(c *config.Generator) {
		c.Records = 60
		c.DataQuality.Enabled = true
		c.DataQuality.RowDirtyRate = 0.6
	})
	seed := int64(42)
	cfg.Seed = &seed

	sink := &memoryWriter{}
	doc, err := NewWithWriter(cfg, zerolog.Nop(), sink).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, sink.rows, 60)

	dirty := 0
	for _, r := range sink.rows {
		if r.IsDirty {
			dirty++
			assert.NotEmpty(t, r.DirtyIssues)
		}
	}
	assert.Greater(t, dirty, 0)

	dq := doc["data_quality"].(map[string]any)
	assert.Equal(t, dirty, dq["dirty_rows"])
	assert.Greater(t, dq["dirty_share"].(float64), 0.0)
	assert.NotEmpty(t, dq["issues_by_type"].(map[string]int))
}

func TestRunChunking(t *testing.T) {
	cfg := generatorConfig(t, func(c *config.Generator) {
		c.Records = 150
		c.Output.ChunkSize = 40
	})

	sink := &memoryWriter{}
	_, err := NewWithWriter(cfg, zerolog.Nop(), sink).Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, sink.rows, 150)
	assert.Equal(t, 4, sink.chunks)
}

func TestRunDeterministicWithSeed(t *testing.T) {
	run := func() []*models.Record {
		cfg := generatorConfig(t, func(c *config.Generator) {
			c.Records = 80
			c.FraudRate = 0.1
			c.CausalFraud = true
			c.CausalFraudRate = 0.05
		})
		sink := &memoryWriter{}
		_, err := NewWithWriter(cfg, zerolog.Nop(), sink).Run(context.Background())
		require.NoError(t, err)
		return sink.rows
	}

	a, b := run(), run()
	require.Len(t, b, len(a))
	for i := range a {
		assert.Equal(t, *a[i], *b[i])
	}
}

func TestRunWithoutCausal(t *testing.T) {
	cfg := generatorConfig(t, func(c *config.Generator) {
		c.Records = 100
		c.FraudRate = 0.05
	})

	sink := &memoryWriter{}
	doc, err := NewWithWriter(cfg, zerolog.Nop(), sink).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, sink.rows, 100)

	for _, r := range sink.rows {
		assert.Equal(t, scenario.BaselineName, r.Scenario)
		assert.False(t, r.IsCausalFraud)
	}
	causalMeta := doc["causal"].(map[string]any)
	assert.Equal(t, 0, causalMeta["causal_fraud_count"])
	assert.Empty(t, causalMeta["scenarios"].(map[string]any))
}

func TestRunSynthCalibration(t *testing.T) {
	cfg := generatorConfig(t, func(c *config.Generator) {
		c.Records = 50
		c.SynthBackend = "faker"
		c.SynthCalibrateCols = []string{"ip", "merchant_id"}
	})

	sink := &memoryWriter{}
	doc, err := NewWithWriter(cfg, zerolog.Nop(), sink).Run(context.Background())
	require.NoError(t, err)

	for _, r := range sink.rows {
		assert.Regexp(t, `^MCH-\d{8}$`, r.MerchantID)
	}
	synthMeta := doc["synth"].(map[string]any)
	assert.Equal(t, "faker", synthMeta["backend"])
	assert.Equal(t, []string{"ip", "merchant_id"}, synthMeta["calibrate_cols"])
}

func TestRunUnknownSynthBackend(t *testing.T) {
	cfg := generatorConfig(t, func(c *config.Generator) {
		c.SynthBackend = "sdv"
	})

	sink := &memoryWriter{}
	_, err := NewWithWriter(cfg, zerolog.Nop(), sink).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sdv")
}

func TestRunReferenceFitCalibration(t *testing.T) {
	// First run produces a reference dataset on disk.
	refDir := t.TempDir()
	refCfg := generatorConfig(t, func(c *config.Generator) {
		c.Records = 120
		c.FraudRate = 0.1
		c.Output = config.Output{Format: "csv", Outdir: refDir, ChunkSize: 50}
	})
	refGen := New(refCfg, zerolog.Nop())
	_, err := refGen.Run(context.Background())
	require.NoError(t, err)

	// Second run profiles it and fills unset distributions.
	cfg := generatorConfig(t, func(c *config.Generator) {
		c.Records = 40
		c.ReferenceFit = &config.ReferenceFit{
			FitFromPath: refDir + "/" + writer.CSVFilename,
		}
	})
	sink := &memoryWriter{}
	doc, err := NewWithWriter(cfg, zerolog.Nop(), sink).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, sink.rows, 40)

	require.Contains(t, doc, "fit_profile")
	profile := doc["fit_profile"].(map[string]any)
	assert.Contains(t, profile, "hour_hist")
	require.NotNil(t, cfg.TimeModel)
	assert.Len(t, cfg.TimeModel.HourHist, 24)
	assert.NotNil(t, cfg.AmountModel)
}

func TestRunMissingReferenceDataset(t *testing.T) {
	cfg := generatorConfig(t, func(c *config.Generator) {
		c.ReferenceFit = &config.ReferenceFit{FitFromPath: "/does/not/exist.csv"}
	})

	sink := &memoryWriter{}
	_, err := NewWithWriter(cfg, zerolog.Nop(), sink).Run(context.Background())
	require.Error(t, err)
}
