package usecase

import (
	"context"
	"math"
	"os"

	"github.com/rs/zerolog"

	"fraudforge/internal/domain/models"
	"fraudforge/internal/metadata"
	"fraudforge/internal/services/dirty"
	"fraudforge/internal/services/fit"
	"fraudforge/internal/services/scenario"
	"fraudforge/internal/services/synth"
	"fraudforge/internal/writer"
	"fraudforge/pkg/config"
	"fraudforge/pkg/errs"
	"fraudforge/pkg/sampling"
)

// Random stream ids per component, spawned off the master seed so each
// scenario consumes an independent sequence.
const (
	streamBaseline = iota
	streamSimpson
	streamCollider
	streamInjector
	streamFit
)

// Columns the synthesizer must never rewrite during calibration.
var synthKeyCols = []string{
	"transaction_id", "is_fraud", "fraud_type",
	"is_causal_fraud", "scenario", models.AliasCausalColumn,
}

// scenarioState tracks one scenario's progress through the chunk loop.
type scenarioState struct {
	scenario  scenario.Scenario
	remaining int
	src       *sampling.Source
}

// TransactionGenerator orchestrates one dataset generation run from
// calibration through writing the metadata sidecar.
type TransactionGenerator struct {
	cfg    *config.Generator
	log    zerolog.Logger
	writer writer.Writer
}

// New creates a generator for the given configuration. The configuration must
// already be finished.
func New(cfg *config.Generator, log zerolog.Logger) *TransactionGenerator {
	return &TransactionGenerator{cfg: cfg, log: log}
}

// NewWithWriter creates a generator writing into the supplied sink instead of
// the configured output artifact.
func NewWithWriter(cfg *config.Generator, log zerolog.Logger, w writer.Writer) *TransactionGenerator {
	return &TransactionGenerator{cfg: cfg, log: log, writer: w}
}

// Run generates the dataset and returns the finalized metadata document.
func (g *TransactionGenerator) Run(ctx context.Context) (map[string]any, error) {
	cfg := g.cfg
	seed := cfg.EffectiveSeed()

	fitProfile, err := g.maybeCalibrate(cfg, seed)
	if err != nil {
		return nil, err
	}

	w := g.writer
	if w == nil {
		if w, err = writer.New(cfg.Output, g.log); err != nil {
			return nil, err
		}
	}

	var dpEpsilon *float64
	if cfg.ReferenceFit != nil {
		dpEpsilon = cfg.ReferenceFit.DPEpsilon
	}
	synthesizer, synthInfo, err := synth.Create(
		cfg.SynthBackend, cfg.SynthCalibrateCols, cfg.SynthConditionCols, dpEpsilon)
	if err != nil {
		return nil, err
	}

	collector := metadata.NewCollector(cfg)
	if fitProfile != nil {
		collector.SetFitProfile(fitProfile.Map())
	}
	if cfg.CausalFraud {
		collector.RegisterCausalDescription(scenario.SimpsonName, (&scenario.Simpson{}).Description())
		collector.RegisterCausalDescription(scenario.ColliderName, (&scenario.Collider{}).Description())
	}

	totalRecords := cfg.Records
	fraudTotal := int(math.Round(float64(cfg.Records) * cfg.FraudRate))
	causalTotal := 0
	if cfg.CausalFraud {
		causalTotal = int(math.Round(float64(cfg.Records) * cfg.CausalFraudRate))
	}
	baselineRows := max(totalRecords-causalTotal, 0)
	baselineFraud := max(fraudTotal-causalTotal, 0)
	simpsonRows := causalTotal / 2
	colliderRows := causalTotal - simpsonRows

	entries := []*scenarioState{
		{
			scenario: scenario.NewBaseline(scenario.Targets{
				TotalRows: baselineRows,
				FraudRows: baselineFraud,
			}),
			remaining: baselineRows,
			src:       sampling.Spawn(seed, streamBaseline),
		},
	}
	if cfg.CausalFraud && causalTotal > 0 {
		entries = append(entries,
			&scenarioState{
				scenario: scenario.NewSimpson(scenario.Targets{
					TotalRows:  simpsonRows,
					FraudRows:  simpsonRows,
					CausalRows: simpsonRows,
				}),
				remaining: simpsonRows,
				src:       sampling.Spawn(seed, streamSimpson),
			},
			&scenarioState{
				scenario: scenario.NewCollider(scenario.Targets{
					TotalRows:  colliderRows,
					FraudRows:  colliderRows,
					CausalRows: colliderRows,
				}),
				remaining: colliderRows,
				src:       sampling.Spawn(seed, streamCollider),
			},
		)
	}

	injector, err := dirty.New(cfg.DataQuality)
	if err != nil {
		return nil, err
	}
	injectorSrc := sampling.Spawn(seed, streamInjector)

	g.log.Info().
		Int("records", totalRecords).
		Int("fraud_total", fraudTotal).
		Int("causal_total", causalTotal).
		Uint64("seed", seed).
		Msg("generation started")

	generated := 0
	for generated < totalRecords {
		if err := ctx.Err(); err != nil {
			return nil, errs.Generationf("generation interrupted").WithError(err)
		}
		chunkSize := min(cfg.Output.ChunkSize, totalRecords-generated)
		chunk := make([]*models.Record, 0, chunkSize)
		for _, entry := range entries {
			if len(chunk) >= chunkSize {
				break
			}
			if entry.remaining <= 0 {
				continue
			}
			take := min(entry.remaining, chunkSize-len(chunk))
			rows, err := entry.scenario.Generate(take, entry.src, cfg)
			if err != nil {
				return nil, err
			}
			entry.remaining -= take
			chunk = append(chunk, rows...)
		}
		if len(chunk) == 0 {
			break
		}

		if len(cfg.SynthCalibrateCols) > 0 {
			if err := g.calibrateChunk(synthesizer, chunk); err != nil {
				return nil, err
			}
		}

		issues := map[string]int{}
		if cfg.DataQuality.Enabled {
			issues = injector.Apply(chunk, injectorSrc)
		}
		collector.Update(chunk, issues)
		if err := w.Write(ctx, chunk); err != nil {
			return nil, err
		}
		generated += len(chunk)
	}

	collector.SetSynthInfo(synthInfo.ToMetadata())
	doc := collector.Finalize()
	if err := w.Finalize(ctx, doc); err != nil {
		return nil, err
	}
	g.log.Info().Int("generated", generated).Msg("generation finished")
	return doc, nil
}

// calibrateChunk runs synthesizer calibration, per condition group when
// condition columns are configured.
func (g *TransactionGenerator) calibrateChunk(s synth.Synthesizer, chunk []*models.Record) error {
	cols := g.cfg.SynthCalibrateCols
	condition := g.cfg.SynthConditionCols
	if len(condition) == 0 {
		return s.CalibrateColumns(chunk, cols, synthKeyCols)
	}

	groups := make(map[string][]*models.Record)
	order := make([]string, 0)
	for _, r := range chunk {
		key := ""
		for _, col := range condition {
			v, _ := r.GetString(col)
			key += v + "\x00"
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], r)
	}
	for _, key := range order {
		if err := s.CalibrateColumns(groups[key], cols, synthKeyCols); err != nil {
			return err
		}
	}
	return nil
}

// maybeCalibrate profiles the reference dataset when one is configured and
// folds the profile into unset generator settings.
func (g *TransactionGenerator) maybeCalibrate(cfg *config.Generator, seed uint64) (*fit.Profile, error) {
	if cfg.ReferenceFit == nil || cfg.ReferenceFit.FitFromPath == "" {
		return nil, nil
	}
	path := cfg.ReferenceFit.FitFromPath
	if _, err := os.Stat(path); err != nil {
		return nil, errs.Generationf("reference dataset not found at %s", path).WithError(err)
	}
	rows, err := writer.ReadReference(path)
	if err != nil {
		return nil, err
	}

	profiler := fit.NewProfiler(*cfg.ReferenceFit)
	profile, err := profiler.Fit(rows, sampling.Spawn(seed, streamFit))
	if err != nil {
		return nil, err
	}
	if (fit.Calibrator{}).Calibrate(profile, cfg) {
		if err := cfg.Finish(); err != nil {
			return nil, err
		}
	}
	g.log.Info().Str("path", path).Int("rows", len(rows)).Msg("reference profile applied")
	return profile, nil
}
