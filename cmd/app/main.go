package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"fraudforge/internal/services/fit"
	"fraudforge/internal/usecase"
	"fraudforge/internal/writer"
	"fraudforge/pkg/config"
	"fraudforge/pkg/logger"
	"fraudforge/pkg/sampling"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "generate":
		err = runGenerate(os.Args[2:])
	case "fit-profile":
		err = runFitProfile(os.Args[2:])
	case "-h", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: fraudforge <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  generate     generate synthetic transactions and metadata")
	fmt.Fprintln(os.Stderr, "  fit-profile  profile an existing dataset to derive configuration priors")
}

func runGenerate(args []string) error {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	var (
		configPath = fs.String("config", "", "optional YAML config file")
		records    = fs.Int("records", 0, "number of records to generate")
		seed       = fs.Int64("seed", -1, "random seed (-1 for default)")

		ageDist      = fs.String("age-dist", "", "age band distribution, e.g. A18_25:0.2,A26_35:0.8")
		channelDist  = fs.String("channel-dist", "", "channel distribution")
		regionDist   = fs.String("region-dist", "", "region distribution")
		merchantDist = fs.String("merchant-category-dist", "", "merchant category distribution")

		fraudRate     = fs.Float64("fraud-rate", 0.05, "overall fraud rate")
		fraudTypeDist = fs.String("fraud-type-dist", "CARD_NOT_PRESENT:1.0", "fraud type distribution")

		causalFraud     = fs.Bool("causal-fraud", false, "enable causal fraud scenarios")
		casualFraud     = fs.Bool("casual-fraud", false, "alias for -causal-fraud")
		causalFraudRate = fs.Float64("causal-fraud-rate", 0.01, "share of causal fraud")

		outputFormat = fs.String("output-format", "csv", "output format (csv, json, parquet)")
		outdir       = fs.String("outdir", "", "output directory")
		chunkSize    = fs.Int("chunk-size", 1000, "chunk size for streaming")

		dirty          = fs.Bool("dirty", false, "enable dirty data injection")
		dirtyRate      = fs.Float64("dirty-rate", 0.0, "row dirty rate")
		dirtyIssueDist = fs.String("dirty-issue-dist", "", "issue distribution ISSUE:PROB,...")

		synthBackend       = fs.String("synth-backend", "none", "synthesizer backend")
		synthCalibrateCols = fs.String("synth-calibrate-cols", "", "comma-separated columns to calibrate")
		synthConditionCols = fs.String("synth-condition-cols", "", "comma-separated condition columns")

		logLevel  = fs.String("log-level", "info", "log level")
		logFormat = fs.String("log-format", "console", "log format (json or console)")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	log, err := logger.New(logger.Config{Level: *logLevel, Format: *logFormat, Output: "stderr"})
	if err != nil {
		return err
	}

	cfg := &config.Generator{}
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	if flagSet(fs, "records") || cfg.Records == 0 {
		cfg.Records = *records
	}
	if *seed >= 0 {
		cfg.Seed = seed
	}
	if dist, err := parseMapping(*ageDist); err != nil {
		return fmt.Errorf("parse -age-dist: %w", err)
	} else if dist != nil {
		cfg.AgeDist = dist
	}
	if dist, err := parseMapping(*channelDist); err != nil {
		return fmt.Errorf("parse -channel-dist: %w", err)
	} else if dist != nil {
		cfg.ChannelDist = dist
	}
	if dist, err := parseMapping(*regionDist); err != nil {
		return fmt.Errorf("parse -region-dist: %w", err)
	} else if dist != nil {
		cfg.RegionDist = dist
	}
	if dist, err := parseMapping(*merchantDist); err != nil {
		return fmt.Errorf("parse -merchant-category-dist: %w", err)
	} else if dist != nil {
		cfg.MerchantCategoryDist = dist
	}
	if flagSet(fs, "fraud-rate") || cfg.FraudRate == 0 {
		cfg.FraudRate = *fraudRate
	}
	if dist, err := parseMapping(*fraudTypeDist); err != nil {
		return fmt.Errorf("parse -fraud-type-dist: %w", err)
	} else if dist != nil && flagSet(fs, "fraud-type-dist") {
		cfg.FraudTypeDist = dist
	}
	if *causalFraud || *casualFraud {
		cfg.CausalFraud = true
	}
	if flagSet(fs, "causal-fraud-rate") || cfg.CausalFraudRate == 0 {
		cfg.CausalFraudRate = *causalFraudRate
	}

	if flagSet(fs, "output-format") || cfg.Output.Format == "" {
		cfg.Output.Format = *outputFormat
	}
	if *outdir != "" {
		cfg.Output.Outdir = *outdir
	}
	if flagSet(fs, "chunk-size") || cfg.Output.ChunkSize == 0 {
		cfg.Output.ChunkSize = *chunkSize
	}

	if *dirty {
		cfg.DataQuality.Enabled = true
	}
	if flagSet(fs, "dirty-rate") {
		cfg.DataQuality.RowDirtyRate = *dirtyRate
	}
	if dist, err := parseMapping(*dirtyIssueDist); err != nil {
		return fmt.Errorf("parse -dirty-issue-dist: %w", err)
	} else if dist != nil {
		cfg.DataQuality.IssueDist = dist
	}

	if flagSet(fs, "synth-backend") || cfg.SynthBackend == "" {
		cfg.SynthBackend = *synthBackend
	}
	if *synthCalibrateCols != "" {
		cfg.SynthCalibrateCols = splitCols(*synthCalibrateCols)
	}
	if *synthConditionCols != "" {
		cfg.SynthConditionCols = splitCols(*synthConditionCols)
	}

	if err := cfg.Finish(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metadata, err := usecase.New(cfg, log).Run(ctx)
	if err != nil {
		return err
	}
	return printJSON(metadata)
}

func runFitProfile(args []string) error {
	fs := flag.NewFlagSet("fit-profile", flag.ExitOnError)
	var (
		fitFrom   = fs.String("fit-from", "", "reference dataset path")
		dpEpsilon = fs.Float64("dp-epsilon", 0, "differential privacy epsilon (0 disables noise)")
		maxCats   = fs.Int("fit-max-categories", 10, "maximum categories for profiling")
		timeCol   = fs.String("time-col", "event_time", "event timestamp column")
		seed      = fs.Int64("seed", 0, "random seed for privacy noise")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *fitFrom == "" {
		return fmt.Errorf("-fit-from is required")
	}

	rows, err := writer.ReadReference(*fitFrom)
	if err != nil {
		return err
	}

	fitCfg := config.ReferenceFit{
		FitMaxCategories: *maxCats,
		FitFromPath:      *fitFrom,
		TimeCol:          *timeCol,
	}
	if *dpEpsilon > 0 {
		fitCfg.DPEpsilon = dpEpsilon
	}

	profile, err := fit.NewProfiler(fitCfg).Fit(rows, sampling.Spawn(uint64(*seed), 0))
	if err != nil {
		return err
	}
	return printJSON(profile.Map())
}

// parseMapping parses KEY:WEIGHT,KEY:WEIGHT flag values. Empty input yields a
// nil map so callers can tell "unset" apart from "empty".
func parseMapping(arg string) (map[string]float64, error) {
	if arg == "" {
		return nil, nil
	}
	mapping := map[string]float64{}
	for _, chunk := range strings.Split(arg, ",") {
		if chunk == "" {
			continue
		}
		key, value, found := strings.Cut(chunk, ":")
		if !found {
			return nil, fmt.Errorf("entry %q is not KEY:WEIGHT", chunk)
		}
		weight, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("weight for %q: %w", key, err)
		}
		mapping[strings.TrimSpace(key)] = weight
	}
	if len(mapping) == 0 {
		return nil, nil
	}
	return mapping, nil
}

func splitCols(arg string) []string {
	parts := strings.Split(arg, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func flagSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func printJSON(payload map[string]any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
