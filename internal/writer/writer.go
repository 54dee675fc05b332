// Package writer streams generated chunks into output artifacts and persists
// the metadata sidecar.
package writer

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"fraudforge/internal/domain/models"
	"fraudforge/pkg/config"
	"fraudforge/pkg/errs"
)

// MetadataFilename is the sidecar written next to the dataset artifact.
const MetadataFilename = "metadata.json"

// Writer appends chunks to an output artifact and finalizes a metadata
// sidecar. The orchestrator treats it as opaque.
type Writer interface {
	Write(ctx context.Context, rows []*models.Record) error
	Finalize(ctx context.Context, metadata map[string]any) error
}

// New builds the writer for the configured output format, chained with the
// optional Kafka sink.
func New(cfg config.Output, log zerolog.Logger) (Writer, error) {
	var (
		w   Writer
		err error
	)
	switch cfg.Format {
	case "csv":
		w, err = NewCSV(cfg, log)
	case "json":
		w, err = NewJSON(cfg, log)
	case "parquet":
		w, err = NewParquet(cfg, log)
	default:
		return nil, errs.Generationf("unsupported output format %q", cfg.Format)
	}
	if err != nil {
		return nil, err
	}
	if cfg.Kafka != nil {
		sink, err := NewKafkaSink(cfg.Kafka, log)
		if err != nil {
			return nil, err
		}
		w = tee{w, sink}
	}
	return w, nil
}

// tee fans writes out to every member, in order.
type tee []Writer

func (t tee) Write(ctx context.Context, rows []*models.Record) error {
	for _, w := range t {
		if err := w.Write(ctx, rows); err != nil {
			return err
		}
	}
	return nil
}

func (t tee) Finalize(ctx context.Context, metadata map[string]any) error {
	for _, w := range t {
		if err := w.Finalize(ctx, metadata); err != nil {
			return err
		}
	}
	return nil
}

// base holds the output paths and export hook shared by the file writers.
type base struct {
	outdir       string
	path         string
	metadataPath string
	bucket       *BucketExporter
	log          zerolog.Logger
}

func newBase(cfg config.Output, filename string, log zerolog.Logger) (base, error) {
	if err := os.MkdirAll(cfg.Outdir, 0o755); err != nil {
		return base{}, errs.Writerf("create output directory").WithError(err)
	}
	b := base{
		outdir:       cfg.Outdir,
		path:         filepath.Join(cfg.Outdir, filename),
		metadataPath: filepath.Join(cfg.Outdir, MetadataFilename),
		log:          log,
	}
	if cfg.Bucket != nil {
		b.bucket = NewBucketExporter(cfg.Bucket, log)
	}
	return b, nil
}

// finalizeMeta persists the metadata sidecar and exports artifacts when a
// bucket is configured.
func (b *base) finalizeMeta(ctx context.Context, metadata map[string]any) error {
	payload, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return errs.Writerf("encode metadata").WithError(err)
	}
	if err := os.WriteFile(b.metadataPath, payload, 0o644); err != nil {
		return errs.Writerf("write metadata").WithError(err)
	}
	if b.bucket != nil {
		return b.bucket.Export(ctx, b.path, b.metadataPath)
	}
	return nil
}
