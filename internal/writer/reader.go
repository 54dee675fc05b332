package writer

import (
	"strings"

	"fraudforge/internal/domain/models"
	"fraudforge/pkg/errs"
)

// ReadReference loads a reference dataset for profiling, dispatching on the
// file extension.
func ReadReference(path string) ([]*models.Record, error) {
	switch {
	case strings.HasSuffix(path, ".parquet"):
		return ReadParquet(path)
	case strings.HasSuffix(path, ".jsonl"), strings.HasSuffix(path, ".jsonl.gz"),
		strings.HasSuffix(path, ".json"):
		return ReadJSONL(path)
	case strings.HasSuffix(path, ".csv"), strings.HasSuffix(path, ".csv.gz"):
		return ReadCSV(path)
	default:
		return nil, errs.Generationf("unsupported reference format %q", path)
	}
}
