package writer

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"fraudforge/internal/domain/models"
	"fraudforge/pkg/config"
	"fraudforge/pkg/errs"
)

// JSONFilename is the artifact produced by the JSON Lines writer.
const JSONFilename = "transactions.jsonl.gz"

// JSON streams rows into gzipped JSON Lines.
type JSON struct {
	base
	file *os.File
	gz   *gzip.Writer
	enc  *json.Encoder
}

func NewJSON(cfg config.Output, log zerolog.Logger) (*JSON, error) {
	b, err := newBase(cfg, JSONFilename, log)
	if err != nil {
		return nil, err
	}
	file, err := os.Create(b.path)
	if err != nil {
		return nil, errs.Writerf("create %s", b.path).WithError(err)
	}
	gz := gzip.NewWriter(file)
	log.Debug().Str("path", b.path).Msg("jsonl writer ready")
	return &JSON{base: b, file: file, gz: gz, enc: json.NewEncoder(gz)}, nil
}

func (w *JSON) Write(_ context.Context, rows []*models.Record) error {
	for _, r := range rows {
		if err := w.enc.Encode(jsonRow(r)); err != nil {
			return errs.Writerf("write jsonl row").WithError(err)
		}
	}
	return nil
}

func (w *JSON) Finalize(ctx context.Context, metadata map[string]any) error {
	if err := w.gz.Close(); err != nil {
		return errs.Writerf("close gzip stream").WithError(err)
	}
	if err := w.file.Close(); err != nil {
		return errs.Writerf("close %s", w.path).WithError(err)
	}
	return w.finalizeMeta(ctx, metadata)
}

// jsonRow renders a record with an explicit null fraud_type for non-fraud
// rows and the alias column present.
func jsonRow(r *models.Record) map[string]any {
	var fraudType any
	if r.FraudType != "" {
		fraudType = r.FraudType
	}
	return map[string]any{
		"transaction_id":         r.TransactionID,
		"event_time":             r.EventTime.Format(time.RFC3339),
		"customer_id":            r.CustomerID,
		"account_id":             r.AccountID,
		"age_band":               r.AgeBand,
		"region":                 r.Region,
		"account_tenure_days":    r.AccountTenureDays,
		"channel":                r.Channel,
		"device_id":              r.DeviceID,
		"device_type":            r.DeviceType,
		"os":                     r.OS,
		"app_version":            r.AppVersion,
		"ip":                     r.IP,
		"merchant_id":            r.MerchantID,
		"merchant_category":      r.MerchantCategory,
		"merchant_country":       r.MerchantCountry,
		"amount":                 r.Amount,
		"currency":               r.Currency,
		"txns_last_24h":          r.TxnsLast24h,
		"avg_amount_7d":          r.AvgAmount7d,
		"chargeback_count_90d":   r.ChargebackCount90d,
		"is_fraud":               r.IsFraud,
		"fraud_type":             fraudType,
		"is_causal_fraud":        r.IsCausalFraud,
		"scenario":               r.Scenario,
		"is_dirty":               r.IsDirty,
		"dirty_issues":           r.DirtyIssues,
		models.AliasCausalColumn: r.AliasCausal,
	}
}

// ReadJSONL loads a dataset written by the JSON Lines writer.
func ReadJSONL(path string) ([]*models.Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errs.Generationf("open %s", path).WithError(err)
	}
	defer file.Close()

	var reader io.Reader = file
	if gz, err := gzip.NewReader(file); err == nil {
		defer gz.Close()
		reader = gz
	} else {
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return nil, errs.Generationf("rewind %s", path).WithError(err)
		}
	}

	var rows []*models.Record
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		r := &models.Record{}
		if err := json.Unmarshal(line, r); err != nil {
			return nil, errs.Generationf("parse jsonl row").WithError(err)
		}
		if r.DirtyIssues == nil {
			r.DirtyIssues = []string{}
		}
		rows = append(rows, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.Generationf("read %s", path).WithError(err)
	}
	return rows, nil
}
