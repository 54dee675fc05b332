package writer

import (
	"compress/gzip"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"fraudforge/internal/domain/models"
	"fraudforge/pkg/config"
	"fraudforge/pkg/errs"
)

// CSVFilename is the artifact produced by the CSV writer.
const CSVFilename = "transactions.csv.gz"

// CSV streams rows into a gzipped CSV file.
type CSV struct {
	base
	file        *os.File
	gz          *gzip.Writer
	cw          *csv.Writer
	wroteHeader bool
}

func NewCSV(cfg config.Output, log zerolog.Logger) (*CSV, error) {
	b, err := newBase(cfg, CSVFilename, log)
	if err != nil {
		return nil, err
	}
	file, err := os.Create(b.path)
	if err != nil {
		return nil, errs.Writerf("create %s", b.path).WithError(err)
	}
	gz := gzip.NewWriter(file)
	log.Debug().Str("path", b.path).Msg("csv writer ready")
	return &CSV{base: b, file: file, gz: gz, cw: csv.NewWriter(gz)}, nil
}

func (w *CSV) Write(_ context.Context, rows []*models.Record) error {
	if !w.wroteHeader {
		if err := w.cw.Write(models.Columns()); err != nil {
			return errs.Writerf("write csv header").WithError(err)
		}
		w.wroteHeader = true
	}
	for _, r := range rows {
		if err := w.cw.Write(csvRow(r)); err != nil {
			return errs.Writerf("write csv row").WithError(err)
		}
	}
	w.cw.Flush()
	if err := w.cw.Error(); err != nil {
		return errs.Writerf("flush csv").WithError(err)
	}
	return nil
}

func (w *CSV) Finalize(ctx context.Context, metadata map[string]any) error {
	w.cw.Flush()
	if err := w.gz.Close(); err != nil {
		return errs.Writerf("close gzip stream").WithError(err)
	}
	if err := w.file.Close(); err != nil {
		return errs.Writerf("close %s", w.path).WithError(err)
	}
	return w.finalizeMeta(ctx, metadata)
}

func csvRow(r *models.Record) []string {
	issues, _ := json.Marshal(r.DirtyIssues)
	return []string{
		r.TransactionID,
		r.EventTime.Format(time.RFC3339),
		r.CustomerID,
		r.AccountID,
		r.AgeBand,
		r.Region,
		strconv.Itoa(r.AccountTenureDays),
		r.Channel,
		r.DeviceID,
		r.DeviceType,
		r.OS,
		r.AppVersion,
		r.IP,
		r.MerchantID,
		r.MerchantCategory,
		r.MerchantCountry,
		formatAmount(r.Amount),
		r.Currency,
		strconv.Itoa(r.TxnsLast24h),
		formatAmount(r.AvgAmount7d),
		strconv.Itoa(r.ChargebackCount90d),
		strconv.FormatBool(r.IsFraud),
		r.FraudType,
		strconv.FormatBool(r.IsCausalFraud),
		r.Scenario,
		strconv.FormatBool(r.IsDirty),
		string(issues),
		strconv.FormatBool(r.AliasCausal),
	}
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ReadCSV loads a dataset written by the CSV writer. Used by the reference
// profiler and by round-trip verification.
func ReadCSV(path string) ([]*models.Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errs.Generationf("open %s", path).WithError(err)
	}
	defer file.Close()

	var reader io.Reader = file
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(file)
		if err != nil {
			return nil, errs.Generationf("open gzip stream %s", path).WithError(err)
		}
		defer gz.Close()
		reader = gz
	}

	cr := csv.NewReader(reader)
	header, err := cr.Read()
	if err != nil {
		return nil, errs.Generationf("read csv header").WithError(err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}

	var rows []*models.Record
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errs.Generationf("read csv row").WithError(err)
		}
		r, err := recordFromCSV(fields, col)
		if err != nil {
			return nil, err
		}
		rows = append(rows, r)
	}
	return rows, nil
}

func recordFromCSV(fields []string, col map[string]int) (*models.Record, error) {
	get := func(name string) string {
		idx, ok := col[name]
		if !ok || idx >= len(fields) {
			return ""
		}
		return fields[idx]
	}
	eventTime, err := time.Parse(time.RFC3339, get("event_time"))
	if err != nil {
		return nil, errs.Generationf("parse event_time %q", get("event_time")).WithError(err)
	}
	issues := []string{}
	if raw := get("dirty_issues"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &issues); err != nil {
			return nil, errs.Generationf("parse dirty_issues %q", raw).WithError(err)
		}
	}
	return &models.Record{
		TransactionID:      get("transaction_id"),
		EventTime:          eventTime,
		CustomerID:         get("customer_id"),
		AccountID:          get("account_id"),
		AgeBand:            get("age_band"),
		Region:             get("region"),
		AccountTenureDays:  atoi(get("account_tenure_days")),
		Channel:            get("channel"),
		DeviceID:           get("device_id"),
		DeviceType:         get("device_type"),
		OS:                 get("os"),
		AppVersion:         get("app_version"),
		IP:                 get("ip"),
		MerchantID:         get("merchant_id"),
		MerchantCategory:   get("merchant_category"),
		MerchantCountry:    get("merchant_country"),
		Amount:             atof(get("amount")),
		Currency:           get("currency"),
		TxnsLast24h:        atoi(get("txns_last_24h")),
		AvgAmount7d:        atof(get("avg_amount_7d")),
		ChargebackCount90d: atoi(get("chargeback_count_90d")),
		IsFraud:            get("is_fraud") == "true",
		FraudType:          get("fraud_type"),
		IsCausalFraud:      get("is_causal_fraud") == "true",
		Scenario:           get("scenario"),
		IsDirty:            get("is_dirty") == "true",
		DirtyIssues:        issues,
		AliasCausal:        get(models.AliasCausalColumn) == "true",
	}, nil
}

func atoi(s string) int {
	v, _ := strconv.Atoi(s)
	return v
}

func atof(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
