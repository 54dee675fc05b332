package writer

import (
	"context"
	"os"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/rs/zerolog"

	"fraudforge/internal/domain/models"
	"fraudforge/pkg/config"
	"fraudforge/pkg/errs"
)

// ParquetFilename is the artifact produced by the Parquet writer.
const ParquetFilename = "transactions.parquet"

// parquetRow is the flat on-disk schema. Timestamps are stored as RFC3339
// strings to keep the column readable across tools.
type parquetRow struct {
	TransactionID      string   `parquet:"transaction_id"`
	EventTime          string   `parquet:"event_time"`
	CustomerID         string   `parquet:"customer_id"`
	AccountID          string   `parquet:"account_id"`
	AgeBand            string   `parquet:"age_band"`
	Region             string   `parquet:"region"`
	AccountTenureDays  int64    `parquet:"account_tenure_days"`
	Channel            string   `parquet:"channel"`
	DeviceID           string   `parquet:"device_id"`
	DeviceType         string   `parquet:"device_type"`
	OS                 string   `parquet:"os"`
	AppVersion         string   `parquet:"app_version"`
	IP                 string   `parquet:"ip"`
	MerchantID         string   `parquet:"merchant_id"`
	MerchantCategory   string   `parquet:"merchant_category"`
	MerchantCountry    string   `parquet:"merchant_country"`
	Amount             float64  `parquet:"amount"`
	Currency           string   `parquet:"currency"`
	TxnsLast24h        int64    `parquet:"txns_last_24h"`
	AvgAmount7d        float64  `parquet:"avg_amount_7d"`
	ChargebackCount90d int64    `parquet:"chargeback_count_90d"`
	IsFraud            bool     `parquet:"is_fraud"`
	FraudType          string   `parquet:"fraud_type"`
	IsCausalFraud      bool     `parquet:"is_causal_fraud"`
	Scenario           string   `parquet:"scenario"`
	IsDirty            bool     `parquet:"is_dirty"`
	DirtyIssues        []string `parquet:"dirty_issues,list"`
	AliasCausal        bool     `parquet:"is_casual_fraud"`
}

// Parquet streams rows into a Parquet file.
type Parquet struct {
	base
	file *os.File
	pw   *parquet.GenericWriter[parquetRow]
}

func NewParquet(cfg config.Output, log zerolog.Logger) (*Parquet, error) {
	b, err := newBase(cfg, ParquetFilename, log)
	if err != nil {
		return nil, err
	}
	file, err := os.Create(b.path)
	if err != nil {
		return nil, errs.Writerf("create %s", b.path).WithError(err)
	}
	log.Debug().Str("path", b.path).Msg("parquet writer ready")
	return &Parquet{base: b, file: file, pw: parquet.NewGenericWriter[parquetRow](file)}, nil
}

func (w *Parquet) Write(_ context.Context, rows []*models.Record) error {
	out := make([]parquetRow, len(rows))
	for i, r := range rows {
		out[i] = toParquetRow(r)
	}
	if _, err := w.pw.Write(out); err != nil {
		return errs.Writerf("write parquet rows").WithError(err)
	}
	return nil
}

func (w *Parquet) Finalize(ctx context.Context, metadata map[string]any) error {
	if err := w.pw.Close(); err != nil {
		return errs.Writerf("close parquet writer").WithError(err)
	}
	if err := w.file.Close(); err != nil {
		return errs.Writerf("close %s", w.path).WithError(err)
	}
	return w.finalizeMeta(ctx, metadata)
}

func toParquetRow(r *models.Record) parquetRow {
	return parquetRow{
		TransactionID:      r.TransactionID,
		EventTime:          r.EventTime.Format(time.RFC3339),
		CustomerID:         r.CustomerID,
		AccountID:          r.AccountID,
		AgeBand:            r.AgeBand,
		Region:             r.Region,
		AccountTenureDays:  int64(r.AccountTenureDays),
		Channel:            r.Channel,
		DeviceID:           r.DeviceID,
		DeviceType:         r.DeviceType,
		OS:                 r.OS,
		AppVersion:         r.AppVersion,
		IP:                 r.IP,
		MerchantID:         r.MerchantID,
		MerchantCategory:   r.MerchantCategory,
		MerchantCountry:    r.MerchantCountry,
		Amount:             r.Amount,
		Currency:           r.Currency,
		TxnsLast24h:        int64(r.TxnsLast24h),
		AvgAmount7d:        r.AvgAmount7d,
		ChargebackCount90d: int64(r.ChargebackCount90d),
		IsFraud:            r.IsFraud,
		FraudType:          r.FraudType,
		IsCausalFraud:      r.IsCausalFraud,
		Scenario:           r.Scenario,
		IsDirty:            r.IsDirty,
		DirtyIssues:        r.DirtyIssues,
		AliasCausal:        r.AliasCausal,
	}
}

func fromParquetRow(p parquetRow) (*models.Record, error) {
	eventTime, err := time.Parse(time.RFC3339, p.EventTime)
	if err != nil {
		return nil, errs.Generationf("parse event_time %q", p.EventTime).WithError(err)
	}
	issues := p.DirtyIssues
	if issues == nil {
		issues = []string{}
	}
	return &models.Record{
		TransactionID:      p.TransactionID,
		EventTime:          eventTime,
		CustomerID:         p.CustomerID,
		AccountID:          p.AccountID,
		AgeBand:            p.AgeBand,
		Region:             p.Region,
		AccountTenureDays:  int(p.AccountTenureDays),
		Channel:            p.Channel,
		DeviceID:           p.DeviceID,
		DeviceType:         p.DeviceType,
		OS:                 p.OS,
		AppVersion:         p.AppVersion,
		IP:                 p.IP,
		MerchantID:         p.MerchantID,
		MerchantCategory:   p.MerchantCategory,
		MerchantCountry:    p.MerchantCountry,
		Amount:             p.Amount,
		Currency:           p.Currency,
		TxnsLast24h:        int(p.TxnsLast24h),
		AvgAmount7d:        p.AvgAmount7d,
		ChargebackCount90d: int(p.ChargebackCount90d),
		IsFraud:            p.IsFraud,
		FraudType:          p.FraudType,
		IsCausalFraud:      p.IsCausalFraud,
		Scenario:           p.Scenario,
		IsDirty:            p.IsDirty,
		DirtyIssues:        issues,
		AliasCausal:        p.AliasCausal,
	}, nil
}

// ReadParquet loads a dataset written by the Parquet writer.
func ReadParquet(path string) ([]*models.Record, error) {
	raw, err := parquet.ReadFile[parquetRow](path)
	if err != nil {
		return nil, errs.Generationf("read %s", path).WithError(err)
	}
	rows := make([]*models.Record, len(raw))
	for i, p := range raw {
		if rows[i], err = fromParquetRow(p); err != nil {
			return nil, err
		}
	}
	return rows, nil
}
