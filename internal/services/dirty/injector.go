// Package dirty post-processes generated batches with configurable
// data-quality defects.
package dirty

import (
	"math"
	"time"

	"fraudforge/internal/domain/models"
	"fraudforge/internal/services/scenario"
	"fraudforge/pkg/config"
	"fraudforge/pkg/errs"
	"fraudforge/pkg/sampling"
)

// RowsCounterKey is the special entry in the per-chunk issue counter holding
// the number of dirtied rows.
const RowsCounterKey = "__rows__"

// safeStringCols are the columns eligible for missing-value and typo
// injection when no whitelist is configured. The transaction id is excluded.
var safeStringCols = []string{
	"merchant_id", "device_id", "ip", "os", "app_version",
	"merchant_category", "merchant_country",
}

var swapPairs = [][2]string{
	{"customer_id", "account_id"},
	{"merchant_id", "device_id"},
}

// Injector corrupts a row-level fraction of a batch according to the
// configured issue-type distribution.
type Injector struct {
	cfg    config.DataQuality
	issues *sampling.Weighted
}

// New builds an injector. The issue distribution must be valid when injection
// is enabled; config normalization guarantees that before generation begins.
func New(cfg config.DataQuality) (*Injector, error) {
	inj := &Injector{cfg: cfg}
	if cfg.Enabled {
		w, err := sampling.NewWeighted(cfg.IssueDist)
		if err != nil {
			return nil, errs.Configurationf("data_quality.issue_dist invalid").WithError(err)
		}
		inj.issues = w
	}
	return inj, nil
}

// Apply mutates the batch in place and returns per-issue counts plus the
// dirtied row count under RowsCounterKey. Pass-through with empty counts when
// disabled or the batch is empty.
func (inj *Injector) Apply(rows []*models.Record, src *sampling.Source) map[string]int {
	counts := map[string]int{}
	if !inj.cfg.Enabled || len(rows) == 0 {
		return counts
	}

	dirtied := 0
	for i, r := range rows {
		if src.Float64() >= inj.cfg.RowDirtyRate {
			continue
		}
		count := 1 + src.IntN(inj.cfg.MaxIssuesPerRow)
		for _, issue := range inj.issues.DrawDistinct(src, count) {
			inj.applyIssue(rows, i, issue, src)
			r.DirtyIssues = append(r.DirtyIssues, issue)
			counts[issue]++
		}
		r.IsDirty = true
		dirtied++
	}
	counts[RowsCounterKey] = dirtied

	for _, r := range rows {
		r.SyncAlias()
	}
	return counts
}

func (inj *Injector) applyIssue(rows []*models.Record, idx int, issue string, src *sampling.Source) {
	switch issue {
	case config.IssueMissingValues:
		inj.missingValue(rows[idx], src)
	case config.IssueTyposNoise:
		inj.typoNoise(rows[idx], src)
	case config.IssueOutlierAmount:
		outlierAmount(rows[idx], src)
	case config.IssueDuplicateRows:
		duplicateRow(rows, idx, src)
	case config.IssueSwapFields:
		swapFields(rows[idx])
	case config.IssueDateJitter:
		dateJitter(rows[idx], src)
	}
}

func (inj *Injector) missingValue(r *models.Record, src *sampling.Source) {
	cols := inj.cfg.MissingColsWhitelist
	if len(cols) == 0 {
		cols = safeStringCols
	}
	col := cols[src.IntN(len(cols))]
	if col == "transaction_id" {
		return
	}
	r.SetString(col, "")
}

func (inj *Injector) typoNoise(r *models.Record, src *sampling.Source) {
	cols := inj.cfg.TyposColsWhitelist
	if len(cols) == 0 {
		cols = safeStringCols
	}
	col := cols[src.IntN(len(cols))]
	value, ok := r.GetString(col)
	if !ok || value == "" {
		return
	}
	pos := src.IntN(len(value) + 1)
	noisy := byte('A' + src.IntN(26))
	r.SetString(col, value[:pos]+string(noisy)+value[pos:])
}

func outlierAmount(r *models.Record, src *sampling.Source) {
	factor := src.LogNormal(2.0, 0.5)
	amount := r.Amount * factor
	if amount < 0.01 {
		amount = 0.01
	}
	r.Amount = round2(amount)
	r.AvgAmount7d = round2(amount * 0.8)
}

// duplicateRow overwrites the target row with another row's values, keeping a
// fresh transaction id and perturbing timestamp and amount. Self-selection
// falls back a single step; tiny batches accept the residual collision risk.
func duplicateRow(rows []*models.Record, idx int, src *sampling.Source) {
	source := src.IntN(len(rows))
	if source == idx {
		source = (source + 1) % len(rows)
	}
	r := rows[idx]
	r.CopyFrom(rows[source])
	r.TransactionID = scenario.TransactionID(src)
	jitter := src.IntN(601) - 300 // [-300, 300] seconds
	r.EventTime = r.EventTime.Add(time.Duration(jitter) * time.Second)
	r.Amount = round2(r.Amount * src.UniformRange(0.95, 1.05))
}

func swapFields(r *models.Record) {
	for _, pair := range swapPairs {
		left, _ := r.GetString(pair[0])
		right, _ := r.GetString(pair[1])
		r.SetString(pair[0], right)
		r.SetString(pair[1], left)
	}
}

func dateJitter(r *models.Record, src *sampling.Source) {
	jitter := src.IntN(1201) - 600 // [-600, 600] seconds
	r.EventTime = r.EventTime.Add(time.Duration(jitter) * time.Second)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
