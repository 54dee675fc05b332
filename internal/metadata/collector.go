// Package metadata incrementally aggregates run statistics across chunks
// without retaining row data.
package metadata

import (
	"time"

	"github.com/google/uuid"

	"fraudforge/internal/domain/models"
	"fraudforge/pkg/config"
)

// Version is stamped into the lineage block of every metadata document.
const Version = "0.1.0"

// Collector is the per-run mutable aggregate. Created at run start, mutated
// once per chunk via Update, read out once via Finalize. Usage is
// single-threaded sequential; the orchestrator owns it.
type Collector struct {
	cfg *config.Generator

	total    int
	fraud    int
	nonFraud int

	fraudBy map[string]map[string]int

	causalCounts       map[string]int
	causalDescriptions map[string]string

	dirtyCounts map[string]int
	dirtyRows   int

	fitProfile map[string]any
	synthInfo  map[string]any

	runID string
}

const rowsCounterKey = "__rows__"

var fraudBreakdowns = []string{"fraud_type", "age_band", "region", "channel", "merchant_category"}

func NewCollector(cfg *config.Generator) *Collector {
	fraudBy := make(map[string]map[string]int, len(fraudBreakdowns))
	for _, name := range fraudBreakdowns {
		fraudBy[name] = map[string]int{}
	}
	return &Collector{
		cfg:                cfg,
		fraudBy:            fraudBy,
		causalCounts:       map[string]int{},
		causalDescriptions: map[string]string{},
		dirtyCounts:        map[string]int{},
		runID:              uuid.NewString(),
	}
}

// RegisterCausalDescription records the human readable description of a
// causal scenario for the finalized document.
func (c *Collector) RegisterCausalDescription(scenario, description string) {
	c.causalDescriptions[scenario] = description
}

// Update folds one generated chunk into the aggregate. When injection was
// active the injector-supplied counter is the sole source for dirty tallies;
// scanning the rows' own dirty flags as well would double count.
func (c *Collector) Update(rows []*models.Record, dirtyIssues map[string]int) {
	c.total += len(rows)
	for _, r := range rows {
		if !r.IsFraud {
			c.nonFraud++
			continue
		}
		c.fraud++
		c.fraudBy["fraud_type"][r.FraudType]++
		c.fraudBy["age_band"][r.AgeBand]++
		c.fraudBy["region"][r.Region]++
		c.fraudBy["channel"][r.Channel]++
		c.fraudBy["merchant_category"][r.MerchantCategory]++
	}
	for _, r := range rows {
		if r.IsCausalFraud {
			c.causalCounts[r.Scenario]++
		}
	}

	if dirtyIssues != nil {
		for issue, count := range dirtyIssues {
			if issue == rowsCounterKey {
				c.dirtyRows += count
				continue
			}
			c.dirtyCounts[issue] += count
		}
		return
	}
	for _, r := range rows {
		if !r.IsDirty {
			continue
		}
		c.dirtyRows++
		for _, issue := range r.DirtyIssues {
			c.dirtyCounts[issue]++
		}
	}
}

// SetFitProfile attaches reference fit profile details.
func (c *Collector) SetFitProfile(profile map[string]any) {
	c.fitProfile = profile
}

// SetSynthInfo attaches synthesizer lineage details.
func (c *Collector) SetSynthInfo(info map[string]any) {
	c.synthInfo = info
}

// Finalize renders the aggregated metadata document. Idempotent read-out; the
// field names and nesting are a stable contract for downstream consumers.
func (c *Collector) Finalize() map[string]any {
	total := c.total
	divisor := total
	if divisor == 0 {
		divisor = 1
	}
	causalTotal := 0
	for _, count := range c.causalCounts {
		causalTotal += count
	}

	fraudBy := make(map[string]any, len(c.fraudBy))
	for name, counter := range c.fraudBy {
		fraudBy[name] = copyCounts(counter)
	}
	scenarios := make(map[string]any, len(c.causalDescriptions))
	for name, description := range c.causalDescriptions {
		scenarios[name] = map[string]any{
			"count":       c.causalCounts[name],
			"description": description,
		}
	}

	var seed any
	if c.cfg.Seed != nil {
		seed = *c.cfg.Seed
	}

	doc := map[string]any{
		"counts": map[string]any{
			"total_records": total,
			"non_fraud":     c.nonFraud,
			"fraud_total":   c.fraud,
			"fraud_by":      fraudBy,
		},
		"causal": map[string]any{
			"causal_fraud_count": causalTotal,
			"causal_fraud_share": float64(causalTotal) / float64(divisor),
			"scenarios":          scenarios,
		},
		"data_quality": map[string]any{
			"dirty_rows":     c.dirtyRows,
			"dirty_share":    float64(c.dirtyRows) / float64(divisor),
			"issues_by_type": copyCounts(c.dirtyCounts),
		},
		"lineage": map[string]any{
			"seed":              seed,
			"generator_version": Version,
			"timestamp":         time.Now().UTC().Format(time.RFC3339Nano),
			"run_id":            c.runID,
			"config":            c.cfg.Resolved(),
		},
	}
	if c.fitProfile != nil {
		doc["fit_profile"] = c.fitProfile
	}
	if c.synthInfo != nil {
		doc["synth"] = c.synthInfo
	}
	return doc
}

func copyCounts(counts map[string]int) map[string]int {
	out := make(map[string]int, len(counts))
	for k, v := range counts {
		out[k] = v
	}
	return out
}
