// Package synth hosts the optional synthesizer backends used to enrich or
// replace generated columns.
package synth

import (
	"fmt"
	"strings"

	"github.com/brianvoe/gofakeit/v7"

	"fraudforge/internal/domain/models"
	"fraudforge/pkg/errs"
)

// Synthesizer enriches generated rows. Backends that cannot produce full
// samples report the missing extra instead.
type Synthesizer interface {
	Fit(rows []*models.Record) error
	Sample(n int) ([]*models.Record, error)
	CalibrateColumns(rows []*models.Record, cols, keyCols []string) error
}

// Info records synthesizer usage for lineage tracking.
type Info struct {
	Backend       string
	CalibrateCols []string
	ConditionCols []string
	DPEpsilon     *float64
	// QualityScore holds a model-fit score for trained backends. The shipped
	// backends (none, faker) do no training, so it stays nil.
	QualityScore *float64
}

func (i Info) ToMetadata() map[string]any {
	meta := map[string]any{
		"backend":        i.Backend,
		"calibrate_cols": stringsOrEmpty(i.CalibrateCols),
		"condition_cols": stringsOrEmpty(i.ConditionCols),
		"dp_epsilon":     nil,
		"quality_score":  nil,
	}
	if i.DPEpsilon != nil {
		meta["dp_epsilon"] = *i.DPEpsilon
	}
	if i.QualityScore != nil {
		meta["quality_score"] = *i.QualityScore
	}
	return meta
}

func stringsOrEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Create instantiates the named backend. Backends that require integrations
// not shipped with this build surface a missing-extra error.
func Create(backend string, calibrateCols, conditionCols []string, dpEpsilon *float64) (Synthesizer, Info, error) {
	key := strings.ToLower(backend)
	info := Info{
		Backend:       key,
		CalibrateCols: calibrateCols,
		ConditionCols: conditionCols,
		DPEpsilon:     dpEpsilon,
	}
	switch key {
	case "none":
		return noneSynthesizer{}, info, nil
	case "faker":
		return newFaker(), info, nil
	case "smartnoise":
		return nil, info, errs.MissingExtra("dp")
	default:
		return nil, info, errs.MissingExtra(key)
	}
}

// noneSynthesizer is the default backend. Calibration is a no-op and
// sampling is unsupported.
type noneSynthesizer struct{}

func (noneSynthesizer) Fit([]*models.Record) error { return nil }

func (noneSynthesizer) Sample(int) ([]*models.Record, error) {
	return nil, errs.MissingExtra("none")
}

func (noneSynthesizer) CalibrateColumns([]*models.Record, []string, []string) error {
	return nil
}

// fakerColumns are the identifier-like columns the faker backend may rewrite.
var fakerColumns = map[string]struct{}{
	"merchant_id": {},
	"device_id":   {},
	"ip":          {},
	"os":          {},
	"app_version": {},
}

var fakerOSChoices = []string{"iOS", "Android", "Windows", "macOS", "Linux"}

// fakerSynthesizer rewrites identifier columns with fresh fake values while
// leaving key columns untouched.
type fakerSynthesizer struct {
	faker *gofakeit.Faker
}

func newFaker() *fakerSynthesizer {
	return &fakerSynthesizer{faker: gofakeit.New(42)}
}

func (s *fakerSynthesizer) Fit([]*models.Record) error { return nil }

func (s *fakerSynthesizer) Sample(int) ([]*models.Record, error) {
	return nil, errs.MissingExtra("faker")
}

func (s *fakerSynthesizer) CalibrateColumns(rows []*models.Record, cols, keyCols []string) error {
	keys := make(map[string]struct{}, len(keyCols))
	for _, k := range keyCols {
		keys[k] = struct{}{}
	}
	for _, col := range cols {
		if _, allowed := fakerColumns[col]; !allowed {
			continue
		}
		if _, keyed := keys[col]; keyed {
			continue
		}
		for _, r := range rows {
			if !r.SetString(col, s.value(col)) {
				return errs.Synthesizerf("column %s is not assignable", col)
			}
		}
	}
	for _, r := range rows {
		r.SyncAlias()
	}
	return nil
}

func (s *fakerSynthesizer) value(column string) string {
	switch column {
	case "merchant_id":
		return fmt.Sprintf("MCH-%08d", s.faker.IntRange(0, 99999999))
	case "device_id":
		return fmt.Sprintf("DEV-%010d", s.faker.IntRange(0, 9999999999))
	case "ip":
		return s.faker.IPv4Address()
	case "os":
		return s.faker.RandomString(fakerOSChoices)
	case "app_version":
		return s.faker.Numerify("#.##.##")
	default:
		return s.faker.LetterN(10)
	}
}
