package scenario

import (
	"fraudforge/internal/domain/models"
	"fraudforge/pkg/config"
	"fraudforge/pkg/sampling"
)

// Baseline generates background transactional behavior with unbiased fraud
// flagging at the configured rate.
type Baseline struct {
	core
}

const BaselineName = "baseline"

func NewBaseline(t Targets) *Baseline {
	return &Baseline{core: newCore(BaselineName, t)}
}

func (s *Baseline) Name() string { return BaselineName }

func (s *Baseline) Description() string { return "" }

func (s *Baseline) Generate(n int, src *sampling.Source, cfg *config.Generator) ([]*models.Record, error) {
	rows, err := s.baseRows(n, src, cfg)
	if err != nil {
		return nil, err
	}

	fraudFlags := s.drawExactFlags(n, src, false)
	causalFlags := s.drawExactFlags(n, src, true)
	for i, r := range rows {
		r.IsFraud = fraudFlags[i]
		r.IsCausalFraud = causalFlags[i]
	}
	s.assignFraudTypes(rows, fraudFlags, src)
	s.finishLabels(rows)
	return rows, nil
}
