package scenario

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"fraudforge/internal/domain/models"
	"fraudforge/pkg/config"
	"fraudforge/pkg/sampling"
)

// Collider manufactures a collider bias: a latent risk score drives both a
// review decision that suppresses amounts and the fraud flags themselves, so
// conditioning on review status reverses the amount-fraud relationship.
type Collider struct {
	core
}

const ColliderName = "causal_collider"

const colliderDescription = "Fraudulent accounts trigger manual reviews, " +
	"making higher amounts appear safer within the reviewed subset " +
	"and creating a collider bias between amount and fraud labels."

func NewCollider(t Targets) *Collider {
	return &Collider{core: newCore(ColliderName, t)}
}

func (s *Collider) Name() string { return ColliderName }

func (s *Collider) Description() string { return colliderDescription }

func (s *Collider) Generate(n int, src *sampling.Source, cfg *config.Generator) ([]*models.Record, error) {
	rows, err := s.baseRows(n, src, cfg)
	if err != nil {
		return nil, err
	}

	risk := make([]float64, n)
	for i, r := range rows {
		risk[i] = 0.4*float64(r.TxnsLast24h) + 0.6*float64(r.ChargebackCount90d) + 0.5*src.NormFloat64()
	}

	sorted := append([]float64(nil), risk...)
	sort.Float64s(sorted)
	threshold := stat.Quantile(0.7, stat.LinInterp, sorted, nil)
	for i, r := range rows {
		if risk[i] > threshold {
			r.Amount = round2(r.Amount * 0.7) // reviewed: suppressed
		} else {
			r.Amount = round2(r.Amount * 1.2) // unreviewed: inflated
		}
	}

	// Fraud goes to the highest-risk rows, entangling it with the same
	// latent variable that drove the review-amount split.
	take := s.reserveFraud(n, true)
	fraudFlags := make([]bool, n)
	if take > 0 {
		order := make([]int, n)
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool { return risk[order[a]] > risk[order[b]] })
		for _, idx := range order[:take] {
			fraudFlags[idx] = true
		}
	}
	for i, r := range rows {
		r.IsFraud = fraudFlags[i]
		r.IsCausalFraud = fraudFlags[i]
	}
	s.assignFraudTypes(rows, fraudFlags, src)
	s.finishLabels(rows)
	return rows, nil
}
