package scenario

import (
	"sort"

	"fraudforge/internal/domain/models"
	"fraudforge/pkg/config"
	"fraudforge/pkg/sampling"
)

// Simpson reproduces Simpson's paradox: each region gets its own amount
// scale, and fraud is flagged on the lowest amounts within each region, so
// the population-level amount-fraud association can reverse sign once the
// region grouping is dropped.
type Simpson struct {
	core
}

const SimpsonName = "causal_simpson"

const simpsonDescription = "Higher transaction amounts appear safer within each region " +
	"yet become riskier when regions are aggregated, mimicking a manual review bias."

var simpsonRegionMultiplier = map[string]float64{
	models.RegionNorth: 1.6,
	models.RegionSouth: 0.9,
	models.RegionEast:  1.4,
	models.RegionWest:  1.0,
}

func NewSimpson(t Targets) *Simpson {
	return &Simpson{core: newCore(SimpsonName, t)}
}

func (s *Simpson) Name() string { return SimpsonName }

func (s *Simpson) Description() string { return simpsonDescription }

func (s *Simpson) Generate(n int, src *sampling.Source, cfg *config.Generator) ([]*models.Record, error) {
	rows, err := s.baseRows(n, src, cfg)
	if err != nil {
		return nil, err
	}

	for _, r := range rows {
		if mult, ok := simpsonRegionMultiplier[r.Region]; ok {
			r.Amount = round2(r.Amount * mult)
		}
	}

	take := s.reserveFraud(n, true)
	fraudFlags := make([]bool, n)
	for _, idx := range lowAmountByRegion(rows, take) {
		fraudFlags[idx] = true
	}
	for i, r := range rows {
		r.IsFraud = fraudFlags[i]
		r.IsCausalFraud = fraudFlags[i]
	}
	s.assignFraudTypes(rows, fraudFlags, src)
	s.finishLabels(rows)
	return rows, nil
}

// lowAmountByRegion picks count row indices, splitting the quota evenly
// across regions by ascending amount, then filling any remainder from the
// global ascending order while skipping already-selected indices.
func lowAmountByRegion(rows []*models.Record, count int) []int {
	if count <= 0 {
		return nil
	}

	groups := map[string][]int{}
	for i, r := range rows {
		groups[r.Region] = append(groups[r.Region], i)
	}
	regions := make([]string, 0, len(groups))
	for region := range groups {
		regions = append(regions, region)
	}
	sort.Strings(regions)

	quota := count / len(groups)
	if quota < 1 {
		quota = 1
	}

	selected := make([]int, 0, count)
	taken := make(map[int]bool, count)
	for _, region := range regions {
		idxs := groups[region]
		sort.SliceStable(idxs, func(a, b int) bool { return rows[idxs[a]].Amount < rows[idxs[b]].Amount })
		take := min(quota, len(idxs))
		for _, idx := range idxs[:take] {
			selected = append(selected, idx)
			taken[idx] = true
		}
	}

	if len(selected) < count {
		order := make([]int, len(rows))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool { return rows[order[a]].Amount < rows[order[b]].Amount })
		for _, idx := range order {
			if taken[idx] {
				continue
			}
			selected = append(selected, idx)
			taken[idx] = true
			if len(selected) >= count {
				break
			}
		}
	}

	if len(selected) > count {
		selected = selected[:count]
	}
	return selected
}
