// Package sampling provides seeded random sources and weighted draws shared by
// the scenario engine, the dirty-data injector and the reference profiler.
package sampling

import (
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"fraudforge/pkg/errs"
)

// Source is a deterministic random stream derived from a master seed. One
// independent Source is spawned per component so that streams never overlap
// for a given top-level seed.
type Source struct {
	rnd *rand.Rand
	src rand.Source
}

// Spawn derives the sub-stream identified by stream from the master seed.
func Spawn(seed, stream uint64) *Source {
	pcg := rand.NewPCG(seed, stream)
	return &Source{rnd: rand.New(pcg), src: pcg}
}

// Rand exposes the underlying math/rand/v2 generator.
func (s *Source) Rand() *rand.Rand { return s.rnd }

func (s *Source) IntN(n int) int       { return s.rnd.IntN(n) }
func (s *Source) Int64N(n int64) int64 { return s.rnd.Int64N(n) }
func (s *Source) Float64() float64     { return s.rnd.Float64() }
func (s *Source) NormFloat64() float64 { return s.rnd.NormFloat64() }
func (s *Source) Perm(n int) []int     { return s.rnd.Perm(n) }
func (s *Source) Uint32() uint32       { return s.rnd.Uint32() }

// UniformRange draws uniformly from [lo, hi).
func (s *Source) UniformRange(lo, hi float64) float64 {
	return lo + (hi-lo)*s.rnd.Float64()
}

// LogNormal draws from a log-normal distribution parameterized by the mean and
// sigma of the log-amount.
func (s *Source) LogNormal(mu, sigma float64) float64 {
	return distuv.LogNormal{Mu: mu, Sigma: sigma, Src: s.src}.Rand()
}

// Poisson draws an integer count with the given rate.
func (s *Source) Poisson(lambda float64) int {
	if lambda <= 0 {
		return 0
	}
	return int(distuv.Poisson{Lambda: lambda, Src: s.src}.Rand())
}

// Laplace draws zero-centered Laplace noise with the given scale.
func (s *Source) Laplace(scale float64) float64 {
	return distuv.Laplace{Mu: 0, Scale: scale, Src: s.src}.Rand()
}

// Normalize rescales a weight mapping so its values sum to 1. A zero, negative
// or empty total is a configuration error, surfaced before generation begins.
func Normalize(dist map[string]float64) (map[string]float64, error) {
	total := 0.0
	for k, v := range dist {
		if v < 0 {
			return nil, errs.Configurationf("distribution weight for %q is negative", k)
		}
		total += v
	}
	if total <= 0 {
		return nil, errs.Configurationf("distribution total must be positive")
	}
	out := make(map[string]float64, len(dist))
	for k, v := range dist {
		out[k] = v / total
	}
	return out, nil
}

// Weighted draws category keys according to a weight mapping. Weights are
// renormalized on construction; callers are not assumed to have normalized.
type Weighted struct {
	keys []string
	prob []float64
	cum  []float64
}

// NewWeighted builds a weighted categorical sampler. Key order is fixed by
// sorting so draws are reproducible regardless of map iteration order.
func NewWeighted(dist map[string]float64) (*Weighted, error) {
	norm, err := Normalize(dist)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(norm))
	for k := range norm {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w := &Weighted{keys: keys, prob: make([]float64, len(keys)), cum: make([]float64, len(keys))}
	acc := 0.0
	for i, k := range keys {
		w.prob[i] = norm[k]
		acc += norm[k]
		w.cum[i] = acc
	}
	w.cum[len(keys)-1] = 1.0
	return w, nil
}

// Keys returns the category keys in draw order.
func (w *Weighted) Keys() []string { return w.keys }

// Draw samples one key.
func (w *Weighted) Draw(s *Source) string {
	return w.keys[searchCum(w.cum, s.Float64())]
}

// DrawN samples n keys with replacement.
func (w *Weighted) DrawN(s *Source, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = w.Draw(s)
	}
	return out
}

// DrawDistinct samples up to n distinct keys without replacement, weighted by
// the remaining mass at each step. Draws are capped at the number of keys.
func (w *Weighted) DrawDistinct(s *Source, n int) []string {
	if n > len(w.keys) {
		n = len(w.keys)
	}
	keys := append([]string(nil), w.keys...)
	prob := append([]float64(nil), w.prob...)
	out := make([]string, 0, n)
	for len(out) < n {
		total := 0.0
		for _, p := range prob {
			total += p
		}
		target := s.Float64() * total
		acc := 0.0
		pick := len(keys) - 1
		for i, p := range prob {
			acc += p
			if target < acc {
				pick = i
				break
			}
		}
		out = append(out, keys[pick])
		keys = append(keys[:pick], keys[pick+1:]...)
		prob = append(prob[:pick], prob[pick+1:]...)
	}
	return out
}

// WeightedIndex draws bucket indices from a positional weight slice, e.g. the
// 24-bucket hourly histogram.
type WeightedIndex struct {
	cum []float64
}

func NewWeightedIndex(weights []float64) (*WeightedIndex, error) {
	total := 0.0
	for i, v := range weights {
		if v < 0 {
			return nil, errs.Configurationf("histogram bucket %d is negative", i)
		}
		total += v
	}
	if total <= 0 {
		return nil, errs.Configurationf("histogram total must be positive")
	}
	cum := make([]float64, len(weights))
	acc := 0.0
	for i, v := range weights {
		acc += v / total
		cum[i] = acc
	}
	cum[len(cum)-1] = 1.0
	return &WeightedIndex{cum: cum}, nil
}

func (w *WeightedIndex) Draw(s *Source) int {
	return searchCum(w.cum, s.Float64())
}

func searchCum(cum []float64, target float64) int {
	lo, hi := 0, len(cum)-1
	for lo < hi {
		mid := (lo + hi) / 2
		if cum[mid] <= target {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}
