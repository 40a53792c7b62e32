package reconcile

import "math/rand/v2"

// DefaultScore and DefaultAverageRating seed new dish records.
const (
	DefaultScore         = 1000
	DefaultAverageRating = 5.0
)

// Scorer picks the initial score for a dish first seen in this run. The
// score field is default-once, so the result never replaces a stored score.
type Scorer interface {
	InitialScore(stats *Stats, name string) int
}

// FixedScorer gives every dish the same starting score.
type FixedScorer struct {
	Value int
}

// InitialScore implements Scorer.
func (f FixedScorer) InitialScore(_ *Stats, _ string) int {
	if f.Value == 0 {
		return DefaultScore
	}
	return f.Value
}

// SeededScorer gives the first Limit dishes of a run a random score in
// [Min, Max] and every later dish DefaultScore. The count lives in the
// run's Stats, not in the scorer.
type SeededScorer struct {
	Limit int
	Min   int
	Max   int
	rng   *rand.Rand
}

// NewSeededScorer builds a SeededScorer with a deterministic source.
func NewSeededScorer(limit, lo, hi int, seed uint64) *SeededScorer {
	if hi < lo {
		lo, hi = hi, lo
	}
	return &SeededScorer{
		Limit: limit,
		Min:   lo,
		Max:   hi,
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// InitialScore implements Scorer.
func (s *SeededScorer) InitialScore(stats *Stats, _ string) int {
	if stats.SeededScores >= s.Limit {
		return DefaultScore
	}
	stats.SeededScores++
	return s.Min + s.rng.IntN(s.Max-s.Min+1)
}
