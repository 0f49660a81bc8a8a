package cache

import (
	"math"
	"math/rand/v2"
	"sync"
)

// ChangeEstimator produces the advisory 24h change figures of a rate.
// There is no historical store behind these values.
type ChangeEstimator interface {
	Estimate(code string, rate float64) (change24h, changePercent24h *float64)
}

// NoChangeEstimator leaves both change fields empty
type NoChangeEstimator struct{}

func (NoChangeEstimator) Estimate(string, float64) (*float64, *float64) {
	return nil, nil
}

// RandomChangeEstimator synthesizes mock movements: change24h within ±1% of the rate
// and changePercent24h within ±1 percentage point.
type RandomChangeEstimator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandomChangeEstimator creates a mock estimator; seed 0 picks a random seed
func NewRandomChangeEstimator(seed uint64) *RandomChangeEstimator {
	if seed == 0 {
		seed = rand.Uint64()
	}

	return &RandomChangeEstimator{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (e *RandomChangeEstimator) Estimate(_ string, rate float64) (*float64, *float64) {
	e.mu.Lock()
	u1, u2 := e.rnd.Float64(), e.rnd.Float64()
	e.mu.Unlock()

	change := round((u1-0.5)*rate*0.02, 6)
	percent := round((u2-0.5)*2, 2)

	return &change, &percent
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
