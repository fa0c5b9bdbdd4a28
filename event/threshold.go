package event

import "math/big"

// ThresholdSpec decides whether a set of valid signer indices satisfies a
// signing (or witness) threshold. It supports both the simple-counting and
// weighted-fractional schemes named in the top-level spec without further
// elaboration.
type ThresholdSpec interface {
	Satisfied(valid []int) bool
}

// SimpleThreshold is an integer count: satisfied iff at least this many
// distinct indices are valid.
type SimpleThreshold int

func (t SimpleThreshold) Satisfied(valid []int) bool {
	seen := make(map[int]bool, len(valid))
	for _, idx := range valid {
		seen[idx] = true
	}
	return len(seen) >= int(t)
}

// WeightedThreshold implements KERI's weighted fractional signing scheme:
// each key index carries a rational weight, and the threshold is satisfied
// iff the sum of the weights at the valid indices is >= the threshold
// fraction.
type WeightedThreshold struct {
	Weights   []*big.Rat
	Threshold *big.Rat
}

// NewWeightedThreshold builds a WeightedThreshold from numerator/denominator
// pairs, e.g. weights [[1,2],[1,2],[1,2]] with threshold [1,1] is satisfied
// by any two of the three half-weighted keys.
func NewWeightedThreshold(weights [][2]int64, thresholdNum, thresholdDen int64) WeightedThreshold {
	w := make([]*big.Rat, len(weights))
	for i, p := range weights {
		w[i] = big.NewRat(p[0], p[1])
	}
	return WeightedThreshold{
		Weights:   w,
		Threshold: big.NewRat(thresholdNum, thresholdDen),
	}
}

func (t WeightedThreshold) Satisfied(valid []int) bool {
	sum := new(big.Rat)
	for _, idx := range valid {
		if idx < 0 || idx >= len(t.Weights) {
			continue
		}
		sum.Add(sum, t.Weights[idx])
	}
	return sum.Cmp(t.Threshold) >= 0
}
