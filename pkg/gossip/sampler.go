package gossip

import "math/rand/v2"

// Sampler picks which peers and which repair values go into a round.
type Sampler interface {
	// Sample returns min(k, n) distinct indices in [0, n).
	Sample(n, k int) []int
}

// RandSampler draws uniform samples from a *rand.Rand.
type RandSampler struct {
	r *rand.Rand
}

// NewRandSampler wraps r; a nil r gets a randomly seeded PCG source.
func NewRandSampler(r *rand.Rand) *RandSampler {
	if r == nil {
		r = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &RandSampler{r: r}
}

func (s *RandSampler) Sample(n, k int) []int {
	if n <= 0 || k <= 0 {
		return nil
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	if k >= n {
		return idx
	}
	// partial Fisher-Yates
	for i := range k {
		j := i + s.r.IntN(n-i)
		idx[i], idx[j] = idx[j], idx[i]
	}
	return idx[:k]
}
