package game

import "math/rand/v2"

// Picker draws target image indices 1..pool at random without repeating one
// until every index of the pool has been used.
type Picker struct {
	pool int
	used map[int]bool
	rng  *rand.Rand
}

// NewPicker creates a picker over indices 1..pool. A nil rng uses a randomly
// seeded source.
func NewPicker(pool int, rng *rand.Rand) *Picker {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Picker{pool: max(pool, 1), used: make(map[int]bool), rng: rng}
}

// Next returns an unused index, starting over once the pool is exhausted.
func (p *Picker) Next() int {
	if len(p.used) >= p.pool {
		clear(p.used)
	}

	free := make([]int, 0, p.pool-len(p.used))
	for i := 1; i <= p.pool; i++ {
		if !p.used[i] {
			free = append(free, i)
		}
	}
	idx := free[p.rng.IntN(len(free))]
	p.used[idx] = true
	return idx
}
