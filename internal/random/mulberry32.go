package random

import "errors"

// ErrEmptySource is returned when picking from an empty slice
var ErrEmptySource = errors.New("cannot pick from an empty source")

const mulberryIncrement uint32 = 0x6D2B79F5

// Rand is a Mulberry32 generator. Two instances built from the same seed
// produce identical sequences. Not safe for concurrent use.
type Rand struct {
	state uint32
}

// New creates a generator seeded with seed
func New(seed uint32) *Rand {
	return &Rand{state: seed}
}

// Uint32 advances the generator and returns the next raw 32-bit value
func (r *Rand) Uint32() uint32 {
	r.state += mulberryIncrement
	t := r.state
	t = (t ^ (t >> 15)) * (t | 1)
	t ^= t + (t^(t>>7))*(t|61)
	return t ^ (t >> 14)
}

// Float64 returns the next value in [0, 1)
func (r *Rand) Float64() float64 {
	return float64(r.Uint32()) / 4294967296.0
}

// Intn returns a value in [0, n). n must be positive.
func (r *Rand) Intn(n int) int {
	return int(r.Float64() * float64(n))
}

// PickOne returns a uniformly chosen element of items
func PickOne[T any](r *Rand, items []T) (T, error) {
	var zero T
	if len(items) == 0 {
		return zero, ErrEmptySource
	}
	return items[r.Intn(len(items))], nil
}

// PickRandom returns n distinct elements of items. When n covers the whole
// slice the elements are returned in their original order; otherwise a
// shuffled copy is truncated to n. The input slice is never modified.
func PickRandom[T any](r *Rand, items []T, n int) []T {
	if n <= 0 {
		return []T{}
	}
	out := make([]T, len(items))
	copy(out, items)
	if n >= len(items) {
		return out
	}
	Shuffle(r, out)
	return out[:n]
}

// Shuffle permutes items in place with Fisher-Yates, walking from the last
// index down to 1.
func Shuffle[T any](r *Rand, items []T) {
	for i := len(items) - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		items[i], items[j] = items[j], items[i]
	}
}
