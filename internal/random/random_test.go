package random

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRand_SameSeedSameSequence(t *testing.T) {
	seeds := []uint32{0, 1, 42, 0xDEADBEEF, 4294967295}

	for _, seed := range seeds {
		a := New(seed)
		b := New(seed)
		for i := 0; i < 1000; i++ {
			require.Equal(t, a.Uint32(), b.Uint32(), "seed %d diverged at draw %d", seed, i)
		}
	}
}

func TestRand_FloatRange(t *testing.T) {
	r := New(7)
	for i := 0; i < 10000; i++ {
		v := r.Float64()
		if v < 0 || v >= 1 {
			t.Fatalf("value out of range: %v", v)
		}
	}
}

func TestRand_DifferentSeedsDiffer(t *testing.T) {
	a := New(1)
	b := New(2)

	same := 0
	for i := 0; i < 50; i++ {
		if a.Uint32() == b.Uint32() {
			same++
		}
	}
	assert.Less(t, same, 50)
}

func TestPickOne(t *testing.T) {
	r := New(99)

	_, err := PickOne(r, []string{})
	assert.ErrorIs(t, err, ErrEmptySource)

	items := []string{"a", "b", "c"}
	for i := 0; i < 20; i++ {
		got, err := PickOne(r, items)
		require.NoError(t, err)
		assert.Contains(t, items, got)
	}
}

func TestPickRandom(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	t.Run("n larger than source returns input order", func(t *testing.T) {
		got := PickRandom(New(3), items, 20)
		assert.Equal(t, items, got)
	})

	t.Run("n equal to source returns input order", func(t *testing.T) {
		got := PickRandom(New(3), items, len(items))
		assert.Equal(t, items, got)
	})

	t.Run("no duplicates and bounded size", func(t *testing.T) {
		for seed := uint32(0); seed < 200; seed++ {
			got := PickRandom(New(seed), items, 4)
			require.Len(t, got, 4)

			seen := map[int]bool{}
			for _, v := range got {
				require.False(t, seen[v], "duplicate %d for seed %d", v, seed)
				seen[v] = true
			}
		}
	})

	t.Run("source untouched", func(t *testing.T) {
		src := []int{1, 2, 3, 4, 5}
		PickRandom(New(11), src, 2)
		assert.Equal(t, []int{1, 2, 3, 4, 5}, src)
	})

	t.Run("zero or negative n", func(t *testing.T) {
		assert.Empty(t, PickRandom(New(1), items, 0))
		assert.Empty(t, PickRandom(New(1), items, -3))
	})

	t.Run("deterministic per seed", func(t *testing.T) {
		assert.Equal(t, PickRandom(New(5), items, 3), PickRandom(New(5), items, 3))
	})
}

func TestShuffle_IsPermutation(t *testing.T) {
	for seed := uint32(0); seed < 100; seed++ {
		items := []int{5, 3, 3, 9, 1, 0, 7}
		Shuffle(New(seed), items)

		sorted := append([]int(nil), items...)
		sort.Ints(sorted)
		assert.Equal(t, []int{0, 1, 3, 3, 5, 7, 9}, sorted)
	}
}

func TestShuffle_EmptyAndSingle(t *testing.T) {
	var empty []string
	Shuffle(New(1), empty)
	assert.Empty(t, empty)

	single := []string{"only"}
	Shuffle(New(1), single)
	assert.Equal(t, []string{"only"}, single)
}

func TestSeedDeriver(t *testing.T) {
	d := NewSeedDeriver("server-secret")

	t.Run("pure function of inputs", func(t *testing.T) {
		assert.Equal(t, d.Derive("12", "student-a", 1), d.Derive("12", "student-a", 1))
		assert.Equal(t, d.Derive("12", "student-a", 1), NewSeedDeriver("server-secret").Derive("12", "student-a", 1))
	})

	t.Run("each input changes the seed", func(t *testing.T) {
		base := d.Derive("12", "student-a", 1)
		assert.NotEqual(t, base, d.Derive("12", "student-a", 2))
		assert.NotEqual(t, base, d.Derive("13", "student-a", 1))
		assert.NotEqual(t, base, d.Derive("12", "student-b", 1))
		assert.NotEqual(t, base, NewSeedDeriver("other-secret").Derive("12", "student-a", 1))
	})

	t.Run("ordinals rarely collide", func(t *testing.T) {
		seen := map[uint32]int{}
		for ordinal := 1; ordinal <= 500; ordinal++ {
			seed := d.Derive("12", "student-a", ordinal)
			_, dup := seen[seed]
			require.False(t, dup, "ordinal %d collided with %d", ordinal, seen[seed])
			seen[seed] = ordinal
		}
	})
}
