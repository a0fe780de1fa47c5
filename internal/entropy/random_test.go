package entropy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSource_SameSeedReplays(t *testing.T) {
	a := New(42)
	b := New(42)

	for i := 0; i < 100; i++ {
		require.Equal(t, a.Intn(1000), b.Intn(1000))
	}
	assert.Equal(t, a.Perm(20), b.Perm(20))
	assert.Equal(t, a.Float64(), b.Float64())
}

func TestSource_ZeroSeedDrawsFreshSeed(t *testing.T) {
	s := New(0)
	assert.NotZero(t, s.Seed())
}

func TestSource_IntRangeInclusive(t *testing.T) {
	s := New(7)
	seen := make(map[int]bool)
	for i := 0; i < 500; i++ {
		v := s.IntRange(1, 3)
		require.GreaterOrEqual(t, v, 1)
		require.LessOrEqual(t, v, 3)
		seen[v] = true
	}
	assert.Len(t, seen, 3)
	assert.Equal(t, 5, s.IntRange(5, 5))
}

func TestSource_Panics(t *testing.T) {
	s := New(1)
	assert.Panics(t, func() { s.Intn(0) })
	assert.Panics(t, func() { s.IntRange(3, 2) })
	assert.Panics(t, func() { Pick(s, []string{}) })
}

func TestPick(t *testing.T) {
	s := New(3)
	items := []string{"a", "b", "c"}
	for i := 0; i < 50; i++ {
		assert.Contains(t, items, Pick(s, items))
	}
}
