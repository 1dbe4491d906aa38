package broadcast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValueSetAdd(t *testing.T) {
	var s ValueSet
	assert.True(t, s.Add(5))
	assert.False(t, s.Add(5))
	assert.True(t, s.Has(5))
	assert.False(t, s.Has(6))
	assert.Equal(t, 1, s.Len())
}

func TestValueSetAddAllCountsNew(t *testing.T) {
	s := NewValueSet(1, 2)
	assert.Equal(t, 2, s.AddAll([]int64{2, 3, 4, 4}))
	assert.Equal(t, []int64{1, 2, 3, 4}, s.Sorted())
}

func TestValueSetSortedNeverNil(t *testing.T) {
	assert.NotNil(t, NewValueSet().Sorted())
	assert.Empty(t, NewValueSet().Sorted())
}

func TestValueSetNeverShrinks(t *testing.T) {
	s := NewValueSet()
	prev := 0
	for _, batch := range [][]int64{{5, 7}, {7}, {}, {1, 5}} {
		s.AddAll(batch)
		assert.GreaterOrEqual(t, s.Len(), prev)
		prev = s.Len()
	}
	assert.Equal(t, []int64{1, 5, 7}, s.Sorted())
}
