package stream

import (
	"errors"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcatPreservesOrder(t *testing.T) {
	seq := Concat(Of(1, 2), Of[int](), Of(3), Of(4, 5))

	items, err := Collect(seq)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, items)
}

func TestConcatIsLazy(t *testing.T) {
	touched := false
	lazy := iter.Seq2[int, error](func(yield func(int, error) bool) {
		touched = true
		yield(99, nil)
	})

	seq := Concat(Of(1, 2, 3), lazy)

	// consume only the head; the second stream must stay untouched
	for item, err := range seq {
		require.NoError(t, err)
		assert.Equal(t, 1, item)
		break
	}
	assert.False(t, touched)
}

func TestConcatPassesErrorsInBand(t *testing.T) {
	boom := errors.New("boom")
	seq := Concat(Of(1), Error[int](boom), Of(2))

	var items []int
	var errs []error
	for item, err := range seq {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		items = append(items, item)
	}

	// the error does not stop streams concatenated after it
	assert.Equal(t, []int{1, 2}, items)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], boom)
}

func TestMap(t *testing.T) {
	boom := errors.New("bad page")
	seq := Map(Concat(Of(1, 2), Error[int](boom)), func(v int) int { return v * 10 })

	var items []int
	var lastErr error
	for item, err := range seq {
		if err != nil {
			lastErr = err
			continue
		}
		items = append(items, item)
	}

	assert.Equal(t, []int{10, 20}, items)
	assert.ErrorIs(t, lastErr, boom)
}

func TestCollectStopsAtFirstError(t *testing.T) {
	boom := errors.New("boom")
	items, err := Collect(Concat(Of(1, 2), Error[int](boom), Of(3)))

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []int{1, 2}, items)
}
