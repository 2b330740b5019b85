/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package collection

import (
	"testing"

	"github.com/suparena/workspace/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	ID    string
	Value int
}

func newRecords() *Collection[record] {
	return New(func(r record) any { return r.ID })
}

func TestCollectionUpsertReplaces(t *testing.T) {
	c := newRecords()

	require.NoError(t, c.Add(record{ID: "a", Value: 1}))
	require.NoError(t, c.Add(record{ID: "a", Value: 2}))

	require.Equal(t, 1, c.Len())
	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 2, got.Value)
}

func TestCollectionAddRangeLastWins(t *testing.T) {
	c := newRecords()
	c.AddRange([]record{{ID: "a", Value: 1}, {ID: "b", Value: 1}, {ID: "a", Value: 3}})

	assert.Equal(t, 2, c.Len())
	got, _ := c.Get("a")
	assert.Equal(t, 3, got.Value)
}

func TestCollectionRemove(t *testing.T) {
	c := newRecords()
	c.AddRange([]record{{ID: "a"}, {ID: "b"}, {ID: "c"}})

	old, ok := c.Remove(record{ID: "b", Value: 99})
	require.True(t, ok)
	assert.Equal(t, 0, old.Value, "the stored value is returned, not the argument")

	removed := c.RemoveRange([]record{{ID: "a"}, {ID: "zz"}})
	assert.Len(t, removed, 1)
	assert.Equal(t, 1, c.Len())
	assert.True(t, c.Contains(record{ID: "c"}))
	assert.False(t, c.Contains(record{ID: "a"}))

	_, ok = c.RemoveKey("missing")
	assert.False(t, ok)
}

func TestCollectionItemsIsSnapshot(t *testing.T) {
	c := newRecords()
	c.AddRange([]record{{ID: "a"}, {ID: "b"}})

	items := c.Items()
	c.Add(record{ID: "c"})

	assert.Len(t, items, 2)
	assert.ElementsMatch(t, []record{{ID: "a"}, {ID: "b"}, {ID: "c"}}, c.Items())
}

func TestCollectionClear(t *testing.T) {
	c := newRecords()
	c.AddRange([]record{{ID: "a"}, {ID: "b"}})

	old := c.Clear()
	assert.Len(t, old, 2)
	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.Items())
}

type tagged struct {
	Tags []string
}

func TestCollectionRejectsNonComparableKeys(t *testing.T) {
	c := New(func(x tagged) any { return x.Tags })

	err := c.Add(tagged{Tags: []string{"x"}})
	assert.True(t, errors.IsValidationError(err))
	assert.Equal(t, 0, c.Len())

	hidden := New(func(x tagged) any { return any([1]any{x.Tags}) })
	assert.True(t, errors.IsValidationError(hidden.Add(tagged{Tags: []string{"y"}})))

	_, ok := c.Get([]string{"x"})
	assert.False(t, ok)
	_, ok = c.RemoveKey([]string{"x"})
	assert.False(t, ok)
	assert.False(t, c.Contains(tagged{}))
}

func TestCollectionAddRangeIsAllOrNothing(t *testing.T) {
	c := New(func(x tagged) any {
		if len(x.Tags) == 1 {
			return x.Tags[0]
		}
		return x.Tags
	})

	err := c.AddRange([]tagged{{Tags: []string{"a"}}, {Tags: []string{"b", "c"}}})
	assert.True(t, errors.IsValidationError(err))
	assert.Equal(t, 0, c.Len())

	require.NoError(t, c.AddRange([]tagged{{Tags: []string{"a"}}, {Tags: []string{"b"}}}))
	assert.Equal(t, 2, c.Len())
}
