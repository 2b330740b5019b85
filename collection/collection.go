/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package collection provides an identity-keyed upsert set.
package collection

import (
	"fmt"
	"reflect"

	"github.com/suparena/workspace/errors"
)

// Collection is a deduplicated set of items keyed by identity. Adding an item
// whose key is already present replaces the stored value; values are never
// merged. A Collection is not safe for concurrent use.
type Collection[T any] struct {
	key   func(T) any
	items map[any]T
}

// New creates an empty Collection using key to extract identities.
func New[T any](key func(T) any) *Collection[T] {
	return &Collection[T]{
		key:   key,
		items: make(map[any]T),
	}
}

// CheckKey reports whether key can serve as an identity. Keys must be
// comparable at runtime; a slice or map hidden in an interface is rejected.
func CheckKey(key any) error {
	if key == nil {
		return nil
	}
	if !reflect.ValueOf(key).Comparable() {
		return errors.NewValidationError("key", fmt.Sprintf("identity of type %T is not comparable", key))
	}
	return nil
}

// Add upserts item. An item whose identity is not comparable is rejected.
func (c *Collection[T]) Add(item T) error {
	k := c.key(item)
	if err := CheckKey(k); err != nil {
		return err
	}
	c.items[k] = item
	return nil
}

// AddRange upserts every item in order, so the last item wins on duplicate
// keys. Nothing is added unless every identity is valid.
func (c *Collection[T]) AddRange(items []T) error {
	for _, item := range items {
		if err := CheckKey(c.key(item)); err != nil {
			return err
		}
	}
	for _, item := range items {
		c.items[c.key(item)] = item
	}
	return nil
}

// Remove removes the entry sharing item's identity and returns the stored value.
func (c *Collection[T]) Remove(item T) (T, bool) {
	return c.RemoveKey(c.key(item))
}

// RemoveRange removes every entry sharing an identity with items and returns
// the values that were actually stored.
func (c *Collection[T]) RemoveRange(items []T) []T {
	var removed []T
	for _, item := range items {
		if old, ok := c.Remove(item); ok {
			removed = append(removed, old)
		}
	}
	return removed
}

// RemoveKey removes the entry with identity key.
func (c *Collection[T]) RemoveKey(key any) (T, bool) {
	if CheckKey(key) != nil {
		var zero T
		return zero, false
	}
	old, ok := c.items[key]
	if ok {
		delete(c.items, key)
	}
	return old, ok
}

// Get returns the entry with identity key.
func (c *Collection[T]) Get(key any) (T, bool) {
	if CheckKey(key) != nil {
		var zero T
		return zero, false
	}
	v, ok := c.items[key]
	return v, ok
}

// Contains reports whether an entry shares item's identity.
func (c *Collection[T]) Contains(item T) bool {
	_, ok := c.Get(c.key(item))
	return ok
}

// Key returns the identity of item.
func (c *Collection[T]) Key(item T) any {
	return c.key(item)
}

// Items returns a snapshot of the current members. Order is not guaranteed.
func (c *Collection[T]) Items() []T {
	out := make([]T, 0, len(c.items))
	for _, v := range c.items {
		out = append(out, v)
	}
	return out
}

// Len returns the number of members.
func (c *Collection[T]) Len() int {
	return len(c.items)
}

// Clear removes every member and returns what was stored.
func (c *Collection[T]) Clear() []T {
	old := c.Items()
	c.items = make(map[any]T)
	return old
}
