/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package changes

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/suparena/workspace/collection"
	"github.com/suparena/workspace/partition"
	"github.com/suparena/workspace/registry"
	"github.com/suparena/workspace/storagemodels"
)

type chunkKey struct {
	kind      reflect.Type
	partition string
	key       any
}

type pending struct {
	chunk *storagemodels.Chunk
	items *collection.Collection[any]
}

// Scheduler accumulates modified and deleted items per (kind, partition)
// since the last commit. Items are deduplicated by identity, so a sink sees
// each pending change exactly once.
type Scheduler struct {
	reg   *registry.Registry
	parts *partition.Context

	mu       sync.Mutex
	modified map[chunkKey]*pending
	deleted  map[chunkKey]*pending
}

// NewScheduler creates an empty Scheduler.
func NewScheduler(reg *registry.Registry, parts *partition.Context) *Scheduler {
	return &Scheduler{
		reg:      reg,
		parts:    parts,
		modified: make(map[chunkKey]*pending),
		deleted:  make(map[chunkKey]*pending),
	}
}

type entry struct {
	kind  *registry.Kind
	ck    chunkKey
	items []any
}

// group splits items by runtime kind and resolved partition key.
func (s *Scheduler) group(ctx context.Context, items []any) ([]entry, error) {
	idx := make(map[chunkKey]int)
	var out []entry
	for _, item := range items {
		k, err := s.reg.KindOfItem(item)
		if err != nil {
			return nil, err
		}
		key, err := s.parts.ResolveKey(ctx, k, item)
		if err != nil {
			return nil, err
		}
		if err := collection.CheckKey(k.Key(item)); err != nil {
			return nil, err
		}
		ck := chunkKey{kind: k.Type, partition: k.Partition, key: key}
		i, ok := idx[ck]
		if !ok {
			i = len(out)
			idx[ck] = i
			out = append(out, entry{kind: k, ck: ck})
		}
		out[i].items = append(out[i].items, item)
	}
	return out, nil
}

// AddModified records items as pending upserts. A pending deletion of the
// same identity is cancelled. With opts.Snapshot the pending state of each
// touched (kind, partition) is replaced and its chunk is marked as a
// snapshot; the mark covers only that chunk and lasts until the next commit.
func (s *Scheduler) AddModified(ctx context.Context, items []any, opts storagemodels.UpdateOptions) error {
	entries, err := s.group(ctx, items)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entries {
		if opts.Snapshot {
			delete(s.modified, e.ck)
			delete(s.deleted, e.ck)
		}
		p := s.pendingLocked(s.modified, storagemodels.ChangeModified, e)
		if opts.Snapshot {
			p.chunk.Snapshot = true
		}
		if err := p.items.AddRange(e.items); err != nil {
			return err
		}
		if d, ok := s.deleted[e.ck]; ok {
			d.items.RemoveRange(e.items)
			if d.items.Len() == 0 {
				delete(s.deleted, e.ck)
			}
		}
	}
	return nil
}

// AddDeleted records items as pending removals. A pending upsert of the same
// identity is cancelled.
func (s *Scheduler) AddDeleted(ctx context.Context, items []any) error {
	entries, err := s.group(ctx, items)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entries {
		if err := s.deleteLocked(e); err != nil {
			return err
		}
	}
	return nil
}

// AddDeletedIn records items of kind k as pending removals from the bucket
// with partitionKey, without resolving their partition again. It records
// instances the store dropped on its own, such as those replaced by a
// snapshot written through an ancestor kind.
func (s *Scheduler) AddDeletedIn(k *registry.Kind, partitionKey any, items []any) error {
	for _, item := range items {
		if err := collection.CheckKey(k.Key(item)); err != nil {
			return err
		}
	}
	e := entry{
		kind:  k,
		ck:    chunkKey{kind: k.Type, partition: k.Partition, key: partitionKey},
		items: items,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(e)
}

func (s *Scheduler) deleteLocked(e entry) error {
	p := s.pendingLocked(s.deleted, storagemodels.ChangeDeleted, e)
	if err := p.items.AddRange(e.items); err != nil {
		return err
	}
	if m, ok := s.modified[e.ck]; ok {
		m.items.RemoveRange(e.items)
		if m.items.Len() == 0 {
			delete(s.modified, e.ck)
		}
	}
	return nil
}

func (s *Scheduler) pendingLocked(set map[chunkKey]*pending, typ storagemodels.ChangeType, e entry) *pending {
	p, ok := set[e.ck]
	if !ok {
		p = &pending{
			chunk: storagemodels.NewChunk(typ, e.kind, e.ck.partition, e.ck.key),
			items: collection.New[any](e.kind.Key),
		}
		set[e.ck] = p
	}
	return p
}

// Modified returns one chunk per (kind, partition) with pending upserts.
func (s *Scheduler) Modified() []*storagemodels.Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return chunks(s.modified)
}

// Deleted returns one chunk per (kind, partition) with pending removals.
func (s *Scheduler) Deleted() []*storagemodels.Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return chunks(s.deleted)
}

// Pending returns the number of pending items, modified and deleted.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.modified {
		n += p.items.Len()
	}
	for _, p := range s.deleted {
		n += p.items.Len()
	}
	return n
}

// Reset drops pending state. With kinds, only the pending state of those
// kinds and their descendants is dropped, matching what the store clears.
func (s *Scheduler) Reset(kinds ...reflect.Type) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(kinds) == 0 {
		s.modified = make(map[chunkKey]*pending)
		s.deleted = make(map[chunkKey]*pending)
		return
	}
	drop := make(map[reflect.Type]bool, len(kinds))
	for _, t := range kinds {
		drop[t] = true
		for _, d := range s.reg.Descendants(t) {
			drop[d.Type] = true
		}
	}
	for _, set := range []map[chunkKey]*pending{s.modified, s.deleted} {
		for ck := range set {
			if drop[ck.kind] {
				delete(set, ck)
			}
		}
	}
}

// chunks copies the pending sets into chunks ordered by kind name and
// partition key, so commits are deterministic.
func chunks(set map[chunkKey]*pending) []*storagemodels.Chunk {
	out := make([]*storagemodels.Chunk, 0, len(set))
	for _, p := range set {
		c := *p.chunk
		c.Items = p.items.Items()
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind.Name != out[j].Kind.Name {
			return out[i].Kind.Name < out[j].Kind.Name
		}
		return fmt.Sprint(out[i].PartitionKey) < fmt.Sprint(out[j].PartitionKey)
	})
	return out
}
