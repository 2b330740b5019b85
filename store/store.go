/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package store

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/suparena/workspace/collection"
	"github.com/suparena/workspace/datastore"
	"github.com/suparena/workspace/errors"
	"github.com/suparena/workspace/partition"
	"github.com/suparena/workspace/policy"
	"github.com/suparena/workspace/registry"
	"github.com/suparena/workspace/storagemodels"
)

// bucketKey addresses one bucket of a kind. Unpartitioned kinds use the zero value.
type bucketKey struct {
	partition string
	key       any
}

// epoch changes whenever a snapshot write or reset invalidates what an
// in-flight initialization fetched.
type epoch struct {
	global uint64
	local  uint64
}

// placement is one item destined for one bucket.
type placement struct {
	kind   *registry.Kind
	bucket bucketKey
	item   any
}

// Store owns the storage index of a workspace: kind -> partition -> bucket.
type Store struct {
	reg    *registry.Registry
	parts  *partition.Context
	logger *slog.Logger

	mu          sync.RWMutex
	index       map[reflect.Type]map[bucketKey]*collection.Collection[any]
	policy      *policy.Policy
	epochs      map[reflect.Type]uint64
	globalEpoch uint64

	inits singleflight.Group
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPolicy sets the initialization policy.
func WithPolicy(p *policy.Policy) Option {
	return func(s *Store) {
		s.policy = p
	}
}

// New creates an empty Store for the kinds in reg.
func New(reg *registry.Registry, parts *partition.Context, opts ...Option) *Store {
	s := &Store{
		reg:    reg,
		parts:  parts,
		logger: slog.New(slog.DiscardHandler),
		index:  make(map[reflect.Type]map[bucketKey]*collection.Collection[any]),
		epochs: make(map[reflect.Type]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetPolicy replaces the initialization policy.
func (s *Store) SetPolicy(p *policy.Policy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policy = p
}

// Policy returns the current initialization policy.
func (s *Store) Policy() *policy.Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policy
}

// Dropped is an item a snapshot write removed from the store, addressed by
// its runtime kind and the partition key of the bucket it was dropped from.
type Dropped struct {
	Kind         *registry.Kind
	PartitionKey any
	Item         any
}

// Add upserts items into the bucket of their runtime kind and of every
// non-abstract ancestor. See Apply.
func (s *Store) Add(ctx context.Context, requested reflect.Type, items []any, opts storagemodels.UpdateOptions) error {
	_, err := s.Apply(ctx, requested, items, opts)
	return err
}

// Apply upserts items into the bucket of their runtime kind and of every
// non-abstract ancestor. requested is the kind the caller wrote through;
// with opts.Snapshot its touched buckets are replaced rather than merged,
// and the instances the replacement removed are returned. Instances the
// write put back are not reported. Partition keys and identities are
// resolved before anything is mutated, so an error leaves the store unchanged.
func (s *Store) Apply(ctx context.Context, requested reflect.Type, items []any, opts storagemodels.UpdateOptions) ([]Dropped, error) {
	placements, runtimeKinds, err := s.place(ctx, items)
	if err != nil {
		return nil, err
	}

	var targets map[*registry.Kind]map[bucketKey]bool
	if opts.Snapshot {
		targets, err = s.snapshotTargets(ctx, requested, runtimeKinds, placements)
		if err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var dropped []Dropped
	for k, buckets := range targets {
		s.epochs[k.Type]++
		for bk := range buckets {
			dropped = append(dropped, s.clearBucketLocked(k, bk)...)
		}
	}
	for _, p := range placements {
		if err := s.bucketLocked(p.kind, p.bucket, true).Add(p.item); err != nil {
			return nil, err
		}
	}
	return s.goneLocked(dropped), nil
}

// goneLocked keeps the dropped instances that are still absent from their
// runtime kind's bucket.
func (s *Store) goneLocked(dropped []Dropped) []Dropped {
	out := dropped[:0]
	for _, d := range dropped {
		b := s.bucketLocked(d.Kind, bucketKey{partition: d.Kind.Partition, key: d.PartitionKey}, false)
		if b != nil {
			if cur, ok := b.Get(d.Kind.Key(d.Item)); ok && reflect.TypeOf(cur) == reflect.TypeOf(d.Item) {
				continue
			}
		}
		out = append(out, d)
	}
	return out
}

// Delete removes items from the bucket of their runtime kind and of every
// non-abstract ancestor. Buckets are never created by a delete.
func (s *Store) Delete(ctx context.Context, items []any) error {
	placements, _, err := s.place(ctx, items)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range placements {
		b := s.bucketLocked(p.kind, p.bucket, false)
		if b == nil {
			continue
		}
		id := p.kind.Key(p.item)
		if cur, ok := b.Get(id); ok && reflect.TypeOf(cur) == reflect.TypeOf(p.item) {
			b.RemoveKey(id)
		}
	}
	return nil
}

// Query returns the contents of kind's bucket for the current partition.
// Partitioned kinds without a current key read the union of every known
// bucket. A missing bucket is initialized according to the policy; a
// failed initialization returns the error and leaves the store unchanged.
func (s *Store) Query(ctx context.Context, kind *registry.Kind) ([]any, error) {
	if kind.Abstract {
		return nil, errors.NewValidationError(kind.Name, "abstract kinds have no bucket")
	}

	key := s.parts.QueryKey(ctx, kind)
	if kind.Partitioned() && partition.IsUnset(key) {
		return s.union(kind), nil
	}
	if err := checkComparable(kind, key); err != nil {
		return nil, err
	}

	bk := bucketKey{partition: kind.Partition, key: key}
	s.mu.RLock()
	b := s.bucketLocked(kind, bk, false)
	var items []any
	if b != nil {
		items = b.Items()
	}
	s.mu.RUnlock()
	if b != nil {
		return items, nil
	}

	return s.initialize(ctx, kind, bk)
}

// Reset clears buckets. With no kinds everything is dropped. With kinds, the
// buckets of those kinds and their descendants are dropped and the dropped
// instances are removed from every ancestor bucket; a later Query
// initializes them again.
func (s *Store) Reset(kinds ...reflect.Type) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(kinds) == 0 {
		s.index = make(map[reflect.Type]map[bucketKey]*collection.Collection[any])
		s.globalEpoch++
		return
	}

	for _, t := range kinds {
		k, ok := s.reg.Lookup(t)
		if !ok {
			continue
		}
		for _, rk := range append([]*registry.Kind{k}, s.reg.Descendants(t)...) {
			s.epochs[rk.Type]++
			for bk := range s.index[rk.Type] {
				s.clearBucketLocked(rk, bk)
			}
			delete(s.index, rk.Type)
		}
	}
}

// Buckets returns the number of buckets that exist for t.
func (s *Store) Buckets(t reflect.Type) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.index[t])
}

// Len returns the number of items held for t across all of its buckets.
func (s *Store) Len(t reflect.Type) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, b := range s.index[t] {
		n += b.Len()
	}
	return n
}

// place groups items by runtime kind and resolves the bucket of every
// (item, storage kind) pair.
func (s *Store) place(ctx context.Context, items []any) ([]placement, []*registry.Kind, error) {
	var placements []placement
	var runtimeKinds []*registry.Kind
	seen := make(map[*registry.Kind]bool)

	for _, item := range items {
		k, err := s.reg.KindOfItem(item)
		if err != nil {
			return nil, nil, err
		}
		if !seen[k] {
			seen[k] = true
			runtimeKinds = append(runtimeKinds, k)
		}
		for _, sk := range s.reg.StorageKinds(k.Type) {
			key, err := s.parts.ResolveKey(ctx, sk, item)
			if err != nil {
				return nil, nil, err
			}
			if err := checkComparable(sk, key); err != nil {
				return nil, nil, err
			}
			if err := collection.CheckKey(sk.Key(item)); err != nil {
				return nil, nil, err
			}
			placements = append(placements, placement{
				kind:   sk,
				bucket: bucketKey{partition: sk.Partition, key: key},
				item:   item,
			})
		}
	}
	return placements, runtimeKinds, nil
}

// snapshotTargets returns the buckets a snapshot write replaces: those of the
// requested kind touched by the items, or its current bucket when there are
// no items. Unregistered or abstract requests fall back to the runtime kinds.
func (s *Store) snapshotTargets(ctx context.Context, requested reflect.Type, runtimeKinds []*registry.Kind, placements []placement) (map[*registry.Kind]map[bucketKey]bool, error) {
	var kinds []*registry.Kind
	if rk, ok := s.reg.Lookup(requested); ok && !rk.Abstract {
		kinds = []*registry.Kind{rk}
	} else {
		for _, k := range runtimeKinds {
			if !k.Abstract {
				kinds = append(kinds, k)
			}
		}
	}

	targets := make(map[*registry.Kind]map[bucketKey]bool, len(kinds))
	for _, k := range kinds {
		targets[k] = make(map[bucketKey]bool)
		for _, p := range placements {
			if p.kind == k {
				targets[k][p.bucket] = true
			}
		}
		if len(targets[k]) > 0 {
			continue
		}
		var key any
		if k.Partitioned() {
			key = s.parts.Current(ctx, k.Partition)
			if partition.IsUnset(key) {
				return nil, errors.NewPartitionConfigurationError(k.Name, k.Partition)
			}
		}
		targets[k][bucketKey{partition: k.Partition, key: key}] = true
	}
	return targets, nil
}

func (s *Store) bucketLocked(k *registry.Kind, bk bucketKey, create bool) *collection.Collection[any] {
	buckets, ok := s.index[k.Type]
	if !ok {
		if !create {
			return nil
		}
		buckets = make(map[bucketKey]*collection.Collection[any])
		s.index[k.Type] = buckets
	}
	b, ok := buckets[bk]
	if !ok && create {
		b = collection.New[any](k.Key)
		buckets[bk] = b
	}
	return b
}

// clearBucketLocked empties one bucket, then removes the same instances from
// every ancestor and descendant bucket holding them. The local bucket is
// cleared first so the cascade knows exactly what was dropped. Each dropped
// instance is reported once, against its runtime kind.
func (s *Store) clearBucketLocked(k *registry.Kind, bk bucketKey) []Dropped {
	b := s.bucketLocked(k, bk, false)
	if b == nil {
		return nil
	}
	removed := b.Clear()
	if len(removed) == 0 {
		return nil
	}

	reported := make([]bool, len(removed))
	var dropped []Dropped
	for i, item := range removed {
		if reflect.TypeOf(item) == k.Type {
			reported[i] = true
			dropped = append(dropped, Dropped{Kind: k, PartitionKey: bk.key, Item: item})
		}
	}

	related := append(s.reg.Ancestors(k.Type), s.reg.Descendants(k.Type)...)
	for _, rel := range related {
		for i, item := range removed {
			if !rel.Accepts(item) {
				continue
			}
			id := rel.Key(item)
			for _, rk := range s.candidateKeysLocked(rel, item, bk) {
				rb := s.index[rel.Type][rk]
				cur, ok := rb.Get(id)
				if !ok || reflect.TypeOf(cur) != reflect.TypeOf(item) {
					continue
				}
				rb.RemoveKey(id)
				if !reported[i] && rel.Type == reflect.TypeOf(item) {
					reported[i] = true
					dropped = append(dropped, Dropped{Kind: rel, PartitionKey: rk.key, Item: item})
				}
			}
		}
	}

	for i, item := range removed {
		if reported[i] {
			continue
		}
		if d, ok := s.runtimeDrop(item, bk); ok {
			dropped = append(dropped, d)
		}
	}
	return dropped
}

// runtimeDrop addresses item by its runtime kind when that kind's bucket did
// not hold it.
func (s *Store) runtimeDrop(item any, src bucketKey) (Dropped, bool) {
	rk, ok := s.reg.Lookup(reflect.TypeOf(item))
	if !ok {
		return Dropped{}, false
	}
	if !rk.Partitioned() {
		return Dropped{Kind: rk, Item: item}, true
	}
	if pk, ok := rk.PartitionKey(item); ok && pk != nil && collection.CheckKey(pk) == nil {
		return Dropped{Kind: rk, PartitionKey: pk, Item: item}, true
	}
	if rk.Partition == src.partition {
		return Dropped{Kind: rk, PartitionKey: src.key, Item: item}, true
	}
	return Dropped{}, false
}

// candidateKeysLocked returns the existing buckets of rel that may hold item,
// which was dropped from a bucket addressed by src.
func (s *Store) candidateKeysLocked(rel *registry.Kind, item any, src bucketKey) []bucketKey {
	buckets := s.index[rel.Type]
	if len(buckets) == 0 {
		return nil
	}

	var want *bucketKey
	switch {
	case !rel.Partitioned():
		want = &bucketKey{}
	case rel.Partition == src.partition:
		want = &bucketKey{partition: rel.Partition, key: src.key}
	default:
		if pk, ok := rel.PartitionKey(item); ok && collection.CheckKey(pk) == nil {
			want = &bucketKey{partition: rel.Partition, key: pk}
		}
	}
	if want == nil {
		out := make([]bucketKey, 0, len(buckets))
		for bk := range buckets {
			out = append(out, bk)
		}
		return out
	}
	if _, ok := buckets[*want]; ok {
		return []bucketKey{*want}
	}
	return nil
}

func (s *Store) union(k *registry.Kind) []any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []any
	for _, b := range s.index[k.Type] {
		out = append(out, b.Items()...)
	}
	return out
}

func (s *Store) epochLocked(t reflect.Type) epoch {
	return epoch{global: s.globalEpoch, local: s.epochs[t]}
}

// initialize fills a missing bucket from the policy. Concurrent callers for
// the same bucket share one fetch. The fetched items are only stored if no
// snapshot write or reset touched the kind while the fetch was running.
func (s *Store) initialize(ctx context.Context, kind *registry.Kind, bk bucketKey) ([]any, error) {
	s.mu.RLock()
	pol := s.policy
	s.mu.RUnlock()

	mode := pol.Mode(kind.Type)
	if mode == policy.ModeUnset || mode == policy.ModeDisabled {
		return nil, nil
	}

	flightKey := fmt.Sprintf("%s|%s|%T:%v", kind.Name, bk.partition, bk.key, bk.key)
	v, err, _ := s.inits.Do(flightKey, func() (any, error) {
		s.mu.RLock()
		start := s.epochLocked(kind.Type)
		if b := s.bucketLocked(kind, bk, false); b != nil {
			items := b.Items()
			s.mu.RUnlock()
			return items, nil
		}
		s.mu.RUnlock()

		fetched, err := s.fetch(ctx, pol, mode, kind, bk)
		if err != nil {
			s.logger.ErrorContext(ctx, "bucket initialization failed",
				"kind", kind.Name,
				"partition", bk.partition,
				"mode", mode.String(),
				"error", err,
			)
			return nil, err
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.epochLocked(kind.Type) != start {
			// Superseded by a snapshot write or reset; keep the newer state.
			if b := s.bucketLocked(kind, bk, false); b != nil {
				return b.Items(), nil
			}
			return []any(nil), nil
		}
		if b := s.bucketLocked(kind, bk, false); b != nil {
			return b.Items(), nil
		}
		b := s.bucketLocked(kind, bk, true)
		if err := b.AddRange(fetched); err != nil {
			return nil, err
		}
		s.propagateLocked(kind, bk, b.Items())

		s.logger.DebugContext(ctx, "bucket initialized",
			"kind", kind.Name,
			"partition", bk.partition,
			"mode", mode.String(),
			"items", b.Len(),
		)
		return b.Items(), nil
	})
	if err != nil {
		return nil, fmt.Errorf("initializing %s: %w", kind.Name, err)
	}
	items, _ := v.([]any)
	return items, nil
}

// fetch runs the generator or the source and keeps the items that belong in bk.
func (s *Store) fetch(ctx context.Context, pol *policy.Policy, mode policy.Mode, kind *registry.Kind, bk bucketKey) ([]any, error) {
	var (
		raw []any
		err error
	)
	switch mode {
	case policy.ModeFunction:
		gen, _ := pol.Generator(kind.Type)
		raw, err = gen(ctx, bk.key)
	case policy.ModeSource:
		src := pol.Source()
		if ps, ok := src.(datastore.PartitionedSource); ok && kind.Partitioned() {
			raw, err = ps.QueryPartition(ctx, kind, bk.partition, bk.key)
		} else {
			raw, err = src.Query(ctx, kind)
		}
	}
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]any, 0, len(raw))
	for _, item := range raw {
		if !kind.Accepts(item) {
			s.logger.WarnContext(ctx, "initializer returned item of foreign kind",
				"kind", kind.Name,
				"type", fmt.Sprintf("%T", item),
			)
			continue
		}
		if err := collection.CheckKey(kind.Key(item)); err != nil {
			return nil, err
		}
		if kind.Partitioned() {
			if pk, ok := kind.PartitionKey(item); ok && (collection.CheckKey(pk) != nil || pk != bk.key) {
				continue
			}
		}
		out = append(out, item)
	}
	return out, nil
}

// propagateLocked upserts freshly initialized items into ancestor buckets
// that already exist. Missing ancestor buckets are left for their own
// initialization.
func (s *Store) propagateLocked(kind *registry.Kind, src bucketKey, items []any) {
	for _, anc := range s.reg.Ancestors(kind.Type) {
		for _, item := range items {
			var bk bucketKey
			switch {
			case !anc.Partitioned():
			case anc.Partition == src.partition:
				bk = bucketKey{partition: anc.Partition, key: src.key}
			default:
				pk, ok := anc.PartitionKey(item)
				if !ok || collection.CheckKey(pk) != nil {
					continue
				}
				bk = bucketKey{partition: anc.Partition, key: pk}
			}
			if b := s.bucketLocked(anc, bk, false); b != nil {
				if err := b.Add(item); err != nil {
					s.logger.Warn("initialized item not propagated",
						"kind", anc.Name,
						"error", err,
					)
				}
			}
		}
	}
}

func checkComparable(k *registry.Kind, key any) error {
	if key == nil {
		return nil
	}
	if !reflect.TypeOf(key).Comparable() {
		return errors.NewValidationError(k.Partition, fmt.Sprintf("partition key of type %T is not comparable", key))
	}
	return nil
}
