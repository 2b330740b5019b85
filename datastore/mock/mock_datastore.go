/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package mock provides in-memory implementations of the datastore contracts for testing
package mock

import (
	"context"
	"reflect"
	"sync"

	"github.com/suparena/workspace/datastore"
	"github.com/suparena/workspace/partition"
	"github.com/suparena/workspace/registry"
	"github.com/suparena/workspace/storagemodels"
)

// Op names a recorded call.
type Op string

const (
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Call is one recorded UpdateItems or DeleteItems call.
type Call struct {
	Op           Op
	Items        []any
	PartitionKey any
	Options      storagemodels.UpdateOptions
}

// DataStore is an in-memory datastore.Sink and datastore.PartitionedSource
type DataStore struct {
	reg *registry.Registry

	mu          sync.RWMutex
	data        map[reflect.Type]map[any]map[any]any
	calls       []Call
	commits     []storagemodels.CommitOptions
	queries     int
	queryFunc   func(ctx context.Context, kind *registry.Kind) ([]any, error)
	updateError error
	deleteError error
	commitError error
	queryError  error
}

var (
	_ datastore.Sink              = (*DataStore)(nil)
	_ datastore.PartitionedSource = (*DataStore)(nil)
)

// New creates a new mock DataStore for the kinds in reg
func New(reg *registry.Registry) *DataStore {
	return &DataStore{
		reg:  reg,
		data: make(map[reflect.Type]map[any]map[any]any),
	}
}

// WithQueryFunc sets a custom query function for testing
func (m *DataStore) WithQueryFunc(f func(ctx context.Context, kind *registry.Kind) ([]any, error)) *DataStore {
	m.queryFunc = f
	return m
}

// WithUpdateError makes UpdateItems return an error
func (m *DataStore) WithUpdateError(err error) *DataStore {
	m.updateError = err
	return m
}

// WithDeleteError makes DeleteItems return an error
func (m *DataStore) WithDeleteError(err error) *DataStore {
	m.deleteError = err
	return m
}

// WithCommitError makes Commit return an error
func (m *DataStore) WithCommitError(err error) *DataStore {
	m.commitError = err
	return m
}

// WithQueryError makes Query and QueryPartition return an error
func (m *DataStore) WithQueryError(err error) *DataStore {
	m.queryError = err
	return m
}

// UpdateItems upserts items under their runtime kind
func (m *DataStore) UpdateItems(ctx context.Context, items any, opts ...storagemodels.UpdateOption) error {
	if m.updateError != nil {
		return m.updateError
	}
	list := datastore.Items(items)
	o := storagemodels.ApplyUpdateOptions(opts...)

	m.mu.Lock()
	defer m.mu.Unlock()

	var callKey any
	for _, item := range list {
		k, pk, err := m.resolve(ctx, item)
		if err != nil {
			return err
		}
		callKey = pk
		bucket := m.bucketLocked(k.Type, pk)
		bucket[k.Key(item)] = item
	}
	m.calls = append(m.calls, Call{Op: OpUpdate, Items: list, PartitionKey: callKey, Options: o})
	return nil
}

// DeleteItems removes items under their runtime kind
func (m *DataStore) DeleteItems(ctx context.Context, items any) error {
	if m.deleteError != nil {
		return m.deleteError
	}
	list := datastore.Items(items)

	m.mu.Lock()
	defer m.mu.Unlock()

	var callKey any
	for _, item := range list {
		k, pk, err := m.resolve(ctx, item)
		if err != nil {
			return err
		}
		callKey = pk
		delete(m.bucketLocked(k.Type, pk), k.Key(item))
	}
	m.calls = append(m.calls, Call{Op: OpDelete, Items: list, PartitionKey: callKey})
	return nil
}

// Commit records the commit
func (m *DataStore) Commit(ctx context.Context, opts ...storagemodels.CommitOption) error {
	if m.commitError != nil {
		return m.commitError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commits = append(m.commits, storagemodels.ApplyCommitOptions(opts...))
	return nil
}

// PartitionOf reports the partition registered for t
func (m *DataStore) PartitionOf(t reflect.Type) (string, bool) {
	k, ok := m.reg.Lookup(t)
	if !ok || !k.Partitioned() {
		return "", false
	}
	return k.Partition, true
}

// Query returns every stored item the kind accepts, across partitions
func (m *DataStore) Query(ctx context.Context, kind *registry.Kind) ([]any, error) {
	return m.query(ctx, kind, func(any) bool { return true })
}

// QueryPartition returns the stored items the kind accepts in one partition
func (m *DataStore) QueryPartition(ctx context.Context, kind *registry.Kind, name string, key any) ([]any, error) {
	return m.query(ctx, kind, func(pk any) bool { return pk == key })
}

func (m *DataStore) query(ctx context.Context, kind *registry.Kind, match func(pk any) bool) ([]any, error) {
	m.mu.Lock()
	m.queries++
	m.mu.Unlock()

	if m.queryError != nil {
		return nil, m.queryError
	}
	if m.queryFunc != nil {
		return m.queryFunc(ctx, kind)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []any
	for _, byPartition := range m.data {
		for pk, bucket := range byPartition {
			if !match(pk) {
				continue
			}
			for _, item := range bucket {
				if kind.Accepts(item) {
					results = append(results, item)
				}
			}
		}
	}
	return results, nil
}

func (m *DataStore) resolve(ctx context.Context, item any) (*registry.Kind, any, error) {
	k, err := m.reg.KindOfItem(item)
	if err != nil {
		return nil, nil, err
	}
	if !k.Partitioned() {
		return k, nil, nil
	}
	if pk, ok := k.PartitionKey(item); ok {
		return k, pk, nil
	}
	if pk, ok := partition.FromContext(ctx, k.Partition); ok {
		return k, pk, nil
	}
	return k, nil, nil
}

func (m *DataStore) bucketLocked(t reflect.Type, pk any) map[any]any {
	byPartition, ok := m.data[t]
	if !ok {
		byPartition = make(map[any]map[any]any)
		m.data[t] = byPartition
	}
	bucket, ok := byPartition[pk]
	if !ok {
		bucket = make(map[any]any)
		byPartition[pk] = bucket
	}
	return bucket
}

// Helper methods for testing

// Seed stores items directly, bypassing call recording
func (m *DataStore) Seed(ctx context.Context, items ...any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range items {
		k, pk, err := m.resolve(ctx, item)
		if err != nil {
			return err
		}
		m.bucketLocked(k.Type, pk)[k.Key(item)] = item
	}
	return nil
}

// Items returns the stored items of runtime type t in partition pk
func (m *DataStore) Items(t reflect.Type, pk any) []any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []any
	for _, item := range m.data[t][pk] {
		out = append(out, item)
	}
	return out
}

// Count returns the number of stored items across all kinds and partitions
func (m *DataStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, byPartition := range m.data {
		for _, bucket := range byPartition {
			n += len(bucket)
		}
	}
	return n
}

// Calls returns a copy of the recorded update and delete calls
func (m *DataStore) Calls() []Call {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Call(nil), m.calls...)
}

// Commits returns a copy of the recorded commits
func (m *DataStore) Commits() []storagemodels.CommitOptions {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]storagemodels.CommitOptions(nil), m.commits...)
}

// Queries returns how many times Query or QueryPartition ran
func (m *DataStore) Queries() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.queries
}

// Clear removes all data and recorded calls
func (m *DataStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[reflect.Type]map[any]map[any]any)
	m.calls = nil
	m.commits = nil
	m.queries = 0
}
