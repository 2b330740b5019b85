/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package datastore

import (
	"context"
	"reflect"

	"github.com/suparena/workspace/registry"
	"github.com/suparena/workspace/storagemodels"
)

// Source is an external query source used to initialize empty buckets.
type Source interface {
	Query(ctx context.Context, kind *registry.Kind) ([]any, error)
}

// PartitionedSource is a Source that can restrict a query to one partition.
type PartitionedSource interface {
	Source
	QueryPartition(ctx context.Context, kind *registry.Kind, partition string, key any) ([]any, error)
}

// Sink receives committed changes. Items passed to UpdateItems and
// DeleteItems may mix kinds; a sink groups them by runtime type itself.
// Partition keys for partitioned kinds travel in ctx (see partition.WithKey)
// unless the item carries its own.
type Sink interface {
	UpdateItems(ctx context.Context, items any, opts ...storagemodels.UpdateOption) error
	DeleteItems(ctx context.Context, items any) error
	Commit(ctx context.Context, opts ...storagemodels.CommitOption) error
	// PartitionOf returns the partition dimension the sink stores t under,
	// or false when the sink does not partition t.
	PartitionOf(t reflect.Type) (string, bool)
}

// Items normalizes a single item, a slice or an array of items into []any.
func Items(v any) []any {
	switch vv := v.(type) {
	case nil:
		return nil
	case []any:
		return vv
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out = append(out, rv.Index(i).Interface())
		}
		return out
	default:
		return []any{v}
	}
}
