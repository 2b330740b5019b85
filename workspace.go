/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package workspace

import (
	"context"
	"fmt"
	"reflect"

	"github.com/suparena/workspace/changes"
	"github.com/suparena/workspace/datastore"
	"github.com/suparena/workspace/errors"
	"github.com/suparena/workspace/partition"
	"github.com/suparena/workspace/policy"
	"github.com/suparena/workspace/registry"
	"github.com/suparena/workspace/store"
	"github.com/suparena/workspace/storagemodels"
)

// Workspace is an in-memory, partition-aware object store that buffers
// pending changes until they are committed to a sink. A Workspace has a
// single logical owner: at most one CommitTo may run at a time.
type Workspace struct {
	name      string
	reg       *registry.Registry
	parts     *partition.Context
	store     *store.Store
	scheduler *changes.Scheduler
	logger    *Logger
}

var _ datastore.Sink = (*Workspace)(nil)

// Option configures a Workspace.
type Option func(*config) error

type config struct {
	name       string
	policy     *policy.Policy
	logger     *Logger
	dimensions []partition.Dimension
}

// WithName names the workspace in logs and commit origins.
func WithName(name string) Option {
	return func(c *config) error {
		c.name = name
		return nil
	}
}

// WithPolicy sets the initialization policy.
func WithPolicy(p *policy.Policy) Option {
	return func(c *config) error {
		c.policy = p
		return nil
	}
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *Logger) Option {
	return func(c *config) error {
		c.logger = l
		return nil
	}
}

// WithPartitions defines partition dimensions.
func WithPartitions(dims ...partition.Dimension) Option {
	return func(c *config) error {
		c.dimensions = append(c.dimensions, dims...)
		return nil
	}
}

// New creates a Workspace for the kinds registered in reg.
func New(reg *registry.Registry, opts ...Option) (*Workspace, error) {
	if reg == nil {
		return nil, errors.NewValidationError("registry", "must not be nil")
	}
	cfg := &config{name: "workspace"}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.logger == nil {
		cfg.logger = NoopLogger()
	}
	logger := cfg.logger.WithWorkspace(cfg.name)

	parts := partition.NewContext(reg)
	for _, dim := range cfg.dimensions {
		if err := parts.Define(dim); err != nil {
			return nil, err
		}
	}

	return &Workspace{
		name:      cfg.name,
		reg:       reg,
		parts:     parts,
		store:     store.New(reg, parts, store.WithPolicy(cfg.policy), store.WithLogger(logger.Logger)),
		scheduler: changes.NewScheduler(reg, parts),
		logger:    logger,
	}, nil
}

// Name returns the workspace name.
func (w *Workspace) Name() string { return w.name }

// Registry returns the kind registry.
func (w *Workspace) Registry() *registry.Registry { return w.reg }

// Partitions returns the partition context holding the ambient values.
func (w *Workspace) Partitions() *partition.Context { return w.parts }

// Store returns the underlying storage index.
func (w *Workspace) Store() *store.Store { return w.store }

// Pending returns the number of items waiting for a commit.
func (w *Workspace) Pending() int { return w.scheduler.Pending() }

// UpdateItems upserts a single item or a slice of items of any registered kinds.
func (w *Workspace) UpdateItems(ctx context.Context, items any, opts ...storagemodels.UpdateOption) error {
	return w.update(ctx, nil, datastore.Items(items), storagemodels.ApplyUpdateOptions(opts...))
}

// Update upserts items written as kind T. With storagemodels.WithSnapshot the
// T buckets touched by the write are replaced.
func Update[T any](ctx context.Context, w *Workspace, items []T, opts ...storagemodels.UpdateOption) error {
	return w.update(ctx, reflect.TypeFor[T](), datastore.Items(items), storagemodels.ApplyUpdateOptions(opts...))
}

// UpdateOne upserts a single item written as kind T.
func UpdateOne[T any](ctx context.Context, w *Workspace, item T, opts ...storagemodels.UpdateOption) error {
	return w.update(ctx, reflect.TypeFor[T](), []any{item}, storagemodels.ApplyUpdateOptions(opts...))
}

func (w *Workspace) update(ctx context.Context, requested reflect.Type, items []any, opts storagemodels.UpdateOptions) error {
	dropped, err := w.store.Apply(ctx, requested, items, opts)
	if err == nil {
		err = w.scheduler.AddModified(ctx, items, opts)
	}
	if err == nil {
		err = w.scheduleDropped(dropped)
	}
	w.logger.LogUpdate(ctx, len(items), opts.Snapshot, err)
	if err != nil {
		return err
	}

	w.parts.Refresh(items)
	return nil
}

// scheduleDropped records the instances a snapshot write removed as pending
// deletions, so a target loses them too, including those of sibling kinds
// cleared through a shared ancestor.
func (w *Workspace) scheduleDropped(dropped []store.Dropped) error {
	if len(dropped) == 0 {
		return nil
	}
	items := make([]any, 0, len(dropped))
	for _, d := range dropped {
		if err := w.scheduler.AddDeletedIn(d.Kind, d.PartitionKey, []any{d.Item}); err != nil {
			return err
		}
		items = append(items, d.Item)
	}
	w.parts.Evict(items)
	return nil
}

// DeleteItems removes a single item or a slice of items of any registered kinds.
func (w *Workspace) DeleteItems(ctx context.Context, items any) error {
	return w.delete(ctx, datastore.Items(items))
}

// Delete removes items of kind T.
func Delete[T any](ctx context.Context, w *Workspace, items []T) error {
	return w.delete(ctx, datastore.Items(items))
}

// DeleteOne removes a single item of kind T.
func DeleteOne[T any](ctx context.Context, w *Workspace, item T) error {
	return w.delete(ctx, []any{item})
}

func (w *Workspace) delete(ctx context.Context, items []any) error {
	err := w.store.Delete(ctx, items)
	if err == nil {
		err = w.scheduler.AddDeleted(ctx, items)
	}
	w.logger.LogDelete(ctx, len(items), err)
	if err != nil {
		return err
	}
	w.parts.Evict(items)
	return nil
}

// Query returns the items of kind T visible in the current partition.
func Query[T any](ctx context.Context, w *Workspace) ([]T, error) {
	items, err := w.QueryKind(ctx, reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		v, ok := item.(T)
		if !ok {
			return nil, errors.NewValidationError("item", fmt.Sprintf("%T stored in %s bucket", item, reflect.TypeFor[T]()))
		}
		out = append(out, v)
	}
	return out, nil
}

// QueryKind returns the items of kind t visible in the current partition.
func (w *Workspace) QueryKind(ctx context.Context, t reflect.Type) ([]any, error) {
	k, ok := w.reg.Lookup(t)
	if !ok {
		return nil, errors.NewUnknownKindError(t.String())
	}
	return w.store.Query(ctx, k)
}

// PartitionOf returns the partition dimension of t.
func (w *Workspace) PartitionOf(t reflect.Type) (string, bool) {
	a, ok := w.parts.Associated(t)
	return a.Name, ok
}

// Commit is a no-op: a workspace used as a sink holds committed changes in
// its own store already.
func (w *Workspace) Commit(ctx context.Context, opts ...storagemodels.CommitOption) error {
	o := storagemodels.ApplyCommitOptions(opts...)
	w.logger.DebugContext(ctx, "commit received", "origin", o.Origin)
	return nil
}

// CommitTo forwards every pending change to target, then commits target.
// Chunks of kinds the target partitions are forwarded with their partition
// key scoped to the call. The first partition that cannot be resolved aborts
// the commit; chunks already forwarded are not rolled back and the pending
// state is kept. Committing to the workspace itself does nothing.
func (w *Workspace) CommitTo(ctx context.Context, target datastore.Sink, opts ...storagemodels.CommitOption) error {
	if target == nil {
		return errors.NewValidationError("target", "must not be nil")
	}
	if t, ok := target.(*Workspace); ok && t == w {
		return nil
	}

	modified := w.scheduler.Modified()
	deleted := w.scheduler.Deleted()
	total := len(modified) + len(deleted)
	if total == 0 {
		return nil
	}

	forwarded := 0
	for _, c := range modified {
		chunk := c
		err := w.forward(ctx, target, chunk, func(ctx context.Context) error {
			uo := storagemodels.UpdateOptions{Snapshot: chunk.Snapshot}
			return target.UpdateItems(ctx, chunk.Items, uo.Options()...)
		})
		if err != nil {
			w.logger.LogCommit(ctx, total, forwarded, err)
			return err
		}
		forwarded++
	}
	for _, c := range deleted {
		chunk := c
		err := w.forward(ctx, target, chunk, func(ctx context.Context) error {
			return target.DeleteItems(ctx, chunk.Items)
		})
		if err != nil {
			w.logger.LogCommit(ctx, total, forwarded, err)
			return err
		}
		forwarded++
	}

	if len(opts) == 0 {
		opts = []storagemodels.CommitOption{storagemodels.WithOrigin(w.name)}
	}
	if err := target.Commit(ctx, opts...); err != nil {
		err = fmt.Errorf("committing target: %w", err)
		w.logger.LogCommit(ctx, total, forwarded, err)
		return err
	}

	w.scheduler.Reset()
	w.logger.LogCommit(ctx, total, forwarded, nil)
	return nil
}

func (w *Workspace) forward(ctx context.Context, target datastore.Sink, c *storagemodels.Chunk, send func(context.Context) error) error {
	if !c.Partitioned() {
		return send(ctx)
	}
	name, ok := target.PartitionOf(c.Kind.Type)
	if !ok {
		return send(ctx)
	}

	inst, err := w.parts.InstanceByKey(ctx, c.PartitionName, c.PartitionKey)
	if err != nil {
		return errors.NewCrossPartitionResolutionError(c.Kind.Name, c.PartitionName, c.PartitionKey, err)
	}
	key := c.PartitionKey
	if dim, ok := w.parts.Dimension(c.PartitionName); ok && dim.KeyOf != nil {
		key = dim.KeyOf(inst)
	}
	return send(partition.WithKey(ctx, name, key))
}

// Reset drops stored buckets, pending changes and ambient partition values.
// With kinds, only the buckets and pending changes of those kinds and their
// descendants are dropped.
func (w *Workspace) Reset(ctx context.Context, kinds ...reflect.Type) {
	w.store.Reset(kinds...)
	w.scheduler.Reset(kinds...)
	if len(kinds) == 0 {
		w.parts.Reset()
	}

	names := make([]string, 0, len(kinds))
	for _, t := range kinds {
		names = append(names, t.String())
	}
	w.logger.LogReset(ctx, names)
}
