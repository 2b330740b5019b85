/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package partition

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/suparena/workspace/errors"
	"github.com/suparena/workspace/registry"
)

type unset struct{}

func (unset) String() string { return "<unset>" }

// Unset is the partition key reported when neither the item, the call
// context nor the ambient state provides a value.
var Unset any = unset{}

// IsUnset reports whether key is the Unset sentinel.
func IsUnset(key any) bool {
	_, ok := key.(unset)
	return ok
}

// Association names the partition dimension of a kind.
type Association struct {
	Name  string
	Owner reflect.Type
}

// Resolver turns a partition key into the full partition instance.
type Resolver func(ctx context.Context, key any) (any, error)

// Dimension describes a named partition dimension.
type Dimension struct {
	Name string
	// Resolve loads the instance for a key. Required for cross-workspace commits.
	Resolve Resolver
	// KeyOf extracts the key from an instance. When nil the instance is its own key.
	KeyOf func(instance any) any
	// Type is the Go type of the instances. Writes of that type through a
	// workspace refresh the resolved-instance cache.
	Type reflect.Type
}

func (d Dimension) keyOf(instance any) any {
	if d.KeyOf == nil {
		return instance
	}
	return d.KeyOf(instance)
}

type ctxKey struct{ name string }

// WithKey returns a copy of ctx carrying key for the named partition. Values
// carried by the context take precedence over the ambient state of any
// Context the call reaches, and vanish when the call returns.
func WithKey(ctx context.Context, name string, key any) context.Context {
	return context.WithValue(ctx, ctxKey{name: name}, key)
}

// FromContext returns the call-scoped key for the named partition.
func FromContext(ctx context.Context, name string) (any, bool) {
	if ctx == nil {
		return nil, false
	}
	v := ctx.Value(ctxKey{name: name})
	if v == nil {
		return nil, false
	}
	return v, true
}

// Context tracks the ambient partition values of one workspace and resolves
// partition keys for kinds registered in its registry.
type Context struct {
	reg *registry.Registry

	mu        sync.RWMutex
	current   map[string]any
	instances map[string]any
	dims      map[string]Dimension
	resolved  map[string]map[any]any
}

// NewContext creates a Context bound to reg.
func NewContext(reg *registry.Registry) *Context {
	return &Context{
		reg:       reg,
		current:   make(map[string]any),
		instances: make(map[string]any),
		dims:      make(map[string]Dimension),
		resolved:  make(map[string]map[any]any),
	}
}

// Define registers a partition dimension.
func (c *Context) Define(dim Dimension) error {
	if dim.Name == "" {
		return errors.NewValidationError("name", "partition dimension needs a name")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.dims[dim.Name]; exists {
		return errors.NewAlreadyExistsError("partition", dim.Name)
	}
	c.dims[dim.Name] = dim
	return nil
}

// Dimension returns the named dimension.
func (c *Context) Dimension(name string) (Dimension, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.dims[name]
	return d, ok
}

// Associated returns the partition association of t, or false for
// unpartitioned and unknown types.
func (c *Context) Associated(t reflect.Type) (Association, bool) {
	k, ok := c.reg.Lookup(t)
	if !ok || !k.Partitioned() {
		return Association{}, false
	}
	return Association{Name: k.Partition, Owner: k.Type}, true
}

// Current returns the value of the named partition for this call: the
// context value if present, else the ambient value, else Unset.
func (c *Context) Current(ctx context.Context, name string) any {
	if v, ok := FromContext(ctx, name); ok {
		return v
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if v, ok := c.current[name]; ok {
		return v
	}
	return Unset
}

// Set replaces the ambient value of the named partition and returns the
// previous one. Setting Unset removes the value.
func (c *Context) Set(name string, key any) (previous any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	previous = Unset
	if v, ok := c.current[name]; ok {
		previous = v
	}
	delete(c.instances, name)
	if key == nil || IsUnset(key) {
		delete(c.current, name)
	} else {
		c.current[name] = key
	}
	return previous
}

// Scope sets the ambient value and returns a func restoring the previous
// one. Callers defer the restore so it runs on every exit path.
func (c *Context) Scope(name string, key any) (restore func()) {
	previous := c.Set(name, key)
	return func() { c.Set(name, previous) }
}

// SetInstance makes instance the ambient partition for name and returns the
// previous ambient key.
func (c *Context) SetInstance(name string, instance any) (previous any) {
	key := instance
	if dim, ok := c.Dimension(name); ok {
		key = dim.keyOf(instance)
	}
	previous = c.Set(name, key)
	c.mu.Lock()
	c.instances[name] = instance
	c.mu.Unlock()
	return previous
}

// Instance returns the ambient partition instance set through SetInstance.
func (c *Context) Instance(name string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.instances[name]
	return v, ok
}

// InstanceByKey resolves the full partition instance for key. Resolved
// instances are cached until Refresh, Evict or Reset touches them.
func (c *Context) InstanceByKey(ctx context.Context, name string, key any) (any, error) {
	c.mu.RLock()
	inst, cached := c.resolved[name][key]
	dim, ok := c.dims[name]
	c.mu.RUnlock()
	if cached {
		return inst, nil
	}
	if !ok || dim.Resolve == nil {
		return nil, errors.NewNotFoundError("partition resolver", name)
	}

	inst, err := dim.Resolve(ctx, key)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, errors.NewNotFoundError(name, fmt.Sprint(key))
	}

	c.mu.Lock()
	if c.resolved[name] == nil {
		c.resolved[name] = make(map[any]any)
	}
	c.resolved[name][key] = inst
	c.mu.Unlock()
	return inst, nil
}

// Refresh updates cached partition instances from written items whose type
// matches a dimension's instance type. It returns the number of refreshed
// instances.
func (c *Context) Refresh(items []any) int {
	return c.touch(items, func(m map[any]any, key, item any) { m[key] = item })
}

// Evict drops cached partition instances matching deleted items.
func (c *Context) Evict(items []any) int {
	return c.touch(items, func(m map[any]any, key, _ any) { delete(m, key) })
}

func (c *Context) touch(items []any, apply func(m map[any]any, key, item any)) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for name, dim := range c.dims {
		if dim.Type == nil {
			continue
		}
		for _, item := range items {
			if reflect.TypeOf(item) != dim.Type {
				continue
			}
			if c.resolved[name] == nil {
				c.resolved[name] = make(map[any]any)
			}
			apply(c.resolved[name], dim.keyOf(item), item)
			n++
		}
	}
	return n
}

// InstanceByKey resolves the partition instance for key as a P.
func InstanceByKey[P any](ctx context.Context, c *Context, name string, key any) (P, error) {
	var zero P
	inst, err := c.InstanceByKey(ctx, name, key)
	if err != nil {
		return zero, err
	}
	p, ok := inst.(P)
	if !ok {
		return zero, errors.NewValidationError(name, fmt.Sprintf("resolved instance is %T, not %s", inst, reflect.TypeFor[P]()))
	}
	return p, nil
}

// ResolveKey resolves the partition key item is written under in a bucket of
// kind. Unpartitioned kinds resolve to nil. The item-level key wins over the
// call context, which wins over the ambient value; an Unset result is a
// PartitionConfigurationError.
func (c *Context) ResolveKey(ctx context.Context, kind *registry.Kind, item any) (any, error) {
	if !kind.Partitioned() {
		return nil, nil
	}
	if key, ok := kind.PartitionKey(item); ok && key != nil {
		return key, nil
	}
	key := c.Current(ctx, kind.Partition)
	if IsUnset(key) {
		return nil, errors.NewPartitionConfigurationError(kind.Name, kind.Partition)
	}
	return key, nil
}

// QueryKey returns the key a read of kind targets: nil for unpartitioned
// kinds, otherwise the current value, which may be Unset.
func (c *Context) QueryKey(ctx context.Context, kind *registry.Kind) any {
	if !kind.Partitioned() {
		return nil
	}
	return c.Current(ctx, kind.Partition)
}

// Reset drops every ambient value and cached instance. Dimensions stay defined.
func (c *Context) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = make(map[string]any)
	c.instances = make(map[string]any)
	c.resolved = make(map[string]map[any]any)
}
