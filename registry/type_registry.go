/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package registry

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/suparena/workspace/errors"
)

// KeyFunc extracts the identity key of an item stored in a bucket of the kind.
type KeyFunc func(item any) any

// PartitionKeyFunc extracts an item-level partition key. ok=false means the
// item carries no key of its own and the ambient value applies.
type PartitionKeyFunc func(item any) (key any, ok bool)

// Kind describes one registered Go type: its identity, its place in the
// declared hierarchy and the closures used to handle its items without
// reflection at call time.
type Kind struct {
	Name      string
	Type      reflect.Type
	Abstract  bool
	Parents   []reflect.Type
	Partition string

	key          KeyFunc
	partitionKey PartitionKeyFunc
	accepts      func(item any) bool
	newFn        func() any
	indexMap     map[string]string
}

// Key returns the identity key of item as seen by this kind.
func (k *Kind) Key(item any) any {
	if k.key == nil {
		return nil
	}
	return k.key(item)
}

// PartitionKey returns the item-level partition key, if the kind defines one.
func (k *Kind) PartitionKey(item any) (any, bool) {
	if k.partitionKey == nil {
		return nil, false
	}
	return k.partitionKey(item)
}

// Accepts reports whether item can be held by a bucket of this kind.
func (k *Kind) Accepts(item any) bool {
	return k.accepts(item)
}

// New returns a pointer to a zero value of the kind's Go type.
func (k *Kind) New() any {
	return k.newFn()
}

// Partitioned reports whether the kind is associated with a partition dimension.
func (k *Kind) Partitioned() bool {
	return k.Partition != ""
}

func (k *Kind) String() string {
	return k.Name
}

// Option configures a kind at registration time.
type Option func(k *Kind) error

// Abstract marks a kind that never gets its own bucket. Abstract kinds still
// link their parents and children together.
func Abstract() Option {
	return func(k *Kind) error {
		k.Abstract = true
		return nil
	}
}

// WithParents declares the direct parent kinds.
func WithParents(parents ...reflect.Type) Option {
	return func(k *Kind) error {
		k.Parents = append(k.Parents, parents...)
		return nil
	}
}

// Parent declares P as a direct parent kind.
func Parent[P any]() Option {
	return WithParents(reflect.TypeFor[P]())
}

// WithPartition associates the kind with a named partition dimension.
func WithPartition(name string) Option {
	return func(k *Kind) error {
		if name == "" {
			return errors.NewValidationError("partition", "name must not be empty")
		}
		k.Partition = name
		return nil
	}
}

// WithPartitionKey sets the item-level partition key selector. It overrides the
// ambient partition value whenever it returns ok=true.
func WithPartitionKey[T any](fn func(T) (any, bool)) Option {
	return func(k *Kind) error {
		if reflect.TypeFor[T]() != k.Type {
			return errors.NewValidationError("partitionKey", fmt.Sprintf("selector for %s registered on kind %s", reflect.TypeFor[T](), k.Name))
		}
		k.partitionKey = func(item any) (any, bool) {
			v, ok := item.(T)
			if !ok {
				return nil, false
			}
			return fn(v)
		}
		return nil
	}
}

// Registry is the closed set of kinds known to a workspace together with
// their declared parent table.
type Registry struct {
	mu       sync.RWMutex
	kinds    map[reflect.Type]*Kind
	byName   map[string]*Kind
	children map[reflect.Type][]reflect.Type
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		kinds:    make(map[reflect.Type]*Kind),
		byName:   make(map[string]*Kind),
		children: make(map[reflect.Type][]reflect.Type),
	}
}

// Register adds kind T under name. Parent kinds must be registered first and
// T must be assignable to each of them. key may be nil only for abstract kinds.
func Register[T any](r *Registry, name string, key func(T) any, opts ...Option) error {
	t := reflect.TypeFor[T]()
	k := &Kind{
		Name: name,
		Type: t,
		accepts: func(item any) bool {
			_, ok := item.(T)
			return ok
		},
		newFn: func() any { return new(T) },
	}
	if name == "" {
		k.Name = t.String()
	}
	if key != nil {
		k.key = func(item any) any {
			v, ok := item.(T)
			if !ok {
				return nil
			}
			return key(v)
		}
	}
	for _, opt := range opts {
		if err := opt(k); err != nil {
			return err
		}
	}
	if k.key == nil && !k.Abstract {
		return errors.NewValidationError("key", fmt.Sprintf("kind %s needs a key selector", k.Name))
	}
	return r.add(k)
}

// MustRegister is like Register but panics on error. It suits init-time tables.
func MustRegister[T any](r *Registry, name string, key func(T) any, opts ...Option) {
	if err := Register[T](r, name, key, opts...); err != nil {
		panic(fmt.Sprintf("registry: %v", err))
	}
}

func (r *Registry) add(k *Kind) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.kinds[k.Type]; exists {
		return errors.NewAlreadyExistsError("kind", k.Type.String())
	}
	if _, exists := r.byName[k.Name]; exists {
		return errors.NewAlreadyExistsError("kind", k.Name)
	}
	for _, p := range k.Parents {
		if _, ok := r.kinds[p]; !ok {
			return errors.NewValidationError("parents", fmt.Sprintf("parent %s of %s is not registered", p, k.Name))
		}
		if !k.Type.AssignableTo(p) {
			return errors.NewValidationError("parents", fmt.Sprintf("%s is not assignable to parent %s", k.Type, p))
		}
	}

	r.kinds[k.Type] = k
	r.byName[k.Name] = k
	for _, p := range k.Parents {
		r.children[p] = append(r.children[p], k.Type)
	}
	return nil
}

// Lookup returns the kind registered for t.
func (r *Registry) Lookup(t reflect.Type) (*Kind, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.kinds[t]
	return k, ok
}

// KindOf returns the kind registered for T.
func KindOf[T any](r *Registry) (*Kind, bool) {
	return r.Lookup(reflect.TypeFor[T]())
}

// KindOfItem returns the kind of item's runtime type.
func (r *Registry) KindOfItem(item any) (*Kind, error) {
	t := reflect.TypeOf(item)
	if t == nil {
		return nil, errors.NewValidationError("item", "nil item")
	}
	k, ok := r.Lookup(t)
	if !ok {
		return nil, errors.NewUnknownKindError(t.String())
	}
	return k, nil
}

// ByName returns the kind registered under name.
func (r *Registry) ByName(name string) (*Kind, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.byName[name]
	return k, ok
}

// Kinds returns every registered kind sorted by name.
func (r *Registry) Kinds() []*Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Kind, 0, len(r.kinds))
	for _, k := range r.kinds {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Ancestors returns every transitive non-abstract ancestor of t, each once.
// Abstract ancestors are traversed but not returned.
func (r *Registry) Ancestors(t reflect.Type) []*Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.walk(t, func(k *Kind) []reflect.Type { return k.Parents })
}

// Descendants returns every transitive non-abstract descendant of t, each once.
func (r *Registry) Descendants(t reflect.Type) []*Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.walk(t, func(k *Kind) []reflect.Type { return r.children[k.Type] })
}

// StorageKinds returns the kind of t followed by its non-abstract ancestors.
// The kind itself is omitted when abstract.
func (r *Registry) StorageKinds(t reflect.Type) []*Kind {
	k, ok := r.Lookup(t)
	if !ok {
		return nil
	}
	var out []*Kind
	if !k.Abstract {
		out = append(out, k)
	}
	return append(out, r.Ancestors(t)...)
}

func (r *Registry) walk(t reflect.Type, next func(*Kind) []reflect.Type) []*Kind {
	start, ok := r.kinds[t]
	if !ok {
		return nil
	}
	seen := map[reflect.Type]bool{t: true}
	queue := append([]reflect.Type(nil), next(start)...)
	var out []*Kind
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		k, ok := r.kinds[cur]
		if !ok {
			continue
		}
		if !k.Abstract {
			out = append(out, k)
		}
		queue = append(queue, next(k)...)
	}
	return out
}
