/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package policy

import (
	"context"
	"maps"
	"reflect"

	"github.com/suparena/workspace/datastore"
)

// Mode is the initialization rule in effect for a kind.
type Mode int

const (
	// ModeUnset means nothing is configured; empty buckets stay empty.
	ModeUnset Mode = iota
	// ModeDisabled means initialization was switched off for the kind.
	ModeDisabled
	// ModeFunction means a per-kind generator feeds the bucket.
	ModeFunction
	// ModeSource means the global source feeds the bucket.
	ModeSource
)

func (m Mode) String() string {
	switch m {
	case ModeDisabled:
		return "disabled"
	case ModeFunction:
		return "function"
	case ModeSource:
		return "source"
	default:
		return "unset"
	}
}

// Generator produces the initial content of a bucket. partitionKey is nil
// for unpartitioned kinds.
type Generator func(ctx context.Context, partitionKey any) ([]any, error)

// GeneratorFunc is the typed form of Generator.
type GeneratorFunc[T any] func(ctx context.Context, partitionKey any) ([]T, error)

// Builder assembles initialization rules. Every method returns a new
// Builder and leaves the receiver untouched.
type Builder struct {
	source     datastore.Source
	generators map[reflect.Type]Generator
	disabled   map[reflect.Type]bool
}

// NewBuilder returns an empty Builder.
func NewBuilder() Builder {
	return Builder{}
}

func (b Builder) clone() Builder {
	return Builder{
		source:     b.source,
		generators: maps.Clone(b.generators),
		disabled:   maps.Clone(b.disabled),
	}
}

// FromSource sets the global fallback source.
func (b Builder) FromSource(src datastore.Source) Builder {
	nb := b.clone()
	nb.source = src
	return nb
}

// FromFunction registers gen as the generator for kind T. It takes priority
// over the global source.
func FromFunction[T any](b Builder, gen GeneratorFunc[T]) Builder {
	return b.WithGenerator(reflect.TypeFor[T](), func(ctx context.Context, partitionKey any) ([]any, error) {
		items, err := gen(ctx, partitionKey)
		if err != nil {
			return nil, err
		}
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = item
		}
		return out, nil
	})
}

// WithGenerator registers an untyped generator for t.
func (b Builder) WithGenerator(t reflect.Type, gen Generator) Builder {
	nb := b.clone()
	if nb.generators == nil {
		nb.generators = make(map[reflect.Type]Generator)
	}
	nb.generators[t] = gen
	return nb
}

// Disable switches initialization off for kind T.
func Disable[T any](b Builder) Builder {
	return b.DisableKind(reflect.TypeFor[T]())
}

// Enable switches initialization back on for kind T.
func Enable[T any](b Builder) Builder {
	return b.EnableKind(reflect.TypeFor[T]())
}

// DisableKind switches initialization off for t.
func (b Builder) DisableKind(t reflect.Type) Builder {
	nb := b.clone()
	if nb.disabled == nil {
		nb.disabled = make(map[reflect.Type]bool)
	}
	nb.disabled[t] = true
	return nb
}

// EnableKind switches initialization back on for t.
func (b Builder) EnableKind(t reflect.Type) Builder {
	nb := b.clone()
	delete(nb.disabled, t)
	return nb
}

// Build freezes the rules into a Policy.
func (b Builder) Build() *Policy {
	nb := b.clone()
	return &Policy{
		source:     nb.source,
		generators: nb.generators,
		disabled:   nb.disabled,
	}
}

// Policy is an immutable snapshot of initialization rules.
type Policy struct {
	source     datastore.Source
	generators map[reflect.Type]Generator
	disabled   map[reflect.Type]bool
}

// Mode returns the rule in effect for t.
func (p *Policy) Mode(t reflect.Type) Mode {
	if p == nil {
		return ModeUnset
	}
	switch {
	case p.disabled[t]:
		return ModeDisabled
	case p.generators[t] != nil:
		return ModeFunction
	case p.source != nil:
		return ModeSource
	default:
		return ModeUnset
	}
}

// Generator returns the generator registered for t.
func (p *Policy) Generator(t reflect.Type) (Generator, bool) {
	if p == nil {
		return nil, false
	}
	g, ok := p.generators[t]
	return g, ok
}

// Source returns the global source, if any.
func (p *Policy) Source() datastore.Source {
	if p == nil {
		return nil
	}
	return p.source
}

// Builder returns a Builder seeded with p's rules.
func (p *Policy) Builder() Builder {
	if p == nil {
		return NewBuilder()
	}
	return Builder{source: p.source, generators: p.generators, disabled: p.disabled}.clone()
}
