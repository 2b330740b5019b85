/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package policy

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suparena/workspace/errors"
	"github.com/suparena/workspace/registry"
)

type Note struct{ ID string }

type Tag struct{ Label string }

type staticSource struct{ items []any }

func (s staticSource) Query(ctx context.Context, kind *registry.Kind) ([]any, error) {
	return s.items, nil
}

var (
	noteType = reflect.TypeFor[*Note]()
	tagType  = reflect.TypeFor[*Tag]()
)

func TestModeString(t *testing.T) {
	assert.Equal(t, "unset", ModeUnset.String())
	assert.Equal(t, "disabled", ModeDisabled.String())
	assert.Equal(t, "function", ModeFunction.String())
	assert.Equal(t, "source", ModeSource.String())
}

func TestNilPolicy(t *testing.T) {
	var p *Policy
	assert.Equal(t, ModeUnset, p.Mode(noteType))
	assert.Nil(t, p.Source())
	_, ok := p.Generator(noteType)
	assert.False(t, ok)
	assert.Equal(t, ModeUnset, p.Builder().Build().Mode(noteType))
}

func TestModePrecedence(t *testing.T) {
	gen := FromFunction(NewBuilder(), func(ctx context.Context, pk any) ([]*Note, error) {
		return []*Note{{ID: "n1"}}, nil
	})

	assert.Equal(t, ModeFunction, gen.Build().Mode(noteType))
	assert.Equal(t, ModeUnset, gen.Build().Mode(tagType))

	withSource := gen.FromSource(staticSource{})
	assert.Equal(t, ModeFunction, withSource.Build().Mode(noteType))
	assert.Equal(t, ModeSource, withSource.Build().Mode(tagType))

	disabled := Disable[*Note](withSource)
	assert.Equal(t, ModeDisabled, disabled.Build().Mode(noteType))
	assert.Equal(t, ModeFunction, Enable[*Note](disabled).Build().Mode(noteType))
}

func TestGeneratorAdapts(t *testing.T) {
	var seen any
	p := FromFunction(NewBuilder(), func(ctx context.Context, pk any) ([]*Note, error) {
		seen = pk
		return []*Note{{ID: "n1"}, {ID: "n2"}}, nil
	}).Build()

	gen, ok := p.Generator(noteType)
	require.True(t, ok)
	items, err := gen(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", seen)
	require.Len(t, items, 2)
	assert.IsType(t, &Note{}, items[0])
}

func TestBuilderImmutable(t *testing.T) {
	base := Disable[*Note](NewBuilder())
	derived := Disable[*Tag](base)
	reenabled := Enable[*Note](base)

	assert.Equal(t, ModeUnset, base.Build().Mode(tagType))
	assert.Equal(t, ModeDisabled, base.Build().Mode(noteType))
	assert.Equal(t, ModeDisabled, derived.Build().Mode(tagType))
	assert.Equal(t, ModeUnset, reenabled.Build().Mode(noteType))

	p := base.Build()
	_ = Disable[*Tag](p.Builder())
	assert.Equal(t, ModeUnset, p.Mode(tagType), "a built policy never changes")
}

func TestDocument(t *testing.T) {
	reg := registry.New()
	require.NoError(t, registry.Register(reg, "Note", func(n *Note) any { return n.ID }))
	require.NoError(t, registry.Register(reg, "Tag", func(x *Tag) any { return x.Label }))

	t.Run("Apply", func(t *testing.T) {
		doc, err := ParseDocument([]byte("disabled:\n  - Note\n  - Tag\nenabled:\n  - Tag2\n"))
		require.NoError(t, err)
		_, err = doc.Apply(reg, NewBuilder())
		assert.True(t, errors.IsUnknownKind(err))

		doc, err = ParseDocument([]byte("disabled:\n  - Note\n"))
		require.NoError(t, err)
		b, err := doc.Apply(reg, Disable[*Tag](NewBuilder()))
		require.NoError(t, err)
		assert.Equal(t, ModeDisabled, b.Build().Mode(noteType))
		assert.Equal(t, ModeDisabled, b.Build().Mode(tagType))

		doc, err = ParseDocument([]byte("enabled:\n  - Tag\n"))
		require.NoError(t, err)
		b, err = doc.Apply(reg, b)
		require.NoError(t, err)
		assert.Equal(t, ModeUnset, b.Build().Mode(tagType))
	})

	t.Run("Conflict", func(t *testing.T) {
		_, err := ParseDocument([]byte("disabled: [Note]\nenabled: [Note]\n"))
		assert.True(t, errors.IsValidationError(err))
	})

	t.Run("Malformed", func(t *testing.T) {
		_, err := ParseDocument([]byte("disabled: {"))
		assert.Error(t, err)
	})

	t.Run("Load", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "policy.yaml")
		require.NoError(t, os.WriteFile(path, []byte("disabled:\n  - Note\n"), 0o600))
		doc, err := LoadDocument(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"Note"}, doc.Disabled)

		_, err = LoadDocument(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}
