/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package registry

import (
	"reflect"

	"github.com/suparena/workspace/errors"
)

// WithIndexMap associates the kind with a DynamoDB index map (PK, SK, etc.).
// Values may contain {Field} macros expanded from the item at write time.
func WithIndexMap(idxMap map[string]string) Option {
	return func(k *Kind) error {
		if _, ok := idxMap["PK"]; !ok {
			return errors.NewValidationError("indexMap", "PK template is required")
		}
		m := make(map[string]string, len(idxMap))
		for field, tmpl := range idxMap {
			m[field] = tmpl
		}
		k.indexMap = m
		return nil
	}
}

// IndexMap returns the index map registered on the kind, if any.
func (k *Kind) IndexMap() (map[string]string, bool) {
	return k.indexMap, k.indexMap != nil
}

// GetIndexMap retrieves the index map for type T, if any.
func GetIndexMap[T any](r *Registry) (map[string]string, bool) {
	k, ok := r.Lookup(reflect.TypeFor[T]())
	if !ok {
		return nil, false
	}
	return k.IndexMap()
}
