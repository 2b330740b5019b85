/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/suparena/workspace/errors"
	"github.com/suparena/workspace/registry"
)

// Document is the declarative form of the per-kind switches, usually kept
// next to the service configuration:
//
//	disabled:
//	  - AuditEntry
//	enabled:
//	  - Policy
type Document struct {
	Disabled []string `yaml:"disabled"`
	Enabled  []string `yaml:"enabled"`
}

// ParseDocument decodes a YAML policy document.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing policy document: %w", err)
	}
	seen := make(map[string]string)
	for _, name := range doc.Disabled {
		seen[name] = "disabled"
	}
	for _, name := range doc.Enabled {
		if seen[name] == "disabled" {
			return nil, errors.NewValidationError(name, "kind is both enabled and disabled")
		}
	}
	return &doc, nil
}

// LoadDocument reads and decodes a YAML policy document from path.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy document: %w", err)
	}
	return ParseDocument(data)
}

// Apply layers the document's switches onto b. Every kind name must be
// registered in reg.
func (d *Document) Apply(reg *registry.Registry, b Builder) (Builder, error) {
	for _, name := range d.Disabled {
		k, ok := reg.ByName(name)
		if !ok {
			return b, errors.NewUnknownKindError(name)
		}
		b = b.DisableKind(k.Type)
	}
	for _, name := range d.Enabled {
		k, ok := reg.ByName(name)
		if !ok {
			return b, errors.NewUnknownKindError(name)
		}
		b = b.EnableKind(k.Type)
	}
	return b, nil
}
