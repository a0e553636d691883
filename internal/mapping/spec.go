// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package mapping turns source bibliographic records into target-library
// fields through a declarative, transformer-driven field mapping.
package mapping

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

// Rule describes how one target field is produced. Exactly one of
// Source/Sources (extract from the record) or Default/Generator (constant
// value) must be set; Transform optionally names a built-in transformer
// applied to the extracted value(s).
type Rule struct {
	// Target is the field name in the library schema.
	Target string `yaml:"target"`

	// Source is the single record key the value is extracted from.
	Source string `yaml:"source,omitempty"`

	// Sources lists several record keys whose values are passed to the
	// transformer together, in order (e.g. comment + journal ref).
	Sources []string `yaml:"sources,omitempty"`

	// Required marks the rule as mandatory: a record missing the source
	// value fails the whole mapping.
	Required bool `yaml:"required,omitempty"`

	// Default is a constant emitted for rules without a source.
	Default any `yaml:"default,omitempty"`

	// Generator names a built-in value generator (e.g. "current_date")
	// for rules without a source.
	Generator string `yaml:"generator,omitempty"`

	// Transform names a built-in transformer applied to the source value(s).
	Transform string `yaml:"transform,omitempty"`
}

// sourceKeys returns the record keys the rule reads, in order.
func (r Rule) sourceKeys() []string {
	if r.Source != "" {
		return []string{r.Source}
	}
	return r.Sources
}

// hasConstant reports whether the rule carries a Default or Generator.
func (r Rule) hasConstant() bool {
	return r.Default != nil || r.Generator != ""
}

// Spec is an ordered field-mapping table. It is built once at startup and
// shared read-only by all concurrent mapping operations.
type Spec struct {
	Rules []Rule `yaml:"rules"`
}

// Validate checks the spec for configuration errors: empty targets, rules
// with neither a source nor a constant, conflicting source forms, and
// references to unknown transformers or generators.
func (s Spec) Validate() error {
	seen := make(map[string]bool, len(s.Rules))
	for _, r := range s.Rules {
		if r.Target == "" {
			return fmt.Errorf("mapping rule with empty target")
		}
		if seen[r.Target] {
			return fmt.Errorf("duplicate mapping rule for target %q", r.Target)
		}
		seen[r.Target] = true

		if r.Source != "" && len(r.Sources) > 0 {
			return fmt.Errorf("rule %q: source and sources are mutually exclusive", r.Target)
		}
		if len(r.sourceKeys()) == 0 && !r.hasConstant() {
			return fmt.Errorf("rule %q: needs a source field or a default/generator", r.Target)
		}
		if r.Transform != "" {
			if _, ok := transformers[r.Transform]; !ok {
				return fmt.Errorf("rule %q: unknown transformer %q", r.Target, r.Transform)
			}
		}
		if r.Generator != "" {
			if _, ok := generators[r.Generator]; !ok {
				return fmt.Errorf("rule %q: unknown generator %q", r.Target, r.Generator)
			}
		}
	}
	return nil
}

// Load reads a mapping spec from a YAML file and validates it.
func Load(path string) (Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Spec{}, fmt.Errorf("reading mapping spec: %w", err)
	}
	var s Spec
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Spec{}, fmt.Errorf("parsing mapping spec %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return Spec{}, fmt.Errorf("invalid mapping spec %s: %w", path, err)
	}
	return s, nil
}

// Default returns the built-in arXiv-to-library mapping table.
func Default() Spec {
	return Spec{Rules: []Rule{
		{Target: "title", Source: "title", Required: true, Transform: "clean_markup"},
		{Target: "creators", Source: "authors", Required: true, Transform: "creators"},
		{Target: "url", Source: "arxiv_url", Required: true},
		{Target: "abstractNote", Source: "abstract", Transform: "clean_markup"},
		{Target: "date", Source: "published", Required: true, Transform: "date"},
		{Target: "tags", Source: "categories", Transform: "tags"},
		{Target: "extra", Sources: []string{"comment", "journal_ref"}, Transform: "extra"},
		{Target: "accessDate", Generator: "current_date"},
		{Target: "libraryCatalog", Default: "arXiv"},
	}}
}
