// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package mapping

import (
	"fmt"

	"github.com/pdiddy/refsync/pkg/types"
)

// Error reports a mapping failure for one target field. It is always fatal
// to the record being mapped and never retried.
type Error struct {
	// Target is the field whose rule could not be satisfied.
	Target string
	// Err is the underlying cause.
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("mapping field %q: %v", e.Target, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Map applies the spec to a record and returns the target fields, ready to
// merge into a remote-item template. Rules are evaluated in spec order.
// A required rule whose source value is absent fails the whole operation;
// no partial result is returned. Map never mutates record or spec.
func Map(record types.Record, spec Spec) (map[string]any, error) {
	fields := make(map[string]any, len(spec.Rules))

	for _, rule := range spec.Rules {
		keys := rule.sourceKeys()

		// Constant rule: no source, emit the default or generated value.
		if len(keys) == 0 {
			fields[rule.Target] = rule.constantValue()
			continue
		}

		vals := resolve(record, keys)
		if len(vals) == 0 {
			if rule.Required {
				return nil, &Error{Target: rule.Target, Err: fmt.Errorf("required source %v missing from record", keys)}
			}
			if rule.hasConstant() {
				fields[rule.Target] = rule.constantValue()
			}
			continue
		}

		value := vals[0]
		if rule.Transform != "" {
			transformed, err := transformers[rule.Transform](vals)
			if err != nil {
				return nil, &Error{Target: rule.Target, Err: err}
			}
			value = transformed
		} else if len(vals) > 1 {
			return nil, &Error{Target: rule.Target, Err: fmt.Errorf("multiple sources require a transformer")}
		}

		fields[rule.Target] = value
	}

	return fields, nil
}

// constantValue returns the rule's generated or default value. Validate
// guarantees the generator name is known.
func (r Rule) constantValue() any {
	if r.Generator != "" {
		return generators[r.Generator]()
	}
	return r.Default
}

// resolve collects the present values for keys, in key order. A nil value
// counts as absent.
func resolve(record types.Record, keys []string) []any {
	var vals []any
	for _, key := range keys {
		if v, ok := record[key]; ok && v != nil {
			vals = append(vals, v)
		}
	}
	return vals
}
