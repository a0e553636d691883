// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package mapping

import (
	"fmt"
	"strings"
	"time"
)

// Creator is an author entry in the library schema.
type Creator struct {
	CreatorType string `json:"creatorType" yaml:"creator_type"`
	FirstName   string `json:"firstName" yaml:"first_name"`
	LastName    string `json:"lastName" yaml:"last_name"`
}

// Tag is a keyword entry in the library schema.
type Tag struct {
	Tag string `json:"tag" yaml:"tag"`
}

// TransformFunc converts resolved source value(s) into a target-field value.
// Transformers are pure; a failure fails the record's mapping.
type TransformFunc func(vals []any) (any, error)

// transformers is the closed dispatch table for transformer names used in
// mapping rules.
var transformers = map[string]TransformFunc{
	"creators":     transformCreators,
	"date":         transformDate,
	"tags":         transformTags,
	"clean_markup": transformCleanMarkup,
	"extra":        transformExtra,
}

// generators produce constant values at mapping time for rules without a
// source field.
var generators = map[string]func() any{
	"current_date": func() any { return time.Now().Format(dateLayout) },
}

const dateLayout = "2006-01-02"

// extraSeparator joins the components of the composite "extra" annotation.
const extraSeparator = " | "

// transformCreators splits full author names into given/family pairs. The
// first whitespace token is the given name, the remainder the family name;
// a single-token name yields an empty family name.
func transformCreators(vals []any) (any, error) {
	names, err := asStringSlice(vals[0])
	if err != nil {
		return nil, fmt.Errorf("creators: %w", err)
	}
	creators := make([]Creator, 0, len(names))
	for _, name := range names {
		parts := strings.Fields(name)
		c := Creator{CreatorType: "author"}
		if len(parts) > 0 {
			c.FirstName = parts[0]
			c.LastName = strings.Join(parts[1:], " ")
		}
		creators = append(creators, c)
	}
	return creators, nil
}

// dateLayouts are the accepted input forms, tried in order. The normalized
// layout comes first so the transform is idempotent.
var dateLayouts = []string{
	dateLayout,
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"January 2, 2006",
	"2 Jan 2006",
}

// transformDate renders any date-like input as YYYY-MM-DD.
func transformDate(vals []any) (any, error) {
	switch v := vals[0].(type) {
	case time.Time:
		return v.Format(dateLayout), nil
	case string:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t.Format(dateLayout), nil
			}
		}
		return nil, fmt.Errorf("date: unrecognized date %q", v)
	default:
		return nil, fmt.Errorf("date: expected time or string, got %T", vals[0])
	}
}

// transformTags turns category strings into tag records, preserving order
// and duplicates.
func transformTags(vals []any) (any, error) {
	categories, err := asStringSlice(vals[0])
	if err != nil {
		return nil, fmt.Errorf("tags: %w", err)
	}
	tags := make([]Tag, len(categories))
	for i, c := range categories {
		tags[i] = Tag{Tag: c}
	}
	return tags, nil
}

// markupReplacer strips the inline markers arXiv emits in titles and
// abstracts. Stripping is idempotent: the markers never occur in the output.
var markupReplacer = strings.NewReplacer(
	"<i>", "", "</i>", "",
	"<b>", "", "</b>", "",
	"<em>", "", "</em>", "",
	"<sub>", "", "</sub>", "",
	"<sup>", "", "</sup>", "",
	"$", "",
)

// transformCleanMarkup removes inline markup and collapses whitespace runs,
// leaving surrounding plain text untouched.
func transformCleanMarkup(vals []any) (any, error) {
	s, ok := vals[0].(string)
	if !ok {
		return nil, fmt.Errorf("clean_markup: expected string, got %T", vals[0])
	}
	cleaned := markupReplacer.Replace(s)
	return strings.Join(strings.Fields(cleaned), " "), nil
}

// transformExtra concatenates optional free-text components (comment,
// journal reference) into one annotation string. Absent or blank components
// are omitted, not rendered as empty placeholders.
func transformExtra(vals []any) (any, error) {
	var parts []string
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("extra: expected string, got %T", v)
		}
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, extraSeparator), nil
}

// asStringSlice accepts []string directly and promotes a lone string to a
// one-element slice. Anything else is a type mismatch.
func asStringSlice(v any) ([]string, error) {
	switch s := v.(type) {
	case []string:
		return s, nil
	case string:
		return []string{s}, nil
	default:
		return nil, fmt.Errorf("expected string list, got %T", v)
	}
}
