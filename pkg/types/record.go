// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the refsync pipeline:
// the bibliographic Record flowing from search to replication, and the
// per-stage configuration structs.
package types

import "time"

// Record is one bibliographic entry discovered by the search stage. It is a
// flat mapping from source field names to heterogeneous values; the mapping
// engine extracts and type-checks fields explicitly rather than coercing.
// Supported value kinds are string, []string, and time.Time.
type Record map[string]any

// Well-known record keys populated by the arXiv search backend.
const (
	KeyArxivID    = "arxiv_id"
	KeyTitle      = "title"
	KeyAuthors    = "authors"
	KeyAbstract   = "abstract"
	KeyPublished  = "published"
	KeyArxivURL   = "arxiv_url"
	KeyPDFURL     = "pdf_url"
	KeyCategories = "categories"
	KeyComment    = "comment"
	KeyJournalRef = "journal_ref"
)

// String returns the string value stored under key, and whether the key was
// present with a string value.
func (r Record) String(key string) (string, bool) {
	v, ok := r[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// StringSlice returns the []string value stored under key.
func (r Record) StringSlice(key string) ([]string, bool) {
	v, ok := r[key]
	if !ok {
		return nil, false
	}
	s, ok := v.([]string)
	return s, ok
}

// Time returns the time.Time value stored under key.
func (r Record) Time(key string) (time.Time, bool) {
	v, ok := r[key]
	if !ok {
		return time.Time{}, false
	}
	t, ok := v.(time.Time)
	return t, ok
}

// Identifier returns the best available identifier for the record: the arXiv
// ID when present, otherwise the abstract-page URL, otherwise the title.
func (r Record) Identifier() string {
	for _, key := range []string{KeyArxivID, KeyArxivURL, KeyTitle} {
		if s, ok := r.String(key); ok && s != "" {
			return s
		}
	}
	return ""
}
