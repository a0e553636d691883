// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pdiddy/refsync/pkg/types"
)

// FormatTable writes records as a human-readable table to w.
func FormatTable(records []types.Record, w io.Writer) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	fmt.Fprintf(w, "%-4s  %-14s  %-60s  %-20s  %s\n",
		"Rank", "ID", "Title", "Authors", "Published")
	fmt.Fprintln(w, strings.Repeat("-", 110))

	for i, r := range records {
		title, _ := r.String(types.KeyTitle)
		title = truncate(title, 60)
		authors, _ := r.StringSlice(types.KeyAuthors)
		published := ""
		if t, ok := r.Time(types.KeyPublished); ok {
			published = t.Format("2006-01-02")
		}
		id, _ := r.String(types.KeyArxivID)
		fmt.Fprintf(w, "%-4d  %-14s  %-60s  %-20s  %s\n",
			i+1, id, title, formatAuthors(authors), published)
	}

	fmt.Fprintf(w, "\n%d results\n", len(records))
}

// FormatJSON writes records as indented JSON to w. Timestamps marshal as
// RFC 3339 strings.
func FormatJSON(records []types.Record, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

func formatAuthors(authors []string) string {
	switch len(authors) {
	case 0:
		return ""
	case 1:
		return truncate(authors[0], 20)
	default:
		return truncate(authors[0], 14) + " et al."
	}
}

// truncate shortens s to max runes, never cutting mid-rune.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
