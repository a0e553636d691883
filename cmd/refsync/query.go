// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/refsync/internal/search"
)

const dateFmt = "2006-01-02"

// addQueryFlags registers the shared search-parameter flags on cmd.
func addQueryFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("keywords", nil, "keywords to search for (comma-separated)")
	cmd.Flags().String("title", "", "search specifically in paper titles")
	cmd.Flags().String("author", "", "author name to search for")
	cmd.Flags().StringSlice("categories", nil, "arXiv categories to search in (e.g. cs.AI,cs.MA)")
	cmd.Flags().String("from", "", "start date for papers (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "end date for papers (YYYY-MM-DD)")
	cmd.Flags().Int("max-results", 50, "maximum number of results to retrieve")
}

// queryFromFlags builds a search query from the shared flags.
func queryFromFlags(cmd *cobra.Command) (search.Query, error) {
	var q search.Query
	var err error

	q.Keywords, _ = cmd.Flags().GetStringSlice("keywords")
	q.Title, _ = cmd.Flags().GetString("title")
	q.Author, _ = cmd.Flags().GetString("author")
	q.Categories, _ = cmd.Flags().GetStringSlice("categories")

	if q.DateFrom, err = parseDateFlag(cmd, "from"); err != nil {
		return search.Query{}, err
	}
	if q.DateTo, err = parseDateFlag(cmd, "to"); err != nil {
		return search.Query{}, err
	}

	if q.IsEmpty() {
		return search.Query{}, fmt.Errorf("provide at least one of --keywords, --title, --author, or --categories")
	}
	return q, nil
}

func parseDateFlag(cmd *cobra.Command, name string) (time.Time, error) {
	s, _ := cmd.Flags().GetString(name)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateFmt, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s date %q: use YYYY-MM-DD", name, s)
	}
	return t, nil
}
