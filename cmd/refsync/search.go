// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/refsync/internal/search"
	"github.com/pdiddy/refsync/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Preview arXiv search results without replicating them",
	Long: `Search queries the arXiv API for papers matching keywords, a title,
an author, or categories, and prints the results. Nothing is written to the
reference library; use "collect" to replicate.`,
	RunE: runSearch,
}

func init() {
	addQueryFlags(searchCmd)
	searchCmd.Flags().Bool("json", false, "output results as JSON")
	searchCmd.Flags().Duration("timeout", 30*time.Second, "HTTP request timeout")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query, err := queryFromFlags(cmd)
	if err != nil {
		return err
	}

	maxResults, _ := cmd.Flags().GetInt("max-results")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	asJSON, _ := cmd.Flags().GetBool("json")

	cfg := types.SearchConfig{
		HTTPConfig: types.HTTPConfig{Timeout: timeout, UserAgent: userAgent},
		MaxResults: maxResults,
	}

	client := &search.Client{HTTP: &http.Client{Timeout: cfg.Timeout}}
	records, err := client.Search(cmd.Context(), query, cfg)
	if err != nil {
		return err
	}

	if asJSON {
		return search.FormatJSON(records, os.Stdout)
	}
	search.FormatTable(records, os.Stdout)
	return nil
}
