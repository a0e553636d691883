// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/refsync/internal/artifact"
	"github.com/pdiddy/refsync/internal/collect"
	"github.com/pdiddy/refsync/internal/ledger"
	"github.com/pdiddy/refsync/internal/library"
	"github.com/pdiddy/refsync/internal/mapping"
	"github.com/pdiddy/refsync/internal/search"
	"github.com/pdiddy/refsync/internal/secrets"
	"github.com/pdiddy/refsync/pkg/types"
)

const (
	defaultTimeout = 60 * time.Second
	userAgent      = "refsync/0.1"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Search arXiv and replicate the results into the library",
	Long: `Collect runs the full pipeline: it searches arXiv for papers matching
the query, maps each paper's metadata through the mapping spec, creates a
library item per paper, files it into the configured collection, and
downloads and attaches the PDF. Records are processed concurrently; one
paper's failure never aborts the batch.`,
	RunE: runCollect,
}

func init() {
	addQueryFlags(collectCmd)
	collectCmd.Flags().Bool("no-artifacts", false, "skip downloading and attaching PDFs")
	collectCmd.Flags().String("collection", "", "collection key (overrides the collection-key secret)")
	collectCmd.Flags().Int("concurrency", 4, "maximum records processed concurrently")
	collectCmd.Flags().String("artifacts-dir", "artifacts", "local directory for downloaded PDFs")
	collectCmd.Flags().String("mapping-spec", "", "YAML mapping spec file (default: built-in arXiv mapping)")
	collectCmd.Flags().String("secrets-dir", ".secrets", "directory holding library credentials")
	collectCmd.Flags().Bool("skip-known", false, "skip records already replicated per the local ledger")
	collectCmd.Flags().String("ledger", "refsync.db", "path of the local run ledger database")
	collectCmd.Flags().Duration("timeout", defaultTimeout, "HTTP request timeout")

	rootCmd.AddCommand(collectCmd)
}

func runCollect(cmd *cobra.Command, args []string) error {
	query, err := queryFromFlags(cmd)
	if err != nil {
		return err
	}

	secretsDir, _ := cmd.Flags().GetString("secrets-dir")
	creds, err := secrets.LoadCredentials(secretsDir)
	if err != nil {
		return err
	}

	collectionKey, _ := cmd.Flags().GetString("collection")
	if collectionKey == "" {
		collectionKey = creds.CollectionKey
	}

	spec := mapping.Default()
	if specPath, _ := cmd.Flags().GetString("mapping-spec"); specPath != "" {
		if spec, err = mapping.Load(specPath); err != nil {
			return err
		}
	}

	maxResults, _ := cmd.Flags().GetInt("max-results")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	noArtifacts, _ := cmd.Flags().GetBool("no-artifacts")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	artifactsDir, _ := cmd.Flags().GetString("artifacts-dir")
	skipKnown, _ := cmd.Flags().GetBool("skip-known")
	ledgerPath, _ := cmd.Flags().GetString("ledger")

	httpClient := &http.Client{Timeout: timeout}

	searchClient := &search.Client{HTTP: httpClient}
	records, err := searchClient.Search(cmd.Context(), query, types.SearchConfig{
		HTTPConfig: types.HTTPConfig{Timeout: timeout, UserAgent: userAgent},
		MaxResults: maxResults,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Found %d papers matching the criteria\n", len(records))

	db, err := ledger.Open(types.LedgerConfig{Path: ledgerPath})
	if err != nil {
		return err
	}
	defer db.Close()

	if skipKnown {
		fresh, skipped, err := db.FilterKnown(records)
		if err != nil {
			return err
		}
		if skipped > 0 {
			fmt.Fprintf(os.Stdout, "Skipping %d already-replicated papers\n", skipped)
		}
		records = fresh
	}

	collector := &collect.Collector{
		Library: library.NewClient(httpClient, types.LibraryConfig{
			HTTPConfig: types.HTTPConfig{Timeout: timeout, UserAgent: userAgent},
			LibraryID:  creds.LibraryID,
			APIKey:     creds.APIKey,
		}),
		Fetcher: &artifact.Fetcher{
			Client: httpClient,
			Config: types.ArtifactConfig{
				HTTPConfig: types.HTTPConfig{Timeout: timeout, UserAgent: userAgent},
				Dir:        artifactsDir,
			},
		},
		Spec: spec,
		Config: types.CollectConfig{
			MaxInFlight:     concurrency,
			AttachAttempts:  3,
			AttachBaseDelay: 2 * time.Second,
		},
		Status: os.Stdout,
		OnOutcome: func(o collect.Outcome) {
			if !o.Succeeded() {
				return
			}
			title, _ := o.Record.String(types.KeyTitle)
			if err := db.RecordItem(o.Record.Identifier(), o.ItemKey, title); err != nil {
				fmt.Fprintf(os.Stderr, "warning: ledger update failed: %v\n", err)
			}
		},
	}

	started := time.Now()
	tally := collector.Run(cmd.Context(), records, collect.RunOptions{
		DownloadArtifacts: !noArtifacts,
		CollectionKey:     collectionKey,
	})
	if err := db.RecordRun(started, time.Now(), tally.Succeeded, tally.Failed); err != nil {
		fmt.Fprintf(os.Stderr, "warning: ledger update failed: %v\n", err)
	}

	fmt.Fprintf(os.Stdout, "Collection complete. Successfully processed: %d, Failed: %d\n",
		tally.Succeeded, tally.Failed)
	if tally.Failed > 0 {
		return fmt.Errorf("%d paper(s) failed replication", tally.Failed)
	}
	return nil
}
