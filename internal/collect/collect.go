// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package collect replicates discovered bibliographic records into the
// reference library: it maps each record's metadata, creates the remote
// item, files it into a collection, and attaches the PDF artifact, running
// a bounded number of records concurrently.
package collect

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/pdiddy/refsync/internal/artifact"
	"github.com/pdiddy/refsync/internal/library"
	"github.com/pdiddy/refsync/internal/mapping"
	"github.com/pdiddy/refsync/internal/retry"
	"github.com/pdiddy/refsync/pkg/types"
)

const (
	defaultMaxInFlight = 4
	defaultItemType    = "journalArticle"
)

// Library is the reference-library collaborator consumed by the pipeline.
type Library interface {
	CreateItem(ctx context.Context, itemType string, fields map[string]any) (string, error)
	AddToCollection(ctx context.Context, collectionKey, itemKey string) error
	UploadAttachment(ctx context.Context, tmpl library.AttachmentTemplate, localPath string) (library.UploadResult, error)
}

// Fetcher retrieves a record's binary artifact to local storage.
type Fetcher interface {
	Fetch(ctx context.Context, url, title string) (artifact.Handle, error)
}

// Reason classifies which pipeline step failed a record.
type Reason string

const (
	// ReasonMapping: the record could not be mapped to target fields.
	ReasonMapping Reason = "mapping"
	// ReasonCreate: the library rejected item creation.
	ReasonCreate Reason = "create"
	// ReasonFetch: the artifact download failed. The bibliographic item
	// exists remotely, but the record still counts as failed.
	ReasonFetch Reason = "fetch"
	// ReasonAttach: the attachment upload failed after retries.
	ReasonAttach Reason = "attach"
	// ReasonInternal: an unexpected panic was recovered at the record boundary.
	ReasonInternal Reason = "internal"
)

// Outcome is the terminal result of one record's pipeline run.
type Outcome struct {
	// Record is the source record this outcome belongs to.
	Record types.Record

	// ItemKey is the remote item identifier, set once creation succeeded.
	ItemKey string

	// Err and Reason are set when the record failed.
	Err    error
	Reason Reason
}

// Succeeded reports whether the record completed the whole pipeline.
func (o Outcome) Succeeded() bool { return o.Err == nil }

// Tally is the aggregate result of a run.
type Tally struct {
	Succeeded int
	Failed    int
}

// Total returns the number of records that reached a terminal outcome.
func (t Tally) Total() int { return t.Succeeded + t.Failed }

// RunOptions selects per-run behavior.
type RunOptions struct {
	// DownloadArtifacts enables the fetch-and-attach step for records that
	// carry a PDF URL.
	DownloadArtifacts bool

	// CollectionKey, when non-empty, files each created item into that
	// collection.
	CollectionKey string
}

// Collector runs the replication pipeline. Its fields are set once and
// shared read-only by all concurrent record tasks.
type Collector struct {
	// Library and Fetcher are the external collaborators.
	Library Library
	Fetcher Fetcher

	// Spec is the field-mapping table applied to every record.
	Spec mapping.Spec

	// Config holds concurrency and retry settings.
	Config types.CollectConfig

	// ItemType is the remote item type created per record
	// (default "journalArticle").
	ItemType string

	// Status receives one diagnostic line per notable event. Nil discards.
	Status io.Writer

	// OnOutcome, when set, observes every terminal outcome. It is invoked
	// from the tallying loop, never concurrently. Extension point for
	// callers that need more than the aggregate counts.
	OnOutcome func(Outcome)

	// statusMu serializes Status writes from concurrent record tasks.
	statusMu sync.Mutex
}

// Run processes every record through the pipeline with at most
// Config.MaxInFlight records in flight, and returns the aggregate tally.
// It never fails itself: an empty input yields (0, 0) and per-record
// faults are converted into counted failures. When ctx is cancelled, no
// further records are launched; in-flight pipelines run to their natural
// completion and are included in the tally.
func (c *Collector) Run(ctx context.Context, records []types.Record, opts RunOptions) Tally {
	var tally Tally
	if len(records) == 0 {
		return tally
	}

	maxInFlight := c.Config.MaxInFlight
	if maxInFlight <= 0 {
		maxInFlight = defaultMaxInFlight
	}

	sem := make(chan struct{}, maxInFlight)
	outcomes := make(chan Outcome)
	var wg sync.WaitGroup

	go func() {
	launch:
		for _, record := range records {
			select {
			case <-ctx.Done():
				c.logf("run cancelled, waiting for in-flight records\n")
				break launch
			case sem <- struct{}{}:
			}
			wg.Add(1)
			go func(r types.Record) {
				defer wg.Done()
				defer func() { <-sem }()
				outcomes <- c.processRecord(ctx, r, opts)
			}(record)
		}
		wg.Wait()
		close(outcomes)
	}()

	// Single-goroutine aggregation: concurrent tasks emit outcomes on the
	// channel and only this loop touches the counters.
	for o := range outcomes {
		if o.Succeeded() {
			tally.Succeeded++
		} else {
			tally.Failed++
			c.logf("failed (%s): %s: %v\n", o.Reason, o.Record.Identifier(), o.Err)
		}
		if c.OnOutcome != nil {
			c.OnOutcome(o)
		}
	}

	c.logf("run complete: %d succeeded, %d failed\n", tally.Succeeded, tally.Failed)
	return tally
}

// processRecord runs the strictly sequential pipeline for one record:
// map, create item, add to collection, fetch and attach the artifact.
// The first fatal step failure short-circuits the rest. Panics are
// converted into a failed outcome so one record can never abort the batch.
func (c *Collector) processRecord(ctx context.Context, record types.Record, opts RunOptions) (out Outcome) {
	out.Record = record
	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("unexpected failure: %v", r)
			out.Reason = ReasonInternal
		}
	}()

	fields, err := mapping.Map(record, c.Spec)
	if err != nil {
		out.Err = err
		out.Reason = ReasonMapping
		return out
	}

	itemType := c.ItemType
	if itemType == "" {
		itemType = defaultItemType
	}
	itemKey, err := c.Library.CreateItem(ctx, itemType, fields)
	if err != nil {
		out.Err = fmt.Errorf("creating item: %w", err)
		out.Reason = ReasonCreate
		return out
	}
	out.ItemKey = itemKey

	if opts.CollectionKey != "" {
		if err := c.Library.AddToCollection(ctx, opts.CollectionKey, itemKey); err != nil {
			// Non-fatal by contract: the item already exists remotely, and
			// an orphaned, uncategorized item is preferable to deleting it.
			// The record proceeds to artifact handling.
			c.logf("warning: could not add %s to collection %s: %v\n",
				itemKey, opts.CollectionKey, err)
		}
	}

	if opts.DownloadArtifacts {
		url, _ := record.String(types.KeyPDFURL)
		if url != "" {
			title, _ := record.String(types.KeyTitle)
			handle, err := c.Fetcher.Fetch(ctx, url, title)
			if err != nil {
				out.Err = fmt.Errorf("fetching artifact: %w", err)
				out.Reason = ReasonFetch
				return out
			}
			if err := c.attach(ctx, handle, itemKey); err != nil {
				out.Err = fmt.Errorf("attaching artifact: %w", err)
				out.Reason = ReasonAttach
				return out
			}
		}
	}

	return out
}

// attach uploads the artifact under the retry policy. The upload response
// is read across three buckets: newly accepted and unchanged (idempotent
// re-submission) both count as success; rejected entries, or a response
// with neither, are failures. Unknown is never treated as success.
func (c *Collector) attach(ctx context.Context, handle artifact.Handle, itemKey string) error {
	tmpl := library.ImportedFileAttachment(handle.DisplayName, itemKey, handle.Path)

	return retry.Do(ctx, c.Config.AttachAttempts, c.Config.AttachBaseDelay, func() error {
		result, err := c.Library.UploadAttachment(ctx, tmpl, handle.Path)
		if err != nil {
			return err
		}
		if result.Accepted() {
			return nil
		}
		if result.Rejected() {
			return fmt.Errorf("upload rejected: %v", result.Failure)
		}
		return fmt.Errorf("upload response had no accepted or rejected entries")
	})
}

func (c *Collector) logf(format string, args ...any) {
	if c.Status == nil {
		return
	}
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	fmt.Fprintf(c.Status, format, args...)
}
