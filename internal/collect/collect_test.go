// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package collect

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/refsync/internal/artifact"
	"github.com/pdiddy/refsync/internal/library"
	"github.com/pdiddy/refsync/internal/mapping"
	"github.com/pdiddy/refsync/pkg/types"
)

// testSpec maps just the title, required, so records missing a title fail
// the mapping step.
var testSpec = mapping.Spec{Rules: []mapping.Rule{
	{Target: "title", Source: "title", Required: true},
}}

var acceptedUpload = library.UploadResult{Success: map[string]string{"0": "ATT1"}}

// fakeLibrary implements Library with overridable behavior per call.
type fakeLibrary struct {
	mu          sync.Mutex
	createCalls int
	addCalls    int
	uploadCalls int

	inFlight    int32
	maxInFlight int32

	createFn func(itemType string, fields map[string]any) (string, error)
	addFn    func(collectionKey, itemKey string) error
	uploadFn func(call int, tmpl library.AttachmentTemplate) (library.UploadResult, error)
}

func (f *fakeLibrary) CreateItem(_ context.Context, itemType string, fields map[string]any) (string, error) {
	cur := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		max := atomic.LoadInt32(&f.maxInFlight)
		if cur <= max || atomic.CompareAndSwapInt32(&f.maxInFlight, max, cur) {
			break
		}
	}

	f.mu.Lock()
	f.createCalls++
	f.mu.Unlock()

	if f.createFn != nil {
		return f.createFn(itemType, fields)
	}
	return "ITEM1", nil
}

func (f *fakeLibrary) AddToCollection(_ context.Context, collectionKey, itemKey string) error {
	f.mu.Lock()
	f.addCalls++
	f.mu.Unlock()
	if f.addFn != nil {
		return f.addFn(collectionKey, itemKey)
	}
	return nil
}

func (f *fakeLibrary) UploadAttachment(_ context.Context, tmpl library.AttachmentTemplate, _ string) (library.UploadResult, error) {
	f.mu.Lock()
	f.uploadCalls++
	call := f.uploadCalls
	f.mu.Unlock()
	if f.uploadFn != nil {
		return f.uploadFn(call, tmpl)
	}
	return acceptedUpload, nil
}

// fakeFetcher implements Fetcher.
type fakeFetcher struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeFetcher) Fetch(_ context.Context, url, title string) (artifact.Handle, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return artifact.Handle{}, f.err
	}
	return artifact.Handle{Path: "/tmp/" + title + ".pdf", DisplayName: title + ".pdf"}, nil
}

func newCollector(lib *fakeLibrary, f *fakeFetcher) *Collector {
	return &Collector{
		Library: lib,
		Fetcher: f,
		Spec:    testSpec,
		Config: types.CollectConfig{
			AttachAttempts:  3,
			AttachBaseDelay: time.Millisecond,
		},
	}
}

func makeRecords(n int) []types.Record {
	records := make([]types.Record, n)
	for i := range records {
		records[i] = types.Record{
			types.KeyTitle:  fmt.Sprintf("Paper %d", i),
			types.KeyPDFURL: fmt.Sprintf("https://example.org/pdf/%d", i),
		}
	}
	return records
}

func TestRunEmptyInput(t *testing.T) {
	c := newCollector(&fakeLibrary{}, &fakeFetcher{})
	tally := c.Run(context.Background(), nil, RunOptions{})
	assert.Equal(t, Tally{}, tally)
}

func TestRunAllSucceed(t *testing.T) {
	lib := &fakeLibrary{}
	fetcher := &fakeFetcher{}
	c := newCollector(lib, fetcher)

	tally := c.Run(context.Background(), makeRecords(5), RunOptions{DownloadArtifacts: true})

	assert.Equal(t, Tally{Succeeded: 5, Failed: 0}, tally)
	assert.Equal(t, 5, lib.createCalls)
	assert.Equal(t, 5, fetcher.calls)
	assert.Equal(t, 5, lib.uploadCalls)
	// No collection configured, so no membership calls.
	assert.Equal(t, 0, lib.addCalls)
}

func TestRunTallyCoversEveryRecord(t *testing.T) {
	// Records 1 and 3 have no title, so their mapping fails.
	records := makeRecords(5)
	delete(records[1], types.KeyTitle)
	delete(records[3], types.KeyTitle)

	c := newCollector(&fakeLibrary{}, &fakeFetcher{})
	tally := c.Run(context.Background(), records, RunOptions{})

	assert.Equal(t, 3, tally.Succeeded)
	assert.Equal(t, 2, tally.Failed)
	assert.Equal(t, len(records), tally.Total())
}

func TestFaultIsolation(t *testing.T) {
	lib := &fakeLibrary{
		createFn: func(_ string, fields map[string]any) (string, error) {
			if fields["title"] == "Paper 2" {
				return "", errors.New("server melted")
			}
			return "ITEM1", nil
		},
	}
	var outcomes []Outcome
	c := newCollector(lib, &fakeFetcher{})
	c.OnOutcome = func(o Outcome) { outcomes = append(outcomes, o) }

	tally := c.Run(context.Background(), makeRecords(4), RunOptions{})

	assert.Equal(t, Tally{Succeeded: 3, Failed: 1}, tally)
	for _, o := range outcomes {
		title, _ := o.Record.String(types.KeyTitle)
		if title == "Paper 2" {
			assert.Equal(t, ReasonCreate, o.Reason)
		} else {
			assert.True(t, o.Succeeded(), "record %q should not be affected", title)
		}
	}
}

func TestCollectionAddFailureIsNonFatal(t *testing.T) {
	lib := &fakeLibrary{
		addFn: func(_, _ string) error { return errors.New("collection gone") },
	}
	fetcher := &fakeFetcher{}
	var status bytes.Buffer
	c := newCollector(lib, fetcher)
	c.Status = &status

	tally := c.Run(context.Background(), makeRecords(1), RunOptions{
		DownloadArtifacts: true,
		CollectionKey:     "COLL99",
	})

	// The record still proceeds to artifact handling and succeeds.
	assert.Equal(t, Tally{Succeeded: 1, Failed: 0}, tally)
	assert.Equal(t, 1, lib.addCalls)
	assert.Equal(t, 1, fetcher.calls)
	assert.Contains(t, status.String(), "warning")
	assert.Contains(t, status.String(), "COLL99")
}

func TestArtifactFetchFailureFailsRecord(t *testing.T) {
	lib := &fakeLibrary{}
	fetcher := &fakeFetcher{err: errors.New("HTTP 404")}
	var outcomes []Outcome
	c := newCollector(lib, fetcher)
	c.OnOutcome = func(o Outcome) { outcomes = append(outcomes, o) }

	tally := c.Run(context.Background(), makeRecords(1), RunOptions{DownloadArtifacts: true})

	assert.Equal(t, Tally{Succeeded: 0, Failed: 1}, tally)
	require.Len(t, outcomes, 1)
	assert.Equal(t, ReasonFetch, outcomes[0].Reason)
	// The remote item was created before the fetch failed.
	assert.Equal(t, "ITEM1", outcomes[0].ItemKey)
	assert.Equal(t, 0, lib.uploadCalls)
}

func TestRecordWithoutArtifactURLSkipsAttachment(t *testing.T) {
	lib := &fakeLibrary{}
	fetcher := &fakeFetcher{}
	c := newCollector(lib, fetcher)

	records := []types.Record{{types.KeyTitle: "No PDF Here"}}
	tally := c.Run(context.Background(), records, RunOptions{DownloadArtifacts: true})

	assert.Equal(t, Tally{Succeeded: 1, Failed: 0}, tally)
	assert.Equal(t, 0, fetcher.calls)
	assert.Equal(t, 0, lib.uploadCalls)
}

func TestAttachRetriesThenSucceeds(t *testing.T) {
	lib := &fakeLibrary{
		uploadFn: func(call int, _ library.AttachmentTemplate) (library.UploadResult, error) {
			if call <= 2 {
				return library.UploadResult{}, errors.New("connection reset")
			}
			return acceptedUpload, nil
		},
	}
	c := newCollector(lib, &fakeFetcher{})

	tally := c.Run(context.Background(), makeRecords(1), RunOptions{DownloadArtifacts: true})

	assert.Equal(t, Tally{Succeeded: 1, Failed: 0}, tally)
	assert.Equal(t, 3, lib.uploadCalls)
}

func TestAttachUnchangedCountsAsSuccess(t *testing.T) {
	lib := &fakeLibrary{
		uploadFn: func(_ int, _ library.AttachmentTemplate) (library.UploadResult, error) {
			return library.UploadResult{Unchanged: map[string]string{"0": "ATT1"}}, nil
		},
	}
	c := newCollector(lib, &fakeFetcher{})

	tally := c.Run(context.Background(), makeRecords(1), RunOptions{DownloadArtifacts: true})

	assert.Equal(t, Tally{Succeeded: 1, Failed: 0}, tally)
	assert.Equal(t, 1, lib.uploadCalls)
}

func TestAttachRejectedExhaustsRetries(t *testing.T) {
	lib := &fakeLibrary{
		uploadFn: func(_ int, _ library.AttachmentTemplate) (library.UploadResult, error) {
			return library.UploadResult{Failure: map[string]string{"0": "checksum mismatch"}}, nil
		},
	}
	var outcomes []Outcome
	c := newCollector(lib, &fakeFetcher{})
	c.OnOutcome = func(o Outcome) { outcomes = append(outcomes, o) }

	tally := c.Run(context.Background(), makeRecords(1), RunOptions{DownloadArtifacts: true})

	assert.Equal(t, Tally{Succeeded: 0, Failed: 1}, tally)
	assert.Equal(t, 3, lib.uploadCalls)
	require.Len(t, outcomes, 1)
	assert.Equal(t, ReasonAttach, outcomes[0].Reason)
}

func TestAttachAmbiguousResponseIsFailure(t *testing.T) {
	lib := &fakeLibrary{
		uploadFn: func(_ int, _ library.AttachmentTemplate) (library.UploadResult, error) {
			return library.UploadResult{}, nil
		},
	}
	c := newCollector(lib, &fakeFetcher{})

	tally := c.Run(context.Background(), makeRecords(1), RunOptions{DownloadArtifacts: true})

	assert.Equal(t, Tally{Succeeded: 0, Failed: 1}, tally)
}

func TestPanicConvertedToFailure(t *testing.T) {
	lib := &fakeLibrary{
		createFn: func(_ string, fields map[string]any) (string, error) {
			if fields["title"] == "Paper 0" {
				panic("boom")
			}
			return "ITEM1", nil
		},
	}
	var outcomes []Outcome
	c := newCollector(lib, &fakeFetcher{})
	c.OnOutcome = func(o Outcome) { outcomes = append(outcomes, o) }

	tally := c.Run(context.Background(), makeRecords(3), RunOptions{})

	assert.Equal(t, Tally{Succeeded: 2, Failed: 1}, tally)
	failed := 0
	for _, o := range outcomes {
		if !o.Succeeded() {
			failed++
			assert.Equal(t, ReasonInternal, o.Reason)
		}
	}
	assert.Equal(t, 1, failed)
}

func TestConcurrencyBounded(t *testing.T) {
	lib := &fakeLibrary{
		createFn: func(_ string, _ map[string]any) (string, error) {
			time.Sleep(5 * time.Millisecond)
			return "ITEM1", nil
		},
	}
	c := newCollector(lib, &fakeFetcher{})
	c.Config.MaxInFlight = 2

	tally := c.Run(context.Background(), makeRecords(8), RunOptions{})

	assert.Equal(t, Tally{Succeeded: 8, Failed: 0}, tally)
	assert.LessOrEqual(t, atomic.LoadInt32(&lib.maxInFlight), int32(2))
}

func TestCancelledRunReturnsPartialTally(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	lib := &fakeLibrary{
		createFn: func(_ string, _ map[string]any) (string, error) {
			// Cancel mid-step, then hold the only slot long enough for the
			// launcher to observe the cancellation.
			cancel()
			time.Sleep(50 * time.Millisecond)
			return "ITEM1", nil
		},
	}
	c := newCollector(lib, &fakeFetcher{})
	c.Config.MaxInFlight = 1

	tally := c.Run(ctx, makeRecords(3), RunOptions{})

	// The in-flight record finished its step naturally and was counted;
	// nothing new was launched after cancellation.
	assert.Equal(t, Tally{Succeeded: 1, Failed: 0}, tally)
}
