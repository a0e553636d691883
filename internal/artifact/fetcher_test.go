// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package artifact

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/pdiddy/refsync/pkg/types"
)

func TestSanitizeTitle(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Attention Is All You Need", "Attention Is All You Need"},
		{"punctuation dropped", "Graphs: Theory & Practice!", "Graphs Theory  Practice"},
		{"slashes dropped", "a/b\\c", "abc"},
		{"keeps hyphen underscore", "multi-agent_systems", "multi-agent_systems"},
		{"empty", "", "artifact"},
		{"only punctuation", "???///:::", "artifact"},
		{"truncated", strings.Repeat("a", 200), strings.Repeat("a", 80)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeTitle(tt.input); got != tt.want {
				t.Errorf("SanitizeTitle(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func newPDFServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
}

func testFetcher(ts *httptest.Server, dir string) *Fetcher {
	return &Fetcher{
		Client: ts.Client(),
		Config: types.ArtifactConfig{
			HTTPConfig: types.HTTPConfig{UserAgent: "refsync-test/0.1"},
			Dir:        dir,
		},
	}
}

func TestFetchWritesFile(t *testing.T) {
	ts := newPDFServer(t, http.StatusOK, "%PDF-1.4 fake")
	defer ts.Close()

	f := testFetcher(ts, t.TempDir())
	h, err := f.Fetch(context.Background(), ts.URL+"/pdf/2301.07041", "A Test: Paper")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if h.DisplayName != "A Test Paper.pdf" {
		t.Errorf("DisplayName = %q, want %q", h.DisplayName, "A Test Paper.pdf")
	}
	data, err := os.ReadFile(h.Path)
	if err != nil {
		t.Fatalf("reading artifact: %v", err)
	}
	if string(data) != "%PDF-1.4 fake" {
		t.Errorf("artifact content = %q", data)
	}
}

func TestFetchCollidingTitlesDoNotOverwrite(t *testing.T) {
	ts := newPDFServer(t, http.StatusOK, "content")
	defer ts.Close()

	f := testFetcher(ts, t.TempDir())
	ctx := context.Background()

	h1, err := f.Fetch(ctx, ts.URL+"/pdf/first", "Same! Title")
	if err != nil {
		t.Fatalf("first Fetch: %v", err)
	}
	h2, err := f.Fetch(ctx, ts.URL+"/pdf/second", "Same? Title")
	if err != nil {
		t.Fatalf("second Fetch: %v", err)
	}

	if h1.Path == h2.Path {
		t.Errorf("colliding titles produced the same path %q", h1.Path)
	}
	if _, err := os.Stat(h1.Path); err != nil {
		t.Errorf("first artifact missing after second fetch: %v", err)
	}
}

func TestFetchConcurrentCollidingTitles(t *testing.T) {
	// The server holds both responses until both downloads are in flight,
	// so the two fetches race to resolve the same sanitized title.
	requests := make(chan struct{}, 2)
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests <- struct{}{}
		<-release
		w.Header().Set("Content-Type", "application/pdf")
		fmt.Fprint(w, "content-of-"+r.URL.Path)
	}))
	defer ts.Close()

	f := testFetcher(ts, t.TempDir())
	paths := []string{"/pdf/first", "/pdf/second"}

	var wg sync.WaitGroup
	handles := make([]Handle, len(paths))
	errs := make([]error, len(paths))
	for i, p := range paths {
		wg.Add(1)
		go func(i int, p string) {
			defer wg.Done()
			handles[i], errs[i] = f.Fetch(context.Background(), ts.URL+p, "Same! Title")
		}(i, p)
	}
	<-requests
	<-requests
	close(release)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("Fetch %s: %v", paths[i], err)
		}
	}
	if handles[0].Path == handles[1].Path {
		t.Fatalf("concurrent colliding titles resolved to the same path %q", handles[0].Path)
	}
	for i, h := range handles {
		data, err := os.ReadFile(h.Path)
		if err != nil {
			t.Fatalf("reading artifact %s: %v", paths[i], err)
		}
		if want := "content-of-" + paths[i]; string(data) != want {
			t.Errorf("artifact %s content = %q, want %q", paths[i], data, want)
		}
	}
}

func TestFetchNonOKStatus(t *testing.T) {
	ts := newPDFServer(t, http.StatusNotFound, "missing")
	defer ts.Close()

	f := testFetcher(ts, t.TempDir())
	_, err := f.Fetch(context.Background(), ts.URL+"/pdf/nope", "Gone Paper")
	if err == nil {
		t.Fatal("Fetch should fail on HTTP 404")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("error should mention status, got %v", err)
	}

	// No stray files left behind.
	entries, readErr := os.ReadDir(f.Config.Dir)
	if readErr == nil && len(entries) != 0 {
		t.Errorf("artifact dir should be empty, has %d entries", len(entries))
	}
}

func TestFetchEmptyURL(t *testing.T) {
	f := &Fetcher{Client: http.DefaultClient, Config: types.ArtifactConfig{Dir: t.TempDir()}}
	if _, err := f.Fetch(context.Background(), "", "Title"); err == nil {
		t.Fatal("Fetch should fail on empty URL")
	}
}
