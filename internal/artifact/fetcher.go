// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package artifact downloads binary artifacts (PDFs) and names them after
// their record titles.
package artifact

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/pdiddy/refsync/pkg/types"
)

// maxNameLen bounds the sanitized display name length in runes.
const maxNameLen = 80

// Handle identifies a downloaded artifact on local storage. It is owned by
// the pipeline task that created it until handed to the attach step.
type Handle struct {
	// Path is the local filesystem path of the downloaded file.
	Path string

	// DisplayName is the filesystem-safe name derived from the record title.
	DisplayName string
}

// Fetcher downloads artifacts over HTTP into a local directory. It never
// retries; retry policy, if any, belongs to the caller.
type Fetcher struct {
	Client *http.Client
	Config types.ArtifactConfig
}

// Fetch retrieves url into the configured directory under a name derived
// from title. Non-2xx responses and write failures are errors. The
// destination path is reserved with an exclusive create before the
// download lands, so two records whose titles collide after sanitization
// (even in concurrent fetches) resolve to distinct paths: the loser of the
// reservation gets a short URL-hash suffix instead of overwriting.
func (f *Fetcher) Fetch(ctx context.Context, url, title string) (Handle, error) {
	if url == "" {
		return Handle{}, fmt.Errorf("empty artifact URL")
	}

	if err := os.MkdirAll(f.Config.Dir, 0o755); err != nil {
		return Handle{}, fmt.Errorf("creating artifact directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Handle{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.Config.UserAgent)
	req.Header.Set("Accept", "application/pdf")

	resp, err := f.Client.Do(req)
	if err != nil {
		return Handle{}, fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Handle{}, fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}

	destPath, claimed, err := f.claim(SanitizeTitle(title), url)
	if err != nil {
		return Handle{}, err
	}

	// Write to a temp file and rename on success so a partial download
	// never occupies the final path.
	tmpFile, err := os.CreateTemp(f.Config.Dir, ".fetch-*.tmp")
	if err != nil {
		if claimed {
			os.Remove(destPath)
		}
		return Handle{}, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	cleanup := func() {
		os.Remove(tmpPath)
		if claimed {
			os.Remove(destPath)
		}
	}

	_, copyErr := io.Copy(tmpFile, resp.Body)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		cleanup()
		return Handle{}, fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		cleanup()
		return Handle{}, fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		cleanup()
		return Handle{}, fmt.Errorf("renaming temp file: %w", err)
	}

	return Handle{Path: destPath, DisplayName: filepath.Base(destPath)}, nil
}

// claim reserves a destination path with O_EXCL creates, so concurrent
// fetches for colliding titles never resolve to the same path. The plain
// sanitized name is tried first, then the URL-hash suffixed name. If both
// exist, the hashed path already belongs to this URL from an earlier fetch
// and is reused; claimed is false in that case and the caller must not
// remove the file on failure.
func (f *Fetcher) claim(name, rawURL string) (path string, claimed bool, err error) {
	for _, candidate := range []string{name, name + "-" + urlHash(rawURL)} {
		path = filepath.Join(f.Config.Dir, candidate+".pdf")
		fh, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			fh.Close()
			return path, true, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", false, fmt.Errorf("reserving artifact path: %w", err)
		}
	}
	return path, false, nil
}

// SanitizeTitle reduces a record title to a filesystem-safe name: letters,
// digits, spaces, hyphens, and underscores are kept, everything else is
// dropped, and the result is truncated to 80 runes. An empty result falls
// back to "artifact".
func SanitizeTitle(title string) string {
	var b strings.Builder
	for _, r := range title {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	name := strings.TrimSpace(b.String())
	if runes := []rune(name); len(runes) > maxNameLen {
		name = strings.TrimSpace(string(runes[:maxNameLen]))
	}
	if name == "" {
		return "artifact"
	}
	return name
}

// urlHash returns a short stable suffix derived from the source URL.
func urlHash(rawURL string) string {
	h := sha256.Sum256([]byte(rawURL))
	return fmt.Sprintf("%x", h[:4])
}
