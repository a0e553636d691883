// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads library credentials from a directory of plain-text
// files. Each file in the directory represents one secret: the filename is
// the key name and the file contents (trimmed) are the value.
//
// Supported key files: library-id, api-key, collection-key.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Key file names recognized by LoadCredentials.
const (
	KeyLibraryID  = "library-id"
	KeyAPIKey     = "api-key"
	KeyCollection = "collection-key"
)

// Credentials holds what the library service needs for authenticated writes.
type Credentials struct {
	// LibraryID is the numeric user-library identifier. Required.
	LibraryID string

	// APIKey authenticates write requests. Required.
	APIKey string

	// CollectionKey is the default collection new items are filed into.
	// Optional; empty means no collection.
	CollectionKey string
}

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files produce a warning on stderr but do not abort.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// LoadCredentials loads and validates library credentials from dir. The
// library ID and API key are mandatory; the collection key is optional.
func LoadCredentials(dir string) (Credentials, error) {
	s, err := Load(dir)
	if err != nil {
		return Credentials{}, err
	}

	creds := Credentials{
		LibraryID:     s[KeyLibraryID],
		APIKey:        s[KeyAPIKey],
		CollectionKey: s[KeyCollection],
	}
	if creds.LibraryID == "" {
		return Credentials{}, fmt.Errorf("missing required secret %q in %s", KeyLibraryID, dir)
	}
	if creds.APIKey == "" {
		return Credentials{}, fmt.Errorf("missing required secret %q in %s", KeyAPIKey, dir)
	}
	return creds, nil
}
