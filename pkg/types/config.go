package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "refsync/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// SearchConfig holds settings for the arXiv search stage.
type SearchConfig struct {
	HTTPConfig `yaml:",inline"`

	// MaxResults is the maximum number of records to retrieve (default 50).
	MaxResults int `json:"max_results" yaml:"max_results"`
}

// LibraryConfig holds settings for the reference-library service.
type LibraryConfig struct {
	HTTPConfig `yaml:",inline"`

	// LibraryID is the numeric user-library identifier on the service.
	LibraryID string `json:"library_id" yaml:"library_id"`

	// APIKey authenticates write requests.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// CollectionKey is the optional collection new items are filed under.
	// Empty means items stay at the library root.
	CollectionKey string `json:"collection_key,omitempty" yaml:"collection_key,omitempty"`

	// ItemType is the remote item type created per record (default "journalArticle").
	ItemType string `json:"item_type" yaml:"item_type"`
}

// ArtifactConfig holds settings for PDF artifact downloads.
type ArtifactConfig struct {
	HTTPConfig `yaml:",inline"`

	// Dir is the local directory artifacts are written to.
	Dir string `json:"dir" yaml:"dir"`
}

// CollectConfig holds settings for the concurrent replication run.
type CollectConfig struct {
	// MaxInFlight bounds the number of records processed concurrently (default 4).
	MaxInFlight int `json:"max_in_flight" yaml:"max_in_flight"`

	// DownloadArtifacts controls whether PDF artifacts are fetched and attached.
	DownloadArtifacts bool `json:"download_artifacts" yaml:"download_artifacts"`

	// AttachAttempts is the number of attachment-upload attempts (default 3).
	AttachAttempts int `json:"attach_attempts" yaml:"attach_attempts"`

	// AttachBaseDelay is the base delay for linear backoff between
	// attachment-upload attempts (default 2s).
	AttachBaseDelay time.Duration `json:"attach_base_delay" yaml:"attach_base_delay"`
}

// LedgerConfig holds settings for the local run ledger.
type LedgerConfig struct {
	// Path is the SQLite database file (default "refsync.db").
	Path string `json:"path" yaml:"path"`
}

// PipelineConfig groups all stage configurations.
type PipelineConfig struct {
	Search   SearchConfig   `json:"search" yaml:"search"`
	Library  LibraryConfig  `json:"library" yaml:"library"`
	Artifact ArtifactConfig `json:"artifact" yaml:"artifact"`
	Collect  CollectConfig  `json:"collect" yaml:"collect"`
	Ledger   LedgerConfig   `json:"ledger" yaml:"ledger"`
}
