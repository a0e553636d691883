// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package library is the HTTP client for the reference-library service. It
// creates bibliographic items, files them into collections, and uploads
// file attachments, speaking a Zotero-style JSON API.
package library

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/pdiddy/refsync/pkg/types"
)

// defaultBaseURL is the production API endpoint.
const defaultBaseURL = "https://api.zotero.org"

// Client talks to one user library on the reference service.
type Client struct {
	// BaseURL is the API root. Tests substitute an httptest server.
	BaseURL string

	httpClient *http.Client
	cfg        types.LibraryConfig
}

// NewClient builds a Client for the library identified in cfg.
func NewClient(httpClient *http.Client, cfg types.LibraryConfig) *Client {
	return &Client{
		BaseURL:    defaultBaseURL,
		httpClient: httpClient,
		cfg:        cfg,
	}
}

// createResponse mirrors the item-write response envelope.
type createResponse struct {
	Successful map[string]struct {
		Key string `json:"key"`
	} `json:"successful"`
	Failed map[string]struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"failed"`
}

// CreateItem creates one bibliographic item of the given type with the
// mapped fields and returns the new item key. A rejected or malformed
// response is an error; no item key is ever returned alongside one.
func (c *Client) CreateItem(ctx context.Context, itemType string, fields map[string]any) (string, error) {
	item := make(map[string]any, len(fields)+1)
	item["itemType"] = itemType
	for k, v := range fields {
		item[k] = v
	}

	body, err := json.Marshal([]map[string]any{item})
	if err != nil {
		return "", fmt.Errorf("encoding item: %w", err)
	}

	url := fmt.Sprintf("%s/users/%s/items", c.BaseURL, c.cfg.LibraryID)
	resp, err := c.post(ctx, url, "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("item create returned HTTP %d", resp.StatusCode)
	}

	var cr createResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("parsing item create response: %w", err)
	}
	for _, f := range cr.Failed {
		return "", fmt.Errorf("item rejected by library: %s (code %d)", f.Message, f.Code)
	}
	for _, s := range cr.Successful {
		if s.Key == "" {
			break
		}
		return s.Key, nil
	}
	return "", fmt.Errorf("item create response contained no item key")
}

// AddToCollection files an existing item into the collection.
func (c *Client) AddToCollection(ctx context.Context, collectionKey, itemKey string) error {
	body, err := json.Marshal([]string{itemKey})
	if err != nil {
		return fmt.Errorf("encoding collection membership: %w", err)
	}

	url := fmt.Sprintf("%s/users/%s/collections/%s/items", c.BaseURL, c.cfg.LibraryID, collectionKey)
	resp, err := c.post(ctx, url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("collection add returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// AttachmentTemplate binds a local artifact to its parent item for upload.
type AttachmentTemplate struct {
	Title       string `json:"title"`
	ParentItem  string `json:"parentItem"`
	ContentType string `json:"contentType"`
	Filename    string `json:"filename"`
	LinkMode    string `json:"linkMode"`
}

// ImportedFileAttachment builds the template for a locally stored PDF.
func ImportedFileAttachment(title, parentItem, path string) AttachmentTemplate {
	return AttachmentTemplate{
		Title:       title,
		ParentItem:  parentItem,
		ContentType: "application/pdf",
		Filename:    filepath.Base(path),
		LinkMode:    "imported_file",
	}
}

// UploadResult is the service's verdict on an attachment submission,
// bucketed into newly accepted, unchanged (idempotent re-submission), and
// rejected entries.
type UploadResult struct {
	Success   map[string]string `json:"success"`
	Unchanged map[string]string `json:"unchanged"`
	Failure   map[string]string `json:"failure"`
}

// Accepted reports whether the service holds the attachment, either newly
// stored or already present.
func (r UploadResult) Accepted() bool {
	return len(r.Success) > 0 || len(r.Unchanged) > 0
}

// Rejected reports whether the service refused any entry.
func (r UploadResult) Rejected() bool {
	return len(r.Failure) > 0
}

// UploadAttachment submits the attachment metadata and the file at
// localPath in one multipart request. Re-uploading an unchanged file lands
// in the Unchanged bucket, so the call is safe to retry. Interpretation of
// the buckets is left to the caller.
func (c *Client) UploadAttachment(ctx context.Context, tmpl AttachmentTemplate, localPath string) (UploadResult, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return UploadResult{}, fmt.Errorf("opening artifact: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	meta, err := mw.CreateFormField("metadata")
	if err != nil {
		return UploadResult{}, fmt.Errorf("building upload form: %w", err)
	}
	if err := json.NewEncoder(meta).Encode(tmpl); err != nil {
		return UploadResult{}, fmt.Errorf("encoding attachment metadata: %w", err)
	}

	part, err := mw.CreateFormFile("file", tmpl.Filename)
	if err != nil {
		return UploadResult{}, fmt.Errorf("building upload form: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return UploadResult{}, fmt.Errorf("reading artifact: %w", err)
	}
	if err := mw.Close(); err != nil {
		return UploadResult{}, fmt.Errorf("finalizing upload form: %w", err)
	}

	url := fmt.Sprintf("%s/users/%s/attachments", c.BaseURL, c.cfg.LibraryID)
	resp, err := c.post(ctx, url, mw.FormDataContentType(), &buf)
	if err != nil {
		return UploadResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return UploadResult{}, fmt.Errorf("attachment upload returned HTTP %d", resp.StatusCode)
	}

	var result UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return UploadResult{}, fmt.Errorf("parsing upload response: %w", err)
	}
	return result, nil
}

// post issues an authenticated POST with the shared headers.
func (c *Client) post(ctx context.Context, url, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	if c.cfg.APIKey != "" {
		req.Header.Set("Zotero-API-Key", c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("library request: %w", err)
	}
	return resp, nil
}
