// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search queries the arXiv API and returns bibliographic records
// for the replication pipeline.
package search

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/refsync/pkg/types"
)

// arxivAPIBase is the arXiv search endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// Query holds the structured search parameters.
type Query struct {
	// Keywords are free-text terms matched across all fields.
	Keywords []string

	// Title restricts matches to paper titles.
	Title string

	// Author filters by author name.
	Author string

	// Categories are arXiv subject classes (e.g. "cs.AI", "cs.MA").
	Categories []string

	// DateFrom / DateTo bound the submission date. Zero values mean unbounded.
	DateFrom time.Time
	DateTo   time.Time
}

// IsEmpty reports whether the query contains no searchable terms.
func (q Query) IsEmpty() bool {
	return len(q.Keywords) == 0 && q.Title == "" && q.Author == "" && len(q.Categories) == 0
}

// Client queries the arXiv API.
type Client struct {
	HTTP *http.Client
}

// Search runs the query and returns one Record per result entry, most
// relevant first. The result sequence is finite and non-restartable; each
// record carries the keys the default mapping spec reads.
func (c *Client) Search(ctx context.Context, query Query, cfg types.SearchConfig) ([]types.Record, error) {
	if query.IsEmpty() {
		return nil, fmt.Errorf("query is empty: provide keywords, a title, an author, or categories")
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 50
	}

	url := fmt.Sprintf("%s?search_query=%s&start=0&max_results=%d&sortBy=relevance&sortOrder=descending",
		arxivAPIBase, buildQuery(query), maxResults)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", cfg.UserAgent)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arXiv API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arXiv API returned HTTP %d", resp.StatusCode)
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("parsing arXiv response: %w", err)
	}

	var records []types.Record
	for _, entry := range feed.Entries {
		if r := entry.toRecord(); r != nil {
			records = append(records, r)
		}
	}
	return records, nil
}

// buildQuery constructs the search_query parameter from structured fields.
func buildQuery(q Query) string {
	var parts []string

	for _, kw := range q.Keywords {
		parts = append(parts, "all:"+joinTerms(kw))
	}
	if q.Title != "" {
		parts = append(parts, "ti:"+joinTerms(q.Title))
	}
	if q.Author != "" {
		parts = append(parts, "au:"+joinTerms(q.Author))
	}
	if len(q.Categories) > 0 {
		cats := make([]string, len(q.Categories))
		for i, c := range q.Categories {
			cats[i] = "cat:" + c
		}
		parts = append(parts, "%28"+strings.Join(cats, "+OR+")+"%29")
	}

	query := strings.Join(parts, "+AND+")

	if !q.DateFrom.IsZero() || !q.DateTo.IsZero() {
		from, to := "000001010000", "999912312359"
		if !q.DateFrom.IsZero() {
			from = q.DateFrom.Format("200601021504")
		}
		if !q.DateTo.IsZero() {
			to = q.DateTo.Format("200601021504")
		}
		rangeExpr := fmt.Sprintf("submittedDate:%%5B%s+TO+%s%%5D", from, to)
		if query == "" {
			query = rangeExpr
		} else {
			query += "+AND+" + rangeExpr
		}
	}
	return query
}

func joinTerms(s string) string {
	return strings.Join(strings.Fields(s), "+")
}

// arXiv Atom feed XML structures. The arxiv-namespace extension elements
// (comment, journal_ref) match by local name.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID         string          `xml:"id"`
	Title      string          `xml:"title"`
	Summary    string          `xml:"summary"`
	Published  string          `xml:"published"`
	Authors    []arxivAuthor   `xml:"author"`
	Categories []arxivCategory `xml:"category"`
	Links      []arxivLink     `xml:"link"`
	Comment    string          `xml:"comment"`
	JournalRef string          `xml:"journal_ref"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

type arxivCategory struct {
	Term string `xml:"term,attr"`
}

type arxivLink struct {
	Href  string `xml:"href,attr"`
	Title string `xml:"title,attr"`
	Type  string `xml:"type,attr"`
}

// toRecord converts a feed entry into a flat Record. Entries without an
// arXiv ID are dropped. Optional keys (abstract, categories, comment,
// journal ref) are omitted when empty rather than set to "".
func (e arxivEntry) toRecord() types.Record {
	id := extractArxivID(e.ID)
	if id == "" {
		return nil
	}

	r := types.Record{
		types.KeyArxivID:  id,
		types.KeyTitle:    strings.TrimSpace(e.Title),
		types.KeyArxivURL: "https://arxiv.org/abs/" + id,
	}

	var authors []string
	for _, a := range e.Authors {
		authors = append(authors, strings.TrimSpace(a.Name))
	}
	if len(authors) > 0 {
		r[types.KeyAuthors] = authors
	}

	if abstract := strings.TrimSpace(e.Summary); abstract != "" {
		r[types.KeyAbstract] = abstract
	}
	if t, err := time.Parse(time.RFC3339, e.Published); err == nil {
		r[types.KeyPublished] = t
	}

	var categories []string
	for _, c := range e.Categories {
		if c.Term != "" {
			categories = append(categories, c.Term)
		}
	}
	if len(categories) > 0 {
		r[types.KeyCategories] = categories
	}

	if pdfURL := e.pdfURL(id); pdfURL != "" {
		r[types.KeyPDFURL] = pdfURL
	}
	if comment := strings.TrimSpace(e.Comment); comment != "" {
		r[types.KeyComment] = comment
	}
	if ref := strings.TrimSpace(e.JournalRef); ref != "" {
		r[types.KeyJournalRef] = ref
	}
	return r
}

// pdfURL picks the PDF link from the entry, falling back to the canonical
// arXiv PDF location.
func (e arxivEntry) pdfURL(id string) string {
	for _, l := range e.Links {
		if l.Title == "pdf" || l.Type == "application/pdf" {
			return l.Href
		}
	}
	return "https://arxiv.org/pdf/" + id
}

// extractArxivID pulls the arXiv ID from the entry's <id> URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" -> "2301.07041").
func extractArxivID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	id := idURL[idx+len(prefix):]

	// Strip version suffix (e.g. "v1", "v2").
	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 {
		if _, err := strconv.Atoi(id[vIdx+1:]); err == nil {
			id = id[:vIdx]
		}
	}
	return id
}
