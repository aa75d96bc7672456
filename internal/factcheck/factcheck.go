// Package factcheck verifies document citations inside a generated report.
// Every distinct document identifier mentioned in the text is checked
// against the local retrieval index first, then against the external search
// service.
package factcheck

import (
	"context"
	"log"
	"sort"
	"strings"

	"github.com/inquestlab/inquest/internal/docs"
)

// Citation statuses.
const (
	StatusVerified   = "verified"
	StatusUnverified = "unverified"
)

// Citation sources: where verification succeeded.
const (
	SourceIndex  = "index"
	SourceSearch = "search"
)

// Detail is the outcome for one cited document id.
type Detail struct {
	DocID  string `json:"doc_id"`
	Status string `json:"status"`
	Source string `json:"source,omitempty"`
}

// Report summarizes a verification pass.
type Report struct {
	TotalCitations int      `json:"total_citations"`
	Verified       int      `json:"verified"`
	Unverified     int      `json:"unverified"`
	Details        []Detail `json:"details"`
}

// Recorder answers whether a document id was ingested locally.
type Recorder interface {
	Has(docID string) bool
}

// Checker verifies citations. Both collaborators are optional; a nil one is
// simply skipped.
type Checker struct {
	recorder Recorder
	searcher docs.Searcher
	logger   *log.Logger
}

func New(recorder Recorder, searcher docs.Searcher) *Checker {
	return &Checker{
		recorder: recorder,
		searcher: searcher,
		logger:   log.New(log.Writer(), "[FACTCHECK] ", log.LstdFlags),
	}
}

// ExtractCitations returns the distinct document ids cited in text, sorted.
func ExtractCitations(text string) []string {
	seen := map[string]bool{}
	var out []string
	for _, id := range docs.IDPattern.FindAllString(text, -1) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Verify checks every citation in text. A citation is verified when the
// retrieval index knows the id, or when a search for the id returns a hit
// whose id or URL contains it. Search failures leave the citation
// unverified rather than failing the pass.
func (c *Checker) Verify(ctx context.Context, text string) Report {
	ids := ExtractCitations(text)
	rep := Report{TotalCitations: len(ids), Details: make([]Detail, 0, len(ids))}
	for _, id := range ids {
		d := c.verifyOne(ctx, id)
		if d.Status == StatusVerified {
			rep.Verified++
		} else {
			rep.Unverified++
		}
		rep.Details = append(rep.Details, d)
	}
	return rep
}

func (c *Checker) verifyOne(ctx context.Context, id string) Detail {
	if c.recorder != nil && c.recorder.Has(id) {
		return Detail{DocID: id, Status: StatusVerified, Source: SourceIndex}
	}
	if c.searcher != nil {
		hits, err := c.searcher.Search(ctx, id, 0)
		if err != nil {
			c.logger.Printf("search %s: %v", id, err)
		} else {
			for _, h := range hits {
				if strings.Contains(h.ID, id) || strings.Contains(h.URL, id) {
					return Detail{DocID: id, Status: StatusVerified, Source: SourceSearch}
				}
			}
		}
	}
	return Detail{DocID: id, Status: StatusUnverified}
}
