package crew

import (
	"context"
	"fmt"
	"time"

	"github.com/inquestlab/inquest/internal/docs"
	"github.com/inquestlab/inquest/internal/investigation"
)

// research collects the document corpus for a strategy: paged keyword
// searches per term, a semantic pass over the retrieval index for the
// leading terms, and a best-effort full-text download for every hit.
// Individual term or download failures are logged and skipped.
func (c *Crew) research(ctx context.Context, strategy investigation.Strategy, res *Result) ([]docs.Document, []string) {
	terms := searchTerms(strategy, c.cfg.MaxTerms, c.cfg.PeopleTerms)

	var (
		found     []docs.Document
		stats     []string
		seen      = map[string]bool{}
		searchErr error
	)
	c.stage(StageResearcher, res, func() (investigation.AgentStatus, error) {
		for i, term := range terms {
			if i > 0 && c.cfg.TermDelay > 0 {
				select {
				case <-time.After(c.cfg.TermDelay):
				case <-ctx.Done():
					return investigation.StatusFailed, ctx.Err()
				}
			}
			termTotal := 0
			for page := 0; page < c.cfg.PagesPerTerm; page++ {
				hits, err := c.searcher.Search(ctx, term, page)
				if err != nil {
					searchErr = err
					c.logger.Printf("search %q page %d: %v", term, page, err)
					break
				}
				if page == 0 {
					termTotal = len(hits)
				}
				for _, d := range hits {
					if d.ID == "" || seen[d.ID] {
						continue
					}
					seen[d.ID] = true
					found = append(found, d)
				}
				if len(hits) == 0 {
					break
				}
			}
			stats = append(stats, fmt.Sprintf("'%s': %d documents", term, termTotal))
		}

		c.semanticPass(ctx, terms, seen, &found)
		c.downloadTexts(ctx, found)
		c.ingest(ctx, found)

		switch {
		case len(found) > 0:
			return investigation.StatusOK, nil
		case searchErr != nil:
			return investigation.StatusFailed, fmt.Errorf("document search: %w", searchErr)
		default:
			return investigation.StatusEmpty, nil
		}
	})
	return found, stats
}

// searchTerms flattens a strategy into at most maxTerms search terms:
// primary, then secondary, then the first peopleTerms people.
func searchTerms(s investigation.Strategy, maxTerms, peopleTerms int) []string {
	var out []string
	seen := map[string]bool{}
	add := func(term string) {
		if term == "" || seen[term] || len(out) >= maxTerms {
			return
		}
		seen[term] = true
		out = append(out, term)
	}
	for _, t := range s.PrimaryTerms {
		add(t)
	}
	for _, t := range s.SecondaryTerms {
		add(t)
	}
	for i, p := range s.People {
		if i >= peopleTerms {
			break
		}
		add(p)
	}
	return out
}

// semanticPass augments the corpus with retrieval-index hits for the
// leading terms. Documents already found by keyword search are skipped.
func (c *Crew) semanticPass(ctx context.Context, terms []string, seen map[string]bool, found *[]docs.Document) {
	if c.idx == nil || c.idx.Size() == 0 {
		return
	}
	for i, term := range terms {
		if i >= c.cfg.SemanticTerms {
			break
		}
		hits, err := c.idx.Search(ctx, term, c.cfg.SemanticResults)
		if err != nil {
			c.logger.Printf("semantic search %q: %v", term, err)
			continue
		}
		for _, h := range hits {
			if h.DocID == "" || seen[h.DocID] {
				continue
			}
			seen[h.DocID] = true
			*found = append(*found, docs.Document{
				ID: h.DocID, Title: h.Title, URL: h.URL, Snippet: h.Snippet, Score: h.Score,
			})
		}
	}
}

// downloadTexts tries to attach capped full text to every document.
// Failures are swallowed: a snippet-only document still feeds analysis.
func (c *Crew) downloadTexts(ctx context.Context, found []docs.Document) {
	if c.fetcher == nil {
		return
	}
	for i := range found {
		if found[i].FullText != "" || found[i].URL == "" {
			continue
		}
		text, err := c.fetcher.Text(ctx, found[i])
		if err != nil {
			c.logger.Printf("full text %s: %v", found[i].ID, err)
			continue
		}
		found[i].FullText = docs.Truncate(text, c.cfg.FullTextCap)
	}
}

func (c *Crew) ingest(ctx context.Context, found []docs.Document) {
	if c.idx == nil {
		return
	}
	for _, d := range found {
		if c.idx.Has(d.ID) {
			continue
		}
		if err := c.idx.Add(ctx, d); err != nil {
			c.logger.Printf("index %s: %v", d.ID, err)
		}
	}
}
