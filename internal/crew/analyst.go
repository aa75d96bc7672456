package crew

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/inquestlab/inquest/internal/docs"
	"github.com/inquestlab/inquest/internal/investigation"
	"github.com/inquestlab/inquest/internal/merge"
	"github.com/inquestlab/inquest/internal/recovery"
	"github.com/inquestlab/inquest/provider"
)

// analyze runs the analysis stage. Small corpora go through a single call;
// larger ones are split into batches analyzed by a bounded worker pool,
// each batch under its own deadline, and the partial analyses are merged
// deterministically. A batch that fails or times out is dropped with a
// warning; only a run where every batch fails reports the stage as failed.
func (c *Crew) analyze(ctx context.Context, objective string, found []docs.Document, res *Result) investigation.Analysis {
	analysis := investigation.EmptyAnalysis()
	known := c.knownPeople(ctx)

	c.stage(StageAnalyst, res, func() (investigation.AgentStatus, error) {
		if len(found) <= c.cfg.BatchSize {
			a, err := c.analyzeBatch(ctx, objective, found, known)
			if err != nil {
				return investigation.StatusFailed, fmt.Errorf("analysis: %w", err)
			}
			analysis = a
			return analysisStatus(analysis), nil
		}

		batches := splitBatches(found, c.cfg.BatchSize)
		results := make([]*investigation.Analysis, len(batches))
		errs := make([]error, len(batches))

		sem := make(chan struct{}, c.cfg.BatchWorkers)
		var wg sync.WaitGroup
		for i := range batches {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()

				bctx, cancel := context.WithTimeout(ctx, c.cfg.BatchTimeout)
				defer cancel()
				a, err := c.analyzeBatch(bctx, objective, batches[i], known)
				if err != nil {
					errs[i] = err
					return
				}
				results[i] = &a
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for i := range batches {
			if errs[i] != nil {
				res.Warnings = append(res.Warnings, fmt.Sprintf("analysis batch %d/%d dropped: %v", i+1, len(batches), errs[i]))
				continue
			}
			analysis = merge.Analyses(analysis, *results[i])
			succeeded++
		}
		if succeeded == 0 {
			return investigation.StatusFailed, fmt.Errorf("all %d analysis batches failed", len(batches))
		}
		c.logger.Printf("analysis: %d/%d batches merged", succeeded, len(batches))
		return analysisStatus(analysis), nil
	})
	return analysis
}

func analysisStatus(a investigation.Analysis) investigation.AgentStatus {
	if len(a.KeyPeople) == 0 && len(a.Connections) == 0 && len(a.Timeline) == 0 &&
		len(a.Patterns) == 0 && len(a.Locations) == 0 && len(a.KeyEvidence) == 0 {
		return investigation.StatusEmpty
	}
	return investigation.StatusOK
}

func splitBatches(found []docs.Document, size int) [][]docs.Document {
	var out [][]docs.Document
	for len(found) > size {
		out = append(out, found[:size])
		found = found[size:]
	}
	if len(found) > 0 {
		out = append(out, found)
	}
	return out
}

func (c *Crew) knownPeople(ctx context.Context) []string {
	if c.registry == nil {
		return nil
	}
	return c.registry.KnownNames(ctx)
}

func (c *Crew) analyzeBatch(ctx context.Context, objective string, batch []docs.Document, known []string) (investigation.Analysis, error) {
	raw, err := c.llm.Complete(ctx, provider.CompletionRequest{
		System:    "You are the lead analyst of a document investigation team. You extract people, connections and events with document citations.",
		Prompt:    analystPrompt(objective, batch, known),
		MaxTokens: 3000,
	})
	if err != nil {
		return investigation.Analysis{}, err
	}
	var a investigation.Analysis
	if err := recovery.Decode(raw, &a); err != nil {
		return investigation.Analysis{}, fmt.Errorf("analysis response: %w", err)
	}
	return a, nil
}

func analystPrompt(objective string, batch []docs.Document, known []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "OBJECTIVE: %s\n\nDOCUMENTS:\n%s\n", objective, docContext(batch))
	if len(known) > 0 {
		fmt.Fprintf(&sb, "\nPeople already on file from earlier investigations (reuse these exact names when you see them): %s\n", strings.Join(known, ", "))
	}
	sb.WriteString(`
Weigh evidence by its kind, and never conflate them:
- DIRECT COMMUNICATION: an email written by or addressed to the person (strong evidence).
- THIRD-PARTY MENTION: the name appears in mail between other people talking about them (weak evidence).
- PRESS COVERAGE: a saved news article that mentions the person (not evidence).
A person who is only mentioned by others cannot be reported as involved; state who
wrote to whom and whether the person ever replied directly.

Analyze the documents against the objective. Respond with a single JSON object:
{
  "key_people": [{"name": "", "role": "", "relevance": "alta|media|bassa", "evidence_doc": "EFTA..."}],
  "connections": [{"from": "", "to": "", "type": "", "evidence": "", "evidence_doc": "EFTA..."}],
  "timeline": [{"date": "YYYY-MM-DD", "event": "", "evidence_doc": "EFTA..."}],
  "patterns": ["recurring behavior across documents"],
  "locations": ["place names that matter"],
  "key_evidence": [{"document": "EFTA...", "description": "", "significance": ""}]
}
Only report what the documents support; cite the document identifier for every claim that has one.`)
	return sb.String()
}

// docContext renders a document batch for a prompt: identifier, title, and
// whatever text we have.
func docContext(batch []docs.Document) string {
	var sb strings.Builder
	for _, d := range batch {
		fmt.Fprintf(&sb, "[%s] %s\n", d.ID, d.Title)
		if d.Snippet != "" {
			fmt.Fprintf(&sb, "  excerpt: %s\n", d.Snippet)
		}
		if d.FullText != "" {
			fmt.Fprintf(&sb, "  text: %s\n", d.FullText)
		}
	}
	return sb.String()
}
