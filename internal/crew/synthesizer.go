package crew

import (
	"context"
	"fmt"
	"strings"

	"github.com/inquestlab/inquest/internal/investigation"
	"github.com/inquestlab/inquest/provider"
)

// synthesize writes the final markdown report. A failed synthesis leaves a
// minimal report built from the structured data so the run still returns
// something readable.
func (c *Crew) synthesize(ctx context.Context, inv investigation.Investigation, res *Result) string {
	var report string
	c.stage(StageSynthesizer, res, func() (investigation.AgentStatus, error) {
		prompt := fmt.Sprintf(`Write the final report of a document investigation.

OBJECTIVE: %s

STRATEGY:
%s

SEARCH STATISTICS:
%s

ANALYSIS:
%s

BANKING:
%s

IDENTITIES:
%s

CODED LANGUAGE:
%s

OPEN QUESTIONS:
%s

Rules:
- Markdown, with sections for findings, people, money, timeline and open questions.
- Every factual claim carries its document identifier (EFTA...) exactly as given.
- If a claim has no identifiable source document, mark it "documento non identificato".
- Distinguish three kinds of evidence explicitly: direct communication between two people, a mention of someone by a third party, and press coverage. Never present one as another.`,
			inv.Objective, jsonCompact(inv.Strategy), strings.Join(inv.SearchStats, "\n"),
			jsonCompact(inv.Analysis), jsonCompact(inv.Banking),
			jsonCompact(inv.Identities), jsonCompact(inv.Cipher), jsonCompact(inv.FollowUp))

		out, err := c.llm.Complete(ctx, provider.CompletionRequest{
			System:    "You are an investigative journalist writing an evidence-grounded report.",
			Prompt:    prompt,
			MaxTokens: 4000,
		})
		if err != nil {
			report = fallbackReport(inv)
			return investigation.StatusFailed, fmt.Errorf("synthesis: %w", err)
		}
		report = out
		return investigation.StatusOK, nil
	})
	return report
}

func fallbackReport(inv investigation.Investigation) string {
	out := fmt.Sprintf("# %s\n\nReport synthesis failed; structured findings follow.\n\n## Key people\n", inv.Objective)
	for _, p := range inv.Analysis.KeyPeople {
		out += fmt.Sprintf("- %s (%s, %s)", p.Name, p.Role, p.Relevance)
		if p.EvidenceDoc != "" {
			out += " [" + p.EvidenceDoc + "]"
		}
		out += "\n"
	}
	out += "\n## Connections\n"
	for _, c := range inv.Analysis.Connections {
		out += fmt.Sprintf("- %s -> %s (%s)\n", c.From, c.To, c.Type)
	}
	return out
}
