package crew

import (
	"context"
	"fmt"
	"strings"

	"github.com/inquestlab/inquest/internal/investigation"
	"github.com/inquestlab/inquest/internal/recovery"
	"github.com/inquestlab/inquest/provider"
)

// direct runs the planning stage. A failed completion falls back to the
// crudest viable strategy: the objective's first word as the only search
// term and the objective itself as the only key question.
func (c *Crew) direct(ctx context.Context, objective string, prior *investigation.PriorContext, res *Result) investigation.Strategy {
	var strategy investigation.Strategy
	c.stage(StageDirector, res, func() (investigation.AgentStatus, error) {
		raw, err := c.llm.Complete(ctx, provider.CompletionRequest{
			System:    "You are the director of a document investigation team. You plan archive searches.",
			Prompt:    directorPrompt(objective, prior),
			MaxTokens: 2000,
		})
		if err == nil {
			var s investigation.Strategy
			if derr := recovery.Decode(raw, &s); derr == nil && len(s.PrimaryTerms) > 0 {
				strategy = s
				return investigation.StatusOK, nil
			} else if derr != nil {
				err = fmt.Errorf("strategy response: %w", derr)
			} else {
				err = fmt.Errorf("strategy has no search terms")
			}
		}
		strategy = fallbackStrategy(objective)
		return investigation.StatusFailed, err
	})
	return strategy
}

func directorPrompt(objective string, prior *investigation.PriorContext) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `Plan an investigation over a document archive.

OBJECTIVE: %s

Respond with a single JSON object:
{
  "primary_search_terms": ["3-5 terms that go straight at the objective"],
  "secondary_search_terms": ["3-5 broader or adjacent terms"],
  "people_to_investigate": ["full names worth searching directly"],
  "key_questions": ["what the investigation must answer"],
  "approach": "one sentence on how you will attack this"
}`, objective)
	if prior != nil {
		sb.WriteString("\n\nThis is a CONTINUATION of an earlier investigation.\n")
		fmt.Fprintf(&sb, "Previous objective: %s\n", prior.PreviousObjective)
		fmt.Fprintf(&sb, "Terms already searched (do NOT repeat them): %s\n", strings.Join(prior.PreviousTerms, ", "))
		fmt.Fprintf(&sb, "People already found: %s\n", strings.Join(prior.PeopleFound, ", "))
		fmt.Fprintf(&sb, "Open questions to pursue: %s\n", strings.Join(prior.OpenQuestions, "; "))
		if len(prior.SuggestedSearches) > 0 {
			fmt.Fprintf(&sb, "Searches suggested last time: %s\n", strings.Join(prior.SuggestedSearches, "; "))
		}
		sb.WriteString("Plan NEW ground: fresh terms, unexplored people, the open questions.")
	}
	return sb.String()
}

func fallbackStrategy(objective string) investigation.Strategy {
	term := objective
	if fields := strings.Fields(objective); len(fields) > 0 {
		term = fields[0]
	}
	return investigation.Strategy{
		PrimaryTerms:   []string{term},
		SecondaryTerms: []string{},
		People:         []string{},
		KeyQuestions:   []string{objective},
	}
}
