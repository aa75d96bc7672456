package crew

import (
	"context"
	"fmt"
	"strings"

	"github.com/inquestlab/inquest/internal/investigation"
	"github.com/inquestlab/inquest/internal/recovery"
	"github.com/inquestlab/inquest/provider"
)

// interrogate asks what the investigation has NOT answered yet. On a
// continuation it sees the previous open questions so it raises new ones
// instead of repeating them.
func (c *Crew) interrogate(ctx context.Context, inv investigation.Investigation, prior *investigation.PriorContext, res *Result) investigation.FollowUp {
	followUp := investigation.EmptyFollowUp()
	c.stage(StageInterrogator, res, func() (investigation.AgentStatus, error) {
		var sb strings.Builder
		fmt.Fprintf(&sb, `OBJECTIVE: %s

ANALYSIS:
%s

BANKING:
%s

IDENTITIES:
%s

CODED LANGUAGE:
%s
`, inv.Objective, jsonCompact(inv.Analysis), jsonCompact(inv.Banking), jsonCompact(inv.Identities), jsonCompact(inv.Cipher))
		if prior != nil && len(prior.OpenQuestions) > 0 {
			fmt.Fprintf(&sb, "\nQuestions already open from the previous session (raise NEW ones, do not repeat these):\n- %s\n",
				strings.Join(prior.OpenQuestions, "\n- "))
		}
		sb.WriteString(`
Interrogate these findings. Respond with a single JSON object:
{
  "critical_questions": ["what remains unanswered"],
  "suggested_searches": ["archive search terms that would answer them"],
  "leads_to_follow": ["specific documents or people to chase, with identifiers"],
  "inconsistencies": ["claims that contradict each other, with citing documents"]
}`)

		raw, err := c.llm.Complete(ctx, provider.CompletionRequest{
			System:    "You are the interrogator of an investigation team: you attack the findings and list what is missing.",
			Prompt:    sb.String(),
			MaxTokens: 2000,
		})
		if err != nil {
			return investigation.StatusFailed, fmt.Errorf("interrogation: %w", err)
		}
		var fu investigation.FollowUp
		if err := recovery.Decode(raw, &fu); err != nil {
			return investigation.StatusFailed, fmt.Errorf("interrogation response: %w", err)
		}
		followUp = fu
		if len(fu.CriticalQuestions) == 0 && len(fu.SuggestedSearches) == 0 &&
			len(fu.LeadsToFollow) == 0 && len(fu.Inconsistencies) == 0 {
			return investigation.StatusEmpty, nil
		}
		return investigation.StatusOK, nil
	})
	return followUp
}
