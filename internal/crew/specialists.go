package crew

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/inquestlab/inquest/internal/docs"
	"github.com/inquestlab/inquest/internal/investigation"
	"github.com/inquestlab/inquest/internal/recovery"
	"github.com/inquestlab/inquest/provider"
)

// specialists runs the financial and identity agents in parallel over the
// leading documents. Each failure is isolated: the other specialist's
// output survives and the failed one degrades to its empty shape.
func (c *Crew) specialists(ctx context.Context, objective string, found []docs.Document, res *Result) (investigation.BankingReport, investigation.IdentityReport) {
	window := found
	if len(window) > c.cfg.SpecialistDocs {
		window = window[:c.cfg.SpecialistDocs]
	}
	corpus := docContext(window)

	banking := investigation.EmptyBanking()
	identities := investigation.EmptyIdentities()
	var bankErr, identErr error

	sem := make(chan struct{}, c.cfg.SpecialistWorkers)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		sem <- struct{}{}
		defer func() { <-sem }()
		banking, bankErr = c.bank(ctx, objective, corpus)
	}()
	go func() {
		defer wg.Done()
		sem <- struct{}{}
		defer func() { <-sem }()
		identities, identErr = c.resolveIdentities(ctx, objective, corpus)
	}()
	wg.Wait()

	c.stage(StageBanker, res, func() (investigation.AgentStatus, error) {
		if bankErr != nil {
			banking = investigation.EmptyBanking()
			return investigation.StatusFailed, fmt.Errorf("banking analysis: %w", bankErr)
		}
		if len(banking.Banks) == 0 && len(banking.Transactions) == 0 && len(banking.MoneyFlows) == 0 &&
			len(banking.OffshoreEntities) == 0 && len(banking.RedFlags) == 0 {
			return investigation.StatusEmpty, nil
		}
		return investigation.StatusOK, nil
	})
	c.stage(StageIdentity, res, func() (investigation.AgentStatus, error) {
		if identErr != nil {
			identities = investigation.EmptyIdentities()
			return investigation.StatusFailed, fmt.Errorf("identity resolution: %w", identErr)
		}
		if len(identities.Identities) == 0 && len(identities.Anomalies) == 0 {
			return investigation.StatusEmpty, nil
		}
		return investigation.StatusOK, nil
	})
	return banking, identities
}

func (c *Crew) bank(ctx context.Context, objective, corpus string) (investigation.BankingReport, error) {
	raw, err := c.llm.Complete(ctx, provider.CompletionRequest{
		System:    "You are a forensic financial analyst. You trace money through documents.",
		Prompt: fmt.Sprintf(`OBJECTIVE: %s

DOCUMENTS:
%s

Trace every financial element. Respond with a single JSON object:
{
  "banks": [{"name": "", "country": "", "role": "", "key_people": [""], "evidence": "EFTA..."}],
  "transactions": [{"from": "", "to": "", "amount": "", "date": "", "type": "", "suspicious": false, "reason": ""}],
  "money_flows": ["described flow with citing document"],
  "offshore_entities": ["entity and jurisdiction"],
  "red_flags": ["what looks wrong and why"]
}`, objective, corpus),
		MaxTokens: 2500,
	})
	if err != nil {
		return investigation.BankingReport{}, err
	}
	var rep investigation.BankingReport
	if err := recovery.Decode(raw, &rep); err != nil {
		return investigation.BankingReport{}, fmt.Errorf("banking response: %w", err)
	}
	return rep, nil
}

func (c *Crew) resolveIdentities(ctx context.Context, objective, corpus string) (investigation.IdentityReport, error) {
	raw, err := c.llm.Complete(ctx, provider.CompletionRequest{
		System:    "You resolve identities across documents: initials, nicknames, misspellings and pseudonyms that refer to the same person.",
		Prompt: fmt.Sprintf(`OBJECTIVE: %s

DOCUMENTS:
%s

Cluster the names. Respond with a single JSON object:
{
  "identities": [{"canonical_name": "", "aliases": [""], "evidence": ["EFTA..."], "notes": ""}],
  "anomalies": ["naming patterns that look deliberate"]
}`, objective, corpus),
		MaxTokens: 2500,
	})
	if err != nil {
		return investigation.IdentityReport{}, err
	}
	var rep investigation.IdentityReport
	if err := recovery.Decode(raw, &rep); err != nil {
		return investigation.IdentityReport{}, fmt.Errorf("identity response: %w", err)
	}
	return rep, nil
}

// decipher runs after identity resolution so the cipher agent can read
// coded language with the alias clusters in hand.
func (c *Crew) decipher(ctx context.Context, objective string, found []docs.Document, identities investigation.IdentityReport, res *Result) investigation.CipherReport {
	window := found
	if len(window) > c.cfg.SpecialistDocs {
		window = window[:c.cfg.SpecialistDocs]
	}
	cipher := investigation.EmptyCipher()
	c.stage(StageCipher, res, func() (investigation.AgentStatus, error) {
		identJSON := jsonCompact(identities)
		raw, err := c.llm.Complete(ctx, provider.CompletionRequest{
			System:    "You decode euphemisms and coded language in documents.",
			Prompt: fmt.Sprintf(`OBJECTIVE: %s

RESOLVED IDENTITIES:
%s

DOCUMENTS:
%s

Find coded language. Respond with a single JSON object:
{
  "euphemisms": [{"term": "", "meaning": "", "evidence": "EFTA..."}],
  "coded_patterns": ["recurring coded phrasing"],
  "suspicious_language": ["passages whose plain reading does not fit the context"]
}`, objective, identJSON, docContext(window)),
			MaxTokens: 2500,
		})
		if err != nil {
			return investigation.StatusFailed, fmt.Errorf("cipher analysis: %w", err)
		}
		var rep investigation.CipherReport
		if err := recovery.Decode(raw, &rep); err != nil {
			return investigation.StatusFailed, fmt.Errorf("cipher response: %w", err)
		}
		cipher = rep
		if len(rep.Euphemisms) == 0 && len(rep.CodedPatterns) == 0 && len(rep.SuspiciousLanguage) == 0 {
			return investigation.StatusEmpty, nil
		}
		return investigation.StatusOK, nil
	})
	return cipher
}

func jsonCompact(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
