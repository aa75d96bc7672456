package merge

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/inquestlab/inquest/internal/docs"
	"github.com/inquestlab/inquest/internal/investigation"
	"github.com/inquestlab/inquest/internal/recovery"
	"github.com/inquestlab/inquest/provider"
)

const (
	maxCommonPeople  = 10
	maxGroundingDocs = 10
	maxLeads         = 5
	groundingTextCap = 3000
	deepDiveTextCap  = 8000
)

// leadPriorityTerms mark a surrounding passage as high priority.
var leadPriorityTerms = []string{"trafficking", "transfer", "fbi", "payment"}

// DocResolver answers for locally ingested documents.
type DocResolver interface {
	Get(docID string) (docs.Document, bool)
}

// Engine runs the LLM-backed merge operations on top of the pure set-union
// core.
type Engine struct {
	llm      provider.Provider
	searcher docs.Searcher
	fetcher  docs.TextFetcher
	resolver DocResolver
	logger   *log.Logger
}

// NewEngine wires the collaborators. searcher, fetcher and resolver may be
// nil; grounding then degrades to whatever is reachable.
func NewEngine(llm provider.Provider, searcher docs.Searcher, fetcher docs.TextFetcher, resolver DocResolver) *Engine {
	return &Engine{
		llm:      llm,
		searcher: searcher,
		fetcher:  fetcher,
		resolver: resolver,
		logger:   log.New(log.Writer(), "[MERGE] ", log.LstdFlags),
	}
}

// Resynthesize writes a fresh markdown report covering both the stored
// report and the continuation findings, grounded in the merged data.
func (e *Engine) Resynthesize(ctx context.Context, merged investigation.Investigation, previousReport, continuationReport string) (string, error) {
	data, _ := json.Marshal(map[string]any{
		"key_people":  merged.Analysis.KeyPeople,
		"connections": merged.Analysis.Connections,
		"timeline":    merged.Analysis.Timeline,
		"banking":     merged.Banking,
		"identities":  merged.Identities,
	})
	prompt := fmt.Sprintf(`You are rewriting the final report of an ongoing document investigation after a continuation session added new findings.

Objective: %s

PREVIOUS REPORT:
%s

CONTINUATION REPORT:
%s

MERGED DATA (authoritative):
%s

Write one coherent markdown report that covers everything above. Keep every document citation (identifiers like EFTA00000000) exactly as written. If a claim has no identifiable source document, say "documento non identificato". Distinguish direct communications between two people from mentions by third parties and from press coverage. Do not drop findings from either report.`,
		merged.Objective, previousReport, continuationReport, string(data))

	out, err := e.llm.Complete(ctx, provider.CompletionRequest{
		System:    "You are an investigative analyst writing evidence-grounded reports.",
		Prompt:    prompt,
		MaxTokens: 4000,
	})
	if err != nil {
		return "", fmt.Errorf("resynthesize report: %w", err)
	}
	return out, nil
}

// Continue merges a continuation run into the stored investigation and
// re-synthesizes the report. A synthesis failure keeps the merged data and
// the stored report.
func (e *Engine) Continue(ctx context.Context, base, next investigation.Investigation) (investigation.Investigation, []string) {
	merged := Continuation(base, next, next.CreatedAt)
	var warnings []string
	report, err := e.Resynthesize(ctx, merged, base.Report, next.Report)
	if err != nil {
		e.logger.Printf("resynthesize: %v", err)
		warnings = append(warnings, "report resynthesis failed, previous report kept: "+err.Error())
	} else {
		merged.Report = report
	}
	return merged, warnings
}

// CommonPeople counts in how many investigations each person appears and
// keeps those present in at least two, ordered by count descending.
func CommonPeople(invs []investigation.Investigation) []investigation.CommonPerson {
	counts := map[string]int{}
	display := map[string]string{}
	var order []string
	for _, inv := range invs {
		seen := map[string]bool{}
		for _, p := range inv.Analysis.KeyPeople {
			k := lower(p.Name)
			if k == "" || seen[k] {
				continue
			}
			seen[k] = true
			if _, ok := display[k]; !ok {
				display[k] = p.Name
				order = append(order, k)
			}
			counts[k]++
		}
	}
	var out []investigation.CommonPerson
	for _, k := range order {
		if counts[k] >= 2 {
			out = append(out, investigation.CommonPerson{Name: display[k], Count: counts[k]})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > maxCommonPeople {
		out = out[:maxCommonPeople]
	}
	return out
}

// CollectDocIDs gathers every document identifier the investigations refer
// to, sorted and distinct.
func CollectDocIDs(invs []investigation.Investigation) []string {
	seen := map[string]bool{}
	add := func(s string) {
		for _, id := range docs.IDPattern.FindAllString(s, -1) {
			seen[id] = true
		}
	}
	for _, inv := range invs {
		add(inv.Report)
		for _, p := range inv.Analysis.KeyPeople {
			add(p.EvidenceDoc)
		}
		for _, c := range inv.Analysis.Connections {
			add(c.Evidence)
			add(c.EvidenceDoc)
		}
		for _, ev := range inv.Analysis.KeyEvidence {
			add(ev.Document)
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// resolveText finds the full text for a document id: local index first, then
// a search round-trip plus fetch.
func (e *Engine) resolveText(ctx context.Context, id string, maxLen int) (string, bool) {
	if e.resolver != nil {
		if d, ok := e.resolver.Get(id); ok && d.FullText != "" {
			return docs.Truncate(d.FullText, maxLen), true
		}
	}
	if e.searcher == nil || e.fetcher == nil {
		return "", false
	}
	hits, err := e.searcher.Search(ctx, id, 0)
	if err != nil || len(hits) == 0 {
		if err != nil {
			e.logger.Printf("search %s: %v", id, err)
		}
		return "", false
	}
	text, err := e.fetcher.Text(ctx, hits[0])
	if err != nil {
		e.logger.Printf("fetch %s: %v", id, err)
		return "", false
	}
	return docs.Truncate(text, maxLen), true
}

type mergeAnswer struct {
	Summary          string   `json:"summary"`
	CriticalFindings []string `json:"critical_findings"`
	Connections      []string `json:"connections"`
	Patterns         []string `json:"patterns"`
	DocumentAnalysis string   `json:"document_analysis"`
	Recommendations  []string `json:"recommendations"`
}

// MergeMany fuses several completed investigations into one cross-cutting
// analysis: shared people, grounding passages from cited documents, one
// synthesis call, and leads for documents cited but never read.
func (e *Engine) MergeMany(ctx context.Context, invs []investigation.Investigation) (investigation.MergeAnalysis, error) {
	if len(invs) < 2 {
		return investigation.MergeAnalysis{}, fmt.Errorf("merge needs at least 2 investigations, got %d", len(invs))
	}
	common := CommonPeople(invs)
	ids := CollectDocIDs(invs)

	fetched := map[string]string{}
	for _, id := range ids {
		if len(fetched) >= maxGroundingDocs {
			break
		}
		if text, ok := e.resolveText(ctx, id, groundingTextCap); ok {
			fetched[id] = text
		}
	}

	var sb strings.Builder
	for i, inv := range invs {
		fmt.Fprintf(&sb, "INVESTIGATION %d — %s\n%s\n\n", i+1, inv.Objective, docs.Truncate(inv.Report, 6000))
	}
	fmt.Fprintf(&sb, "PEOPLE APPEARING IN MULTIPLE INVESTIGATIONS:\n")
	for _, p := range common {
		fmt.Fprintf(&sb, "- %s (in %d investigations)\n", p.Name, p.Count)
	}
	if len(fetched) > 0 {
		sb.WriteString("\nSOURCE DOCUMENT EXCERPTS:\n")
		for _, id := range ids {
			if text, ok := fetched[id]; ok {
				fmt.Fprintf(&sb, "[%s]\n%s\n\n", id, text)
			}
		}
	}
	sb.WriteString(`Cross-reference everything above. Respond with a single JSON object:
{
  "summary": "what the investigations reveal together",
  "critical_findings": ["..."],
  "connections": ["cross-investigation connection with citing documents"],
  "patterns": ["recurring pattern"],
  "document_analysis": "what the source excerpts add",
  "recommendations": ["next step"]
}
Cite document identifiers (EFTA...) wherever the evidence has one.`)

	raw, err := e.llm.Complete(ctx, provider.CompletionRequest{
		System:    "You are an investigative analyst merging parallel document investigations.",
		Prompt:    sb.String(),
		MaxTokens: 4000,
	})
	if err != nil {
		return investigation.MergeAnalysis{}, fmt.Errorf("merge synthesis: %w", err)
	}
	var ans mergeAnswer
	if err := recovery.Decode(raw, &ans); err != nil {
		return investigation.MergeAnalysis{}, fmt.Errorf("merge synthesis response: %w", err)
	}

	leads := e.extractLeads(ans, fetched)
	return investigation.MergeAnalysis{
		Summary:          ans.Summary,
		CriticalFindings: ans.CriticalFindings,
		CommonPeople:     common,
		Connections:      ans.Connections,
		Patterns:         ans.Patterns,
		DocumentAnalysis: ans.DocumentAnalysis,
		Recommendations:  ans.Recommendations,
		LeadsToFollow:    leads,
		CanGoDeeper:      len(leads) > 0,
		DeepDives:        []investigation.DeepDive{},
	}, nil
}

// extractLeads turns documents the synthesis cites but nobody has read
// into prioritized leads, using the text around the first mention as the
// reason.
func (e *Engine) extractLeads(ans mergeAnswer, fetched map[string]string) []investigation.Lead {
	var corpus strings.Builder
	corpus.WriteString(ans.Summary)
	corpus.WriteString("\n")
	for _, f := range ans.CriticalFindings {
		corpus.WriteString(f)
		corpus.WriteString("\n")
	}
	text := corpus.String()

	seen := map[string]bool{}
	var leads []investigation.Lead
	for _, id := range docs.IDPattern.FindAllString(text, -1) {
		if len(leads) >= maxLeads {
			break
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, ok := fetched[id]; ok {
			continue
		}
		reason := surrounding(text, id)
		leads = append(leads, investigation.Lead{
			DocID:    id,
			Reason:   reason,
			Priority: leadPriority(reason),
		})
	}
	return leads
}

// surrounding returns up to 100 chars before and 150 after the first
// mention of id.
func surrounding(text, id string) string {
	i := strings.Index(text, id)
	if i < 0 {
		return ""
	}
	start := i - 100
	if start < 0 {
		start = 0
	}
	end := i + len(id) + 150
	if end > len(text) {
		end = len(text)
	}
	return strings.TrimSpace(text[start:end])
}

func leadPriority(reason string) string {
	r := strings.ToLower(reason)
	for _, term := range leadPriorityTerms {
		if strings.Contains(r, term) {
			return "high"
		}
	}
	return "medium"
}

// DeepDive reads one document end to end and returns a structured analysis.
func (e *Engine) DeepDive(ctx context.Context, docID string) (investigation.DeepDive, error) {
	text, ok := e.resolveText(ctx, docID, deepDiveTextCap)
	if !ok {
		return investigation.DeepDive{}, fmt.Errorf("deep dive: no text for %s", docID)
	}
	prompt := fmt.Sprintf(`Analyze this single source document in depth.

DOCUMENT %s:
%s

Respond with a single JSON object:
{
  "document_summary": "...",
  "key_findings": ["..."],
  "people": ["every person named"],
  "financial_transactions": ["any money movement, with amounts"],
  "red_flags": ["..."],
  "related_documents": ["other document identifiers mentioned"],
  "trafficking_references": ["passages suggesting trafficking"],
  "conclusion": "...",
  "next_steps": ["..."]
}`, docID, text)

	raw, err := e.llm.Complete(ctx, provider.CompletionRequest{
		System:    "You are an investigative analyst reading a source document line by line.",
		Prompt:    prompt,
		MaxTokens: 3000,
	})
	if err != nil {
		return investigation.DeepDive{}, fmt.Errorf("deep dive %s: %w", docID, err)
	}
	var dive investigation.DeepDive
	if err := recovery.Decode(raw, &dive); err != nil {
		return investigation.DeepDive{}, fmt.Errorf("deep dive %s response: %w", docID, err)
	}
	dive.DocID = docID
	return dive, nil
}

// Integrate rewrites a merge analysis so it fully absorbs a deep dive. The
// rewrite must be a superset of the previous state: common people survive
// verbatim, the dive joins the record, and its document stops being a lead.
func (e *Engine) Integrate(ctx context.Context, cur investigation.MergeAnalysis, dive investigation.DeepDive) (investigation.MergeAnalysis, error) {
	curJSON, _ := json.Marshal(mergeAnswer{
		Summary:          cur.Summary,
		CriticalFindings: cur.CriticalFindings,
		Connections:      cur.Connections,
		Patterns:         cur.Patterns,
		DocumentAnalysis: cur.DocumentAnalysis,
		Recommendations:  cur.Recommendations,
	})
	diveJSON, _ := json.Marshal(dive)
	prompt := fmt.Sprintf(`A merged investigation analysis must absorb the findings of a deep document analysis.

CURRENT ANALYSIS:
%s

NEW DEEP ANALYSIS OF %s:
%s

Rewrite the ENTIRE analysis as a JSON object with the same keys as the current analysis. Keep every existing finding and add what the deep analysis contributes; never drop or weaken anything already present.`,
		string(curJSON), dive.DocID, string(diveJSON))

	raw, err := e.llm.Complete(ctx, provider.CompletionRequest{
		System:    "You are an investigative analyst maintaining a living cross-investigation analysis.",
		Prompt:    prompt,
		MaxTokens: 4000,
	})
	if err != nil {
		return cur, fmt.Errorf("integrate %s: %w", dive.DocID, err)
	}
	var ans mergeAnswer
	if err := recovery.Decode(raw, &ans); err != nil {
		return cur, fmt.Errorf("integrate %s response: %w", dive.DocID, err)
	}

	out := cur
	out.Summary = ans.Summary
	out.CriticalFindings = ans.CriticalFindings
	out.Connections = ans.Connections
	out.Patterns = ans.Patterns
	out.DocumentAnalysis = ans.DocumentAnalysis
	out.Recommendations = ans.Recommendations
	out.DeepDives = append(append([]investigation.DeepDive{}, cur.DeepDives...), dive)

	out.LeadsToFollow = nil
	for _, l := range cur.LeadsToFollow {
		if l.DocID != dive.DocID {
			out.LeadsToFollow = append(out.LeadsToFollow, l)
		}
	}
	out.CanGoDeeper = len(out.LeadsToFollow) > 0
	return out, nil
}
