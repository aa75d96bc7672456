// Package merge combines investigation results across sessions: extending a
// stored investigation with a continuation run, fusing several independent
// investigations into one picture, and folding deep-dive document analyses
// back in. The set-union core is pure and deterministic; only report
// synthesis goes back to the LLM.
package merge

import (
	"sort"
	"strings"
	"time"

	"github.com/inquestlab/inquest/internal/investigation"
)

// Caps applied to follow-up lists after a merge. Inconsistencies are
// deliberately uncapped.
const (
	maxCriticalQuestions = 15
	maxSuggestedSearches = 15
	maxLeadsToFollow     = 10
)

func lower(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// unionStrings appends items from src not already present in dst, comparing
// trimmed lowercase. Order is dst first, then new src items in their order.
func unionStrings(dst, src []string) []string {
	seen := make(map[string]bool, len(dst))
	out := make([]string, 0, len(dst)+len(src))
	for _, s := range dst {
		k := lower(s)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	for _, s := range src {
		k := lower(s)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	return out
}

func capped(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// Strategies unions the term lists of two strategies. The base objective
// and approach win.
func Strategies(base, next investigation.Strategy) investigation.Strategy {
	out := base
	out.PrimaryTerms = unionStrings(base.PrimaryTerms, next.PrimaryTerms)
	out.SecondaryTerms = unionStrings(base.SecondaryTerms, next.SecondaryTerms)
	out.People = unionStrings(base.People, next.People)
	out.KeyQuestions = unionStrings(base.KeyQuestions, next.KeyQuestions)
	return out
}

// Analyses merges two analyses. People dedup on lowercase name: relevance
// is only ever promoted, differing roles concatenate with "; ", and the
// first non-empty evidence doc wins. Connections dedup on the from|to pair,
// timeline entries on date|event with the result sorted by date. Patterns,
// locations and evidence are set-unions.
func Analyses(base, next investigation.Analysis) investigation.Analysis {
	out := investigation.EmptyAnalysis()

	people := map[string]int{}
	for _, src := range [][]investigation.KeyPerson{base.KeyPeople, next.KeyPeople} {
		for _, p := range src {
			k := lower(p.Name)
			if k == "" {
				continue
			}
			if i, ok := people[k]; ok {
				cur := &out.KeyPeople[i]
				cur.Relevance = investigation.MaxRelevance(cur.Relevance, p.Relevance)
				if p.Role != "" && !strings.Contains(lower(cur.Role), lower(p.Role)) {
					if cur.Role == "" {
						cur.Role = p.Role
					} else {
						cur.Role += "; " + p.Role
					}
				}
				if cur.EvidenceDoc == "" {
					cur.EvidenceDoc = p.EvidenceDoc
				}
				continue
			}
			people[k] = len(out.KeyPeople)
			out.KeyPeople = append(out.KeyPeople, p)
		}
	}

	conns := map[string]bool{}
	for _, src := range [][]investigation.Connection{base.Connections, next.Connections} {
		for _, c := range src {
			k := lower(c.From) + "|" + lower(c.To)
			if c.From == "" || c.To == "" || conns[k] {
				continue
			}
			conns[k] = true
			out.Connections = append(out.Connections, c)
		}
	}

	events := map[string]bool{}
	for _, src := range [][]investigation.TimelineEntry{base.Timeline, next.Timeline} {
		for _, e := range src {
			k := lower(e.Date) + "|" + lower(e.Event)
			if events[k] {
				continue
			}
			events[k] = true
			out.Timeline = append(out.Timeline, e)
		}
	}
	sort.SliceStable(out.Timeline, func(i, j int) bool {
		return out.Timeline[i].Date < out.Timeline[j].Date
	})

	out.Patterns = unionStrings(base.Patterns, next.Patterns)
	out.Locations = unionStrings(base.Locations, next.Locations)

	evidence := map[string]bool{}
	for _, src := range [][]investigation.Evidence{base.KeyEvidence, next.KeyEvidence} {
		for _, e := range src {
			k := lower(e.Document)
			if k == "" || evidence[k] {
				continue
			}
			evidence[k] = true
			out.KeyEvidence = append(out.KeyEvidence, e)
		}
	}

	return out
}

// Banking merges two banking reports: banks dedup on lowercase name (first
// wins), transactions on the from|to|amount triple, the list fields are
// set-unions.
func Banking(base, next investigation.BankingReport) investigation.BankingReport {
	out := investigation.EmptyBanking()

	banks := map[string]bool{}
	for _, src := range [][]investigation.Bank{base.Banks, next.Banks} {
		for _, b := range src {
			k := lower(b.Name)
			if k == "" || banks[k] {
				continue
			}
			banks[k] = true
			out.Banks = append(out.Banks, b)
		}
	}

	txs := map[string]bool{}
	for _, src := range [][]investigation.Transaction{base.Transactions, next.Transactions} {
		for _, tx := range src {
			k := lower(tx.From) + "|" + lower(tx.To) + "|" + lower(tx.Amount)
			if txs[k] {
				continue
			}
			txs[k] = true
			out.Transactions = append(out.Transactions, tx)
		}
	}

	out.MoneyFlows = unionStrings(base.MoneyFlows, next.MoneyFlows)
	out.OffshoreEntities = unionStrings(base.OffshoreEntities, next.OffshoreEntities)
	out.RedFlags = unionStrings(base.RedFlags, next.RedFlags)
	return out
}

// Identities merges identity reports on lowercase canonical name, unioning
// aliases and evidence of matching entries.
func Identities(base, next investigation.IdentityReport) investigation.IdentityReport {
	out := investigation.EmptyIdentities()
	byName := map[string]int{}
	for _, src := range [][]investigation.Identity{base.Identities, next.Identities} {
		for _, id := range src {
			k := lower(id.CanonicalName)
			if k == "" {
				continue
			}
			if i, ok := byName[k]; ok {
				cur := &out.Identities[i]
				cur.Aliases = unionStrings(cur.Aliases, id.Aliases)
				cur.Evidence = unionStrings(cur.Evidence, id.Evidence)
				if cur.Notes == "" {
					cur.Notes = id.Notes
				}
				continue
			}
			byName[k] = len(out.Identities)
			cp := id
			cp.Aliases = unionStrings(nil, id.Aliases)
			cp.Evidence = unionStrings(nil, id.Evidence)
			out.Identities = append(out.Identities, cp)
		}
	}
	out.Anomalies = unionStrings(base.Anomalies, next.Anomalies)
	return out
}

// Cipher merges coded-language reports: euphemisms dedup on lowercase term
// with the first reading kept, the rest are set-unions.
func Cipher(base, next investigation.CipherReport) investigation.CipherReport {
	out := investigation.EmptyCipher()
	terms := map[string]bool{}
	for _, src := range [][]investigation.Euphemism{base.Euphemisms, next.Euphemisms} {
		for _, e := range src {
			k := lower(e.Term)
			if k == "" || terms[k] {
				continue
			}
			terms[k] = true
			out.Euphemisms = append(out.Euphemisms, e)
		}
	}
	out.CodedPatterns = unionStrings(base.CodedPatterns, next.CodedPatterns)
	out.SuspiciousLanguage = unionStrings(base.SuspiciousLanguage, next.SuspiciousLanguage)
	return out
}

// FollowUps unions follow-up lists and applies the caps. Inconsistencies
// never get capped: losing a known contradiction is worse than a long list.
func FollowUps(base, next investigation.FollowUp) investigation.FollowUp {
	return investigation.FollowUp{
		CriticalQuestions: capped(unionStrings(base.CriticalQuestions, next.CriticalQuestions), maxCriticalQuestions),
		SuggestedSearches: capped(unionStrings(base.SuggestedSearches, next.SuggestedSearches), maxSuggestedSearches),
		LeadsToFollow:     capped(unionStrings(base.LeadsToFollow, next.LeadsToFollow), maxLeadsToFollow),
		Inconsistencies:   unionStrings(base.Inconsistencies, next.Inconsistencies),
	}
}

// Continuation folds a continuation run into a stored investigation. The
// stored objective and report survive (the report is re-synthesized
// separately); counters accumulate and the continuation history grows by
// one entry.
func Continuation(base, next investigation.Investigation, now time.Time) investigation.Investigation {
	out := base
	out.Strategy = Strategies(base.Strategy, next.Strategy)
	out.Analysis = Analyses(base.Analysis, next.Analysis)
	out.Banking = Banking(base.Banking, next.Banking)
	out.Identities = Identities(base.Identities, next.Identities)
	out.Cipher = Cipher(base.Cipher, next.Cipher)
	out.FollowUp = FollowUps(base.FollowUp, next.FollowUp)
	out.DocumentsFound = base.DocumentsFound + next.DocumentsFound
	out.SearchStats = append(append([]string{}, base.SearchStats...), next.SearchStats...)
	out.ContinuationHistory = append(append([]investigation.ContinuationEntry{}, base.ContinuationHistory...),
		investigation.ContinuationEntry{
			Date:           now.Format("2006-01-02"),
			Objective:      next.Objective,
			DocumentsFound: next.DocumentsFound,
		})
	out.UpdatedAt = now
	return out
}

// ContinuationContext compacts a stored investigation into the prior
// context handed to the planner of a follow-up run.
func ContinuationContext(inv investigation.Investigation) investigation.PriorContext {
	terms := unionStrings(inv.Strategy.PrimaryTerms, inv.Strategy.SecondaryTerms)
	terms = unionStrings(terms, inv.Strategy.People)

	people := make([]string, 0, len(inv.Analysis.KeyPeople))
	for _, p := range inv.Analysis.KeyPeople {
		people = append(people, p.Name)
	}
	conns := make([]string, 0, len(inv.Analysis.Connections))
	for _, c := range inv.Analysis.Connections {
		conns = append(conns, c.From+" -> "+c.To+" ("+c.Type+")")
	}
	return investigation.PriorContext{
		PreviousObjective:   inv.Objective,
		PreviousTerms:       terms,
		PeopleFound:         people,
		Connections:         conns,
		OpenQuestions:       inv.FollowUp.CriticalQuestions,
		SuggestedSearches:   inv.FollowUp.SuggestedSearches,
		Leads:               inv.FollowUp.LeadsToFollow,
		ContinuationHistory: inv.ContinuationHistory,
	}
}
