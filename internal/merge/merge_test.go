package merge

import (
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/inquestlab/inquest/internal/investigation"
)

func sampleAnalysis() investigation.Analysis {
	return investigation.Analysis{
		KeyPeople: []investigation.KeyPerson{
			{Name: "John Doe", Role: "banker", Relevance: investigation.RelevanceMedium, EvidenceDoc: "EFTA00000001"},
			{Name: "Jane Roe", Role: "pilot", Relevance: investigation.RelevanceLow},
		},
		Connections: []investigation.Connection{
			{From: "John Doe", To: "Jane Roe", Type: "payments", Evidence: "EFTA00000002"},
		},
		Timeline: []investigation.TimelineEntry{
			{Date: "2003-05-01", Event: "wire transfer"},
			{Date: "2001-01-10", Event: "first flight"},
		},
		Patterns:  []string{"cash withdrawals"},
		Locations: []string{"Zurich"},
		KeyEvidence: []investigation.Evidence{
			{Document: "EFTA00000001", Description: "ledger"},
		},
	}
}

// peopleNames lowercases because dedup is case-insensitive with first-seen
// casing kept, so merge order may change the surface form.
func peopleNames(a investigation.Analysis) []string {
	var out []string
	for _, p := range a.KeyPeople {
		out = append(out, strings.ToLower(p.Name))
	}
	sort.Strings(out)
	return out
}

func TestAnalysesIdempotent(t *testing.T) {
	a := sampleAnalysis()
	m := Analyses(a, a)
	if len(m.KeyPeople) != 2 || len(m.Connections) != 1 || len(m.Timeline) != 2 {
		t.Fatalf("self-merge grew: %+v", m)
	}
	if len(m.Patterns) != 1 || len(m.Locations) != 1 || len(m.KeyEvidence) != 1 {
		t.Fatalf("self-merge grew lists: %+v", m)
	}
	// merging again changes nothing
	m2 := Analyses(m, a)
	if len(m2.KeyPeople) != len(m.KeyPeople) || len(m2.Connections) != len(m.Connections) {
		t.Fatal("merge not idempotent")
	}
}

func TestAnalysesCommutativeUpToOrder(t *testing.T) {
	a := sampleAnalysis()
	b := investigation.Analysis{
		KeyPeople: []investigation.KeyPerson{
			{Name: "john doe", Role: "financier", Relevance: investigation.RelevanceHigh},
			{Name: "Ghislaine Maxwell", Role: "facilitator", Relevance: investigation.RelevanceHigh},
		},
		Patterns: []string{"shell companies"},
	}
	ab := Analyses(a, b)
	ba := Analyses(b, a)
	if fmt.Sprint(peopleNames(ab)) == "" {
		t.Fatal("sanity")
	}
	got, want := peopleNames(ab), peopleNames(ba)
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("people differ: %v vs %v", got, want)
	}
	if len(ab.Patterns) != 2 || len(ba.Patterns) != 2 {
		t.Fatalf("patterns union: %v / %v", ab.Patterns, ba.Patterns)
	}
}

func TestAnalysesRelevanceOnlyPromotes(t *testing.T) {
	a := sampleAnalysis()
	b := investigation.Analysis{KeyPeople: []investigation.KeyPerson{
		{Name: "John Doe", Role: "banker", Relevance: investigation.RelevanceHigh},
	}}
	m := Analyses(a, b)
	var john investigation.KeyPerson
	for _, p := range m.KeyPeople {
		if p.Name == "John Doe" {
			john = p
		}
	}
	if john.Relevance != investigation.RelevanceHigh {
		t.Fatalf("relevance not promoted: %+v", john)
	}
	// and the other direction never demotes
	m2 := Analyses(b, a)
	for _, p := range m2.KeyPeople {
		if lower(p.Name) == "john doe" && p.Relevance != investigation.RelevanceHigh {
			t.Fatalf("relevance demoted: %+v", p)
		}
	}
}

func TestAnalysesRoleConcatenation(t *testing.T) {
	a := investigation.Analysis{KeyPeople: []investigation.KeyPerson{{Name: "John Doe", Role: "banker", Relevance: investigation.RelevanceLow}}}
	b := investigation.Analysis{KeyPeople: []investigation.KeyPerson{{Name: "JOHN DOE", Role: "trustee", Relevance: investigation.RelevanceLow}}}
	m := Analyses(a, b)
	if len(m.KeyPeople) != 1 || m.KeyPeople[0].Role != "banker; trustee" {
		t.Fatalf("unexpected role merge: %+v", m.KeyPeople)
	}
}

func TestAnalysesTimelineSortedByDate(t *testing.T) {
	m := Analyses(sampleAnalysis(), investigation.Analysis{Timeline: []investigation.TimelineEntry{
		{Date: "2002-07-04", Event: "island visit"},
	}})
	if len(m.Timeline) != 3 {
		t.Fatalf("timeline: %+v", m.Timeline)
	}
	for i := 1; i < len(m.Timeline); i++ {
		if m.Timeline[i-1].Date > m.Timeline[i].Date {
			t.Fatalf("timeline not ordered: %+v", m.Timeline)
		}
	}
}

func TestBankingMerge(t *testing.T) {
	a := investigation.BankingReport{
		Banks:        []investigation.Bank{{Name: "Alpine Privatbank", Role: "custodian"}},
		Transactions: []investigation.Transaction{{From: "A", To: "B", Amount: "$100"}},
		RedFlags:     []string{"round amounts"},
	}
	b := investigation.BankingReport{
		Banks:        []investigation.Bank{{Name: "ALPINE PRIVATBANK", Role: "different"}, {Name: "Cayman Trust"}},
		Transactions: []investigation.Transaction{{From: "a", To: "b", Amount: "$100"}, {From: "B", To: "C", Amount: "$50"}},
		RedFlags:     []string{"round amounts", "offshore hops"},
	}
	m := Banking(a, b)
	if len(m.Banks) != 2 {
		t.Fatalf("banks: %+v", m.Banks)
	}
	if m.Banks[0].Role != "custodian" {
		t.Fatalf("first bank entry must win: %+v", m.Banks[0])
	}
	if len(m.Transactions) != 2 {
		t.Fatalf("transactions: %+v", m.Transactions)
	}
	if len(m.RedFlags) != 2 {
		t.Fatalf("red flags: %v", m.RedFlags)
	}
}

func TestIdentitiesMergeAliases(t *testing.T) {
	a := investigation.IdentityReport{Identities: []investigation.Identity{
		{CanonicalName: "John Doe", Aliases: []string{"J.D."}, Evidence: []string{"EFTA00000001"}},
	}}
	b := investigation.IdentityReport{Identities: []investigation.Identity{
		{CanonicalName: "john doe", Aliases: []string{"J.D.", "Johnny"}, Evidence: []string{"EFTA00000002"}},
	}}
	m := Identities(a, b)
	if len(m.Identities) != 1 {
		t.Fatalf("identities: %+v", m.Identities)
	}
	id := m.Identities[0]
	if len(id.Aliases) != 2 || len(id.Evidence) != 2 {
		t.Fatalf("aliases/evidence union: %+v", id)
	}
}

func TestCipherFirstReadingWins(t *testing.T) {
	a := investigation.CipherReport{Euphemisms: []investigation.Euphemism{{Term: "massage", Meaning: "first reading"}}}
	b := investigation.CipherReport{Euphemisms: []investigation.Euphemism{{Term: "Massage", Meaning: "second reading"}, {Term: "yoga", Meaning: "other"}}}
	m := Cipher(a, b)
	if len(m.Euphemisms) != 2 || m.Euphemisms[0].Meaning != "first reading" {
		t.Fatalf("euphemisms: %+v", m.Euphemisms)
	}
}

func TestFollowUpCaps(t *testing.T) {
	var a, b investigation.FollowUp
	for i := 0; i < 12; i++ {
		a.CriticalQuestions = append(a.CriticalQuestions, fmt.Sprintf("qa %d", i))
		b.CriticalQuestions = append(b.CriticalQuestions, fmt.Sprintf("qb %d", i))
		a.LeadsToFollow = append(a.LeadsToFollow, fmt.Sprintf("la %d", i))
		b.LeadsToFollow = append(b.LeadsToFollow, fmt.Sprintf("lb %d", i))
		a.Inconsistencies = append(a.Inconsistencies, fmt.Sprintf("ia %d", i))
		b.Inconsistencies = append(b.Inconsistencies, fmt.Sprintf("ib %d", i))
	}
	m := FollowUps(a, b)
	if len(m.CriticalQuestions) != 15 {
		t.Fatalf("critical questions cap: %d", len(m.CriticalQuestions))
	}
	if len(m.LeadsToFollow) != 10 {
		t.Fatalf("leads cap: %d", len(m.LeadsToFollow))
	}
	if len(m.Inconsistencies) != 24 {
		t.Fatalf("inconsistencies must not be capped: %d", len(m.Inconsistencies))
	}
}

func TestContinuationAccumulates(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	base := investigation.Investigation{
		ID:             "inv-1",
		Objective:      "follow the money",
		Strategy:       investigation.Strategy{PrimaryTerms: []string{"wire transfer"}},
		Analysis:       sampleAnalysis(),
		DocumentsFound: 20,
		SearchStats:    []string{"'wire transfer': 20 documents"},
	}
	next := investigation.Investigation{
		Objective:      "offshore accounts",
		Strategy:       investigation.Strategy{PrimaryTerms: []string{"Wire Transfer", "offshore"}},
		DocumentsFound: 5,
		SearchStats:    []string{"'offshore': 5 documents"},
		CreatedAt:      now,
	}
	m := Continuation(base, next, now)
	if m.Objective != "follow the money" {
		t.Fatalf("objective must survive: %q", m.Objective)
	}
	if len(m.Strategy.PrimaryTerms) != 2 {
		t.Fatalf("terms must union without duplicates: %v", m.Strategy.PrimaryTerms)
	}
	if m.DocumentsFound != 25 {
		t.Fatalf("documents found: %d", m.DocumentsFound)
	}
	if len(m.SearchStats) != 2 {
		t.Fatalf("search stats: %v", m.SearchStats)
	}
	if len(m.ContinuationHistory) != 1 {
		t.Fatalf("history: %+v", m.ContinuationHistory)
	}
	h := m.ContinuationHistory[0]
	if h.Objective != "offshore accounts" || h.DocumentsFound != 5 || h.Date != "2026-03-14" {
		t.Fatalf("history entry: %+v", h)
	}
}

func TestContinuationContext(t *testing.T) {
	inv := investigation.Investigation{
		Objective: "follow the money",
		Strategy: investigation.Strategy{
			PrimaryTerms:   []string{"wire transfer"},
			SecondaryTerms: []string{"offshore", "wire transfer"},
			People:         []string{"John Doe"},
		},
		Analysis: sampleAnalysis(),
		FollowUp: investigation.FollowUp{
			CriticalQuestions: []string{"who signed the ledger?"},
			SuggestedSearches: []string{"alpine privatbank"},
			LeadsToFollow:     []string{"EFTA00000003"},
		},
	}
	ctx := ContinuationContext(inv)
	if len(ctx.PreviousTerms) != 3 {
		t.Fatalf("terms must be distinct: %v", ctx.PreviousTerms)
	}
	if len(ctx.PeopleFound) != 2 || len(ctx.Connections) != 1 {
		t.Fatalf("people/connections: %v / %v", ctx.PeopleFound, ctx.Connections)
	}
	if ctx.Connections[0] != "John Doe -> Jane Roe (payments)" {
		t.Fatalf("connection rendering: %q", ctx.Connections[0])
	}
	if len(ctx.OpenQuestions) != 1 || len(ctx.Leads) != 1 {
		t.Fatalf("follow-up carry: %+v", ctx)
	}
}
