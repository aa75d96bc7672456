package people

import (
	"context"
	"testing"
	"time"

	"github.com/inquestlab/inquest/internal/investigation"
)

func TestNormalizeID(t *testing.T) {
	cases := map[string]string{
		"John Doe":      "john_doe",
		"  Jane   Roe ": "jane_roe",
		"GHISLAINE":     "ghislaine",
	}
	for in, want := range cases {
		if got := NormalizeID(in); got != want {
			t.Fatalf("NormalizeID(%q) = %q, want %q", in, got, want)
		}
	}
}

func sampleInvestigation() investigation.Investigation {
	return investigation.Investigation{
		ID: "inv-1",
		Analysis: investigation.Analysis{
			KeyPeople: []investigation.KeyPerson{
				{Name: "John Doe", Role: "banker", Relevance: investigation.RelevanceMedium, EvidenceDoc: "EFTA00000001"},
			},
			Connections: []investigation.Connection{
				{From: "John Doe", To: "Jane Roe", Type: "payments", EvidenceDoc: "EFTA00000002"},
			},
		},
		Identities: investigation.IdentityReport{Identities: []investigation.Identity{
			{CanonicalName: "John Doe", Aliases: []string{"J.D."}, Evidence: []string{"EFTA00000003"}},
		}},
	}
}

func TestRecordConnectionSymmetry(t *testing.T) {
	st := NewMemoryStore()
	reg := NewRegistry(st)
	now := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	if err := reg.Record(context.Background(), sampleInvestigation(), now); err != nil {
		t.Fatalf("record: %v", err)
	}

	john, err := st.GetPerson(context.Background(), "john_doe")
	if err != nil {
		t.Fatalf("john: %v", err)
	}
	jane, err := st.GetPerson(context.Background(), "jane_roe")
	if err != nil {
		t.Fatalf("jane must exist from the connection alone: %v", err)
	}
	if len(john.Connections) != 1 || john.Connections[0] != "Jane Roe" {
		t.Fatalf("john connections: %v", john.Connections)
	}
	if len(jane.Connections) != 1 || jane.Connections[0] != "John Doe" {
		t.Fatalf("jane connections: %v", jane.Connections)
	}
}

func TestRecordIdempotentGrowth(t *testing.T) {
	st := NewMemoryStore()
	reg := NewRegistry(st)
	now := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	inv := sampleInvestigation()
	for i := 0; i < 2; i++ {
		if err := reg.Record(context.Background(), inv, now); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	john, _ := st.GetPerson(context.Background(), "john_doe")
	if len(john.Roles) != 1 || len(john.Connections) != 1 || len(john.Aliases) != 1 {
		t.Fatalf("set fields must not duplicate: %+v", john)
	}
	// appearances are append-only history, one per recorded run
	if len(john.Investigations) != 2 {
		t.Fatalf("appearances: %+v", john.Investigations)
	}
	if len(john.Documents) != 3 {
		t.Fatalf("documents union: %v", john.Documents)
	}
}

func TestRelevanceOnlyPromoted(t *testing.T) {
	st := NewMemoryStore()
	reg := NewRegistry(st)
	now := time.Now()

	high := sampleInvestigation()
	high.Analysis.KeyPeople[0].Relevance = investigation.RelevanceHigh
	if err := reg.Record(context.Background(), high, now); err != nil {
		t.Fatalf("record high: %v", err)
	}
	low := sampleInvestigation()
	low.Analysis.KeyPeople[0].Relevance = investigation.RelevanceLow
	if err := reg.Record(context.Background(), low, now); err != nil {
		t.Fatalf("record low: %v", err)
	}

	john, _ := st.GetPerson(context.Background(), "john_doe")
	if john.Relevance != investigation.RelevanceHigh {
		t.Fatalf("relevance demoted: %q", john.Relevance)
	}
}

func TestKnownNames(t *testing.T) {
	st := NewMemoryStore()
	reg := NewRegistry(st)
	if err := reg.Record(context.Background(), sampleInvestigation(), time.Now()); err != nil {
		t.Fatalf("record: %v", err)
	}
	names := reg.KnownNames(context.Background())
	if len(names) != 2 {
		t.Fatalf("names: %v", names)
	}
}
