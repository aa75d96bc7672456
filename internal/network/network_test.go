package network

import (
	"testing"

	"github.com/inquestlab/inquest/internal/investigation"
)

func nodeByID(g Graph, id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

func TestProjectRelevanceStyling(t *testing.T) {
	analysis := investigation.Analysis{
		KeyPeople: []investigation.KeyPerson{
			{Name: "Ghislaine Maxwell", Role: "facilitator", Relevance: investigation.RelevanceHigh},
			{Name: "Jean-Luc Brunel", Role: "scout", Relevance: investigation.RelevanceMedium},
			{Name: "Unknown Pilot", Role: "pilot", Relevance: investigation.RelevanceLow},
		},
	}
	g := Project(analysis, investigation.BankingReport{})

	n, _ := nodeByID(g, "Ghislaine Maxwell")
	if n.Color != "#ff4757" || n.Size != 30 || n.Title != "facilitator" {
		t.Fatalf("high relevance node: %+v", n)
	}
	n, _ = nodeByID(g, "Jean-Luc Brunel")
	if n.Color != "#ffa502" || n.Size != 20 {
		t.Fatalf("medium relevance node: %+v", n)
	}
	n, _ = nodeByID(g, "Unknown Pilot")
	if n.Color != "#2ed573" || n.Size != 20 {
		t.Fatalf("low relevance node: %+v", n)
	}
}

func TestProjectNodeIdentityIsLabel(t *testing.T) {
	analysis := investigation.Analysis{
		KeyPeople: []investigation.KeyPerson{
			{Name: "John Doe", Role: "banker", Relevance: investigation.RelevanceHigh},
		},
		Connections: []investigation.Connection{
			{From: "John Doe", To: "Acme Trust", Type: "manages", Evidence: "EFTA00000010 p.3"},
		},
	}
	g := Project(analysis, investigation.BankingReport{})

	count := 0
	for _, n := range g.Nodes {
		if n.ID == "John Doe" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected one John Doe node, got %d", count)
	}
	// the key-person styling must survive the connection pass
	n, _ := nodeByID(g, "John Doe")
	if n.Color != "#ff4757" {
		t.Fatalf("first occurrence must win: %+v", n)
	}
	if _, ok := nodeByID(g, "Acme Trust"); !ok {
		t.Fatal("connection endpoint missing")
	}
	if len(g.Edges) != 1 || g.Edges[0].Label != "manages" {
		t.Fatalf("unexpected edges: %+v", g.Edges)
	}
}

func TestProjectBankingOverlay(t *testing.T) {
	banking := investigation.BankingReport{
		Banks: []investigation.Bank{
			{Name: "Alpine Privatbank", Role: "custodian", KeyPeople: []string{"John Doe"}, Evidence: "EFTA00000021"},
		},
		Transactions: []investigation.Transaction{
			{From: "John Doe", To: "Shell Corp", Amount: "$50,000", Suspicious: true, Reason: "no stated purpose"},
			{From: "Shell Corp", To: "Alpine Privatbank", Amount: "$49,000", Type: "deposit"},
		},
	}
	g := Project(investigation.Analysis{}, banking)

	bank, ok := nodeByID(g, "Alpine Privatbank")
	if !ok || bank.Shape != "diamond" || bank.Color != "#2ed573" || bank.Size != 20 {
		t.Fatalf("bank node: %+v", bank)
	}
	if len(g.Edges) != 3 {
		t.Fatalf("expected 3 edges, got %d", len(g.Edges))
	}
	var suspicious, clean *Edge
	for i := range g.Edges {
		switch g.Edges[i].Label {
		case "$50,000":
			suspicious = &g.Edges[i]
		case "$49,000":
			clean = &g.Edges[i]
		}
	}
	if suspicious == nil || suspicious.Color == nil || suspicious.Color.Color != "#ff4757" || suspicious.Title != "no stated purpose" {
		t.Fatalf("suspicious edge: %+v", suspicious)
	}
	if clean == nil || clean.Color == nil || clean.Color.Color != "#2ed573" || clean.Title != "deposit" {
		t.Fatalf("clean edge: %+v", clean)
	}
}

func TestProjectLocations(t *testing.T) {
	g := Project(investigation.Analysis{Locations: []string{"Little St. James", ""}}, investigation.BankingReport{})
	n, ok := nodeByID(g, "Little St. James")
	if !ok || n.Shape != "diamond" || n.Color != "#00d4ff" || n.Size != 15 {
		t.Fatalf("location node: %+v", n)
	}
	if len(g.Nodes) != 1 {
		t.Fatalf("empty location must be skipped: %+v", g.Nodes)
	}
}
