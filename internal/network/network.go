// Package network projects an analysis and a banking report into a
// renderable graph. The projection is pure and deterministic; node identity
// is the display label, and the first occurrence of a label wins.
package network

import "github.com/inquestlab/inquest/internal/investigation"

// Node colors and shapes, matched to the relevance scale.
const (
	colorHigh     = "#ff4757"
	colorMedium   = "#ffa502"
	colorLow      = "#2ed573"
	colorUnknown  = "#888"
	colorLocation = "#00d4ff"
	shapeDiamond  = "diamond"
)

// Node is one graph vertex. ID and Label are always equal.
type Node struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Title string `json:"title,omitempty"`
	Color string `json:"color,omitempty"`
	Shape string `json:"shape,omitempty"`
	Size  int    `json:"size,omitempty"`
}

// EdgeColor matches the renderer's nested color object.
type EdgeColor struct {
	Color string `json:"color"`
}

// Edge is one graph link.
type Edge struct {
	From  string     `json:"from"`
	To    string     `json:"to"`
	Label string     `json:"label,omitempty"`
	Title string     `json:"title,omitempty"`
	Color *EdgeColor `json:"color,omitempty"`
}

// Graph is the full projection.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

type builder struct {
	graph Graph
	seen  map[string]bool
}

func (b *builder) addNode(n Node) {
	if n.ID == "" || b.seen[n.ID] {
		return
	}
	b.seen[n.ID] = true
	b.graph.Nodes = append(b.graph.Nodes, n)
}

// ensure adds a plain gray node for entities only known from edges.
func (b *builder) ensure(name string) {
	b.addNode(Node{ID: name, Label: name, Color: colorUnknown, Size: 15})
}

// Project builds the graph for one investigation.
func Project(analysis investigation.Analysis, banking investigation.BankingReport) Graph {
	b := &builder{graph: Graph{Nodes: []Node{}, Edges: []Edge{}}, seen: map[string]bool{}}

	for _, p := range analysis.KeyPeople {
		if p.Name == "" {
			continue
		}
		color := colorLow
		size := 20
		switch p.Relevance {
		case investigation.RelevanceHigh:
			color = colorHigh
			size = 30
		case investigation.RelevanceMedium:
			color = colorMedium
		}
		b.addNode(Node{ID: p.Name, Label: p.Name, Title: p.Role, Color: color, Size: size})
	}

	for _, c := range analysis.Connections {
		if c.From != "" {
			b.ensure(c.From)
		}
		if c.To != "" {
			b.ensure(c.To)
		}
		if c.From != "" && c.To != "" {
			b.graph.Edges = append(b.graph.Edges, Edge{
				From: c.From, To: c.To, Label: c.Type, Title: c.Evidence,
			})
		}
	}

	for _, loc := range analysis.Locations {
		b.addNode(Node{ID: loc, Label: loc, Color: colorLocation, Shape: shapeDiamond, Size: 15})
	}

	for _, bank := range banking.Banks {
		b.addNode(Node{
			ID: bank.Name, Label: bank.Name, Title: bank.Role,
			Color: colorLow, Shape: shapeDiamond, Size: 20,
		})
		for _, person := range bank.KeyPeople {
			if person == "" {
				continue
			}
			b.ensure(person)
			if bank.Name != "" {
				b.graph.Edges = append(b.graph.Edges, Edge{
					From: person, To: bank.Name, Label: "banca",
					Title: bank.Evidence, Color: &EdgeColor{Color: colorLow},
				})
			}
		}
	}

	for _, tx := range banking.Transactions {
		if tx.From != "" {
			b.ensure(tx.From)
		}
		if tx.To != "" {
			b.ensure(tx.To)
		}
		if tx.From == "" || tx.To == "" {
			continue
		}
		title := tx.Type
		color := colorLow
		if tx.Suspicious {
			title = tx.Reason
			color = colorHigh
		}
		b.graph.Edges = append(b.graph.Edges, Edge{
			From: tx.From, To: tx.To, Label: tx.Amount,
			Title: title, Color: &EdgeColor{Color: color},
		})
	}

	return b.graph
}
