// Package people maintains the cross-investigation person registry. Records
// only ever grow: relevance is promoted, list fields are set-unions, and
// appearances accumulate per investigation.
package people

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/inquestlab/inquest/internal/investigation"
)

// ErrNotFound is returned by Store.Get for unknown person ids.
var ErrNotFound = errors.New("people: not found")

// Appearance is one investigation a person showed up in.
type Appearance struct {
	InvestigationID string `json:"investigation_id"`
	Role            string `json:"role,omitempty"`
	EvidenceDoc     string `json:"evidence_doc,omitempty"`
	Date            string `json:"date"`
}

// Person is the aggregate record for one individual.
type Person struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Relevance      string       `json:"relevance"`
	Roles          []string     `json:"roles"`
	Aliases        []string     `json:"aliases"`
	Documents      []string     `json:"documents"`
	Connections    []string     `json:"connections"`
	Investigations []Appearance `json:"investigations"`
	Dossier        string       `json:"dossier,omitempty"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Store persists person records.
type Store interface {
	GetPerson(ctx context.Context, id string) (Person, error)
	PutPerson(ctx context.Context, p Person) error
	ListPeople(ctx context.Context) ([]Person, error)
}

// NormalizeID derives the stable person id from a display name: lowercase,
// runs of whitespace collapsed to single underscores.
func NormalizeID(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(name))), "_")
}

func union(dst []string, items ...string) []string {
	seen := make(map[string]bool, len(dst))
	for _, s := range dst {
		seen[strings.ToLower(s)] = true
	}
	for _, s := range items {
		s = strings.TrimSpace(s)
		if s == "" || seen[strings.ToLower(s)] {
			continue
		}
		seen[strings.ToLower(s)] = true
		dst = append(dst, s)
	}
	return dst
}

// Registry applies investigation results to the person store.
type Registry struct {
	store  Store
	logger *log.Logger
}

func NewRegistry(store Store) *Registry {
	return &Registry{
		store:  store,
		logger: log.New(log.Writer(), "[PEOPLE] ", log.LstdFlags),
	}
}

func (r *Registry) load(ctx context.Context, name string) (Person, error) {
	id := NormalizeID(name)
	p, err := r.store.GetPerson(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Person{ID: id, Name: strings.TrimSpace(name), Relevance: investigation.RelevanceLow}, nil
	}
	return p, err
}

// Record folds one completed investigation into the registry: every key
// person gets an appearance, document references and promoted relevance;
// every connection is written onto both endpoints; resolved identities
// merge their aliases onto the canonical person.
func (r *Registry) Record(ctx context.Context, inv investigation.Investigation, now time.Time) error {
	date := now.Format("2006-01-02")

	for _, kp := range inv.Analysis.KeyPeople {
		if strings.TrimSpace(kp.Name) == "" {
			continue
		}
		p, err := r.load(ctx, kp.Name)
		if err != nil {
			return err
		}
		p.Relevance = investigation.MaxRelevance(p.Relevance, kp.Relevance)
		p.Roles = union(p.Roles, kp.Role)
		p.Documents = union(p.Documents, kp.EvidenceDoc)
		p.Investigations = append(p.Investigations, Appearance{
			InvestigationID: inv.ID,
			Role:            kp.Role,
			EvidenceDoc:     kp.EvidenceDoc,
			Date:            date,
		})
		p.UpdatedAt = now
		if err := r.store.PutPerson(ctx, p); err != nil {
			return err
		}
	}

	for _, c := range inv.Analysis.Connections {
		if strings.TrimSpace(c.From) == "" || strings.TrimSpace(c.To) == "" {
			continue
		}
		if err := r.connect(ctx, c.From, c.To, c.EvidenceDoc, now); err != nil {
			return err
		}
		if err := r.connect(ctx, c.To, c.From, c.EvidenceDoc, now); err != nil {
			return err
		}
	}

	for _, id := range inv.Identities.Identities {
		if strings.TrimSpace(id.CanonicalName) == "" {
			continue
		}
		p, err := r.load(ctx, id.CanonicalName)
		if err != nil {
			return err
		}
		p.Aliases = union(p.Aliases, id.Aliases...)
		p.Documents = union(p.Documents, id.Evidence...)
		p.UpdatedAt = now
		if err := r.store.PutPerson(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) connect(ctx context.Context, from, to, evidenceDoc string, now time.Time) error {
	p, err := r.load(ctx, from)
	if err != nil {
		return err
	}
	p.Connections = union(p.Connections, strings.TrimSpace(to))
	p.Documents = union(p.Documents, evidenceDoc)
	p.UpdatedAt = now
	return r.store.PutPerson(ctx, p)
}

// KnownNames returns the display names currently in the registry, for
// priming analysis prompts. Failures degrade to an empty list.
func (r *Registry) KnownNames(ctx context.Context) []string {
	all, err := r.store.ListPeople(ctx)
	if err != nil {
		r.logger.Printf("list people: %v", err)
		return nil
	}
	out := make([]string, 0, len(all))
	for _, p := range all {
		out = append(out, p.Name)
	}
	return out
}
