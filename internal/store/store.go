// Package store persists investigations, merges and person records in
// Postgres. Documents live as JSONB; every write is an upsert keyed by id.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/inquestlab/inquest/internal/investigation"
	"github.com/inquestlab/inquest/internal/people"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("store: not found")

type Store struct {
	DB *sql.DB
}

// New opens a connection and makes sure the schema exists.
func New(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	s := &Store{DB: db}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// DSN builds a Postgres URL from parts, unless url overrides everything.
func DSN(url, host, port, user, pass, dbname, sslmode string) string {
	if url != "" {
		return url
	}
	if host == "" {
		host = "localhost"
	}
	if port == "" {
		port = "5432"
	}
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, dbname, sslmode)
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS investigations (
    id TEXT PRIMARY KEY,
    objective TEXT NOT NULL,
    payload JSONB NOT NULL,
    created_at TIMESTAMPTZ DEFAULT NOW(),
    updated_at TIMESTAMPTZ DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS merges (
    id TEXT PRIMARY KEY,
    investigation_ids JSONB NOT NULL,
    status TEXT NOT NULL,
    payload JSONB NOT NULL,
    created_at TIMESTAMPTZ DEFAULT NOW(),
    updated_at TIMESTAMPTZ DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS persons (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    payload JSONB NOT NULL,
    updated_at TIMESTAMPTZ DEFAULT NOW()
);
`)
	return err
}

// SaveInvestigation upserts one investigation.
func (s *Store) SaveInvestigation(ctx context.Context, inv investigation.Investigation) error {
	payload, err := json.Marshal(inv)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx, `
INSERT INTO investigations (id, objective, payload, created_at, updated_at)
VALUES ($1, $2, $3, $4, NOW())
ON CONFLICT (id) DO UPDATE SET
  objective = EXCLUDED.objective,
  payload = EXCLUDED.payload,
  updated_at = NOW();
`, inv.ID, inv.Objective, payload, inv.CreatedAt)
	return err
}

// GetInvestigation loads one investigation by id.
func (s *Store) GetInvestigation(ctx context.Context, id string) (investigation.Investigation, error) {
	var payload []byte
	err := s.DB.QueryRowContext(ctx, `SELECT payload FROM investigations WHERE id = $1`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return investigation.Investigation{}, ErrNotFound
	}
	if err != nil {
		return investigation.Investigation{}, err
	}
	var inv investigation.Investigation
	if err := json.Unmarshal(payload, &inv); err != nil {
		return investigation.Investigation{}, err
	}
	return inv, nil
}

// ListInvestigations returns the most recent investigations, newest first.
func (s *Store) ListInvestigations(ctx context.Context, limit int) ([]investigation.Investigation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT payload FROM investigations ORDER BY updated_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []investigation.Investigation
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var inv investigation.Investigation
		if err := json.Unmarshal(payload, &inv); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// SaveMerge upserts one merge record.
func (s *Store) SaveMerge(ctx context.Context, rec investigation.MergeRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	ids, _ := json.Marshal(rec.InvestigationIDs)
	_, err = s.DB.ExecContext(ctx, `
INSERT INTO merges (id, investigation_ids, status, payload, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, NOW())
ON CONFLICT (id) DO UPDATE SET
  investigation_ids = EXCLUDED.investigation_ids,
  status = EXCLUDED.status,
  payload = EXCLUDED.payload,
  updated_at = NOW();
`, rec.ID, ids, rec.Status, payload, rec.CreatedAt)
	return err
}

// GetMerge loads one merge record by id.
func (s *Store) GetMerge(ctx context.Context, id string) (investigation.MergeRecord, error) {
	var payload []byte
	err := s.DB.QueryRowContext(ctx, `SELECT payload FROM merges WHERE id = $1`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return investigation.MergeRecord{}, ErrNotFound
	}
	if err != nil {
		return investigation.MergeRecord{}, err
	}
	var rec investigation.MergeRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return investigation.MergeRecord{}, err
	}
	return rec, nil
}

// GetPerson implements people.Store.
func (s *Store) GetPerson(ctx context.Context, id string) (people.Person, error) {
	var payload []byte
	err := s.DB.QueryRowContext(ctx, `SELECT payload FROM persons WHERE id = $1`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return people.Person{}, people.ErrNotFound
	}
	if err != nil {
		return people.Person{}, err
	}
	var p people.Person
	if err := json.Unmarshal(payload, &p); err != nil {
		return people.Person{}, err
	}
	return p, nil
}

// PutPerson implements people.Store.
func (s *Store) PutPerson(ctx context.Context, p people.Person) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx, `
INSERT INTO persons (id, name, payload, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (id) DO UPDATE SET
  name = EXCLUDED.name,
  payload = EXCLUDED.payload,
  updated_at = NOW();
`, p.ID, p.Name, payload)
	return err
}

// ListPeople implements people.Store.
func (s *Store) ListPeople(ctx context.Context) ([]people.Person, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT payload FROM persons ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []people.Person
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var p people.Person
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Touch is a connectivity probe for health checks.
func (s *Store) Touch(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.DB.PingContext(ctx)
}
