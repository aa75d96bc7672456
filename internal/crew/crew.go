// Package crew runs the investigation pipeline: a fixed topology of seven
// specialist agents over a shared document corpus. Planning, research and
// analysis run in sequence; the financial and identity specialists run in
// parallel before the cipher, interrogation and synthesis stages close the
// run. Every stage degrades to a canonical empty shape on failure so one
// bad completion never sinks the run.
package crew

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/inquestlab/inquest/internal/docs"
	"github.com/inquestlab/inquest/internal/index"
	"github.com/inquestlab/inquest/internal/investigation"
	"github.com/inquestlab/inquest/internal/network"
	"github.com/inquestlab/inquest/internal/people"
	"github.com/inquestlab/inquest/internal/telemetry"
	"github.com/inquestlab/inquest/provider"
)

// Stage names, used in statuses, telemetry and warnings.
const (
	StageDirector     = "director"
	StageResearcher   = "researcher"
	StageAnalyst      = "analyst"
	StageBanker       = "banker"
	StageIdentity     = "identity"
	StageCipher       = "cipher"
	StageInterrogator = "interrogator"
	StageSynthesizer  = "synthesizer"
)

// Config carries the pipeline tunables. Zero values take the defaults.
type Config struct {
	MaxTerms          int           // search terms per run
	PagesPerTerm      int           // result pages fetched per term
	TermDelay         time.Duration // pause between term searches
	PeopleTerms       int           // people from the strategy promoted to terms
	SemanticTerms     int           // terms also run through the retrieval index
	SemanticResults   int           // hits per semantic term
	FullTextCap       int           // bytes of full text kept per document
	BatchSize         int           // documents per analysis batch
	BatchWorkers      int           // concurrent analysis batches
	BatchTimeout      time.Duration // per-batch deadline
	SpecialistWorkers int           // concurrent specialist agents
	SpecialistDocs    int           // documents handed to the specialists
}

func (c Config) withDefaults() Config {
	if c.MaxTerms == 0 {
		c.MaxTerms = 10
	}
	if c.PagesPerTerm == 0 {
		c.PagesPerTerm = 3
	}
	if c.PeopleTerms == 0 {
		c.PeopleTerms = 3
	}
	if c.SemanticTerms == 0 {
		c.SemanticTerms = 5
	}
	if c.SemanticResults == 0 {
		c.SemanticResults = 10
	}
	if c.FullTextCap == 0 {
		c.FullTextCap = 3000
	}
	if c.BatchSize == 0 {
		c.BatchSize = 20
	}
	if c.BatchWorkers == 0 {
		c.BatchWorkers = 3
	}
	if c.BatchTimeout == 0 {
		c.BatchTimeout = 5 * time.Minute
	}
	if c.SpecialistWorkers == 0 {
		c.SpecialistWorkers = 2
	}
	if c.SpecialistDocs == 0 {
		c.SpecialistDocs = 30
	}
	return c
}

// Result is everything one pipeline run produces.
type Result struct {
	Success       bool                                   `json:"success"`
	Error         string                                 `json:"error,omitempty"`
	Investigation investigation.Investigation            `json:"investigation"`
	Network       network.Graph                          `json:"network_data"`
	Statuses      map[string]investigation.AgentStatus   `json:"agent_statuses"`
	Warnings      []string                               `json:"warnings"`
}

// Crew wires the agents to their collaborators. The index, registry and
// telemetry are optional.
type Crew struct {
	llm      provider.Provider
	searcher docs.Searcher
	fetcher  docs.TextFetcher
	idx      *index.Index
	registry *people.Registry
	tel      *telemetry.Telemetry
	cfg      Config
	logger   *log.Logger
}

func New(llm provider.Provider, searcher docs.Searcher, fetcher docs.TextFetcher, idx *index.Index, registry *people.Registry, tel *telemetry.Telemetry, cfg Config) *Crew {
	return &Crew{
		llm:      llm,
		searcher: searcher,
		fetcher:  fetcher,
		idx:      idx,
		registry: registry,
		tel:      tel,
		cfg:      cfg.withDefaults(),
		logger:   log.New(log.Writer(), "[CREW] ", log.LstdFlags),
	}
}

// Run executes a fresh investigation.
func (c *Crew) Run(ctx context.Context, objective string) (Result, error) {
	return c.run(ctx, objective, nil)
}

// RunWithContext executes a continuation: the prior context steers the
// planner away from ground already covered and reminds the interrogator of
// still-open questions.
func (c *Crew) RunWithContext(ctx context.Context, objective string, prior *investigation.PriorContext) (Result, error) {
	return c.run(ctx, objective, prior)
}

func (c *Crew) run(ctx context.Context, objective string, prior *investigation.PriorContext) (Result, error) {
	started := time.Now()
	res := Result{
		Statuses: map[string]investigation.AgentStatus{},
		Warnings: []string{},
	}
	inv := investigation.Investigation{
		ID:        uuid.NewString(),
		Objective: objective,
		CreatedAt: started,
		UpdatedAt: started,
	}
	c.logger.Printf("investigation %s: %q", inv.ID, objective)

	inv.Strategy = c.direct(ctx, objective, prior, &res)

	found, stats := c.research(ctx, inv.Strategy, &res)
	inv.SearchStats = stats
	inv.DocumentsFound = len(found)
	if len(found) == 0 {
		res.Success = false
		res.Error = "no documents found"
		res.Investigation = inv
		c.recordRun(inv, started, false, len(res.Warnings))
		return res, nil
	}

	inv.Analysis = c.analyze(ctx, objective, found, &res)

	banking, identities := c.specialists(ctx, objective, found, &res)
	inv.Banking = banking
	inv.Identities = identities

	inv.Cipher = c.decipher(ctx, objective, found, identities, &res)
	inv.FollowUp = c.interrogate(ctx, inv, prior, &res)
	inv.Report = c.synthesize(ctx, inv, &res)

	res.Network = network.Project(inv.Analysis, inv.Banking)
	res.Investigation = inv
	res.Success = true

	if c.registry != nil {
		if err := c.registry.Record(ctx, inv, time.Now()); err != nil {
			c.logger.Printf("person registry: %v", err)
			res.Warnings = append(res.Warnings, "person registry update failed: "+err.Error())
		}
	}
	c.recordRun(inv, started, true, len(res.Warnings))
	return res, nil
}

func (c *Crew) recordRun(inv investigation.Investigation, started time.Time, success bool, warnings int) {
	if c.tel == nil {
		return
	}
	c.tel.RecordRun(telemetry.RunEvent{
		ID:             inv.ID,
		Objective:      inv.Objective,
		Duration:       time.Since(started),
		Success:        success,
		DocumentsFound: inv.DocumentsFound,
		Warnings:       warnings,
	})
}

// stage wraps one agent execution with status bookkeeping and telemetry.
func (c *Crew) stage(name string, res *Result, fn func() (investigation.AgentStatus, error)) {
	started := time.Now()
	status, err := fn()
	res.Statuses[name] = status
	if err != nil {
		c.logger.Printf("%s: %v", name, err)
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %v", name, err))
	}
	if c.tel != nil {
		ev := telemetry.StageEvent{Stage: name, Duration: time.Since(started), Success: status != investigation.StatusFailed}
		if err != nil {
			ev.Error = err.Error()
		}
		c.tel.RecordStage(ev)
	}
}
