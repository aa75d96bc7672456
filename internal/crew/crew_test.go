package crew

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/inquestlab/inquest/internal/docs"
	"github.com/inquestlab/inquest/internal/investigation"
	"github.com/inquestlab/inquest/internal/people"
	"github.com/inquestlab/inquest/provider"
)

// fakeLLM routes completions by the system prompt of each stage.
type fakeLLM struct {
	strategyReply     string
	analysisReply     func(prompt string) (string, error)
	bankingReply      string
	bankingErr        error
	identityReply     string
	cipherReply       string
	interrogatorReply string
	reportReply       string
	analystCalls      int32
}

func (f *fakeLLM) Complete(_ context.Context, req provider.CompletionRequest) (string, error) {
	sys := req.System
	switch {
	case strings.Contains(sys, "director"):
		if f.strategyReply == "" {
			return "", errors.New("director down")
		}
		return f.strategyReply, nil
	case strings.Contains(sys, "lead analyst"):
		atomic.AddInt32(&f.analystCalls, 1)
		if f.analysisReply != nil {
			return f.analysisReply(req.Prompt)
		}
		return `{"key_people":[],"connections":[],"timeline":[],"patterns":[],"locations":[],"key_evidence":[]}`, nil
	case strings.Contains(sys, "forensic financial"):
		if f.bankingErr != nil {
			return "", f.bankingErr
		}
		return f.bankingReply, nil
	case strings.Contains(sys, "resolve identities"):
		return f.identityReply, nil
	case strings.Contains(sys, "euphemisms"):
		return f.cipherReply, nil
	case strings.Contains(sys, "interrogator"):
		return f.interrogatorReply, nil
	case strings.Contains(sys, "journalist"):
		return f.reportReply, nil
	}
	return "", fmt.Errorf("unexpected system prompt: %s", sys)
}

func (f *fakeLLM) Embed(context.Context, []string) ([][]float64, error) { return nil, nil }

// fakeSearcher serves a fixed corpus for any primary term.
type fakeSearcher struct {
	corpus []docs.Document
}

func (f *fakeSearcher) Search(_ context.Context, term string, page int) ([]docs.Document, error) {
	if page > 0 {
		return nil, nil
	}
	return f.corpus, nil
}

func corpus(n int) []docs.Document {
	out := make([]docs.Document, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, docs.Document{
			ID:      fmt.Sprintf("EFTA%08d", i),
			Title:   fmt.Sprintf("Exhibit %d", i),
			Snippet: "payment discussed",
		})
	}
	return out
}

func defaultFake() *fakeLLM {
	return &fakeLLM{
		strategyReply: `{"primary_search_terms":["wire transfer"],"secondary_search_terms":["offshore"],"people_to_investigate":["John Doe"],"key_questions":["where did the money go?"]}`,
		analysisReply: func(prompt string) (string, error) {
			// the split point: documents 21+ only appear in the second batch
			if strings.Contains(prompt, "[EFTA00000021]") {
				return `{"key_people":[{"name":"john doe","role":"financier","relevance":"alta","evidence_doc":"EFTA00000021"}],"connections":[],"timeline":[{"date":"2004-02-02","event":"second transfer"}],"patterns":["structured amounts"],"locations":[],"key_evidence":[]}`, nil
			}
			return `{"key_people":[{"name":"John Doe","role":"banker","relevance":"media","evidence_doc":"EFTA00000001"},{"name":"Jane Roe","role":"pilot","relevance":"bassa"}],"connections":[{"from":"John Doe","to":"Jane Roe","type":"payments","evidence_doc":"EFTA00000002"}],"timeline":[{"date":"2003-01-01","event":"first transfer"}],"patterns":["structured amounts"],"locations":["Zurich"],"key_evidence":[{"document":"EFTA00000001","description":"ledger"}]}`, nil
		},
		bankingReply:      `{"banks":[{"name":"Alpine Privatbank"}],"transactions":[{"from":"John Doe","to":"Shell Corp","amount":"$50,000","suspicious":true,"reason":"no purpose"}],"money_flows":[],"offshore_entities":[],"red_flags":["round amounts"]}`,
		identityReply:     `{"identities":[{"canonical_name":"John Doe","aliases":["J.D."],"evidence":["EFTA00000003"]}],"anomalies":[]}`,
		cipherReply:       `{"euphemisms":[{"term":"massage","meaning":"coded reference","evidence":"EFTA00000004"}],"coded_patterns":[],"suspicious_language":[]}`,
		interrogatorReply: `{"critical_questions":["who owns Shell Corp?"],"suggested_searches":["shell corp registry"],"leads_to_follow":["EFTA00000005"],"inconsistencies":[]}`,
		reportReply:       "# Report\n\nJohn Doe moved money, see EFTA00000001.",
	}
}

func newTestCrew(llm *fakeLLM, searcher docs.Searcher) *Crew {
	return New(llm, searcher, nil, nil, nil, nil, Config{})
}

func TestRunEndToEndTwoBatches(t *testing.T) {
	llm := defaultFake()
	c := newTestCrew(llm, &fakeSearcher{corpus: corpus(25)})

	res, err := c.Run(context.Background(), "follow the money")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Success {
		t.Fatalf("run failed: %s", res.Error)
	}
	inv := res.Investigation
	if inv.DocumentsFound != 25 {
		t.Fatalf("documents found: %d", inv.DocumentsFound)
	}
	// 25 documents with batch size 20 means exactly two analysis calls
	if n := atomic.LoadInt32(&llm.analystCalls); n != 2 {
		t.Fatalf("analyst calls: %d", n)
	}
	// the batches both name john doe; the merge must keep one entry with
	// the promoted relevance and concatenated roles
	var john *investigation.KeyPerson
	for i := range inv.Analysis.KeyPeople {
		if strings.EqualFold(inv.Analysis.KeyPeople[i].Name, "john doe") {
			if john != nil {
				t.Fatal("duplicate person across batches")
			}
			john = &inv.Analysis.KeyPeople[i]
		}
	}
	if john == nil || john.Relevance != investigation.RelevanceHigh {
		t.Fatalf("john: %+v", john)
	}
	if !strings.Contains(john.Role, "banker") || !strings.Contains(john.Role, "financier") {
		t.Fatalf("roles not merged: %q", john.Role)
	}
	if len(inv.Analysis.Timeline) != 2 || inv.Analysis.Timeline[0].Date != "2003-01-01" {
		t.Fatalf("timeline: %+v", inv.Analysis.Timeline)
	}
	if len(inv.Analysis.Patterns) != 1 {
		t.Fatalf("patterns must dedupe across batches: %v", inv.Analysis.Patterns)
	}
	for _, stage := range []string{StageDirector, StageResearcher, StageAnalyst, StageBanker, StageIdentity, StageCipher, StageInterrogator, StageSynthesizer} {
		if res.Statuses[stage] != investigation.StatusOK {
			t.Fatalf("stage %s: %s", stage, res.Statuses[stage])
		}
	}
	if len(res.Network.Nodes) == 0 {
		t.Fatal("network projection missing")
	}
	if len(inv.SearchStats) == 0 || !strings.Contains(inv.SearchStats[0], "'wire transfer'") {
		t.Fatalf("search stats: %v", inv.SearchStats)
	}
}

func TestRunNoDocuments(t *testing.T) {
	llm := defaultFake()
	c := newTestCrew(llm, &fakeSearcher{})

	res, err := c.Run(context.Background(), "empty archive")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Success || res.Error != "no documents found" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(res.Investigation.Strategy.PrimaryTerms) == 0 {
		t.Fatal("strategy must be returned even without documents")
	}
}

func TestDirectorFallbackStrategy(t *testing.T) {
	llm := defaultFake()
	llm.strategyReply = "" // director errors out
	c := newTestCrew(llm, &fakeSearcher{corpus: corpus(3)})

	res, err := c.Run(context.Background(), "offshore accounts in Zurich")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	s := res.Investigation.Strategy
	if len(s.PrimaryTerms) != 1 || s.PrimaryTerms[0] != "offshore" {
		t.Fatalf("fallback terms: %v", s.PrimaryTerms)
	}
	if len(s.KeyQuestions) != 1 || s.KeyQuestions[0] != "offshore accounts in Zurich" {
		t.Fatalf("fallback questions: %v", s.KeyQuestions)
	}
	if res.Statuses[StageDirector] != investigation.StatusFailed {
		t.Fatalf("director status: %s", res.Statuses[StageDirector])
	}
	if len(res.Warnings) == 0 {
		t.Fatal("director failure must surface a warning")
	}
	if !res.Success {
		t.Fatalf("run must still succeed: %s", res.Error)
	}
}

func TestSpecialistFailureIsIsolated(t *testing.T) {
	llm := defaultFake()
	llm.bankingErr = errors.New("model overloaded")
	c := newTestCrew(llm, &fakeSearcher{corpus: corpus(5)})

	res, err := c.Run(context.Background(), "follow the money")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Success {
		t.Fatalf("run failed: %s", res.Error)
	}
	if res.Statuses[StageBanker] != investigation.StatusFailed {
		t.Fatalf("banker status: %s", res.Statuses[StageBanker])
	}
	if len(res.Investigation.Banking.Banks) != 0 {
		t.Fatalf("banking must be the empty shape: %+v", res.Investigation.Banking)
	}
	if res.Statuses[StageIdentity] != investigation.StatusOK {
		t.Fatalf("identity must be unaffected: %s", res.Statuses[StageIdentity])
	}
	if len(res.Investigation.Identities.Identities) != 1 {
		t.Fatalf("identities lost: %+v", res.Investigation.Identities)
	}
}

func TestRunWithContextSteersDirectorAndInterrogator(t *testing.T) {
	llm := defaultFake()
	var directorPrompt, interrogatorPrompt string
	wrapped := &promptSpy{inner: llm, onDirector: func(p string) { directorPrompt = p }, onInterrogator: func(p string) { interrogatorPrompt = p }}
	c := New(wrapped, &fakeSearcher{corpus: corpus(3)}, nil, nil, nil, nil, Config{})

	prior := &investigation.PriorContext{
		PreviousObjective: "flight logs",
		PreviousTerms:     []string{"flight manifest"},
		OpenQuestions:     []string{"who paid for the fuel?"},
	}
	if _, err := c.RunWithContext(context.Background(), "follow the money", prior); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(directorPrompt, "flight manifest") {
		t.Fatal("director prompt must carry previous terms")
	}
	if !strings.Contains(interrogatorPrompt, "who paid for the fuel?") {
		t.Fatal("interrogator prompt must carry open questions")
	}
}

// promptSpy records stage prompts on their way to the inner fake.
type promptSpy struct {
	inner          *fakeLLM
	onDirector     func(string)
	onInterrogator func(string)
	onSynthesizer  func(string)
}

func (s *promptSpy) Complete(ctx context.Context, req provider.CompletionRequest) (string, error) {
	if strings.Contains(req.System, "director") && s.onDirector != nil {
		s.onDirector(req.Prompt)
	}
	if strings.Contains(req.System, "interrogator") && s.onInterrogator != nil {
		s.onInterrogator(req.Prompt)
	}
	if strings.Contains(req.System, "journalist") && s.onSynthesizer != nil {
		s.onSynthesizer(req.Prompt)
	}
	return s.inner.Complete(ctx, req)
}

func (s *promptSpy) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	return s.inner.Embed(ctx, texts)
}

func TestAnalystPromptSeparatesEvidenceKinds(t *testing.T) {
	p := analystPrompt("follow the money", corpus(1), nil)
	for _, kind := range []string{"DIRECT COMMUNICATION", "THIRD-PARTY MENTION", "PRESS COVERAGE"} {
		if !strings.Contains(p, kind) {
			t.Fatalf("analyst prompt must weigh %s separately", kind)
		}
	}
}

func TestSynthesizerPromptCarriesStrategyAndStats(t *testing.T) {
	llm := defaultFake()
	var synthPrompt string
	wrapped := &promptSpy{inner: llm, onSynthesizer: func(p string) { synthPrompt = p }}
	c := New(wrapped, &fakeSearcher{corpus: corpus(3)}, nil, nil, nil, nil, Config{})

	if _, err := c.Run(context.Background(), "follow the money"); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(synthPrompt, "wire transfer") {
		t.Fatal("synthesizer prompt must carry the search strategy")
	}
	if !strings.Contains(synthPrompt, "'wire transfer': 3 documents") {
		t.Fatalf("synthesizer prompt must carry the search statistics: %s", synthPrompt)
	}
}

func TestRunRecordsPeople(t *testing.T) {
	llm := defaultFake()
	st := people.NewMemoryStore()
	reg := people.NewRegistry(st)
	c := New(llm, &fakeSearcher{corpus: corpus(3)}, nil, nil, reg, nil, Config{})

	if _, err := c.Run(context.Background(), "follow the money"); err != nil {
		t.Fatalf("run: %v", err)
	}
	john, err := st.GetPerson(context.Background(), "john_doe")
	if err != nil {
		t.Fatalf("john not recorded: %v", err)
	}
	if len(john.Aliases) != 1 || john.Aliases[0] != "J.D." {
		t.Fatalf("identity aliases not applied: %+v", john)
	}
}

func TestSearchTermsCapAndOrder(t *testing.T) {
	s := investigation.Strategy{
		PrimaryTerms:   []string{"a", "b", "c", "d"},
		SecondaryTerms: []string{"e", "f", "g", "h"},
		People:         []string{"p1", "p2", "p3", "p4"},
	}
	terms := searchTerms(s, 10, 3)
	if len(terms) != 10 {
		t.Fatalf("terms: %v", terms)
	}
	if terms[0] != "a" || terms[4] != "e" || terms[8] != "p1" {
		t.Fatalf("ordering: %v", terms)
	}
	// p4 never makes it: the people contribution stops at three
	for _, term := range terms {
		if term == "p4" {
			t.Fatal("fourth person must not become a term")
		}
	}
}

func TestSplitBatches(t *testing.T) {
	b := splitBatches(corpus(25), 20)
	if len(b) != 2 || len(b[0]) != 20 || len(b[1]) != 5 {
		t.Fatalf("batches: %d/%v", len(b), []int{len(b[0]), len(b[1])})
	}
	b = splitBatches(corpus(20), 20)
	if len(b) != 1 {
		t.Fatalf("exact fit: %d", len(b))
	}
}
