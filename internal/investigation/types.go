// Package investigation defines the data model shared by the crew pipeline,
// the merge engine, persistence and the HTTP surface.
package investigation

import "time"

// Relevance levels for key people. Ordering matters: merges may only keep
// or promote relevance, never demote it.
const (
	RelevanceHigh   = "alta"
	RelevanceMedium = "media"
	RelevanceLow    = "bassa"
)

// RelevanceRank maps a relevance label to its ordering weight. Unknown
// labels rank below every known one.
func RelevanceRank(r string) int {
	switch r {
	case RelevanceHigh:
		return 3
	case RelevanceMedium:
		return 2
	case RelevanceLow:
		return 1
	}
	return 0
}

// MaxRelevance returns the higher of two relevance labels.
func MaxRelevance(a, b string) string {
	if RelevanceRank(b) > RelevanceRank(a) {
		return b
	}
	return a
}

// AgentStatus reports how a pipeline stage concluded. StatusEmpty means the
// stage ran and genuinely found nothing; StatusFailed means its output was
// replaced by a canonical empty shape after an error.
type AgentStatus string

const (
	StatusOK     AgentStatus = "ok"
	StatusEmpty  AgentStatus = "empty"
	StatusFailed AgentStatus = "failed"
)

// Strategy is the Director's plan for an investigation.
type Strategy struct {
	PrimaryTerms   []string `json:"primary_search_terms"`
	SecondaryTerms []string `json:"secondary_search_terms"`
	People         []string `json:"people_to_investigate"`
	KeyQuestions   []string `json:"key_questions"`
	Approach       string   `json:"approach,omitempty"`
}

// KeyPerson is a person surfaced by the Analyst.
type KeyPerson struct {
	Name        string `json:"name"`
	Role        string `json:"role"`
	Relevance   string `json:"relevance"`
	EvidenceDoc string `json:"evidence_doc,omitempty"`
}

// Connection links two entities. Evidence describes the supporting passage,
// EvidenceDoc the document id it came from.
type Connection struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Type        string `json:"type"`
	Evidence    string `json:"evidence,omitempty"`
	EvidenceDoc string `json:"evidence_doc,omitempty"`
}

// TimelineEntry is one dated event.
type TimelineEntry struct {
	Date        string `json:"date"`
	Event       string `json:"event"`
	EvidenceDoc string `json:"evidence_doc,omitempty"`
}

// Evidence points at one document and why it matters.
type Evidence struct {
	Document     string `json:"document"`
	Description  string `json:"description,omitempty"`
	Significance string `json:"significance,omitempty"`
}

// Analysis is the Analyst's merged output over every document batch.
type Analysis struct {
	KeyPeople   []KeyPerson     `json:"key_people"`
	Connections []Connection    `json:"connections"`
	Timeline    []TimelineEntry `json:"timeline"`
	Patterns    []string        `json:"patterns"`
	Locations   []string        `json:"locations"`
	KeyEvidence []Evidence      `json:"key_evidence"`
}

// EmptyAnalysis is the canonical zero-findings shape. Slices are non-nil so
// the JSON form always carries the full set of keys.
func EmptyAnalysis() Analysis {
	return Analysis{
		KeyPeople:   []KeyPerson{},
		Connections: []Connection{},
		Timeline:    []TimelineEntry{},
		Patterns:    []string{},
		Locations:   []string{},
		KeyEvidence: []Evidence{},
	}
}

// Bank is a financial institution named in the corpus.
type Bank struct {
	Name      string   `json:"name"`
	Country   string   `json:"country,omitempty"`
	Role      string   `json:"role,omitempty"`
	KeyPeople []string `json:"key_people,omitempty"`
	Evidence  string   `json:"evidence,omitempty"`
}

// Transaction is one money movement between two parties.
type Transaction struct {
	From       string `json:"from"`
	To         string `json:"to"`
	Amount     string `json:"amount"`
	Date       string `json:"date,omitempty"`
	Type       string `json:"type,omitempty"`
	Suspicious bool   `json:"suspicious,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// BankingReport is the Banker's output.
type BankingReport struct {
	Banks            []Bank        `json:"banks"`
	Transactions     []Transaction `json:"transactions"`
	MoneyFlows       []string      `json:"money_flows"`
	OffshoreEntities []string      `json:"offshore_entities"`
	RedFlags         []string      `json:"red_flags"`
}

func EmptyBanking() BankingReport {
	return BankingReport{
		Banks:            []Bank{},
		Transactions:     []Transaction{},
		MoneyFlows:       []string{},
		OffshoreEntities: []string{},
		RedFlags:         []string{},
	}
}

// Identity clusters the names one real person appears under.
type Identity struct {
	CanonicalName string   `json:"canonical_name"`
	Aliases       []string `json:"aliases"`
	Evidence      []string `json:"evidence"`
	Notes         string   `json:"notes,omitempty"`
}

// IdentityReport is the Identity-Resolver's output.
type IdentityReport struct {
	Identities []Identity `json:"identities"`
	Anomalies  []string   `json:"anomalies"`
}

func EmptyIdentities() IdentityReport {
	return IdentityReport{Identities: []Identity{}, Anomalies: []string{}}
}

// Euphemism is a coded term and its inferred meaning.
type Euphemism struct {
	Term     string `json:"term"`
	Meaning  string `json:"meaning"`
	Evidence string `json:"evidence,omitempty"`
}

// CipherReport is the Cipher agent's output on coded language.
type CipherReport struct {
	Euphemisms         []Euphemism `json:"euphemisms"`
	CodedPatterns      []string    `json:"coded_patterns"`
	SuspiciousLanguage []string    `json:"suspicious_language"`
}

func EmptyCipher() CipherReport {
	return CipherReport{
		Euphemisms:         []Euphemism{},
		CodedPatterns:      []string{},
		SuspiciousLanguage: []string{},
	}
}

// FollowUp is the Interrogator's output: what to chase next.
type FollowUp struct {
	CriticalQuestions []string `json:"critical_questions"`
	SuggestedSearches []string `json:"suggested_searches"`
	LeadsToFollow     []string `json:"leads_to_follow"`
	Inconsistencies   []string `json:"inconsistencies"`
}

func EmptyFollowUp() FollowUp {
	return FollowUp{
		CriticalQuestions: []string{},
		SuggestedSearches: []string{},
		LeadsToFollow:     []string{},
		Inconsistencies:   []string{},
	}
}

// ContinuationEntry records one prior session folded into an investigation.
type ContinuationEntry struct {
	Date           string `json:"date"`
	Objective      string `json:"objective"`
	DocumentsFound int    `json:"documents_found"`
}

// Investigation is the complete persisted result of one pipeline run,
// possibly extended by continuation merges.
type Investigation struct {
	ID                  string              `json:"id"`
	Objective           string              `json:"objective"`
	Strategy            Strategy            `json:"strategy"`
	Analysis            Analysis            `json:"analysis"`
	Banking             BankingReport       `json:"banking"`
	Identities          IdentityReport      `json:"identities"`
	Cipher              CipherReport        `json:"cipher"`
	FollowUp            FollowUp            `json:"follow_up"`
	Report              string              `json:"report"`
	DocumentsFound      int                 `json:"documents_found"`
	SearchStats         []string            `json:"search_stats"`
	ContinuationHistory []ContinuationEntry `json:"continuation_history,omitempty"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

// PriorContext is a compacted view of an earlier Investigation handed to the
// Director so a continuation run avoids repeating ground already covered.
type PriorContext struct {
	PreviousObjective   string              `json:"previous_objective"`
	PreviousTerms       []string            `json:"previous_terms"`
	PeopleFound         []string            `json:"people_found"`
	Connections         []string            `json:"connections"`
	OpenQuestions       []string            `json:"open_questions"`
	SuggestedSearches   []string            `json:"suggested_searches"`
	Leads               []string            `json:"leads"`
	ContinuationHistory []ContinuationEntry `json:"continuation_history,omitempty"`
}

// CommonPerson appears in two or more merged investigations.
type CommonPerson struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Lead is a document the merge surfaced but never fetched.
type Lead struct {
	DocID    string `json:"doc_id"`
	Reason   string `json:"reason"`
	Priority string `json:"priority"`
}

// DeepDive is a structured single-document analysis attached to a merge.
type DeepDive struct {
	DocID                 string   `json:"doc_id"`
	DocumentSummary       string   `json:"document_summary"`
	KeyFindings           []string `json:"key_findings"`
	People                []string `json:"people"`
	FinancialTransactions []string `json:"financial_transactions"`
	RedFlags              []string `json:"red_flags"`
	RelatedDocuments      []string `json:"related_documents"`
	TraffickingReferences []string `json:"trafficking_references"`
	Conclusion            string   `json:"conclusion"`
	NextSteps             []string `json:"next_steps"`
}

// MergeAnalysis is the synthesized cross-investigation picture.
type MergeAnalysis struct {
	Summary          string         `json:"summary"`
	CriticalFindings []string       `json:"critical_findings"`
	CommonPeople     []CommonPerson `json:"common_people"`
	Connections      []string       `json:"connections"`
	Patterns         []string       `json:"patterns"`
	DocumentAnalysis string         `json:"document_analysis"`
	Recommendations  []string       `json:"recommendations"`
	LeadsToFollow    []Lead         `json:"leads_to_follow"`
	CanGoDeeper      bool           `json:"can_go_deeper"`
	DeepDives        []DeepDive     `json:"deep_dives,omitempty"`
}

// MergeRecord is a persisted multi-investigation merge.
type MergeRecord struct {
	ID               string        `json:"id"`
	InvestigationIDs []string      `json:"investigation_ids"`
	Status           string        `json:"status"`
	Analysis         MergeAnalysis `json:"analysis"`
	Error            string        `json:"error,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// Merge record statuses.
const (
	MergeStatusRunning = "running"
	MergeStatusDone    = "completed"
	MergeStatusFailed  = "failed"
)
