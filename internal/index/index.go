// Package index keeps an in-process retrieval index over investigation
// documents: a bleve keyword index fused with embedding vectors via
// reciprocal-rank fusion. The fact-checker also uses it to answer whether a
// document id has ever been ingested.
package index

import (
	"context"
	"log"
	"math"
	"sort"
	"sync"

	"github.com/blevesearch/bleve"

	"github.com/inquestlab/inquest/internal/docs"
	"github.com/inquestlab/inquest/provider"
)

const rrfK = 60 // reciprocal-rank-fusion constant

// Hit is one retrieval result.
type Hit struct {
	DocID   string  `json:"doc_id"`
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
	Rank    int     `json:"rank"`
}

type docVec struct {
	docID string
	vec   []float64
}

// Index is safe for concurrent use.
type Index struct {
	mu       sync.RWMutex
	bleve    bleve.Index
	meta     map[string]docs.Document
	vectors  []docVec
	embedder provider.Provider
	logger   *log.Logger
}

// New builds an empty in-memory index. embedder may be nil, in which case
// retrieval is keyword-only.
func New(embedder provider.Provider) (*Index, error) {
	bi, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	return &Index{
		bleve:    bi,
		meta:     make(map[string]docs.Document),
		embedder: embedder,
		logger:   log.New(log.Writer(), "[INDEX] ", log.LstdFlags),
	}, nil
}

type indexedDoc struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Add ingests a document. Embedding failures degrade to keyword-only for
// that document rather than failing the ingest.
func (ix *Index) Add(ctx context.Context, d docs.Document) error {
	text := d.FullText
	if text == "" {
		text = d.Snippet
	}
	ix.mu.Lock()
	ix.meta[d.ID] = d
	err := ix.bleve.Index(d.ID, indexedDoc{Title: d.Title, Text: text})
	ix.mu.Unlock()
	if err != nil {
		return err
	}
	if ix.embedder == nil || text == "" {
		return nil
	}
	vecs, err := ix.embedder.Embed(ctx, []string{d.Title + "\n" + docs.Truncate(text, 2000)})
	if err != nil {
		ix.logger.Printf("embed %s: %v", d.ID, err)
		return nil
	}
	ix.mu.Lock()
	ix.vectors = append(ix.vectors, docVec{docID: d.ID, vec: vecs[0]})
	ix.mu.Unlock()
	return nil
}

// Has reports whether a document id was ever ingested.
func (ix *Index) Has(docID string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.meta[docID]
	return ok
}

// Size returns the number of ingested documents.
func (ix *Index) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.meta)
}

// Get returns the stored document for id.
func (ix *Index) Get(docID string) (docs.Document, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	d, ok := ix.meta[docID]
	return d, ok
}

// Search fuses keyword and vector retrieval for q.
func (ix *Index) Search(ctx context.Context, q string, k int) ([]Hit, error) {
	if k <= 0 || k > 50 {
		k = 10
	}
	bmHits, err := ix.keywordSearch(q, k)
	if err != nil {
		return nil, err
	}
	var vecHits []Hit
	if ix.embedder != nil {
		qvecs, err := ix.embedder.Embed(ctx, []string{q})
		if err != nil {
			ix.logger.Printf("embed query: %v", err)
		} else {
			vecHits = ix.vectorSearch(qvecs[0], k)
		}
	}
	if len(vecHits) == 0 {
		return bmHits, nil
	}
	return fuseRRF(bmHits, vecHits, k), nil
}

func (ix *Index) keywordSearch(q string, k int) ([]Hit, error) {
	query := bleve.NewQueryStringQuery(q)
	req := bleve.NewSearchRequestOptions(query, k*3, 0, false)
	ix.mu.RLock()
	res, err := ix.bleve.Search(req)
	ix.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	var out []Hit
	for i, hit := range res.Hits {
		ix.mu.RLock()
		doc := ix.meta[hit.ID]
		ix.mu.RUnlock()
		out = append(out, Hit{
			DocID: hit.ID, Title: doc.Title, URL: doc.URL,
			Snippet: snippet(doc), Score: hit.Score, Rank: i + 1,
		})
		if len(out) >= k {
			break
		}
	}
	return out, nil
}

func (ix *Index) vectorSearch(q []float64, k int) []Hit {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	type scored struct {
		id    string
		score float64
	}
	var scoreds []scored
	for _, v := range ix.vectors {
		scoreds = append(scoreds, scored{id: v.docID, score: cosine(q, v.vec)})
	}
	sort.Slice(scoreds, func(i, j int) bool { return scoreds[i].score > scoreds[j].score })
	var out []Hit
	for i, sc := range scoreds {
		doc := ix.meta[sc.id]
		out = append(out, Hit{
			DocID: sc.id, Title: doc.Title, URL: doc.URL,
			Snippet: snippet(doc), Score: sc.score, Rank: i + 1,
		})
		if len(out) >= k {
			break
		}
	}
	return out
}

func fuseRRF(a, b []Hit, k int) []Hit {
	type agg struct {
		item  Hit
		score float64
	}
	m := map[string]*agg{}
	add := func(list []Hit) {
		for _, h := range list {
			x, ok := m[h.DocID]
			if !ok {
				m[h.DocID] = &agg{item: h}
				x = m[h.DocID]
			}
			x.score += 1.0 / float64(rrfK+h.Rank)
		}
	}
	add(a)
	add(b)
	items := make([]agg, 0, len(m))
	for _, v := range m {
		items = append(items, *v)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].score > items[j].score })
	out := make([]Hit, 0, min(k, len(items)))
	for i := 0; i < min(k, len(items)); i++ {
		h := items[i].item
		h.Score = items[i].score
		h.Rank = i + 1
		out = append(out, h)
	}
	return out
}

func cosine(a, b []float64) float64 {
	var dot, na, nb float64
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func snippet(d docs.Document) string {
	s := d.FullText
	if s == "" {
		s = d.Snippet
	}
	if len(s) <= 300 {
		return s
	}
	return docs.Truncate(s, 300) + "…"
}
