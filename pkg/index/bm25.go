// Package index provides an in-memory BM25 keyword index over article text.
//
// The index is the keyword branch of hybrid search: documents are added as
// they are ingested and ranked against tokenized queries with the Okapi BM25
// weighting scheme.
package index

import (
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"
)

const (
	// defaultK1 controls term frequency saturation.
	defaultK1 = 1.5

	// defaultB controls document length normalization.
	defaultB = 0.75
)

// Option configures a BM25 index.
type Option func(*BM25)

// WithK1 sets the term frequency saturation parameter.
func WithK1(k1 float64) Option {
	return func(idx *BM25) {
		idx.k1 = k1
	}
}

// WithB sets the length normalization parameter.
func WithB(b float64) Option {
	return func(idx *BM25) {
		idx.b = b
	}
}

// Result is a ranked document reference.
type Result struct {
	// ID is the document identifier passed to Add.
	ID int64

	// Score is the BM25 score for the query. Higher is more relevant.
	Score float64
}

// document holds the per-document state computed at Add time.
type document struct {
	termFreqs map[string]int
	length    int
}

// BM25 is a thread-safe in-memory Okapi BM25 index.
//
// Term frequencies are computed once when a document is added, so ranking
// only touches the terms in the query.
type BM25 struct {
	mu sync.RWMutex

	k1 float64
	b  float64

	docs map[int64]*document

	// docFreqs counts how many documents contain each term.
	docFreqs map[string]int

	totalLength int
}

// NewBM25 creates an empty index with the standard Okapi parameters
// (k1=1.5, b=0.75) unless overridden by options.
func NewBM25(opts ...Option) *BM25 {
	idx := &BM25{
		k1:       defaultK1,
		b:        defaultB,
		docs:     make(map[int64]*document),
		docFreqs: make(map[string]int),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Add indexes a document. Re-adding the same ID replaces the previous text.
func (idx *BM25) Add(id int64, text string) {
	tokens := Tokenize(text)

	termFreqs := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		termFreqs[tok]++
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if old, ok := idx.docs[id]; ok {
		idx.removeLocked(id, old)
	}

	idx.docs[id] = &document{
		termFreqs: termFreqs,
		length:    len(tokens),
	}
	idx.totalLength += len(tokens)
	for term := range termFreqs {
		idx.docFreqs[term]++
	}
}

// Remove drops a document from the index. Unknown IDs are a no-op.
func (idx *BM25) Remove(id int64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	doc, ok := idx.docs[id]
	if !ok {
		return
	}
	idx.removeLocked(id, doc)
}

func (idx *BM25) removeLocked(id int64, doc *document) {
	delete(idx.docs, id)
	idx.totalLength -= doc.length
	for term := range doc.termFreqs {
		idx.docFreqs[term]--
		if idx.docFreqs[term] <= 0 {
			delete(idx.docFreqs, term)
		}
	}
}

// Rank scores all indexed documents against the query and returns the topK
// highest scoring, best first. Documents with zero score are omitted.
//
// A topK of zero or less returns all matching documents.
func (idx *BM25) Rank(query string, topK int) []Result {
	queryTerms := Tokenize(query)
	if len(queryTerms) == 0 {
		return nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	n := len(idx.docs)
	if n == 0 {
		return nil
	}

	avgLength := float64(idx.totalLength) / float64(n)
	if avgLength == 0 {
		return nil
	}

	// Precompute IDF per unique query term.
	idfs := make(map[string]float64, len(queryTerms))
	for _, term := range queryTerms {
		if _, ok := idfs[term]; ok {
			continue
		}
		df := idx.docFreqs[term]
		if df == 0 {
			continue
		}
		idf := math.Log((float64(n)-float64(df)+0.5)/(float64(df)+0.5) + 1)
		idfs[term] = idf
	}
	if len(idfs) == 0 {
		return nil
	}

	results := make([]Result, 0, n)
	for id, doc := range idx.docs {
		var score float64
		lengthNorm := 1 - idx.b + idx.b*float64(doc.length)/avgLength
		for _, term := range queryTerms {
			idf, ok := idfs[term]
			if !ok {
				continue
			}
			tf := float64(doc.termFreqs[term])
			if tf == 0 {
				continue
			}
			score += idf * (tf * (idx.k1 + 1)) / (tf + idx.k1*lengthNorm)
		}
		if score > 0 {
			results = append(results, Result{ID: id, Score: score})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}

// Len returns the number of indexed documents.
func (idx *BM25) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docs)
}

// Terms returns the number of distinct terms in the index.
func (idx *BM25) Terms() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docFreqs)
}

// Tokenize lowercases text and splits it into alphanumeric word tokens.
// Punctuation separates tokens; digits inside words are kept, so terms
// like "gpt-4" become ["gpt", "4"].
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
