package index

import (
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/solidb/solidb/pkg/metrics"
	"github.com/solidb/solidb/pkg/value"
)

// BM25 tuning constants (spec §4.4 full-text index: "BM25 ranking,
// k1=1.2, b=0.75").
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

type posting struct {
	docKey string
	freq   int
}

// Fulltext is an in-memory inverted-index full-text search index over
// one document field, ranking matches with BM25.
type Fulltext struct {
	name  string
	field string

	mu         sync.RWMutex
	postings   map[string][]posting // term -> postings, sorted by docKey
	docLength  map[string]int
	totalLen   int64
	docCount   int
}

func NewFulltext(indexName, field string) *Fulltext {
	return &Fulltext{
		name:      indexName,
		field:     field,
		postings:  make(map[string][]posting),
		docLength: make(map[string]int),
	}
}

func (f *Fulltext) Name() string { return f.name }

// tokenize lowercases and splits on non-letter/non-digit runes, the
// same normalization spec §4.4 uses for both indexing and queries.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func (f *Fulltext) text(doc value.Value) (string, bool) {
	v, ok := doc.Field(f.field)
	if !ok || v.Kind() != value.KindString {
		return "", false
	}
	return v.AsString(), true
}

func (f *Fulltext) CheckInsert(key string, doc value.Value) error { return nil }

func (f *Fulltext) OnInsert(key string, doc value.Value) error {
	metrics.IndexOpsTotal.WithLabelValues("fulltext", "insert").Inc()
	return f.index(key, doc)
}

func (f *Fulltext) index(key string, doc value.Value) error {
	text, ok := f.text(doc)
	if !ok {
		return nil
	}
	tokens := tokenize(text)
	freqs := map[string]int{}
	for _, tok := range tokens {
		freqs[tok]++
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for term, count := range freqs {
		list := f.postings[term]
		idx := sort.Search(len(list), func(i int) bool { return list[i].docKey >= key })
		if idx < len(list) && list[idx].docKey == key {
			list[idx].freq = count
		} else {
			list = append(list, posting{})
			copy(list[idx+1:], list[idx:])
			list[idx] = posting{docKey: key, freq: count}
		}
		f.postings[term] = list
	}
	f.docLength[key] = len(tokens)
	f.totalLen += int64(len(tokens))
	f.docCount++
	return nil
}

func (f *Fulltext) OnUpdate(key string, old, updated value.Value) error {
	metrics.IndexOpsTotal.WithLabelValues("fulltext", "update").Inc()
	if err := f.remove(key); err != nil {
		return err
	}
	return f.index(key, updated)
}

func (f *Fulltext) OnDelete(key string, old value.Value) error {
	metrics.IndexOpsTotal.WithLabelValues("fulltext", "delete").Inc()
	return f.remove(key)
}

func (f *Fulltext) remove(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if dl, ok := f.docLength[key]; ok {
		f.totalLen -= int64(dl)
		f.docCount--
		delete(f.docLength, key)
	}
	for term, list := range f.postings {
		for i, p := range list {
			if p.docKey == key {
				f.postings[term] = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(f.postings[term]) == 0 {
			delete(f.postings, term)
		}
	}
	return nil
}

// Match is one ranked full-text search hit.
type Match struct {
	DocKey string
	Score  float64
}

// Search ranks documents matching any query term with BM25, returning
// the top `limit` matches (limit <= 0 means unbounded).
func (f *Fulltext) Search(query string, limit int) []Match {
	terms := tokenize(query)
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.docCount == 0 || len(terms) == 0 {
		return nil
	}
	avgLen := float64(f.totalLen) / float64(f.docCount)
	scores := map[string]float64{}

	for _, term := range terms {
		list := f.postings[term]
		if len(list) == 0 {
			continue
		}
		idf := math.Log(1 + (float64(f.docCount)-float64(len(list))+0.5)/(float64(len(list))+0.5))
		for _, p := range list {
			dl := float64(f.docLength[p.docKey])
			tf := float64(p.freq)
			denom := tf + bm25K1*(1-bm25B+bm25B*dl/avgLen)
			scores[p.docKey] += idf * (tf * (bm25K1 + 1) / denom)
		}
	}

	matches := make([]Match, 0, len(scores))
	for k, s := range scores {
		matches = append(matches, Match{DocKey: k, Score: s})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].DocKey < matches[j].DocKey
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}
