package keyword

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/Evgen-rus/Tg-mtproto/internal/models"
)

// BleveIndex implements ResultIndex using Bleve.
type BleveIndex struct {
	index bleve.Index
}

func newMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer: unicode tokenizer + lowercase, no stemming. Company names are
	// proper nouns, so stemming would only merge unrelated names.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt(FieldName, textFieldMapping)
	docMapping.AddFieldMappingsAt(FieldBody, textFieldMapping)
	docMapping.AddFieldMappingsAt(FieldINN, bleve.NewKeywordFieldMapping())
	im.AddDocumentMapping("result", docMapping)
	im.DefaultType = "result"
	im.DefaultMapping = docMapping
	return im
}

// NewBleveIndex creates or opens a Bleve index at path. An empty path gives an in-memory
// index, which is what tests and one-shot CLI runs use.
// If you change the mapping, run "innrelay search --reindex" to rebuild it from the database.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := newMapping()

	if path == "" {
		index, err := bleve.NewMemOnly(im)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory Bleve index: %w", err)
		}
		return &BleveIndex{index: index}, nil
	}

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// Index adds or replaces the document for r.INN.
func (b *BleveIndex) Index(ctx context.Context, r *models.Result) error {
	return b.index.Index(r.INN, document(r))
}

// Search returns up to limit results for query.
// A query that is itself an INN matches that document exactly. Otherwise, when
// opts.NameBoost > 1 the name and body fields are searched separately and merged
// additively with a term coverage penalty; without a boost a single match query runs
// over all fields.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*Hit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}
	nameBoost := 1.0
	fuzzy := false
	fuzziness := 1
	if opts != nil {
		if opts.NameBoost > 0 {
			nameBoost = opts.NameBoost
		}
		fuzzy = opts.FuzzyEnabled
		if opts.Fuzziness > 0 {
			fuzziness = opts.Fuzziness
		}
	}

	if isDigits(query) {
		tq := bleve.NewTermQuery(query)
		tq.SetField(FieldINN)
		mq := bleve.NewMatchQuery(query)
		mq.SetField(FieldBody)
		return b.run(bleve.NewDisjunctionQuery(tq, mq), limit)
	}

	if nameBoost <= 1.0 {
		return b.run(buildQuery(query, fuzzy, fuzziness, ""), limit)
	}
	return b.searchWithBoost(query, limit, nameBoost, fuzzy, fuzziness)
}

func (b *BleveIndex) run(q blevequery.Query, limit int) ([]*Hit, error) {
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	results, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*Hit, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &Hit{INN: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// searchWithBoost scores = (nameScore * nameBoost + bodyScore) * coverage^2, where
// coverage is the share of query terms the document matched.
func (b *BleveIndex) searchWithBoost(query string, limit int, nameBoost float64, fuzzy bool, fuzziness int) ([]*Hit, error) {
	reqSize := limit * 2
	if reqSize < 50 {
		reqSize = 50
	}
	terms := tokenizeQuery(query)

	nameHits, err := b.run(buildQuery(query, fuzzy, fuzziness, FieldName), reqSize)
	if err != nil {
		return nil, err
	}
	bodyHits, err := b.run(buildQuery(query, fuzzy, fuzziness, FieldBody), reqSize)
	if err != nil {
		return nil, err
	}

	scores := make(map[string]float64)
	for _, h := range nameHits {
		scores[h.INN] += h.Score * nameBoost
	}
	for _, h := range bodyHits {
		scores[h.INN] += h.Score
	}

	if len(terms) > 1 {
		coverage := make(map[string]int)
		for _, term := range terms {
			hits, err := b.run(buildQuery(term, fuzzy, fuzziness, ""), reqSize)
			if err != nil {
				continue
			}
			for _, h := range hits {
				coverage[h.INN]++
			}
		}
		for inn := range scores {
			matched := coverage[inn]
			if matched == 0 {
				matched = 1
			}
			c := float64(matched) / float64(len(terms))
			scores[inn] *= c * c
		}
	}

	out := make([]*Hit, 0, len(scores))
	for inn, score := range scores {
		out = append(out, &Hit{INN: inn, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].INN < out[j].INN
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// buildQuery returns a match query, or a disjunction of per-term fuzzy queries when fuzzy
// is set. An empty field searches all fields.
func buildQuery(query string, fuzzy bool, fuzziness int, field string) blevequery.Query {
	terms := tokenizeQuery(query)
	if !fuzzy || len(terms) == 0 {
		mq := bleve.NewMatchQuery(query)
		if field != "" {
			mq.SetField(field)
		}
		return mq
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		if field != "" {
			fq.SetField(field)
		}
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// tokenizeQuery splits query into lowercase terms, dropping punctuation around words.
func tokenizeQuery(query string) []string {
	words := strings.Fields(strings.ToLower(query))
	terms := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.Trim(w, `"'«».,;:()`)
		if w != "" {
			terms = append(terms, w)
		}
	}
	return terms
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Delete removes the document for inn.
func (b *BleveIndex) Delete(ctx context.Context, inn string) error {
	return b.index.Delete(inn)
}

// DocCount returns the total number of documents in the index.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
