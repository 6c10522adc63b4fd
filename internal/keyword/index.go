// Package keyword provides full-text search over stored registry results.
package keyword

import (
	"context"
	"strconv"
	"strings"

	"github.com/Evgen-rus/Tg-mtproto/internal/models"
)

// Indexed field names.
const (
	FieldINN  = "inn"
	FieldName = "name"
	FieldBody = "body"
)

// SearchOptions optional parameters for keyword search. Nil means use defaults.
type SearchOptions struct {
	// NameBoost multiplies the score contribution from company name matches.
	// Values > 1 make name matches rank above matches in address, director or founders.
	NameBoost float64
	// FuzzyEnabled enables fuzzy matching for typo tolerance.
	FuzzyEnabled bool
	// Fuzziness is the maximum edit distance for fuzzy matching (1 or 2). Default 1.
	Fuzziness int
}

// ResultIndex defines search operations over results, keyed by INN.
type ResultIndex interface {
	Index(ctx context.Context, r *models.Result) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*Hit, error)
	Delete(ctx context.Context, inn string) error
	DocCount() (uint64, error)
	Close() error
}

// Hit is a single search hit.
type Hit struct {
	INN   string  `json:"inn"`
	Score float64 `json:"score"`
}

// document flattens a result into the indexed fields. Everything searchable that is not
// the company name goes to the body: OKVED, status, director, address, founders.
func document(r *models.Result) map[string]interface{} {
	var body []string
	add := func(s *string) {
		if s != nil && *s != "" {
			body = append(body, *s)
		}
	}
	add(r.OKVED)
	add(r.CompanyStatus)
	add(r.DirectorName)
	add(r.DirectorINN)
	add(r.OGRN)
	add(r.Address)
	for _, f := range r.Founders {
		if !f.Structured() {
			body = append(body, f.RawLine)
			continue
		}
		body = append(body, *f.Name, *f.INN)
		if f.SharePercent != nil {
			body = append(body, strconv.Itoa(*f.SharePercent)+"%")
		}
	}

	doc := map[string]interface{}{
		FieldINN:  r.INN,
		FieldBody: strings.Join(body, "\n"),
	}
	if r.CompanyName != nil {
		doc[FieldName] = *r.CompanyName
	}
	return doc
}
