// Package extract turns the registry bot's Markdown reply into structured company fields.
//
// Every field has its own label-anchored matcher. A matcher that finds nothing leaves its
// field nil; there is no error channel for "not found". When the bot template changes for
// one field, only that field's matcher needs to change.
package extract

import (
	"sort"
	"strings"

	"github.com/Evgen-rus/Tg-mtproto/internal/models"
)

// Matcher fills one field of f from text. It must leave f untouched when its label is absent.
// text has CRLF line endings normalized to LF.
type Matcher func(text string, f *models.Fields)

// Field names used as matcher keys.
const (
	FieldINN               = "inn"
	FieldOGRN              = "ogrn"
	FieldCompanyName       = "company_name"
	FieldOKVED             = "okved"
	FieldRegDate           = "reg_date"
	FieldCompanyStatus     = "company_status"
	FieldDirector          = "director"
	FieldEmployeesCount    = "employees_count"
	FieldRevenue2024       = "revenue_2024"
	FieldIncome2024        = "income_2024"
	FieldExpenses2024      = "expenses_2024"
	FieldAuthorizedCapital = "authorized_capital"
	FieldAddress           = "address"
	FieldFounders          = "founders"
)

// Extractor applies a set of independent field matchers to reply text.
type Extractor struct {
	matchers map[string]Matcher
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMatcher replaces (or adds) the matcher for field. A nil m removes the field.
func WithMatcher(field string, m Matcher) Option {
	return func(e *Extractor) {
		if m == nil {
			delete(e.matchers, field)
			return
		}
		e.matchers[field] = m
	}
}

// NewExtractor returns an Extractor with the default matchers for the registry bot template.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{matchers: defaultMatchers()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract parses text and returns the fields it found. It never fails: absent labels
// give nil fields, and a nil INN means the text is not a result reply.
// RawText is always the input as given.
func (e *Extractor) Extract(text string) *models.Fields {
	f := &models.Fields{RawText: text}
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	for _, name := range e.Fields() {
		e.matchers[name](normalized, f)
	}
	return f
}

// Fields returns the names of the configured matchers in sorted order.
func (e *Extractor) Fields() []string {
	names := make([]string, 0, len(e.matchers))
	for name := range e.matchers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func defaultMatchers() map[string]Matcher {
	return map[string]Matcher{
		FieldINN:               matchINN,
		FieldOGRN:              matchOGRN,
		FieldCompanyName:       matchCompanyName,
		FieldOKVED:             matchOKVED,
		FieldRegDate:           matchRegDate,
		FieldCompanyStatus:     matchStatus,
		FieldDirector:          matchDirector,
		FieldEmployeesCount:    matchEmployees,
		FieldRevenue2024:       moneyMatcher("**Выручка:**", func(f *models.Fields, v int64) { f.Revenue2024 = &v }),
		FieldIncome2024:        moneyMatcher("**Доход:**", func(f *models.Fields, v int64) { f.Income2024 = &v }),
		FieldExpenses2024:      moneyMatcher("**Расходы:**", func(f *models.Fields, v int64) { f.Expenses2024 = &v }),
		FieldAuthorizedCapital: moneyMatcher("**Уставный капитал:**", func(f *models.Fields, v int64) { f.AuthorizedCapital = &v }),
		FieldAddress:           matchAddress,
		FieldFounders:          matchFounders,
	}
}
