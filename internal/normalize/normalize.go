// Package normalize validates extracted reply fields before they reach storage.
package normalize

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Evgen-rus/Tg-mtproto/internal/models"
)

// ErrRejected is returned when the reply lacks a mandatory field. Such replies are not stored.
var ErrRejected = errors.New("reply rejected")

// Normalizer turns extractor output into a record for upsert.
type Normalizer struct {
	validate *validator.Validate
}

// NewNormalizer returns a Normalizer with the INN validator registered.
func NewNormalizer() *Normalizer {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("inn", INNValidator)
	return &Normalizer{validate: v}
}

// Normalize checks that the INN and raw text are present and the INN is well formed.
// Every other field is passed through as is; nil stays nil so storage clears values
// the bot no longer reports.
func (n *Normalizer) Normalize(f *models.Fields) (*models.Record, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: no fields", ErrRejected)
	}
	if f.INN == nil || *f.INN == "" {
		return nil, fmt.Errorf("%w: inn not found in reply text", ErrRejected)
	}
	if f.RawText == "" {
		return nil, fmt.Errorf("%w: raw text is required", ErrRejected)
	}
	rec := &models.Record{
		INN:            *f.INN,
		CompanyDetails: f.CompanyDetails,
		RawText:        f.RawText,
	}
	if err := n.validate.Struct(rec); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrRejected, describe(err))
	}
	return rec, nil
}

// INNValidator accepts 10 or 12 ASCII digits.
func INNValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	return IsINN(val)
}

// IsINN reports whether s is 10 or 12 ASCII digits.
func IsINN(s string) bool {
	if len(s) != 10 && len(s) != 12 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %q", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}
