package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Evgen-rus/Tg-mtproto/internal/models"
)

var (
	// First line that ends in a bold span, e.g. `🏢 **ООО "ФЕНИКС ПЛЮС"**`.
	reCompanyName = regexp.MustCompile(`(?m)^[^\n]*\*\*([^\n]+?)\*\*[ \t]*$`)
	reOKVED       = regexp.MustCompile(`__\s*([^_]+?)\s*__`)
	// The digit run must not be part of a longer number, so a 12-digit INN is never cut to 10.
	reINN         = regexp.MustCompile(`(?i)(?:^|[^\p{L}])ИНН(?:[^\n]*?[^\d\n])??(\d{12}|\d{10})(?:\D|$)`)
	reOGRN        = regexp.MustCompile(`(?i)(?:^|[^\p{L}])ОГРН(?:[^\n]*?[^\d\n])??(\d{13})(?:\D|$)`)
	reRegDate     = regexp.MustCompile(`Дата регистрации:\**[ \t]*(\d{2}\.\d{2}\.\d{4})`)
	reStatus      = regexp.MustCompile(`\*\*Статус:\*\*[ \t]*([^\n]+)`)
	reDirector    = regexp.MustCompile(`Директор:\**[ \t]*([^(\n]+)\(\s*ИНН\s*(\d{10,12})\s*\)`)
	reEmployees   = regexp.MustCompile(`\*\*Сотрудников:\*\*[ \t]*(\d+)`)
	reAddress     = regexp.MustCompile(`\*\*Адрес:\*\*[ \t]*([^\n]+)`)
	reNonDigit    = regexp.MustCompile(`\D`)
)

func matchCompanyName(text string, f *models.Fields) {
	if v, ok := firstGroup(reCompanyName, text); ok {
		f.CompanyName = &v
	}
}

func matchOKVED(text string, f *models.Fields) {
	if v, ok := firstGroup(reOKVED, text); ok {
		f.OKVED = &v
	}
}

func matchINN(text string, f *models.Fields) {
	if v, ok := firstGroup(reINN, text); ok {
		f.INN = &v
	}
}

func matchOGRN(text string, f *models.Fields) {
	if v, ok := firstGroup(reOGRN, text); ok {
		f.OGRN = &v
	}
}

// matchRegDate keeps only the date from lines like "**Дата регистрации:** 24.01.2013 (4736 дней назад)".
func matchRegDate(text string, f *models.Fields) {
	if v, ok := firstGroup(reRegDate, text); ok {
		f.RegDate = &v
	}
}

func matchStatus(text string, f *models.Fields) {
	if v, ok := firstGroup(reStatus, text); ok {
		f.CompanyStatus = &v
	}
}

func matchDirector(text string, f *models.Fields) {
	m := reDirector.FindStringSubmatch(text)
	if m == nil {
		return
	}
	if name := strings.TrimSpace(m[1]); name != "" {
		f.DirectorName = &name
	}
	inn := m[2]
	f.DirectorINN = &inn
}

func matchEmployees(text string, f *models.Fields) {
	v, ok := firstGroup(reEmployees, text)
	if !ok {
		return
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return
	}
	f.EmployeesCount = &n
}

func matchAddress(text string, f *models.Fields) {
	if v, ok := firstGroup(reAddress, text); ok {
		f.Address = &v
	}
}

// moneyMatcher builds a matcher for "<label> 8 967 000 ₽". Group separators may be
// plain, no-break or narrow no-break spaces.
func moneyMatcher(label string, set func(f *models.Fields, v int64)) Matcher {
	re := regexp.MustCompile(regexp.QuoteMeta(label) + `[ \t]*[:：]?[ \t\x{00A0}\x{202F}]*(\d[\d \t\x{00A0}\x{202F}]*)₽`)
	return func(text string, f *models.Fields) {
		m := re.FindStringSubmatch(text)
		if m == nil {
			return
		}
		if v, ok := MoneyToInt(m[1]); ok {
			set(f, v)
		}
	}
}

// MoneyToInt strips every non-digit from s and parses the rest.
// It reports false when no digits remain or the value overflows int64.
func MoneyToInt(s string) (int64, bool) {
	digits := reNonDigit.ReplaceAllString(s, "")
	if digits == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// firstGroup returns the trimmed first capture group of the leftmost match.
// An all-space capture counts as no match.
func firstGroup(re *regexp.Regexp, text string) (string, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	v := strings.TrimSpace(m[1])
	if v == "" {
		return "", false
	}
	return v, true
}
