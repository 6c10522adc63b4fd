package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Evgen-rus/Tg-mtproto/internal/models"
)

// foundersStop marks the line that follows the founders block in the bot template.
const foundersStop = "👁"

var (
	reFoundersHeading = regexp.MustCompile(`\*\*📝 Учредители:\*\*\s*\n`)
	// Example: "Смагина Ирина Робертовна, ИНН 780419031060, доля 100%".
	reFounderLine = regexp.MustCompile(`(?i)^(.+?),\s*ИНН\s*(\d{12}|\d{10})(?:,\s*доля\s*(\d+)%?)?$`)
)

func matchFounders(text string, f *models.Fields) {
	f.Founders = ParseFounders(text)
}

// ParseFounders returns the founders listed under the founders heading, or nil when
// the heading is missing. The block ends at the first blank line or at a line starting
// with the eye glyph. Lines that do not parse are kept as raw-only entries.
func ParseFounders(text string) []models.Founder {
	loc := reFoundersHeading.FindStringIndex(text)
	if loc == nil {
		return nil
	}
	founders := make([]models.Founder, 0)
	for _, line := range strings.Split(text[loc[1]:], "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, foundersStop) {
			break
		}
		founders = append(founders, parseFounderLine(line))
	}
	return founders
}

func parseFounderLine(line string) models.Founder {
	m := reFounderLine.FindStringSubmatch(line)
	if m == nil {
		return models.Founder{RawLine: line}
	}
	name := strings.TrimSpace(m[1])
	inn := m[2]
	founder := models.Founder{Name: &name, INN: &inn, RawLine: line}
	if m[3] != "" {
		if share, err := strconv.Atoi(m[3]); err == nil {
			founder.SharePercent = &share
		}
	}
	return founder
}
