package statement

import (
	"regexp"
	"strings"
)

// SchemeNameResolver recovers a scheme's display name for the transaction found at
// lines[index]. Implementations return false when no name can be found so that
// alternative layouts can be tried.
type SchemeNameResolver interface {
	ResolveName(lines []string, index int) (string, bool)
}

// LookbackResolver scans backwards from a transaction line for a line that looks
// like a scheme heading. It matches the registrar layout where the scheme name is
// printed a few lines above the transaction table.
type LookbackResolver struct {
	// MaxLines bounds how far back the scan goes.
	MaxLines int
	// Keywords are the words a heading must contain, one of them is enough.
	Keywords []string
	// MinLength excludes short labels such as column headers.
	MinLength int
}

// NewLookbackResolver returns a LookbackResolver with the registrar defaults.
func NewLookbackResolver() LookbackResolver {
	return LookbackResolver{
		MaxLines:  10,
		Keywords:  []string{"Fund", "Plan", "Equity"},
		MinLength: 10,
	}
}

var leadingDatePattern = regexp.MustCompile(`^\d{2}-`)

// ResolveName implements SchemeNameResolver.
func (r LookbackResolver) ResolveName(lines []string, index int) (string, bool) {
	for i := 1; i <= r.MaxLines; i++ {
		if index-i < 0 {
			break
		}
		line := strings.TrimSpace(lines[index-i])

		if line == "" || leadingDatePattern.MatchString(line) {
			continue
		}
		if folioPattern.MatchString(line) || strings.Contains(line, "Folio No") {
			continue
		}
		if strings.Contains(line, "Date") && strings.Contains(line, "Transaction") {
			continue
		}

		if len(line) > r.MinLength && containsAny(line, r.Keywords...) {
			return line, true
		}
	}
	return "", false
}

// ChainResolver tries each resolver in order and returns the first name found.
type ChainResolver []SchemeNameResolver

// ResolveName implements SchemeNameResolver.
func (c ChainResolver) ResolveName(lines []string, index int) (string, bool) {
	for _, r := range c {
		if name, ok := r.ResolveName(lines, index); ok {
			return name, true
		}
	}
	return "", false
}

var isinPattern = regexp.MustCompile(`(?i)[\s(\-]*ISIN\s*[:\-]?\s*([A-Z]{2}[A-Z0-9]{9}[0-9])\)?`)

// splitISIN removes an "ISIN: XXX" fragment from a scheme heading and returns both parts.
func splitISIN(heading string) (name, isin string) {
	loc := isinPattern.FindStringSubmatchIndex(heading)
	if loc == nil {
		return strings.TrimSpace(heading), ""
	}
	isin = strings.ToUpper(heading[loc[2]:loc[3]])
	name = heading[:loc[0]] + heading[loc[1]:]
	name = strings.Trim(strings.TrimSpace(name), "-( ")
	return strings.TrimSpace(name), isin
}
