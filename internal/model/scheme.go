package model

import (
	"strings"
	"time"
	"unicode"
)

// Scheme represents an investable instrument: a mutual-fund scheme or a listed equity.
type Scheme struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	FundID    string    `json:"fundId,omitempty"`
	Ticker    string    `json:"ticker,omitempty"`
	Category  string    `json:"category,omitempty"`
	ISIN      string    `json:"isin,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// IdentityKey returns the key that identifies a scheme independent of its row ID.
// Schemes with a registry fund ID are identified by it; others by normalized name and ticker.
func (s Scheme) IdentityKey() string {
	return SchemeIdentityKey(s.FundID, s.Name, s.Ticker)
}

// SchemeIdentityKey builds the identity key from its parts.
func SchemeIdentityKey(fundID, name, ticker string) string {
	if fundID = strings.TrimSpace(fundID); fundID != "" {
		return "fund:" + fundID
	}
	return "name:" + NormalizeName(name) + "|" + NormalizeTicker(ticker)
}

// NormalizeTicker trims and upper-cases a ticker, the form quotes are keyed by.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// NormalizeName lowercases a display name and collapses everything that is not
// a letter or digit into single spaces.
func NormalizeName(name string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteRune(r)
			space = false
			continue
		}
		space = true
	}
	return b.String()
}
