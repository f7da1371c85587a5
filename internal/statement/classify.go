package statement

import (
	"regexp"
	"strings"

	"github.com/ndewijer/portfolio-sync/internal/model"
)

var (
	switchInPattern  = regexp.MustCompile(`\bswitch[\s-]?in\b`)
	switchOutPattern = regexp.MustCompile(`\bswitch[\s-]?out\b`)
	feePattern       = regexp.MustCompile(`(?i)stamp\s*duty|\bstt\b`)
)

// Classify maps a free-text transaction description to a transaction kind.
// Keywords are checked in a fixed order; the first group that matches wins.
// Outflows are checked before inflows because "repurchase" contains "purchase".
func Classify(description string) model.TransactionKind {
	d := strings.ToLower(description)

	switch {
	case containsAny(d, "redemption", "repurchase", "swp"):
		return model.KindRedemption
	case containsAny(d, "purchase", "sip", "investment"):
		return model.KindPurchase
	case switchInPattern.MatchString(d):
		return model.KindSwitchIn
	case switchOutPattern.MatchString(d):
		return model.KindSwitchOut
	case containsAny(d, "dividend", "idcw"):
		return model.KindDividend
	default:
		return model.KindUnknown
	}
}

// IsFeeLine reports whether a line is a statutory charge (stamp duty or STT)
// that must never be emitted as a transaction.
func IsFeeLine(line string) bool {
	return feePattern.MatchString(line)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
