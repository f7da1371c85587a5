package model

import "time"

// TransactionKind classifies an extracted statement transaction.
type TransactionKind string

const (
	KindPurchase   TransactionKind = "PURCHASE"
	KindRedemption TransactionKind = "REDEMPTION"
	KindSwitchIn   TransactionKind = "SWITCH_IN"
	KindSwitchOut  TransactionKind = "SWITCH_OUT"
	KindDividend   TransactionKind = "DIVIDEND"
	KindUnknown    TransactionKind = "UNKNOWN"
)

// IsInflow reports whether the kind adds money to a holding.
// Only inflows are turned into lots on import.
func (k TransactionKind) IsInflow() bool {
	switch k {
	case KindPurchase, KindSwitchIn, KindDividend:
		return true
	default:
		return false
	}
}

// ParsedTransaction is a transaction extracted from a statement before it is persisted.
// Amount and Kind are always set. Units and Price are best-effort and zero when
// the source omits them.
type ParsedTransaction struct {
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Amount      float64         `json:"amount"`
	Units       float64         `json:"units"`
	Price       float64         `json:"price"`
	Kind        TransactionKind `json:"kind"`
}

// ParsedScheme groups the transactions of one scheme and folio found in a statement.
type ParsedScheme struct {
	Name         string              `json:"name"`
	Folio        string              `json:"folio"`
	ISIN         string              `json:"isin,omitempty"`
	Transactions []ParsedTransaction `json:"transactions"`
}

// UnknownFolio is used when a statement row carries no folio number.
const UnknownFolio = "UNKNOWN"
