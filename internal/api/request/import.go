package request

import "github.com/ndewijer/portfolio-sync/internal/model"

// ImportScheme is a parsed scheme confirmed by the user, optionally mapped to
// a registry fund ID or a ticker so its lots can be valued.
type ImportScheme struct {
	model.ParsedScheme
	FundID   string `json:"fundId,omitempty"`
	Ticker   string `json:"ticker,omitempty"`
	Category string `json:"category,omitempty"`
}

// ConfirmImportRequest represents the request body for persisting a parsed statement
type ConfirmImportRequest struct {
	Schemes []ImportScheme `json:"schemes"`
}
