package request

// CreateSchemeRequest represents the request body for creating a scheme
type CreateSchemeRequest struct {
	Name     string `json:"name"`
	FundID   string `json:"fundId"`
	Ticker   string `json:"ticker"`
	Category string `json:"category"`
	ISIN     string `json:"isin"`
}
