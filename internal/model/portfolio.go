package model

// Position is a valued lot in a portfolio snapshot. All monetary values are rounded
// to two decimal places. PriceAvailable is false when the position is valued on cost.
type Position struct {
	LotID           string  `json:"lotId"`
	SchemeID        string  `json:"schemeId"`
	SchemeName      string  `json:"schemeName"`
	Kind            LotKind `json:"kind"`
	Units           float64 `json:"units"`
	InvestedCapital float64 `json:"investedCapital"`
	Price           float64 `json:"price"`
	PreviousPrice   float64 `json:"previousPrice"`
	CurrentValue    float64 `json:"currentValue"`
	DayChange       float64 `json:"dayChange"`
	GainLoss        float64 `json:"gainLoss"`
	PriceAvailable  bool    `json:"priceAvailable"`
}

// PortfolioSnapshot is the valued portfolio as of a point in time.
type PortfolioSnapshot struct {
	Positions      []Position `json:"positions"`
	TotalInvested  float64    `json:"totalInvested"`
	TotalValue     float64    `json:"totalValue"`
	TotalDayChange float64    `json:"totalDayChange"`
	TotalGainLoss  float64    `json:"totalGainLoss"`
	AsOf           string     `json:"asOf"`
}

// ImportResult summarizes a confirmed import.
type ImportResult struct {
	Created int   `json:"created"`
	Skipped int   `json:"skipped"`
	Ignored int   `json:"ignored"`
	Lots    []Lot `json:"lots"`
}
