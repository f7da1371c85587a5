package mfapi

import "github.com/ndewijer/portfolio-sync/internal/model"

// Response represents the raw JSON response of the NAV history source.
// Data is ordered newest first and every NAV is a decimal string.
type Response struct {
	Meta   Meta        `json:"meta"`
	Data   []DataPoint `json:"data"`
	Status string      `json:"status"`
}

// Meta describes the fund a history belongs to.
type Meta struct {
	FundHouse      string `json:"fund_house"`
	SchemeType     string `json:"scheme_type"`
	SchemeCategory string `json:"scheme_category"`
	SchemeName     string `json:"scheme_name"`
}

// DataPoint is one raw history entry, date formatted DD-MM-YYYY.
type DataPoint struct {
	Date string `json:"date"`
	Nav  string `json:"nav"`
}

// History is a parsed NAV history for one fund.
// Points are sorted newest first; entries that could not be parsed are dropped.
type History struct {
	FundID     string           `json:"fundId"`
	SchemeName string           `json:"schemeName"`
	Category   string           `json:"category"`
	Points     []model.NavPoint `json:"points"`
}
