package model

import "time"

// NavPoint is one published net asset value. Series are ordered newest first.
type NavPoint struct {
	Date  time.Time `json:"date"`
	Price float64   `json:"price"`
}

// LiveNav holds the latest and previous published NAV for a fund.
type LiveNav struct {
	FundID      string    `json:"fundId"`
	Nav         float64   `json:"nav"`
	PreviousNav float64   `json:"previousNav"`
	Date        time.Time `json:"date"`
}

// Quote is a live equity price. It expires after the quote cache TTL.
type Quote struct {
	Ticker        string    `json:"ticker"`
	Name          string    `json:"name,omitempty"`
	Price         float64   `json:"price"`
	PreviousClose float64   `json:"previousClose"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"changePercent"`
	FetchedAt     time.Time `json:"fetchedAt"`
}
