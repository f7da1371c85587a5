package model

import "time"

// LotKind distinguishes one-off purchases from recurring contribution plans.
type LotKind string

const (
	LotOneOff    LotKind = "ONE_OFF"
	LotRecurring LotKind = "RECURRING"
)

// Lot sources.
const (
	SourceManual = "manual"
	SourceImport = "import"
)

// Lot is a persisted holding event. Units, InvestedCapital and LastSyncedAt are a
// cache of the valuation engine's output and can always be recomputed.
type Lot struct {
	ID              string     `json:"id"`
	SchemeID        string     `json:"schemeId"`
	Kind            LotKind    `json:"kind"`
	Amount          float64    `json:"amount"`
	StartDate       time.Time  `json:"startDate"`
	StepUpPercent   *float64   `json:"stepUpPercent,omitempty"`
	ManualUnits     *float64   `json:"manualUnits,omitempty"`
	Units           float64    `json:"units"`
	InvestedCapital float64    `json:"investedCapital"`
	LastSyncedAt    *time.Time `json:"lastSyncedAt,omitempty"`
	Folio           string     `json:"folio,omitempty"`
	Source          string     `json:"source"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// Pinned reports whether the unit count was set manually and must not be recomputed.
func (l Lot) Pinned() bool {
	return l.ManualUnits != nil
}

// EffectiveUnits returns the pinned unit count when present, otherwise the computed one.
func (l Lot) EffectiveUnits() float64 {
	if l.ManualUnits != nil {
		return *l.ManualUnits
	}
	return l.Units
}

// ValuationResult is derived from a lot and its price series and never persisted on its own.
type ValuationResult struct {
	Units           float64 `json:"units"`
	InvestedCapital float64 `json:"investedCapital"`
}

// SyncStatus is the per-lot outcome of a sync.
type SyncStatus string

const (
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusSkipped SyncStatus = "skipped"
	SyncStatusFailed  SyncStatus = "failed"
)

// SyncOutcome reports what happened to one lot during a sync.
type SyncOutcome struct {
	LotID           string     `json:"lotId"`
	Status          SyncStatus `json:"status"`
	Reason          string     `json:"reason,omitempty"`
	Units           float64    `json:"units"`
	InvestedCapital float64    `json:"investedCapital"`
}
