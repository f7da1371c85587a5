package request

// CreateLotRequest represents the request body for creating a lot manually.
// StartDate is formatted YYYY-MM-DD.
type CreateLotRequest struct {
	SchemeID      string   `json:"schemeId"`
	Kind          string   `json:"kind"`
	Amount        float64  `json:"amount"`
	StartDate     string   `json:"startDate"`
	StepUpPercent *float64 `json:"stepUpPercent,omitempty"`
	ManualUnits   *float64 `json:"manualUnits,omitempty"`
	Folio         string   `json:"folio,omitempty"`
}
