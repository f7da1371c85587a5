package validation

import (
	"fmt"
	"strings"
	"time"

	"github.com/ndewijer/portfolio-sync/internal/api/request"
	"github.com/ndewijer/portfolio-sync/internal/model"
)

var ValidLotKind = map[string]bool{
	string(model.LotOneOff): true, string(model.LotRecurring): true,
}

func ValidateCreateLot(req request.CreateLotRequest) error {
	errors := make(map[string]string)

	if err := ValidateUUID(req.SchemeID); err != nil {
		errors["schemeId"] = "schemeId must be a valid UUID"
	}

	if strings.TrimSpace(req.Kind) == "" {
		errors["kind"] = "kind is required"
	} else if !ValidLotKind[req.Kind] {
		errors["kind"] = fmt.Sprintf("invalid lot kind: %s", req.Kind)
	}

	if req.Amount <= 0 {
		errors["amount"] = "amount must be greater than zero"
	}

	if strings.TrimSpace(req.StartDate) == "" {
		errors["startDate"] = "startDate is required"
	} else if _, err := time.Parse("2006-01-02", req.StartDate); err != nil {
		errors["startDate"] = "startDate must be formatted YYYY-MM-DD"
	}

	// optional
	if req.StepUpPercent != nil {
		if req.Kind != string(model.LotRecurring) {
			errors["stepUpPercent"] = "stepUpPercent only applies to recurring lots"
		} else if *req.StepUpPercent < 0 || *req.StepUpPercent > 100 {
			errors["stepUpPercent"] = "stepUpPercent must be between 0 and 100"
		}
	}
	if req.ManualUnits != nil && *req.ManualUnits < 0 {
		errors["manualUnits"] = "manualUnits cannot be negative"
	}
	if len(req.Folio) > 30 {
		errors["folio"] = "folio must be 30 characters or less"
	}

	if len(errors) > 0 {
		return &Error{Fields: errors}
	}
	return nil
}
