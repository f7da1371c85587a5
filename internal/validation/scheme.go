package validation

import (
	"regexp"
	"strings"

	"github.com/ndewijer/portfolio-sync/internal/api/request"
)

var (
	isinPattern   = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{9}[0-9]$`)
	fundIDPattern = regexp.MustCompile(`^[0-9]{1,10}$`)
)

func ValidateCreateScheme(req request.CreateSchemeRequest) error {
	errors := make(map[string]string)

	// Required field
	if strings.TrimSpace(req.Name) == "" {
		errors["name"] = "name is required"
	} else if len(req.Name) > 200 {
		errors["name"] = "name must be 200 characters or less"
	}

	if strings.TrimSpace(req.FundID) == "" && strings.TrimSpace(req.Ticker) == "" {
		errors["fundId"] = "either fundId or ticker is required"
	}

	// optional
	if req.FundID != "" && !fundIDPattern.MatchString(req.FundID) {
		errors["fundId"] = "fundId must be a numeric registry code"
	}
	if len(req.Ticker) > 20 {
		errors["ticker"] = "ticker must be 20 characters or less"
	}
	if req.ISIN != "" && !isinPattern.MatchString(req.ISIN) {
		errors["isin"] = "isin structure is not correct"
	}
	if len(req.Category) > 100 {
		errors["category"] = "category must be 100 characters or less"
	}

	if len(errors) > 0 {
		return &Error{Fields: errors}
	}
	return nil
}
