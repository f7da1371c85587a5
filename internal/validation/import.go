package validation

import (
	"fmt"
	"strings"

	"github.com/ndewijer/portfolio-sync/internal/api/request"
)

func ValidateConfirmImport(req request.ConfirmImportRequest) error {
	errors := make(map[string]string)

	if len(req.Schemes) == 0 {
		errors["schemes"] = "at least one scheme is required"
	}

	for i, s := range req.Schemes {
		key := fmt.Sprintf("schemes[%d]", i)
		if strings.TrimSpace(s.Name) == "" {
			errors[key+".name"] = "name is required"
		}
		if s.FundID != "" && !fundIDPattern.MatchString(s.FundID) {
			errors[key+".fundId"] = "fundId must be a numeric registry code"
		}
		for j, tx := range s.Transactions {
			if tx.Date.IsZero() {
				errors[fmt.Sprintf("%s.transactions[%d].date", key, j)] = "date is required"
			}
			if tx.Amount <= 0 {
				errors[fmt.Sprintf("%s.transactions[%d].amount", key, j)] = "amount must be greater than zero"
			}
		}
	}

	if len(errors) > 0 {
		return &Error{Fields: errors}
	}
	return nil
}
