package valuation

import (
	"errors"
	"fmt"
	"time"

	"github.com/ndewijer/portfolio-sync/internal/apperrors"
	"github.com/ndewijer/portfolio-sync/internal/model"
	"github.com/shopspring/decimal"
)

// Policy decides whether the instalment of the current, possibly incomplete,
// month counts towards a recurring lot.
type Policy string

const (
	// PolicyAnniversary counts a month once its instalment date has been reached.
	PolicyAnniversary Policy = "anniversary"
	// PolicyAlways counts the current month regardless of the day.
	PolicyAlways Policy = "always"
)

// ParsePolicy validates a configured policy name.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyAnniversary, PolicyAlways:
		return Policy(s), nil
	default:
		return "", fmt.Errorf("unknown current month policy %q", s)
	}
}

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// Valuate computes units held and capital invested for a lot as of asOf.
//
// ONE_OFF lots buy once at the NAV resolved for the start date; when no NAV resolves
// the lot is valued on cost with zero units. RECURRING lots invest one instalment
// per month from the start month. Every twelfth instalment after the first raises
// the instalment by the step-up percentage. Months without a resolvable NAV add
// to invested capital but not to units.
//
// Lots with manually pinned units must not be valuated; ErrUnitsPinned is returned.
func Valuate(lot model.Lot, series []model.NavPoint, asOf time.Time, policy Policy) (model.ValuationResult, error) {
	if lot.Pinned() {
		return model.ValuationResult{}, apperrors.ErrUnitsPinned
	}

	switch lot.Kind {
	case model.LotOneOff:
		return valuateOneOff(lot, series)
	case model.LotRecurring:
		return valuateRecurring(lot, series, asOf, policy)
	default:
		return model.ValuationResult{}, fmt.Errorf("%w: %q", apperrors.ErrUnknownLotKind, lot.Kind)
	}
}

func valuateOneOff(lot model.Lot, series []model.NavPoint) (model.ValuationResult, error) {
	amount := decimal.NewFromFloat(lot.Amount)
	units := decimal.Zero

	price, err := Resolve(series, lot.StartDate)
	switch {
	case err == nil && price > 0:
		units = amount.Div(decimal.NewFromFloat(price))
	case err != nil && !errors.Is(err, apperrors.ErrNoHistoryAvailable):
		return model.ValuationResult{}, err
	}

	return result(units, amount), nil
}

func valuateRecurring(lot model.Lot, series []model.NavPoint, asOf time.Time, policy Policy) (model.ValuationResult, error) {
	instalment := decimal.NewFromFloat(lot.Amount)
	invested := decimal.Zero
	units := decimal.Zero

	var stepUp decimal.Decimal
	if lot.StepUpPercent != nil && *lot.StepUpPercent != 0 {
		stepUp = one.Add(decimal.NewFromFloat(*lot.StepUpPercent).Div(hundred))
	}

	for i := 0; ; i++ {
		date := addMonths(lot.StartDate, i)
		if !isDue(date, asOf, policy) {
			break
		}

		if !stepUp.IsZero() && i > 0 && i%12 == 0 {
			instalment = instalment.Mul(stepUp)
		}
		invested = invested.Add(instalment)

		price, err := Resolve(series, date)
		if err != nil {
			if errors.Is(err, apperrors.ErrNoHistoryAvailable) {
				continue
			}
			return model.ValuationResult{}, err
		}
		if price > 0 {
			units = units.Add(instalment.Div(decimal.NewFromFloat(price)))
		}
	}

	return result(units, invested), nil
}

func result(units, invested decimal.Decimal) model.ValuationResult {
	return model.ValuationResult{
		Units:           units.Round(4).InexactFloat64(),
		InvestedCapital: invested.Round(2).InexactFloat64(),
	}
}

// isDue reports whether the instalment scheduled on date has happened by asOf.
func isDue(date, asOf time.Time, policy Policy) bool {
	if policy == PolicyAlways {
		dy, dm, _ := date.Date()
		ay, am, _ := asOf.Date()
		return dy < ay || (dy == ay && dm <= am)
	}
	return !truncateDay(date).After(truncateDay(asOf))
}

// addMonths returns start moved forward by n months. The day is clamped to the
// end of shorter months and always derived from start, so a plan started on the
// 31st runs on the 31st whenever the month has one.
func addMonths(start time.Time, n int) time.Time {
	y, m, d := start.Date()
	total := int(m) - 1 + n
	year := y + total/12
	month := time.Month(total%12 + 1)

	lastDay := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	return time.Date(year, month, min(d, lastDay), 0, 0, 0, 0, time.UTC)
}

// Engine valuates lots as of the current time under a fixed policy.
type Engine struct {
	now    func() time.Time
	policy Policy
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithClock replaces the clock used to decide "now".
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an Engine with the given current month policy.
func NewEngine(policy Policy, opts ...EngineOption) *Engine {
	e := &Engine{
		now:    func() time.Time { return time.Now().UTC() },
		policy: policy,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Valuate computes the lot's valuation as of now.
func (e *Engine) Valuate(lot model.Lot, series []model.NavPoint) (model.ValuationResult, error) {
	return Valuate(lot, series, e.now(), e.policy)
}

// Now returns the engine's current time.
func (e *Engine) Now() time.Time {
	return e.now()
}
