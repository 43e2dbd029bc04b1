// Package valuation computes expected yield and early-redemption values for
// fixed-income assets under compound interest.
//
// All functions are pure: they read the asset and the injected rate source and
// never touch storage. Amounts stay unrounded until the redemption result is
// quantized to currency scale.
package valuation

import (
	"time"

	"github.com/shopspring/decimal"

	"ativosaber/internal/models"
)

const (
	periodScale   = 6
	currencyScale = 2
	powPrecision  = 16
	secondsPerDay = 24 * 60 * 60
)

var (
	one         = decimal.NewFromInt(1)
	hundred     = decimal.NewFromInt(100)
	daysPerYear = decimal.RequireFromString("365.25")
)

// Reason explains why a redemption could not be simulated.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonNotDailyLiquidity Reason = "not_daily_liquidity"
	ReasonBeforeIssue       Reason = "before_issue"
	ReasonUnsupportedTerms  Reason = "unsupported_terms"
)

// Message is a human-readable explanation of the reason.
func (r Reason) Message() string {
	switch r {
	case ReasonNotDailyLiquidity:
		return "Asset can only be redeemed at maturity."
	case ReasonBeforeIssue:
		return "Redemption date is before the issue date."
	case ReasonUnsupportedTerms:
		return "Asset interest terms are incomplete."
	}
	return ""
}

// Redemption is the pre-tax value of an asset redeemed on AsOf.
type Redemption struct {
	AccruedValue decimal.Decimal `json:"accrued_value"`
	ElapsedDays  int             `json:"elapsed_days"`
	YieldAmount  decimal.Decimal `json:"yield_amount"`
	AsOf         time.Time       `json:"as_of"`
}

// Engine evaluates assets against a rate source.
type Engine struct {
	rates RateSource
}

// NewEngine creates an Engine reading index rates from src.
func NewEngine(src RateSource) *Engine {
	return &Engine{rates: src}
}

// civilDate drops the clock and zone, keeping the calendar date as seen in t's location.
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ElapsedDays counts whole calendar days from start to end.
func ElapsedDays(start, end time.Time) int {
	return int((civilDate(end).Unix() - civilDate(start).Unix()) / secondsPerDay)
}

// PeriodInYears converts the days between start and end into years on a
// fixed 365.25-day year, rounded to 6 decimal places.
func PeriodInYears(start, end time.Time) decimal.Decimal {
	return yearsFromDays(ElapsedDays(start, end))
}

func yearsFromDays(days int) decimal.Decimal {
	return decimal.NewFromInt(int64(days)).DivRound(daysPerYear, periodScale)
}

// Accrue grows principal at an annual rate for period years:
// principal * (1 + rate) ^ period. It reports false when the power is undefined.
func Accrue(principal, rate, period decimal.Decimal) (decimal.Decimal, bool) {
	factor, err := one.Add(rate).PowWithPrecision(period, powPrecision)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return principal.Mul(factor), true
}

// EffectiveRate resolves the asset's annual rate, or false when its regime
// fields are incomplete.
func (e *Engine) EffectiveRate(a *models.Asset) (decimal.Decimal, bool) {
	terms, ok := TermsOf(a)
	if !ok {
		return decimal.Decimal{}, false
	}
	return terms.EffectiveRate(e.rates), true
}

// GrossYield projects the invested amount from issue to maturity, before tax.
func (e *Engine) GrossYield(a *models.Asset) (decimal.Decimal, bool) {
	rate, ok := e.EffectiveRate(a)
	if !ok {
		return decimal.Decimal{}, false
	}
	return Accrue(a.Invested(), rate, PeriodInYears(a.IssueDate, a.MaturityDate))
}

// ExpectedYield is GrossYield net of the flat tax rate when the asset is taxable.
func (e *Engine) ExpectedYield(a *models.Asset) (decimal.Decimal, bool) {
	gross, ok := e.GrossYield(a)
	if !ok {
		return decimal.Decimal{}, false
	}
	if a.Taxable && a.TaxRate.Valid {
		tax := gross.Mul(a.TaxRate.Decimal.Div(hundred))
		return gross.Sub(tax), true
	}
	return gross, true
}

// Redeem simulates an early redemption on asOf. Redemption is pre-tax and
// capped at maturity. The checks run in order and the first failing one wins.
func (e *Engine) Redeem(a *models.Asset, asOf time.Time) (*Redemption, Reason) {
	if a.Liquidity != models.LiquidityDaily {
		return nil, ReasonNotDailyLiquidity
	}

	day := civilDate(asOf)
	issue := civilDate(a.IssueDate)
	if day.Before(issue) {
		return nil, ReasonBeforeIssue
	}
	if maturity := civilDate(a.MaturityDate); day.After(maturity) {
		day = maturity
	}

	rate, ok := e.EffectiveRate(a)
	if !ok {
		return nil, ReasonUnsupportedTerms
	}

	days := ElapsedDays(issue, day)
	principal := a.Invested()
	accrued, ok := Accrue(principal, rate, yearsFromDays(days))
	if !ok {
		return nil, ReasonUnsupportedTerms
	}
	accrued = accrued.RoundBank(currencyScale)

	return &Redemption{
		AccruedValue: accrued,
		ElapsedDays:  days,
		YieldAmount:  accrued.Sub(principal).RoundBank(currencyScale),
		AsOf:         day,
	}, ReasonNone
}
