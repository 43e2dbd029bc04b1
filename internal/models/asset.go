package models

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"ativosaber/internal/rates"
)

// AssetClass is the family of fixed-income instrument.
type AssetClass string

const (
	AssetClassBankFixedIncome AssetClass = "bank_fixed_income" // CDB, LCI, LCA
	AssetClassPublicBond      AssetClass = "public_bond"       // government bonds
	AssetClassDebentureCredit AssetClass = "debenture_credit"  // debentures, CRI, CRA
)

// TradingVenue is where the asset is negotiated.
type TradingVenue string

const (
	TradingVenueExchange TradingVenue = "exchange"
	TradingVenueOTC      TradingVenue = "otc"
)

// InterestRegime selects which rate fields an asset must carry.
type InterestRegime string

const (
	InterestRegimeFixed    InterestRegime = "fixed"
	InterestRegimeFloating InterestRegime = "floating"
	InterestRegimeHybrid   InterestRegime = "hybrid"
)

// Liquidity controls whether the asset can be redeemed before maturity.
type Liquidity string

const (
	LiquidityDaily      Liquidity = "daily"
	LiquidityAtMaturity Liquidity = "at_maturity"
)

var (
	hundred = decimal.NewFromInt(100)

	validClasses = map[AssetClass]bool{
		AssetClassBankFixedIncome: true,
		AssetClassPublicBond:      true,
		AssetClassDebentureCredit: true,
	}
	validVenues    = map[TradingVenue]bool{TradingVenueExchange: true, TradingVenueOTC: true}
	validLiquidity = map[Liquidity]bool{LiquidityDaily: true, LiquidityAtMaturity: true}
)

// Asset is a fixed-income instrument held by one user.
//
// Rates are annual percentages: FixedRate 10.5 means 10.5% a.a. and
// IndexMultiplier 110 means 110% of the referenced index.
type Asset struct {
	Base
	UserID          string              `gorm:"type:uuid;not null;index" json:"user_id"`
	Name            string              `gorm:"size:150;not null" json:"name"`
	Class           AssetClass          `gorm:"column:asset_class;size:50;not null" json:"asset_class"`
	Issuer          *string             `gorm:"size:150" json:"issuer"`
	Venue           TradingVenue        `gorm:"column:trading_venue;size:20;not null;default:exchange" json:"trading_venue"`
	UnitPrice       decimal.Decimal     `gorm:"type:decimal(15,2);not null" json:"unit_price"`
	Quantity        int                 `gorm:"not null" json:"quantity"`
	Regime          InterestRegime      `gorm:"column:interest_regime;size:50;not null" json:"interest_regime"`
	FixedRate       decimal.NullDecimal `gorm:"type:decimal(5,2)" json:"fixed_rate"`
	IndexCode       *rates.Index        `gorm:"size:10" json:"index_code"`
	IndexMultiplier decimal.NullDecimal `gorm:"type:decimal(5,2)" json:"index_multiplier"`
	IssueDate       time.Time           `gorm:"type:date;not null" json:"issue_date"`
	MaturityDate    time.Time           `gorm:"type:date;not null" json:"maturity_date"`
	Liquidity       Liquidity           `gorm:"size:50;not null" json:"liquidity"`
	Taxable         bool                `gorm:"not null;default:false" json:"taxable"`
	TaxRate         decimal.NullDecimal `gorm:"type:decimal(5,2)" json:"tax_rate"`

	// Populated at query time by the asset service.
	InvestedAmount decimal.Decimal     `gorm:"-" json:"invested_amount"`
	ExpectedYield  decimal.NullDecimal `gorm:"-" json:"expected_yield"`
}

// HasIndex reports whether an index reference is set. An empty code counts as unset.
func (a *Asset) HasIndex() bool {
	return a.IndexCode != nil && *a.IndexCode != ""
}

// Invested returns unit price times quantity.
func (a *Asset) Invested() decimal.Decimal {
	return a.UnitPrice.Mul(decimal.NewFromInt(int64(a.Quantity)))
}

// Validate checks every field rule and reports all violations at once.
// It has no side effects and must run before the asset is persisted.
func (a *Asset) Validate() error {
	errs := FieldErrors{}

	if a.Name == "" {
		errs.Add("name", "Name is required.")
	}
	if !validClasses[a.Class] {
		errs.Add("asset_class", "Unsupported asset class.")
	}
	if !validVenues[a.Venue] {
		errs.Add("trading_venue", "Unsupported trading venue.")
	}
	if !validLiquidity[a.Liquidity] {
		errs.Add("liquidity", "Unsupported liquidity.")
	}
	if a.Quantity <= 0 {
		errs.Add("quantity", "Quantity must be greater than zero.")
	} else if a.Quantity > math.MaxInt32 {
		errs.Add("quantity", "Quantity is too large.")
	}

	if !calendarDate(a.MaturityDate).After(calendarDate(a.IssueDate)) {
		errs.Add("maturity_date", "Maturity date must be after the issue date.")
	}

	if !a.UnitPrice.IsPositive() {
		errs.Add("unit_price", "Unit price must be greater than zero.")
	} else if !fitsColumn(a.UnitPrice, priceDigits) {
		errs.Add("unit_price", "Unit price must have at most 13 integer digits and 2 decimal places.")
	}

	checkRate(errs, "fixed_rate", a.FixedRate)
	checkRate(errs, "index_multiplier", a.IndexMultiplier)
	checkRate(errs, "tax_rate", a.TaxRate)

	a.validateRegime(errs)
	a.validateTax(errs)

	return errs.OrNil()
}

// Column sizes: unit_price is decimal(15,2), the rate fields decimal(5,2).
const (
	amountScale = 2
	priceDigits = 15
	rateDigits  = 5
)

// fitsColumn reports whether d is storable in a decimal(digits, 2) column.
func fitsColumn(d decimal.Decimal, digits int32) bool {
	limit := decimal.New(1, digits-amountScale)
	return d.Equal(d.Round(amountScale)) && d.Abs().LessThan(limit)
}

func checkRate(errs FieldErrors, field string, rate decimal.NullDecimal) {
	if rate.Valid && !fitsColumn(rate.Decimal, rateDigits) {
		errs.Add(field, "Value must be below 1000 with at most 2 decimal places.")
	}
}

// calendarDate keeps the calendar day of t, dropping clock and zone.
func calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (a *Asset) validateRegime(errs FieldErrors) {
	switch a.Regime {
	case InterestRegimeFixed:
		if !a.FixedRate.Valid {
			errs.Add("fixed_rate", "Fixed rate is required for fixed-rate assets.")
		}
		if a.HasIndex() || a.IndexMultiplier.Valid {
			errs.Add("index_code", "Fixed-rate assets must not have an index or index multiplier.")
		}
	case InterestRegimeFloating:
		if !a.HasIndex() {
			errs.Add("index_code", "Index is required for floating-rate assets.")
		}
		if !a.IndexMultiplier.Valid {
			errs.Add("index_multiplier", "Index multiplier is required for floating-rate assets.")
		}
		if a.FixedRate.Valid {
			errs.Add("fixed_rate", "Floating-rate assets must not have a fixed rate.")
		}
	case InterestRegimeHybrid:
		if !a.FixedRate.Valid {
			errs.Add("fixed_rate", "Fixed rate is required for hybrid assets.")
		}
		if !a.HasIndex() {
			errs.Add("index_code", "Index is required for hybrid assets.")
		}
		if !a.IndexMultiplier.Valid {
			errs.Add("index_multiplier", "Index multiplier is required for hybrid assets.")
		}
	default:
		errs.Add("interest_regime", "Unsupported interest regime.")
	}
}

func (a *Asset) validateTax(errs FieldErrors) {
	if !a.Taxable {
		if a.TaxRate.Valid {
			errs.Add("tax_rate", "Tax rate must be empty when the asset is not taxable.")
		}
		return
	}
	if !a.TaxRate.Valid {
		errs.Add("tax_rate", "Tax rate is required for taxable assets.")
		return
	}
	if a.TaxRate.Decimal.IsNegative() || a.TaxRate.Decimal.GreaterThan(hundred) {
		errs.Add("tax_rate", "Tax rate must be between 0 and 100.")
	}
}
