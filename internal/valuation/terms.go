package valuation

import (
	"github.com/shopspring/decimal"

	"ativosaber/internal/models"
	"ativosaber/internal/rates"
)

// RateSource resolves an index code to its annual rate as a fraction.
type RateSource interface {
	RateFor(code rates.Index) decimal.Decimal
}

// Terms is the resolved interest configuration of an asset. There is one
// implementation per interest regime; yield and redemption both go through it.
type Terms interface {
	// EffectiveRate returns the annual growth rate as a fraction (0.143 == 14.3%).
	EffectiveRate(src RateSource) decimal.Decimal
	Regime() models.InterestRegime
}

// FixedTerms pays a fixed annual percentage.
type FixedTerms struct {
	Rate decimal.Decimal
}

func (f FixedTerms) EffectiveRate(RateSource) decimal.Decimal {
	return f.Rate.Div(hundred)
}

func (FixedTerms) Regime() models.InterestRegime { return models.InterestRegimeFixed }

// FloatingTerms pays Multiplier percent of an index.
type FloatingTerms struct {
	Index      rates.Index
	Multiplier decimal.Decimal
}

func (f FloatingTerms) EffectiveRate(src RateSource) decimal.Decimal {
	return f.Multiplier.Div(hundred).Mul(src.RateFor(f.Index))
}

func (FloatingTerms) Regime() models.InterestRegime { return models.InterestRegimeFloating }

// HybridTerms adds a fixed spread on top of an indexed component.
type HybridTerms struct {
	Fixed    FixedTerms
	Floating FloatingTerms
}

func (h HybridTerms) EffectiveRate(src RateSource) decimal.Decimal {
	return h.Fixed.EffectiveRate(src).Add(h.Floating.EffectiveRate(src))
}

func (HybridTerms) Regime() models.InterestRegime { return models.InterestRegimeHybrid }

// TermsOf builds the regime variant for an asset. It re-checks the fields the
// regime needs and returns false when any is missing or the regime is unknown,
// so it is safe on records that never went through validation.
func TermsOf(a *models.Asset) (Terms, bool) {
	switch a.Regime {
	case models.InterestRegimeFixed:
		if !a.FixedRate.Valid {
			return nil, false
		}
		return FixedTerms{Rate: a.FixedRate.Decimal}, true
	case models.InterestRegimeFloating:
		floating, ok := floatingTermsOf(a)
		if !ok {
			return nil, false
		}
		return floating, true
	case models.InterestRegimeHybrid:
		floating, ok := floatingTermsOf(a)
		if !ok || !a.FixedRate.Valid {
			return nil, false
		}
		return HybridTerms{Fixed: FixedTerms{Rate: a.FixedRate.Decimal}, Floating: floating}, true
	}
	return nil, false
}

func floatingTermsOf(a *models.Asset) (FloatingTerms, bool) {
	if !a.HasIndex() || !a.IndexMultiplier.Valid {
		return FloatingTerms{}, false
	}
	return FloatingTerms{Index: *a.IndexCode, Multiplier: a.IndexMultiplier.Decimal}, true
}
