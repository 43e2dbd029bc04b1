package valuation

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ativosaber/internal/models"
	"ativosaber/internal/rates"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func nullDec(s string) decimal.NullDecimal { return decimal.NewNullDecimal(dec(s)) }

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func indexPtr(code rates.Index) *rates.Index { return &code }

func assertNear(t *testing.T, want float64, got decimal.Decimal, delta float64) {
	t.Helper()
	f, _ := got.Float64()
	assert.InDelta(t, want, f, delta, "got %s", got)
}

func fixedAsset() *models.Asset {
	return &models.Asset{
		Name:         "CDB Banco X",
		Class:        models.AssetClassBankFixedIncome,
		Venue:        models.TradingVenueExchange,
		UnitPrice:    dec("1000.00"),
		Quantity:     1,
		Regime:       models.InterestRegimeFixed,
		FixedRate:    nullDec("10.00"),
		IssueDate:    day(2024, 1, 1),
		MaturityDate: day(2026, 1, 1),
		Liquidity:    models.LiquidityDaily,
	}
}

func floatingAsset() *models.Asset {
	a := fixedAsset()
	a.Regime = models.InterestRegimeFloating
	a.FixedRate = decimal.NullDecimal{}
	a.IndexCode = indexPtr(rates.IndexCDI)
	a.IndexMultiplier = nullDec("110.00")
	return a
}

func TestElapsedDays(t *testing.T) {
	assert.Equal(t, 731, ElapsedDays(day(2024, 1, 1), day(2026, 1, 1)))
	assert.Equal(t, 0, ElapsedDays(day(2024, 1, 1), day(2024, 1, 1)))
	assert.Equal(t, -1, ElapsedDays(day(2024, 1, 2), day(2024, 1, 1)))
}

func TestElapsedDays_SpansBeyondDurationRange(t *testing.T) {
	assert.Equal(t, 137331, ElapsedDays(day(2024, 1, 1), day(2400, 1, 1)))
	assert.Equal(t, -137331, ElapsedDays(day(2400, 1, 1), day(2024, 1, 1)))
	assert.True(t, PeriodInYears(day(2024, 1, 1), day(2400, 1, 1)).
		GreaterThan(PeriodInYears(day(2024, 1, 1), day(2399, 1, 1))))
}

func TestEngine_Redeem_LongSpan(t *testing.T) {
	a := fixedAsset()
	a.MaturityDate = day(2400, 1, 1)

	got, reason := NewEngine(rates.Default()).Redeem(a, day(2399, 1, 1))
	require.Equal(t, ReasonNone, reason)
	assert.Equal(t, 136966, got.ElapsedDays)
}

func TestPeriodInYears(t *testing.T) {
	assert.Equal(t, "2.001369", PeriodInYears(day(2024, 1, 1), day(2026, 1, 1)).String())
	assert.Equal(t, "1.002053", PeriodInYears(day(2024, 1, 1), day(2025, 1, 1)).String())
	assert.Equal(t, "0.002738", PeriodInYears(day(2024, 1, 1), day(2024, 1, 2)).String())
	assert.True(t, PeriodInYears(day(2024, 1, 1), day(2024, 1, 1)).IsZero())
}

func TestPeriodInYears_MonotonicInMaturity(t *testing.T) {
	issue := day(2024, 3, 15)
	prev := PeriodInYears(issue, issue)
	for i := 1; i <= 3650; i += 7 {
		cur := PeriodInYears(issue, issue.AddDate(0, 0, i))
		require.True(t, cur.GreaterThan(prev), "period must grow: %s then %s", prev, cur)
		prev = cur
	}
}

func TestPeriodInYears_TimeZoneInvariant(t *testing.T) {
	saoPaulo := time.FixedZone("BRT", -3*60*60)
	tokyo := time.FixedZone("JST", 9*60*60)

	utc := PeriodInYears(day(2024, 1, 1), day(2026, 1, 1))
	brt := PeriodInYears(time.Date(2024, 1, 1, 23, 30, 0, 0, saoPaulo), time.Date(2026, 1, 1, 0, 5, 0, 0, saoPaulo))
	jst := PeriodInYears(time.Date(2024, 1, 1, 0, 0, 0, 0, tokyo), time.Date(2026, 1, 1, 18, 0, 0, 0, tokyo))

	assert.True(t, utc.Equal(brt))
	assert.True(t, utc.Equal(jst))
}

func TestTermsOf(t *testing.T) {
	table := rates.Default()

	t.Run("fixed", func(t *testing.T) {
		terms, ok := TermsOf(fixedAsset())
		require.True(t, ok)
		assert.Equal(t, models.InterestRegimeFixed, terms.Regime())
		assert.True(t, terms.EffectiveRate(table).Equal(dec("0.1")))
	})

	t.Run("floating", func(t *testing.T) {
		terms, ok := TermsOf(floatingAsset())
		require.True(t, ok)
		assert.Equal(t, models.InterestRegimeFloating, terms.Regime())
		assert.True(t, terms.EffectiveRate(table).Equal(dec("0.143")), "got %s", terms.EffectiveRate(table))
	})

	t.Run("hybrid", func(t *testing.T) {
		a := fixedAsset()
		a.Regime = models.InterestRegimeHybrid
		a.FixedRate = nullDec("5")
		a.IndexCode = indexPtr(rates.IndexIPCA)
		a.IndexMultiplier = nullDec("100")

		terms, ok := TermsOf(a)
		require.True(t, ok)
		assert.Equal(t, models.InterestRegimeHybrid, terms.Regime())
		assert.True(t, terms.EffectiveRate(table).Equal(dec("0.09")), "got %s", terms.EffectiveRate(table))
	})

	t.Run("missing fields", func(t *testing.T) {
		noRate := fixedAsset()
		noRate.FixedRate = decimal.NullDecimal{}

		noMultiplier := floatingAsset()
		noMultiplier.IndexMultiplier = decimal.NullDecimal{}

		emptyIndex := floatingAsset()
		emptyIndex.IndexCode = indexPtr("")

		hybridNoFixed := floatingAsset()
		hybridNoFixed.Regime = models.InterestRegimeHybrid

		unknownRegime := fixedAsset()
		unknownRegime.Regime = "indexed"

		for _, a := range []*models.Asset{noRate, noMultiplier, emptyIndex, hybridNoFixed, unknownRegime} {
			_, ok := TermsOf(a)
			assert.False(t, ok, "regime %s", a.Regime)
		}
	})
}

func TestEngine_UnknownIndexFallsBackToTenPercent(t *testing.T) {
	a := floatingAsset()
	a.IndexCode = indexPtr("CDX")
	a.IndexMultiplier = nullDec("100")

	rate, ok := NewEngine(rates.Default()).EffectiveRate(a)

	require.True(t, ok)
	assert.True(t, rate.Equal(dec("0.10")), "got %s", rate)
}

func TestEngine_UsesInjectedTable(t *testing.T) {
	table := rates.NewTable(map[rates.Index]decimal.Decimal{rates.IndexCDI: dec("0.10")})

	rate, ok := NewEngine(table).EffectiveRate(floatingAsset())

	require.True(t, ok)
	assert.True(t, rate.Equal(dec("0.11")), "got %s", rate)
}

func TestAccrue(t *testing.T) {
	got, ok := Accrue(dec("1000.00"), dec("0.143"), dec("1"))
	require.True(t, ok)
	assertNear(t, 1143.00, got, 0.000001)

	got, ok = Accrue(dec("1000.00"), dec("0.10"), dec("2"))
	require.True(t, ok)
	assertNear(t, 1210.00, got, 0.000001)

	got, ok = Accrue(dec("1000.00"), dec("0.10"), decimal.Zero)
	require.True(t, ok)
	assert.True(t, got.Equal(dec("1000")))

	_, ok = Accrue(dec("1000.00"), dec("-2"), dec("0.5"))
	assert.False(t, ok, "negative base with fractional exponent is undefined")
}

func TestEngine_ExpectedYield(t *testing.T) {
	engine := NewEngine(rates.Default())

	t.Run("fixed untaxed", func(t *testing.T) {
		got, ok := engine.ExpectedYield(fixedAsset())
		require.True(t, ok)
		assertNear(t, 1210.00, got, 0.5)
	})

	t.Run("fixed taxed at 15 percent", func(t *testing.T) {
		a := fixedAsset()
		a.Taxable = true
		a.TaxRate = nullDec("15.00")

		got, ok := engine.ExpectedYield(a)
		require.True(t, ok)
		assertNear(t, 1028.50, got, 0.5)

		gross, ok := engine.GrossYield(a)
		require.True(t, ok)
		assert.True(t, got.Equal(gross.Mul(dec("0.85"))), "net %s, gross %s", got, gross)
	})

	t.Run("taxable flag without rate is untaxed", func(t *testing.T) {
		a := fixedAsset()
		a.Taxable = true

		got, _ := engine.ExpectedYield(a)
		gross, _ := engine.GrossYield(a)
		assert.True(t, got.Equal(gross))
	})

	t.Run("absent when regime fields are missing", func(t *testing.T) {
		a := fixedAsset()
		a.FixedRate = decimal.NullDecimal{}

		_, ok := engine.ExpectedYield(a)
		assert.False(t, ok)
	})

	t.Run("absent for unknown regime", func(t *testing.T) {
		a := fixedAsset()
		a.Regime = "indexed"

		_, ok := engine.ExpectedYield(a)
		assert.False(t, ok)
	})

	t.Run("exceeds principal for positive fixed rate", func(t *testing.T) {
		for _, rate := range []string{"0.01", "1", "6.5", "12.75", "99.99"} {
			for _, months := range []int{1, 6, 18, 60} {
				a := fixedAsset()
				a.FixedRate = nullDec(rate)
				a.MaturityDate = a.IssueDate.AddDate(0, months, 0)

				got, ok := engine.ExpectedYield(a)
				require.True(t, ok)
				assert.True(t, got.GreaterThan(a.Invested()), "rate %s months %d: %s", rate, months, got)
			}
		}
	})
}

func TestEngine_Redeem(t *testing.T) {
	engine := NewEngine(rates.Default())

	t.Run("floating CDI after one calendar year", func(t *testing.T) {
		a := floatingAsset()

		got, reason := engine.Redeem(a, day(2025, 1, 1))
		require.Equal(t, ReasonNone, reason)
		assert.Equal(t, 366, got.ElapsedDays)
		assertNear(t, 1143.31, got.AccruedValue, 0.02)
		assert.True(t, got.YieldAmount.Equal(got.AccruedValue.Sub(dec("1000"))))
		assert.Equal(t, int32(-2), got.AccruedValue.Exponent(), "accrued value is quantized to cents")
	})

	t.Run("on issue date returns principal", func(t *testing.T) {
		got, reason := engine.Redeem(fixedAsset(), day(2024, 1, 1))
		require.Equal(t, ReasonNone, reason)
		assert.Equal(t, 0, got.ElapsedDays)
		assert.True(t, got.AccruedValue.Equal(dec("1000")))
		assert.True(t, got.YieldAmount.IsZero())
	})

	t.Run("clamps to maturity", func(t *testing.T) {
		a := fixedAsset()

		atMaturity, reason := engine.Redeem(a, a.MaturityDate)
		require.Equal(t, ReasonNone, reason)
		after, reason := engine.Redeem(a, a.MaturityDate.AddDate(0, 0, 10))
		require.Equal(t, ReasonNone, reason)

		assert.Equal(t, atMaturity.ElapsedDays, after.ElapsedDays)
		assert.True(t, atMaturity.AccruedValue.Equal(after.AccruedValue))
		assert.True(t, after.AsOf.Equal(a.MaturityDate))
	})

	t.Run("before issue is absent", func(t *testing.T) {
		got, reason := engine.Redeem(fixedAsset(), day(2023, 12, 31))
		assert.Nil(t, got)
		assert.Equal(t, ReasonBeforeIssue, reason)
	})

	t.Run("non-daily liquidity is absent regardless of date", func(t *testing.T) {
		a := fixedAsset()
		a.Liquidity = models.LiquidityAtMaturity

		for _, asOf := range []time.Time{day(2023, 1, 1), day(2025, 1, 1), day(2030, 1, 1)} {
			got, reason := engine.Redeem(a, asOf)
			assert.Nil(t, got)
			assert.Equal(t, ReasonNotDailyLiquidity, reason)
		}
	})

	t.Run("missing regime fields are absent", func(t *testing.T) {
		a := floatingAsset()
		a.IndexCode = nil

		got, reason := engine.Redeem(a, day(2025, 1, 1))
		assert.Nil(t, got)
		assert.Equal(t, ReasonUnsupportedTerms, reason)
	})

	t.Run("pre-tax while expected yield is post-tax", func(t *testing.T) {
		a := fixedAsset()
		a.Taxable = true
		a.TaxRate = nullDec("15")

		redeemed, reason := engine.Redeem(a, a.MaturityDate)
		require.Equal(t, ReasonNone, reason)
		gross, _ := engine.GrossYield(a)
		net, _ := engine.ExpectedYield(a)

		assert.True(t, redeemed.AccruedValue.Equal(gross.RoundBank(2)), "accrued %s, gross %s", redeemed.AccruedValue, gross)
		assert.True(t, net.Equal(gross.Mul(dec("0.85"))))
	})
}

func TestReasonMessage(t *testing.T) {
	assert.Empty(t, ReasonNone.Message())
	for _, r := range []Reason{ReasonNotDailyLiquidity, ReasonBeforeIssue, ReasonUnsupportedTerms} {
		assert.NotEmpty(t, r.Message(), string(r))
	}
}
