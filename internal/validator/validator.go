// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"ativosaber/internal/models"
)

var registerOnce sync.Once

// Register registers all custom validators with the Gin binding engine. The
// engine is process-wide, so only the first call has an effect. The
// index_code tag checks the code's shape; membership in a rate table is
// checked by the asset service that owns the table.
func Register() {
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			v.RegisterTagNameFunc(jsonFieldName)
			_ = v.RegisterValidation("asset_class", validateAssetClass)
			_ = v.RegisterValidation("trading_venue", validateTradingVenue)
			_ = v.RegisterValidation("interest_regime", validateInterestRegime)
			_ = v.RegisterValidation("liquidity", validateLiquidity)
			_ = v.RegisterValidation("index_code", validateIndexCode)
		}
	})
}

// FieldErrors converts binding validation errors into per-field messages keyed
// by JSON field name. It returns nil when err is not a validation error.
func FieldErrors(err error) models.FieldErrors {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := models.FieldErrors{}
	for _, fe := range verrs {
		out.Add(fe.Field(), message(fe))
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "datetime":
		return "Date must use the YYYY-MM-DD format."
	case "min", "gt", "gte":
		return "Value is too small."
	case "max":
		return "Value is too long."
	case "email":
		return "Enter a valid email address."
	case "asset_class", "trading_venue", "interest_regime", "liquidity", "index_code":
		return "Not a valid choice."
	}
	return "Invalid value."
}

// jsonFieldName reports fields by their JSON key, or by their query key for
// structs bound from the query string.
func jsonFieldName(f reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

func validateAssetClass(fl validator.FieldLevel) bool {
	switch models.AssetClass(fl.Field().String()) {
	case models.AssetClassBankFixedIncome, models.AssetClassPublicBond, models.AssetClassDebentureCredit:
		return true
	}
	return false
}

func validateTradingVenue(fl validator.FieldLevel) bool {
	switch models.TradingVenue(fl.Field().String()) {
	case models.TradingVenueExchange, models.TradingVenueOTC:
		return true
	}
	return false
}

func validateInterestRegime(fl validator.FieldLevel) bool {
	switch models.InterestRegime(fl.Field().String()) {
	case models.InterestRegimeFixed, models.InterestRegimeFloating, models.InterestRegimeHybrid:
		return true
	}
	return false
}

func validateLiquidity(fl validator.FieldLevel) bool {
	switch models.Liquidity(fl.Field().String()) {
	case models.LiquidityDaily, models.LiquidityAtMaturity:
		return true
	}
	return false
}

// Index codes are upper-case letters and digits, as stored in a size-10 column.
var indexCodePattern = regexp.MustCompile(`^[A-Z0-9]{1,10}$`)

func validateIndexCode(fl validator.FieldLevel) bool {
	return indexCodePattern.MatchString(fl.Field().String())
}
