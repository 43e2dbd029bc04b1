package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ativosaber/internal/rates"
)

// RateHandler exposes the reference index table.
type RateHandler struct {
	table *rates.Table
}

// NewRateHandler creates a new RateHandler.
func NewRateHandler(table *rates.Table) *RateHandler {
	return &RateHandler{table: table}
}

// IndexRateResponse is one entry of the index table. Rate is an annual
// fraction (0.13 == 13% a.a.).
type IndexRateResponse struct {
	Code string `json:"code" example:"CDI"`
	Rate string `json:"rate" example:"0.13"`
}

// RatesResponse lists the known indexes and the rate used for unknown codes.
type RatesResponse struct {
	Rates        []IndexRateResponse `json:"rates"`
	FallbackRate string              `json:"fallback_rate" example:"0.10"`
}

// ListRates returns the index table.
// @Summary     List index rates
// @Description Get the annual rate of every reference index used for floating and hybrid assets
// @Tags        rates
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} RatesResponse "Index table"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /rates [get]
func (h *RateHandler) ListRates(c *gin.Context) {
	codes := h.table.Codes()
	out := make([]IndexRateResponse, 0, len(codes))
	for _, code := range codes {
		rate, _ := h.table.Lookup(code)
		out = append(out, IndexRateResponse{Code: string(code), Rate: rate.String()})
	}
	c.JSON(http.StatusOK, RatesResponse{Rates: out, FallbackRate: rates.FallbackRate.String()})
}
