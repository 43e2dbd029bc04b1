package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"ativosaber/internal/models"
	"ativosaber/internal/pagination"
	"ativosaber/internal/patch"
	"ativosaber/internal/rates"
	"ativosaber/internal/services"
)

const moneyScale = 2

// AssetHandler handles asset-related requests.
type AssetHandler struct {
	assetService services.AssetServicer
	auditService services.AuditServicer
}

// NewAssetHandler creates a new AssetHandler.
func NewAssetHandler(assetService services.AssetServicer, auditService services.AuditServicer) *AssetHandler {
	return &AssetHandler{assetService: assetService, auditService: auditService}
}

// AssetRequest is the payload for creating or fully replacing an asset.
// Numeric rules and the interest-regime field combinations are checked by the
// asset service so that every violation is reported at once.
type AssetRequest struct {
	Name            string                `json:"name" binding:"required,max=150"`
	AssetClass      models.AssetClass     `json:"asset_class" binding:"required,asset_class"`
	Issuer          *string               `json:"issuer" binding:"omitempty,max=150"`
	TradingVenue    models.TradingVenue   `json:"trading_venue" binding:"omitempty,trading_venue"`
	UnitPrice       decimal.Decimal       `json:"unit_price" swaggertype:"string" example:"1000.00"`
	Quantity        int                   `json:"quantity" example:"1"`
	InterestRegime  models.InterestRegime `json:"interest_regime" binding:"required,interest_regime"`
	FixedRate       *decimal.Decimal      `json:"fixed_rate" swaggertype:"string" example:"10.50"`
	IndexCode       *rates.Index          `json:"index_code" binding:"omitempty,index_code" swaggertype:"string" example:"CDI"`
	IndexMultiplier *decimal.Decimal      `json:"index_multiplier" swaggertype:"string" example:"110"`
	IssueDate       string                `json:"issue_date" binding:"required,datetime=2006-01-02" example:"2024-01-01"`
	MaturityDate    string                `json:"maturity_date" binding:"required,datetime=2006-01-02" example:"2026-01-01"`
	Liquidity       models.Liquidity      `json:"liquidity" binding:"required,liquidity"`
	Taxable         bool                  `json:"taxable"`
	TaxRate         *decimal.Decimal      `json:"tax_rate" swaggertype:"string" example:"15"`
}

// PatchAssetRequest is the payload for a partial update. Omitted keys are left
// untouched; null clears the nullable fields.
type PatchAssetRequest struct {
	Name            *string                      `json:"name" binding:"omitempty,min=1,max=150"`
	AssetClass      *models.AssetClass           `json:"asset_class" binding:"omitempty,asset_class"`
	Issuer          patch.Field[string]          `json:"issuer" swaggertype:"string"`
	TradingVenue    *models.TradingVenue         `json:"trading_venue" binding:"omitempty,trading_venue"`
	UnitPrice       *decimal.Decimal             `json:"unit_price" swaggertype:"string"`
	Quantity        *int                         `json:"quantity"`
	InterestRegime  *models.InterestRegime       `json:"interest_regime" binding:"omitempty,interest_regime"`
	FixedRate       patch.Field[decimal.Decimal] `json:"fixed_rate" swaggertype:"string"`
	IndexCode       patch.Field[rates.Index]     `json:"index_code" swaggertype:"string"`
	IndexMultiplier patch.Field[decimal.Decimal] `json:"index_multiplier" swaggertype:"string"`
	IssueDate       *string                      `json:"issue_date" binding:"omitempty,datetime=2006-01-02"`
	MaturityDate    *string                      `json:"maturity_date" binding:"omitempty,datetime=2006-01-02"`
	Liquidity       *models.Liquidity            `json:"liquidity" binding:"omitempty,liquidity"`
	Taxable         *bool                        `json:"taxable"`
	TaxRate         patch.Field[decimal.Decimal] `json:"tax_rate" swaggertype:"string"`
}

// ListAssetsQuery holds the list filters and pagination.
type ListAssetsQuery struct {
	pagination.PageRequest
	Name string `form:"name" binding:"max=150"`
}

// RedemptionQuery holds the optional simulation date.
type RedemptionQuery struct {
	AsOf string `form:"as_of" binding:"omitempty,datetime=2006-01-02"`
}

// AssetResponse is the JSON view of an asset. Amounts and rates are strings
// with two decimal places; dates are YYYY-MM-DD.
type AssetResponse struct {
	ID              string                `json:"id"`
	UserID          string                `json:"user_id"`
	Name            string                `json:"name"`
	AssetClass      models.AssetClass     `json:"asset_class"`
	Issuer          *string               `json:"issuer"`
	TradingVenue    models.TradingVenue   `json:"trading_venue"`
	UnitPrice       string                `json:"unit_price"`
	Quantity        int                   `json:"quantity"`
	InterestRegime  models.InterestRegime `json:"interest_regime"`
	FixedRate       *string               `json:"fixed_rate"`
	IndexCode       *rates.Index          `json:"index_code" swaggertype:"string"`
	IndexMultiplier *string               `json:"index_multiplier"`
	IssueDate       string                `json:"issue_date"`
	MaturityDate    string                `json:"maturity_date"`
	Liquidity       models.Liquidity      `json:"liquidity"`
	Taxable         bool                  `json:"taxable"`
	TaxRate         *string               `json:"tax_rate"`
	InvestedAmount  string                `json:"invested_amount"`
	ExpectedYield   *string               `json:"expected_yield"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// RedemptionResponse is the result of an early-redemption simulation. When
// Available is false the amounts are null and Message explains why.
type RedemptionResponse struct {
	AssetID      string  `json:"asset_id"`
	AsOf         string  `json:"as_of"`
	Available    bool    `json:"available"`
	AccruedValue *string `json:"accrued_value"`
	ElapsedDays  *int    `json:"elapsed_days"`
	YieldAmount  *string `json:"yield_amount"`
	Reason       string  `json:"reason,omitempty"`
	Message      string  `json:"message,omitempty"`
}

// ClassSummaryResponse aggregates the assets of one class.
type ClassSummaryResponse struct {
	Count         int    `json:"count"`
	Invested      string `json:"invested"`
	ExpectedYield string `json:"expected_yield"`
}

// PortfolioResponse aggregates every asset of the user.
type PortfolioResponse struct {
	AssetCount         int                             `json:"asset_count"`
	UnvaluedCount      int                             `json:"unvalued_count"`
	TotalInvested      string                          `json:"total_invested"`
	TotalExpectedYield string                          `json:"total_expected_yield"`
	ByClass            map[string]ClassSummaryResponse `json:"by_class"`
}

func money(d decimal.Decimal) string {
	return d.StringFixed(moneyScale)
}

func nullMoney(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := money(d.Decimal)
	return &s
}

func nullable(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*d)
}

func toAssetResponse(a *models.Asset) AssetResponse {
	return AssetResponse{
		ID:              a.ID,
		UserID:          a.UserID,
		Name:            a.Name,
		AssetClass:      a.Class,
		Issuer:          a.Issuer,
		TradingVenue:    a.Venue,
		UnitPrice:       money(a.UnitPrice),
		Quantity:        a.Quantity,
		InterestRegime:  a.Regime,
		FixedRate:       nullMoney(a.FixedRate),
		IndexCode:       a.IndexCode,
		IndexMultiplier: nullMoney(a.IndexMultiplier),
		IssueDate:       a.IssueDate.Format(time.DateOnly),
		MaturityDate:    a.MaturityDate.Format(time.DateOnly),
		Liquidity:       a.Liquidity,
		Taxable:         a.Taxable,
		TaxRate:         nullMoney(a.TaxRate),
		InvestedAmount:  money(a.InvestedAmount),
		ExpectedYield:   nullMoney(a.ExpectedYield),
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

func toAssetResponses(assets []models.Asset) []AssetResponse {
	out := make([]AssetResponse, 0, len(assets))
	for i := range assets {
		out = append(out, toAssetResponse(&assets[i]))
	}
	return out
}

func toRedemptionResponse(q *services.RedemptionQuote) RedemptionResponse {
	resp := RedemptionResponse{
		AssetID: q.Asset.ID,
		AsOf:    q.AsOf.Format(time.DateOnly),
	}
	if !q.Available() {
		resp.Reason = string(q.Reason)
		resp.Message = q.Reason.Message()
		return resp
	}
	r := q.Redemption
	accrued, yield, days := money(r.AccruedValue), money(r.YieldAmount), r.ElapsedDays
	resp.Available = true
	resp.AsOf = r.AsOf.Format(time.DateOnly)
	resp.AccruedValue = &accrued
	resp.YieldAmount = &yield
	resp.ElapsedDays = &days
	return resp
}

func toPortfolioResponse(p *services.PortfolioSummary) PortfolioResponse {
	byClass := make(map[string]ClassSummaryResponse, len(p.ByClass))
	for class, s := range p.ByClass {
		byClass[string(class)] = ClassSummaryResponse{
			Count:         s.Count,
			Invested:      money(s.Invested),
			ExpectedYield: money(s.ExpectedYield),
		}
	}
	return PortfolioResponse{
		AssetCount:         p.AssetCount,
		UnvaluedCount:      p.UnvaluedCount,
		TotalInvested:      money(p.TotalInvested),
		TotalExpectedYield: money(p.TotalExpectedYield),
		ByClass:            byClass,
	}
}

func (r *AssetRequest) toInput() (services.AssetInput, error) {
	issue, err := parseDate("issue_date", r.IssueDate)
	if err != nil {
		return services.AssetInput{}, err
	}
	maturity, err := parseDate("maturity_date", r.MaturityDate)
	if err != nil {
		return services.AssetInput{}, err
	}
	return services.AssetInput{
		Name:            r.Name,
		Class:           r.AssetClass,
		Issuer:          r.Issuer,
		Venue:           r.TradingVenue,
		UnitPrice:       r.UnitPrice,
		Quantity:        r.Quantity,
		Regime:          r.InterestRegime,
		FixedRate:       nullable(r.FixedRate),
		IndexCode:       r.IndexCode,
		IndexMultiplier: nullable(r.IndexMultiplier),
		IssueDate:       issue,
		MaturityDate:    maturity,
		Liquidity:       r.Liquidity,
		Taxable:         r.Taxable,
		TaxRate:         nullable(r.TaxRate),
	}, nil
}

func (r *PatchAssetRequest) toPatch() (services.AssetPatch, error) {
	p := services.AssetPatch{
		Name:            r.Name,
		Class:           r.AssetClass,
		Issuer:          r.Issuer,
		Venue:           r.TradingVenue,
		UnitPrice:       r.UnitPrice,
		Quantity:        r.Quantity,
		Regime:          r.InterestRegime,
		FixedRate:       r.FixedRate,
		IndexCode:       r.IndexCode,
		IndexMultiplier: r.IndexMultiplier,
		Liquidity:       r.Liquidity,
		Taxable:         r.Taxable,
		TaxRate:         r.TaxRate,
	}
	if r.IssueDate != nil {
		issue, err := parseDate("issue_date", *r.IssueDate)
		if err != nil {
			return services.AssetPatch{}, err
		}
		p.IssueDate = &issue
	}
	if r.MaturityDate != nil {
		maturity, err := parseDate("maturity_date", *r.MaturityDate)
		if err != nil {
			return services.AssetPatch{}, err
		}
		p.MaturityDate = &maturity
	}
	return p, nil
}

// CreateAsset handles creating a new asset.
// @Summary     Create asset
// @Description Register a fixed-income asset for the authenticated user
// @Tags        assets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body AssetRequest true "Asset details"
// @Success     201 {object} AssetResponse "Asset created"
// @Failure     400 {object} ErrorResponse "Validation failed"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /assets [post]
func (h *AssetHandler) CreateAsset(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req AssetRequest
	if err := bindJSON(c, &req); err != nil {
		respondWithError(c, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		respondWithError(c, err)
		return
	}

	asset, err := h.assetService.CreateAsset(c.Request.Context(), userID, in)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, models.AuditActionCreateAsset, "asset", asset.ID, c.ClientIP(),
		map[string]interface{}{"name": asset.Name, "interest_regime": string(asset.Regime)})

	c.JSON(http.StatusCreated, toAssetResponse(asset))
}

// ListAssets handles listing the user's assets.
// @Summary     List assets
// @Description Get a paginated list of the user's assets, newest first
// @Tags        assets
// @Produce     json
// @Security    BearerAuth
// @Param       name      query string false "Case-insensitive name substring"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[AssetResponse] "Paginated assets"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /assets [get]
func (h *AssetHandler) ListAssets(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var q ListAssetsQuery
	if err := bindQuery(c, &q); err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.assetService.GetUserAssets(c.Request.Context(), userID, services.AssetFilter{Name: q.Name}, q.PageRequest)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, pagination.Map(*result, func(a models.Asset) AssetResponse {
		return toAssetResponse(&a)
	}))
}

// SearchAssets handles searching the user's assets by name.
// @Summary     Search assets by name
// @Description Get every asset of the user whose name contains the given text
// @Tags        assets
// @Produce     json
// @Security    BearerAuth
// @Param       name path string true "Name substring"
// @Success     200 {array}  AssetResponse "Matching assets"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "No assets matched"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /assets/search/{name} [get]
func (h *AssetHandler) SearchAssets(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	assets, err := h.assetService.SearchAssetsByName(c.Request.Context(), userID, c.Param("name"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toAssetResponses(assets))
}

// GetAsset handles retrieving a specific asset.
// @Summary     Get asset by ID
// @Description Get one of the user's assets with its invested amount and expected yield
// @Tags        assets
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Asset ID"
// @Success     200 {object} AssetResponse "Asset details"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Asset not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /assets/{id} [get]
func (h *AssetHandler) GetAsset(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	asset, err := h.assetService.GetAssetByID(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toAssetResponse(asset))
}

// UpdateAsset handles replacing an asset.
// @Summary     Update asset
// @Description Replace every writable field of an asset
// @Tags        assets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string       true "Asset ID"
// @Param       request body AssetRequest true "Asset details"
// @Success     200 {object} AssetResponse "Asset updated"
// @Failure     400 {object} ErrorResponse "Validation failed"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Asset not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /assets/{id} [put]
func (h *AssetHandler) UpdateAsset(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req AssetRequest
	if err := bindJSON(c, &req); err != nil {
		respondWithError(c, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		respondWithError(c, err)
		return
	}

	asset, err := h.assetService.UpdateAsset(c.Request.Context(), userID, c.Param("id"), in)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, models.AuditActionUpdateAsset, "asset", asset.ID, c.ClientIP(),
		map[string]interface{}{"name": asset.Name, "partial": false})

	c.JSON(http.StatusOK, toAssetResponse(asset))
}

// PatchAsset handles a partial asset update.
// @Summary     Patch asset
// @Description Update some fields of an asset; null clears optional fields
// @Tags        assets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string            true "Asset ID"
// @Param       request body PatchAssetRequest true "Fields to change"
// @Success     200 {object} AssetResponse "Asset updated"
// @Failure     400 {object} ErrorResponse "Validation failed"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Asset not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /assets/{id} [patch]
func (h *AssetHandler) PatchAsset(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req PatchAssetRequest
	if err := bindJSON(c, &req); err != nil {
		respondWithError(c, err)
		return
	}
	p, err := req.toPatch()
	if err != nil {
		respondWithError(c, err)
		return
	}

	asset, err := h.assetService.PatchAsset(c.Request.Context(), userID, c.Param("id"), p)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, models.AuditActionUpdateAsset, "asset", asset.ID, c.ClientIP(),
		map[string]interface{}{"name": asset.Name, "partial": true})

	c.JSON(http.StatusOK, toAssetResponse(asset))
}

// DeleteAsset handles deleting an asset.
// @Summary     Delete asset
// @Description Permanently delete one of the user's assets
// @Tags        assets
// @Security    BearerAuth
// @Param       id path string true "Asset ID"
// @Success     204 "Asset deleted"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Asset not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /assets/{id} [delete]
func (h *AssetHandler) DeleteAsset(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	assetID := c.Param("id")
	if err := h.assetService.DeleteAsset(c.Request.Context(), userID, assetID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, models.AuditActionDeleteAsset, "asset", assetID, c.ClientIP(), nil)

	c.Status(http.StatusNoContent)
}

// SimulateRedemption handles an early-redemption simulation.
// @Summary     Simulate redemption
// @Description Value the asset as if redeemed on as_of (default today), before tax
// @Tags        assets
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string true  "Asset ID"
// @Param       as_of query string false "Redemption date (YYYY-MM-DD)"
// @Success     200 {object} RedemptionResponse "Simulation result"
// @Failure     400 {object} ErrorResponse "Invalid date"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Asset not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /assets/{id}/redemption [get]
func (h *AssetHandler) SimulateRedemption(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var q RedemptionQuery
	if err := bindQuery(c, &q); err != nil {
		respondWithError(c, err)
		return
	}

	var asOf *time.Time
	if q.AsOf != "" {
		day, err := parseDate("as_of", q.AsOf)
		if err != nil {
			respondWithError(c, err)
			return
		}
		asOf = &day
	}

	quote, err := h.assetService.SimulateRedemption(c.Request.Context(), userID, c.Param("id"), asOf)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toRedemptionResponse(quote))
}

// GetPortfolio handles the portfolio summary.
// @Summary     Portfolio summary
// @Description Total invested amount and expected yield, overall and per asset class
// @Tags        assets
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} PortfolioResponse "Portfolio summary"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /assets/portfolio [get]
func (h *AssetHandler) GetPortfolio(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	summary, err := h.assetService.GetPortfolio(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toPortfolioResponse(summary))
}
