package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "ativosaber/internal/errors"
	"ativosaber/internal/logger"
	"ativosaber/internal/models"
	"ativosaber/internal/pagination"
	"ativosaber/internal/patch"
	"ativosaber/internal/rates"
	"ativosaber/internal/valuation"
)

const currencyScale = 2

// Valuation kinds and outcomes reported to the ValuationRecorder.
const (
	ValuationExpectedYield = "expected_yield"
	ValuationRedemption    = "redemption"

	OutcomeOK          = "ok"
	OutcomeUnavailable = "unavailable"
)

type nopRecorder struct{}

func (nopRecorder) ObserveValuation(string, string) {}
func (nopRecorder) IndexFallback(string)            {}
func (nopRecorder) ValidationFailed(string)         {}

// assetService handles asset-related business logic.
type assetService struct {
	db       *gorm.DB
	table    *rates.Table
	engine   *valuation.Engine
	recorder ValuationRecorder
	log      *zap.SugaredLogger
	now      func() time.Time
}

// NewAssetService creates a new AssetServicer valuing assets against table.
// A nil recorder disables valuation metrics.
func NewAssetService(db *gorm.DB, table *rates.Table, recorder ValuationRecorder) AssetServicer {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &assetService{
		db:       db,
		table:    table,
		engine:   valuation.NewEngine(table),
		recorder: recorder,
		log:      logger.Named("assets"),
		now:      time.Now,
	}
}

// civil keeps only the calendar date of t.
func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (in AssetInput) apply(a *models.Asset) {
	a.Name = strings.TrimSpace(in.Name)
	a.Class = in.Class
	a.Issuer = in.Issuer
	a.Venue = in.Venue
	if a.Venue == "" {
		a.Venue = models.TradingVenueExchange
	}
	a.UnitPrice = in.UnitPrice
	a.Quantity = in.Quantity
	a.Regime = in.Regime
	a.FixedRate = in.FixedRate
	a.IndexCode = in.IndexCode
	a.IndexMultiplier = in.IndexMultiplier
	a.IssueDate = civil(in.IssueDate)
	a.MaturityDate = civil(in.MaturityDate)
	a.Liquidity = in.Liquidity
	a.Taxable = in.Taxable
	a.TaxRate = in.TaxRate
}

func nullDecimal(f patch.Field[decimal.Decimal]) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: f.Value, Valid: f.Valid}
}

func (p AssetPatch) apply(a *models.Asset) {
	if p.Name != nil {
		a.Name = strings.TrimSpace(*p.Name)
	}
	if p.Class != nil {
		a.Class = *p.Class
	}
	if p.Issuer.Set {
		a.Issuer = p.Issuer.Ptr()
	}
	if p.Venue != nil {
		a.Venue = *p.Venue
	}
	if p.UnitPrice != nil {
		a.UnitPrice = *p.UnitPrice
	}
	if p.Quantity != nil {
		a.Quantity = *p.Quantity
	}
	if p.Regime != nil {
		a.Regime = *p.Regime
	}
	if p.FixedRate.Set {
		a.FixedRate = nullDecimal(p.FixedRate)
	}
	if p.IndexCode.Set {
		a.IndexCode = p.IndexCode.Ptr()
	}
	if p.IndexMultiplier.Set {
		a.IndexMultiplier = nullDecimal(p.IndexMultiplier)
	}
	if p.IssueDate != nil {
		a.IssueDate = civil(*p.IssueDate)
	}
	if p.MaturityDate != nil {
		a.MaturityDate = civil(*p.MaturityDate)
	}
	if p.Liquidity != nil {
		a.Liquidity = *p.Liquidity
	}
	if p.Taxable != nil {
		a.Taxable = *p.Taxable
	}
	if p.TaxRate.Set {
		a.TaxRate = nullDecimal(p.TaxRate)
	}
}

// validate runs the record's own rules plus the index lookup, which needs the
// rate table.
func (s *assetService) validate(a *models.Asset) error {
	fe := models.FieldErrors{}
	if err := a.Validate(); err != nil {
		verr, ok := err.(models.FieldErrors)
		if !ok {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		fe = verr
	}
	if a.HasIndex() && !s.table.Known(*a.IndexCode) {
		fe.Add("index_code", "Unknown index code.")
	}
	if len(fe) == 0 {
		return nil
	}
	for _, field := range fe.Fields() {
		s.recorder.ValidationFailed(field)
	}
	return apperrors.WithFields(apperrors.ErrValidation, fe)
}

// decorate fills the derived amounts exposed with every asset.
func (s *assetService) decorate(a *models.Asset) {
	a.InvestedAmount = a.Invested()

	if a.Regime != models.InterestRegimeFixed && a.HasIndex() && !s.table.Known(*a.IndexCode) {
		s.log.Warnw("unknown index code, using fallback rate",
			"asset_id", a.ID,
			"index_code", *a.IndexCode,
			"fallback_rate", rates.FallbackRate.String(),
		)
		s.recorder.IndexFallback(string(*a.IndexCode))
	}

	if y, ok := s.engine.ExpectedYield(a); ok {
		a.ExpectedYield = decimal.NewNullDecimal(y.RoundBank(currencyScale))
		s.recorder.ObserveValuation(ValuationExpectedYield, OutcomeOK)
		return
	}
	a.ExpectedYield = decimal.NullDecimal{}
	s.recorder.ObserveValuation(ValuationExpectedYield, OutcomeUnavailable)
}

func (s *assetService) findOwned(db *gorm.DB, userID, assetID string) (*models.Asset, error) {
	if _, err := uuid.Parse(assetID); err != nil {
		return nil, apperrors.ErrAssetNotFound
	}
	var asset models.Asset
	if err := db.Where("id = ? AND user_id = ?", assetID, userID).First(&asset).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAssetNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &asset, nil
}

// likePattern builds a case-insensitive substring pattern with LIKE
// metacharacters escaped.
func likePattern(name string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(name)) + "%"
}

// CreateAsset validates and stores a new asset for userID.
func (s *assetService) CreateAsset(ctx context.Context, userID string, in AssetInput) (*models.Asset, error) {
	asset := &models.Asset{UserID: userID}
	in.apply(asset)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.validate(asset); err != nil {
			return err
		}
		if err := tx.Create(asset).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.decorate(asset)
	return asset, nil
}

// GetUserAssets returns a page of the user's assets, newest first.
func (s *assetService) GetUserAssets(ctx context.Context, userID string, filter AssetFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Asset], error) {
	page.Defaults()

	base := s.db.WithContext(ctx).Model(&models.Asset{}).Where("user_id = ?", userID)
	if name := strings.TrimSpace(filter.Name); name != "" {
		base = base.Where(`LOWER(name) LIKE ? ESCAPE '\'`, likePattern(name))
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var assets []models.Asset
	if err := base.Order("created_at DESC, id DESC").Scopes(pagination.Paginate(page)).Find(&assets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	for i := range assets {
		s.decorate(&assets[i])
	}

	resp := pagination.NewPageResponse(assets, page.Page, page.PageSize, totalItems)
	return &resp, nil
}

// GetAssetByID returns one of the user's assets.
func (s *assetService) GetAssetByID(ctx context.Context, userID, assetID string) (*models.Asset, error) {
	asset, err := s.findOwned(s.db.WithContext(ctx), userID, assetID)
	if err != nil {
		return nil, err
	}
	s.decorate(asset)
	return asset, nil
}

// SearchAssetsByName returns every user asset whose name contains name,
// ordered by name. An empty result is an error.
func (s *assetService) SearchAssetsByName(ctx context.Context, userID, name string) ([]models.Asset, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "name is required")
	}

	var assets []models.Asset
	if err := s.db.WithContext(ctx).
		Where(`user_id = ? AND LOWER(name) LIKE ? ESCAPE '\'`, userID, likePattern(name)).
		Order("name ASC, id ASC").
		Find(&assets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if len(assets) == 0 {
		return nil, apperrors.ErrNoAssetsMatched
	}

	for i := range assets {
		s.decorate(&assets[i])
	}
	return assets, nil
}

// mutate loads the asset under a row lock, applies change, validates and saves
// it in one transaction. Nothing is written when validation fails.
func (s *assetService) mutate(ctx context.Context, userID, assetID string, change func(*models.Asset)) (*models.Asset, error) {
	var asset *models.Asset
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := s.findOwned(tx.Clauses(clause.Locking{Strength: "UPDATE"}), userID, assetID)
		if err != nil {
			return err
		}

		change(found)
		if err := s.validate(found); err != nil {
			return err
		}
		if err := tx.Save(found).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		asset = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.decorate(asset)
	return asset, nil
}

// UpdateAsset replaces every writable field of the asset.
func (s *assetService) UpdateAsset(ctx context.Context, userID, assetID string, in AssetInput) (*models.Asset, error) {
	return s.mutate(ctx, userID, assetID, in.apply)
}

// PatchAsset applies a partial update; the merged record must still be valid.
func (s *assetService) PatchAsset(ctx context.Context, userID, assetID string, p AssetPatch) (*models.Asset, error) {
	return s.mutate(ctx, userID, assetID, p.apply)
}

// DeleteAsset permanently removes one of the user's assets.
func (s *assetService) DeleteAsset(ctx context.Context, userID, assetID string) error {
	if _, err := uuid.Parse(assetID); err != nil {
		return apperrors.ErrAssetNotFound
	}
	result := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", assetID, userID).Delete(&models.Asset{})
	if result.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrAssetNotFound
	}
	return nil
}

// SimulateRedemption values the asset as if redeemed on asOf, or today when
// asOf is nil. An unavailable redemption is reported on the quote, not as an error.
func (s *assetService) SimulateRedemption(ctx context.Context, userID, assetID string, asOf *time.Time) (*RedemptionQuote, error) {
	asset, err := s.GetAssetByID(ctx, userID, assetID)
	if err != nil {
		return nil, err
	}

	day := civil(s.now())
	if asOf != nil {
		day = civil(*asOf)
	}

	redemption, reason := s.engine.Redeem(asset, day)
	if redemption != nil {
		s.recorder.ObserveValuation(ValuationRedemption, OutcomeOK)
	} else {
		s.recorder.ObserveValuation(ValuationRedemption, string(reason))
	}

	return &RedemptionQuote{Asset: asset, AsOf: day, Redemption: redemption, Reason: reason}, nil
}

// GetPortfolio aggregates every asset of the user.
func (s *assetService) GetPortfolio(ctx context.Context, userID string) (*PortfolioSummary, error) {
	var assets []models.Asset
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&assets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	summary := &PortfolioSummary{
		TotalInvested:      decimal.Zero,
		TotalExpectedYield: decimal.Zero,
		ByClass:            map[models.AssetClass]*ClassSummary{},
	}
	for i := range assets {
		a := &assets[i]
		s.decorate(a)

		class, ok := summary.ByClass[a.Class]
		if !ok {
			class = &ClassSummary{Invested: decimal.Zero, ExpectedYield: decimal.Zero}
			summary.ByClass[a.Class] = class
		}

		summary.AssetCount++
		class.Count++
		summary.TotalInvested = summary.TotalInvested.Add(a.InvestedAmount)
		class.Invested = class.Invested.Add(a.InvestedAmount)

		if !a.ExpectedYield.Valid {
			summary.UnvaluedCount++
			continue
		}
		summary.TotalExpectedYield = summary.TotalExpectedYield.Add(a.ExpectedYield.Decimal)
		class.ExpectedYield = class.ExpectedYield.Add(a.ExpectedYield.Decimal)
	}

	return summary, nil
}
