package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"ativosaber/internal/models"
	"ativosaber/internal/pagination"
	"ativosaber/internal/patch"
	"ativosaber/internal/rates"
	"ativosaber/internal/valuation"
)

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(email, password, name string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	ListUsers(page pagination.PageRequest) (*pagination.PageResponse[models.User], error)
	VerifyPassword(user *models.User, password string) bool
	AttemptLogin(email, password string) (*models.User, error)
	StoreRefreshTokenHash(userID, tokenHash string) error
	GetRefreshTokenHash(userID string) (string, error)
}

// AssetInput carries every writable asset field. It is used for creation and
// full replacement.
type AssetInput struct {
	Name            string
	Class           models.AssetClass
	Issuer          *string
	Venue           models.TradingVenue
	UnitPrice       decimal.Decimal
	Quantity        int
	Regime          models.InterestRegime
	FixedRate       decimal.NullDecimal
	IndexCode       *rates.Index
	IndexMultiplier decimal.NullDecimal
	IssueDate       time.Time
	MaturityDate    time.Time
	Liquidity       models.Liquidity
	Taxable         bool
	TaxRate         decimal.NullDecimal
}

// AssetPatch carries a partial update. Nil pointers leave the field untouched;
// nullable fields use patch.Field so an explicit null clears them.
type AssetPatch struct {
	Name            *string
	Class           *models.AssetClass
	Issuer          patch.Field[string]
	Venue           *models.TradingVenue
	UnitPrice       *decimal.Decimal
	Quantity        *int
	Regime          *models.InterestRegime
	FixedRate       patch.Field[decimal.Decimal]
	IndexCode       patch.Field[rates.Index]
	IndexMultiplier patch.Field[decimal.Decimal]
	IssueDate       *time.Time
	MaturityDate    *time.Time
	Liquidity       *models.Liquidity
	Taxable         *bool
	TaxRate         patch.Field[decimal.Decimal]
}

// AssetFilter holds optional filters for listing assets.
type AssetFilter struct {
	// Name matches as a case-insensitive substring.
	Name string
}

// RedemptionQuote is the outcome of an early-redemption simulation. Redemption
// is nil when Reason explains why none is available.
type RedemptionQuote struct {
	Asset      *models.Asset
	AsOf       time.Time
	Redemption *valuation.Redemption
	Reason     valuation.Reason
}

// Available reports whether the asset could be redeemed on AsOf.
func (q *RedemptionQuote) Available() bool {
	return q.Redemption != nil
}

// ClassSummary aggregates the assets of one class.
type ClassSummary struct {
	Count         int             `json:"count"`
	Invested      decimal.Decimal `json:"invested"`
	ExpectedYield decimal.Decimal `json:"expected_yield"`
}

// PortfolioSummary aggregates every asset of a user. Assets whose expected
// yield is unavailable count toward Invested but not ExpectedYield.
type PortfolioSummary struct {
	AssetCount         int                                 `json:"asset_count"`
	UnvaluedCount      int                                 `json:"unvalued_count"`
	TotalInvested      decimal.Decimal                     `json:"total_invested"`
	TotalExpectedYield decimal.Decimal                     `json:"total_expected_yield"`
	ByClass            map[models.AssetClass]*ClassSummary `json:"by_class"`
}

// AssetServicer defines the contract for asset-related business logic.
// Every operation is scoped to the owning user.
type AssetServicer interface {
	CreateAsset(ctx context.Context, userID string, in AssetInput) (*models.Asset, error)
	GetUserAssets(ctx context.Context, userID string, filter AssetFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Asset], error)
	GetAssetByID(ctx context.Context, userID, assetID string) (*models.Asset, error)
	SearchAssetsByName(ctx context.Context, userID, name string) ([]models.Asset, error)
	UpdateAsset(ctx context.Context, userID, assetID string, in AssetInput) (*models.Asset, error)
	PatchAsset(ctx context.Context, userID, assetID string, p AssetPatch) (*models.Asset, error)
	DeleteAsset(ctx context.Context, userID, assetID string) error
	SimulateRedemption(ctx context.Context, userID, assetID string, asOf *time.Time) (*RedemptionQuote, error)
	GetPortfolio(ctx context.Context, userID string) (*PortfolioSummary, error)
}

// ValuationRecorder receives valuation and validation events. The metrics
// collector implements it.
type ValuationRecorder interface {
	ObserveValuation(kind, outcome string)
	IndexFallback(code string)
	ValidationFailed(field string)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
}
