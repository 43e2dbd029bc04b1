package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"ativosaber/internal/models"
	"ativosaber/internal/rates"
)

// TestPassword is the plain-text password of every fixture user.
const TestPassword = "password123"

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// Date returns midnight UTC of the given calendar day.
func Date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Dec parses a decimal literal, panicking on malformed input.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// NullDec parses a decimal literal into a valid NullDecimal.
func NullDec(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

// CreateTestUser creates a user with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email)
}

// CreateTestUserWithEmail creates a user with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:    email,
		Name:     fmt.Sprintf("Test User %d", nextID()),
		Password: string(hash),
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// NewFixedAsset returns an unsaved, valid 10% fixed-rate asset of 1000.00
// issued 2024-01-01 and maturing 2026-01-01 with daily liquidity.
func NewFixedAsset(userID string) *models.Asset {
	return &models.Asset{
		UserID:       userID,
		Name:         fmt.Sprintf("CDB Test %d", nextID()),
		Class:        models.AssetClassBankFixedIncome,
		Venue:        models.TradingVenueExchange,
		UnitPrice:    Dec("1000.00"),
		Quantity:     1,
		Regime:       models.InterestRegimeFixed,
		FixedRate:    NullDec("10.00"),
		IssueDate:    Date(2024, 1, 1),
		MaturityDate: Date(2026, 1, 1),
		Liquidity:    models.LiquidityDaily,
	}
}

// NewFloatingAsset returns an unsaved, valid asset paying 110% of CDI.
func NewFloatingAsset(userID string) *models.Asset {
	a := NewFixedAsset(userID)
	code := rates.IndexCDI
	a.Name = fmt.Sprintf("LCI Test %d", nextID())
	a.Regime = models.InterestRegimeFloating
	a.FixedRate = decimal.NullDecimal{}
	a.IndexCode = &code
	a.IndexMultiplier = NullDec("110.00")
	return a
}

// CreateTestAsset persists a fixed-rate asset for the given user.
func CreateTestAsset(t *testing.T, db *gorm.DB, userID string) *models.Asset {
	t.Helper()
	return SaveTestAsset(t, db, NewFixedAsset(userID))
}

// SaveTestAsset persists asset as-is, without validation.
func SaveTestAsset(t *testing.T, db *gorm.DB, asset *models.Asset) *models.Asset {
	t.Helper()

	if err := db.Create(asset).Error; err != nil {
		t.Fatalf("failed to create test asset: %v", err)
	}
	return asset
}
