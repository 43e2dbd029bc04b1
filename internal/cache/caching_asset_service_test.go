package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/shopspring/decimal"

	"ativosaber/internal/models"
	"ativosaber/internal/pagination"
	"ativosaber/internal/services"
)

// mockAssetService is a function-field AssetServicer for tests.
type mockAssetService struct {
	createFn    func(ctx context.Context, userID string, in services.AssetInput) (*models.Asset, error)
	listFn      func(ctx context.Context, userID string, filter services.AssetFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Asset], error)
	getFn       func(ctx context.Context, userID, assetID string) (*models.Asset, error)
	searchFn    func(ctx context.Context, userID, name string) ([]models.Asset, error)
	updateFn    func(ctx context.Context, userID, assetID string, in services.AssetInput) (*models.Asset, error)
	patchFn     func(ctx context.Context, userID, assetID string, p services.AssetPatch) (*models.Asset, error)
	deleteFn    func(ctx context.Context, userID, assetID string) error
	redeemFn    func(ctx context.Context, userID, assetID string, asOf *time.Time) (*services.RedemptionQuote, error)
	portfolioFn func(ctx context.Context, userID string) (*services.PortfolioSummary, error)
}

func (m *mockAssetService) CreateAsset(ctx context.Context, userID string, in services.AssetInput) (*models.Asset, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID, in)
	}
	return &models.Asset{}, nil
}

func (m *mockAssetService) GetUserAssets(ctx context.Context, userID string, filter services.AssetFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Asset], error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID, filter, page)
	}
	resp := pagination.NewPageResponse[models.Asset](nil, page.Page, page.PageSize, 0)
	return &resp, nil
}

func (m *mockAssetService) GetAssetByID(ctx context.Context, userID, assetID string) (*models.Asset, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID, assetID)
	}
	return nil, nil
}

func (m *mockAssetService) SearchAssetsByName(ctx context.Context, userID, name string) ([]models.Asset, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, userID, name)
	}
	return nil, nil
}

func (m *mockAssetService) UpdateAsset(ctx context.Context, userID, assetID string, in services.AssetInput) (*models.Asset, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, userID, assetID, in)
	}
	return &models.Asset{}, nil
}

func (m *mockAssetService) PatchAsset(ctx context.Context, userID, assetID string, p services.AssetPatch) (*models.Asset, error) {
	if m.patchFn != nil {
		return m.patchFn(ctx, userID, assetID, p)
	}
	return &models.Asset{}, nil
}

func (m *mockAssetService) DeleteAsset(ctx context.Context, userID, assetID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, assetID)
	}
	return nil
}

func (m *mockAssetService) SimulateRedemption(ctx context.Context, userID, assetID string, asOf *time.Time) (*services.RedemptionQuote, error) {
	if m.redeemFn != nil {
		return m.redeemFn(ctx, userID, assetID, asOf)
	}
	return nil, nil
}

func (m *mockAssetService) GetPortfolio(ctx context.Context, userID string) (*services.PortfolioSummary, error) {
	if m.portfolioFn != nil {
		return m.portfolioFn(ctx, userID)
	}
	return &services.PortfolioSummary{}, nil
}

func sampleAsset() *models.Asset {
	a := &models.Asset{
		Name:         "CDB Banco X",
		Class:        models.AssetClassBankFixedIncome,
		Venue:        models.TradingVenueExchange,
		UnitPrice:    decimal.RequireFromString("1000"),
		Quantity:     1,
		Regime:       models.InterestRegimeFixed,
		FixedRate:    decimal.NewNullDecimal(decimal.RequireFromString("10")),
		IssueDate:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		MaturityDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Liquidity:    models.LiquidityDaily,
	}
	a.ID = "a1"
	a.UserID = "u1"
	return a
}

func TestNewCachingAssetService_Defaults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name              string
		ttl               time.Duration
		namespace         string
		expectedTTL       time.Duration
		expectedNamespace string
	}{
		{"zero values", 0, "", 5 * time.Minute, "assets"},
		{"negative ttl", -time.Minute, "", 5 * time.Minute, "assets"},
		{"custom values", time.Minute, "custom", time.Minute, "custom"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := NewCachingAssetService(nil, tt.ttl, &mockAssetService{}, tt.namespace)
			if svc.ttl != tt.expectedTTL {
				t.Errorf("expected ttl %v, got %v", tt.expectedTTL, svc.ttl)
			}
			if svc.namespace != tt.expectedNamespace {
				t.Errorf("expected namespace %q, got %q", tt.expectedNamespace, svc.namespace)
			}
		})
	}
}

func TestCachingAssetService_GetAssetByID_NilRedis(t *testing.T) {
	t.Parallel()

	calls := 0
	inner := &mockAssetService{
		getFn: func(ctx context.Context, userID, assetID string) (*models.Asset, error) {
			calls++
			return sampleAsset(), nil
		},
	}

	svc := NewCachingAssetService(nil, 0, inner, "")
	for i := 0; i < 2; i++ {
		if _, err := svc.GetAssetByID(context.Background(), "u1", "a1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if calls != 2 {
		t.Errorf("expected inner to be called twice, got %d", calls)
	}
}

func TestCachingAssetService_GetAssetByID_CacheHit(t *testing.T) {
	t.Parallel()

	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	cached, _ := json.Marshal(sampleAsset())
	mock.ExpectGet("assets:u1:asset:a1").SetVal(string(cached))

	innerCalled := false
	inner := &mockAssetService{
		getFn: func(ctx context.Context, userID, assetID string) (*models.Asset, error) {
			innerCalled = true
			return nil, nil
		},
	}

	svc := NewCachingAssetService(rdb, 5*time.Minute, inner, "assets")
	asset, err := svc.GetAssetByID(context.Background(), "u1", "a1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if innerCalled {
		t.Error("inner service should not be called on cache hit")
	}
	if asset.Name != "CDB Banco X" || !asset.UnitPrice.Equal(decimal.RequireFromString("1000")) {
		t.Errorf("unexpected asset from cache: %+v", asset)
	}
	if !asset.FixedRate.Valid || asset.IndexCode != nil {
		t.Errorf("nullable fields did not survive the round-trip: %+v", asset)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled mock expectations: %v", err)
	}
}

func TestCachingAssetService_GetAssetByID_CacheMiss(t *testing.T) {
	t.Parallel()

	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	asset := sampleAsset()
	expected, _ := json.Marshal(asset)

	mock.ExpectGet("assets:u1:asset:a1").RedisNil()
	mock.ExpectSet("assets:u1:asset:a1", expected, 5*time.Minute).SetVal("OK")

	inner := &mockAssetService{
		getFn: func(ctx context.Context, userID, assetID string) (*models.Asset, error) {
			return asset, nil
		},
	}

	svc := NewCachingAssetService(rdb, 5*time.Minute, inner, "assets")
	got, err := svc.GetAssetByID(context.Background(), "u1", "a1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != asset {
		t.Error("expected the inner asset to be returned")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled mock expectations: %v", err)
	}
}

func TestCachingAssetService_GetAssetByID_InnerError(t *testing.T) {
	t.Parallel()

	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	expectedErr := errors.New("database error")
	mock.ExpectGet("assets:u1:asset:a1").RedisNil()

	inner := &mockAssetService{
		getFn: func(ctx context.Context, userID, assetID string) (*models.Asset, error) {
			return nil, expectedErr
		},
	}

	svc := NewCachingAssetService(rdb, 5*time.Minute, inner, "assets")
	_, err := svc.GetAssetByID(context.Background(), "u1", "a1")
	if !errors.Is(err, expectedErr) {
		t.Errorf("expected error %v, got %v", expectedErr, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled mock expectations: %v", err)
	}
}

func TestCachingAssetService_GetAssetByID_CorruptedCache(t *testing.T) {
	t.Parallel()

	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	asset := sampleAsset()
	expected, _ := json.Marshal(asset)

	mock.ExpectGet("assets:u1:asset:a1").SetVal("invalid json")
	mock.ExpectDel("assets:u1:asset:a1").SetVal(1)
	mock.ExpectSet("assets:u1:asset:a1", expected, 5*time.Minute).SetVal("OK")

	inner := &mockAssetService{
		getFn: func(ctx context.Context, userID, assetID string) (*models.Asset, error) {
			return asset, nil
		},
	}

	svc := NewCachingAssetService(rdb, 5*time.Minute, inner, "assets")
	if _, err := svc.GetAssetByID(context.Background(), "u1", "a1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled mock expectations: %v", err)
	}
}

func TestCachingAssetService_GetUserAssets_KeyIncludesPageAndFilter(t *testing.T) {
	t.Parallel()

	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	page := pagination.NewPageResponse([]models.Asset{*sampleAsset()}, 2, 10, 11)
	expected, _ := json.Marshal(&page)

	key := "assets:u1:list:2:10:" + filterKey("cdb x")
	mock.ExpectGet(key).RedisNil()
	mock.ExpectSet(key, expected, 5*time.Minute).SetVal("OK")

	inner := &mockAssetService{
		listFn: func(ctx context.Context, userID string, filter services.AssetFilter, req pagination.PageRequest) (*pagination.PageResponse[models.Asset], error) {
			return &page, nil
		},
	}

	svc := NewCachingAssetService(rdb, 5*time.Minute, inner, "assets")
	got, err := svc.GetUserAssets(context.Background(), "u1", services.AssetFilter{Name: "CDB X"}, pagination.PageRequest{Page: 2, PageSize: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.TotalItems != 11 || len(got.Data) != 1 {
		t.Errorf("unexpected page: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled mock expectations: %v", err)
	}
}

func TestCachingAssetService_GetPortfolio_CacheHit(t *testing.T) {
	t.Parallel()

	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	summary := &services.PortfolioSummary{
		AssetCount:         1,
		TotalInvested:      decimal.RequireFromString("1000"),
		TotalExpectedYield: decimal.RequireFromString("1210.16"),
		ByClass: map[models.AssetClass]*services.ClassSummary{
			models.AssetClassBankFixedIncome: {Count: 1, Invested: decimal.RequireFromString("1000")},
		},
	}
	cached, _ := json.Marshal(summary)
	mock.ExpectGet("assets:u1:portfolio").SetVal(string(cached))

	svc := NewCachingAssetService(rdb, 5*time.Minute, &mockAssetService{
		portfolioFn: func(ctx context.Context, userID string) (*services.PortfolioSummary, error) {
			t.Error("inner service should not be called on cache hit")
			return nil, nil
		},
	}, "assets")

	got, err := svc.GetPortfolio(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.TotalExpectedYield.Equal(decimal.RequireFromString("1210.16")) {
		t.Errorf("expected total yield 1210.16, got %s", got.TotalExpectedYield)
	}
	if got.ByClass[models.AssetClassBankFixedIncome].Count != 1 {
		t.Errorf("expected class breakdown to survive, got %+v", got.ByClass)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled mock expectations: %v", err)
	}
}

func TestCachingAssetService_WritesInvalidateUserEntries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		write func(svc *CachingAssetService) error
	}{
		{"create", func(svc *CachingAssetService) error {
			_, err := svc.CreateAsset(context.Background(), "u1", services.AssetInput{})
			return err
		}},
		{"update", func(svc *CachingAssetService) error {
			_, err := svc.UpdateAsset(context.Background(), "u1", "a1", services.AssetInput{})
			return err
		}},
		{"patch", func(svc *CachingAssetService) error {
			_, err := svc.PatchAsset(context.Background(), "u1", "a1", services.AssetPatch{})
			return err
		}},
		{"delete", func(svc *CachingAssetService) error {
			return svc.DeleteAsset(context.Background(), "u1", "a1")
		}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rdb, mock := redismock.NewClientMock()
			defer func() { _ = rdb.Close() }()

			mock.ExpectScan(0, "assets:u1:*", 200).SetVal([]string{"assets:u1:asset:a1", "assets:u1:portfolio"}, 0)
			mock.ExpectDel("assets:u1:asset:a1", "assets:u1:portfolio").SetVal(2)

			svc := NewCachingAssetService(rdb, 5*time.Minute, &mockAssetService{}, "assets")
			if err := tt.write(svc); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled mock expectations: %v", err)
			}
		})
	}
}

func TestCachingAssetService_FailedWriteKeepsCache(t *testing.T) {
	t.Parallel()

	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	expectedErr := errors.New("not found")
	svc := NewCachingAssetService(rdb, 5*time.Minute, &mockAssetService{
		deleteFn: func(ctx context.Context, userID, assetID string) error { return expectedErr },
	}, "assets")

	if err := svc.DeleteAsset(context.Background(), "u1", "a1"); !errors.Is(err, expectedErr) {
		t.Errorf("expected error %v, got %v", expectedErr, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected redis calls: %v", err)
	}
}

func TestCachingAssetService_RedemptionIsNotCached(t *testing.T) {
	t.Parallel()

	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	calls := 0
	svc := NewCachingAssetService(rdb, 5*time.Minute, &mockAssetService{
		redeemFn: func(ctx context.Context, userID, assetID string, asOf *time.Time) (*services.RedemptionQuote, error) {
			calls++
			return &services.RedemptionQuote{}, nil
		},
	}, "assets")

	for i := 0; i < 2; i++ {
		if _, err := svc.SimulateRedemption(context.Background(), "u1", "a1", nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if calls != 2 {
		t.Errorf("expected inner to be called twice, got %d", calls)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected redis calls: %v", err)
	}
}

func TestCachingAssetService_GetUserAssets_DistinctFiltersDoNotShareEntries(t *testing.T) {
	t.Parallel()

	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	underscored := pagination.NewPageResponse([]models.Asset{{Name: "asset for a_b"}}, 1, 20, 1)
	fresh, _ := json.Marshal(&underscored)

	spacedKey := "assets:u1:list:1:20:" + filterKey("a b")
	underscoredKey := "assets:u1:list:1:20:" + filterKey("a_b")
	if spacedKey == underscoredKey {
		t.Fatalf("filters %q and %q map to the same key %s", "a b", "a_b", spacedKey)
	}

	mock.ExpectGet(underscoredKey).RedisNil()
	mock.ExpectSet(underscoredKey, fresh, 5*time.Minute).SetVal("OK")

	calls := 0
	inner := &mockAssetService{
		listFn: func(ctx context.Context, userID string, filter services.AssetFilter, req pagination.PageRequest) (*pagination.PageResponse[models.Asset], error) {
			calls++
			if filter.Name != "a_b" {
				t.Errorf("expected filter a_b, got %q", filter.Name)
			}
			return &underscored, nil
		},
	}

	svc := NewCachingAssetService(rdb, 5*time.Minute, inner, "assets")
	got, err := svc.GetUserAssets(context.Background(), "u1", services.AssetFilter{Name: "a_b"}, pagination.PageRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 || got.Data[0].Name != "asset for a_b" {
		t.Errorf("expected inner result for a_b, got %+v (calls=%d)", got.Data, calls)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled mock expectations: %v", err)
	}
}

func TestFilterKey(t *testing.T) {
	t.Parallel()

	if filterKey("CDB X") != filterKey("cdb x") {
		t.Error("expected case-insensitive filter keys")
	}
	seen := map[string]string{}
	for _, f := range []string{"", "a b", "a_b", "a:b", "a*b", "a?b", "[ab]", "_ab_"} {
		k := filterKey(f)
		if prev, ok := seen[k]; ok {
			t.Errorf("filters %q and %q share key %s", prev, f, k)
		}
		seen[k] = f
		if strings.ContainsAny(k, " :*?[]") {
			t.Errorf("filterKey(%q) = %q contains glob characters", f, k)
		}
	}
}

func TestSafe(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected string
	}{
		{"a1", "a1"},
		{"cdb x", "cdb_x"},
		{"key:value", "key_value"},
		{"a*b?", "a_b_"},
		{"[x]", "_x_"},
		{"", ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			if got := safe(tt.input); got != tt.expected {
				t.Errorf("safe(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}
