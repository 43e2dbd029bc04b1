// Package cache provides a Redis-backed read-through layer for the asset service.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"ativosaber/internal/models"
	"ativosaber/internal/pagination"
	"ativosaber/internal/services"
)

const (
	defaultTTL       = 5 * time.Minute
	defaultNamespace = "assets"
	scanBatch        = 200
)

// CachingAssetService decorates an AssetServicer with Redis caching of the
// per-user read paths. Every write invalidates all entries of the owning user.
// Redemption simulations depend on the current date and are never cached.
type CachingAssetService struct {
	inner     services.AssetServicer
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
}

var _ services.AssetServicer = (*CachingAssetService)(nil)

// NewCachingAssetService wraps inner. A nil rdb turns every call into a
// pass-through. If ttl is 0 it defaults to 5 minutes; an empty namespace uses "assets".
func NewCachingAssetService(rdb *redis.Client, ttl time.Duration, inner services.AssetServicer, namespace string) *CachingAssetService {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if namespace == "" {
		namespace = defaultNamespace
	}
	return &CachingAssetService{
		inner:     inner,
		rdb:       rdb,
		ttl:       ttl,
		namespace: namespace,
	}
}

func (c *CachingAssetService) CreateAsset(ctx context.Context, userID string, in services.AssetInput) (*models.Asset, error) {
	asset, err := c.inner.CreateAsset(ctx, userID, in)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, userID)
	return asset, nil
}

func (c *CachingAssetService) GetUserAssets(ctx context.Context, userID string, filter services.AssetFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Asset], error) {
	page.Defaults()
	key := c.key(userID, "list", fmt.Sprintf("%d:%d:%s", page.Page, page.PageSize, filterKey(filter.Name)))
	return readThrough(ctx, c, key, func() (*pagination.PageResponse[models.Asset], error) {
		return c.inner.GetUserAssets(ctx, userID, filter, page)
	})
}

func (c *CachingAssetService) GetAssetByID(ctx context.Context, userID, assetID string) (*models.Asset, error) {
	key := c.key(userID, "asset", safe(assetID))
	return readThrough(ctx, c, key, func() (*models.Asset, error) {
		return c.inner.GetAssetByID(ctx, userID, assetID)
	})
}

func (c *CachingAssetService) SearchAssetsByName(ctx context.Context, userID, name string) ([]models.Asset, error) {
	return c.inner.SearchAssetsByName(ctx, userID, name)
}

func (c *CachingAssetService) UpdateAsset(ctx context.Context, userID, assetID string, in services.AssetInput) (*models.Asset, error) {
	asset, err := c.inner.UpdateAsset(ctx, userID, assetID, in)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, userID)
	return asset, nil
}

func (c *CachingAssetService) PatchAsset(ctx context.Context, userID, assetID string, p services.AssetPatch) (*models.Asset, error) {
	asset, err := c.inner.PatchAsset(ctx, userID, assetID, p)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, userID)
	return asset, nil
}

func (c *CachingAssetService) DeleteAsset(ctx context.Context, userID, assetID string) error {
	if err := c.inner.DeleteAsset(ctx, userID, assetID); err != nil {
		return err
	}
	c.invalidate(ctx, userID)
	return nil
}

func (c *CachingAssetService) SimulateRedemption(ctx context.Context, userID, assetID string, asOf *time.Time) (*services.RedemptionQuote, error) {
	return c.inner.SimulateRedemption(ctx, userID, assetID, asOf)
}

func (c *CachingAssetService) GetPortfolio(ctx context.Context, userID string) (*services.PortfolioSummary, error) {
	key := c.key(userID, "portfolio")
	return readThrough(ctx, c, key, func() (*services.PortfolioSummary, error) {
		return c.inner.GetPortfolio(ctx, userID)
	})
}

// readThrough serves key from Redis, falling back to load and storing its
// result. Corrupted entries are deleted. Cache failures never surface to the caller.
func readThrough[T any](ctx context.Context, c *CachingAssetService, key string, load func() (*T, error)) (*T, error) {
	if c.rdb == nil {
		return load()
	}

	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var out T
		if err := json.Unmarshal(b, &out); err == nil {
			return &out, nil
		}
		_ = c.rdb.Del(ctx, key).Err()
	}

	out, err := load()
	if err != nil {
		return nil, err
	}

	if b, err := json.Marshal(out); err == nil {
		_ = c.rdb.Set(ctx, key, b, c.ttl).Err()
	}
	return out, nil
}

// invalidate drops every cached entry of userID, best effort.
func (c *CachingAssetService) invalidate(ctx context.Context, userID string) {
	if c.rdb == nil {
		return
	}
	_ = c.deleteByPattern(ctx, c.userPrefix(userID)+"*")
}

func (c *CachingAssetService) userPrefix(userID string) string {
	return c.namespace + ":" + safe(userID) + ":"
}

func (c *CachingAssetService) key(userID string, parts ...string) string {
	return c.userPrefix(userID) + strings.Join(parts, ":")
}

// deleteByPattern deletes all keys matching pattern using SCAN.
func (c *CachingAssetService) deleteByPattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, cur, err := c.rdb.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = cur
		if cursor == 0 {
			return nil
		}
	}
}

// safe escapes characters that are problematic in Redis keys and glob patterns.
func safe(s string) string {
	return keyEscaper.Replace(s)
}

// filterKey maps a name filter to a fixed-width key segment. Filters that
// differ only in case share an entry, matching the case-insensitive query.
func filterKey(name string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(name)))
	return hex.EncodeToString(sum[:])
}

var keyEscaper = strings.NewReplacer(" ", "_", ":", "_", "*", "_", "?", "_", "[", "_", "]", "_")
