package mysql

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"bridgesnap/internal/application"
	"bridgesnap/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	snapshotCacheVersionKey = "bridgesnap:snapshots:version"
	snapshotCacheKeyPrefix  = "bridgesnap:snapshots:v"
	defaultCacheTTL         = time.Hour
)

type CacheConfig struct {
	Addr string
	TTL  time.Duration
}

// CachedRepository layers a Redis read cache over the MySQL archive. Every
// store bumps a version key, which invalidates all cached reads at once.
type CachedRepository struct {
	*Repository
	cache *redis.Client
	ttl   time.Duration
}

func NewCachedRepository(base *Repository, cfg CacheConfig) (*CachedRepository, error) {
	if base == nil {
		return nil, errors.New("base repository is required")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return &CachedRepository{Repository: base}, nil
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultCacheTTL
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &CachedRepository{Repository: base, cache: client, ttl: cfg.TTL}, nil
}

func (r *CachedRepository) StoreSnapshot(ctx context.Context, record domain.SnapshotRecord) error {
	if err := r.Repository.StoreSnapshot(ctx, record); err != nil {
		return err
	}
	if r.cache != nil {
		_ = r.cache.Incr(ctx, snapshotCacheVersionKey).Err()
	}
	return nil
}

func (r *CachedRepository) QuerySnapshots(ctx context.Context, filter application.SnapshotQueryFilter) ([]domain.SnapshotRecord, error) {
	if r.cache == nil {
		return r.Repository.QuerySnapshots(ctx, filter)
	}
	version, ok := r.cacheVersion(ctx)
	if !ok {
		return r.Repository.QuerySnapshots(ctx, filter)
	}
	key := snapshotCacheKey(version, filter)
	if cached, err := r.cache.Get(ctx, key).Result(); err == nil {
		var records []domain.SnapshotRecord
		if err := json.Unmarshal([]byte(cached), &records); err == nil {
			return records, nil
		}
	}

	records, err := r.Repository.QuerySnapshots(ctx, filter)
	if err != nil {
		return nil, err
	}
	if payload, err := json.Marshal(records); err == nil {
		_ = r.cache.Set(ctx, key, payload, r.ttl).Err()
	}
	return records, nil
}

func (r *CachedRepository) cacheVersion(ctx context.Context) (string, bool) {
	version, err := r.cache.Get(ctx, snapshotCacheVersionKey).Result()
	if err == nil {
		return version, true
	}
	if errors.Is(err, redis.Nil) {
		return "0", true
	}
	return "", false
}

func snapshotCacheKey(version string, filter application.SnapshotQueryFilter) string {
	var b strings.Builder
	b.Grow(96)
	b.WriteString(snapshotCacheKeyPrefix)
	b.WriteString(version)
	b.WriteString(":chain=")
	if filter.ChainID != nil {
		b.WriteString(strconv.FormatUint(*filter.ChainID, 10))
	} else {
		b.WriteString("all")
	}
	b.WriteString(":addr=")
	if filter.Address != "" {
		b.WriteString(strings.ToLower(filter.Address))
	} else {
		b.WriteString("any")
	}
	b.WriteString(":from=")
	if filter.FromBlock != nil {
		b.WriteString(strconv.FormatUint(*filter.FromBlock, 10))
	} else {
		b.WriteString("any")
	}
	b.WriteString(":to=")
	if filter.ToBlock != nil {
		b.WriteString(strconv.FormatUint(*filter.ToBlock, 10))
	} else {
		b.WriteString("any")
	}
	b.WriteString(":limit=")
	b.WriteString(strconv.Itoa(normalizeLimit(filter.Limit)))
	return b.String()
}
