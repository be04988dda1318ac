package services

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"xandpulse/config"
	"xandpulse/logger"
	"xandpulse/models"
)

// CacheMode indicates which cache backend is active
type CacheMode string

const (
	CacheModeRedis    CacheMode = "redis"
	CacheModeInMemory CacheMode = "in-memory"
)

const (
	keyStats      = "stats"
	keyNodes      = "nodes"
	keyBaseline   = "baseline"
	nodeKeyPrefix = "node:"
)

// CacheItem for in-memory fallback
type CacheItem struct {
	Data      any
	ExpiresAt time.Time
}

// RefreshStatus describes the outcome of the latest refresh.
type RefreshStatus struct {
	LastAttempt time.Time `json:"last_attempt"`
	LastSuccess time.Time `json:"last_success"`
	LastError   string    `json:"last_error,omitempty"`
	Rounds      int       `json:"rounds"`
}

// CacheService holds the latest round for the HTTP layer. Every write also
// lands in memory, so an expired or unreachable Redis still leaves stale
// data to serve.
type CacheService struct {
	cfg        *config.Config
	aggregator *DataAggregator

	redis       *redis.Client
	redisCtx    context.Context
	redisCancel context.CancelFunc
	mode        CacheMode
	modeMutex   sync.RWMutex

	inMemoryStore sync.Map

	statusMutex sync.RWMutex
	status      RefreshStatus

	stopChan chan struct{}
	stopOnce sync.Once
}

func NewCacheService(cfg *config.Config, aggregator *DataAggregator) *CacheService {
	ctx, cancel := context.WithCancel(context.Background())

	cs := &CacheService{
		cfg:         cfg,
		aggregator:  aggregator,
		redisCtx:    ctx,
		redisCancel: cancel,
		stopChan:    make(chan struct{}),
		mode:        CacheModeInMemory,
	}

	if cfg.Redis.Enabled {
		cs.connectRedis()
	} else {
		logger.Info().Msg("redis disabled in config, using in-memory cache only")
	}

	return cs
}

func (cs *CacheService) connectRedis() {
	if cs.cfg.Redis.Address == "" {
		logger.Info().Msg("redis address not configured, using in-memory cache")
		return
	}

	options := &redis.Options{
		Addr:         cs.cfg.Redis.Address,
		Password:     cs.cfg.Redis.Password,
		DB:           cs.cfg.Redis.DB,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		PoolTimeout:  10 * time.Second,
	}

	if cs.cfg.Redis.UseTLS {
		options.TLSConfig = &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: true, // cloud providers with shared certs
		}
	}

	cs.redis = redis.NewClient(options)

	ctx, cancel := context.WithTimeout(cs.redisCtx, 10*time.Second)
	defer cancel()

	if err := cs.redis.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", cs.cfg.Redis.Address).Bool("tls", cs.cfg.Redis.UseTLS).
			Msg("redis connection failed, running in-memory")
		cs.setMode(CacheModeInMemory)
		return
	}

	logger.Info().Str("addr", cs.cfg.Redis.Address).Msg("redis connected")
	cs.setMode(CacheModeRedis)
}

func (cs *CacheService) setMode(mode CacheMode) {
	cs.modeMutex.Lock()
	defer cs.modeMutex.Unlock()

	if cs.mode != mode {
		cs.mode = mode
		logger.Info().Str("mode", string(mode)).Msg("cache mode changed")
	}
}

func (cs *CacheService) getMode() CacheMode {
	cs.modeMutex.RLock()
	defer cs.modeMutex.RUnlock()
	return cs.mode
}

// StartCacheWarmer restores the persisted baseline, runs a first round and
// starts the background loops.
func (cs *CacheService) StartCacheWarmer(ctx context.Context) {
	if avgs, ok := cs.GetBaseline(); ok {
		cs.aggregator.SetBaseline(avgs)
		logger.Info().
			Float64("net_avg_uptime", avgs.NetAvgUptime).
			Float64("net_avg_storage_usage", avgs.NetAvgStorageUsage).
			Float64("net_avg_activity", avgs.NetAvgActivity).
			Msg("restored scoring baseline")
	}

	cs.Refresh(ctx)

	go cs.runLoop(ctx, cs.cfg.RefreshIntervalDuration(), cs.Refresh)
	go cs.runLoop(ctx, cs.cfg.HealthCheckIntervalDuration(), func(context.Context) { cs.checkRedisHealth() })
}

func (cs *CacheService) Stop() {
	cs.stopOnce.Do(func() {
		close(cs.stopChan)
		cs.redisCancel()
		if cs.redis != nil {
			cs.redis.Close()
		}
	})
}

func (cs *CacheService) runLoop(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fn(ctx)
		case <-ctx.Done():
			return
		case <-cs.stopChan:
			return
		}
	}
}

// checkRedisHealth drops to in-memory when Redis stops answering and
// switches back, resyncing, once it recovers.
func (cs *CacheService) checkRedisHealth() {
	if cs.redis == nil {
		return
	}

	ctx, cancel := context.WithTimeout(cs.redisCtx, 2*time.Second)
	defer cancel()
	err := cs.redis.Ping(ctx).Err()

	switch cs.getMode() {
	case CacheModeRedis:
		if err != nil {
			logger.Warn().Err(err).Msg("redis health check failed")
			cs.setMode(CacheModeInMemory)
		}
	case CacheModeInMemory:
		if err == nil {
			cs.syncInMemoryToRedis()
			cs.setMode(CacheModeRedis)
		}
	}
}

func (cs *CacheService) syncInMemoryToRedis() {
	synced := 0
	cs.inMemoryStore.Range(func(key, value any) bool {
		item := value.(*CacheItem)
		if ttl := time.Until(item.ExpiresAt); ttl > 0 {
			if err := cs.setRedis(key.(string), item.Data, ttl); err == nil {
				synced++
			}
		}
		return true
	})
	logger.Info().Int("items", synced).Msg("synced in-memory cache to redis")
}

// Refresh runs one aggregation round and stores its output. On failure the
// previous round stays cached and is served as stale once it expires.
func (cs *CacheService) Refresh(ctx context.Context) {
	attempt := time.Now()
	round, err := cs.aggregator.Aggregate(ctx)

	cs.statusMutex.Lock()
	cs.status.LastAttempt = attempt
	if err != nil {
		cs.status.LastError = err.Error()
	} else {
		cs.status.LastError = ""
		cs.status.LastSuccess = attempt
		cs.status.Rounds++
	}
	cs.statusMutex.Unlock()

	if err != nil {
		logger.Warn().Err(err).Msg("cache refresh failed")
		return
	}
	cs.StoreRound(round)
}

// StoreRound caches nodes, stats, per-node entries and the next baseline.
func (cs *CacheService) StoreRound(round *Round) {
	ttl := cs.cfg.CacheTTLDuration()

	cs.Set(keyStats, round.Stats, ttl)
	cs.Set(keyNodes, round.Nodes, ttl)
	current := make(map[string]struct{}, len(round.Nodes))
	for _, n := range round.Nodes {
		key := nodeKeyPrefix + n.PublicKey
		current[key] = struct{}{}
		cs.Set(key, n, ttl)
	}
	cs.pruneNodeKeys(current)

	if avgs, ok := cs.aggregator.Baseline(); ok {
		cs.Set(keyBaseline, avgs, cs.cfg.BaselineTTLDuration())
	}

	logger.Debug().Int("nodes", len(round.Nodes)).Str("mode", string(cs.getMode())).Msg("cache updated")
}

// ============================================
// Generic Set/Get with Redis + In-Memory
// ============================================

func (cs *CacheService) Set(key string, data any, ttl time.Duration) {
	cs.setInMemory(key, data, ttl)

	if cs.getMode() == CacheModeRedis {
		if err := cs.setRedis(key, data, ttl); err != nil {
			logger.Warn().Err(err).Str("key", key).Msg("redis SET failed")
		}
	}
}

// GetWithStale returns the cached value for key and whether it is past its
// TTL. Redis only holds live entries; stale data comes from memory.
func (cs *CacheService) GetWithStale(key string) (data any, stale bool, found bool) {
	if cs.getMode() == CacheModeRedis {
		data, found, err := cs.getRedis(key)
		if err == nil && found {
			return data, false, true
		}
		if err != nil {
			logger.Debug().Err(err).Str("key", key).Msg("redis GET failed")
		}
	}
	return cs.getInMemoryWithStale(key)
}

func (cs *CacheService) setRedis(key string, data any, ttl time.Duration) error {
	if cs.redis == nil {
		return errors.New("redis client not initialized")
	}

	ctx, cancel := context.WithTimeout(cs.redisCtx, 2*time.Second)
	defer cancel()

	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}

	return cs.redis.Set(ctx, key, jsonData, ttl).Err()
}

func (cs *CacheService) getRedis(key string) (any, bool, error) {
	if cs.redis == nil {
		return nil, false, errors.New("redis client not initialized")
	}

	ctx, cancel := context.WithTimeout(cs.redisCtx, 2*time.Second)
	defer cancel()

	raw, err := cs.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	// Values are stored as JSON; decode into the type the key holds.
	var data any
	switch {
	case key == keyStats:
		data, err = decode[models.NetworkStats](raw)
	case key == keyNodes:
		data, err = decode[[]models.CanonicalNode](raw)
	case key == keyBaseline:
		data, err = decode[models.NetworkAverages](raw)
	case strings.HasPrefix(key, nodeKeyPrefix):
		data, err = decode[models.CanonicalNode](raw)
	default:
		err = json.Unmarshal(raw, &data)
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func decode[T any](raw []byte) (T, error) {
	var v T
	err := json.Unmarshal(raw, &v)
	return v, err
}

func (cs *CacheService) setInMemory(key string, data any, ttl time.Duration) {
	cs.inMemoryStore.Store(key, &CacheItem{
		Data:      data,
		ExpiresAt: time.Now().Add(ttl),
	})
}

// pruneNodeKeys drops in-memory node entries that the latest round did not
// write. Redis copies expire on their own TTL.
func (cs *CacheService) pruneNodeKeys(current map[string]struct{}) {
	cs.inMemoryStore.Range(func(key, _ any) bool {
		k := key.(string)
		if !strings.HasPrefix(k, nodeKeyPrefix) {
			return true
		}
		if _, ok := current[k]; !ok {
			cs.inMemoryStore.Delete(k)
		}
		return true
	})
}

func (cs *CacheService) getInMemoryWithStale(key string) (any, bool, bool) {
	val, ok := cs.inMemoryStore.Load(key)
	if !ok {
		return nil, false, false
	}

	item := val.(*CacheItem)
	return item.Data, time.Now().After(item.ExpiresAt), true
}

// ============================================
// Typed Helper Methods
// ============================================

func getTyped[T any](cs *CacheService, key string, allowStale bool) (T, bool, bool) {
	var zero T
	data, stale, found := cs.GetWithStale(key)
	if !found || (stale && !allowStale) {
		return zero, false, false
	}
	v, ok := data.(T)
	if !ok {
		return zero, false, false
	}
	return v, stale, true
}

func (cs *CacheService) GetNetworkStats(allowStale bool) (*models.NetworkStats, bool, bool) {
	stats, stale, found := getTyped[models.NetworkStats](cs, keyStats, allowStale)
	if !found {
		return nil, false, false
	}
	return &stats, stale, true
}

func (cs *CacheService) GetNodes(allowStale bool) ([]models.CanonicalNode, bool, bool) {
	return getTyped[[]models.CanonicalNode](cs, keyNodes, allowStale)
}

// GetNode looks a node up by public key, then by IP in the node list.
func (cs *CacheService) GetNode(id string, allowStale bool) (*models.CanonicalNode, bool, bool) {
	if node, stale, found := getTyped[models.CanonicalNode](cs, nodeKeyPrefix+id, allowStale); found {
		return &node, stale, true
	}

	nodes, stale, found := cs.GetNodes(allowStale)
	if !found {
		return nil, false, false
	}
	for i := range nodes {
		if nodes[i].IPAddress == id || nodes[i].PublicKey == id {
			return &nodes[i], stale, true
		}
	}
	return nil, false, false
}

func (cs *CacheService) GetBaseline() (models.NetworkAverages, bool) {
	avgs, _, found := getTyped[models.NetworkAverages](cs, keyBaseline, false)
	return avgs, found
}

// ============================================
// Utility Methods
// ============================================

func (cs *CacheService) GetCacheMode() CacheMode {
	return cs.getMode()
}

func (cs *CacheService) RefreshStatus() RefreshStatus {
	cs.statusMutex.RLock()
	defer cs.statusMutex.RUnlock()
	return cs.status
}

// ClearCache drops every cached round. The scoring baseline is kept unless
// withBaseline is set, in which case the next round is a cold start.
func (cs *CacheService) ClearCache(withBaseline bool) error {
	keys := []string{keyStats, keyNodes}
	if withBaseline {
		keys = append(keys, keyBaseline)
		cs.aggregator.ResetBaseline()
	}

	if cs.getMode() == CacheModeRedis && cs.redis != nil {
		ctx, cancel := context.WithTimeout(cs.redisCtx, 5*time.Second)
		defer cancel()

		iter := cs.redis.Scan(ctx, 0, nodeKeyPrefix+"*", 0).Iterator()
		deleted := 0
		for iter.Next(ctx) {
			cs.redis.Del(ctx, iter.Val())
			deleted++
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("failed to scan node keys: %w", err)
		}
		if err := cs.redis.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("failed to delete cache keys: %w", err)
		}
		logger.Info().Int("node_keys", deleted).Msg("redis cache cleared")
	}

	cs.inMemoryStore.Range(func(key, _ any) bool {
		k := key.(string)
		if k != keyBaseline || withBaseline {
			cs.inMemoryStore.Delete(k)
		}
		return true
	})
	logger.Info().Bool("baseline", withBaseline).Msg("in-memory cache cleared")

	return nil
}

func (cs *CacheService) GetCacheStats() map[string]any {
	stats := map[string]any{
		"mode":    string(cs.getMode()),
		"enabled": cs.cfg.Redis.Enabled,
		"refresh": cs.RefreshStatus(),
	}

	if cs.getMode() == CacheModeRedis && cs.redis != nil {
		ctx, cancel := context.WithTimeout(cs.redisCtx, 2*time.Second)
		defer cancel()

		if dbSize, err := cs.redis.DBSize(ctx).Result(); err == nil {
			stats["redis_keys"] = dbSize
		}
	}

	inMemCount := 0
	cs.inMemoryStore.Range(func(_, _ any) bool {
		inMemCount++
		return true
	})
	stats["in_memory_keys"] = inMemCount

	if avgs, ok := cs.aggregator.Baseline(); ok {
		stats["baseline"] = avgs
	}

	return stats
}
