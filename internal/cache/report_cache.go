package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/andresuchdata/stockpilot/internal/config"
	"github.com/redis/go-redis/v9"
)

const (
	reportKeyPrefix     = "stockpilot:report"
	reportScanBatchSize = 100
)

// Report names used as the first key segment.
const (
	ReportAnomalies       = "anomalies"
	ReportRecommendations = "recommendations"
	ReportPurchaseOrders  = "purchase_orders"
	ReportABC             = "abc"
	ReportKPI             = "kpi"
)

// Params identify one variant of a report, e.g. {"policy": "eoq"}.
type Params map[string]string

// ReportCache stores JSON-encoded engine reports shared between processes.
type ReportCache interface {
	Get(ctx context.Context, report string, params Params, dest any) (bool, error)
	Set(ctx context.Context, report string, params Params, value any) error
	InvalidateReport(ctx context.Context, report string) error
	InvalidateAll(ctx context.Context) error
	Close() error
}

type redisReportCache struct {
	client    *redis.Client
	ttl       time.Duration
	namespace string
}

type noopReportCache struct{}

// NewReportCache returns a Redis-backed cache, or a no-op cache when caching is disabled.
// namespace names the inventory the reports are computed from: caches with different
// namespaces never see or invalidate each other's reports.
func NewReportCache(cfg config.CacheConfig, namespace string) (ReportCache, error) {
	if !cfg.Enabled {
		return &noopReportCache{}, nil
	}

	client, ttl, err := dialRedis(cfg)
	if err != nil {
		return nil, err
	}

	return &redisReportCache{
		client:    client,
		ttl:       ttl,
		namespace: Namespace(namespace),
	}, nil
}

func NewNoopReportCache() ReportCache {
	return &noopReportCache{}
}

func (c *redisReportCache) Get(ctx context.Context, report string, params Params, dest any) (bool, error) {
	payload, err := c.client.Get(ctx, reportKey(c.namespace, report, params)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get failed: %w", err)
	}

	if err := json.Unmarshal(payload, dest); err != nil {
		return false, fmt.Errorf("decode %s report cache: %w", report, err)
	}
	return true, nil
}

func (c *redisReportCache) Set(ctx context.Context, report string, params Params, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s report cache: %w", report, err)
	}

	if err := c.client.Set(ctx, reportKey(c.namespace, report, params), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisReportCache) InvalidateReport(ctx context.Context, report string) error {
	_, err := deleteKeysWithPrefix(ctx, c.client, namespacePrefix(c.namespace)+report+":", reportScanBatchSize)
	return err
}

func (c *redisReportCache) InvalidateAll(ctx context.Context) error {
	_, err := deleteKeysWithPrefix(ctx, c.client, namespacePrefix(c.namespace), reportScanBatchSize)
	return err
}

func (c *redisReportCache) Close() error {
	return c.client.Close()
}

func (n *noopReportCache) Get(ctx context.Context, report string, params Params, dest any) (bool, error) {
	return false, nil
}

func (n *noopReportCache) Set(ctx context.Context, report string, params Params, value any) error {
	return nil
}

func (n *noopReportCache) InvalidateReport(ctx context.Context, report string) error {
	return nil
}

func (n *noopReportCache) InvalidateAll(ctx context.Context) error {
	return nil
}

func (n *noopReportCache) Close() error {
	return nil
}

// Namespace normalises an inventory name into a single key segment.
func Namespace(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "default"
	}
	return strings.ReplaceAll(name, ":", "-")
}

func namespacePrefix(namespace string) string {
	return fmt.Sprintf("%s:%s:", reportKeyPrefix, namespace)
}

func reportKey(namespace, report string, params Params) string {
	return fmt.Sprintf("%s%s:%s", namespacePrefix(namespace), report, paramsHash(params))
}

// paramsHash is stable across map order, key case and surrounding spaces.
func paramsHash(params Params) string {
	parts := make([]string, 0, len(params))
	for k, v := range params {
		k = strings.ToLower(strings.TrimSpace(k))
		v = strings.ToLower(strings.TrimSpace(v))
		if k == "" || v == "" {
			continue
		}
		parts = append(parts, k+"="+v)
	}

	if len(parts) == 0 {
		return "default"
	}

	sort.Strings(parts)
	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
