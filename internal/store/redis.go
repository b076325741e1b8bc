package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"coldchain-monitor/pipeline/internal/config"
	"coldchain-monitor/pipeline/internal/domain"
)

// RedisStore serves the fast-lookup concerns: per-entity thresholds,
// gateway API keys, and the fire-and-forget notification channel.
type RedisStore struct {
	client   *redis.Client
	defaults domain.Thresholds
}

func NewRedisStore(ctx context.Context, cfg *config.Config) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		PoolSize:     20,
		MinIdleConns: 5,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client, defaults: cfg.DefaultThresholds}, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Client() *redis.Client {
	return r.client
}

func ThresholdKey(entityID, component string) string {
	return fmt.Sprintf("threshold:%s:%s", entityID, component)
}

// ResolveThresholds looks up warning/critical/target for an entity.
// Fallback is component-wise: each missing component independently falls
// back to the threshold:default key and then to the configured default,
// so a partially configured entity still gets its stored values.
func (r *RedisStore) ResolveThresholds(ctx context.Context, entityID string) (domain.Thresholds, error) {
	keys := []string{
		ThresholdKey(entityID, "warning"),
		ThresholdKey(entityID, "critical"),
		ThresholdKey(entityID, "target"),
		ThresholdKey("default", "warning"),
		ThresholdKey("default", "critical"),
		ThresholdKey("default", "target"),
	}

	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return domain.Thresholds{}, fmt.Errorf("threshold lookup for %s: %w", entityID, err)
	}

	return domain.Thresholds{
		Warning:  pickComponent(vals[0], vals[3], r.defaults.Warning),
		Critical: pickComponent(vals[1], vals[4], r.defaults.Critical),
		Target:   pickComponent(vals[2], vals[5], r.defaults.Target),
	}, nil
}

func pickComponent(entity, fallback interface{}, def float64) float64 {
	if v, ok := parseComponent(entity); ok {
		return v
	}
	if v, ok := parseComponent(fallback); ok {
		return v
	}
	return def
}

func parseComponent(raw interface{}) (float64, bool) {
	s, ok := raw.(string)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func (r *RedisStore) GetAPIKey(ctx context.Context, apiKey string) (string, error) {
	key := fmt.Sprintf("gateway:auth:%s", apiKey)
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get api key failed: %w", err)
	}
	return val, nil
}

// Notifier publishes alert payloads to a pub/sub channel. Delivery is
// best-effort; subscribers that are not listening simply miss the message.
type Notifier struct {
	client  *redis.Client
	channel string
	enabled bool
}

func NewNotifier(client *redis.Client, channel string, enabled bool) *Notifier {
	return &Notifier{client: client, channel: channel, enabled: enabled}
}

func (n *Notifier) Notify(ctx context.Context, payload []byte) error {
	if !n.enabled {
		return nil
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("notify publish failed: %w", err)
	}
	return nil
}
