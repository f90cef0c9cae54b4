package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/shubham-shewale/crypto-monitor/pkg/models"
)

// Compile-time check to ensure RedisStore implements PriceStore
var _ PriceStore = (*RedisStore)(nil)

type RedisStore struct {
	client *redis.Client
	pubsub *redis.PubSub
	mu     sync.Mutex // guards pubsub subscription changes
}

// NewRedisStore opens one shared subscription. The status channel is always
// on it; asset channels come and go with client interest.
func NewRedisStore(client *redis.Client) *RedisStore {
	ps := client.Subscribe(context.Background(), models.StatusChannel)
	return &RedisStore{
		client: client,
		pubsub: ps,
	}
}

// GetSnapshots fetches the latest event of each asset (MGET). Missing assets
// are skipped; the order of ids is kept.
func (r *RedisStore) GetSnapshots(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = models.AssetKey(id)
	}

	results, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	var snapshots []string
	for _, val := range results {
		if payload, ok := val.(string); ok && payload != "" {
			snapshots = append(snapshots, payload)
		}
	}
	return snapshots, nil
}

func (r *RedisStore) GetStatus(ctx context.Context) (string, error) {
	val, err := r.client.Get(ctx, models.StatusKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}

func (r *RedisStore) SubscribeToFeed(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pubsub.Subscribe(ctx, models.PriceChannel(id))
}

func (r *RedisStore) UnsubscribeFromFeed(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pubsub.Unsubscribe(ctx, models.PriceChannel(id))
}

func (r *RedisStore) PublishThreshold(ctx context.Context, intent models.ThresholdIntent) error {
	return r.publish(ctx, models.ThresholdChannel, intent)
}

func (r *RedisStore) PublishMode(ctx context.Context, intent models.ModeIntent) error {
	return r.publish(ctx, models.ModeChannel, intent)
}

func (r *RedisStore) publish(ctx context.Context, channel string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

// RunPubSub blocks until ctx is done or the store is closed, routing each
// message to onAsset or onStatus.
func (r *RedisStore) RunPubSub(ctx context.Context, onAsset func(id string, payload string), onStatus func(payload string)) {
	ch := r.pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if msg.Channel == models.StatusChannel {
				onStatus(msg.Payload)
				continue
			}
			if id, ok := models.AssetFromChannel(msg.Channel); ok {
				onAsset(id, msg.Payload)
			}
		}
	}
}

func (r *RedisStore) Close() error {
	if err := r.pubsub.Close(); err != nil {
		return err
	}
	return r.client.Close()
}
