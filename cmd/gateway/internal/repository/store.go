package repository

import (
	"context"

	"github.com/shubham-shewale/crypto-monitor/pkg/models"
)

type PriceStore interface {
	GetSnapshots(ctx context.Context, ids []string) ([]string, error)
	// GetStatus returns the latest feed status event, or "" before the first one.
	GetStatus(ctx context.Context) (string, error)
	SubscribeToFeed(ctx context.Context, id string) error
	UnsubscribeFromFeed(ctx context.Context, id string) error
	PublishThreshold(ctx context.Context, intent models.ThresholdIntent) error
	PublishMode(ctx context.Context, intent models.ModeIntent) error
	RunPubSub(ctx context.Context, onAsset func(id string, payload string), onStatus func(payload string))
	Close() error
}

type RateLimiter interface {
	Allow(ip string) (bool, error)
}
