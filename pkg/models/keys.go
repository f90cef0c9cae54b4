package models

import "strings"

const (
	assetKeyPrefix     = "asset:"
	priceChannelPrefix = "prices."

	StatusKey        = "feed:status"
	StatusChannel    = "status.feed"
	ThresholdChannel = "thresholds"
	ModeChannel      = "feed.mode"
)

// AssetKey is the Redis key holding the latest FeedEvent of an asset.
func AssetKey(id string) string { return assetKeyPrefix + id }

// PriceChannel is the Redis pub/sub channel for an asset.
func PriceChannel(id string) string { return priceChannelPrefix + id }

// AssetFromChannel extracts the asset id from a price channel name.
func AssetFromChannel(channel string) (string, bool) {
	id, ok := strings.CutPrefix(channel, priceChannelPrefix)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
