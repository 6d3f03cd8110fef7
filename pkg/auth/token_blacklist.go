package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	blacklistPrefix = "token:blacklist:"
	refreshPrefix   = "token:refresh:"
)

// TokenBlacklist manages revoked tokens using Redis
type TokenBlacklist struct {
	redis redis.Cmdable
}

// NewTokenBlacklist creates a new token blacklist service
func NewTokenBlacklist(redisClient redis.Cmdable) *TokenBlacklist {
	return &TokenBlacklist{redis: redisClient}
}

// Blacklist adds a token to the blacklist until its expiration
func (b *TokenBlacklist) Blacklist(ctx context.Context, tokenHash string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return b.redis.Set(ctx, blacklistPrefix+tokenHash, "1", ttl).Err()
}

// IsBlacklisted checks if a token is blacklisted
func (b *TokenBlacklist) IsBlacklisted(ctx context.Context, tokenHash string) (bool, error) {
	exists, err := b.redis.Exists(ctx, blacklistPrefix+tokenHash).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check blacklist: %w", err)
	}
	return exists > 0, nil
}

// StoreRefreshToken records a refresh token so it can be used exactly once.
func (b *TokenBlacklist) StoreRefreshToken(ctx context.Context, tokenHash, userID string, ttl time.Duration) error {
	return b.redis.Set(ctx, refreshPrefix+tokenHash, userID, ttl).Err()
}

// ConsumeRefreshToken validates and invalidates a refresh token (one-time use)
func (b *TokenBlacklist) ConsumeRefreshToken(ctx context.Context, tokenHash string) (string, error) {
	userID, err := b.redis.GetDel(ctx, refreshPrefix+tokenHash).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("refresh token not found or already used")
	}
	if err != nil {
		return "", fmt.Errorf("failed to validate refresh token: %w", err)
	}
	return userID, nil
}

// RevokeRefreshToken explicitly revokes a refresh token
func (b *TokenBlacklist) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	return b.redis.Del(ctx, refreshPrefix+tokenHash).Err()
}
