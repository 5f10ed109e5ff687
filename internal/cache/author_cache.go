// Package cache keeps short-lived copies of author records in Redis so
// feed pages do not hit Postgres for the same authors on every request.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/threadline/backend/internal/models"
)

const keyPrefix = "author:"

// cachedAuthor mirrors models.User including the fields hidden from API JSON
type cachedAuthor struct {
	ID             string `json:"id"`
	UserName       string `json:"userName"`
	FullName       string `json:"fullName"`
	AvatarPublicID string `json:"avatarPublicId"`
	AvatarURL      string `json:"avatarUrl"`
}

// AuthorCache is a Redis-backed author lookup cache
type AuthorCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAuthorCache creates an AuthorCache whose entries expire after ttl
func NewAuthorCache(client *redis.Client, ttl time.Duration) *AuthorCache {
	return &AuthorCache{client: client, ttl: ttl}
}

func key(id string) string {
	return keyPrefix + id
}

// Get returns the cached authors among ids in a single MGET. Misses are
// absent from the map.
func (c *AuthorCache) Get(ctx context.Context, ids []string) (map[string]*models.User, error) {
	found := make(map[string]*models.User, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = key(id)
	}
	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("author cache get: %w", err)
	}

	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		user, err := decode(raw)
		if err != nil {
			continue
		}
		found[user.ID] = user
	}
	return found, nil
}

// Set stores users in one pipelined round trip
func (c *AuthorCache) Set(ctx context.Context, users []models.User) error {
	if len(users) == 0 {
		return nil
	}
	pipe := c.client.Pipeline()
	for i := range users {
		payload, err := encode(&users[i])
		if err != nil {
			return err
		}
		pipe.Set(ctx, key(users[i].ID), payload, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("author cache set: %w", err)
	}
	return nil
}

func encode(u *models.User) ([]byte, error) {
	return json.Marshal(cachedAuthor{
		ID:             u.ID,
		UserName:       u.UserName,
		FullName:       u.FullName,
		AvatarPublicID: u.AvatarPublicID,
		AvatarURL:      u.AvatarURL,
	})
}

func decode(raw string) (*models.User, error) {
	var c cachedAuthor
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, err
	}
	if c.ID == "" {
		return nil, fmt.Errorf("cached author without id")
	}
	return &models.User{
		ID:             c.ID,
		UserName:       c.UserName,
		FullName:       c.FullName,
		AvatarPublicID: c.AvatarPublicID,
		AvatarURL:      c.AvatarURL,
	}, nil
}
