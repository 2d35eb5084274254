package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"salonbook/internal/domain"
	"salonbook/internal/models"
)

// RedisStore keeps the document under one key and its version under another,
// updating both in a WATCH transaction.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore creates a store using key as the document key.
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = "salonbook:document"
	}
	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) versionKey() string {
	return s.key + ":version"
}

// Load reads the stored document.
func (s *RedisStore) Load(ctx context.Context) (*models.Document, error) {
	vals, err := s.client.MGet(ctx, s.key, s.versionKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	body, ok := vals[0].(string)
	if !ok {
		return nil, domain.ErrNoDocument
	}

	var doc models.Document
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if v, ok := vals[1].(string); ok {
		doc.Version, _ = strconv.ParseInt(v, 10, 64)
	}
	return &doc, nil
}

// Save writes doc. A non-zero doc.Version must match the stored version.
func (s *RedisStore) Save(ctx context.Context, doc *models.Document) error {
	var next int64
	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, s.versionKey()).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if doc.Version != 0 && doc.Version != current {
			return domain.ErrVersionConflict
		}

		next = current + 1
		stored := *doc
		stored.Version = next
		body, err := json.Marshal(&stored)
		if err != nil {
			return fmt.Errorf("encode document: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.key, body, 0)
			pipe.Set(ctx, s.versionKey(), next, 0)
			return nil
		})
		return err
	}

	err := s.client.Watch(ctx, txf, s.key, s.versionKey())
	if errors.Is(err, redis.TxFailedErr) {
		return domain.ErrVersionConflict
	}
	if err != nil {
		return err
	}
	doc.Version = next
	return nil
}
