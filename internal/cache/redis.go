package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/compressed-token-wallet/internal/constants"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/models"
)

// RedisMetadataStore keeps one JSON value per mint under metadata:<mint>.
// Entries never expire and are never overwritten.
type RedisMetadataStore struct {
	client *redis.Client
	logger *logrus.Logger
}

func NewRedisMetadataStore(client *redis.Client, logger *logrus.Logger) (*RedisMetadataStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &RedisMetadataStore{client: client, logger: logger}, nil
}

func metadataKey(mint string) string { return constants.RedisKeyMetadataPrefix + mint }

// Find returns the stored rows among mints, in request order.
func (s *RedisMetadataStore) Find(ctx context.Context, mints []string) ([]models.TokenMetadata, error) {
	if len(mints) == 0 {
		return nil, nil
	}
	keys := make([]string, len(mints))
	for i, m := range mints {
		keys[i] = metadataKey(m)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget metadata: %w", err)
	}

	out := make([]models.TokenMetadata, 0, len(vals))
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var md models.TokenMetadata
		if err := json.Unmarshal([]byte(raw), &md); err != nil {
			s.logger.WithError(err).WithField("mint", mints[i]).Warn("skipping unreadable metadata entry")
			continue
		}
		out = append(out, md)
	}
	return out, nil
}

// InsertMissing stores rows whose mint has no entry yet.
func (s *RedisMetadataStore) InsertMissing(ctx context.Context, rows []models.TokenMetadata) error {
	if len(rows) == 0 {
		return nil
	}
	pipe := s.client.Pipeline()
	for _, row := range rows {
		b, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("marshal metadata %s: %w", row.Mint, err)
		}
		pipe.SetNX(ctx, metadataKey(row.Mint), b, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("insert metadata: %w", err)
	}
	return nil
}

func (s *RedisMetadataStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisMetadataStore) Close() error { return s.client.Close() }
