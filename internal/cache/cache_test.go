package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/compressed-token-wallet/internal/models"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/storage"
)

var (
	_ storage.MetadataStore   = (*RedisMetadataStore)(nil)
	_ storage.ActionLog       = (*ClickHouseStore)(nil)
	_ storage.ActionPublisher = (*PubSubManager)(nil)
)

func setupTestRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   2, // separate from the flags tests
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	require.NoError(t, client.FlushDB(ctx).Err())
	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		_ = client.Close()
	})
	return client
}

func quiet() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestActionChannels(t *testing.T) {
	assert.Equal(t, []string{"actions:all", "actions:kind:swap"}, ActionChannels(models.ActionSwap))
}

func TestRedisMetadataStore_InsertMissingKeepsFirst(t *testing.T) {
	client := setupTestRedis(t)
	store, err := NewRedisMetadataStore(client, quiet())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.InsertMissing(ctx, []models.TokenMetadata{
		{Mint: "M1", Symbol: "ONE", Image: "http://1", Decimals: 6},
	}))
	// duplicate mint is not an error and does not overwrite
	require.NoError(t, store.InsertMissing(ctx, []models.TokenMetadata{
		{Mint: "M1", Symbol: "CHANGED", Image: "http://x", Decimals: 9},
		{Mint: "M2", Symbol: "TWO", Image: "http://2", Decimals: 2},
	}))

	got, err := store.Find(ctx, []string{"M2", "missing", "M1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "TWO", got[0].Symbol)
	assert.Equal(t, "ONE", got[1].Symbol)
	assert.Equal(t, 6, got[1].Decimals)

	empty, err := store.Find(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestPubSubManager_PublishSubscribe(t *testing.T) {
	client := setupTestRedis(t)
	ps := NewPubSubManager(client, quiet())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan *models.ActionEvent, 1)
	go func() {
		_ = ps.Subscribe(ctx, "actions:kind:compress", func(ev *models.ActionEvent) {
			select {
			case got <- ev:
			default:
			}
		})
	}()

	ev := &models.ActionEvent{Signature: "sig", Kind: models.ActionCompress, Owner: "o", Mint: "m", Amount: 5, Success: true}
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-tick.C:
			require.NoError(t, ps.PublishAction(ctx, ev))
		case recv := <-got:
			assert.Equal(t, "sig", recv.Signature)
			assert.Equal(t, uint64(5), recv.Amount)
			return
		case <-ctx.Done():
			t.Fatal("no event received")
		}
	}
}
