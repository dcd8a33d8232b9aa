package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aman-zulfiqar/compressed-token-wallet/internal/models"
)

// setupTestStore starts a PostgreSQL container and returns a store with the
// schema applied. Skips when no container provider is available.
func setupTestStore(t *testing.T) *MetadataStore {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err)

	store := NewMetadataStore(pool)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.EnsureSchema(ctx))
	return store
}

func TestMetadataStore_InsertMissingAndFind(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertMissing(ctx, []models.TokenMetadata{
		{Mint: "MintA", Symbol: "AAA", Image: "https://a", Decimals: 6},
		{Mint: "MintB", Symbol: "BBB", Image: "https://b", Decimals: 9},
	}))

	got, err := store.Find(ctx, []string{"MintB", "Unknown", "MintA"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "MintB", got[0].Mint)
	assert.Equal(t, 9, got[0].Decimals)
	assert.Equal(t, "MintA", got[1].Mint)
	assert.NotZero(t, got[1].CreatedAt)
}

func TestMetadataStore_DuplicateIsNotAnError(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertMissing(ctx, []models.TokenMetadata{{Mint: "MintA", Symbol: "AAA", Image: "https://a", Decimals: 6}}))
	require.NoError(t, store.InsertMissing(ctx, []models.TokenMetadata{
		{Mint: "MintA", Symbol: "ZZZ", Image: "https://z", Decimals: 2},
		{Mint: "MintA", Symbol: "YYY", Image: "https://y", Decimals: 3},
	}))

	got, err := store.Find(ctx, []string{"MintA"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "AAA", got[0].Symbol)
	assert.Equal(t, 6, got[0].Decimals)
}

func TestMetadataStore_EmptyInputs(t *testing.T) {
	store := NewMetadataStore(nil)
	ctx := context.Background()

	got, err := store.Find(ctx, nil)
	assert.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, store.InsertMissing(ctx, nil))
}
