package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/aman-zulfiqar/compressed-token-wallet/internal/models"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/storage"
)

const schema = `
	CREATE TABLE IF NOT EXISTS token_metadata (
		mint       TEXT PRIMARY KEY,
		symbol     TEXT NOT NULL,
		image      TEXT NOT NULL,
		decimals   INTEGER NOT NULL CHECK (decimals >= 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)
`

// MetadataStore implements storage.MetadataStore on a token_metadata table
// keyed by mint.
type MetadataStore struct {
	pool *Pool
}

func NewMetadataStore(pool *Pool) *MetadataStore {
	return &MetadataStore{pool: pool}
}

// Compile-time interface check.
var _ storage.MetadataStore = (*MetadataStore)(nil)

// EnsureSchema creates the table when absent.
func (s *MetadataStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create token_metadata: %w", err)
	}
	return nil
}

// Find returns stored rows among mints in request order.
func (s *MetadataStore) Find(ctx context.Context, mints []string) ([]models.TokenMetadata, error) {
	if len(mints) == 0 {
		return nil, nil
	}
	query := `
		SELECT mint, symbol, image, decimals, created_at
		FROM token_metadata
		WHERE mint = ANY($1)
	`
	rows, err := s.pool.Query(ctx, query, mints)
	if err != nil {
		return nil, fmt.Errorf("find token metadata: %w", err)
	}
	found, err := pgx.CollectRows(rows, scanMetadata)
	if err != nil {
		return nil, fmt.Errorf("scan token metadata: %w", err)
	}

	byMint := make(map[string]models.TokenMetadata, len(found))
	for _, m := range found {
		byMint[m.Mint] = m
	}
	out := make([]models.TokenMetadata, 0, len(found))
	for _, mint := range mints {
		if m, ok := byMint[mint]; ok {
			out = append(out, m)
			delete(byMint, mint)
		}
	}
	return out, nil
}

// InsertMissing inserts rows in one batch; existing mints are left as is.
func (s *MetadataStore) InsertMissing(ctx context.Context, rows []models.TokenMetadata) error {
	if len(rows) == 0 {
		return nil
	}
	query := `
		INSERT INTO token_metadata (mint, symbol, image, decimals, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (mint) DO NOTHING
	`
	batch := &pgx.Batch{}
	now := time.Now().UTC()
	for _, row := range rows {
		created := row.CreatedAt
		if created.IsZero() {
			created = now
		}
		batch.Queue(query, row.Mint, row.Symbol, row.Image, row.Decimals, created)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert token metadata: %w", err)
	}
	return nil
}

func (s *MetadataStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *MetadataStore) Close() error {
	s.pool.Close()
	return nil
}

func scanMetadata(row pgx.CollectableRow) (models.TokenMetadata, error) {
	var m models.TokenMetadata
	err := row.Scan(&m.Mint, &m.Symbol, &m.Image, &m.Decimals, &m.CreatedAt)
	return m, err
}
