package storage

import (
	"context"
	"io"

	"github.com/aman-zulfiqar/compressed-token-wallet/internal/models"
)

// MetadataStore is the durable metadata cache behind GET/POST /metadata.
type MetadataStore interface {
	// Find returns the stored rows for mints. Unknown mints are omitted.
	Find(ctx context.Context, mints []string) ([]models.TokenMetadata, error)

	// InsertMissing stores rows whose mint is not yet present. Existing rows
	// are left untouched and duplicates are not an error.
	InsertMissing(ctx context.Context, rows []models.TokenMetadata) error

	// Ping checks if the store is reachable
	Ping(ctx context.Context) error

	// Close closes the store connection
	io.Closer
}

// ActionLog is the append-only history of submitted actions.
type ActionLog interface {
	InsertAction(ctx context.Context, event *models.ActionEvent) error
	Ping(ctx context.Context) error
	io.Closer
}

// ActionPublisher fans out action events to live subscribers.
type ActionPublisher interface {
	PublishAction(ctx context.Context, event *models.ActionEvent) error
}
