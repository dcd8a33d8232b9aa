package metadata

import (
	"context"

	"github.com/aman-zulfiqar/compressed-token-wallet/internal/storage"
)

// StoreSource reads the cache tier straight from a MetadataStore, for
// processes that host the store themselves.
type StoreSource struct {
	store storage.MetadataStore
}

func NewStoreSource(store storage.MetadataStore) *StoreSource {
	return &StoreSource{store: store}
}

func (s *StoreSource) Name() string { return "store" }

func (s *StoreSource) Lookup(ctx context.Context, mints []string) (map[string]Hit, error) {
	rows, err := s.store.Find(ctx, mints)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Hit, len(rows))
	for _, row := range rows {
		out[row.Mint] = Hit{Record: FromModel(row)}
	}
	return out, nil
}
