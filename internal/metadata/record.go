// Package metadata resolves mints to display metadata and prices through an
// ordered chain of sources.
package metadata

import (
	"context"

	"github.com/aman-zulfiqar/compressed-token-wallet/internal/models"
)

// Record is display metadata for one mint. Found is false when no source
// knew the mint; Symbol, Image and Decimals are then zero.
type Record struct {
	Mint     string `json:"mint"`
	Symbol   string `json:"symbol"`
	Image    string `json:"image"`
	Decimals int    `json:"decimals"`
	Found    bool   `json:"found"`
}

// Priced is a Record with its USD price. A price of 0 means unknown.
type Priced struct {
	Record
	PricePerToken float64 `json:"pricePerToken"`
}

// NotFound is the record returned when every source misses.
func NotFound(mint string) Record {
	return Record{Mint: mint}
}

// Model converts r to its cache row.
func (r Record) Model() models.TokenMetadata {
	return models.TokenMetadata{Mint: r.Mint, Symbol: r.Symbol, Image: r.Image, Decimals: r.Decimals}
}

// FromModel converts a cache row. Stored rows are always found records.
func FromModel(m models.TokenMetadata) Record {
	return Record{Mint: m.Mint, Symbol: m.Symbol, Image: m.Image, Decimals: m.Decimals, Found: true}
}

// Hit is a source's answer for one mint.
type Hit struct {
	Record
	Price *float64 // price reported alongside the metadata, if any
}

// Source is one tier of the resolver. Lookup returns hits for the mints it
// knows; misses are simply absent.
type Source interface {
	Name() string
	Lookup(ctx context.Context, mints []string) (map[string]Hit, error)
}

// PriceSource is the price oracle.
type PriceSource interface {
	Prices(ctx context.Context, ids []string) (map[string]float64, error)
}

// Saver persists newly discovered records.
type Saver interface {
	InsertMissing(ctx context.Context, rows []models.TokenMetadata) error
}
