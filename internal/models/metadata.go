// ============================================================================
// models/metadata.go
// ============================================================================
package models

import "time"

// TokenMetadata is a cached display record for a mint. Rows are immutable once
// stored; a later insert of the same mint is ignored.
type TokenMetadata struct {
	Mint      string    `json:"mint"`
	Symbol    string    `json:"symbol"`
	Image     string    `json:"image"`
	Decimals  int       `json:"decimals"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}
