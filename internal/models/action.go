// ============================================================================
// models/action.go
// ============================================================================
package models

import "time"

type ActionKind string

const (
	ActionCompress   ActionKind = "compress"
	ActionDecompress ActionKind = "decompress"
	ActionSwap       ActionKind = "swap"
)

func (k ActionKind) Valid() bool {
	switch k {
	case ActionCompress, ActionDecompress, ActionSwap:
		return true
	}
	return false
}

// ActionEvent records one submitted wallet action.
type ActionEvent struct {
	Signature  string     `json:"signature"`
	Kind       ActionKind `json:"kind"`
	Owner      string     `json:"owner"`
	Mint       string     `json:"mint"`
	OutputMint string     `json:"output_mint,omitempty"` // swap only
	Amount     uint64     `json:"amount"`                // raw units of Mint
	Timestamp  time.Time  `json:"timestamp"`
	Success    bool       `json:"success"`
	Error      string     `json:"error,omitempty"`
}
