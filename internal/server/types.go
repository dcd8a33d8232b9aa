package server

import (
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/portfolio"
)

// ErrorResponse represents a standardized error response format
type ErrorResponse struct {
	Error   string `json:"error"`             // Human-readable error message
	Code    int    `json:"code"`              // HTTP status code
	Details any    `json:"details,omitempty"` // Additional error details (dev mode only)
}

type HealthResponse struct {
	OK     bool              `json:"ok"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HoldingResponse is one holding with its amounts as strings, so raw values
// above 2^53 survive JSON clients.
type HoldingResponse struct {
	Mint           string                   `json:"mint"`
	Representation portfolio.Representation `json:"representation"`
	Amount         string                   `json:"amount"`
	UIAmount       string                   `json:"uiAmount"`
	Decimals       int                      `json:"decimals"`
	Symbol         string                   `json:"symbol"`
	Image          string                   `json:"image"`
	PricePerToken  float64                  `json:"pricePerToken"`
	Value          float64                  `json:"value"`
	MetadataFound  bool                     `json:"metadataFound"`
}

func toHoldingResponse(h portfolio.Holding) HoldingResponse {
	return HoldingResponse{
		Mint:           h.Mint,
		Representation: h.Representation,
		Amount:         h.Amount.String(),
		UIAmount:       h.UIAmount(),
		Decimals:       h.Decimals,
		Symbol:         h.Symbol,
		Image:          h.Image,
		PricePerToken:  h.PricePerToken,
		Value:          h.Value(),
		MetadataFound:  h.MetadataFound,
	}
}

type HoldingsResponse struct {
	Owner string            `json:"owner"`
	Items []HoldingResponse `json:"items"`
}

// OnChainMetadataResponse is the body of GET /onchain-metadata/:mint. A miss
// is all zero values.
type OnChainMetadataResponse struct {
	Symbol   string `json:"symbol"`
	Image    string `json:"image"`
	Decimals int    `json:"decimals"`
}

// FlagUpsertRequest represents a request to create or update a feature flag
type FlagUpsertRequest struct {
	Key   string `json:"key"`   // Flag key (must match regex pattern)
	Value bool   `json:"value"` // Flag value (true/false)
}

// FlagUpdateRequest represents a request to update an existing feature flag
type FlagUpdateRequest struct {
	Value bool `json:"value"` // New flag value
}
