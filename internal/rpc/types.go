package rpc

import (
	"encoding/base64"
	"errors"
	"fmt"
)

// RPCError represents a JSON-RPC error response
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return e.Message
}

// ErrServiceUnavailable matches every *ServiceError via errors.Is.
var ErrServiceUnavailable = errors.New("external service unavailable")

// ServiceError marks a transport-level failure talking to an external
// service, timeouts included.
type ServiceError struct {
	Service string
	Err     error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Service, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

func (e *ServiceError) Is(target error) bool { return target == ErrServiceUnavailable }

// TokenAmount represents token balance information
type TokenAmount struct {
	Amount         string   `json:"amount"`
	Decimals       int      `json:"decimals"`
	UIAmountString string   `json:"uiAmountString"`
	UIAmount       *float64 `json:"uiAmount"`
}

// AccountInfo is an account as returned with base64 encoding.
type AccountInfo struct {
	Lamports   uint64   `json:"lamports"`
	Owner      string   `json:"owner"`
	Data       []string `json:"data"` // [payload, "base64"]
	Executable bool     `json:"executable"`
	RentEpoch  uint64   `json:"rentEpoch"`
}

// Bytes decodes the account payload.
func (a *AccountInfo) Bytes() ([]byte, error) {
	if a == nil || len(a.Data) == 0 {
		return nil, nil
	}
	if len(a.Data) > 1 && a.Data[1] != "base64" {
		return nil, fmt.Errorf("unsupported account encoding %q", a.Data[1])
	}
	return base64.StdEncoding.DecodeString(a.Data[0])
}

// ParsedTokenAccount is one entry of getTokenAccountsByOwner with jsonParsed
// encoding.
type ParsedTokenAccount struct {
	Pubkey  string `json:"pubkey"`
	Account struct {
		Lamports uint64 `json:"lamports"`
		Owner    string `json:"owner"`
		Data     struct {
			Program string `json:"program"`
			Parsed  struct {
				Type string          `json:"type"`
				Info ParsedTokenInfo `json:"info"`
			} `json:"parsed"`
		} `json:"data"`
	} `json:"account"`
}

// ParsedTokenInfo is the "info" member of a parsed SPL token account.
type ParsedTokenInfo struct {
	Mint        string      `json:"mint"`
	Owner       string      `json:"owner"`
	State       string      `json:"state"`
	IsNative    bool        `json:"isNative"`
	TokenAmount TokenAmount `json:"tokenAmount"`
}

// BlockhashResult is the value of getLatestBlockhash.
type BlockhashResult struct {
	Blockhash            string `json:"blockhash"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

type contextSlot struct {
	Slot uint64 `json:"slot"`
}
