package rpc

import (
	"context"
	"fmt"
	"math/big"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
)

// Ledger RPC helpers. All reads use base64 encoding unless stated otherwise.

// GetAccountInfo returns nil without error when the account does not exist.
func (c *Client) GetAccountInfo(ctx context.Context, pubkey solana.PublicKey, commitment string) (*AccountInfo, error) {
	var out struct {
		Context contextSlot  `json:"context"`
		Value   *AccountInfo `json:"value"`
	}
	params := []any{
		pubkey.String(),
		map[string]any{"encoding": "base64", "commitment": commitmentOrDefault(commitment)},
	}
	if err := c.CallResult(ctx, "getAccountInfo", params, &out); err != nil {
		return nil, err
	}
	return out.Value, nil
}

// GetMultipleAccounts returns one entry per key, nil for missing accounts.
func (c *Client) GetMultipleAccounts(ctx context.Context, pubkeys []solana.PublicKey, commitment string) ([]*AccountInfo, error) {
	if len(pubkeys) == 0 {
		return nil, nil
	}
	keys := make([]string, len(pubkeys))
	for i, pk := range pubkeys {
		keys[i] = pk.String()
	}
	var out struct {
		Context contextSlot    `json:"context"`
		Value   []*AccountInfo `json:"value"`
	}
	params := []any{
		keys,
		map[string]any{"encoding": "base64", "commitment": commitmentOrDefault(commitment)},
	}
	if err := c.CallResult(ctx, "getMultipleAccounts", params, &out); err != nil {
		return nil, err
	}
	if len(out.Value) != len(pubkeys) {
		return nil, fmt.Errorf("getMultipleAccounts: expected %d accounts, got %d", len(pubkeys), len(out.Value))
	}
	return out.Value, nil
}

// AccountExists checks if an account exists on-chain (getAccountInfo != nil).
func (c *Client) AccountExists(ctx context.Context, pubkey solana.PublicKey) (bool, error) {
	info, err := c.GetAccountInfo(ctx, pubkey, "")
	if err != nil {
		return false, err
	}
	return info != nil, nil
}

// TokenAccountBalance returns the raw amount held by an SPL token account.
// exists is false when the account has not been created.
func (c *Client) TokenAccountBalance(ctx context.Context, account solana.PublicKey) (amount *big.Int, exists bool, err error) {
	info, err := c.GetAccountInfo(ctx, account, "")
	if err != nil {
		return nil, false, err
	}
	if info == nil {
		return new(big.Int), false, nil
	}
	data, err := info.Bytes()
	if err != nil {
		return nil, true, fmt.Errorf("decode token account %s: %w", account, err)
	}
	var acct token.Account
	if err := bin.NewBinDecoder(data).Decode(&acct); err != nil {
		return nil, true, fmt.Errorf("decode token account %s: %w", account, err)
	}
	return new(big.Int).SetUint64(acct.Amount), true, nil
}

// GetTokenAccountsByOwner lists SPL token accounts owned by owner under the
// classic token program, decoded with jsonParsed.
func (c *Client) GetTokenAccountsByOwner(ctx context.Context, owner solana.PublicKey) ([]ParsedTokenAccount, error) {
	var out struct {
		Context contextSlot          `json:"context"`
		Value   []ParsedTokenAccount `json:"value"`
	}
	params := []any{
		owner.String(),
		map[string]any{"programId": solana.TokenProgramID.String()},
		map[string]any{"encoding": "jsonParsed", "commitment": commitmentOrDefault("")},
	}
	if err := c.CallResult(ctx, "getTokenAccountsByOwner", params, &out); err != nil {
		return nil, err
	}
	return out.Value, nil
}

// GetLatestBlockhash fetches the most recent blockhash with commitment level
func (c *Client) GetLatestBlockhash(ctx context.Context, commitment string) (solana.Hash, error) {
	var out struct {
		Context contextSlot     `json:"context"`
		Value   BlockhashResult `json:"value"`
	}
	params := []any{
		map[string]any{"commitment": commitmentOrDefault(commitment)},
	}
	if err := c.CallResult(ctx, "getLatestBlockhash", params, &out); err != nil {
		return solana.Hash{}, err
	}

	hash, err := solana.HashFromBase58(out.Value.Blockhash)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("invalid blockhash format: %w", err)
	}
	return hash, nil
}

func commitmentOrDefault(c string) string {
	if c == "" {
		return "confirmed"
	}
	return c
}
