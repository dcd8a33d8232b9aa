package wallet

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/compressed-token-wallet/internal/rpc"
)

// SignTx signs tx with the wallet key. The fee payer must be this wallet.
func (w *Wallet) SignTx(tx *solana.Transaction) error {
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(w.pub) {
			return &w.priv
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}
	return nil
}

// SendTx submits a signed transaction and returns its signature.
func (w *Wallet) SendTx(ctx context.Context, tx *solana.Transaction) (string, error) {
	encoded, err := encode(tx)
	if err != nil {
		return "", err
	}
	params := []any{
		encoded,
		map[string]any{
			"encoding":            "base64",
			"skipPreflight":       w.cfg.SkipPreflight,
			"preflightCommitment": w.cfg.PreflightCommitment,
			"maxRetries":          3,
		},
	}
	var sig string
	if err := w.rpc.CallResult(ctx, "sendTransaction", params, &sig); err != nil {
		return "", fmt.Errorf("sendTransaction failed: %w", err)
	}
	return sig, nil
}

// SimulationResult contains simulation output
type SimulationResult struct {
	Success       bool
	Error         string
	Logs          []string
	UnitsConsumed uint64
}

// SimulateTransaction runs tx without signature verification.
func (w *Wallet) SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*SimulationResult, error) {
	return Simulate(ctx, w.rpc, tx)
}

// Simulate runs tx against client with a fresh blockhash and no signature
// checks, so an unsigned transaction for any fee payer can be simulated.
func Simulate(ctx context.Context, client *rpc.Client, tx *solana.Transaction) (*SimulationResult, error) {
	encoded, err := encode(tx)
	if err != nil {
		return nil, err
	}
	var out struct {
		Value struct {
			Err           any      `json:"err"`
			Logs          []string `json:"logs"`
			UnitsConsumed uint64   `json:"unitsConsumed,omitempty"`
		} `json:"value"`
	}
	params := []any{
		encoded,
		map[string]any{
			"encoding":               "base64",
			"commitment":             "processed",
			"sigVerify":              false,
			"replaceRecentBlockhash": true,
		},
	}
	if err := client.CallResult(ctx, "simulateTransaction", params, &out); err != nil {
		return nil, fmt.Errorf("simulateTransaction failed: %w", err)
	}

	result := &SimulationResult{Logs: out.Value.Logs, UnitsConsumed: out.Value.UnitsConsumed, Success: true}
	if out.Value.Err != nil {
		result.Success = false
		result.Error = fmt.Sprintf("%v", out.Value.Err)
		return result, fmt.Errorf("simulation failed: %v", out.Value.Err)
	}
	return result, nil
}

// ConfirmTransaction polls getSignatureStatuses until the wallet commitment
// is reached, the transaction fails, or the confirm timeout passes.
func (w *Wallet) ConfirmTransaction(ctx context.Context, signature string) error {
	deadline := time.Now().Add(w.cfg.ConfirmTimeout)
	backoff := 500 * time.Millisecond
	maxBackoff := 4 * time.Second

	for time.Now().Before(deadline) {
		confirmed, err := w.checkSignatureStatus(ctx, signature)
		if err != nil {
			return fmt.Errorf("failed to check signature: %w", err)
		}
		if confirmed {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
	return fmt.Errorf("transaction confirmation timeout after %v", w.cfg.ConfirmTimeout)
}

func (w *Wallet) checkSignatureStatus(ctx context.Context, signature string) (bool, error) {
	var out struct {
		Value []*struct {
			Slot               uint64 `json:"slot"`
			Err                any    `json:"err"`
			ConfirmationStatus string `json:"confirmationStatus"`
		} `json:"value"`
	}
	params := []any{
		[]string{signature},
		map[string]any{"searchTransactionHistory": true},
	}
	if err := w.rpc.CallResult(ctx, "getSignatureStatuses", params, &out); err != nil {
		return false, err
	}
	if len(out.Value) == 0 || out.Value[0] == nil || out.Value[0].ConfirmationStatus == "" {
		return false, nil // Not yet processed
	}

	status := out.Value[0]
	if status.Err != nil {
		return false, fmt.Errorf("transaction failed: %v", status.Err)
	}

	switch w.cfg.Commitment {
	case "confirmed":
		return status.ConfirmationStatus == "confirmed" || status.ConfirmationStatus == "finalized", nil
	case "finalized":
		return status.ConfirmationStatus == "finalized", nil
	default:
		return true, nil
	}
}

// SignSendConfirm signs tx, submits it and waits for confirmation.
func (w *Wallet) SignSendConfirm(ctx context.Context, tx *solana.Transaction) (string, error) {
	if err := w.SignTx(tx); err != nil {
		return "", err
	}
	sig, err := w.SendTx(ctx, tx)
	if err != nil {
		return "", err
	}
	w.log.WithFields(logrus.Fields{"signature": sig, "wallet": w.Address()}).Info("transaction sent")
	if err := w.ConfirmTransaction(ctx, sig); err != nil {
		return sig, err
	}
	return sig, nil
}

// encode serializes tx; an unsigned tx gets zeroed signature slots.
func encode(tx *solana.Transaction) (string, error) {
	out := *tx
	if len(out.Signatures) == 0 {
		out.Signatures = make([]solana.Signature, out.Message.Header.NumRequiredSignatures)
	}
	raw, err := out.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to serialize transaction: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
