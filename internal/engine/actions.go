package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/compressed-token-wallet/internal/amount"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/constants"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/jupiter"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/models"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/planner"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/portfolio"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/txbuilder"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/wallet"
)

// ActionRequest describes one wallet action. Exactly one of Amount (raw
// units) and UIAmount (decimal-scaled) is set.
type ActionRequest struct {
	Kind       models.ActionKind `json:"kind"`
	Owner      string            `json:"owner"`
	Mint       string            `json:"mint"`
	OutputMint string            `json:"outputMint,omitempty"`
	Amount     string            `json:"amount,omitempty"`
	UIAmount   string            `json:"uiAmount,omitempty"`

	// Swap only. Representation picks the source balance; empty prefers
	// the uncompressed one. Quote is a Jupiter quote body; empty fetches one.
	Representation portfolio.Representation `json:"representation,omitempty"`
	Quote          json.RawMessage          `json:"quote,omitempty"`
	SlippageBps    *uint16                  `json:"slippageBps,omitempty"`

	LookupTables []string `json:"lookupTables,omitempty"`
}

type StepSummary struct {
	Role    string `json:"role"`
	Label   string `json:"label"`
	Program string `json:"program"`
}

// BuiltAction is an unsigned transaction ready for the owner to sign.
type BuiltAction struct {
	Kind         models.ActionKind `json:"kind"`
	Owner        string            `json:"owner"`
	Mint         string            `json:"mint"`
	OutputMint   string            `json:"outputMint,omitempty"`
	Amount       uint64            `json:"amount"`
	Transaction  string            `json:"transaction"` // base64 v0 transaction
	Steps        []StepSummary     `json:"steps"`
	LookupTables []string          `json:"lookupTables"`

	tx *solana.Transaction
}

// ExecutedAction is a BuiltAction signed by the local wallet and confirmed.
type ExecutedAction struct {
	*BuiltAction
	Signature string `json:"signature"`
}

// BuildAction plans req and compiles it into an unsigned transaction.
func (e *Engine) BuildAction(ctx context.Context, req ActionRequest) (*BuiltAction, error) {
	if !req.Kind.Valid() {
		return nil, invalidInput("unknown action kind %q", req.Kind)
	}
	if err := e.gate.Allow(ctx, req.Kind); err != nil {
		return nil, err
	}

	owner, err := parseKey("owner", req.Owner)
	if err != nil {
		return nil, err
	}
	mint, err := parseKey("mint", req.Mint)
	if err != nil {
		return nil, err
	}
	extra := make([]solana.PublicKey, 0, len(req.LookupTables))
	for _, s := range req.LookupTables {
		pk, err := parseKey("lookup table", s)
		if err != nil {
			return nil, err
		}
		extra = append(extra, pk)
	}

	action, raw, err := e.toAction(ctx, owner, mint, req)
	if err != nil {
		return nil, err
	}

	plan, err := e.assembler.Plan(ctx, owner, action)
	if err != nil {
		return nil, err
	}
	tx, err := e.builder.Build(ctx, owner, plan, extra)
	if err != nil {
		return nil, err
	}
	encoded, err := txbuilder.EncodeBase64(tx)
	if err != nil {
		return nil, err
	}

	out := &BuiltAction{
		Kind:         req.Kind,
		Owner:        owner.String(),
		Mint:         mint.String(),
		OutputMint:   strings.TrimSpace(req.OutputMint),
		Amount:       raw,
		Transaction:  encoded,
		Steps:        make([]StepSummary, 0, len(plan.Steps)),
		LookupTables: make([]string, 0, len(tx.Message.AddressTableLookups)),
		tx:           tx,
	}
	for _, s := range plan.Steps {
		out.Steps = append(out.Steps, StepSummary{
			Role:    s.Role.String(),
			Label:   s.Label,
			Program: s.Instruction.ProgramID().String(),
		})
	}
	for _, l := range tx.Message.AddressTableLookups {
		out.LookupTables = append(out.LookupTables, l.AccountKey.String())
	}

	e.logger.WithFields(logrus.Fields{
		"kind":   req.Kind,
		"owner":  out.Owner,
		"mint":   out.Mint,
		"amount": raw,
		"steps":  len(out.Steps),
	}).Info("action built")
	return out, nil
}

// toAction sizes req against the owner's holdings where needed and returns
// the planner action with its raw amount.
func (e *Engine) toAction(ctx context.Context, owner, mint solana.PublicKey, req ActionRequest) (planner.Action, uint64, error) {
	rawStr := strings.TrimSpace(req.Amount)
	uiStr := strings.TrimSpace(req.UIAmount)
	switch {
	case rawStr == "" && uiStr == "":
		return nil, 0, invalidInput("amount is required")
	case rawStr != "" && uiStr != "":
		return nil, 0, invalidInput("amount and uiAmount are mutually exclusive")
	}

	var (
		holding portfolio.Holding
		held    bool
	)
	if uiStr != "" || req.Kind == models.ActionSwap {
		hs, err := e.portfolio.ListHoldings(ctx, owner)
		if err != nil {
			return nil, 0, err
		}
		rep := sourceRepresentation(req)
		if rep == "" {
			if holding, held = findHolding(hs, mint.String(), portfolio.Uncompressed); !held {
				holding, held = findHolding(hs, mint.String(), portfolio.Compressed)
			}
		} else {
			holding, held = findHolding(hs, mint.String(), rep)
		}
	}

	var raw uint64
	if rawStr != "" {
		n, err := strconv.ParseUint(rawStr, 10, 64)
		if err != nil {
			return nil, 0, invalidInput("amount %q must be a base-10 integer", rawStr)
		}
		raw = n
	} else {
		if !held {
			return nil, 0, &planner.InsufficientBalanceError{Mint: mint.String(), Available: new(big.Int)}
		}
		n, err := amount.ToRawUint64(uiStr, holding.Decimals)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		raw = n
	}

	switch req.Kind {
	case models.ActionCompress:
		return planner.Compress{Mint: mint, Amount: raw}, raw, nil
	case models.ActionDecompress:
		return planner.Decompress{Mint: mint, Amount: raw}, raw, nil
	}

	outputMint, err := parseKey("outputMint", req.OutputMint)
	if err != nil {
		return nil, 0, err
	}
	if !held {
		return nil, 0, &planner.InsufficientBalanceError{Mint: mint.String(), Requested: raw, Available: new(big.Int)}
	}
	quote := req.Quote
	if len(quote) == 0 {
		q, err := e.jupiter.Quote(ctx, jupiter.QuoteRequest{
			InputMint:   mint.String(),
			OutputMint:  outputMint.String(),
			Amount:      strconv.FormatUint(raw, 10),
			SlippageBps: req.SlippageBps,
			SwapMode:    "ExactIn",
		})
		if err != nil {
			return nil, 0, &planner.QuoteServiceError{Err: err}
		}
		quote = q.Raw
	}
	return planner.Swap{
		From: planner.SwapSource{
			Mint:           mint,
			Representation: holding.Representation,
			Balance:        clampUint64(holding.Amount),
		},
		ToMint:        outputMint,
		ExactInAmount: raw,
		Quote:         quote,
	}, raw, nil
}

func sourceRepresentation(req ActionRequest) portfolio.Representation {
	switch req.Kind {
	case models.ActionCompress:
		return portfolio.Uncompressed
	case models.ActionDecompress:
		return portfolio.Compressed
	default:
		return req.Representation
	}
}

func clampUint64(n *big.Int) uint64 {
	if n == nil || n.Sign() <= 0 {
		return 0
	}
	if !n.IsUint64() {
		return math.MaxUint64
	}
	return n.Uint64()
}

// Execute builds req for the local wallet, signs, sends and confirms it. The
// outcome is recorded in the action log and live feed without blocking.
func (e *Engine) Execute(ctx context.Context, req ActionRequest) (*ExecutedAction, error) {
	if e.signer == nil {
		return nil, wallet.ErrNoSigner
	}
	switch strings.TrimSpace(req.Owner) {
	case "":
		req.Owner = e.signer.Address()
	case e.signer.Address():
	default:
		return nil, invalidInput("owner %s is not the local wallet", req.Owner)
	}

	built, err := e.BuildAction(ctx, req)
	if err != nil {
		return nil, err
	}

	sig, err := e.signer.SignSendConfirm(ctx, built.tx)
	e.record(built, sig, err)
	if err != nil {
		return nil, fmt.Errorf("failed to execute %s: %w", req.Kind, err)
	}

	e.logger.WithFields(logrus.Fields{
		"kind":      req.Kind,
		"signature": sig,
	}).Info("action executed")
	return &ExecutedAction{BuiltAction: built, Signature: sig}, nil
}

// SimulatedAction is a built action plus the ledger's simulation result.
type SimulatedAction struct {
	*BuiltAction
	Success       bool     `json:"success"`
	Error         string   `json:"error,omitempty"`
	Logs          []string `json:"logs,omitempty"`
	UnitsConsumed uint64   `json:"unitsConsumed"`
}

// Simulate builds req and runs it on the ledger without signing. A failed
// simulation is reported in the result, not as an error.
func (e *Engine) Simulate(ctx context.Context, req ActionRequest) (*SimulatedAction, error) {
	built, err := e.BuildAction(ctx, req)
	if err != nil {
		return nil, err
	}
	res, err := wallet.Simulate(ctx, e.ledger, built.tx)
	if res == nil {
		return nil, fmt.Errorf("failed to simulate %s: %w", req.Kind, err)
	}
	return &SimulatedAction{
		BuiltAction:   built,
		Success:       res.Success,
		Error:         res.Error,
		Logs:          res.Logs,
		UnitsConsumed: res.UnitsConsumed,
	}, nil
}

func (e *Engine) record(built *BuiltAction, sig string, execErr error) {
	if e.history == nil && e.feed == nil {
		return
	}
	ev := &models.ActionEvent{
		Signature:  sig,
		Kind:       built.Kind,
		Owner:      built.Owner,
		Mint:       built.Mint,
		OutputMint: built.OutputMint,
		Amount:     built.Amount,
		Timestamp:  time.Now().UTC(),
		Success:    execErr == nil,
	}
	if execErr != nil {
		ev.Error = execErr.Error()
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), constants.ActionLogTimeout)
		defer cancel()
		if e.history != nil {
			if err := e.history.InsertAction(ctx, ev); err != nil {
				e.logger.WithError(err).WithField("signature", sig).Warn("failed to record action")
			}
		}
		if e.feed != nil {
			if err := e.feed.PublishAction(ctx, ev); err != nil {
				e.logger.WithError(err).WithField("signature", sig).Warn("failed to publish action")
			}
		}
	}()
}

// RecentActions returns owner's latest recorded actions, newest first.
func (e *Engine) RecentActions(ctx context.Context, owner string, limit int) ([]models.ActionEvent, error) {
	if e.history == nil {
		return nil, ErrHistoryDisabled
	}
	pk, err := parseKey("owner", owner)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return e.history.RecentActions(ctx, pk.String(), limit)
}
