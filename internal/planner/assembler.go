// Package planner turns wallet actions into ordered instruction plans.
package planner

import (
	"context"
	"fmt"
	"math/big"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/compressed-token-wallet/internal/compression"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/constants"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/jupiter"
)

// Ledger is the uncompressed account state the planner reads.
type Ledger interface {
	AccountExists(ctx context.Context, pubkey solana.PublicKey) (bool, error)
	TokenAccountBalance(ctx context.Context, account solana.PublicKey) (*big.Int, bool, error)
}

// CompressedState is the compression service.
type CompressedState interface {
	CompressedTokenAccounts(ctx context.Context, owner, mint solana.PublicKey) ([]compression.TokenAccount, error)
	ValidityProof(ctx context.Context, hashes []string) (*compression.ValidityProof, error)
}

// SwapInstructions is the quote service's instruction endpoint.
type SwapInstructions interface {
	SwapInstructions(ctx context.Context, req jupiter.SwapInstructionsRequest) (*jupiter.SwapInstructionsResponse, error)
}

// Selector picks the inputs spent by a decompress.
type Selector func(accounts []compression.TokenAccount, amount uint64) ([]compression.TokenAccount, error)

type Config struct {
	Ledger     Ledger
	Compressed CompressedState
	Swaps      SwapInstructions
	Selector   Selector // default compression.SelectMinAccountsForTransfer
	StateTree  compression.StateTree
	// ComputeUnitLimit is set before decompress-then-swap plans; 0 omits it.
	ComputeUnitLimit uint32
	Guard            *SwapGuard // nil accepts every quote
	Logger           *logrus.Logger
}

// Assembler builds plans. It never signs or sends.
type Assembler struct {
	cfg Config
	log *logrus.Logger
}

func NewAssembler(cfg Config) (*Assembler, error) {
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("planner: ledger is required")
	}
	if cfg.Compressed == nil {
		return nil, fmt.Errorf("planner: compressed state is required")
	}
	if cfg.StateTree.Tree.IsZero() {
		return nil, fmt.Errorf("planner: output state tree is required")
	}
	if cfg.ComputeUnitLimit > constants.MaxComputeUnitLimit {
		return nil, fmt.Errorf("planner: compute unit limit %d exceeds %d", cfg.ComputeUnitLimit, constants.MaxComputeUnitLimit)
	}
	if cfg.Selector == nil {
		cfg.Selector = compression.SelectMinAccountsForTransfer
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Assembler{cfg: cfg, log: cfg.Logger}, nil
}

// Plan validates action and assembles its instructions for owner, who is
// also the fee payer.
func (a *Assembler) Plan(ctx context.Context, owner solana.PublicKey, action Action) (*Plan, error) {
	if owner.IsZero() {
		return nil, invalid("owner is required")
	}
	if err := validate(action); err != nil {
		return nil, err
	}

	var (
		plan *Plan
		err  error
	)
	switch act := action.(type) {
	case Compress:
		plan, err = a.compress(ctx, owner, act)
	case Decompress:
		plan, err = a.decompress(ctx, owner, act)
	case Swap:
		plan, err = a.swap(ctx, owner, act)
	}
	if err != nil {
		return nil, err
	}
	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("planner: %w", err)
	}

	a.log.WithFields(logrus.Fields{
		"owner": owner.String(),
		"kind":  plan.Kind,
		"steps": plan.Labels(),
	}).Debug("plan assembled")
	return plan, nil
}

// resolvedTokenAccount is the owner's ATA plus whether the plan must create it.
type resolvedTokenAccount struct {
	Account solana.PublicKey
	Create  solana.Instruction // nil when the account exists
}

func (a *Assembler) resolveATA(ctx context.Context, owner, mint solana.PublicKey) (*resolvedTokenAccount, error) {
	ata, _, err := FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return nil, err
	}
	exists, err := a.cfg.Ledger.AccountExists(ctx, ata)
	if err != nil {
		return nil, fmt.Errorf("probe token account %s: %w", ata, err)
	}
	if exists {
		return &resolvedTokenAccount{Account: ata}, nil
	}
	return &resolvedTokenAccount{
		Account: ata,
		Create:  NewCreateAssociatedTokenAccountIx(owner, ata, owner, mint),
	}, nil
}

func newBig(v uint64) *big.Int { return new(big.Int).SetUint64(v) }
