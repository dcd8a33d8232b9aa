package planner

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/aman-zulfiqar/compressed-token-wallet/internal/compression"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/models"
)

// compress plans [createTokenPool?, compress, closeAccount?].
func (a *Assembler) compress(ctx context.Context, owner solana.PublicKey, act Compress) (*Plan, error) {
	plan := &Plan{Kind: models.ActionCompress}

	pool, err := compression.TokenPoolPDA(act.Mint)
	if err != nil {
		return nil, err
	}
	poolExists, err := a.cfg.Ledger.AccountExists(ctx, pool)
	if err != nil {
		return nil, fmt.Errorf("probe token pool %s: %w", pool, err)
	}
	if !poolExists {
		ix, err := compression.NewCreateTokenPoolIx(owner, act.Mint)
		if err != nil {
			return nil, err
		}
		plan.add(RoleSetup, StepCreateTokenPool, ix)
	}

	ata, _, err := FindAssociatedTokenAddress(owner, act.Mint)
	if err != nil {
		return nil, err
	}
	balance, exists, err := a.cfg.Ledger.TokenAccountBalance(ctx, ata)
	if err != nil {
		return nil, fmt.Errorf("read token account %s: %w", ata, err)
	}
	if !exists || !balance.IsUint64() || balance.Uint64() < act.Amount {
		available := newBig(0)
		if exists {
			available = balance
		}
		return nil, &InsufficientBalanceError{Mint: act.Mint.String(), Requested: act.Amount, Available: available}
	}

	ix, err := compression.NewCompressIx(compression.CompressParams{
		Payer:     owner,
		Owner:     owner,
		Source:    ata,
		ToOwner:   owner,
		Mint:      act.Mint,
		Amount:    act.Amount,
		StateTree: a.cfg.StateTree,
	})
	if err != nil {
		return nil, err
	}
	plan.add(RoleAction, StepCompress, ix)

	if balance.Uint64() == act.Amount {
		plan.add(RoleCleanup, StepCloseAccount, NewTokenCloseAccountIx(ata, owner, owner))
	}
	return plan, nil
}
