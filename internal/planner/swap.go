package planner

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"

	"github.com/aman-zulfiqar/compressed-token-wallet/internal/constants"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/jupiter"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/models"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/portfolio"
)

var wrappedSOL = solana.MustPublicKeyFromBase58(constants.MintWrappedSOL)

// swap plans, for a compressed source,
// [computeUnitLimit?, createATA?, decompress, swapSetup..., swap, swapCleanup?, closeAccount?]
// and for an uncompressed source
// [computeBudget..., swapSetup..., swap, swapCleanup?, closeAccount?].
func (a *Assembler) swap(ctx context.Context, owner solana.PublicKey, act Swap) (*Plan, error) {
	if a.cfg.Swaps == nil {
		return nil, fmt.Errorf("planner: swap service not configured")
	}
	quote, err := decodeQuote(act)
	if err != nil {
		return nil, err
	}
	if err := a.cfg.Guard.Check(quote); err != nil {
		return nil, err
	}

	plan := &Plan{Kind: models.ActionSwap}
	compressed := act.From.Representation == portfolio.Compressed

	source, _, err := FindAssociatedTokenAddress(owner, act.From.Mint)
	if err != nil {
		return nil, err
	}
	closeSource := false
	if compressed {
		before, exists, err := a.cfg.Ledger.TokenAccountBalance(ctx, source)
		if err != nil {
			return nil, fmt.Errorf("read token account %s: %w", source, err)
		}
		closeSource = !exists || before.Sign() == 0

		if a.cfg.ComputeUnitLimit > 0 {
			ix, err := computebudget.NewSetComputeUnitLimitInstruction(a.cfg.ComputeUnitLimit).ValidateAndBuild()
			if err != nil {
				return nil, fmt.Errorf("compute unit limit: %w", err)
			}
			plan.add(RoleSetup, StepComputeBudget, ix)
		}
		if _, err := a.decompressSteps(ctx, plan, owner, act.From.Mint, act.ExactInAmount, RoleSetup); err != nil {
			return nil, err
		}
	} else {
		closeSource = act.ExactInAmount == act.From.Balance
	}
	if act.From.Mint.Equals(wrappedSOL) {
		closeSource = false
	}

	res, err := a.cfg.Swaps.SwapInstructions(ctx, jupiter.SwapInstructionsRequest{
		QuoteResponse: act.Quote,
		UserPublicKey: owner.String(),
	})
	if err != nil {
		return nil, &QuoteServiceError{Err: err}
	}

	// A compressed source already carries its own compute-unit limit.
	if !compressed {
		for _, wire := range res.ComputeBudgetInstructions {
			if err := addWire(plan, RoleSetup, StepComputeBudget, wire); err != nil {
				return nil, err
			}
		}
	}
	for _, wire := range res.SetupInstructions {
		if err := addWire(plan, RoleSetup, StepSwapSetup, wire); err != nil {
			return nil, err
		}
	}
	if res.SwapInstruction == nil {
		return nil, &QuoteServiceError{Err: fmt.Errorf("response has no swap instruction")}
	}
	if err := addWire(plan, RoleAction, StepSwap, *res.SwapInstruction); err != nil {
		return nil, err
	}
	if res.CleanupInstruction != nil {
		if err := addWire(plan, RoleCleanup, StepSwapCleanup, *res.CleanupInstruction); err != nil {
			return nil, err
		}
	}
	if closeSource {
		plan.add(RoleCleanup, StepCloseAccount, NewTokenCloseAccountIx(source, owner, owner))
	}

	luts, err := res.LookupTables()
	if err != nil {
		return nil, &QuoteServiceError{Err: err}
	}
	plan.LookupTables = luts
	return plan, nil
}

func addWire(plan *Plan, role Role, label string, wire jupiter.Instruction) error {
	ix, err := wire.ToSolana()
	if err != nil {
		return &QuoteServiceError{Err: fmt.Errorf("%s instruction: %w", label, err)}
	}
	plan.add(role, label, ix)
	return nil
}
