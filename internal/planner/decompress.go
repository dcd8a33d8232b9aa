package planner

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/aman-zulfiqar/compressed-token-wallet/internal/compression"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/models"
)

// decompress plans [createAssociatedTokenAccount?, decompress].
func (a *Assembler) decompress(ctx context.Context, owner solana.PublicKey, act Decompress) (*Plan, error) {
	plan := &Plan{Kind: models.ActionDecompress}
	if _, err := a.decompressSteps(ctx, plan, owner, act.Mint, act.Amount, RoleAction); err != nil {
		return nil, err
	}
	return plan, nil
}

// decompressSteps appends the destination ATA creation (setup) and the
// decompress instruction (role) to plan. It returns the destination ATA.
func (a *Assembler) decompressSteps(ctx context.Context, plan *Plan, owner, mint solana.PublicKey, amount uint64, role Role) (*resolvedTokenAccount, error) {
	dest, err := a.resolveATA(ctx, owner, mint)
	if err != nil {
		return nil, err
	}

	accounts, err := a.cfg.Compressed.CompressedTokenAccounts(ctx, owner, mint)
	if err != nil {
		return nil, fmt.Errorf("list compressed accounts: %w", err)
	}
	total := compression.Sum(accounts)
	if total.Cmp(newBig(amount)) < 0 {
		return nil, &InsufficientBalanceError{Mint: mint.String(), Requested: amount, Available: total}
	}

	hashes := make([]string, len(accounts))
	for i, acct := range accounts {
		hashes[i] = acct.Hash
	}
	proof, err := a.cfg.Compressed.ValidityProof(ctx, hashes)
	if err != nil {
		return nil, fmt.Errorf("validity proof: %w", err)
	}
	if len(proof.RootIndices) != len(hashes) {
		return nil, fmt.Errorf("validity proof: %d root indices for %d accounts", len(proof.RootIndices), len(hashes))
	}
	rootByHash := make(map[string]uint16, len(hashes))
	for i, h := range hashes {
		rootByHash[h] = proof.RootIndices[i]
	}

	selected, err := a.cfg.Selector(accounts, amount)
	if err != nil {
		return nil, err
	}
	roots := make([]uint16, len(selected))
	for i, acct := range selected {
		idx, ok := rootByHash[acct.Hash]
		if !ok {
			return nil, fmt.Errorf("selected account %s missing from proof", acct.Hash)
		}
		roots[i] = idx
	}

	a.log.WithField("mint", mint.String()).
		WithField("inputs", len(selected)).
		WithField("available", total.String()).
		Debug("decompress inputs selected")

	ix, err := compression.NewDecompressIx(compression.DecompressParams{
		Payer:       owner,
		Owner:       owner,
		Destination: dest.Account,
		Mint:        mint,
		Amount:      amount,
		Inputs:      selected,
		RootIndices: roots,
		Proof:       proof.Proof,
		StateTree:   a.cfg.StateTree,
	})
	if err != nil {
		return nil, err
	}

	if dest.Create != nil {
		plan.add(RoleSetup, StepCreateATA, dest.Create)
	}
	plan.add(role, StepDecompress, ix)
	return dest, nil
}
