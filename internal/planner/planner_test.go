package planner

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"strconv"
	"testing"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/compressed-token-wallet/internal/compression"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/constants"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/jupiter"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/portfolio"
)

type fakeLedger struct {
	exists   map[solana.PublicKey]bool
	balances map[solana.PublicKey]*big.Int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{exists: map[solana.PublicKey]bool{}, balances: map[solana.PublicKey]*big.Int{}}
}

func (f *fakeLedger) AccountExists(_ context.Context, pk solana.PublicKey) (bool, error) {
	if f.exists[pk] {
		return true, nil
	}
	_, ok := f.balances[pk]
	return ok, nil
}

func (f *fakeLedger) TokenAccountBalance(_ context.Context, pk solana.PublicKey) (*big.Int, bool, error) {
	b, ok := f.balances[pk]
	if !ok {
		return nil, false, nil
	}
	return new(big.Int).Set(b), true, nil
}

type fakeCompressed struct {
	accts      []compression.TokenAccount
	proofCalls [][]string
}

func (f *fakeCompressed) CompressedTokenAccounts(context.Context, solana.PublicKey, solana.PublicKey) ([]compression.TokenAccount, error) {
	return f.accts, nil
}

func (f *fakeCompressed) ValidityProof(_ context.Context, hashes []string) (*compression.ValidityProof, error) {
	f.proofCalls = append(f.proofCalls, hashes)
	roots := make([]uint16, len(hashes))
	for i := range hashes {
		roots[i] = uint16(100 + i)
	}
	return &compression.ValidityProof{RootIndices: roots}, nil
}

type fakeSwaps struct {
	res   *jupiter.SwapInstructionsResponse
	err   error
	calls int
}

func (f *fakeSwaps) SwapInstructions(context.Context, jupiter.SwapInstructionsRequest) (*jupiter.SwapInstructionsResponse, error) {
	f.calls++
	return f.res, f.err
}

func quiet() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func newAssembler(t *testing.T, ledger Ledger, comp CompressedState, swaps SwapInstructions, guard *SwapGuard) *Assembler {
	t.Helper()
	a, err := NewAssembler(Config{
		Ledger:           ledger,
		Compressed:       comp,
		Swaps:            swaps,
		StateTree:        compression.StateTree{Tree: solana.NewWallet().PublicKey(), Queue: solana.NewWallet().PublicKey()},
		ComputeUnitLimit: constants.DefaultComputeUnitLimit,
		Guard:            guard,
		Logger:           quiet(),
	})
	require.NoError(t, err)
	return a
}

func ata(t *testing.T, owner, mint solana.PublicKey) solana.PublicKey {
	t.Helper()
	pk, _, err := FindAssociatedTokenAddress(owner, mint)
	require.NoError(t, err)
	return pk
}

func compressedAccount(hash string, amount uint64) compression.TokenAccount {
	return compression.TokenAccount{Hash: hash, Tree: solana.NewWallet().PublicKey().String(), Amount: amount}
}

func TestPlanCompress_FullBalanceCreatesPoolAndCloses(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	ledger := newFakeLedger()
	src := ata(t, owner, mint)
	ledger.balances[src] = big.NewInt(500_000) // 0.5 of a 6-decimal token

	a := newAssembler(t, ledger, &fakeCompressed{}, nil, nil)
	plan, err := a.Plan(context.Background(), owner, Compress{Mint: mint, Amount: 500_000})
	require.NoError(t, err)

	assert.Equal(t, []string{StepCreateTokenPool, StepCompress, StepCloseAccount}, plan.Labels())
	ixs := plan.Instructions()
	assert.Equal(t, compression.ProgramID, ixs[0].ProgramID())
	assert.Equal(t, compression.ProgramID, ixs[1].ProgramID())
	assert.Equal(t, solana.TokenProgramID, ixs[2].ProgramID())
	assert.Equal(t, src, ixs[2].Accounts()[0].PublicKey)

	raw, err := ixs[1].Data()
	require.NoError(t, err)
	td, err := compression.DecodeTransfer(raw)
	require.NoError(t, err)
	assert.True(t, td.IsCompress)
	require.NotNil(t, td.CompressOrDecompressAmount)
	assert.Equal(t, uint64(500_000), *td.CompressOrDecompressAmount)
}

func TestPlanCompress_PartialWithExistingPool(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	ledger := newFakeLedger()
	pool, err := compression.TokenPoolPDA(mint)
	require.NoError(t, err)
	ledger.exists[pool] = true
	ledger.balances[ata(t, owner, mint)] = big.NewInt(1_000_000)

	plan, err := newAssembler(t, ledger, &fakeCompressed{}, nil, nil).
		Plan(context.Background(), owner, Compress{Mint: mint, Amount: 400_000})
	require.NoError(t, err)
	assert.Equal(t, []string{StepCompress}, plan.Labels())
}

func TestPlanCompress_Insufficient(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	ledger := newFakeLedger()
	ledger.balances[ata(t, owner, mint)] = big.NewInt(10)

	_, err := newAssembler(t, ledger, &fakeCompressed{}, nil, nil).
		Plan(context.Background(), owner, Compress{Mint: mint, Amount: 11})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	var ibe *InsufficientBalanceError
	require.True(t, errors.As(err, &ibe))
	assert.Equal(t, uint64(11), ibe.Requested)
	assert.Equal(t, "10", ibe.Available.String())
}

func TestPlanDecompress_InsufficientSkipsProof(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	comp := &fakeCompressed{accts: []compression.TokenAccount{compressedAccount("h1", 60), compressedAccount("h2", 40)}}

	_, err := newAssembler(t, newFakeLedger(), comp, nil, nil).
		Plan(context.Background(), owner, Decompress{Mint: mint, Amount: 101})
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Empty(t, comp.proofCalls)
}

func TestPlanDecompress_ProvesAllAndMapsRoots(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	comp := &fakeCompressed{accts: []compression.TokenAccount{
		compressedAccount("h0", 50),
		compressedAccount("h1", 300),
		compressedAccount("h2", 100),
	}}

	plan, err := newAssembler(t, newFakeLedger(), comp, nil, nil).
		Plan(context.Background(), owner, Decompress{Mint: mint, Amount: 320})
	require.NoError(t, err)
	assert.Equal(t, []string{StepCreateATA, StepDecompress}, plan.Labels())

	require.Len(t, comp.proofCalls, 1)
	assert.Equal(t, []string{"h0", "h1", "h2"}, comp.proofCalls[0])

	raw, err := plan.Steps[1].Instruction.Data()
	require.NoError(t, err)
	td, err := compression.DecodeTransfer(raw)
	require.NoError(t, err)
	require.Len(t, td.InputTokenDataWithContext, 2)
	// largest first: h1 then h2
	assert.Equal(t, uint16(101), td.InputTokenDataWithContext[0].RootIndex)
	assert.Equal(t, uint16(102), td.InputTokenDataWithContext[1].RootIndex)
	require.Len(t, td.OutputCompressedAccounts, 1)
	assert.Equal(t, uint64(80), td.OutputCompressedAccounts[0].Amount)
}

func wireIx(program solana.PublicKey, data byte) jupiter.Instruction {
	return jupiter.Instruction{
		ProgramID: program.String(),
		Accounts:  []jupiter.AccountMeta{{Pubkey: solana.NewWallet().PublicKey().String(), IsWritable: true}},
		Data:      base64.StdEncoding.EncodeToString([]byte{data}),
	}
}

func quoteJSON(t *testing.T, in, out solana.PublicKey, amount uint64, impact string, slippage uint16) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"inputMint":      in.String(),
		"outputMint":     out.String(),
		"inAmount":       strconv.FormatUint(amount, 10),
		"outAmount":      "1",
		"priceImpactPct": impact,
		"slippageBps":    slippage,
	})
	require.NoError(t, err)
	return b
}

func swapResponse(swapProgram solana.PublicKey, lut solana.PublicKey) *jupiter.SwapInstructionsResponse {
	swap := wireIx(swapProgram, 2)
	return &jupiter.SwapInstructionsResponse{
		ComputeBudgetInstructions:   []jupiter.Instruction{wireIx(computebudget.ProgramID, 3)},
		SetupInstructions:           []jupiter.Instruction{wireIx(solana.SystemProgramID, 1)},
		SwapInstruction:             &swap,
		AddressLookupTableAddresses: []string{lut.String()},
	}
}

func TestPlanSwap_CompressedSourceOrdering(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	from := solana.NewWallet().PublicKey()
	to := solana.NewWallet().PublicKey()
	swapProgram := solana.NewWallet().PublicKey()
	lut := solana.NewWallet().PublicKey()
	comp := &fakeCompressed{accts: []compression.TokenAccount{compressedAccount("h0", 1_000)}}
	swaps := &fakeSwaps{res: swapResponse(swapProgram, lut)}

	plan, err := newAssembler(t, newFakeLedger(), comp, swaps, NewSwapGuard(DefaultGuardConfig())).
		Plan(context.Background(), owner, Swap{
			From:          SwapSource{Mint: from, Representation: portfolio.Compressed, Balance: 1_000},
			ToMint:        to,
			ExactInAmount: 700,
			Quote:         quoteJSON(t, from, to, 700, "0.001", 50),
		})
	require.NoError(t, err)

	assert.Equal(t, []string{
		StepComputeBudget, StepCreateATA, StepDecompress, StepSwapSetup, StepSwap, StepCloseAccount,
	}, plan.Labels())
	assert.Equal(t, computebudget.ProgramID, plan.Steps[0].Instruction.ProgramID())
	data, err := plan.Steps[0].Instruction.Data()
	require.NoError(t, err)
	limit, err := computebudget.NewSetComputeUnitLimitInstruction(constants.DefaultComputeUnitLimit).ValidateAndBuild()
	require.NoError(t, err)
	want, err := limit.Data()
	require.NoError(t, err)
	assert.Equal(t, want, data)
	assert.Equal(t, swapProgram, plan.Steps[4].Instruction.ProgramID())
	assert.Equal(t, ata(t, owner, from), plan.Steps[5].Instruction.Accounts()[0].PublicKey)
	assert.Equal(t, []solana.PublicKey{lut}, plan.LookupTables)
	assert.NoError(t, plan.Validate())
}

func TestPlanSwap_CompressedSourceKeepsFundedATA(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	from := solana.NewWallet().PublicKey()
	to := solana.NewWallet().PublicKey()
	ledger := newFakeLedger()
	ledger.balances[ata(t, owner, from)] = big.NewInt(5)
	comp := &fakeCompressed{accts: []compression.TokenAccount{compressedAccount("h0", 1_000)}}
	swaps := &fakeSwaps{res: swapResponse(solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey())}

	plan, err := newAssembler(t, ledger, comp, swaps, nil).Plan(context.Background(), owner, Swap{
		From:          SwapSource{Mint: from, Representation: portfolio.Compressed, Balance: 1_000},
		ToMint:        to,
		ExactInAmount: 1_000,
		Quote:         quoteJSON(t, from, to, 1_000, "0", 50),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{StepComputeBudget, StepDecompress, StepSwapSetup, StepSwap}, plan.Labels())
}

func TestPlanSwap_UncompressedFullAmountCloses(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	from := solana.NewWallet().PublicKey()
	to := solana.NewWallet().PublicKey()
	swaps := &fakeSwaps{res: swapResponse(solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey())}
	a := newAssembler(t, newFakeLedger(), &fakeCompressed{}, swaps, nil)

	plan, err := a.Plan(context.Background(), owner, Swap{
		From:          SwapSource{Mint: from, Representation: portfolio.Uncompressed, Balance: 42},
		ToMint:        to,
		ExactInAmount: 42,
		Quote:         quoteJSON(t, from, to, 42, "0", 50),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{StepComputeBudget, StepSwapSetup, StepSwap, StepCloseAccount}, plan.Labels())

	// wrapped SOL is never closed by the plan
	sol := solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
	plan, err = a.Plan(context.Background(), owner, Swap{
		From:          SwapSource{Mint: sol, Representation: portfolio.Uncompressed, Balance: 42},
		ToMint:        to,
		ExactInAmount: 42,
		Quote:         quoteJSON(t, sol, to, 42, "0", 50),
	})
	require.NoError(t, err)
	assert.NotContains(t, plan.Labels(), StepCloseAccount)
}

func TestPlanSwap_GuardRejects(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	from := solana.NewWallet().PublicKey()
	to := solana.NewWallet().PublicKey()
	swaps := &fakeSwaps{res: swapResponse(solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey())}
	a := newAssembler(t, newFakeLedger(), &fakeCompressed{}, swaps, NewSwapGuard(GuardConfig{MaxPriceImpactBps: 100, MaxSlippageBps: 300}))

	src := SwapSource{Mint: from, Representation: portfolio.Uncompressed, Balance: 100}
	_, err := a.Plan(context.Background(), owner, Swap{From: src, ToMint: to, ExactInAmount: 10, Quote: quoteJSON(t, from, to, 10, "0.02", 50)})
	assert.ErrorIs(t, err, ErrSwapRejected)

	_, err = a.Plan(context.Background(), owner, Swap{From: src, ToMint: to, ExactInAmount: 10, Quote: quoteJSON(t, from, to, 10, "0.001", 500)})
	assert.ErrorIs(t, err, ErrSwapRejected)
	assert.Zero(t, swaps.calls)
}

func TestSwapGuard_AllowList(t *testing.T) {
	allowed := solana.NewWallet().PublicKey().String()
	g := NewSwapGuard(GuardConfig{AllowedMints: []string{allowed}})
	assert.NoError(t, g.Check(&jupiter.QuoteResponse{InputMint: allowed, OutputMint: allowed}))
	assert.ErrorIs(t, g.Check(&jupiter.QuoteResponse{InputMint: allowed, OutputMint: "other"}), ErrSwapRejected)

	var nilGuard *SwapGuard
	assert.NoError(t, nilGuard.Check(&jupiter.QuoteResponse{}))
}

func TestPlanSwap_QuoteServiceError(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	from := solana.NewWallet().PublicKey()
	to := solana.NewWallet().PublicKey()
	swaps := &fakeSwaps{err: &jupiter.APIError{Message: "no route"}}

	_, err := newAssembler(t, newFakeLedger(), &fakeCompressed{}, swaps, nil).Plan(context.Background(), owner, Swap{
		From:          SwapSource{Mint: from, Representation: portfolio.Uncompressed, Balance: 100},
		ToMint:        to,
		ExactInAmount: 10,
		Quote:         quoteJSON(t, from, to, 10, "0", 50),
	})
	var qse *QuoteServiceError
	require.True(t, errors.As(err, &qse))
	var apiErr *jupiter.APIError
	assert.True(t, errors.As(err, &apiErr))
}

func TestNewAssembler_ComputeUnitLimitCap(t *testing.T) {
	_, err := NewAssembler(Config{
		Ledger:           newFakeLedger(),
		Compressed:       &fakeCompressed{},
		StateTree:        compression.StateTree{Tree: solana.NewWallet().PublicKey(), Queue: solana.NewWallet().PublicKey()},
		ComputeUnitLimit: constants.MaxComputeUnitLimit + 1,
	})
	assert.ErrorContains(t, err, "compute unit limit")

	_, err = computebudget.NewSetComputeUnitLimitInstruction(constants.DefaultComputeUnitLimit).ValidateAndBuild()
	assert.NoError(t, err)
}

func TestPlan_InvalidActions(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	a := newAssembler(t, newFakeLedger(), &fakeCompressed{}, &fakeSwaps{}, nil)

	cases := map[string]Action{
		"zero amount": Compress{Mint: mint},
		"no mint":     Decompress{Amount: 1},
		"same mints": Swap{
			From: SwapSource{Mint: mint, Representation: portfolio.Uncompressed, Balance: 1}, ToMint: mint,
			ExactInAmount: 1, Quote: json.RawMessage(`{}`),
		},
		"quote mismatch": Swap{
			From: SwapSource{Mint: mint, Representation: portfolio.Uncompressed, Balance: 1}, ToMint: owner,
			ExactInAmount: 1, Quote: quoteJSON(t, owner, mint, 1, "0", 1),
		},
		"nil": nil,
	}
	for name, act := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := a.Plan(context.Background(), owner, act)
			assert.ErrorIs(t, err, ErrInvalidAction)
		})
	}

	_, err := a.Plan(context.Background(), solana.PublicKey{}, Compress{Mint: mint, Amount: 1})
	assert.ErrorIs(t, err, ErrInvalidAction)
}

func TestPlanValidate(t *testing.T) {
	ix := NewTokenCloseAccountIx(solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey())

	ok := &Plan{Steps: []Step{{RoleSetup, "a", ix}, {RoleAction, "b", ix}, {RoleCleanup, "c", ix}}}
	assert.NoError(t, ok.Validate())

	backwards := &Plan{Steps: []Step{{RoleAction, "b", ix}, {RoleSetup, "a", ix}}}
	assert.Error(t, backwards.Validate())

	noAction := &Plan{Steps: []Step{{RoleSetup, "a", ix}}}
	assert.Error(t, noAction.Validate())
}
