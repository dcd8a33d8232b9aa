package portfolio

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/compressed-token-wallet/internal/compression"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/metadata"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/rpc"
)

type fakeLedger struct {
	accts []rpc.ParsedTokenAccount
	err   error
}

func (f *fakeLedger) GetTokenAccountsByOwner(context.Context, solana.PublicKey) ([]rpc.ParsedTokenAccount, error) {
	return f.accts, f.err
}

type fakeCompressed struct {
	accts []compression.TokenAccount
	err   error
}

func (f *fakeCompressed) GetCompressedTokenAccountsByOwner(context.Context, solana.PublicKey, *solana.PublicKey) ([]compression.TokenAccount, error) {
	return f.accts, f.err
}

type fakeResolver struct {
	meta  map[string]metadata.Priced
	calls [][]string
}

func (f *fakeResolver) Resolve(_ context.Context, mints []string) map[string]metadata.Priced {
	f.calls = append(f.calls, mints)
	out := map[string]metadata.Priced{}
	for _, m := range mints {
		if p, ok := f.meta[m]; ok {
			out[m] = p
		} else {
			out[m] = metadata.Priced{Record: metadata.NotFound(m)}
		}
	}
	return out
}

func splAccount(mint, amt string, decimals int) rpc.ParsedTokenAccount {
	var a rpc.ParsedTokenAccount
	a.Account.Data.Parsed.Info.Mint = mint
	a.Account.Data.Parsed.Info.TokenAmount = rpc.TokenAmount{Amount: amt, Decimals: decimals}
	return a
}

func priced(mint, symbol string, decimals int, price float64) metadata.Priced {
	return metadata.Priced{
		Record:        metadata.Record{Mint: mint, Symbol: symbol, Decimals: decimals, Found: true},
		PricePerToken: price,
	}
}

func quiet() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestListHoldings_MergesAndOrders(t *testing.T) {
	ledger := &fakeLedger{accts: []rpc.ParsedTokenAccount{
		splAccount("Small", "1000000", 6), // 1
		splAccount("NFT", "1", 0),
		splAccount("Empty", "0", 9),
		splAccount("Big", "5000000000", 9), // 5
		splAccount("Small", "500000", 6),   // +0.5
	}}
	compressed := &fakeCompressed{accts: []compression.TokenAccount{
		{Mint: "Y", Amount: 100},
		{Mint: "Z", Amount: 0},
		{Mint: "Y", Amount: 250},
	}}
	resolver := &fakeResolver{meta: map[string]metadata.Priced{
		"Small": priced("Small", "SML", 6, 1),
		"Big":   priced("Big", "BIG", 9, 2),
		"Y":     priced("Y", "YYY", 2, 0),
	}}

	agg := NewAggregator(ledger, compressed, resolver, quiet())
	hs, err := agg.ListHoldings(context.Background(), solana.NewWallet().PublicKey())
	require.NoError(t, err)
	require.Len(t, hs, 3)

	assert.Equal(t, "Big", hs[0].Mint)
	assert.Equal(t, Uncompressed, hs[0].Representation)
	assert.Equal(t, "Small", hs[1].Mint)
	assert.Equal(t, "1500000", hs[1].Amount.String())
	assert.Equal(t, "1.5", hs[1].UIAmount())

	assert.Equal(t, "Y", hs[2].Mint)
	assert.Equal(t, Compressed, hs[2].Representation)
	assert.Equal(t, "350", hs[2].Amount.String())
	assert.Equal(t, 2, hs[2].Decimals)
	assert.Equal(t, "YYY", hs[2].Symbol)

	require.Len(t, resolver.calls, 1)
	assert.Equal(t, []string{"Small", "Big", "Y"}, resolver.calls[0])
}

func TestListHoldings_CompressedNotFoundStaysListed(t *testing.T) {
	agg := NewAggregator(
		&fakeLedger{},
		&fakeCompressed{accts: []compression.TokenAccount{{Mint: "Unknown", Amount: 7}}},
		&fakeResolver{},
		quiet(),
	)
	hs, err := agg.ListHoldings(context.Background(), solana.NewWallet().PublicKey())
	require.NoError(t, err)
	require.Len(t, hs, 1)
	assert.False(t, hs[0].MetadataFound)
	assert.Zero(t, hs[0].Decimals)
	assert.Equal(t, "7", hs[0].Amount.String())
}

func TestListHoldings_FetchFailure(t *testing.T) {
	boom := errors.New("boom")
	agg := NewAggregator(&fakeLedger{}, &fakeCompressed{err: boom}, &fakeResolver{}, quiet())
	_, err := agg.ListHoldings(context.Background(), solana.NewWallet().PublicKey())
	assert.ErrorIs(t, err, boom)

	agg = NewAggregator(&fakeLedger{err: boom}, &fakeCompressed{}, &fakeResolver{}, quiet())
	_, err = agg.ListHoldings(context.Background(), solana.NewWallet().PublicKey())
	assert.ErrorIs(t, err, boom)
}

func TestMergeCompressed_SumsPerMint(t *testing.T) {
	accts := []compression.TokenAccount{
		{Mint: "X", Amount: 18446744073709551615},
		{Mint: "W", Amount: 3},
		{Mint: "X", Amount: 1},
	}
	got := MergeCompressed(accts)
	require.Len(t, got, 2)
	assert.Equal(t, "X", got[0].Mint)
	assert.Equal(t, "18446744073709551616", got[0].Amount.String())
	assert.Equal(t, "W", got[1].Mint)
}

func TestSortByValue(t *testing.T) {
	hs := []Holding{
		{Mint: "A", Amount: big.NewInt(1_000_000), Decimals: 6, PricePerToken: 1},
		{Mint: "B", Amount: big.NewInt(10), Decimals: 0, PricePerToken: 0},
		{Mint: "C", Amount: big.NewInt(3_000_000_000), Decimals: 9, PricePerToken: 2},
	}
	SortByValue(hs)
	assert.Equal(t, []string{"C", "A", "B"}, []string{hs[0].Mint, hs[1].Mint, hs[2].Mint})
}
