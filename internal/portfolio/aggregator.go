// Package portfolio lists a wallet's token holdings across SPL and
// compressed accounts.
package portfolio

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/aman-zulfiqar/compressed-token-wallet/internal/amount"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/compression"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/metadata"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/rpc"
)

type Representation string

const (
	Uncompressed Representation = "uncompressed"
	Compressed   Representation = "compressed"
)

// Holding is the balance of one mint in one representation.
type Holding struct {
	Mint           string         `json:"mint"`
	Representation Representation `json:"representation"`
	Amount         *big.Int       `json:"amount"`
	Decimals       int            `json:"decimals"`
	Symbol         string         `json:"symbol"`
	Image          string         `json:"image"`
	PricePerToken  float64        `json:"pricePerToken"`
	MetadataFound  bool           `json:"metadataFound"`
}

// UIAmount is the decimal-scaled amount.
func (h Holding) UIAmount() string { return amount.ToUI(h.Amount, h.Decimals) }

// Value is the USD value, 0 when the price is unknown.
func (h Holding) Value() float64 { return amount.Value(h.Amount, h.Decimals, h.PricePerToken) }

// TokenAccounts lists SPL token accounts.
type TokenAccounts interface {
	GetTokenAccountsByOwner(ctx context.Context, owner solana.PublicKey) ([]rpc.ParsedTokenAccount, error)
}

// CompressedAccounts lists compressed token accounts.
type CompressedAccounts interface {
	GetCompressedTokenAccountsByOwner(ctx context.Context, owner solana.PublicKey, mint *solana.PublicKey) ([]compression.TokenAccount, error)
}

// MetadataResolver enriches mints.
type MetadataResolver interface {
	Resolve(ctx context.Context, mints []string) map[string]metadata.Priced
}

type Aggregator struct {
	ledger     TokenAccounts
	compressed CompressedAccounts
	resolver   MetadataResolver
	logger     *logrus.Logger
}

func NewAggregator(ledger TokenAccounts, compressed CompressedAccounts, resolver MetadataResolver, logger *logrus.Logger) *Aggregator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Aggregator{ledger: ledger, compressed: compressed, resolver: resolver, logger: logger}
}

// splBalance is an uncompressed balance before enrichment.
type splBalance struct {
	mint     string
	amount   *big.Int
	decimals int
}

// ListHoldings returns uncompressed holdings sorted by UI amount, followed by
// compressed holdings. Either fetch failing fails the call.
func (a *Aggregator) ListHoldings(ctx context.Context, owner solana.PublicKey) ([]Holding, error) {
	var (
		spl  []splBalance
		comp []compression.TokenAccount
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		accts, err := a.ledger.GetTokenAccountsByOwner(gctx, owner)
		if err != nil {
			return fmt.Errorf("list token accounts: %w", err)
		}
		spl = mergeSPL(accts)
		return nil
	})
	g.Go(func() error {
		accts, err := a.compressed.GetCompressedTokenAccountsByOwner(gctx, owner, nil)
		if err != nil {
			return fmt.Errorf("list compressed accounts: %w", err)
		}
		comp = accts
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := MergeCompressed(comp)

	mints := make([]string, 0, len(spl)+len(merged))
	for _, b := range spl {
		mints = append(mints, b.mint)
	}
	for _, m := range merged {
		mints = append(mints, m.Mint)
	}
	meta := a.resolver.Resolve(ctx, mints)

	out := make([]Holding, 0, len(spl)+len(merged))
	for _, b := range spl {
		md := meta[b.mint]
		out = append(out, Holding{
			Mint:           b.mint,
			Representation: Uncompressed,
			Amount:         b.amount,
			Decimals:       b.decimals,
			Symbol:         md.Symbol,
			Image:          md.Image,
			PricePerToken:  md.PricePerToken,
			MetadataFound:  md.Found,
		})
	}
	sortByUIAmount(out)

	for _, m := range merged {
		md := meta[m.Mint]
		out = append(out, Holding{
			Mint:           m.Mint,
			Representation: Compressed,
			Amount:         m.Amount,
			Decimals:       md.Decimals,
			Symbol:         md.Symbol,
			Image:          md.Image,
			PricePerToken:  md.PricePerToken,
			MetadataFound:  md.Found,
		})
	}

	a.logger.WithFields(logrus.Fields{
		"owner":        owner.String(),
		"uncompressed": len(spl),
		"compressed":   len(merged),
	}).Debug("holdings listed")
	return out, nil
}

// mergeSPL drops zero-decimal and empty accounts and sums the rest per mint.
func mergeSPL(accts []rpc.ParsedTokenAccount) []splBalance {
	var out []splBalance
	for _, acct := range accts {
		info := acct.Account.Data.Parsed.Info
		if info.TokenAmount.Decimals == 0 {
			continue
		}
		raw, ok := new(big.Int).SetString(info.TokenAmount.Amount, 10)
		if !ok || raw.Sign() <= 0 {
			continue
		}
		found := false
		for i := range out {
			if out[i].mint == info.Mint {
				out[i].amount.Add(out[i].amount, raw)
				found = true
				break
			}
		}
		if !found {
			out = append(out, splBalance{mint: info.Mint, amount: raw, decimals: info.TokenAmount.Decimals})
		}
	}
	return out
}

// MergedCompressed is the total compressed balance of one mint.
type MergedCompressed struct {
	Mint   string
	Amount *big.Int
}

// MergeCompressed sums accounts sharing a mint, keeping first-seen order, and
// drops zero totals.
func MergeCompressed(accts []compression.TokenAccount) []MergedCompressed {
	var merged []MergedCompressed
	for _, acct := range accts {
		amt := new(big.Int).SetUint64(acct.Amount)
		found := false
		for i := range merged {
			if merged[i].Mint == acct.Mint {
				merged[i].Amount.Add(merged[i].Amount, amt)
				found = true
				break
			}
		}
		if !found {
			merged = append(merged, MergedCompressed{Mint: acct.Mint, Amount: amt})
		}
	}

	out := merged[:0]
	for _, m := range merged {
		if m.Amount.Sign() > 0 {
			out = append(out, m)
		}
	}
	return out
}

func sortByUIAmount(hs []Holding) {
	sort.SliceStable(hs, func(i, j int) bool {
		return amount.Compare(hs[i].Amount, hs[i].Decimals, hs[j].Amount, hs[j].Decimals) > 0
	})
}

// SortByValue orders holdings by descending USD value.
func SortByValue(hs []Holding) {
	sort.SliceStable(hs, func(i, j int) bool { return hs[i].Value() > hs[j].Value() })
}
