package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"

	"github.com/aman-zulfiqar/compressed-token-wallet/internal/portfolio"
)

// Holdings lists owner's balances. With sortByValue the whole list is
// reordered by USD value instead of the default grouping.
func (e *Engine) Holdings(ctx context.Context, owner string, sortByValue bool) ([]portfolio.Holding, error) {
	pk, err := parseKey("owner", owner)
	if err != nil {
		return nil, err
	}
	hs, err := e.portfolio.ListHoldings(ctx, pk)
	if err != nil {
		return nil, err
	}
	if sortByValue {
		portfolio.SortByValue(hs)
	}
	return hs, nil
}

// findHolding returns the holding of mint in rep, if any.
func findHolding(hs []portfolio.Holding, mint string, rep portfolio.Representation) (portfolio.Holding, bool) {
	for _, h := range hs {
		if h.Mint == mint && h.Representation == rep {
			return h, true
		}
	}
	return portfolio.Holding{}, false
}

func parseKey(field, s string) (solana.PublicKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return solana.PublicKey{}, invalidInput("%s is required", field)
	}
	pk, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %s %q: %v", ErrInvalidInput, field, s, err)
	}
	return pk, nil
}
