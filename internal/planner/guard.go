package planner

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/aman-zulfiqar/compressed-token-wallet/internal/jupiter"
)

// GuardConfig bounds the quotes a swap plan will accept.
type GuardConfig struct {
	// Max price impact in bps (e.g. 500 = 5%). 0 disables the check.
	MaxPriceImpactBps uint16
	// Max slippage tolerance carried by the quote. 0 disables the check.
	MaxSlippageBps uint16
	// Mint allow-list (empty = allow all)
	AllowedMints []string
}

// DefaultGuardConfig returns conservative limits.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		MaxPriceImpactBps: 500,  // 5%
		MaxSlippageBps:    1000, // 10%
	}
}

// SwapGuard rejects quotes outside GuardConfig.
type SwapGuard struct {
	config  GuardConfig
	allowed map[string]struct{}
}

func NewSwapGuard(config GuardConfig) *SwapGuard {
	g := &SwapGuard{config: config}
	if len(config.AllowedMints) > 0 {
		g.allowed = make(map[string]struct{}, len(config.AllowedMints))
		for _, m := range config.AllowedMints {
			g.allowed[m] = struct{}{}
		}
	}
	return g
}

// Check returns an error wrapping ErrSwapRejected on the first violated rule.
func (g *SwapGuard) Check(quote *jupiter.QuoteResponse) error {
	if g == nil {
		return nil
	}

	// 1. Mint allow-list
	if g.allowed != nil {
		for _, m := range []string{quote.InputMint, quote.OutputMint} {
			if _, ok := g.allowed[m]; !ok {
				return fmt.Errorf("%w: mint %s not allowed", ErrSwapRejected, m)
			}
		}
	}

	// 2. Price impact; the quote reports it as a fraction ("0.0123")
	if g.config.MaxPriceImpactBps > 0 && quote.PriceImpactPct != "" {
		impact, err := decimal.NewFromString(quote.PriceImpactPct)
		if err != nil {
			return fmt.Errorf("%w: unreadable price impact %q", ErrSwapRejected, quote.PriceImpactPct)
		}
		bps := impact.Abs().Mul(decimal.NewFromInt(10_000))
		if bps.GreaterThan(decimal.NewFromInt(int64(g.config.MaxPriceImpactBps))) {
			return fmt.Errorf("%w: price impact %s%% exceeds max %.2f%%",
				ErrSwapRejected, impact.Mul(decimal.NewFromInt(100)).StringFixed(2), float64(g.config.MaxPriceImpactBps)/100)
		}
	}

	// 3. Slippage
	if g.config.MaxSlippageBps > 0 && quote.SlippageBps > g.config.MaxSlippageBps {
		return fmt.Errorf("%w: slippage %d bps exceeds max %d bps",
			ErrSwapRejected, quote.SlippageBps, g.config.MaxSlippageBps)
	}
	return nil
}
