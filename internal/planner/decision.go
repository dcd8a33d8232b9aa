package planner

import (
	"encoding/json"
	"strconv"

	"github.com/gagliardetto/solana-go"

	"github.com/aman-zulfiqar/compressed-token-wallet/internal/jupiter"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/portfolio"
)

// validate rejects malformed actions before any network call.
func validate(action Action) error {
	switch a := action.(type) {
	case Compress:
		return validateMintAmount(a.Mint, a.Amount)
	case Decompress:
		return validateMintAmount(a.Mint, a.Amount)
	case Swap:
		if err := validateMintAmount(a.From.Mint, a.ExactInAmount); err != nil {
			return err
		}
		if a.ToMint.IsZero() {
			return invalid("output mint is required")
		}
		if a.ToMint.Equals(a.From.Mint) {
			return invalid("input and output mint are the same")
		}
		switch a.From.Representation {
		case portfolio.Uncompressed, portfolio.Compressed:
		default:
			return invalid("unknown source representation %q", a.From.Representation)
		}
		if a.From.Representation == portfolio.Uncompressed && a.ExactInAmount > a.From.Balance {
			return &InsufficientBalanceError{
				Mint:      a.From.Mint.String(),
				Requested: a.ExactInAmount,
				Available: newBig(a.From.Balance),
			}
		}
		if len(a.Quote) == 0 {
			return invalid("quote is required")
		}
		return nil
	case nil:
		return invalid("no action")
	default:
		return invalid("unsupported action %T", action)
	}
}

func validateMintAmount(mint solana.PublicKey, amount uint64) error {
	if mint.IsZero() {
		return invalid("mint is required")
	}
	if amount == 0 {
		return invalid("amount must be > 0")
	}
	return nil
}

// decodeQuote parses the quote and checks it describes the requested swap.
func decodeQuote(a Swap) (*jupiter.QuoteResponse, error) {
	var q jupiter.QuoteResponse
	if err := json.Unmarshal(a.Quote, &q); err != nil {
		return nil, invalid("quote: %v", err)
	}
	if q.InputMint != a.From.Mint.String() {
		return nil, invalid("quote input mint %s does not match %s", q.InputMint, a.From.Mint)
	}
	if q.OutputMint != a.ToMint.String() {
		return nil, invalid("quote output mint %s does not match %s", q.OutputMint, a.ToMint)
	}
	if q.InAmount != "" && q.InAmount != strconv.FormatUint(a.ExactInAmount, 10) {
		return nil, invalid("quote in amount %s does not match %d", q.InAmount, a.ExactInAmount)
	}
	return &q, nil
}
