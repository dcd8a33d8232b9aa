package compression

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
)

// MaxTransferInputs bounds how many compressed accounts one decompress can
// consume before the transaction no longer fits.
const MaxTransferInputs = 4

var (
	ErrInsufficientBalance = errors.New("insufficient compressed balance")
	ErrTooManyInputs       = errors.New("too many compressed accounts required")
)

// Sum adds up account amounts without overflow.
func Sum(accounts []TokenAccount) *big.Int {
	total := new(big.Int)
	for _, a := range accounts {
		total.Add(total, new(big.Int).SetUint64(a.Amount))
	}
	return total
}

// SelectMinAccountsForTransfer picks the fewest accounts, largest first,
// whose amounts cover amount. The input slice is not modified.
func SelectMinAccountsForTransfer(accounts []TokenAccount, amount uint64) ([]TokenAccount, error) {
	sorted := make([]TokenAccount, len(accounts))
	copy(sorted, accounts)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Amount > sorted[j].Amount })

	need := new(big.Int).SetUint64(amount)
	acc := new(big.Int)
	var selected []TokenAccount
	for _, a := range sorted {
		if acc.Cmp(need) >= 0 {
			break
		}
		if a.Amount == 0 {
			continue
		}
		selected = append(selected, a)
		acc.Add(acc, new(big.Int).SetUint64(a.Amount))
	}

	if acc.Cmp(need) < 0 {
		return nil, fmt.Errorf("%w: need %d, have %s", ErrInsufficientBalance, amount, acc)
	}
	if len(selected) > MaxTransferInputs {
		return nil, fmt.Errorf("%w: %d accounts needed, max %d", ErrTooManyInputs, len(selected), MaxTransferInputs)
	}
	return selected, nil
}
