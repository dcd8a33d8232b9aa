package txbuilder

import (
	"context"

	"github.com/gagliardetto/solana-go"
	lookup "github.com/gagliardetto/solana-go/programs/address-lookup-table"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/compressed-token-wallet/internal/rpc"
)

// AccountFetcher reads raw accounts.
type AccountFetcher interface {
	GetMultipleAccounts(ctx context.Context, pubkeys []solana.PublicKey, commitment string) ([]*rpc.AccountInfo, error)
}

// RPCLookupTables resolves address lookup tables from the ledger. Tables that
// cannot be fetched or decoded are logged and left out.
type RPCLookupTables struct {
	ledger AccountFetcher
	logger *logrus.Logger
}

func NewRPCLookupTables(ledger AccountFetcher, logger *logrus.Logger) *RPCLookupTables {
	if logger == nil {
		logger = logrus.New()
	}
	return &RPCLookupTables{ledger: ledger, logger: logger}
}

func (r *RPCLookupTables) Resolve(ctx context.Context, addrs []solana.PublicKey) map[solana.PublicKey]solana.PublicKeySlice {
	out := make(map[solana.PublicKey]solana.PublicKeySlice, len(addrs))
	if len(addrs) == 0 {
		return out
	}

	accounts, err := r.ledger.GetMultipleAccounts(ctx, addrs, "")
	if err != nil {
		r.logger.WithError(err).WithField("tables", len(addrs)).Warn("lookup tables unavailable")
		return out
	}
	for i, acct := range accounts {
		addr := addrs[i]
		if acct == nil {
			r.logger.WithField("table", addr.String()).Warn("lookup table not found")
			continue
		}
		data, err := acct.Bytes()
		if err != nil {
			r.logger.WithError(err).WithField("table", addr.String()).Warn("lookup table data unreadable")
			continue
		}
		state, err := lookup.DecodeAddressLookupTableState(data)
		if err != nil {
			r.logger.WithError(err).WithField("table", addr.String()).Warn("lookup table decode failed")
			continue
		}
		out[addr] = state.Addresses
	}
	return out
}
