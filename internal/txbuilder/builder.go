// Package txbuilder compiles instruction plans into unsigned versioned
// transactions.
package txbuilder

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/aman-zulfiqar/compressed-token-wallet/internal/planner"
)

// BlockhashSource supplies the recent blockhash.
type BlockhashSource interface {
	GetLatestBlockhash(ctx context.Context, commitment string) (solana.Hash, error)
}

// LookupTableResolver returns the contents of the tables it could read.
type LookupTableResolver interface {
	Resolve(ctx context.Context, addrs []solana.PublicKey) map[solana.PublicKey]solana.PublicKeySlice
}

type Builder struct {
	blockhash     BlockhashSource
	tables        LookupTableResolver
	protocolTable solana.PublicKey
	logger        *logrus.Logger
}

// NewBuilder returns a Builder that always includes protocolTable, when
// non-zero, among the transaction's lookup tables.
func NewBuilder(blockhash BlockhashSource, tables LookupTableResolver, protocolTable solana.PublicKey, logger *logrus.Logger) *Builder {
	if logger == nil {
		logger = logrus.New()
	}
	return &Builder{blockhash: blockhash, tables: tables, protocolTable: protocolTable, logger: logger}
}

// Build compiles plan into a v0 transaction paid by owner. Instruction order
// is the plan order.
func (b *Builder) Build(ctx context.Context, owner solana.PublicKey, plan *planner.Plan, extraTables []solana.PublicKey) (*solana.Transaction, error) {
	if plan == nil || len(plan.Steps) == 0 {
		return nil, fmt.Errorf("txbuilder: empty plan")
	}

	callerTables := dedupe(append(append([]solana.PublicKey{}, plan.LookupTables...), extraTables...), b.protocolTable)

	var caller, protocol map[solana.PublicKey]solana.PublicKeySlice
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		caller = b.tables.Resolve(gctx, callerTables)
		return nil
	})
	g.Go(func() error {
		if b.protocolTable.IsZero() {
			return nil
		}
		protocol = b.tables.Resolve(gctx, []solana.PublicKey{b.protocolTable})
		return nil
	})
	_ = g.Wait()

	tables := make(map[solana.PublicKey]solana.PublicKeySlice, len(caller)+len(protocol))
	for k, v := range caller {
		tables[k] = v
	}
	for k, v := range protocol {
		tables[k] = v
	}

	blockhash, err := b.blockhash.GetLatestBlockhash(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to get blockhash: %w", err)
	}

	opts := []solana.TransactionOption{solana.TransactionPayer(owner)}
	if len(tables) > 0 {
		opts = append(opts, solana.TransactionAddressTables(tables))
	}
	tx, err := solana.NewTransaction(plan.Instructions(), blockhash, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build transaction: %w", err)
	}

	b.logger.WithFields(logrus.Fields{
		"owner":        owner.String(),
		"kind":         plan.Kind,
		"instructions": len(plan.Steps),
		"tables":       len(tables),
	}).Debug("transaction built")
	return tx, nil
}

// EncodeBase64 serializes tx. An unsigned transaction gets zeroed signature
// slots so a wallet can fill them in.
func EncodeBase64(tx *solana.Transaction) (string, error) {
	out := *tx
	if len(out.Signatures) == 0 {
		out.Signatures = make([]solana.Signature, out.Message.Header.NumRequiredSignatures)
	}
	raw, err := out.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to serialize transaction: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func dedupe(keys []solana.PublicKey, skip solana.PublicKey) []solana.PublicKey {
	seen := make(map[solana.PublicKey]struct{}, len(keys))
	out := keys[:0]
	for _, k := range keys {
		if k.IsZero() || k.Equals(skip) {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
