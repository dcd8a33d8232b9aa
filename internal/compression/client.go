package compression

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/compressed-token-wallet/internal/constants"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/rpc"
)

// Client talks to the compression indexer RPC.
type Client struct {
	rpc      *rpc.Client
	pageSize int
	logger   *logrus.Logger
}

func NewClient(rpcClient *rpc.Client, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{rpc: rpcClient, pageSize: constants.CompressedAccountPage, logger: logger}
}

// GetCompressedTokenAccountsByOwner returns every compressed token account of
// owner, following the cursor. A nil mint lists all mints.
func (c *Client) GetCompressedTokenAccountsByOwner(ctx context.Context, owner solana.PublicKey, mint *solana.PublicKey) ([]TokenAccount, error) {
	var (
		out    []TokenAccount
		cursor *string
	)
	for {
		params := map[string]any{"owner": owner.String(), "limit": c.pageSize}
		if mint != nil {
			params["mint"] = mint.String()
		}
		if cursor != nil {
			params["cursor"] = *cursor
		}

		var res tokenAccountsResult
		if err := c.rpc.CallResult(ctx, "getCompressedTokenAccountsByOwner", params, &res); err != nil {
			return nil, err
		}
		for _, it := range res.Value.Items {
			out = append(out, it.toAccount())
		}

		if res.Value.Cursor == nil || *res.Value.Cursor == "" || len(res.Value.Items) == 0 {
			break
		}
		cursor = res.Value.Cursor
		c.logger.WithFields(logrus.Fields{
			"owner":  owner.String(),
			"cursor": *cursor,
		}).Debug("fetching next compressed account page")
	}
	return out, nil
}

// CompressedTokenAccounts satisfies the planner's compressed-state capability.
func (c *Client) CompressedTokenAccounts(ctx context.Context, owner, mint solana.PublicKey) ([]TokenAccount, error) {
	return c.GetCompressedTokenAccountsByOwner(ctx, owner, &mint)
}

// GetValidityProof requests a proof covering hashes, in order.
func (c *Client) GetValidityProof(ctx context.Context, hashes []string) (*ValidityProof, error) {
	if len(hashes) == 0 {
		return nil, fmt.Errorf("validity proof: no hashes")
	}
	params := map[string]any{
		"hashes":                hashes,
		"newAddressesWithTrees": []any{},
	}

	var res validityProofResult
	if err := c.rpc.CallResult(ctx, "getValidityProof", params, &res); err != nil {
		return nil, err
	}
	v := res.Value
	if len(v.RootIndices) != len(hashes) {
		return nil, fmt.Errorf("validity proof: expected %d root indices, got %d", len(hashes), len(v.RootIndices))
	}

	proof := &ValidityProof{
		Roots:       v.Roots,
		RootIndices: v.RootIndices,
		LeafIndices: v.LeafIndices,
		Leaves:      v.Leaves,
		MerkleTrees: v.MerkleTrees,
	}
	if err := fill(proof.Proof.A[:], v.CompressedProof.A, "a"); err != nil {
		return nil, err
	}
	if err := fill(proof.Proof.B[:], v.CompressedProof.B, "b"); err != nil {
		return nil, err
	}
	if err := fill(proof.Proof.C[:], v.CompressedProof.C, "c"); err != nil {
		return nil, err
	}
	return proof, nil
}

// ValidityProof satisfies the planner's compressed-state capability.
func (c *Client) ValidityProof(ctx context.Context, hashes []string) (*ValidityProof, error) {
	return c.GetValidityProof(ctx, hashes)
}

func fill(dst []byte, src Bytes, name string) error {
	if len(src) != len(dst) {
		return fmt.Errorf("validity proof: %s has %d bytes, want %d", name, len(src), len(dst))
	}
	copy(dst, src)
	return nil
}
