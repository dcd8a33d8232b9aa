package compression

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mr-tron/base58"
)

// TokenAccount is one compressed token account (a leaf in a state tree)
// owned by a wallet.
type TokenAccount struct {
	Hash      string
	Tree      string
	Queue     string // empty when the indexer does not report it
	LeafIndex uint32
	Lamports  uint64

	Mint     string
	Owner    string
	Amount   uint64
	Delegate string
	State    string
}

// ValidityProof is the compression service's attestation for a set of
// account hashes, in request order.
type ValidityProof struct {
	Proof       CompressedProof
	Roots       []string
	RootIndices []uint16
	LeafIndices []uint32
	Leaves      []string
	MerkleTrees []string
}

// CompressedProof is the Groth16 proof in compressed form.
type CompressedProof struct {
	A [32]byte
	B [64]byte
	C [32]byte
}

// Uint64 decodes a JSON number or a numeric string.
type Uint64 uint64

func (u *Uint64) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*u = 0
		return nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid u64 %s: %w", b, err)
	}
	*u = Uint64(v)
	return nil
}

// Bytes decodes a JSON array of byte values, or a base58 / base64 string.
type Bytes []byte

func (bs *Bytes) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '[' {
		var ints []int
		if err := json.Unmarshal(b, &ints); err != nil {
			return err
		}
		out := make([]byte, len(ints))
		for i, v := range ints {
			if v < 0 || v > 255 {
				return fmt.Errorf("invalid byte at %d: %d", i, v)
			}
			out[i] = byte(v)
		}
		*bs = out
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if raw, err := base58.Decode(s); err == nil {
		*bs = raw
		return nil
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return fmt.Errorf("proof bytes are neither base58 nor base64")
	}
	*bs = raw
	return nil
}

type tokenAccountsResult struct {
	Value struct {
		Items  []tokenAccountItem `json:"items"`
		Cursor *string            `json:"cursor"`
	} `json:"value"`
}

type tokenAccountItem struct {
	Account struct {
		Hash      string `json:"hash"`
		Tree      string `json:"tree"`
		Queue     string `json:"queue"`
		LeafIndex uint32 `json:"leafIndex"`
		Lamports  Uint64 `json:"lamports"`
	} `json:"account"`
	TokenData struct {
		Mint     string  `json:"mint"`
		Owner    string  `json:"owner"`
		Amount   Uint64  `json:"amount"`
		Delegate *string `json:"delegate"`
		State    string  `json:"state"`
	} `json:"tokenData"`
}

func (it tokenAccountItem) toAccount() TokenAccount {
	acc := TokenAccount{
		Hash:      it.Account.Hash,
		Tree:      it.Account.Tree,
		Queue:     it.Account.Queue,
		LeafIndex: it.Account.LeafIndex,
		Lamports:  uint64(it.Account.Lamports),
		Mint:      it.TokenData.Mint,
		Owner:     it.TokenData.Owner,
		Amount:    uint64(it.TokenData.Amount),
		State:     it.TokenData.State,
	}
	if it.TokenData.Delegate != nil {
		acc.Delegate = *it.TokenData.Delegate
	}
	return acc
}

type validityProofResult struct {
	Value struct {
		CompressedProof struct {
			A Bytes `json:"a"`
			B Bytes `json:"b"`
			C Bytes `json:"c"`
		} `json:"compressedProof"`
		Roots       []string `json:"roots"`
		RootIndices []uint16 `json:"rootIndices"`
		LeafIndices []uint32 `json:"leafIndices"`
		Leaves      []string `json:"leaves"`
		MerkleTrees []string `json:"merkleTrees"`
	} `json:"value"`
}
