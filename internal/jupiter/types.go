package jupiter

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
)

type QuoteRequest struct {
	InputMint  string
	OutputMint string
	Amount     string // raw integer as string (uint64)

	SlippageBps *uint16
	SwapMode    string // ExactIn | ExactOut

	Dexes        []string
	ExcludeDexes []string

	OnlyDirectRoutes    *bool
	AsLegacyTransaction *bool
	MaxAccounts         *uint64
}

func (r QuoteRequest) values() (url.Values, error) {
	if strings.TrimSpace(r.InputMint) == "" {
		return nil, fmt.Errorf("inputMint is required")
	}
	if strings.TrimSpace(r.OutputMint) == "" {
		return nil, fmt.Errorf("outputMint is required")
	}
	if strings.TrimSpace(r.Amount) == "" {
		return nil, fmt.Errorf("amount is required")
	}

	q := url.Values{}
	q.Set("inputMint", r.InputMint)
	q.Set("outputMint", r.OutputMint)
	q.Set("amount", r.Amount)
	if r.SlippageBps != nil {
		q.Set("slippageBps", strconv.FormatUint(uint64(*r.SlippageBps), 10))
	}
	if r.SwapMode != "" {
		q.Set("swapMode", r.SwapMode)
	}
	if len(r.Dexes) > 0 {
		q.Set("dexes", strings.Join(r.Dexes, ","))
	}
	if len(r.ExcludeDexes) > 0 {
		q.Set("excludeDexes", strings.Join(r.ExcludeDexes, ","))
	}
	if r.OnlyDirectRoutes != nil {
		q.Set("onlyDirectRoutes", strconv.FormatBool(*r.OnlyDirectRoutes))
	}
	if r.AsLegacyTransaction != nil {
		q.Set("asLegacyTransaction", strconv.FormatBool(*r.AsLegacyTransaction))
	}
	if r.MaxAccounts != nil {
		q.Set("maxAccounts", strconv.FormatUint(*r.MaxAccounts, 10))
	}
	return q, nil
}

type QuoteResponse struct {
	InputMint            string          `json:"inputMint"`
	OutputMint           string          `json:"outputMint"`
	InAmount             string          `json:"inAmount"`
	OutAmount            string          `json:"outAmount"`
	OtherAmountThreshold string          `json:"otherAmountThreshold"`
	SwapMode             string          `json:"swapMode"`
	SlippageBps          uint16          `json:"slippageBps"`
	PriceImpactPct       string          `json:"priceImpactPct"`
	RoutePlan            []RoutePlanStep `json:"routePlan"`
	ContextSlot          uint64          `json:"contextSlot,omitempty"`

	// Raw is the undecoded body, forwarded as-is to /swap-instructions.
	Raw json.RawMessage `json:"-"`
}

type RoutePlanStep struct {
	SwapInfo SwapInfo `json:"swapInfo"`
	Percent  *uint8   `json:"percent,omitempty"`
}

type SwapInfo struct {
	AmmKey     string `json:"ammKey"`
	Label      string `json:"label,omitempty"`
	InputMint  string `json:"inputMint"`
	OutputMint string `json:"outputMint"`
	InAmount   string `json:"inAmount"`
	OutAmount  string `json:"outAmount"`
}

type SwapInstructionsRequest struct {
	QuoteResponse json.RawMessage `json:"quoteResponse"`
	UserPublicKey string          `json:"userPublicKey"`
}

type SwapInstructionsResponse struct {
	TokenLedgerInstruction      *Instruction  `json:"tokenLedgerInstruction,omitempty"`
	ComputeBudgetInstructions   []Instruction `json:"computeBudgetInstructions"`
	SetupInstructions           []Instruction `json:"setupInstructions"`
	SwapInstruction             *Instruction  `json:"swapInstruction"`
	CleanupInstruction          *Instruction  `json:"cleanupInstruction,omitempty"`
	AddressLookupTableAddresses []string      `json:"addressLookupTableAddresses"`
	Error                       string        `json:"error,omitempty"`
}

// Instruction is the wire form of a single instruction.
type Instruction struct {
	ProgramID string        `json:"programId"`
	Accounts  []AccountMeta `json:"accounts"`
	Data      string        `json:"data"` // base64
}

type AccountMeta struct {
	Pubkey     string `json:"pubkey"`
	IsSigner   bool   `json:"isSigner"`
	IsWritable bool   `json:"isWritable"`
}

// ToSolana decodes the wire instruction.
func (ix Instruction) ToSolana() (solana.Instruction, error) {
	program, err := solana.PublicKeyFromBase58(ix.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("instruction programId: %w", err)
	}
	data, err := base64.StdEncoding.DecodeString(ix.Data)
	if err != nil {
		return nil, fmt.Errorf("instruction data: %w", err)
	}
	metas := make(solana.AccountMetaSlice, 0, len(ix.Accounts))
	for i, a := range ix.Accounts {
		pk, err := solana.PublicKeyFromBase58(a.Pubkey)
		if err != nil {
			return nil, fmt.Errorf("instruction account %d: %w", i, err)
		}
		metas = append(metas, &solana.AccountMeta{PublicKey: pk, IsSigner: a.IsSigner, IsWritable: a.IsWritable})
	}
	return solana.NewInstruction(program, metas, data), nil
}

// LookupTables parses AddressLookupTableAddresses.
func (r *SwapInstructionsResponse) LookupTables() ([]solana.PublicKey, error) {
	out := make([]solana.PublicKey, 0, len(r.AddressLookupTableAddresses))
	for _, a := range r.AddressLookupTableAddresses {
		pk, err := solana.PublicKeyFromBase58(a)
		if err != nil {
			return nil, fmt.Errorf("lookup table %q: %w", a, err)
		}
		out = append(out, pk)
	}
	return out, nil
}

type priceResponse struct {
	Data map[string]*struct {
		ID    string `json:"id"`
		Price string `json:"price"`
	} `json:"data"`
}
