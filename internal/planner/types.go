package planner

import (
	"encoding/json"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/aman-zulfiqar/compressed-token-wallet/internal/models"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/portfolio"
)

// Action is a requested state change. The set of variants is closed.
type Action interface {
	Kind() models.ActionKind
	action()
}

// Compress moves Amount raw units of Mint from the owner's ATA into a
// compressed account.
type Compress struct {
	Mint   solana.PublicKey
	Amount uint64
}

// Decompress moves Amount raw units of compressed Mint into the owner's ATA.
type Decompress struct {
	Mint   solana.PublicKey
	Amount uint64
}

// SwapSource is the holding a swap spends from.
type SwapSource struct {
	Mint           solana.PublicKey
	Representation portfolio.Representation
	Balance        uint64 // raw balance in that representation
}

// Swap exchanges ExactInAmount of From for ToMint using a quote obtained
// beforehand. The destination stays uncompressed.
type Swap struct {
	From          SwapSource
	ToMint        solana.PublicKey
	ExactInAmount uint64
	Quote         json.RawMessage
}

func (Compress) Kind() models.ActionKind   { return models.ActionCompress }
func (Decompress) Kind() models.ActionKind { return models.ActionDecompress }
func (Swap) Kind() models.ActionKind       { return models.ActionSwap }

func (Compress) action()   {}
func (Decompress) action() {}
func (Swap) action()       {}

// Role orders steps within a plan.
type Role int

const (
	RoleSetup Role = iota
	RoleAction
	RoleCleanup
)

func (r Role) String() string {
	switch r {
	case RoleSetup:
		return "setup"
	case RoleAction:
		return "action"
	case RoleCleanup:
		return "cleanup"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Step labels.
const (
	StepComputeBudget   = "compute-unit-limit"
	StepCreateTokenPool = "create-token-pool"
	StepCreateATA       = "create-associated-token-account"
	StepCompress        = "compress"
	StepDecompress      = "decompress"
	StepSwapSetup       = "swap-setup"
	StepSwap            = "swap"
	StepSwapCleanup     = "swap-cleanup"
	StepCloseAccount    = "close-account"
)

// Step is one instruction at its place in the plan.
type Step struct {
	Role        Role
	Label       string
	Instruction solana.Instruction
}

// Plan is the ordered instruction list for one action.
type Plan struct {
	Kind         models.ActionKind
	Steps        []Step
	LookupTables []solana.PublicKey
}

// Instructions returns the step instructions in order.
func (p *Plan) Instructions() []solana.Instruction {
	out := make([]solana.Instruction, len(p.Steps))
	for i, s := range p.Steps {
		out[i] = s.Instruction
	}
	return out
}

// Labels returns the step labels in order.
func (p *Plan) Labels() []string {
	out := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		out[i] = s.Label
	}
	return out
}

// Validate checks that setup steps precede action steps, which precede
// cleanup steps, and that there is at least one action.
func (p *Plan) Validate() error {
	actions := 0
	prev := RoleSetup
	for i, s := range p.Steps {
		if s.Instruction == nil {
			return fmt.Errorf("step %d (%s) has no instruction", i, s.Label)
		}
		if s.Role < prev {
			return fmt.Errorf("step %d (%s): %s after %s", i, s.Label, s.Role, prev)
		}
		if s.Role == RoleAction {
			actions++
		}
		prev = s.Role
	}
	if actions == 0 {
		return fmt.Errorf("plan has no action step")
	}
	return nil
}

func (p *Plan) add(role Role, label string, ix solana.Instruction) {
	p.Steps = append(p.Steps, Step{Role: role, Label: label, Instruction: ix})
}
