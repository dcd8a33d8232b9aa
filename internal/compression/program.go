package compression

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/aman-zulfiqar/compressed-token-wallet/internal/constants"
)

var (
	ProgramID                   = solana.MustPublicKeyFromBase58(constants.CompressedTokenProgram)
	LightSystemProgramID        = solana.MustPublicKeyFromBase58(constants.LightSystemProgram)
	AccountCompressionProgramID = solana.MustPublicKeyFromBase58(constants.AccountCompressionProgram)
	NoopProgramID               = solana.MustPublicKeyFromBase58(constants.NoopProgram)
)

// StateTree is an output state tree with its nullifier queue.
type StateTree struct {
	Tree  solana.PublicKey
	Queue solana.PublicKey
}

// TokenPoolPDA derives the pool account holding compressed supply of mint.
func TokenPoolPDA(mint solana.PublicKey) (solana.PublicKey, error) {
	pda, _, err := solana.FindProgramAddress([][]byte{[]byte("pool"), mint.Bytes()}, ProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive token pool for %s: %w", mint, err)
	}
	return pda, nil
}

func cpiAuthorityPDA() (solana.PublicKey, error) {
	pda, _, err := solana.FindProgramAddress([][]byte{[]byte("cpi_authority")}, ProgramID)
	return pda, err
}

func registeredProgramPDA() (solana.PublicKey, error) {
	pda, _, err := solana.FindProgramAddress([][]byte{LightSystemProgramID.Bytes()}, AccountCompressionProgramID)
	return pda, err
}

func accountCompressionAuthorityPDA() (solana.PublicKey, error) {
	pda, _, err := solana.FindProgramAddress([][]byte{[]byte("cpi_authority")}, LightSystemProgramID)
	return pda, err
}

// NewCreateTokenPoolIx registers mint with the compressed token program.
// Account order:
// 0. fee_payer (signer, writable)
// 1. token_pool_pda (writable)
// 2. system_program
// 3. mint (writable)
// 4. token_program
// 5. cpi_authority_pda
func NewCreateTokenPoolIx(payer, mint solana.PublicKey) (solana.Instruction, error) {
	pool, err := TokenPoolPDA(mint)
	if err != nil {
		return nil, err
	}
	cpiAuthority, err := cpiAuthorityPDA()
	if err != nil {
		return nil, err
	}
	accounts := []*solana.AccountMeta{
		{PublicKey: payer, IsSigner: true, IsWritable: true},
		{PublicKey: pool, IsSigner: false, IsWritable: true},
		{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: mint, IsSigner: false, IsWritable: true},
		{PublicKey: solana.TokenProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: cpiAuthority, IsSigner: false, IsWritable: false},
	}
	return solana.NewInstruction(ProgramID, accounts, createTokenPoolDiscriminator[:]), nil
}

// CompressParams moves Amount from the SPL account Source into a compressed
// account owned by ToOwner.
type CompressParams struct {
	Payer     solana.PublicKey
	Owner     solana.PublicKey // authority over Source
	Source    solana.PublicKey
	ToOwner   solana.PublicKey
	Mint      solana.PublicKey
	Amount    uint64
	StateTree StateTree
}

// NewCompressIx builds the transfer instruction in compress mode.
func NewCompressIx(p CompressParams) (solana.Instruction, error) {
	if p.Amount == 0 {
		return nil, fmt.Errorf("compress: amount must be > 0")
	}
	pool, err := TokenPoolPDA(p.Mint)
	if err != nil {
		return nil, err
	}

	packer := newAccountPacker()
	outIdx := packer.index(p.StateTree.Tree)

	amount := p.Amount
	data, err := encodeTransfer(&TransferData{
		Mint:                       p.Mint,
		InputTokenDataWithContext:  []InputTokenDataWithContext{},
		OutputCompressedAccounts:   []PackedTokenTransferOutputData{{Owner: p.ToOwner, Amount: p.Amount, MerkleTreeIndex: outIdx}},
		IsCompress:                 true,
		CompressOrDecompressAmount: &amount,
	})
	if err != nil {
		return nil, err
	}

	accounts, err := transferAccounts(p.Payer, p.Owner, pool, p.Source)
	if err != nil {
		return nil, err
	}
	accounts = append(accounts, packer.metas()...)
	return solana.NewInstruction(ProgramID, accounts, data), nil
}

// DecompressParams spends Inputs and releases Amount to the SPL account
// Destination. Any remainder returns to Owner as a new compressed account.
type DecompressParams struct {
	Payer       solana.PublicKey
	Owner       solana.PublicKey
	Destination solana.PublicKey
	Mint        solana.PublicKey
	Amount      uint64
	Inputs      []TokenAccount
	RootIndices []uint16 // one per input, same order
	Proof       CompressedProof
	StateTree   StateTree // output tree and fallback nullifier queue
}

// NewDecompressIx builds the transfer instruction in decompress mode.
func NewDecompressIx(p DecompressParams) (solana.Instruction, error) {
	if p.Amount == 0 {
		return nil, fmt.Errorf("decompress: amount must be > 0")
	}
	if len(p.Inputs) == 0 {
		return nil, fmt.Errorf("decompress: no input accounts")
	}
	if len(p.RootIndices) != len(p.Inputs) {
		return nil, fmt.Errorf("decompress: %d root indices for %d inputs", len(p.RootIndices), len(p.Inputs))
	}
	total := Sum(p.Inputs)
	if !total.IsUint64() || total.Uint64() < p.Amount {
		return nil, fmt.Errorf("%w: inputs hold %s, need %d", ErrInsufficientBalance, total, p.Amount)
	}
	pool, err := TokenPoolPDA(p.Mint)
	if err != nil {
		return nil, err
	}

	packer := newAccountPacker()
	inputs := make([]InputTokenDataWithContext, 0, len(p.Inputs))
	for i, in := range p.Inputs {
		tree, err := solana.PublicKeyFromBase58(in.Tree)
		if err != nil {
			return nil, fmt.Errorf("decompress: input %d tree: %w", i, err)
		}
		queue := p.StateTree.Queue
		if in.Queue != "" {
			if queue, err = solana.PublicKeyFromBase58(in.Queue); err != nil {
				return nil, fmt.Errorf("decompress: input %d queue: %w", i, err)
			}
		}
		inputs = append(inputs, InputTokenDataWithContext{
			Amount: in.Amount,
			MerkleContext: PackedMerkleContext{
				MerkleTreePubkeyIndex:     packer.index(tree),
				NullifierQueuePubkeyIndex: packer.index(queue),
				LeafIndex:                 in.LeafIndex,
			},
			RootIndex: p.RootIndices[i],
		})
	}
	outIdx := packer.index(p.StateTree.Tree)

	outputs := []PackedTokenTransferOutputData{}
	if change := total.Uint64() - p.Amount; change > 0 {
		outputs = append(outputs, PackedTokenTransferOutputData{Owner: p.Owner, Amount: change, MerkleTreeIndex: outIdx})
	}

	amount := p.Amount
	proof := p.Proof
	data, err := encodeTransfer(&TransferData{
		Proof:                      &proof,
		Mint:                       p.Mint,
		InputTokenDataWithContext:  inputs,
		OutputCompressedAccounts:   outputs,
		IsCompress:                 false,
		CompressOrDecompressAmount: &amount,
	})
	if err != nil {
		return nil, err
	}

	accounts, err := transferAccounts(p.Payer, p.Owner, pool, p.Destination)
	if err != nil {
		return nil, err
	}
	accounts = append(accounts, packer.metas()...)
	return solana.NewInstruction(ProgramID, accounts, data), nil
}

// transferAccounts lists the fixed accounts of the transfer instruction.
// Account order:
// 0. fee_payer (signer, writable)
// 1. authority (signer)
// 2. cpi_authority_pda
// 3. light_system_program
// 4. registered_program_pda
// 5. noop_program
// 6. account_compression_authority
// 7. account_compression_program
// 8. self_program
// 9. token_pool_pda (writable)
// 10. compress_or_decompress_token_account (writable)
// 11. token_program
// 12. system_program
func transferAccounts(payer, authority, pool, tokenAccount solana.PublicKey) ([]*solana.AccountMeta, error) {
	cpiAuthority, err := cpiAuthorityPDA()
	if err != nil {
		return nil, err
	}
	registered, err := registeredProgramPDA()
	if err != nil {
		return nil, err
	}
	compressionAuthority, err := accountCompressionAuthorityPDA()
	if err != nil {
		return nil, err
	}
	return []*solana.AccountMeta{
		{PublicKey: payer, IsSigner: true, IsWritable: true},
		{PublicKey: authority, IsSigner: true, IsWritable: false},
		{PublicKey: cpiAuthority, IsSigner: false, IsWritable: false},
		{PublicKey: LightSystemProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: registered, IsSigner: false, IsWritable: false},
		{PublicKey: NoopProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: compressionAuthority, IsSigner: false, IsWritable: false},
		{PublicKey: AccountCompressionProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: ProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: pool, IsSigner: false, IsWritable: true},
		{PublicKey: tokenAccount, IsSigner: false, IsWritable: true},
		{PublicKey: solana.TokenProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false},
	}, nil
}

// accountPacker assigns remaining-account indexes to trees and queues.
type accountPacker struct {
	keys []solana.PublicKey
	pos  map[solana.PublicKey]uint8
}

func newAccountPacker() *accountPacker {
	return &accountPacker{pos: map[solana.PublicKey]uint8{}}
}

func (p *accountPacker) index(pk solana.PublicKey) uint8 {
	if i, ok := p.pos[pk]; ok {
		return i
	}
	i := uint8(len(p.keys))
	p.keys = append(p.keys, pk)
	p.pos[pk] = i
	return i
}

func (p *accountPacker) metas() []*solana.AccountMeta {
	out := make([]*solana.AccountMeta, len(p.keys))
	for i, k := range p.keys {
		out[i] = &solana.AccountMeta{PublicKey: k, IsWritable: true}
	}
	return out
}
