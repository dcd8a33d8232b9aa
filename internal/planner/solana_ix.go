package planner

import (
	"github.com/gagliardetto/solana-go"

	"github.com/aman-zulfiqar/compressed-token-wallet/internal/constants"
)

var associatedTokenProgramID = solana.MustPublicKeyFromBase58(constants.AssociatedTokenProgram)

// FindAssociatedTokenAddress derives the ATA PDA for (owner, mint).
func FindAssociatedTokenAddress(owner, mint solana.PublicKey) (ata solana.PublicKey, bump uint8, err error) {
	// Seeds: [owner, token_program, mint]
	return solana.FindProgramAddress(
		[][]byte{
			owner.Bytes(),
			solana.TokenProgramID.Bytes(),
			mint.Bytes(),
		},
		associatedTokenProgramID,
	)
}

// NewCreateAssociatedTokenAccountIx builds an instruction to create an ATA.
// Account order (ATA program):
// 0. payer (signer, writable)
// 1. ata (writable)
// 2. owner (read-only)
// 3. mint (read-only)
// 4. system_program
// 5. token_program
func NewCreateAssociatedTokenAccountIx(payer, ata, owner, mint solana.PublicKey) solana.Instruction {
	accounts := []*solana.AccountMeta{
		{PublicKey: payer, IsSigner: true, IsWritable: true},
		{PublicKey: ata, IsSigner: false, IsWritable: true},
		{PublicKey: owner, IsSigner: false, IsWritable: false},
		{PublicKey: mint, IsSigner: false, IsWritable: false},
		{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: solana.TokenProgramID, IsSigner: false, IsWritable: false},
	}
	// Empty data is the legacy Create instruction.
	return solana.NewInstruction(associatedTokenProgramID, accounts, nil)
}

// NewTokenCloseAccountIx builds a SPL Token CloseAccount instruction.
func NewTokenCloseAccountIx(account, destination, owner solana.PublicKey) solana.Instruction {
	// TokenProgram instruction index 9 = CloseAccount
	data := []byte{9}
	accounts := []*solana.AccountMeta{
		{PublicKey: account, IsSigner: false, IsWritable: true},
		{PublicKey: destination, IsSigner: false, IsWritable: true},
		{PublicKey: owner, IsSigner: true, IsWritable: false},
	}
	return solana.NewInstruction(solana.TokenProgramID, accounts, data)
}
