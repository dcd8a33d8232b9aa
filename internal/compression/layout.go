package compression

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Borsh layouts of the compressed token program's instruction arguments.

type QueueIndex struct {
	QueueID uint8
	Index   uint16
}

type PackedMerkleContext struct {
	MerkleTreePubkeyIndex     uint8
	NullifierQueuePubkeyIndex uint8
	LeafIndex                 uint32
	QueueIndex                *QueueIndex `bin:"optional"`
}

type InputTokenDataWithContext struct {
	Amount        uint64
	DelegateIndex *uint8 `bin:"optional"`
	MerkleContext PackedMerkleContext
	RootIndex     uint16
	Lamports      *uint64 `bin:"optional"`
	Tlv           *[]byte `bin:"optional"`
}

type PackedTokenTransferOutputData struct {
	Owner           solana.PublicKey
	Amount          uint64
	Lamports        *uint64 `bin:"optional"`
	MerkleTreeIndex uint8
	Tlv             *[]byte `bin:"optional"`
}

type DelegatedTransfer struct {
	Owner                   solana.PublicKey
	DelegateChangeAccountIx *uint8 `bin:"optional"`
}

type CompressedCpiContext struct {
	SetContext        bool
	FirstSetContext   bool
	CpiContextAccount uint8
}

// TransferData is the argument of the transfer instruction, which also
// carries compress and decompress.
type TransferData struct {
	Proof                              *CompressedProof `bin:"optional"`
	Mint                               solana.PublicKey
	DelegatedTransfer                  *DelegatedTransfer `bin:"optional"`
	InputTokenDataWithContext          []InputTokenDataWithContext
	OutputCompressedAccounts           []PackedTokenTransferOutputData
	IsCompress                         bool
	CompressOrDecompressAmount         *uint64               `bin:"optional"`
	CpiContext                         *CompressedCpiContext `bin:"optional"`
	LamportsChangeAccountMerkleTreeIdx *uint8                `bin:"optional"`
}

// discriminator is the Anchor instruction tag: sha256("global:<name>")[:8].
func discriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte("global:" + name))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}

var (
	createTokenPoolDiscriminator = discriminator("create_token_pool")
	transferDiscriminator        = discriminator("transfer")
)

// encodeTransfer serializes TransferData as the instruction's single
// Vec<u8> argument.
func encodeTransfer(data *TransferData) ([]byte, error) {
	var payload bytes.Buffer
	if err := bin.NewBorshEncoder(&payload).Encode(data); err != nil {
		return nil, fmt.Errorf("encode transfer data: %w", err)
	}

	out := make([]byte, 0, 8+4+payload.Len())
	out = append(out, transferDiscriminator[:]...)
	out = binary.LittleEndian.AppendUint32(out, uint32(payload.Len()))
	out = append(out, payload.Bytes()...)
	return out, nil
}

// DecodeTransfer parses instruction data produced for the transfer
// instruction.
func DecodeTransfer(raw []byte) (*TransferData, error) {
	if len(raw) < 12 || !bytes.Equal(raw[:8], transferDiscriminator[:]) {
		return nil, fmt.Errorf("not a transfer instruction")
	}
	n := binary.LittleEndian.Uint32(raw[8:12])
	if int(n) != len(raw)-12 {
		return nil, fmt.Errorf("transfer payload length %d, have %d", n, len(raw)-12)
	}
	var out TransferData
	if err := bin.NewBorshDecoder(raw[12:]).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode transfer data: %w", err)
	}
	return &out, nil
}
