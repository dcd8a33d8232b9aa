// Package wallet is the local keypair signer used by the CLI and the API's
// execute path.
package wallet

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/compressed-token-wallet/internal/rpc"
)

// ErrNoSigner means no private key is configured.
var ErrNoSigner = errors.New("wallet not connected")

type Config struct {
	PrivateKey string // base58-encoded 64-byte key OR solana-keygen JSON array

	Commitment          string // e.g. "confirmed"
	SkipPreflight       bool
	PreflightCommitment string // e.g. "processed"
	ConfirmTimeout      time.Duration

	Logger *logrus.Logger
}

type Wallet struct {
	cfg  Config
	rpc  *rpc.Client
	priv solana.PrivateKey
	pub  solana.PublicKey
	log  *logrus.Logger
}

// New parses the configured key. An empty key yields ErrNoSigner.
func New(client *rpc.Client, cfg Config) (*Wallet, error) {
	if client == nil {
		return nil, fmt.Errorf("wallet: rpc client is required")
	}
	if strings.TrimSpace(cfg.PrivateKey) == "" {
		return nil, ErrNoSigner
	}
	if cfg.Commitment == "" {
		cfg.Commitment = "confirmed"
	}
	if cfg.PreflightCommitment == "" {
		cfg.PreflightCommitment = "processed"
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 60 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	priv, err := ParsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}
	return &Wallet{cfg: cfg, rpc: client, priv: priv, pub: priv.PublicKey(), log: cfg.Logger}, nil
}

func (w *Wallet) Address() string             { return w.pub.String() }
func (w *Wallet) PublicKey() solana.PublicKey { return w.pub }

// ParsePrivateKey accepts a base58 string or a JSON byte array.
func ParsePrivateKey(s string) (solana.PrivateKey, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		var ints []int
		if err := json.Unmarshal([]byte(s), &ints); err != nil {
			return nil, fmt.Errorf("wallet: invalid JSON private key: %w", err)
		}
		b := make([]byte, len(ints))
		for i, v := range ints {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("wallet: invalid byte at %d: %d", i, v)
			}
			b[i] = byte(v)
		}
		if len(b) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("wallet: expected %d bytes, got %d", ed25519.PrivateKeySize, len(b))
		}
		return solana.PrivateKey(b), nil
	}

	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("wallet: invalid base58 private key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("wallet: expected %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}
	return solana.PrivateKey(raw), nil
}
