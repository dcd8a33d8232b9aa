package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	bin "github.com/gagliardetto/binary"
	tokenmetadata "github.com/gagliardetto/metaplex-go/clients/token-metadata"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/aman-zulfiqar/compressed-token-wallet/internal/constants"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/rpc"
)

var metaplexProgramID = solana.MustPublicKeyFromBase58(constants.MetaplexTokenMetadataProgram)

// maxDocumentSize caps the off-chain JSON body.
const maxDocumentSize = 1 << 20

// AccountFetcher is the ledger read used by OnChainService.
type AccountFetcher interface {
	GetMultipleAccounts(ctx context.Context, pubkeys []solana.PublicKey, commitment string) ([]*rpc.AccountInfo, error)
}

// OnChainService reads Metaplex metadata and the mint account, then the
// document at the metadata URI.
type OnChainService struct {
	ledger AccountFetcher
	http   *http.Client
	logger *logrus.Logger
}

func NewOnChainService(ledger AccountFetcher, timeout time.Duration, logger *logrus.Logger) *OnChainService {
	if logger == nil {
		logger = logrus.New()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OnChainService{ledger: ledger, http: &http.Client{Timeout: timeout}, logger: logger}
}

func (s *OnChainService) Name() string { return "onchain" }

// MetadataPDA derives the Metaplex metadata account of mint.
func MetadataPDA(mint solana.PublicKey) (solana.PublicKey, error) {
	pda, _, err := solana.FindProgramAddress(
		[][]byte{
			[]byte("metadata"),
			metaplexProgramID.Bytes(),
			mint.Bytes(),
		},
		metaplexProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to find Metaplex metadata PDA: %w", err)
	}
	return pda, nil
}

// document is the subset of the off-chain JSON we require.
type document struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Image    string `json:"image"`
	Decimals *int   `json:"decimals"`
}

// Fetch never fails; any problem yields NotFound(mint).
func (s *OnChainService) Fetch(ctx context.Context, mint string) Record {
	rec, err := s.fetch(ctx, mint)
	if err != nil {
		s.logger.WithError(err).WithField("mint", mint).Debug("on-chain metadata unavailable")
		return NotFound(mint)
	}
	return rec
}

func (s *OnChainService) fetch(ctx context.Context, mint string) (Record, error) {
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return Record{}, fmt.Errorf("invalid mint: %w", err)
	}
	pda, err := MetadataPDA(mintKey)
	if err != nil {
		return Record{}, err
	}

	accounts, err := s.ledger.GetMultipleAccounts(ctx, []solana.PublicKey{pda, mintKey}, "")
	if err != nil {
		return Record{}, err
	}
	metaAcct, mintAcct := accounts[0], accounts[1]
	if metaAcct == nil {
		return Record{}, fmt.Errorf("metadata account %s not found", pda)
	}
	if metaAcct.Owner != metaplexProgramID.String() {
		return Record{}, fmt.Errorf("metadata account %s has wrong owner: %s", pda, metaAcct.Owner)
	}

	raw, err := metaAcct.Bytes()
	if err != nil {
		return Record{}, err
	}
	var onChain tokenmetadata.Metadata
	if err := bin.NewBorshDecoder(raw).Decode(&onChain); err != nil {
		return Record{}, fmt.Errorf("failed to deserialize on-chain Metaplex metadata: %w", err)
	}
	symbol := strings.TrimRight(onChain.Data.Symbol, "\x00")
	uri := strings.TrimSpace(strings.TrimRight(onChain.Data.Uri, "\x00"))

	decimals, haveDecimals, err := mintDecimals(mintAcct)
	if err != nil {
		return Record{}, err
	}

	if image, ok := constants.ImageOverrides[mint]; ok && haveDecimals {
		return Record{Mint: mint, Symbol: symbol, Image: image, Decimals: decimals, Found: true}, nil
	}

	if uri == "" {
		return Record{}, fmt.Errorf("metadata has no uri")
	}
	doc, err := s.document(ctx, uri)
	if err != nil {
		return Record{}, err
	}
	if doc.Decimals != nil && *doc.Decimals < 0 {
		return Record{}, fmt.Errorf("document decimals %d", *doc.Decimals)
	}
	if !haveDecimals {
		if doc.Decimals == nil {
			return Record{}, fmt.Errorf("no decimals for %s", mint)
		}
		decimals = *doc.Decimals
	}
	if strings.TrimSpace(doc.Symbol) == "" || strings.TrimSpace(doc.Image) == "" {
		return Record{}, fmt.Errorf("document at %s lacks symbol or image", uri)
	}
	return Record{
		Mint:     mint,
		Symbol:   strings.TrimRight(doc.Symbol, "\x00"),
		Image:    doc.Image,
		Decimals: decimals,
		Found:    true,
	}, nil
}

func mintDecimals(acct *rpc.AccountInfo) (int, bool, error) {
	if acct == nil {
		return 0, false, nil
	}
	raw, err := acct.Bytes()
	if err != nil {
		return 0, false, err
	}
	var m token.Mint
	if err := bin.NewBinDecoder(raw).Decode(&m); err != nil {
		return 0, false, fmt.Errorf("decode mint account: %w", err)
	}
	return int(m.Decimals), true, nil
}

func (s *OnChainService) document(ctx context.Context, uri string) (*document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}
	res, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("document %s: status %d", uri, res.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(res.Body, maxDocumentSize))
	if err != nil {
		return nil, err
	}

	var doc document
	if err := json.Unmarshal(Sanitize(body), &doc); err != nil {
		return nil, fmt.Errorf("document %s: %w", uri, err)
	}
	return &doc, nil
}

// Lookup fetches mints with bounded concurrency.
func (s *OnChainService) Lookup(ctx context.Context, mints []string) (map[string]Hit, error) {
	var (
		mu  sync.Mutex
		out = make(map[string]Hit, len(mints))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(constants.OnChainFetchWorkers)
	for _, m := range mints {
		m := m
		g.Go(func() error {
			rec := s.Fetch(gctx, m)
			if rec.Found {
				mu.Lock()
				out[m] = Hit{Record: rec}
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return out, nil
}
