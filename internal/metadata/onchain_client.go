package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/aman-zulfiqar/compressed-token-wallet/internal/constants"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/models"
)

// OnChainClient calls a remote GET /onchain-metadata/<mint> endpoint. The
// endpoint answers misses with {symbol:"", decimals:0}, which maps to a miss.
type OnChainClient struct {
	baseURL string
	http    *http.Client
	logger  *logrus.Logger
}

func NewOnChainClient(baseURL string, timeout time.Duration, logger *logrus.Logger) *OnChainClient {
	if logger == nil {
		logger = logrus.New()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &OnChainClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (c *OnChainClient) Name() string { return "onchain" }

func (c *OnChainClient) Lookup(ctx context.Context, mints []string) (map[string]Hit, error) {
	var (
		mu  sync.Mutex
		out = make(map[string]Hit, len(mints))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(constants.OnChainFetchWorkers)
	for _, m := range mints {
		m := m
		g.Go(func() error {
			rec, err := c.fetch(gctx, m)
			if err != nil {
				c.logger.WithError(err).WithField("mint", m).Debug("on-chain metadata request failed")
				return nil
			}
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

func (c *OnChainClient) fetch(ctx context.Context, mint string) (Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/onchain-metadata/"+url.PathEscape(mint), nil)
	if err != nil {
		return Record{}, err
	}
	req.Header.Set("accept", "application/json")
	res, err := c.http.Do(req)
	if err != nil {
		return Record{}, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return Record{}, fmt.Errorf("status %d", res.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(res.Body, maxDocumentSize))
	if err != nil {
		return Record{}, err
	}

	var row models.TokenMetadata
	if err := json.Unmarshal(body, &row); err != nil {
		return Record{}, fmt.Errorf("decode on-chain metadata: %w", err)
	}
	if row.Symbol == "" && row.Decimals == 0 {
		return NotFound(mint), nil
	}
	if row.Decimals < 0 {
		return Record{}, fmt.Errorf("negative decimals %d", row.Decimals)
	}
	row.Mint = mint
	return FromModel(row), nil
}
