package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/compressed-token-wallet/internal/constants"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/models"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/rpc"
)

// CacheClient talks to the metadata cache service:
// GET /metadata?ids=a,b and POST /metadata.
type CacheClient struct {
	baseURL string
	http    *http.Client
	logger  *logrus.Logger
}

func NewCacheClient(baseURL string, timeout time.Duration, logger *logrus.Logger) *CacheClient {
	if logger == nil {
		logger = logrus.New()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CacheClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (c *CacheClient) Name() string { return "cache" }

func (c *CacheClient) Lookup(ctx context.Context, mints []string) (map[string]Hit, error) {
	out := make(map[string]Hit, len(mints))
	for _, batch := range chunk(mints, constants.MaxMetadataBatch) {
		if len(batch) == 0 {
			continue
		}
		rows, err := c.find(ctx, batch)
		if err != nil {
			return out, err
		}
		for _, row := range rows {
			out[row.Mint] = Hit{Record: FromModel(row)}
		}
	}
	return out, nil
}

func (c *CacheClient) find(ctx context.Context, mints []string) ([]models.TokenMetadata, error) {
	q := url.Values{}
	q.Set("ids", strings.Join(mints, ","))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/metadata?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	var rows []models.TokenMetadata
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode cache response: %w", err)
	}
	return rows, nil
}

// InsertMissing posts rows to the cache, which ignores mints it already has.
func (c *CacheClient) InsertMissing(ctx context.Context, rows []models.TokenMetadata) error {
	if len(rows) == 0 {
		return nil
	}
	payload, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("encode cache rows: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/metadata", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("content-type", "application/json")
	_, err = c.do(req)
	return err
}

func (c *CacheClient) do(req *http.Request) ([]byte, error) {
	res, err := c.http.Do(req)
	if err != nil {
		return nil, &rpc.ServiceError{Service: c.Name(), Err: err}
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &rpc.ServiceError{Service: c.Name(), Err: err}
	}
	if res.StatusCode/100 != 2 {
		return nil, &rpc.ServiceError{Service: c.Name(), Err: fmt.Errorf("status %d", res.StatusCode)}
	}
	return body, nil
}
