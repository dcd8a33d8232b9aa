package jupiter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aman-zulfiqar/compressed-token-wallet/internal/rpc"
)

const (
	defaultBaseURL  = "https://api.jup.ag/swap/v1"
	defaultPriceURL = "https://api.jup.ag/price/v2"
)

// Client talks to the Jupiter swap and price APIs.
type Client struct {
	BaseURL  string
	PriceURL string
	APIKey   string
	HTTP     *http.Client
}

func NewClient(baseURL, priceURL, apiKey string, timeout time.Duration) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	priceURL = strings.TrimRight(strings.TrimSpace(priceURL), "/")
	if priceURL == "" {
		priceURL = defaultPriceURL
	}
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	return &Client{
		BaseURL:  baseURL,
		PriceURL: priceURL,
		APIKey:   strings.TrimSpace(apiKey),
		HTTP:     &http.Client{Timeout: timeout},
	}
}

type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	b := strings.TrimSpace(string(e.Body))
	if b == "" {
		return fmt.Sprintf("jupiter http %d", e.StatusCode)
	}
	return fmt.Sprintf("jupiter http %d: %s", e.StatusCode, b)
}

// APIError is an error payload returned with a 2xx status.
type APIError struct {
	Message string
}

func (e *APIError) Error() string { return "jupiter: " + e.Message }

// Quote fetches a route quote. The raw body is kept on the response so it can
// be sent back verbatim to /swap-instructions.
func (c *Client) Quote(ctx context.Context, req QuoteRequest) (*QuoteResponse, error) {
	q, err := req.values()
	if err != nil {
		return nil, err
	}

	body, err := c.do(ctx, http.MethodGet, c.BaseURL+"/quote?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var out QuoteResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode jupiter quote response: %w", err)
	}
	out.Raw = json.RawMessage(body)
	return &out, nil
}

// SwapInstructions turns a quote into the instruction set for userPublicKey.
func (c *Client) SwapInstructions(ctx context.Context, req SwapInstructionsRequest) (*SwapInstructionsResponse, error) {
	if len(req.QuoteResponse) == 0 {
		return nil, fmt.Errorf("quoteResponse is required")
	}
	if strings.TrimSpace(req.UserPublicKey) == "" {
		return nil, fmt.Errorf("userPublicKey is required")
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode swap-instructions request: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, c.BaseURL+"/swap-instructions", payload)
	if err != nil {
		return nil, err
	}

	var out SwapInstructionsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode jupiter swap-instructions response: %w", err)
	}
	if out.Error != "" {
		return nil, &APIError{Message: out.Error}
	}
	if out.SwapInstruction == nil {
		return nil, &APIError{Message: "response has no swapInstruction"}
	}
	return &out, nil
}

// Prices returns the USD price of each id the oracle knows. Unknown ids are
// absent from the map.
func (c *Client) Prices(ctx context.Context, ids []string) (map[string]float64, error) {
	out := make(map[string]float64, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	body, err := c.do(ctx, http.MethodGet, c.PriceURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var res priceResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("failed to decode jupiter price response: %w", err)
	}
	for id, entry := range res.Data {
		if entry == nil || entry.Price == "" {
			continue
		}
		p, err := strconv.ParseFloat(entry.Price, 64)
		if err != nil {
			continue
		}
		out[id] = p
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, u string, payload []byte) ([]byte, error) {
	var rdr io.Reader
	if payload != nil {
		rdr = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("content-type", "application/json")
	}
	if c.APIKey != "" {
		httpReq.Header.Set("x-api-key", c.APIKey)
	}

	res, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, &rpc.ServiceError{Service: "jupiter", Err: err}
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &rpc.ServiceError{Service: "jupiter", Err: fmt.Errorf("read response: %w", err)}
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: res.StatusCode, Body: body}
	}
	return body, nil
}
