// Package checkoutclient is the storefront side of payment confirmation: a
// small client for the verify endpoint and a bounded poller around it.
package checkoutclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	verifyPath            = "/api/v1/payments/verify"
	defaultRequestTimeout = 10 * time.Second
	responseReadLimit     = 1 << 20
)

// VerifyResponse mirrors the verify endpoint body.
type VerifyResponse struct {
	Reference string          `json:"reference"`
	Settled   bool            `json:"settled"`
	Status    string          `json:"status"`
	Raw       json.RawMessage `json:"raw,omitempty"`
}

// Client calls the payments API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient validates baseURL and applies a default HTTP timeout.
func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid api base url %q", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &Client{BaseURL: strings.TrimRight(parsed.String(), "/"), HTTPClient: httpClient}, nil
}

// Verify asks the API for the current status of reference.
func (c *Client) Verify(ctx context.Context, reference string) (*VerifyResponse, error) {
	endpoint := c.BaseURL + verifyPath + "?reference=" + url.QueryEscape(reference)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, responseReadLimit))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("verify returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return decodeVerify(body)
}

// decodeVerify accepts the bare verify body and the {"data": ...} envelope
// used by the admin routes.
func decodeVerify(body []byte) (*VerifyResponse, error) {
	var envelope struct {
		Data *VerifyResponse `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode verify response: %w", err)
	}
	if envelope.Data != nil {
		return envelope.Data, nil
	}

	var out VerifyResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode verify response: %w", err)
	}
	if out.Status == "" {
		return nil, errors.New("verify response has no status")
	}
	return &out, nil
}
