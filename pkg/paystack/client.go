package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/r2blaze/r2blaze-backend/pkg/config"
	pkgerrors "github.com/r2blaze/r2blaze-backend/pkg/errors"
)

const (
	DefaultBaseURL = "https://api.paystack.co"

	defaultTimeout        = 10 * time.Second
	responseBodyReadLimit = 1 << 20
)

var (
	errSecretKeyRequired = errors.New("paystack secret key is required")

	// ErrTransactionNotFound is returned by VerifyTransaction when Paystack has
	// no record of the reference.
	ErrTransactionNotFound = errors.New("paystack transaction not found")
)

// APIError is a non-success answer from Paystack. Message is the processor's
// own text and is safe to show to the shopper.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paystack status %d: %s", e.StatusCode, e.Message)
}

// Client calls the Paystack transaction API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the Paystack API root.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient builds a Paystack client from configuration.
func NewClient(cfg config.PaystackConfig, opts ...Option) (*Client, error) {
	key := strings.TrimSpace(cfg.SecretKey)
	if key == "" {
		return nil, errSecretKeyRequired
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := &Client{
		secretKey:  key,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
	if cfg.BaseURL != "" {
		client.baseURL = cfg.BaseURL
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// SecretKey exposes the key used to sign notifications.
func (c *Client) SecretKey() []byte {
	return []byte(c.secretKey)
}

// InitializeTransaction opens a hosted checkout session. It is called exactly
// once per attempt; callers must not retry on failure.
func (c *Client) InitializeTransaction(ctx context.Context, req InitializeRequest) (*InitializeResponse, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "paystack client not configured")
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal initialize request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL("transaction/initialize"), bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build initialize request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	data, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}

	var out InitializeResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode initialize response")
	}
	if out.AuthorizationURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeProcessor, "paystack returned no authorization url")
	}
	return &out, nil
}

// VerifyTransaction fetches the authoritative status of a reference.
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*Transaction, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "paystack client not configured")
	}
	trimmed := strings.TrimSpace(reference)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference is required")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.buildURL("transaction/verify/"+url.PathEscape(trimmed)), nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build verify request")
	}

	data, err := c.do(httpReq)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusNotFound || strings.Contains(strings.ToLower(apiErr.Message), "reference not found")) {
			return nil, fmt.Errorf("%w: %s", ErrTransactionNotFound, trimmed)
		}
		return nil, err
	}

	var txn Transaction
	if err := json.Unmarshal(data, &txn); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode verify response")
	}
	txn.Raw = data
	return &txn, nil
}

// do sends the request and unwraps the {status, message, data} envelope.
// Rejections become CodeProcessor carrying Paystack's message; transport and
// decoding failures become CodeDependency.
func (c *Client) do(req *http.Request) (json.RawMessage, error) {
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "paystack request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read paystack response")
	}

	var env envelope
	decodeErr := json.Unmarshal(body, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || (decodeErr == nil && !env.Status) {
		msg := strings.TrimSpace(env.Message)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: msg}
		return nil, pkgerrors.Wrap(pkgerrors.CodeProcessor, apiErr, msg).WithDetails(map[string]any{
			"processorStatus": resp.StatusCode,
		})
	}
	if decodeErr != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, decodeErr, "decode paystack envelope")
	}
	return env.Data, nil
}

func (c *Client) buildURL(path string) string {
	trimmed := strings.TrimRight(c.baseURL, "/")
	path = strings.TrimLeft(path, "/")
	return fmt.Sprintf("%s/%s", trimmed, path)
}
