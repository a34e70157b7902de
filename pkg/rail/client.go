package rail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/payflow-backend/pkg/config"
	"github.com/angelmondragon/payflow-backend/pkg/enums"
	"github.com/angelmondragon/payflow-backend/pkg/logger"
)

const defaultRequestTimeout = 30 * time.Second

var (
	errBaseURLRequired = errors.New("rail base url is required")
	errAPIKeyRequired  = errors.New("rail api key is required")
	errLoggerRequired  = errors.New("rail logger is required")
)

// Error is a classified failure returned by the payment rail.
type Error struct {
	Code      string
	Message   string
	Retryable bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("rail error %s: %s", e.Code, e.Message)
}

// TransferRequest describes one outbound transfer submission.
type TransferRequest struct {
	IdempotencyKey string
	AccountRef     string
	Amount         decimal.Decimal
	Currency       enums.Currency
	Method         enums.TransferMethod
}

// TransferResult carries the rail's acknowledgement.
type TransferResult struct {
	ExternalRef string
	Settled     bool
}

// Client talks to the external payment rail over HTTPS with centralized auth,
// logging, idempotency, and error mapping.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient initializes the rail wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.RailConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	c := &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logg,
	}

	logg.Info(ctx, "payment rail client initialized")
	return c, nil
}

type transferPayload struct {
	IdempotencyKey string `json:"idempotency_key"`
	AccountRef     string `json:"account_ref"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	Method         string `json:"method"`
}

type transferResponse struct {
	ExternalRef string `json:"external_ref"`
	Status      string `json:"status"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SubmitTransfer submits a transfer keyed by the payout's idempotency key.
// The rail deduplicates on that key, so a timeout followed by a retry cannot
// double-pay.
func (c *Client) SubmitTransfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	if req.IdempotencyKey == "" {
		return nil, &Error{Code: "missing_idempotency_key", Message: "idempotency key is required", Retryable: false}
	}

	payload := transferPayload{
		IdempotencyKey: req.IdempotencyKey,
		AccountRef:     req.AccountRef,
		Amount:         req.Amount.StringFixed(req.Currency.MinorUnits()),
		Currency:       req.Currency.String(),
		Method:         req.Method.String(),
	}

	logCtx := c.logger.WithFields(ctx, map[string]any{
		"idempotency_key": req.IdempotencyKey,
		"method":          req.Method.String(),
	})
	c.logger.Info(logCtx, "rail transfer submit")

	var resp transferResponse
	if err := c.post(ctx, "/v1/transfers", payload, &resp); err != nil {
		c.logger.Error(logCtx, "rail transfer failed", err)
		return nil, err
	}

	return &TransferResult{
		ExternalRef: resp.ExternalRef,
		Settled:     resp.Status == "settled",
	}, nil
}

type eligibilityResponse struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason"`
}

// CheckAccountEligibility reports whether the account may receive payouts.
func (c *Client) CheckAccountEligibility(ctx context.Context, accountRef string) (bool, error) {
	var resp eligibilityResponse
	path := fmt.Sprintf("/v1/accounts/%s/eligibility", accountRef)
	if err := c.get(ctx, path, &resp); err != nil {
		return false, err
	}
	return resp.Eligible, nil
}

func (c *Client) post(ctx context.Context, path string, body any, dest any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode rail request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build rail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, dest)
}

func (c *Client) get(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build rail request: %w", err)
	}
	return c.do(req, dest)
}

func (c *Client) do(req *http.Request, dest any) error {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Transport faults (including client timeouts) are always retryable.
		return &Error{Code: "network_error", Message: err.Error(), Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if dest == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			return &Error{Code: "malformed_response", Message: err.Error(), Retryable: true}
		}
		return nil
	}

	var railErr errorResponse
	_ = json.NewDecoder(resp.Body).Decode(&railErr)
	if railErr.Code == "" {
		railErr.Code = fmt.Sprintf("http_%d", resp.StatusCode)
	}
	return &Error{
		Code:      railErr.Code,
		Message:   railErr.Message,
		Retryable: isRetryableStatus(resp.StatusCode),
	}
}

func isRetryableStatus(status int) bool {
	if status == http.StatusRequestTimeout || status == http.StatusTooManyRequests {
		return true
	}
	return status >= 500
}
