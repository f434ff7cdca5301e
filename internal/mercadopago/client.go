package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	mp "github.com/frahmantamala/kit-checkout/internal/core/datamodel/mercadopago"
	"github.com/frahmantamala/kit-checkout/pkg/logger"
)

const DefaultAPIURL = "https://api.mercadopago.com"

var (
	ErrMissingAccessToken   = errors.New("mercadopago: access token not configured")
	ErrMalformedAccessToken = errors.New("mercadopago: access token has an unexpected format")
	ErrInvalidResponse      = errors.New("mercadopago: response body could not be decoded")
)

// APIError is a non-2xx answer from the payments API.
type APIError struct {
	StatusCode int
	Message    string
	ErrorCode  string
	Causes     []mp.ErrorCause
	Body       []byte
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("mercadopago: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("mercadopago: status %d", e.StatusCode)
}

func (e *APIError) HasCause(code int) bool {
	for _, c := range e.Causes {
		if c.Code == code {
			return true
		}
	}
	return false
}

type Config struct {
	APIURL      string
	AccessToken string
	Timeout     time.Duration
}

type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
	logger      *slog.Logger
}

func NewClient(config Config, lg *slog.Logger) *Client {
	if lg == nil {
		lg = logger.LoggerWrapper()
	}

	baseURL := strings.TrimRight(config.APIURL, "/")
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:     baseURL,
		accessToken: config.AccessToken,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      lg,
	}
}

// ValidateAccessToken checks the configured credential. Strict mode also
// requires a production/test prefix and a plausible length.
func ValidateAccessToken(token string, strict bool) error {
	if token == "" {
		return ErrMissingAccessToken
	}
	if !strict {
		return nil
	}
	if !strings.HasPrefix(token, "APP_USR-") && !strings.HasPrefix(token, "TEST-") {
		return ErrMalformedAccessToken
	}
	if len(token) <= 30 {
		return ErrMalformedAccessToken
	}
	return nil
}

func (c *Client) CheckCredentials(strict bool) error {
	return ValidateAccessToken(c.accessToken, strict)
}

// CreatePayment issues a single POST /v1/payments; it never retries.
func (c *Client) CreatePayment(ctx context.Context, req *mp.PaymentRequest, idempotencyKey string) (*mp.Payment, error) {
	if err := c.CheckCredentials(false); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		c.logger.Error("payment request validation failed", "error", err)
		return nil, fmt.Errorf("validation error: %w", err)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payment request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/payments", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("X-Idempotency-Key", idempotencyKey)

	logger.From(ctx).Info("mercadopago: creating payment",
		"external_reference", req.ExternalReference,
		"amount", req.TransactionAmount.String(),
		"payer", logger.MaskEmail(req.Payer.Email),
		"idempotency_key", idempotencyKey)

	var payment mp.Payment
	if err := c.do(ctx, httpReq, &payment); err != nil {
		return nil, err
	}

	logger.From(ctx).Info("mercadopago: payment created",
		"payment_id", payment.ID,
		"status", payment.Status,
		"status_detail", payment.StatusDetail)

	return &payment, nil
}

func (c *Client) GetPayment(ctx context.Context, id string) (*mp.Payment, error) {
	if err := c.CheckCredentials(false); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, errors.New("payment id is required")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/payments/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	var payment mp.Payment
	if err := c.do(ctx, httpReq, &payment); err != nil {
		return nil, err
	}

	logger.From(ctx).Debug("mercadopago: payment fetched", "payment_id", payment.ID, "status", payment.Status)
	return &payment, nil
}

func (c *Client) do(ctx context.Context, req *http.Request, out interface{}) error {
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.From(ctx).Error("mercadopago: request failed",
			"method", req.Method,
			"path", req.URL.Path,
			"error", err)
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	logger.From(ctx).Debug("mercadopago: response received",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: respBody}
		var errBody mp.ErrorBody
		if jsonErr := json.Unmarshal(respBody, &errBody); jsonErr == nil {
			apiErr.Message = errBody.Message
			apiErr.ErrorCode = errBody.Error
			apiErr.Causes = errBody.Cause
		}
		logger.From(ctx).Warn("mercadopago: API returned error",
			"status", resp.StatusCode,
			"error_code", apiErr.ErrorCode,
			"message", apiErr.Message)
		return apiErr
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		logger.From(ctx).Error("mercadopago: failed to decode response", "error", err, "status", resp.StatusCode)
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	return nil
}
