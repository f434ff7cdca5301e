package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/frahmantamala/kit-checkout/internal/payment"
)

const (
	GeneratePixPath        = "/api/generate-pix"
	GeneratePixPremiumPath = "/api/generate-pix-premium"
)

// KitPixPath is the creation endpoint for a specific kit.
func KitPixPath(kitID string) string {
	return "/api/kits/" + url.PathEscape(kitID) + "/pix"
}

// APIError is an error payload returned by the checkout API, including the
// ones reported with HTTP 200.
type APIError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("checkout api: %s (%s, status %d)", e.Message, e.Code, e.StatusCode)
	}
	return fmt.Sprintf("checkout api: %s (status %d)", e.Message, e.StatusCode)
}

type errorPayload struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Client drives the checkout API the way the checkout page does.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (c *Client) CreatePayment(ctx context.Context, path, email string) (*payment.PaymentResponse, error) {
	body, err := json.Marshal(payment.CreatePaymentRequest{Email: email})
	if err != nil {
		return nil, fmt.Errorf("marshal error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request creation error: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp payment.PaymentResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}

	c.logger.Info("checkout: payment created", "payment_id", resp.ID, "status", resp.Status)
	return &resp, nil
}

func (c *Client) CheckPayment(ctx context.Context, id string) (*payment.CheckPaymentResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/check-payment/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("request creation error: %w", err)
	}

	var resp payment.CheckPaymentResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("response read error: %w", err)
	}

	var errBody errorPayload
	_ = json.Unmarshal(respBody, &errBody)
	if errBody.Error != "" || resp.StatusCode >= http.StatusBadRequest {
		message := errBody.Error
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		c.logger.Warn("checkout: api returned error",
			"status", resp.StatusCode,
			"code", errBody.Code,
			"error", message)
		return &APIError{StatusCode: resp.StatusCode, Message: message, Code: errBody.Code}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("response unmarshal error: %w", err)
	}
	return nil
}
