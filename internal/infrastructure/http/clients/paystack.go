package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/tuncanbit/ledger/internal/domain"
	"github.com/tuncanbit/ledger/pkg/config"
)

// ErrGatewayRejected marks a 4xx answer; those are never retried.
var ErrGatewayRejected = errors.New("gateway rejected request")

type PaystackClient struct {
	baseURL     string
	secretKey   string
	callbackURL string
	httpClient  *http.Client
	maxRetries  int
	retryDelay  time.Duration
	logger      zerolog.Logger
}

type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type initializeRequest struct {
	Email       string `json:"email"`
	Amount      int64  `json:"amount"`
	CallbackURL string `json:"callback_url,omitempty"`
}

type initializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

func NewPaystackClient(cfg config.PaystackConfig, logger zerolog.Logger) *PaystackClient {
	return &PaystackClient{
		baseURL:     cfg.BaseURL,
		secretKey:   cfg.SecretKey,
		callbackURL: cfg.CallbackURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryBackoffBase,
		logger:     logger,
	}
}

// Initialize opens a hosted checkout for amount minor units and returns the
// gateway reference and the URL the payer should visit.
func (c *PaystackClient) Initialize(ctx context.Context, amount int64, email string) (string, string, error) {
	payload := initializeRequest{
		Email:       email,
		Amount:      amount,
		CallbackURL: c.callbackURL,
	}

	var data initializeData
	if err := c.makeRequest(ctx, http.MethodPost, "/transaction/initialize", payload, &data); err != nil {
		return "", "", fmt.Errorf("failed to initialize transaction: %w", err)
	}
	if data.Reference == "" || data.AuthorizationURL == "" {
		return "", "", errors.New("failed to initialize transaction: gateway returned no reference")
	}

	return data.Reference, data.AuthorizationURL, nil
}

func (c *PaystackClient) Verify(ctx context.Context, reference string) (domain.GatewayCharge, error) {
	endpoint := "/transaction/verify/" + url.PathEscape(reference)

	var charge domain.GatewayCharge
	if err := c.makeRequest(ctx, http.MethodGet, endpoint, nil, &charge); err != nil {
		return domain.GatewayCharge{}, fmt.Errorf("failed to verify transaction %s: %w", reference, err)
	}

	return charge, nil
}

// makeRequest makes an HTTP request with retries and decodes the envelope's data into response.
func (c *PaystackClient) makeRequest(ctx context.Context, method, endpoint string, body interface{}, response interface{}) error {
	fullURL := c.baseURL + endpoint

	var reqBody []byte
	if body != nil {
		var err error
		reqBody, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(1<<(attempt-1))):
			}
		}

		err := c.do(ctx, method, fullURL, reqBody, response)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrGatewayRejected) || ctx.Err() != nil {
			return err
		}

		lastErr = err
		c.logger.Warn().Err(err).Int("attempt", attempt+1).Str("endpoint", endpoint).Msg("Paystack request failed, retrying")
	}

	c.logger.Error().Err(lastErr).Str("endpoint", endpoint).Int("max_retries", c.maxRetries).Msg("Paystack request failed after all retries")
	return fmt.Errorf("request failed after %d retries: %w", c.maxRetries, lastErr)
}

func (c *PaystackClient) do(ctx context.Context, method, fullURL string, reqBody []byte, response interface{}) error {
	var bodyReader io.Reader
	if reqBody != nil {
		bodyReader = bytes.NewReader(reqBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 500 {
		return fmt.Errorf("server error (status %d)", resp.StatusCode)
	}

	var envelope paystackEnvelope
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		if resp.StatusCode >= 400 {
			return fmt.Errorf("%w (status %d)", ErrGatewayRejected, resp.StatusCode)
		}
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if resp.StatusCode >= 400 || !envelope.Status {
		return fmt.Errorf("%w (status %d): %s", ErrGatewayRejected, resp.StatusCode, envelope.Message)
	}

	if response != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, response); err != nil {
			return fmt.Errorf("failed to unmarshal response data: %w", err)
		}
	}
	return nil
}
