package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/soundrise/wallet/internal/logger"
)

const (
	CodeTimeout  = "timeout"
	CodeRejected = "rejected"
	CodeUnknown  = "unknown"
)

// Every provider call fails after this long; the caller falls back to
// reconciliation instead of holding a connection open.
const requestTimeout = 10 * time.Second

type Error struct {
	Code string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("code: %s, error: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(code string, err error) *Error {
	return &Error{Code: code, Err: err}
}

// Transfer is the provider's view of one fund transfer.
type Transfer struct {
	TransferCode  string `json:"transfer_code"`
	Reference     string `json:"reference"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason,omitempty"`
}

type TransferRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Reference string          `json:"reference"`
	Recipient string          `json:"recipient"`
	Reason    string          `json:"reason,omitempty"`
}

// envelope is the provider's standard response wrapper.
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type Client struct {
	BaseURL string

	secret string
	client *http.Client
	logger logger.Logger
}

func NewClient(baseURL string, secret string, l logger.Logger) *Client {
	return &Client{
		BaseURL: baseURL,
		secret:  secret,
		client:  &http.Client{},
		logger:  l,
	}
}

// InitiateTransfer dispatches a transfer and returns the provider's transfer
// code. A rejection comes back as Error with CodeRejected.
func (c *Client) InitiateTransfer(ctx context.Context, req TransferRequest) (Transfer, error) {
	var transfer Transfer

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return transfer, NewError(CodeUnknown, fmt.Errorf("failed to encode request: %w", err))
	}

	resp, err := c.send(ctx, http.MethodPost, c.BaseURL+"/transfer", bytes.NewReader(body))
	if err != nil {
		return transfer, err
	}
	defer resp.Body.Close() // nolint:errcheck

	env, err := decodeEnvelope(resp)
	if err != nil {
		return transfer, err
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		c.logger.Warn("Transfer dispatch rejected", "status_code", resp.StatusCode, "message", env.Message, "reference", req.Reference)
		return transfer, NewError(CodeRejected, fmt.Errorf("provider rejected transfer: %s", env.Message))
	}

	if err := json.Unmarshal(env.Data, &transfer); err != nil {
		return transfer, NewError(CodeUnknown, fmt.Errorf("failed to decode transfer: %w", err))
	}

	c.logger.Debug("Transfer dispatched", "reference", req.Reference, "transfer_code", transfer.TransferCode, "status", transfer.Status)
	return transfer, nil
}

// GetTransfer polls the authoritative status of an in-flight transfer.
func (c *Client) GetTransfer(ctx context.Context, transferCode string) (Transfer, error) {
	var transfer Transfer

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	resp, err := c.send(ctx, http.MethodGet, c.BaseURL+"/transfer/"+transferCode, nil)
	if err != nil {
		return transfer, err
	}
	defer resp.Body.Close() // nolint:errcheck

	env, err := decodeEnvelope(resp)
	if err != nil {
		return transfer, err
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("Transfer status poll failed", "status_code", resp.StatusCode, "transfer_code", transferCode)
		return transfer, NewError(CodeUnknown, fmt.Errorf("unexpected status code %d for transfer %s", resp.StatusCode, transferCode))
	}

	if err := json.Unmarshal(env.Data, &transfer); err != nil {
		return transfer, NewError(CodeUnknown, fmt.Errorf("failed to decode transfer: %w", err))
	}

	return transfer, nil
}

func (c *Client) send(ctx context.Context, method string, url string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, NewError(CodeUnknown, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, NewError(CodeTimeout, fmt.Errorf("provider call timed out after %s: %w", requestTimeout, err))
		}
		return nil, NewError(CodeUnknown, fmt.Errorf("failed to send request: %w", err))
	}

	return resp, nil
}

func decodeEnvelope(resp *http.Response) (envelope, error) {
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return env, NewError(CodeUnknown, fmt.Errorf("failed to decode response: %w", err))
	}
	return env, nil
}
