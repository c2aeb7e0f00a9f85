package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"returnsdash/internal/models"
)

var ErrNotFound = errors.New("return not found")

// RefundError carries the human-readable reasons a refund was declined.
// The reasons are surfaced to the user joined with ", ".
type RefundError struct {
	Reasons []string
}

func (e *RefundError) Error() string {
	return "refund declined: " + strings.Join(e.Reasons, ", ")
}

type RefundConfirmation struct {
	RefundID string `json:"refund_id,omitempty"`
	Status   string `json:"status,omitempty"`
}

// Client talks to the remote returns API. It is the only component that
// knows the transport; everything above it depends on the four operations.
type Client struct {
	baseURL string
	httpc   *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: timeout},
	}
}

func (c *Client) ListReturns(ctx context.Context) ([]models.Return, error) {
	var returns []models.Return
	if err := c.getJSON(ctx, "/customer-returns", &returns); err != nil {
		return nil, fmt.Errorf("list returns: %w", err)
	}
	return returns, nil
}

func (c *Client) ListMerchants(ctx context.Context) ([]models.Merchant, error) {
	var merchants []models.Merchant
	if err := c.getJSON(ctx, "/merchants", &merchants); err != nil {
		return nil, fmt.Errorf("list merchants: %w", err)
	}
	return merchants, nil
}

func (c *Client) UpdateReturnStatus(ctx context.Context, id int64, status models.ReturnStatus) (*models.Return, error) {
	body, err := json.Marshal(map[string]models.ReturnStatus{"status": status})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		fmt.Sprintf("%s/customer-returns/%d", c.baseURL, id), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("update return status: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("update return status: unexpected status %d", resp.StatusCode)
	}

	var updated models.Return
	if err := json.NewDecoder(resp.Body).Decode(&updated); err != nil {
		return nil, fmt.Errorf("update return status: decode response: %w", err)
	}
	return &updated, nil
}

func (c *Client) InitiateRefund(ctx context.Context, id int64) (*RefundConfirmation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/customer-returns/%d/refund", c.baseURL, id), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("initiate refund: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusUnprocessableEntity || resp.StatusCode == http.StatusBadRequest:
		return nil, decodeRefundError(resp.Body)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("initiate refund: unexpected status %d", resp.StatusCode)
	}

	var conf RefundConfirmation
	if err := json.NewDecoder(resp.Body).Decode(&conf); err != nil {
		return nil, fmt.Errorf("initiate refund: decode response: %w", err)
	}
	return &conf, nil
}

func (c *Client) getJSON(ctx context.Context, path string, dst interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

func decodeRefundError(r io.Reader) error {
	var payload struct {
		Errors []string `json:"errors"`
	}
	if err := json.NewDecoder(r).Decode(&payload); err != nil || len(payload.Errors) == 0 {
		return &RefundError{Reasons: []string{"refund rejected by gateway"}}
	}
	return &RefundError{Reasons: payload.Errors}
}
