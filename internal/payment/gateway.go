// internal/payment/gateway.go
// Package payment is the client for the external charge gateway. The
// workflow reacts only to success or failure; gateway internals stay here.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"letter-service/internal/common/config"
	commonhttp "letter-service/internal/common/http"
	"letter-service/internal/common/logger"
)

// ErrDeclined marks a charge the gateway rejected (as opposed to a
// transport failure). Either way the caller decides about retrying.
var ErrDeclined = errors.New("charge declined")

type chargeRequest struct {
	AmountCents  int    `json:"amountCents"`
	PaymentToken string `json:"paymentToken"`
}

type chargeResponse struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transactionId"`
	DeclineReason string `json:"declineReason,omitempty"`
}

// Client implements workflow.PaymentGateway over HTTP.
type Client struct {
	http    *commonhttp.Client
	baseURL string
	apiKey  string
	logger  logger.Logger
}

func NewClient(cfg config.PaymentConfig, log logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Client{
		http:    commonhttp.NewClient(timeout),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		logger:  log.WithFields(map[string]interface{}{"component": "payment"}),
	}
}

// Charge submits one charge attempt and returns the gateway transaction
// id on success.
func (c *Client) Charge(ctx context.Context, amountCents int, paymentToken string) (string, error) {
	if amountCents <= 0 {
		return "", fmt.Errorf("invalid charge amount: %d", amountCents)
	}

	body, err := json.Marshal(chargeRequest{
		AmountCents:  amountCents,
		PaymentToken: paymentToken,
	})
	if err != nil {
		return "", fmt.Errorf("marshal charge request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/v1/charges", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build charge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.DoWithContext(ctx, req)
	if err != nil {
		return "", fmt.Errorf("charge request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	var out chargeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode charge response: %w", err)
	}
	if !out.Success {
		c.logger.Debug("charge declined", map[string]interface{}{
			"reason": out.DeclineReason,
		})
		return "", fmt.Errorf("%w: %s", ErrDeclined, out.DeclineReason)
	}
	return out.TransactionID, nil
}
