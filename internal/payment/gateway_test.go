// internal/payment/gateway_test.go
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"letter-service/internal/common/config"
	"letter-service/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGatewayServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewClient(config.PaymentConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Timeout: 5 * time.Second,
	}, logger.NewTestLogger(t))
	return srv, client
}

func TestCharge_Success(t *testing.T) {
	var gotAuth string
	var gotReq chargeRequest
	_, client := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/charges", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		json.NewEncoder(w).Encode(chargeResponse{
			Success:       true,
			TransactionID: "tx-abc",
		})
	})

	txID, err := client.Charge(context.Background(), 4999, "card-token")

	require.NoError(t, err)
	assert.Equal(t, "tx-abc", txID)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, 4999, gotReq.AmountCents)
	assert.Equal(t, "card-token", gotReq.PaymentToken)
}

func TestCharge_Declined(t *testing.T) {
	_, client := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chargeResponse{
			Success:       false,
			DeclineReason: "insufficient funds",
		})
	})

	_, err := client.Charge(context.Background(), 4999, "card-token")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDeclined))
	assert.Contains(t, err.Error(), "insufficient funds")
}

func TestCharge_GatewayError(t *testing.T) {
	_, client := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Charge(context.Background(), 4999, "card-token")

	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrDeclined))
	assert.Contains(t, err.Error(), "502")
}

func TestCharge_RejectsNonPositiveAmount(t *testing.T) {
	client := NewClient(config.PaymentConfig{BaseURL: "http://unused"}, logger.NewNoOpLogger())

	_, err := client.Charge(context.Background(), 0, "card-token")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid charge amount")
}
