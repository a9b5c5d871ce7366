package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *YooKassaProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewYooKassaProvider(srv.URL, "shop-1", "secret", 5*time.Second)
}

func TestCreatePayment(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v3/payments", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "shop-1", user)
		assert.Equal(t, "secret", pass)
		assert.NotEmpty(t, r.Header.Get("Idempotence-Key"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		amount := body["amount"].(map[string]interface{})
		assert.Equal(t, "150.00", amount["value"])
		assert.Equal(t, "RUB", amount["currency"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "2e8f3b1a",
			"status": "pending",
			"amount": map[string]string{"value": "150.00", "currency": "RUB"},
			"confirmation": map[string]string{
				"type":             "redirect",
				"confirmation_url": "https://checkout.test/2e8f3b1a",
			},
		})
	})

	resp, err := p.CreatePayment(context.Background(), CreateRequest{
		AmountCents: 15000,
		Currency:    "RUB",
		Description: "top-up",
		ReturnURL:   "https://app.test/payment/result",
	})
	require.NoError(t, err)
	assert.Equal(t, "2e8f3b1a", resp.ExternalID)
	assert.Equal(t, "pending", resp.Status)
	assert.Equal(t, "https://checkout.test/2e8f3b1a", resp.ConfirmationURL)
}

func TestGetPaymentParsesDecimalAmount(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/payments/pay-1", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "pay-1",
			"status": "succeeded",
			"paid":   true,
			"amount": map[string]string{"value": "100.50", "currency": "RUB"},
		})
	})

	info, err := p.GetPayment(context.Background(), "pay-1")
	require.NoError(t, err)
	assert.Equal(t, "succeeded", info.Status)
	assert.True(t, info.Paid)
	assert.Equal(t, int64(10050), info.AmountCents)
	assert.Equal(t, "RUB", info.Currency)
}

func TestGetPaymentNotFound(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := p.GetPayment(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetPaymentServerErrorIsUnavailable(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := p.GetPayment(context.Background(), "pay-1")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestGetPaymentMalformedBodyIsProtocolError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	})

	_, err := p.GetPayment(context.Background(), "pay-1")
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestGetPaymentBadAmountIsProtocolError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "pay-1",
			"status": "succeeded",
			"paid":   true,
			"amount": map[string]string{"value": "many rubles", "currency": "RUB"},
		})
	})

	_, err := p.GetPayment(context.Background(), "pay-1")
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestGetPaymentNetworkErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	p := NewYooKassaProvider(url, "shop-1", "secret", time.Second)

	_, err := p.GetPayment(context.Background(), "pay-1")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestCentsToValue(t *testing.T) {
	assert.Equal(t, "150.00", centsToValue(15000))
	assert.Equal(t, "0.05", centsToValue(5))
	assert.Equal(t, "100.50", centsToValue(10050))
}

func TestValueToCents(t *testing.T) {
	cases := map[string]int64{
		"150.00": 15000,
		"0.05":   5,
		"100.5":  10050,
		"100":    10000,
	}
	for value, want := range cases {
		got, err := valueToCents(value)
		require.NoError(t, err)
		assert.Equal(t, want, got, value)
	}
	_, err := valueToCents("")
	assert.Error(t, err)
}
