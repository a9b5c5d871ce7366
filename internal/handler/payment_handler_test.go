package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"coachhub/config"
	"coachhub/internal/models"
	"coachhub/internal/service"
	"coachhub/pkg/payment"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// asUser stands in for the auth middleware in tests.
func asUser(userID uint) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Next()
	}
}

func newHandlerTest(t *testing.T, userID uint) (*gin.Engine, *memStore, *payment.StubGateway) {
	t.Helper()
	store := newMemStore()
	gw := payment.NewStubGateway()
	svc := service.NewPaymentService(memDB{}, gw, store, store, nil)
	cfg := &config.Config{}
	cfg.Payment.Currency = "RUB"
	cfg.Payment.ReturnURL = "https://app.test/payment/result"
	h := NewPaymentHandler(svc, cfg)
	r := gin.New()
	g := r.Group("/payments", asUser(userID))
	g.POST("/create", h.Create)
	g.POST("/success", h.Success)
	g.GET("/balance", h.Balance)
	g.GET("/history", h.History)
	return r, store, gw
}

func doJSON(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestCreateReturnsConfirmationURL(t *testing.T) {
	r, store, _ := newHandlerTest(t, 8)

	w := doJSON(r, http.MethodPost, "/payments/create", `{"amount":10000,"description":"top-up"}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.NotEmpty(t, body["id"])
	assert.NotEmpty(t, body["confirmation_url"])
	assert.Equal(t, models.PaymentStatusPending, store.statusOf(body["id"].(string)))
}

func TestCreateRejectsMissingAmount(t *testing.T) {
	r, _, _ := newHandlerTest(t, 8)

	w := doJSON(r, http.MethodPost, "/payments/create", `{"description":"top-up"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSuccessCreditsThenReportsAlreadyProcessed(t *testing.T) {
	r, store, gw := newHandlerTest(t, 8)
	id := createPaid(t, store, gw, 8, 10000)

	w := doJSON(r, http.MethodPost, "/payments/success", fmt.Sprintf(`{"payment_id":%q,"amount":10000}`, id))
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "succeeded", body["status"])
	assert.Equal(t, true, body["credited"])
	assert.Equal(t, float64(10000), body["balance_cents"])

	// The webhook (or a page reload) racing in behind the redirect sees the
	// credit already applied.
	w = doJSON(r, http.MethodPost, "/payments/success", fmt.Sprintf(`{"payment_id":%q,"amount":10000}`, id))
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeBody(t, w)
	assert.Equal(t, false, body["credited"])
	assert.Equal(t, true, body["already_processed"])
	assert.Equal(t, int64(10000), store.balanceOf(8))
}

func TestSuccessPendingPaymentTellsClientToWait(t *testing.T) {
	r, store, gw := newHandlerTest(t, 8)
	created, err := gw.CreatePayment(context.Background(), payment.CreateRequest{AmountCents: 5000, Currency: "RUB"})
	require.NoError(t, err)
	require.NoError(t, store.CreatePending(context.Background(), &models.Payment{
		UserID: 8, ExternalID: created.ExternalID, AmountCents: 5000, Currency: "RUB",
	}))

	w := doJSON(r, http.MethodPost, "/payments/success", fmt.Sprintf(`{"payment_id":%q}`, created.ExternalID))
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, false, body["credited"])
	assert.Zero(t, store.balanceOf(8))
}

func TestSuccessUnknownPayment(t *testing.T) {
	r, _, _ := newHandlerTest(t, 8)

	w := doJSON(r, http.MethodPost, "/payments/success", `{"payment_id":"nonexistent-id"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBalanceCreatesEmptyAccountOnFirstRead(t *testing.T) {
	r, _, _ := newHandlerTest(t, 8)

	w := doJSON(r, http.MethodGet, "/payments/balance", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, float64(0), body["balance_cents"])
	assert.Equal(t, "RUB", body["currency"])
}

func TestHistoryListsOwnPaymentsOnly(t *testing.T) {
	r, store, gw := newHandlerTest(t, 8)
	createPaid(t, store, gw, 8, 10000)
	createPaid(t, store, gw, 9, 4000)

	w := doJSON(r, http.MethodGet, "/payments/history", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	payments := body["payments"].([]interface{})
	require.Len(t, payments, 1)
	first := payments[0].(map[string]interface{})
	assert.Equal(t, float64(8), first["user_id"])
}
