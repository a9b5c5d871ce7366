package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"coachhub/config"
	"coachhub/internal/service"

	"github.com/gin-gonic/gin"
)

// Gateway webhook event types we act on. Anything else is logged and ignored.
const (
	webhookEventSucceeded         = "payment.succeeded"
	webhookEventCanceled          = "payment.canceled"
	webhookEventWaitingForCapture = "payment.waiting_for_capture"
)

type PaymentWebhookHandler struct {
	svc *service.PaymentService
	cfg *config.Config
}

func NewPaymentWebhookHandler(svc *service.PaymentService, cfg *config.Config) *PaymentWebhookHandler {
	return &PaymentWebhookHandler{svc: svc, cfg: cfg}
}

type webhookEvent struct {
	Event  string `json:"event"`
	Object struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Paid   bool   `json:"paid"`
		Amount struct {
			Value    string `json:"value"`
			Currency string `json:"currency"`
		} `json:"amount"`
	} `json:"object"`
}

// Handle processes gateway notifications. Delivery is at-least-once and
// possibly out of order, and the reconciliation engine already tolerates
// duplicates, so this handler answers 200 in every case: a non-200 only
// triggers a provider retry storm that cannot change the outcome.
func (h *PaymentWebhookHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		log.Printf("[Webhook] read body: %v", err)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}
	if h.cfg.Payment.WebhookSecret != "" {
		sig := c.GetHeader("X-Webhook-Signature")
		if !h.verifySignature(body, sig) {
			log.Printf("[Webhook] invalid signature from %s", c.ClientIP())
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}
	}
	var payload webhookEvent
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Printf("[Webhook] invalid json: %v", err)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}
	if payload.Object.ID == "" {
		log.Printf("[Webhook] event %q without payment id, acknowledging", payload.Event)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	switch payload.Event {
	case webhookEventSucceeded:
		result, err := h.svc.Reconcile(c.Request.Context(), payload.Object.ID, 0)
		switch {
		case err == nil:
			if result.AlreadyProcessed {
				log.Printf("[Webhook] payment %s already processed", payload.Object.ID)
			} else {
				log.Printf("[Webhook] payment %s credited %d", payload.Object.ID, result.AmountCredited)
			}
		case errors.Is(err, service.ErrUnknownPayment):
			log.Printf("[Webhook] payment %s not ours, ignoring", payload.Object.ID)
		default:
			// The record stays pending; the provider's next retry or the
			// success callback will settle it.
			log.Printf("[Webhook] reconcile %s: %v", payload.Object.ID, err)
		}
	case webhookEventCanceled:
		if err := h.svc.MarkCanceled(c.Request.Context(), payload.Object.ID); err != nil && !errors.Is(err, service.ErrUnknownPayment) {
			log.Printf("[Webhook] mark canceled %s: %v", payload.Object.ID, err)
		}
	case webhookEventWaitingForCapture:
		if err := h.svc.MarkPending(c.Request.Context(), payload.Object.ID); err != nil && !errors.Is(err, service.ErrUnknownPayment) {
			log.Printf("[Webhook] mark pending %s: %v", payload.Object.ID, err)
		}
	default:
		log.Printf("[Webhook] unrecognized event %q for payment %s, ignoring", payload.Event, payload.Object.ID)
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *PaymentWebhookHandler) verifySignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(h.cfg.Payment.WebhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}
