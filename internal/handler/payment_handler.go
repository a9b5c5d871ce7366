package handler

import (
	"errors"
	"net/http"
	"strconv"

	"coachhub/config"
	"coachhub/internal/middleware"
	"coachhub/internal/repository"
	"coachhub/internal/service"
	"coachhub/pkg/payment"

	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	svc *service.PaymentService
	cfg *config.Config
}

func NewPaymentHandler(svc *service.PaymentService, cfg *config.Config) *PaymentHandler {
	return &PaymentHandler{svc: svc, cfg: cfg}
}

// Create opens a payment intent and returns the gateway confirmation URL the
// client must redirect the user to.
func (h *PaymentHandler) Create(c *gin.Context) {
	userID := middleware.GetUserID(c)
	var req struct {
		AmountCents int64  `json:"amount" binding:"required,min=1"`
		Currency    string `json:"currency"`
		Description string `json:"description"`
		Email       string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Currency == "" {
		req.Currency = h.cfg.Payment.Currency
	}
	resp, err := h.svc.CreatePayment(c.Request.Context(), service.CreatePaymentRequest{
		UserID:      userID,
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
		Description: req.Description,
		PayerEmail:  req.Email,
		ReturnURL:   h.cfg.Payment.ReturnURL,
	})
	if err != nil {
		if errors.Is(err, repository.ErrInvalidAmount) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to create payment"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":               resp.ExternalID,
		"status":           resp.Status,
		"confirmation_url": resp.ConfirmationURL,
	})
}

// Status proxies the gateway's authoritative view of one payment.
func (h *PaymentHandler) Status(c *gin.Context) {
	externalID := c.Param("payment_id")
	info, err := h.svc.GetStatus(c.Request.Context(), externalID)
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "payment not found"})
		case errors.Is(err, payment.ErrUnavailable):
			c.JSON(http.StatusBadGateway, gin.H{"error": "gateway unavailable"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch payment status"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":           info.ExternalID,
		"status":       info.Status,
		"paid":         info.Paid,
		"amount_cents": info.AmountCents,
		"currency":     info.Currency,
	})
}

// Success is the browser-redirect completion path. The payment id and amount
// come from the client and are treated as hints; reconciliation confirms with
// the gateway before crediting. A payment the webhook already settled comes
// back as "already processed" with the current balance, which the client shows
// as success.
func (h *PaymentHandler) Success(c *gin.Context) {
	var req struct {
		PaymentID   string `json:"payment_id" binding:"required"`
		AmountCents int64  `json:"amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := h.svc.Reconcile(c.Request.Context(), req.PaymentID, req.AmountCents)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownPayment):
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown payment"})
		case errors.Is(err, service.ErrPaymentNotSuccessful):
			c.JSON(http.StatusOK, gin.H{"status": "not_successful", "credited": false})
		case errors.Is(err, service.ErrPaymentPending):
			// The webhook may still finish the credit; tell the client to
			// check history rather than asserting failure.
			c.JSON(http.StatusOK, gin.H{"status": "pending", "credited": false})
		case errors.Is(err, payment.ErrUnavailable):
			c.JSON(http.StatusBadGateway, gin.H{"error": "gateway unavailable"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "reconciliation failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":            "succeeded",
		"credited":          !result.AlreadyProcessed,
		"already_processed": result.AlreadyProcessed,
		"amount_cents":      result.AmountCredited,
		"balance_cents":     result.BalanceCents,
		"currency":          result.Currency,
	})
}

// Balance returns the caller's balance, creating an empty one on first read.
func (h *PaymentHandler) Balance(c *gin.Context) {
	userID := middleware.GetUserID(c)
	b, err := h.svc.GetBalance(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "balance error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"balance_cents": b.AmountCents,
		"currency":      b.Currency,
	})
}

// History lists the caller's payments most-recent-first.
func (h *PaymentHandler) History(c *gin.Context) {
	userID := middleware.GetUserID(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	payments, err := h.svc.History(c.Request.Context(), userID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": payments})
}
