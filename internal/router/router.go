package router

import (
	"time"

	"coachhub/config"
	"coachhub/internal/handler"
	"coachhub/internal/middleware"
	"coachhub/internal/repository"
	"coachhub/internal/service"
	"coachhub/internal/ws"
	"coachhub/pkg/payment"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func Setup(cfg *config.Config, db *gorm.DB, gateway payment.Gateway) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	balanceRepo := repository.NewBalanceRepository(db, cfg.Payment.Currency)
	paymentRepo := repository.NewPaymentRepository(db)

	paymentHub := ws.NewHub()
	paymentSvc := service.NewPaymentService(db, gateway, balanceRepo, paymentRepo, paymentHub)

	paymentHandler := handler.NewPaymentHandler(paymentSvc, cfg)
	webhookHandler := handler.NewPaymentWebhookHandler(paymentSvc, cfg)

	authMw := middleware.AuthRequired(&cfg.JWT)
	userLimiter := middleware.NewRateLimiter(100, 60*time.Second)
	webhookLimiter := middleware.NewRateLimiter(300, 60*time.Second)

	api := r.Group("/api/v1")
	{
		payments := api.Group("/payments")
		payments.Use(authMw, middleware.RateLimitByUser(userLimiter))
		{
			payments.POST("/create", paymentHandler.Create)
			payments.GET("/status/:payment_id", paymentHandler.Status)
			payments.POST("/success", paymentHandler.Success)
			payments.GET("/balance", paymentHandler.Balance)
			payments.GET("/history", paymentHandler.History)
		}
		api.POST("/webhooks/payment", middleware.RateLimitByIP(webhookLimiter), webhookHandler.Handle)
	}

	r.GET("/ws/payments", ws.UpgradePaymentWS(&cfg.JWT, paymentHub))

	return r
}
