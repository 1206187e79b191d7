package handler

import (
	"wallet-ledger/internal/adapter/http/middleware"
	"wallet-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	UserSvc        ports.UserService
	WalletSvc      ports.WalletService
	ReportingSvc   ports.ReportingService
	ReconSvc       ports.ReconciliationService
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// API v1 routes
	v1 := r.Group("/api/v1")

	userHandler := NewUserHandler(deps.UserSvc)
	v1.POST("/users", userHandler.CreateUser)

	walletHandler := NewWalletHandler(deps.WalletSvc, deps.ReportingSvc, deps.ReconSvc)
	wallet := v1.Group("/users/:user_id/wallet")
	{
		wallet.POST("/fund", walletHandler.Fund)
		wallet.POST("/withdraw", walletHandler.Withdraw)
		wallet.POST("/convert", walletHandler.Convert)
		wallet.GET("/balances", walletHandler.GetBalances)
		wallet.GET("/transactions", walletHandler.GetTransactions)
		wallet.GET("/reconciliation", walletHandler.Reconcile)
	}

	return r
}
