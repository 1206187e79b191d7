package handler

import (
	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WalletHandler handles the wallet mutation and read endpoints.
type WalletHandler struct {
	walletSvc    ports.WalletService
	reportingSvc ports.ReportingService
	reconSvc     ports.ReconciliationService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService, reportingSvc ports.ReportingService, reconSvc ports.ReconciliationService) *WalletHandler {
	return &WalletHandler{
		walletSvc:    walletSvc,
		reportingSvc: reportingSvc,
		reconSvc:     reconSvc,
	}
}

// Fund handles POST /api/v1/users/:user_id/wallet/fund.
func (h *WalletHandler) Fund(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	var req dto.FundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	result, err := h.walletSvc.Fund(c.Request.Context(), ports.FundRequest{
		UserID:   userID,
		Amount:   req.Amount,
		Currency: req.Currency,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toTransactionResponse(result))
}

// Withdraw handles POST /api/v1/users/:user_id/wallet/withdraw.
func (h *WalletHandler) Withdraw(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	var req dto.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	result, err := h.walletSvc.Withdraw(c.Request.Context(), ports.WithdrawRequest{
		UserID:   userID,
		Amount:   req.Amount,
		Currency: req.Currency,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toTransactionResponse(result))
}

// Convert handles POST /api/v1/users/:user_id/wallet/convert.
func (h *WalletHandler) Convert(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	var req dto.ConvertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	result, err := h.walletSvc.Convert(c.Request.Context(), ports.ConvertRequest{
		UserID:       userID,
		Amount:       req.Amount,
		FromCurrency: req.FromCurrency,
		ToCurrency:   req.ToCurrency,
		CustomRate:   req.Rate,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toTransactionResponse(result))
}

// GetBalances handles GET /api/v1/users/:user_id/wallet/balances.
func (h *WalletHandler) GetBalances(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	balances, err := h.reportingSvc.GetBalances(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.BalancesResponse{Balances: balances})
}

// GetTransactions handles GET /api/v1/users/:user_id/wallet/transactions.
func (h *WalletHandler) GetTransactions(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	history, err := h.reportingSvc.GetTransactions(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, history)
}

// Reconcile handles GET /api/v1/users/:user_id/wallet/reconciliation.
func (h *WalletHandler) Reconcile(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	report, err := h.reconSvc.Check(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	view := make(map[string]string, len(report))
	for currency, status := range report {
		view[string(currency)] = string(status)
	}
	response.OK(c, dto.ReconciliationResponse{Report: view})
}

func parseUserID(c *gin.Context) (uuid.UUID, bool) {
	userID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid user id"))
		return uuid.Nil, false
	}
	return userID, true
}

func toTransactionResponse(t *domain.Transaction) dto.TransactionResponse {
	resp := dto.TransactionResponse{
		ID:        t.ID.String(),
		Kind:      string(t.Kind),
		Currency:  string(t.Currency),
		Amount:    t.Amount.InexactFloat64(),
		CreatedAt: t.CreatedAt.Format("2006-01-02 15:04:05"),
	}
	if t.ToCurrency != nil {
		s := string(*t.ToCurrency)
		resp.ToCurrency = &s
	}
	if t.ExchangeRate != nil {
		r := t.ExchangeRate.InexactFloat64()
		resp.ExchangeRate = &r
	}
	return resp
}
