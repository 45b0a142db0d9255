package handlers

import (
	"log/slog"
	"net/http"

	"github.com/SscSPs/curtain_escrow_app/internal/core/domain"
	portssvc "github.com/SscSPs/curtain_escrow_app/internal/core/ports/services"
	"github.com/SscSPs/curtain_escrow_app/internal/dto"
	"github.com/SscSPs/curtain_escrow_app/internal/middleware"
	"github.com/gin-gonic/gin"
)

// ledgerHandler handles HTTP requests for point accounts and their transactions.
type ledgerHandler struct {
	ledgerService portssvc.LedgerSvcFacade
}

func newLedgerHandler(ledgerService portssvc.LedgerSvcFacade) *ledgerHandler {
	return &ledgerHandler{ledgerService: ledgerService}
}

// registerLedgerRoutes registers routes related to the point ledger.
func registerLedgerRoutes(rg *gin.RouterGroup, ledgerService portssvc.LedgerSvcFacade) {
	h := newLedgerHandler(ledgerService)
	operators := middleware.RequireRoles(domain.RoleAdmin, domain.RoleSystem)

	ledger := rg.Group("/ledger")
	{
		ledger.GET("/accounts/:accountID", h.getAccount)
		ledger.GET("/accounts/:accountID/transactions", h.listAccountTransactions)
		ledger.POST("/accounts/:accountID/reconcile", h.reconcileAccount)
		ledger.POST("/charges", operators, h.recordCharge)
		ledger.POST("/withdrawals", h.requestWithdrawal)
		ledger.POST("/transactions/:transactionID/settle", operators, h.settleTransaction)
	}
}

// getAccount godoc
// @Summary Get a point account
// @Description Returns the balance and running totals of an account
// @Tags ledger
// @Produce json
// @Param accountID path string true "Account ID"
// @Success 200 {object} dto.LedgerAccountResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Forbidden"
// @Failure 404 {object} map[string]string "Account not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Security BearerAuth
// @Router /ledger/accounts/{accountID} [get]
func (h *ledgerHandler) getAccount(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	account, err := h.ledgerService.GetBalance(c.Request.Context(), c.Param("accountID"), actor)
	if err != nil {
		respondError(c, err, "Failed to retrieve account")
		return
	}

	c.JSON(http.StatusOK, dto.ToLedgerAccountResponse(account))
}

// listAccountTransactions godoc
// @Summary List the transactions of an account
// @Tags ledger
// @Produce json
// @Param accountID path string true "Account ID"
// @Param limit query int false "Page size" default(20)
// @Param nextToken query string false "Token from the previous page"
// @Success 200 {object} dto.ListTransactionsResponse
// @Failure 400 {object} map[string]string "Invalid query parameters"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Forbidden"
// @Failure 500 {object} map[string]string "Internal server error"
// @Security BearerAuth
// @Router /ledger/accounts/{accountID}/transactions [get]
func (h *ledgerHandler) listAccountTransactions(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	var params dto.ListTransactionsParams
	if err := c.ShouldBindQuery(&params); err != nil {
		logger.Warn("Failed to bind query for listAccountTransactions", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters: " + err.Error()})
		return
	}

	actor, ok := requireActor(c)
	if !ok {
		return
	}

	txs, next, err := h.ledgerService.ListAccountTransactions(c.Request.Context(), c.Param("accountID"), params, actor)
	if err != nil {
		respondError(c, err, "Failed to list transactions")
		return
	}

	c.JSON(http.StatusOK, dto.ListTransactionsResponse{
		Transactions: dto.ToListTransactionResponse(txs),
		NextToken:    next,
	})
}

// reconcileAccount godoc
// @Summary Reconcile an account balance
// @Description Compares the stored balance with the sum of completed transactions
// @Tags ledger
// @Produce json
// @Param accountID path string true "Account ID"
// @Success 200 {object} dto.ReconcileAccountResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Forbidden"
// @Failure 404 {object} map[string]string "Account not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Security BearerAuth
// @Router /ledger/accounts/{accountID}/reconcile [post]
func (h *ledgerHandler) reconcileAccount(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	rec, err := h.ledgerService.ReconcileAccount(c.Request.Context(), c.Param("accountID"), actor)
	if err != nil {
		respondError(c, err, "Failed to reconcile account")
		return
	}

	resp := dto.ToReconcileAccountResponse(rec)
	if !resp.Consistent {
		middleware.GetLoggerFromCtx(c.Request.Context()).Error("Account balance drifted from its transactions",
			slog.String("account_id", resp.AccountID),
			slog.String("cached", resp.CachedBalance.String()),
			slog.String("computed", resp.ComputedBalance.String()))
	}
	c.JSON(http.StatusOK, resp)
}

// recordCharge godoc
// @Summary Record a payment-gateway charge
// @Description Converts a seller's real-money charge into points. Repeating an external reference returns the recorded charge.
// @Tags ledger
// @Accept json
// @Produce json
// @Param charge body dto.RecordChargeRequest true "Charge"
// @Success 201 {object} dto.TransactionResponse
// @Failure 400 {object} map[string]string "Invalid request format or validation error"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Admins and system only"
// @Failure 500 {object} map[string]string "Internal server error"
// @Security BearerAuth
// @Router /ledger/charges [post]
func (h *ledgerHandler) recordCharge(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	var req dto.RecordChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for recordCharge", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	tx, err := h.ledgerService.RecordCharge(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "Failed to record charge")
		return
	}

	logger.Info("Charge recorded", slog.String("transaction_id", tx.TransactionID), slog.String("account_id", tx.AccountID))
	c.JSON(http.StatusCreated, dto.ToTransactionResponse(tx))
}

// requestWithdrawal godoc
// @Summary Withdraw points
// @Description Reserves points of the caller's account for a payout
// @Tags ledger
// @Accept json
// @Produce json
// @Param withdrawal body dto.WithdrawalRequest true "Withdrawal"
// @Success 201 {object} dto.TransactionResponse
// @Failure 400 {object} map[string]string "Invalid request format or validation error"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 402 {object} map[string]string "Insufficient balance"
// @Failure 500 {object} map[string]string "Internal server error"
// @Security BearerAuth
// @Router /ledger/withdrawals [post]
func (h *ledgerHandler) requestWithdrawal(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	var req dto.WithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for requestWithdrawal", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	actor, ok := requireActor(c)
	if !ok {
		return
	}

	tx, err := h.ledgerService.RequestWithdrawal(c.Request.Context(), req, actor)
	if err != nil {
		respondError(c, err, "Failed to request withdrawal")
		return
	}

	c.JSON(http.StatusCreated, dto.ToTransactionResponse(tx))
}

// settleTransaction godoc
// @Summary Record the outcome of a pending transaction
// @Description Settles a pending charge or withdrawal. Escrow, payment and refund transactions belong to their job and are settled by escrow.
// @Tags ledger
// @Accept json
// @Produce json
// @Param transactionID path string true "Transaction ID"
// @Param outcome body dto.SettleTransactionRequest true "Outcome"
// @Success 200 {object} dto.TransactionResponse
// @Failure 400 {object} map[string]string "Invalid request format or validation error"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Admins and system only, or a job's transaction"
// @Failure 404 {object} map[string]string "Transaction not found"
// @Failure 409 {object} map[string]string "Transaction already settled"
// @Failure 500 {object} map[string]string "Internal server error"
// @Security BearerAuth
// @Router /ledger/transactions/{transactionID}/settle [post]
func (h *ledgerHandler) settleTransaction(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	var req dto.SettleTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for settleTransaction", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	tx, err := h.ledgerService.SettleTransaction(c.Request.Context(), c.Param("transactionID"), req.Outcome)
	if err != nil {
		respondError(c, err, "Failed to settle transaction")
		return
	}

	c.JSON(http.StatusOK, dto.ToTransactionResponse(tx))
}
