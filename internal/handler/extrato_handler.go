package handler

import (
	"net/http"

	"github.com/dal01/financas/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Conta Corrente Handlers
// ============================================================

func listAccountTransactionsHandler(svc *service.ExtractService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /accounts/{accountId}/transactions")
		defer span.End()
		accountID := chi.URLParam(r, "accountId")
		txs, err := svc.ListAccountTransactions(ctx, accountID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, txs)
	}
}
