package handler

import (
	"net/http"

	"github.com/dal01/financas/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Installments Handlers
// ============================================================

func listInstallmentsHandler(svc *service.InstallmentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /installments")
		defer span.End()
		accountID := r.URL.Query().Get("account_id")
		groups, err := svc.ListGroups(ctx, accountID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, groups)
	}
}
