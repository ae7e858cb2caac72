package handler

import (
	"bytes"
	"net/http"

	"github.com/dal01/financas/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Export Handlers
// ============================================================

func exportXLSXHandler(svc *service.ExportService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /export/xlsx")
		defer span.End()

		// Build into a buffer first so store failures still get a clean
		// error status instead of a truncated download.
		var buf bytes.Buffer
		if err := svc.ExportXLSX(ctx, &buf); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="faturas.xlsx"`)
		w.WriteHeader(http.StatusOK)
		if _, err := buf.WriteTo(w); err != nil {
			logger.Warn("xlsx download interrupted", zap.Error(err))
		}
	}
}
