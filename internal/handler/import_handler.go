package handler

import (
	"encoding/json"
	"net/http"

	"github.com/dal01/financas/internal/domain"
	"github.com/dal01/financas/internal/service"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ============================================================
// Import Handlers
// ============================================================

type importRequest struct {
	// Source labels the statement origin in logs and results.
	Source string `json:"source"`
	// Text is the full statement text, already extracted from the PDF.
	// Exactly one of Text and Path must be set.
	Text string `json:"text"`
	// Path points at a PDF readable by the server process.
	Path      string `json:"path,omitempty"`
	AccountID string `json:"account_id,omitempty"`
	DryRun    bool   `json:"dry_run,omitempty"`
	Replace   bool   `json:"replace,omitempty"`
}

func importStatementHandler(svc *service.ImportService, statements *service.StatementService, installments *service.InstallmentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /statements/import")
		defer span.End()

		var req importRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if (req.Text == "") == (req.Path == "") {
			writeError(w, http.StatusBadRequest, "exactly one of text and path is required")
			return
		}
		if req.Source == "" {
			req.Source = "upload"
		}

		opts := service.ImportOptions{
			AccountID: req.AccountID,
			DryRun:    req.DryRun,
			Replace:   req.Replace,
		}

		var result domain.ImportResult
		if req.Path != "" {
			result = svc.ImportFile(ctx, uuid.NewString(), req.Path, opts)
		} else {
			result = svc.ImportText(ctx, uuid.NewString(), req.Source, req.Text, opts)
		}

		switch result.Outcome {
		case domain.OutcomeImported:
			statements.InvalidateCache()
			installments.InvalidateCache()
			writeJSON(w, http.StatusCreated, result)
		case domain.OutcomeSkipped:
			writeJSON(w, http.StatusConflict, result)
		default:
			logger.Warn("import failed",
				zap.String("source", req.Source),
				zap.String("error", result.Error),
			)
			writeJSON(w, http.StatusUnprocessableEntity, result)
		}
	}
}
