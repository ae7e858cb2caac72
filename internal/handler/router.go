package handler

import (
	"net/http"
	"time"

	"github.com/dal01/financas/internal/infra/observability"
	"github.com/dal01/financas/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Services groups everything the router needs.
type Services struct {
	Import       *service.ImportService
	Statements   *service.StatementService
	Installments *service.InstallmentService
	Export       *service.ExportService
	Extracts     *service.ExtractService
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svcs Services, jwtSecret string, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svcs.Statements))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// Faturas
		r.Get("/statements", listStatementsHandler(svcs.Statements, logger))
		r.Get("/statements/{statementId}", getStatementHandler(svcs.Statements, logger))
		r.Get("/statements/{statementId}/transactions", listTransactionsHandler(svcs.Statements, logger))
		r.Get("/summary", monthlySummaryHandler(svcs.Statements, logger))

		// Conta corrente
		r.Get("/accounts/{accountId}/transactions", listAccountTransactionsHandler(svcs.Extracts, logger))

		// Parcelamentos
		r.Get("/installments", listInstallmentsHandler(svcs.Installments, logger))

		// Exportação
		r.Get("/export/xlsx", exportXLSXHandler(svcs.Export, logger))

		// Contadores de importação
		r.Get("/metrics/import", importSnapshotHandler(metrics))

		// Importação (mutating, requires bearer token)
		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(jwtSecret, logger))
			r.Post("/statements/import", importStatementHandler(svcs.Import, svcs.Statements, svcs.Installments, logger))
		})
	})

	return r
}

func importSnapshotHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetImportSnapshot())
	}
}

func healthzHandler(statements *service.StatementService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		now := time.Now().Format(time.RFC3339)

		storeStatus := "healthy"
		start := time.Now()
		if _, err := statements.ListStatements(ctx); err != nil {
			storeStatus = "degraded"
		}
		latency := time.Since(start).Milliseconds()

		status := http.StatusOK
		if storeStatus != "healthy" {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, map[string]any{
			"status":       storeStatus,
			"store_ms":     latency,
			"last_checked": now,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
