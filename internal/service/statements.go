package service

import (
	"context"
	"fmt"

	"github.com/dal01/financas/internal/domain"
	"github.com/dal01/financas/internal/infra/observability"
	"github.com/dal01/financas/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var stmtTracer = otel.Tracer("service/statements")

// StatementService answers read queries over persisted statements.
type StatementService struct {
	store   port.StatementStore
	cache   port.Cache[[]domain.Statement]
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewStatementService creates the statement query service.
func NewStatementService(store port.StatementStore, cache port.Cache[[]domain.Statement], metrics *observability.Metrics, logger *zap.Logger) *StatementService {
	return &StatementService{store: store, cache: cache, metrics: metrics, logger: logger}
}

const statementsCacheKey = "statements:all"

// ListStatements returns every statement, newest cycle first.
func (s *StatementService) ListStatements(ctx context.Context) ([]domain.Statement, error) {
	ctx, span := stmtTracer.Start(ctx, "StatementService.ListStatements")
	defer span.End()

	if cached, ok := s.cache.Get(statementsCacheKey); ok {
		return cached, nil
	}

	statements, err := s.store.ListStatements(ctx)
	if err != nil {
		s.metrics.IncrStoreError("list_statements")
		return nil, err
	}
	s.cache.Set(statementsCacheKey, statements)
	return statements, nil
}

// GetStatement fetches one statement by id.
func (s *StatementService) GetStatement(ctx context.Context, id string) (*domain.Statement, error) {
	ctx, span := stmtTracer.Start(ctx, "StatementService.GetStatement")
	defer span.End()
	span.SetAttributes(attribute.String("statement.id", id))

	if id == "" {
		return nil, &domain.ErrValidation{Field: "id", Message: "required"}
	}
	return s.store.GetStatement(ctx, id)
}

// ListTransactions fetches the transactions of one statement.
func (s *StatementService) ListTransactions(ctx context.Context, statementID string) ([]domain.Transaction, error) {
	ctx, span := stmtTracer.Start(ctx, "StatementService.ListTransactions")
	defer span.End()
	span.SetAttributes(attribute.String("statement.id", statementID))

	if statementID == "" {
		return nil, &domain.ErrValidation{Field: "statement_id", Message: "required"}
	}

	// 404 before an empty list when the statement itself is unknown.
	if _, err := s.store.GetStatement(ctx, statementID); err != nil {
		return nil, err
	}

	txs, err := s.store.ListTransactions(ctx, port.TransactionFilter{StatementID: statementID})
	if err != nil {
		s.metrics.IncrStoreError("list_transactions")
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	return txs, nil
}

// MonthlySummary aggregates persisted statements per billing cycle: how many
// cards closed in the cycle and the summed statement total. Cycles come back
// newest first, same as ListStatements.
func (s *StatementService) MonthlySummary(ctx context.Context) ([]domain.CycleSummary, error) {
	ctx, span := stmtTracer.Start(ctx, "StatementService.MonthlySummary")
	defer span.End()

	statements, err := s.ListStatements(ctx)
	if err != nil {
		return nil, err
	}

	var order []string
	byCycle := make(map[string]*domain.CycleSummary)
	for _, st := range statements {
		sum, ok := byCycle[st.BillingCycle]
		if !ok {
			sum = &domain.CycleSummary{BillingCycle: st.BillingCycle}
			byCycle[st.BillingCycle] = sum
			order = append(order, st.BillingCycle)
		}
		sum.Statements++
		sum.CardTails = append(sum.CardTails, st.CardTail)
		sum.Total = sum.Total.Add(st.Total)
	}

	summaries := make([]domain.CycleSummary, 0, len(order))
	for _, cycle := range order {
		summaries = append(summaries, *byCycle[cycle])
	}
	return summaries, nil
}

// InvalidateCache drops cached projections after a mutation.
func (s *StatementService) InvalidateCache() {
	s.cache.Delete(statementsCacheKey)
	s.logger.Debug("statement cache invalidated")
}
