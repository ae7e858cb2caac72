package service

import (
	"context"
	"fmt"

	"github.com/dal01/financas/internal/domain"
	"github.com/dal01/financas/internal/infra/observability"
	"github.com/dal01/financas/internal/installments"
	"github.com/dal01/financas/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var instTracer = otel.Tracer("service/installments")

// InstallmentService projects installment groups from the persisted
// transaction set. Groups are derived on demand and cached, never stored.
type InstallmentService struct {
	store   port.StatementStore
	cache   port.Cache[[]domain.InstallmentGroup]
	opts    installments.Options
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewInstallmentService creates the installment projection service. The
// options are validated once here so every later run can assume them sound.
func NewInstallmentService(
	store port.StatementStore,
	cache port.Cache[[]domain.InstallmentGroup],
	opts installments.Options,
	metrics *observability.Metrics,
	logger *zap.Logger,
) (*InstallmentService, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &InstallmentService{
		store:   store,
		cache:   cache,
		opts:    opts,
		metrics: metrics,
		logger:  logger,
	}, nil
}

// ListGroups computes the installment groups for one account, or for all
// accounts when accountID is empty.
func (s *InstallmentService) ListGroups(ctx context.Context, accountID string) ([]domain.InstallmentGroup, error) {
	ctx, span := instTracer.Start(ctx, "InstallmentService.ListGroups")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	cacheKey := fmt.Sprintf("installments:%s", accountID)
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached, nil
	}

	txs, err := s.store.ListTransactions(ctx, port.TransactionFilter{AccountID: accountID})
	if err != nil {
		s.metrics.IncrStoreError("list_transactions")
		return nil, err
	}

	groups, err := installments.Group(txs, s.opts)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("installment groups projected",
		zap.String("account_id", accountID),
		zap.Int("transactions", len(txs)),
		zap.Int("groups", len(groups)),
	)

	s.cache.Set(cacheKey, groups)
	return groups, nil
}

// InvalidateCache drops all cached projections. Called after imports.
func (s *InstallmentService) InvalidateCache() {
	s.cache.Purge()
}
