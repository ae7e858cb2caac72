package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dal01/financas/internal/domain"
	"github.com/dal01/financas/internal/infra/resilience"
	"github.com/dal01/financas/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var _ port.ExtractStore = (*Client)(nil)

// UpsertExtractTransactions writes checking-account movements. The conflict
// target (account_id, fitid) plus merge-duplicates updates rows in place, so
// re-importing a corrected OFX file converges instead of duplicating.
func (c *Client) UpsertExtractTransactions(ctx context.Context, accountID string, txs []domain.ExtractTransaction) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpsertExtractTransactions")
	defer span.End()
	span.SetAttributes(
		attribute.String("account.id", accountID),
		attribute.Int("transactions.count", len(txs)),
	)

	if len(txs) == 0 {
		return nil
	}

	payload, err := json.Marshal(txs)
	if err != nil {
		return fmt.Errorf("failed to encode extract transactions: %w", err)
	}

	_, err = c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := "account_transactions?on_conflict=account_id,fitid"
			_, err := c.doRequest(ctx, http.MethodPost, path, payload,
				"resolution=merge-duplicates,return=minimal")
			return err
		})
	})

	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/account_transactions", Err: err}
	}

	c.logger.Debug("supabase: extract transactions upserted",
		zap.String("account_id", accountID),
		zap.Int("count", len(txs)),
	)

	return nil
}

// UpsertBalance records the extract's closing ledger balance, one row per
// account and day.
func (c *Client) UpsertBalance(ctx context.Context, b domain.AccountBalance) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpsertBalance")
	defer span.End()
	span.SetAttributes(
		attribute.String("account.id", b.AccountID),
		attribute.String("balance.date", b.Date),
	)

	payload, err := json.Marshal([]domain.AccountBalance{b})
	if err != nil {
		return fmt.Errorf("failed to encode balance: %w", err)
	}

	_, err = c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := "account_balances?on_conflict=account_id,date"
			_, err := c.doRequest(ctx, http.MethodPost, path, payload,
				"resolution=merge-duplicates,return=minimal")
			return err
		})
	})

	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/account_balances", Err: err}
	}
	return nil
}

func (c *Client) DeleteExtractTransactions(ctx context.Context, accountID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteExtractTransactions")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("account_transactions?account_id=eq.%s", accountID)
			_, err := c.doRequest(ctx, http.MethodDelete, path, nil, "return=minimal")
			return err
		})
	})

	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/account_transactions", Err: err}
	}
	return nil
}

func (c *Client) ListExtractTransactions(ctx context.Context, accountID string) ([]domain.ExtractTransaction, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListExtractTransactions")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	var txs []domain.ExtractTransaction
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("account_transactions?account_id=eq.%s&order=date.asc,fitid.asc", accountID)
			body, err := c.doRequest(ctx, http.MethodGet, path, nil, "")
			if err != nil {
				return err
			}
			txs = nil
			if body == nil {
				return nil
			}
			return json.Unmarshal(body, &txs)
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/account_transactions", Err: err}
	}
	return txs, nil
}
