package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dal01/financas/internal/domain"
	"github.com/dal01/financas/internal/infra/resilience"
	"github.com/dal01/financas/internal/port"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Compile-time check: the client is the real StatementStore.
var _ port.StatementStore = (*Client)(nil)

const dateLayout = "2006-01-02"

// txRow maps the transactions table columns for inserts. Reads come back as
// domain.Transaction, whose JSON tags match the same columns.
type txRow struct {
	StatementID      string          `json:"statement_id"`
	AccountID        string          `json:"account_id"`
	Date             string          `json:"date"`
	Description      string          `json:"description"`
	City             string          `json:"city,omitempty"`
	Country          string          `json:"country,omitempty"`
	Section          string          `json:"section,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	InstallmentTag   string          `json:"installment_tag,omitempty"`
	InstallmentNum   int             `json:"installment_num,omitempty"`
	InstallmentTotal int             `json:"installment_total,omitempty"`
	LineHash         string          `json:"line_hash"`
	HashOrdinal      int             `json:"hash_ordinal"`
	Duplicate        bool            `json:"duplicate"`
}

// FindStatementBySourceHash looks a statement up by the sha1 of its source
// text. Returns nil without error when no statement matches.
func (c *Client) FindStatementBySourceHash(ctx context.Context, sourceHash string) (*domain.Statement, error) {
	ctx, span := tracer.Start(ctx, "Supabase.FindStatementBySourceHash")
	defer span.End()
	span.SetAttributes(attribute.String("statement.source_hash", sourceHash))

	path := fmt.Sprintf("statements?source_hash=eq.%s&limit=1", sourceHash)
	return c.findStatement(ctx, path)
}

// FindStatementByCycle looks a statement up by card tail and billing cycle.
// Returns nil without error when no statement matches.
func (c *Client) FindStatementByCycle(ctx context.Context, cardTail string, cycle time.Time) (*domain.Statement, error) {
	ctx, span := tracer.Start(ctx, "Supabase.FindStatementByCycle")
	defer span.End()
	span.SetAttributes(
		attribute.String("statement.card_tail", cardTail),
		attribute.String("statement.billing_cycle", cycle.Format(dateLayout)),
	)

	path := fmt.Sprintf("statements?card_tail=eq.%s&billing_cycle=eq.%s&limit=1",
		cardTail, cycle.Format(dateLayout))
	return c.findStatement(ctx, path)
}

func (c *Client) findStatement(ctx context.Context, path string) (*domain.Statement, error) {
	var st *domain.Statement

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := c.doRequest(ctx, http.MethodGet, path, nil, "")
			if err != nil {
				return err
			}
			if body == nil || string(body) == "[]" {
				return nil
			}

			var rows []domain.Statement
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode statements: %w", err)
			}
			if len(rows) > 0 {
				st = &rows[0]
			}
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/statements", Err: err}
	}

	return st, nil
}

// CreateStatement inserts a statement row and returns the stored form,
// including the generated id.
func (c *Client) CreateStatement(ctx context.Context, st *domain.Statement) (*domain.Statement, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateStatement")
	defer span.End()
	span.SetAttributes(attribute.String("statement.card_tail", st.CardTail))

	payload, err := json.Marshal([]*domain.Statement{st})
	if err != nil {
		return nil, fmt.Errorf("failed to encode statement: %w", err)
	}

	var created *domain.Statement

	_, err = c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := c.doRequest(ctx, http.MethodPost, "statements", payload, "")
			if err != nil {
				return err
			}

			var rows []domain.Statement
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode created statement: %w", err)
			}
			if len(rows) == 0 {
				return fmt.Errorf("statement insert returned no rows")
			}
			created = &rows[0]
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/statements", Err: err}
	}

	c.logger.Info("supabase: statement created",
		zap.String("statement_id", created.ID),
		zap.String("card_tail", created.CardTail),
		zap.String("billing_cycle", created.BillingCycle),
	)

	return created, nil
}

// DeleteStatement removes a statement and its transactions. Transactions go
// first so a failure never leaves orphan rows behind.
func (c *Client) DeleteStatement(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteStatement")
	defer span.End()
	span.SetAttributes(attribute.String("statement.id", id))

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("transactions?statement_id=eq.%s", id)
			if _, err := c.doRequest(ctx, http.MethodDelete, path, nil, "return=minimal"); err != nil {
				return err
			}
			path = fmt.Sprintf("statements?id=eq.%s", id)
			_, err := c.doRequest(ctx, http.MethodDelete, path, nil, "return=minimal")
			return err
		})
	})

	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/statements", Err: err}
	}
	return nil
}

// InsertTransactions bulk-inserts parsed transactions for one statement. The
// on_conflict target (statement_id, line_hash, hash_ordinal) plus
// ignore-duplicates makes re-imports idempotent at the row level.
func (c *Client) InsertTransactions(ctx context.Context, statementID, accountID string, txs []domain.ParsedTransaction) error {
	ctx, span := tracer.Start(ctx, "Supabase.InsertTransactions")
	defer span.End()
	span.SetAttributes(
		attribute.String("statement.id", statementID),
		attribute.Int("transactions.count", len(txs)),
	)

	if len(txs) == 0 {
		return nil
	}

	rows := make([]txRow, 0, len(txs))
	for _, t := range txs {
		rows = append(rows, txRow{
			StatementID:      statementID,
			AccountID:        accountID,
			Date:             t.Date.Format(dateLayout),
			Description:      t.Description,
			City:             t.City,
			Country:          t.Country,
			Section:          t.Section,
			Amount:           t.Amount,
			InstallmentTag:   t.InstallmentTag,
			InstallmentNum:   t.InstallmentNum,
			InstallmentTotal: t.InstallmentTotal,
			LineHash:         t.LineHash,
			HashOrdinal:      t.HashOrdinal,
			Duplicate:        t.Duplicate,
		})
	}

	payload, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("failed to encode transactions: %w", err)
	}

	_, err = c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := "transactions?on_conflict=statement_id,line_hash,hash_ordinal"
			_, err := c.doRequest(ctx, http.MethodPost, path, payload,
				"resolution=ignore-duplicates,return=minimal")
			return err
		})
	})

	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/transactions", Err: err}
	}

	c.logger.Debug("supabase: transactions inserted",
		zap.String("statement_id", statementID),
		zap.Int("count", len(rows)),
	)

	return nil
}

// ListStatements returns all statements, newest billing cycle first.
func (c *Client) ListStatements(ctx context.Context) ([]domain.Statement, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListStatements")
	defer span.End()

	var statements []domain.Statement

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := "statements?order=billing_cycle.desc,card_tail.asc"
			body, err := c.doRequest(ctx, http.MethodGet, path, nil, "")
			if err != nil {
				return err
			}
			if body == nil || string(body) == "[]" {
				statements = []domain.Statement{}
				return nil
			}
			if err := json.Unmarshal(body, &statements); err != nil {
				return fmt.Errorf("failed to decode statements: %w", err)
			}
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/statements", Err: err}
	}

	return statements, nil
}

// GetStatement fetches one statement by id.
func (c *Client) GetStatement(ctx context.Context, id string) (*domain.Statement, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetStatement")
	defer span.End()
	span.SetAttributes(attribute.String("statement.id", id))

	path := fmt.Sprintf("statements?id=eq.%s&limit=1", id)
	st, err := c.findStatement(ctx, path)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, &domain.ErrNotFound{Resource: "statement", ID: id}
	}
	return st, nil
}

// ListTransactions fetches transactions matching the filter, oldest first.
func (c *Client) ListTransactions(ctx context.Context, f port.TransactionFilter) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListTransactions")
	defer span.End()

	path := "transactions?order=date.asc,hash_ordinal.asc"
	if f.StatementID != "" {
		path += fmt.Sprintf("&statement_id=eq.%s", f.StatementID)
	}
	if f.AccountID != "" {
		path += fmt.Sprintf("&account_id=eq.%s", f.AccountID)
	}
	if !f.From.IsZero() {
		path += fmt.Sprintf("&date=gte.%s", f.From.Format(dateLayout))
	}
	if !f.To.IsZero() {
		path += fmt.Sprintf("&date=lte.%s", f.To.Format(dateLayout))
	}

	var transactions []domain.Transaction

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := c.doRequest(ctx, http.MethodGet, path, nil, "")
			if err != nil {
				return err
			}
			if body == nil || string(body) == "[]" {
				transactions = []domain.Transaction{}
				return nil
			}
			if err := json.Unmarshal(body, &transactions); err != nil {
				return fmt.Errorf("failed to decode transactions: %w", err)
			}
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/transactions", Err: err}
	}

	return transactions, nil
}
