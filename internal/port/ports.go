// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the parsing core
// and services from concrete implementations.
package port

import (
	"context"
	"time"

	"github.com/dal01/financas/internal/domain"
)

// StatementStore is the persistence collaborator. It enforces uniqueness on
// (statement_id, line_hash, hash_ordinal) so re-importing the same source
// text is idempotent.
type StatementStore interface {
	FindStatementBySourceHash(ctx context.Context, sourceHash string) (*domain.Statement, error)
	FindStatementByCycle(ctx context.Context, cardTail string, cycle time.Time) (*domain.Statement, error)
	CreateStatement(ctx context.Context, st *domain.Statement) (*domain.Statement, error)
	// DeleteStatement removes a statement and its transactions (replace mode).
	DeleteStatement(ctx context.Context, id string) error
	InsertTransactions(ctx context.Context, statementID, accountID string, txs []domain.ParsedTransaction) error

	ListStatements(ctx context.Context) ([]domain.Statement, error)
	GetStatement(ctx context.Context, id string) (*domain.Statement, error)
	ListTransactions(ctx context.Context, f TransactionFilter) ([]domain.Transaction, error)
}

// TransactionFilter narrows ListTransactions. Zero fields are ignored.
type TransactionFilter struct {
	StatementID string
	AccountID   string
	From        time.Time
	To          time.Time
}

// ExtractStore persists checking-account extracts. Transactions are keyed
// (account_id, fitid) so re-importing an OFX file updates in place.
type ExtractStore interface {
	UpsertExtractTransactions(ctx context.Context, accountID string, txs []domain.ExtractTransaction) error
	UpsertBalance(ctx context.Context, b domain.AccountBalance) error
	// DeleteExtractTransactions drops every movement of one account
	// (reset mode).
	DeleteExtractTransactions(ctx context.Context, accountID string) error
	ListExtractTransactions(ctx context.Context, accountID string) ([]domain.ExtractTransaction, error)
}

// TextExtractor turns a binary document into a single linearized text
// stream. The parsing core itself only ever sees plain text.
type TextExtractor interface {
	ExtractText(path string) (string, error)
}

// Cache provides generic caching with TTL. Purge drops every entry; imports
// use it to invalidate all derived projections at once.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
	Purge()
}
