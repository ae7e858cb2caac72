package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExtractTransaction is one movement of a checking-account extract, as
// recovered from an OFX file. FITID is the bank-assigned identity and the
// upsert key within its account; synthesized when the bank omits it.
type ExtractTransaction struct {
	ID          string          `json:"id,omitempty"`
	AccountID   string          `json:"account_id"`
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	FITID       string          `json:"fitid"`
	CreatedAt   time.Time       `json:"created_at,omitempty"`
}

// AccountBalance is the ledger balance reported at the end of an extract.
type AccountBalance struct {
	AccountID string          `json:"account_id"`
	Date      string          `json:"date"`
	Amount    decimal.Decimal `json:"amount"`
}

// ExtractImportResult reports one OFX file run.
type ExtractImportResult struct {
	RunID        string        `json:"run_id"`
	Source       string        `json:"source"`
	Outcome      ImportOutcome `json:"outcome"`
	Accounts     int           `json:"accounts"`
	Transactions int           `json:"transactions"`
	Skipped      int           `json:"skipped,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// ExtractImportSummary aggregates a batch of OFX files.
type ExtractImportSummary struct {
	Imported int                   `json:"imported"`
	Failed   int                   `json:"failed"`
	Results  []ExtractImportResult `json:"results"`
}
