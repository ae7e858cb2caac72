// Package domain holds the core types of the statement parsing and
// reconciliation engine: statement headers, parsed transactions and
// installment group projections.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Brand is the card network printed on the statement header.
type Brand string

const (
	BrandVisa       Brand = "VISA"
	BrandMastercard Brand = "MASTERCARD"
	BrandElo        Brand = "ELO"
	BrandAmex       Brand = "AMEX"
	BrandHipercard  Brand = "HIPERCARD"
	BrandUnknown    Brand = ""
)

// StatementHeader carries the metadata extracted from the free text of one
// monthly statement. It is constructed once per source text and never
// mutated afterwards.
type StatementHeader struct {
	Issuer       string
	CardTail     string // last 4 digits, as printed ("Final 1234")
	Brand        Brand
	ClosedAt     time.Time
	DueAt        time.Time
	BillingCycle time.Time // first day of ClosedAt's month
	// Total is the statement total found after the anchor line. Nil when the
	// pattern never matched (recorded as an observation, not an error).
	Total      *decimal.Decimal
	SourceHash string // sha1 of the full source text, the statement idempotency key
	// Observations are non-fatal anomalies found while parsing. They travel
	// with the result and are meant for operator review.
	Observations []string
}

// ParsedTransaction is one transaction line recovered from a statement block.
// Created by the line-block parser, finalized by the dedup pass, then handed
// to the store; never mutated after creation.
type ParsedTransaction struct {
	Date        time.Time
	Description string
	City        string // intentionally never inferred; kept for hash/store parity
	Country     string // 2-3 letter code when detected next to the amount
	Section     string // last seen section header, e.g. "Compras Nacionais"
	Amount      decimal.Decimal

	InstallmentTag   string // raw tag, e.g. "PARC 05/12"
	InstallmentNum   int    // 0 when absent
	InstallmentTotal int    // 0 when absent

	// LineHash identifies the logical line within its statement:
	// sha1(date|cents|desc|city|country|tag) over normalized fields.
	LineHash string
	// HashOrdinal is the 1-based occurrence counter among identical hashes
	// in one statement. Ordinal > 1 marks a duplicate.
	HashOrdinal int
	Duplicate   bool
}

// Statement is the persisted form of a parsed statement.
type Statement struct {
	ID           string          `json:"id"`
	Issuer       string          `json:"issuer"`
	CardTail     string          `json:"card_tail"`
	Brand        string          `json:"brand,omitempty"`
	ClosedAt     string          `json:"closed_at"`
	DueAt        string          `json:"due_at"`
	BillingCycle string          `json:"billing_cycle"`
	Total        decimal.Decimal `json:"total"`
	SourceHash   string          `json:"source_hash"`
	SourceFile   string          `json:"source_file,omitempty"`
	Observations []string        `json:"observations,omitempty"`
	CreatedAt    time.Time       `json:"created_at,omitempty"`
}

// Transaction is the persisted form of a parsed transaction, as read back
// from the store for listing and installment grouping.
type Transaction struct {
	ID               string          `json:"id"`
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

// ParsedDate returns the transaction date as a time.Time (dates are stored
// as ISO strings by the PostgREST backend).
func (t *Transaction) ParsedDate() (time.Time, error) {
	return time.Parse("2006-01-02", t.Date)
}

// CycleSummary aggregates the statements of one billing cycle across cards.
type CycleSummary struct {
	BillingCycle string          `json:"billing_cycle"`
	Statements   int             `json:"statements"`
	CardTails    []string        `json:"card_tails"`
	Total        decimal.Decimal `json:"total"`
}

// InstallmentGroup is a transient projection: 2+ transactions believed to be
// consecutive monthly installments of one purchase. It is recomputed on
// demand and never persisted.
type InstallmentGroup struct {
	GroupID          string          `json:"group_id"`
	PurchaseDate     string          `json:"purchase_date"` // earliest member date, ISO
	Description      string          `json:"description"`   // normalized, installment tokens stripped
	InstallmentTotal int             `json:"installment_total,omitempty"`
	AvgValue         decimal.Decimal `json:"avg_value"`
	TotalValue       decimal.Decimal `json:"total_value"`
	Count            int             `json:"count"`
	TransactionIDs   []string        `json:"transaction_ids"`
}

// ImportOutcome classifies what happened to one statement in a batch run.
type ImportOutcome string

const (
	OutcomeImported ImportOutcome = "imported"
	OutcomeSkipped  ImportOutcome = "skipped-duplicate-statement"
	OutcomeFailed   ImportOutcome = "failed-with-diagnostic"
)

// ImportResult reports one statement's import.
type ImportResult struct {
	RunID        string        `json:"run_id"`
	Source       string        `json:"source"`
	Outcome      ImportOutcome `json:"outcome"`
	StatementID  string        `json:"statement_id,omitempty"`
	Transactions int           `json:"transactions"`
	Duplicates   int           `json:"duplicates"`
	Error        string        `json:"error,omitempty"`
}

// ImportSummary aggregates a batch run.
type ImportSummary struct {
	Imported int            `json:"imported"`
	Skipped  int            `json:"skipped"`
	Failed   int            `json:"failed"`
	Results  []ImportResult `json:"results"`
}
