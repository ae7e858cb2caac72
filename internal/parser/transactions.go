package parser

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dal01/financas/internal/domain"
)

// Options tune one ParseTransactions call.
type Options struct {
	// DebugUnmatched collects a bounded sample of discarded blocks for
	// diagnostics. DebugMax caps the sample (default 40).
	DebugUnmatched bool
	DebugMax       int
	// Issuer overrides DefaultIssuer on parsed headers when non-empty.
	Issuer string
}

// UnmatchedBlock is one discarded block, returned only in debug mode.
type UnmatchedBlock struct {
	Lines  []string `json:"lines"`
	Reason string   `json:"reason"`
}

const fallbackDescription = "LANÇAMENTO"

// ParseTransactions segments the post-anchor text into blocks and resolves
// each into a transaction. The returned slice is sorted by date ascending
// (stable) and already carries hashes, ordinals and duplicate flags.
func ParseTransactions(pats *PatternTable, text string, closedAt time.Time, opts Options) ([]domain.ParsedTransaction, []UnmatchedBlock) {
	if len(strings.TrimSpace(text)) < minTextLen {
		return nil, nil
	}
	if opts.DebugMax <= 0 {
		opts.DebugMax = 40
	}

	var (
		txs       []domain.ParsedTransaction
		unmatched []UnmatchedBlock
		scanner   = newBlockScanner(pats)
	)

	resolve := func(b *block, section string) {
		tx, reason := resolveBlock(pats, b, closedAt, section)
		if tx != nil {
			txs = append(txs, *tx)
			return
		}
		if opts.DebugUnmatched && reason != "" && len(unmatched) < opts.DebugMax {
			unmatched = append(unmatched, UnmatchedBlock{Lines: b.lines, Reason: reason})
		}
	}

	for _, raw := range linesAfterAnchor(pats, text) {
		if done, ok := scanner.Feed(raw); ok {
			resolve(done, scanner.Section())
		}
	}
	if done, ok := scanner.Finish(); ok {
		resolve(done, scanner.Section())
	}

	sort.SliceStable(txs, func(i, j int) bool { return txs[i].Date.Before(txs[j].Date) })

	finalizeHashes(txs)
	return txs, unmatched
}

// resolveBlock turns one block into a transaction, or returns a reason why
// the block was discarded. Discards are silent by design: they are not
// statement data.
func resolveBlock(pats *PatternTable, b *block, closedAt time.Time, section string) (*domain.ParsedTransaction, string) {
	first := strings.TrimSpace(b.lines[0])

	mDate := pats.ShortDate.FindStringSubmatch(first)
	if mDate == nil {
		return nil, "no leading date token"
	}
	day, _ := strconv.Atoi(mDate[1][:2])
	month, _ := strconv.Atoi(mDate[1][3:5])
	date, ok := rolloverDate(day, month, closedAt)
	if !ok {
		return nil, fmt.Sprintf("invalid calendar date %q", mDate[1])
	}

	// First line with a trailing amount, skipping known non-transaction lines.
	valueIdx := -1
	var rawValue string
	for j, cand := range b.lines {
		cand = strings.TrimSpace(cand)
		if pats.SkipValueLine.MatchString(cand) {
			continue
		}
		if mv := pats.ValueEnd.FindStringSubmatch(cand); mv != nil {
			valueIdx = j
			rawValue = mv[1]
			break
		}
	}
	if valueIdx == -1 {
		return nil, "no qualifying value line"
	}

	amount, err := ParseDecimalBR(rawValue)
	if err != nil {
		return nil, fmt.Sprintf("unparseable amount %q", rawValue)
	}

	// Description: first line minus date token (cleaned of trailing amount and
	// country), plus every line up to the value line.
	firstNoDate := strings.TrimSpace(first[len(mDate[0]):])
	firstClean, country := cleanFirstLine(pats, firstNoDate)

	parts := make([]string, 0, valueIdx+1)
	if firstClean != "" {
		parts = append(parts, firstClean)
	}
	// Skip phrases only exclude a line from the value search; as text they
	// still belong to the description span and therefore to the line hash.
	for _, mid := range b.lines[1:valueIdx] {
		t := strings.TrimSpace(mid)
		if t == "" {
			continue
		}
		parts = append(parts, t)
	}
	description := multiSpace.ReplaceAllString(strings.Join(parts, " "), " ")
	description = strings.TrimSpace(description)
	if description == "" {
		description = strings.TrimSpace(pats.CurrencyEnd.ReplaceAllString(firstNoDate, ""))
		if description == "" {
			description = fallbackDescription
		}
	}

	// Account-level debit payments are not purchases.
	if amount.IsNegative() && pats.PaymentDebit.MatchString(strings.ToUpper(description)) {
		return nil, "payment-debit reversal"
	}

	// Installment tag anywhere in the block up to (and including) the value line.
	tag := ""
	num, total := 0, 0
	upToValue := strings.Join(b.lines[:valueIdx+1], " ")
	if m := pats.Installment.FindStringSubmatch(upToValue); m != nil {
		tag = m[0]
		num, _ = strconv.Atoi(m[1])
		total, _ = strconv.Atoi(m[2])
	}

	return &domain.ParsedTransaction{
		Date:             date,
		Description:      description,
		Country:          country,
		Section:          section,
		Amount:           amount,
		InstallmentTag:   tag,
		InstallmentNum:   num,
		InstallmentTotal: total,
	}, ""
}

// cleanFirstLine removes a trailing amount and extracts a country code, but
// only when the code sits immediately before the amount or at line end.
// City is intentionally never inferred here: a 2-3 letter uppercase token at
// an arbitrary position is too often part of a merchant name.
func cleanFirstLine(pats *PatternTable, s string) (clean, country string) {
	txt := strings.TrimSpace(s)
	if txt == "" {
		return "", ""
	}

	if m := pats.CountryPre.FindStringSubmatchIndex(txt); m != nil {
		country = txt[m[2]:m[3]]
		txt = strings.TrimSpace(txt[:m[2]] + txt[m[3]:])
	}

	txt = strings.TrimSpace(pats.CurrencyEnd.ReplaceAllString(txt, ""))

	if country == "" {
		if m := pats.CountryEnd.FindStringSubmatch(txt); m != nil {
			country = m[1]
			txt = strings.TrimSpace(pats.CountryEnd.ReplaceAllString(txt, ""))
		}
	}

	return multiSpace.ReplaceAllString(txt, " "), country
}

// rolloverDate builds the date in the close date's year, stepping back one
// year when that lands after the close date (statements spanning new year).
func rolloverDate(day, month int, closedAt time.Time) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	d := time.Date(closedAt.Year(), time.Month(month), day, 0, 0, 0, 0, closedAt.Location())
	if d.Day() != day || d.Month() != time.Month(month) {
		return time.Time{}, false // e.g. 31/02 normalized away by time.Date
	}
	if d.After(closedAt) {
		d = time.Date(closedAt.Year()-1, time.Month(month), day, 0, 0, 0, 0, closedAt.Location())
		if d.Day() != day {
			return time.Time{}, false
		}
	}
	return d, true
}

// finalizeHashes assigns each transaction its content hash and the 1-based
// ordinal among identical hashes, marking ordinal > 1 as duplicates. The
// hash doubles as the store's idempotency key, so repeated imports of the
// same statement are safe.
func finalizeHashes(txs []domain.ParsedTransaction) {
	seen := make(map[string]int, len(txs))
	for i := range txs {
		h := LineHash(&txs[i])
		seen[h]++
		txs[i].LineHash = h
		txs[i].HashOrdinal = seen[h]
		txs[i].Duplicate = seen[h] > 1
	}
}

// LineHash computes the content hash of one transaction:
// sha1(date|cents|desc|city|country|tag) over normalized fields.
func LineHash(tx *domain.ParsedTransaction) string {
	cents := tx.Amount.Mul(decimal.NewFromInt(100)).IntPart()
	base := fmt.Sprintf("%s|%d|%s|%s|%s|%s",
		tx.Date.Format("2006-01-02"),
		cents,
		Normalize(tx.Description),
		Normalize(tx.City),
		Normalize(tx.Country),
		Normalize(tx.InstallmentTag),
	)
	return SHA1Hex(base)
}
