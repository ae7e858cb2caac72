// Package ofx recovers checking-account extracts from OFX 1.x/2.x files.
// It only reads bank statements; credit-card statements arrive as PDF text
// and go through the statement parser instead.
package ofx

import (
	"fmt"
	"io"
	"strings"

	"github.com/dal01/financas/internal/domain"
	"github.com/dal01/financas/internal/parser"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// Extract is everything recovered for one account from one OFX file.
type Extract struct {
	AccountID    string
	Transactions []domain.ExtractTransaction
	// Balance is the ledger balance at the extract's end date, when the
	// file reports one.
	Balance *domain.AccountBalance
	// Skipped counts movements discarded for a missing or pre-2000 date,
	// or for being a "saldo anterior" carry-over line.
	Skipped int
}

// Parse reads an OFX document and returns one Extract per bank account.
// Files without a bank statement section are an error.
func Parse(r io.Reader) ([]Extract, error) {
	resp, err := ofxgo.ParseResponse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing OFX: %w", err)
	}

	var extracts []Extract
	for _, msg := range resp.Bank {
		stmt, ok := msg.(*ofxgo.StatementResponse)
		if !ok {
			continue
		}
		ex, err := parseStatement(stmt)
		if err != nil {
			return nil, err
		}
		extracts = append(extracts, ex)
	}

	if len(extracts) == 0 {
		return nil, &domain.ErrParse{Reason: "no bank statement found in OFX file"}
	}
	return extracts, nil
}

func parseStatement(stmt *ofxgo.StatementResponse) (Extract, error) {
	accountID := strings.TrimSpace(stmt.BankAcctFrom.AcctID.String())
	if accountID == "" {
		return Extract{}, &domain.ErrParse{Reason: "bank statement missing account id"}
	}

	ex := Extract{AccountID: accountID}

	// seen maps each FITID to its date|cents identity. Banks reuse ids, so a
	// recurring FITID with a different date or amount gets a suffixed one.
	seen := make(map[string]string)

	var txns []ofxgo.Transaction
	if stmt.BankTranList != nil {
		txns = stmt.BankTranList.Transactions
	}
	for i, tx := range txns {
		date := tx.DtPosted.Time
		if date.IsZero() || date.Year() < 2000 {
			ex.Skipped++
			continue
		}

		name := strings.TrimSpace(tx.Name.String())
		if name == "" && tx.Payee != nil {
			name = strings.TrimSpace(tx.Payee.Name.String())
		}
		memo := strings.TrimSpace(tx.Memo.String())

		// Carry-over balance lines are not movements.
		base := memo
		if base == "" {
			base = name
		}
		if strings.Contains(strings.ToLower(base), "saldo anterior") {
			ex.Skipped++
			continue
		}

		amount, err := decimal.NewFromString(tx.TrnAmt.FloatString(2))
		if err != nil {
			return Extract{}, &domain.ErrParse{Reason: fmt.Sprintf("invalid amount %q in OFX transaction", tx.TrnAmt.String())}
		}

		fitid := strings.TrimSpace(tx.FiTID.String())
		if fitid == "" {
			raw := fmt.Sprintf("%s|%s|%s|%s|#%d", date.Format(dateLayout), amount.StringFixed(2), name, memo, i)
			fitid = parser.SHA1Hex(raw)[:28]
		}
		identity := date.Format(dateLayout) + "|" + amount.StringFixed(2)
		if prev, ok := seen[fitid]; ok && prev != identity {
			fitid = fmt.Sprintf("%s__%s_%d", fitid, date.Format("20060102"), amount.Abs().Mul(decimal.NewFromInt(100)).IntPart())
		}
		seen[fitid] = identity

		ex.Transactions = append(ex.Transactions, domain.ExtractTransaction{
			AccountID:   accountID,
			Date:        date.Format(dateLayout),
			Description: composeDescription(name, memo, tx),
			Amount:      amount,
			FITID:       fitid,
		})
	}

	if !stmt.DtAsOf.Time.IsZero() {
		balance, err := decimal.NewFromString(stmt.BalAmt.FloatString(2))
		if err == nil {
			ex.Balance = &domain.AccountBalance{
				AccountID: accountID,
				Date:      stmt.DtAsOf.Time.Format(dateLayout),
				Amount:    balance,
			}
		}
	}

	return ex, nil
}

// genericTypes add nothing to a description already carrying a name or memo.
var genericTypes = map[string]bool{"OTHER": true, "DEBIT": true, "CREDIT": true}

func composeDescription(name, memo string, tx ofxgo.Transaction) string {
	var parts []string
	if name != "" {
		parts = append(parts, name)
	}
	if memo != "" && memo != name {
		parts = append(parts, memo)
	}
	if checkNum := strings.TrimSpace(tx.CheckNum.String()); checkNum != "" {
		parts = append(parts, "cheque "+checkNum)
	}
	if trnType := tx.TrnType.String(); trnType != "" && !genericTypes[trnType] {
		parts = append(parts, trnType)
	}
	return strings.ToLower(parser.Normalize(strings.Join(parts, " - ")))
}
