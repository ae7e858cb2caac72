package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/dal01/financas/internal/domain"
	"github.com/dal01/financas/internal/infra/observability"

	"go.uber.org/zap"
)

const ofxText = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20250601120000
<LANGUAGE>POR
<FI>
<ORG>Banco do Brasil
<FID>001
</FI>
</SONRS>
</SIGNONMSGSRSV1>
<BANKMSGSRSV1>
<STMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<STMTRS>
<CURDEF>BRL
<BANKACCTFROM>
<BANKID>001
<ACCTID>77777-1
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20250501
<DTEND>20250531
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20250506
<TRNAMT>-80.00
<FITID>X1
<MEMO>Pix mercado
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>500.00
<DTASOF>20250531
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>
`

// mockExtractStore is an in-memory ExtractStore.
type mockExtractStore struct {
	mu       sync.Mutex
	upserted map[string][]domain.ExtractTransaction
	balances []domain.AccountBalance
	deleted  []string
}

func newMockExtractStore() *mockExtractStore {
	return &mockExtractStore{upserted: make(map[string][]domain.ExtractTransaction)}
}

func (m *mockExtractStore) UpsertExtractTransactions(_ context.Context, accountID string, txs []domain.ExtractTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserted[accountID] = append(m.upserted[accountID], txs...)
	return nil
}

func (m *mockExtractStore) UpsertBalance(_ context.Context, b domain.AccountBalance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances = append(m.balances, b)
	return nil
}

func (m *mockExtractStore) DeleteExtractTransactions(_ context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, accountID)
	return nil
}

func (m *mockExtractStore) ListExtractTransactions(_ context.Context, accountID string) ([]domain.ExtractTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ExtractTransaction(nil), m.upserted[accountID]...), nil
}

func newExtractService(store *mockExtractStore) *ExtractService {
	return NewExtractService(store, 1, observability.NewMetrics(), zap.NewNop())
}

func TestImportOFX_Success(t *testing.T) {
	store := newMockExtractStore()
	svc := newExtractService(store)

	result := svc.ImportOFX(context.Background(), "run-1", "extrato.ofx", strings.NewReader(ofxText), ExtractOptions{})
	if result.Outcome != domain.OutcomeImported {
		t.Fatalf("outcome = %q (error: %s)", result.Outcome, result.Error)
	}
	if result.Accounts != 1 || result.Transactions != 1 {
		t.Errorf("result = %+v", result)
	}

	txs := store.upserted["77777-1"]
	if len(txs) != 1 {
		t.Fatalf("upserted = %d, want 1", len(txs))
	}
	if txs[0].FITID != "X1" || txs[0].Date != "2025-05-06" {
		t.Errorf("transaction = %+v", txs[0])
	}
	if len(store.balances) != 1 || store.balances[0].Amount.StringFixed(2) != "500.00" {
		t.Errorf("balances = %+v", store.balances)
	}
}

func TestImportOFX_DryRun(t *testing.T) {
	store := newMockExtractStore()
	svc := newExtractService(store)

	result := svc.ImportOFX(context.Background(), "run-1", "extrato.ofx", strings.NewReader(ofxText), ExtractOptions{DryRun: true})
	if result.Outcome != domain.OutcomeImported {
		t.Fatalf("outcome = %q", result.Outcome)
	}
	if len(store.upserted) != 0 || len(store.balances) != 0 {
		t.Errorf("dry run wrote to the store: %+v", store.upserted)
	}
}

func TestImportOFX_Reset(t *testing.T) {
	store := newMockExtractStore()
	svc := newExtractService(store)

	result := svc.ImportOFX(context.Background(), "run-1", "extrato.ofx", strings.NewReader(ofxText), ExtractOptions{Reset: true})
	if result.Outcome != domain.OutcomeImported {
		t.Fatalf("outcome = %q", result.Outcome)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "77777-1" {
		t.Errorf("deleted = %v, want [77777-1]", store.deleted)
	}
}

func TestImportOFX_ParseFailure(t *testing.T) {
	store := newMockExtractStore()
	svc := newExtractService(store)

	result := svc.ImportOFX(context.Background(), "run-1", "quebrado.ofx", strings.NewReader("garbage"), ExtractOptions{})
	if result.Outcome != domain.OutcomeFailed {
		t.Fatalf("outcome = %q, want failed", result.Outcome)
	}
	if result.Error == "" {
		t.Error("expected an error message")
	}
	if len(store.upserted) != 0 {
		t.Error("failed parse wrote to the store")
	}
}

func TestImportOFXDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "maio.ofx"), []byte(ofxText), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "leiame.txt"), []byte("ignorado"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := newMockExtractStore()
	svc := newExtractService(store)

	summary, err := svc.ImportOFXDir(context.Background(), dir, ExtractOptions{})
	if err != nil {
		t.Fatalf("ImportOFXDir: %v", err)
	}
	if summary.Imported != 1 || summary.Failed != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	if len(summary.Results) != 1 {
		t.Fatalf("results = %d, want 1 (only *.ofx files)", len(summary.Results))
	}
}

func TestListAccountTransactions_Validation(t *testing.T) {
	svc := newExtractService(newMockExtractStore())
	if _, err := svc.ListAccountTransactions(context.Background(), ""); err == nil {
		t.Fatal("expected a validation error for empty account id")
	}
}
