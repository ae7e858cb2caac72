package installments

import (
	"testing"

	"github.com/dal01/financas/internal/domain"

	"github.com/shopspring/decimal"
)

func tx(id, account, date, desc, amount string, tag string, num, total int) domain.Transaction {
	v, _ := decimal.NewFromString(amount)
	return domain.Transaction{
		ID:               id,
		AccountID:        account,
		Date:             date,
		Description:      desc,
		Amount:           v,
		InstallmentTag:   tag,
		InstallmentNum:   num,
		InstallmentTotal: total,
	}
}

func TestGroup_MonthlyChain(t *testing.T) {
	txs := []domain.Transaction{
		tx("a", "4321", "2025-01-05", "LOJA MOVEIS PARC 01/03", "250.00", "PARC 01/03", 1, 3),
		tx("b", "4321", "2025-02-05", "LOJA MOVEIS PARC 02/03", "250.00", "PARC 02/03", 2, 3),
		tx("c", "4321", "2025-03-05", "LOJA MOVEIS PARC 03/03", "250.00", "PARC 03/03", 3, 3),
	}

	groups, err := Group(txs, DefaultOptions())
	if err != nil {
		t.Fatalf("Group error: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("groups = %d, want 1", len(groups))
	}

	g := groups[0]
	if g.Count != 3 {
		t.Errorf("count = %d, want 3", g.Count)
	}
	if g.PurchaseDate != "2025-01-05" {
		t.Errorf("purchase date = %q", g.PurchaseDate)
	}
	if g.Description != "LOJA MOVEIS" {
		t.Errorf("description = %q, want LOJA MOVEIS", g.Description)
	}
	if g.InstallmentTotal != 3 {
		t.Errorf("installment total = %d, want 3", g.InstallmentTotal)
	}
	if g.AvgValue.StringFixed(2) != "250.00" {
		t.Errorf("avg = %s", g.AvgValue)
	}
	if g.TotalValue.StringFixed(2) != "750.00" {
		t.Errorf("total = %s", g.TotalValue)
	}
	if len(g.GroupID) != 16 {
		t.Errorf("group id length = %d, want 16", len(g.GroupID))
	}
	if len(g.TransactionIDs) != 3 {
		t.Errorf("transaction ids = %v", g.TransactionIDs)
	}
}

func TestGroup_GapTooLarge(t *testing.T) {
	// 45 days between members breaks the monthly chain.
	txs := []domain.Transaction{
		tx("a", "4321", "2025-01-05", "ACADEMIA PARC 01/02", "80.00", "PARC 01/02", 1, 2),
		tx("b", "4321", "2025-02-19", "ACADEMIA PARC 02/02", "80.00", "PARC 02/02", 2, 2),
	}

	groups, err := Group(txs, DefaultOptions())
	if err != nil {
		t.Fatalf("Group error: %v", err)
	}
	if len(groups) != 0 {
		t.Fatalf("groups = %d, want 0 (45-day gap)", len(groups))
	}
}

func TestGroup_GapAtWindowEdges(t *testing.T) {
	tests := []struct {
		name   string
		second string
		want   int
	}{
		{"20 days is in window", "2025-01-25", 1},
		{"38 days is in window", "2025-02-12", 1},
		{"19 days is too soon", "2025-01-24", 0},
		{"39 days is too late", "2025-02-13", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txs := []domain.Transaction{
				tx("a", "4321", "2025-01-05", "CURSO ONLINE PARC 01/02", "120.00", "PARC 01/02", 1, 2),
				tx("b", "4321", tt.second, "CURSO ONLINE PARC 02/02", "120.00", "PARC 02/02", 2, 2),
			}
			groups, err := Group(txs, DefaultOptions())
			if err != nil {
				t.Fatalf("Group error: %v", err)
			}
			if len(groups) != tt.want {
				t.Fatalf("groups = %d, want %d", len(groups), tt.want)
			}
		})
	}
}

func TestGroup_ValueTolerance(t *testing.T) {
	// 250.00 vs 250.50 stays in one sub-bucket; 250.51 does not.
	within := []domain.Transaction{
		tx("a", "4321", "2025-01-05", "SOFA PARC 01/02", "250.00", "PARC 01/02", 1, 2),
		tx("b", "4321", "2025-02-05", "SOFA PARC 02/02", "250.50", "PARC 02/02", 2, 2),
	}
	groups, err := Group(within, DefaultOptions())
	if err != nil {
		t.Fatalf("Group error: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("groups = %d, want 1 (0.50 within tolerance)", len(groups))
	}

	outside := []domain.Transaction{
		tx("a", "4321", "2025-01-05", "SOFA PARC 01/02", "250.00", "PARC 01/02", 1, 2),
		tx("b", "4321", "2025-02-05", "SOFA PARC 02/02", "250.51", "PARC 02/02", 2, 2),
	}
	groups, err = Group(outside, DefaultOptions())
	if err != nil {
		t.Fatalf("Group error: %v", err)
	}
	if len(groups) != 0 {
		t.Fatalf("groups = %d, want 0 (0.51 outside tolerance)", len(groups))
	}
}

func TestGroup_SeparatesAccounts(t *testing.T) {
	txs := []domain.Transaction{
		tx("a", "1111", "2025-01-05", "LOJA PARC 01/02", "50.00", "PARC 01/02", 1, 2),
		tx("b", "2222", "2025-02-05", "LOJA PARC 02/02", "50.00", "PARC 02/02", 2, 2),
	}
	groups, err := Group(txs, DefaultOptions())
	if err != nil {
		t.Fatalf("Group error: %v", err)
	}
	if len(groups) != 0 {
		t.Fatalf("groups = %d, want 0 (different accounts never chain)", len(groups))
	}
}

func TestGroup_NonInstallmentIgnored(t *testing.T) {
	txs := []domain.Transaction{
		tx("a", "4321", "2025-01-05", "SUPERMERCADO", "150.00", "", 0, 0),
		tx("b", "4321", "2025-02-05", "SUPERMERCADO", "150.00", "", 0, 0),
	}
	groups, err := Group(txs, DefaultOptions())
	if err != nil {
		t.Fatalf("Group error: %v", err)
	}
	if len(groups) != 0 {
		t.Fatalf("groups = %d, want 0 (no installment wording)", len(groups))
	}
}

func TestGroup_InferredTotalFromDescription(t *testing.T) {
	// No parser tag, but the description carries "02/05" wording.
	txs := []domain.Transaction{
		tx("a", "4321", "2025-01-05", "NOTEBOOK 01/05", "400.00", "", 0, 0),
		tx("b", "4321", "2025-02-05", "NOTEBOOK 02/05", "400.00", "", 0, 0),
	}
	groups, err := Group(txs, DefaultOptions())
	if err != nil {
		t.Fatalf("Group error: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("groups = %d, want 1", len(groups))
	}
	if groups[0].InstallmentTotal != 5 {
		t.Errorf("installment total = %d, want 5 (inferred)", groups[0].InstallmentTotal)
	}
}

func TestGroup_SortedNewestFirst(t *testing.T) {
	txs := []domain.Transaction{
		tx("a", "4321", "2025-01-05", "ANTIGA PARC 01/02", "10.00", "PARC 01/02", 1, 2),
		tx("b", "4321", "2025-02-05", "ANTIGA PARC 02/02", "10.00", "PARC 02/02", 2, 2),
		tx("c", "4321", "2025-03-10", "RECENTE PARC 01/02", "20.00", "PARC 01/02", 1, 2),
		tx("d", "4321", "2025-04-10", "RECENTE PARC 02/02", "20.00", "PARC 02/02", 2, 2),
	}
	groups, err := Group(txs, DefaultOptions())
	if err != nil {
		t.Fatalf("Group error: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(groups))
	}
	if groups[0].Description != "RECENTE" || groups[1].Description != "ANTIGA" {
		t.Errorf("order = [%s, %s], want newest first", groups[0].Description, groups[1].Description)
	}
}

func TestGroup_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"negative tolerance", Options{ValueTolerance: decimal.NewFromInt(-1), MinDays: 20, MaxDays: 38}},
		{"zero min days", Options{ValueTolerance: decimal.Zero, MinDays: 0, MaxDays: 38}},
		{"max below min", Options{ValueTolerance: decimal.Zero, MinDays: 20, MaxDays: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Group(nil, tt.opts); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestNormalizeDescription(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"LOJA MOVEIS PARC 01/03", "LOJA MOVEIS"},
		{"Livraria São Paulo 2 de 10", "LIVRARIA SAO PAULO"},
		{"NOTEBOOK EM 12X", "NOTEBOOK"},
		{"MAGAZISTA 3x12", "MAGAZISTA"},
		{"PARCELADO TV 05/10", "TV"},
	}
	for _, tt := range tests {
		if got := NormalizeDescription(tt.in); got != tt.want {
			t.Errorf("NormalizeDescription(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
