package parser

import (
	"testing"
	"time"

	"github.com/dal01/financas/internal/domain"
)

var closeMay = time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC)

func parseAll(t *testing.T, text string, closedAt time.Time) []domain.ParsedTransaction {
	t.Helper()
	txs, _ := ParseTransactions(DefaultPatterns(), text, closedAt, Options{})
	return txs
}

func TestParseTransactions_Basic(t *testing.T) {
	text := `cabeçalho da fatura que o parser de lançamentos ignora
LANÇAMENTOS NESTA FATURA
Compras Nacionais
02/05 SUPERMERCADO ZONA SUL BR
R$ 150,00
05/05 LIVRARIA CULTURA PARC 01/03 BR
R$ 99,90
TOTAL DA FATURA R$ 249,90
`
	txs := parseAll(t, text, closeMay)
	if len(txs) != 2 {
		t.Fatalf("transactions = %d, want 2", len(txs))
	}

	first := txs[0]
	if first.Description != "SUPERMERCADO ZONA SUL" {
		t.Errorf("description = %q", first.Description)
	}
	if first.Country != "BR" {
		t.Errorf("country = %q, want BR", first.Country)
	}
	if first.Section != "Compras Nacionais" {
		t.Errorf("section = %q", first.Section)
	}
	if first.Amount.StringFixed(2) != "150.00" {
		t.Errorf("amount = %s", first.Amount)
	}
	if want := time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC); !first.Date.Equal(want) {
		t.Errorf("date = %v, want %v", first.Date, want)
	}

	second := txs[1]
	if second.InstallmentTag != "PARC 01/03" {
		t.Errorf("installment tag = %q", second.InstallmentTag)
	}
	if second.InstallmentNum != 1 || second.InstallmentTotal != 3 {
		t.Errorf("installment = %d/%d, want 1/3", second.InstallmentNum, second.InstallmentTotal)
	}
	for _, tx := range txs {
		if tx.LineHash == "" || tx.HashOrdinal != 1 || tx.Duplicate {
			t.Errorf("hash fields wrong: %+v", tx)
		}
	}
}

func TestParseTransactions_YearRollover(t *testing.T) {
	closeJan := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	text := `LANÇAMENTOS NESTA FATURA
31/12 CEIA DE ANO NOVO
R$ 200,00
05/01 PADARIA DA ESQUINA
R$ 12,50
`
	txs := parseAll(t, text, closeJan)
	if len(txs) != 2 {
		t.Fatalf("transactions = %d, want 2", len(txs))
	}
	if want := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC); !txs[0].Date.Equal(want) {
		t.Errorf("rollover date = %v, want %v", txs[0].Date, want)
	}
	if want := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC); !txs[1].Date.Equal(want) {
		t.Errorf("date = %v, want %v", txs[1].Date, want)
	}
}

func TestParseTransactions_SkipsTotalLineAsValue(t *testing.T) {
	// The block's first amount line is the statement total; the real value
	// comes after it.
	text := `LANÇAMENTOS NESTA FATURA
03/05 FARMACIA POPULAR
SUBTOTAL R$ 999,00
R$ 45,67
`
	txs := parseAll(t, text, closeMay)
	if len(txs) != 1 {
		t.Fatalf("transactions = %d, want 1", len(txs))
	}
	if txs[0].Amount.StringFixed(2) != "45.67" {
		t.Errorf("amount = %s, want 45.67", txs[0].Amount)
	}
	// The skipped line still belongs to the description span.
	if want := "FARMACIA POPULAR SUBTOTAL R$ 999,00"; txs[0].Description != want {
		t.Errorf("description = %q, want %q", txs[0].Description, want)
	}
}

func TestParseTransactions_DiscardsPaymentDebit(t *testing.T) {
	text := `LANÇAMENTOS NESTA FATURA
01/05 PGTO CARTAO DEBITO CONTA
R$ -1.500,00
02/05 COMPRA NORMAL
R$ 10,00
`
	txs := parseAll(t, text, closeMay)
	if len(txs) != 1 {
		t.Fatalf("transactions = %d, want 1 (payment debit discarded)", len(txs))
	}
	if txs[0].Description != "COMPRA NORMAL" {
		t.Errorf("description = %q", txs[0].Description)
	}
}

func TestParseTransactions_NegativePurchaseKept(t *testing.T) {
	// Refunds are negative but are not account payments; they stay.
	text := `LANÇAMENTOS NESTA FATURA
04/05 ESTORNO LOJA XYZ
R$ -35,00
`
	txs := parseAll(t, text, closeMay)
	if len(txs) != 1 {
		t.Fatalf("transactions = %d, want 1", len(txs))
	}
	if txs[0].Amount.StringFixed(2) != "-35.00" {
		t.Errorf("amount = %s, want -35.00", txs[0].Amount)
	}
}

func TestParseTransactions_Duplicates(t *testing.T) {
	text := `LANÇAMENTOS NESTA FATURA
02/05 UBER TRIP
R$ 20,00
02/05 UBER TRIP
R$ 20,00
02/05 UBER TRIP
R$ 20,00
`
	txs := parseAll(t, text, closeMay)
	if len(txs) != 3 {
		t.Fatalf("transactions = %d, want 3", len(txs))
	}
	for i, tx := range txs {
		if tx.LineHash != txs[0].LineHash {
			t.Errorf("tx %d hash differs", i)
		}
		if tx.HashOrdinal != i+1 {
			t.Errorf("tx %d ordinal = %d, want %d", i, tx.HashOrdinal, i+1)
		}
		if tx.Duplicate != (i > 0) {
			t.Errorf("tx %d duplicate = %v", i, tx.Duplicate)
		}
	}
}

func TestParseTransactions_MultilineDescription(t *testing.T) {
	text := `LANÇAMENTOS NESTA FATURA
07/05 COMPRA EM LOJA
COM NOME MUITO COMPRIDO
R$ 80,00
`
	txs := parseAll(t, text, closeMay)
	if len(txs) != 1 {
		t.Fatalf("transactions = %d, want 1", len(txs))
	}
	if txs[0].Description != "COMPRA EM LOJA COM NOME MUITO COMPRIDO" {
		t.Errorf("description = %q", txs[0].Description)
	}
}

func TestParseTransactions_FallbackDescription(t *testing.T) {
	text := `LANÇAMENTOS NESTA FATURA
08/05 R$ 30,00
`
	txs := parseAll(t, text, closeMay)
	if len(txs) != 1 {
		t.Fatalf("transactions = %d, want 1", len(txs))
	}
	if txs[0].Description != "LANÇAMENTO" {
		t.Errorf("description = %q, want LANÇAMENTO", txs[0].Description)
	}
}

func TestParseTransactions_CountryBeforeAmount(t *testing.T) {
	text := `LANÇAMENTOS NESTA FATURA
09/05 AIRBNB LISBOA PT US$ 120,00
R$ 612,30
`
	txs := parseAll(t, text, closeMay)
	if len(txs) != 1 {
		t.Fatalf("transactions = %d, want 1", len(txs))
	}
	if txs[0].Country != "PT" {
		t.Errorf("country = %q, want PT", txs[0].Country)
	}
	if txs[0].Description != "AIRBNB LISBOA" {
		t.Errorf("description = %q", txs[0].Description)
	}
	if txs[0].Amount.StringFixed(2) != "612.30" {
		t.Errorf("amount = %s, want 612.30", txs[0].Amount)
	}
}

func TestParseTransactions_InvalidCalendarDateDiscarded(t *testing.T) {
	text := `LANÇAMENTOS NESTA FATURA
31/02 DATA IMPOSSIVEL
R$ 10,00
`
	txs, unmatched := ParseTransactions(DefaultPatterns(), text, closeMay, Options{DebugUnmatched: true})
	if len(txs) != 0 {
		t.Fatalf("transactions = %d, want 0", len(txs))
	}
	if len(unmatched) != 1 {
		t.Fatalf("unmatched = %d, want 1", len(unmatched))
	}
}

func TestParseTransactions_DebugMaxCapsSample(t *testing.T) {
	text := `LANÇAMENTOS NESTA FATURA
31/02 BLOCO RUIM UM
R$ 1,00
31/02 BLOCO RUIM DOIS
R$ 1,00
31/02 BLOCO RUIM TRES
R$ 1,00
`
	_, unmatched := ParseTransactions(DefaultPatterns(), text, closeMay, Options{DebugUnmatched: true, DebugMax: 2})
	if len(unmatched) != 2 {
		t.Fatalf("unmatched = %d, want 2 (capped)", len(unmatched))
	}
}

func TestLineHash_Deterministic(t *testing.T) {
	tx := domain.ParsedTransaction{
		Date:        time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC),
		Description: "Padaria São João",
		Country:     "BR",
	}
	tx.Amount, _ = ParseDecimalBR("12,34")

	h1 := LineHash(&tx)
	// Accents and case must not change the hash.
	tx2 := tx
	tx2.Description = "PADARIA SAO JOAO"
	if h2 := LineHash(&tx2); h1 != h2 {
		t.Errorf("hash differs for normalized-equal descriptions: %s vs %s", h1, h2)
	}

	tx3 := tx
	tx3.Amount, _ = ParseDecimalBR("12,35")
	if h3 := LineHash(&tx3); h1 == h3 {
		t.Error("hash identical for different amounts")
	}
}
