package ofx

import (
	"strings"
	"testing"
)

const ofxHeader = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

`

func ofxDocument(stmttrns string) string {
	return ofxHeader + `<OFX>
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
<ACCTID>12345-6
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20250501
<DTEND>20250531
` + stmttrns + `</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>1234.56
<DTASOF>20250531
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>
`
}

func TestParse_BasicExtract(t *testing.T) {
	doc := ofxDocument(`<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20250502
<TRNAMT>-150.00
<FITID>A1
<NAME>PIX TRANSF JOAO
<MEMO>Pix enviado
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20250505
<TRNAMT>2000.00
<FITID>B2
<NAME>Salário ACME
</STMTTRN>
`)

	extracts, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(extracts) != 1 {
		t.Fatalf("extracts = %d, want 1", len(extracts))
	}

	ex := extracts[0]
	if ex.AccountID != "12345-6" {
		t.Errorf("account = %q, want 12345-6", ex.AccountID)
	}
	if len(ex.Transactions) != 2 {
		t.Fatalf("transactions = %d, want 2", len(ex.Transactions))
	}

	first := ex.Transactions[0]
	if first.Date != "2025-05-02" {
		t.Errorf("date = %q, want 2025-05-02", first.Date)
	}
	if first.Amount.StringFixed(2) != "-150.00" {
		t.Errorf("amount = %s, want -150.00", first.Amount)
	}
	if first.FITID != "A1" {
		t.Errorf("fitid = %q, want A1", first.FITID)
	}
	// Name and memo joined, diacritics stripped, lowercased. The generic
	// DEBIT type adds nothing.
	if first.Description != "pix transf joao - pix enviado" {
		t.Errorf("description = %q", first.Description)
	}

	second := ex.Transactions[1]
	if second.Description != "salario acme" {
		t.Errorf("description = %q, want %q", second.Description, "salario acme")
	}
	if second.Amount.StringFixed(2) != "2000.00" {
		t.Errorf("amount = %s, want 2000.00", second.Amount)
	}

	if ex.Balance == nil {
		t.Fatal("expected a ledger balance")
	}
	if ex.Balance.Date != "2025-05-31" || ex.Balance.Amount.StringFixed(2) != "1234.56" {
		t.Errorf("balance = %+v", ex.Balance)
	}
	if ex.Balance.AccountID != "12345-6" {
		t.Errorf("balance account = %q", ex.Balance.AccountID)
	}
}

func TestParse_SkipsPriorBalanceLine(t *testing.T) {
	doc := ofxDocument(`<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20250501
<TRNAMT>0.00
<FITID>S0
<MEMO>Saldo Anterior
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20250503
<TRNAMT>-20.00
<FITID>C1
<MEMO>Tarifa pacote serviços
</STMTTRN>
`)

	extracts, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ex := extracts[0]
	if len(ex.Transactions) != 1 {
		t.Fatalf("transactions = %d, want 1", len(ex.Transactions))
	}
	if ex.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", ex.Skipped)
	}
	if ex.Transactions[0].FITID != "C1" {
		t.Errorf("fitid = %q, want C1", ex.Transactions[0].FITID)
	}
}

func TestParse_SynthesizesMissingFITID(t *testing.T) {
	doc := ofxDocument(`<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20250504
<TRNAMT>-33.00
<MEMO>Compra debito padaria
</STMTTRN>
`)

	extracts, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	tx := extracts[0].Transactions[0]
	if len(tx.FITID) != 28 {
		t.Fatalf("fitid = %q, want 28 hex chars", tx.FITID)
	}

	// Same input, same synthesized id.
	again, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if again[0].Transactions[0].FITID != tx.FITID {
		t.Errorf("synthesized fitid not deterministic: %q vs %q", again[0].Transactions[0].FITID, tx.FITID)
	}
}

func TestParse_SuffixesReusedFITID(t *testing.T) {
	doc := ofxDocument(`<STMTTRN>
<TRNTYPE>XFER
<DTPOSTED>20250510
<TRNAMT>-50.00
<FITID>DUP1
<MEMO>Transferencia
</STMTTRN>
<STMTTRN>
<TRNTYPE>XFER
<DTPOSTED>20250511
<TRNAMT>-75.00
<FITID>DUP1
<MEMO>Transferencia
</STMTTRN>
`)

	extracts, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	txs := extracts[0].Transactions
	if len(txs) != 2 {
		t.Fatalf("transactions = %d, want 2", len(txs))
	}
	if txs[0].FITID != "DUP1" {
		t.Errorf("first fitid = %q, want DUP1", txs[0].FITID)
	}
	if txs[1].FITID != "DUP1__20250511_7500" {
		t.Errorf("second fitid = %q, want DUP1__20250511_7500", txs[1].FITID)
	}
}

func TestParse_RejectsGarbage(t *testing.T) {
	if _, err := Parse(strings.NewReader("not an ofx file at all")); err == nil {
		t.Fatal("expected an error for non-OFX input")
	}
}
