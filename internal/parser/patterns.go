package parser

import "regexp"

// PatternTable holds every compiled pattern the header and line-block parsers
// need. Built once at process start and shared read-only; parser state itself
// is created fresh per invocation.
type PatternTable struct {
	// Anchor delimiting header content from the transaction listing.
	Anchor *regexp.Regexp

	// Header patterns.
	CloseDate *regexp.Regexp
	DueDate   *regexp.Regexp
	CardTail  *regexp.Regexp
	Total     *regexp.Regexp
	// BrandStrict matches the product-line header ("OUROCARD VISA INFINITE");
	// BrandGeneric is the promiscuous fallback anywhere in the text.
	BrandStrict  *regexp.Regexp
	BrandGeneric *regexp.Regexp

	// Line-block patterns.
	ShortDate     *regexp.Regexp
	ValueEnd      *regexp.Regexp
	SkipValueLine *regexp.Regexp
	PaymentDebit  *regexp.Regexp
	CurrencyEnd   *regexp.Regexp
	CountryPre    *regexp.Regexp
	CountryEnd    *regexp.Regexp
	Section       *regexp.Regexp
	Installment   *regexp.Regexp
}

// DefaultPatterns returns the pattern table for Banco do Brasil card
// statements. Patterns are tolerant of surrounding prose; the extracted text
// carries no structural guarantees.
func DefaultPatterns() *PatternTable {
	const dateFull = `(\d{2}/\d{2}/\d{4})`

	return &PatternTable{
		Anchor: regexp.MustCompile(`(?i)LAN[ÇC]AMENTOS\s+NESTA\s+FATURA`),

		CloseDate: regexp.MustCompile(`(?is)\b(?:fatura\s+fechada\s+em|fechada\s+em)\s+` + dateFull),
		DueDate:   regexp.MustCompile(`(?is)\bvencimento\b.{0,80}?` + dateFull),
		CardTail:  regexp.MustCompile(`(?is)\bfinal\s*(\d{4})\b|cart[ãa]o.*?\bfinal\s*(\d{4})\b`),
		Total:     regexp.MustCompile(`(?is)\bTOTAL\s+DA\s+FATURA\b.*?R\$\s*([+\-]?\s*[\d.,]+)`),

		BrandStrict:  regexp.MustCompile(`(?is)\bOUROCARD\b[^A-Za-z0-9]+(VISA|MASTERCARD|ELO|AMEX|AMERICAN\s+EXPRESS|PLATINUM)\b`),
		BrandGeneric: regexp.MustCompile(`(?is)\b(VISA|MASTERCARD|ELO|AMEX|AMERICAN\s+EXPRESS|HIPERCARD)\b`),

		ShortDate:     regexp.MustCompile(`^(\d{2}/\d{2})\b`),
		ValueEnd:      regexp.MustCompile(`R\$\s*([+\-]?\s*[\d.,]+)\s*$`),
		SkipValueLine: regexp.MustCompile(`(?i)(PGTO\s+DEBITO|SUBTOTAL|TOTAL\s+DA\s+FATURA)`),
		PaymentDebit:  regexp.MustCompile(`(?i)\bPGTO\b.*\bDEBITO\b`),
		CurrencyEnd:   regexp.MustCompile(`\s*(?:R\$|US\$|USD|\$)\s*[+\-]?\s*\d{1,3}(?:\.\d{3})*(?:[.,]\d{2})\s*$`),
		CountryPre:    regexp.MustCompile(`\s+([A-Z]{2,3})\s+(?:R\$|US\$|USD|\$)\s*[+\-]?\s*\d`),
		CountryEnd:    regexp.MustCompile(`\s+([A-Z]{2,3})\s*$`),

		Section: regexp.MustCompile(`(?i)^(` +
			`COMPRAS\s+NAC(?:IONAIS)?|` +
			`COMPRAS\s+INT(?:ERNACIONAIS)?|` +
			`LAN[ÇC]AMENTOS\s+DIVERSOS|` +
			`ASSINATURAS(?:\s+E\s+SERVI[ÇC]OS)?|` +
			`PARCELADOS?|` +
			`TARIFAS?|` +
			`SEGUROS?|` +
			`ESTORNOS?|` +
			`OUTROS\s+LAN[ÇC]AMENTOS?|` +
			`SERVI[ÇC]OS` +
			`)\b`),
		Installment: regexp.MustCompile(`(?i)\bPARC\s+(\d{2})/(\d{2})\b`),
	}
}

// sectionLabels maps raw section headers to display labels.
var sectionLabels = []struct {
	re    *regexp.Regexp
	label string
}{
	{regexp.MustCompile(`COMPRAS\s+INT`), "Compras Internacionais"},
	{regexp.MustCompile(`COMPRAS\s+NAC`), "Compras Nacionais"},
	{regexp.MustCompile(`ASSINATURAS`), "Assinaturas/Serviços"},
	{regexp.MustCompile(`PARCELAD`), "Parcelados"},
	{regexp.MustCompile(`TARIF`), "Tarifas"},
	{regexp.MustCompile(`SEGURO`), "Seguros"},
	{regexp.MustCompile(`ESTORNO`), "Estornos"},
	{regexp.MustCompile(`LAN[ÇC]AMENTOS\s+DIVERSOS`), "Lançamentos Diversos"},
	{regexp.MustCompile(`SERVI[ÇC]OS`), "Serviços"},
	{regexp.MustCompile(`OUTROS`), "Outros"},
}
