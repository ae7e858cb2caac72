package parser

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dal01/financas/internal/domain"
)

// DefaultIssuer is the issuer recorded on headers when none is given.
const DefaultIssuer = "Banco do Brasil"

// minTextLen guards against scanned PDFs extracted without OCR: anything
// under this is almost certainly not statement text.
const minTextLen = 30

// previewKeywords select the lines shown in a fatal-error diagnostic.
var previewKeywords = []string{
	"Fatura fechada", "fechada em", "Vencimento", "Final", "Cartão",
	"Total", "OUROCARD", "VISA", "MASTERCARD", "ELO", "AMEX",
}

// ParseHeader extracts the statement metadata from the full source text.
// Close date, due date and card tail are required; everything else degrades
// to an observation on the returned header. Pure function: no side effects.
func ParseHeader(pats *PatternTable, text string) (*domain.StatementHeader, error) {
	if len(strings.TrimSpace(text)) < minTextLen {
		return nil, &domain.ErrParse{
			Reason: "too little text extracted; the PDF may be a scan without OCR",
		}
	}

	sourceHash := SHA1Hex(text)
	var obs []string

	mClose := pats.CloseDate.FindStringSubmatch(text)
	mDue := pats.DueDate.FindStringSubmatch(text)
	mTail := pats.CardTail.FindStringSubmatch(text)

	var missing []string
	if mClose == nil {
		missing = append(missing, `fechamento ("Fatura fechada em")`)
	}
	if mDue == nil {
		missing = append(missing, `vencimento ("Vencimento")`)
	}
	if mTail == nil {
		missing = append(missing, `final do cartão ("Final 1234")`)
	}
	if len(missing) > 0 {
		return nil, &domain.ErrParse{Missing: missing, Preview: buildPreview(text)}
	}

	closedAt, err := time.Parse("02/01/2006", mClose[1])
	if err != nil {
		return nil, &domain.ErrParse{Reason: fmt.Sprintf("invalid close date %q: %v", mClose[1], err)}
	}
	dueAt, err := time.Parse("02/01/2006", mDue[1])
	if err != nil {
		return nil, &domain.ErrParse{Reason: fmt.Sprintf("invalid due date %q: %v", mDue[1], err)}
	}

	if dueAt.Before(closedAt) {
		obs = append(obs, fmt.Sprintf(
			"Vencimento (%s) anterior ao fechamento (%s). Verificar PDF.",
			dueAt.Format("02/01/2006"), closedAt.Format("02/01/2006")))
	}

	// CardTail has two alternatives; take the first non-empty group.
	cardTail := mTail[1]
	if cardTail == "" {
		cardTail = mTail[2]
	}

	brand, brandObs := extractBrand(pats, text)
	obs = append(obs, brandObs...)

	// Total is searched only after the anchor line.
	afterAnchor, anchorFound := textAfterAnchor(pats, text)
	if !anchorFound {
		obs = append(obs, `Âncora "Lançamentos nesta fatura" não encontrada; total buscado no texto inteiro.`)
	}

	var total *decimal.Decimal
	if mTotal := pats.Total.FindStringSubmatch(afterAnchor); mTotal != nil {
		v, derr := ParseDecimalBR(mTotal[1])
		if derr != nil {
			return nil, &domain.ErrParse{Reason: fmt.Sprintf("invalid statement total %q: %v", mTotal[1], derr)}
		}
		total = &v
	} else {
		obs = append(obs, "Total da Fatura (após a âncora) não encontrado no PDF.")
	}

	return &domain.StatementHeader{
		Issuer:       DefaultIssuer,
		CardTail:     cardTail,
		Brand:        brand,
		ClosedAt:     closedAt,
		DueAt:        dueAt,
		BillingCycle: BillingCycle(closedAt),
		Total:        total,
		SourceHash:   sourceHash,
		Observations: obs,
	}, nil
}

// BillingCycle returns the first day of the close date's month.
func BillingCycle(closedAt time.Time) time.Time {
	return time.Date(closedAt.Year(), closedAt.Month(), 1, 0, 0, 0, 0, closedAt.Location())
}

// extractBrand prefers the deterministic product-line pattern over the
// generic scan, recording an observation when only the fallback matched.
func extractBrand(pats *PatternTable, text string) (domain.Brand, []string) {
	if m := pats.BrandStrict.FindStringSubmatch(text); m != nil {
		return canonicalBrand(m[1]), nil
	}
	if m := pats.BrandGeneric.FindStringSubmatch(text); m != nil {
		return canonicalBrand(m[1]),
			[]string{"Bandeira detectada fora do cabeçalho OUROCARD; verifique se está correta."}
	}
	return domain.BrandUnknown, []string{"Bandeira do cartão não detectada no PDF."}
}

func canonicalBrand(raw string) domain.Brand {
	b := Normalize(raw)
	if b == "AMERICAN EXPRESS" {
		b = "AMEX"
	}
	return domain.Brand(b)
}

// textAfterAnchor returns the text starting after the anchor line, or the
// whole text (and false) when the anchor is missing.
func textAfterAnchor(pats *PatternTable, text string) (string, bool) {
	lines := strings.Split(text, "\n")
	for i, raw := range lines {
		if pats.Anchor.MatchString(raw) {
			return strings.Join(lines[i+1:], "\n"), true
		}
	}
	return text, false
}

// buildPreview returns lines containing any informative keyword (up to 12),
// falling back to the first 18 lines when nothing matches.
func buildPreview(text string) string {
	lines := strings.Split(text, "\n")
	var hits []string
	for _, ln := range lines {
		lower := strings.ToLower(ln)
		for _, kw := range previewKeywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				hits = append(hits, ln)
				break
			}
		}
		if len(hits) >= 12 {
			break
		}
	}
	if len(hits) == 0 {
		n := len(lines)
		if n > 18 {
			n = 18
		}
		hits = lines[:n]
	}
	return strings.Join(hits, "\n")
}
