// Package installments detects multi-month recurring charge groups in an
// already-persisted transaction set. It is a pure projection: no I/O, no
// side effects, safe to run concurrently over independent inputs.
package installments

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dal01/financas/internal/domain"
	"github.com/dal01/financas/internal/parser"
)

// Defaults for the grouping policy. These are policy, not mechanism: small
// month-to-month drift (IOF, interest) motivates the value tolerance, and
// the day window is "roughly one month" between consecutive installments.
var (
	DefaultValueTolerance = decimal.NewFromFloat(0.50)
)

const (
	DefaultMinDays = 20
	DefaultMaxDays = 38
)

// Options configure one grouping run. The zero value is invalid; use
// DefaultOptions.
type Options struct {
	ValueTolerance decimal.Decimal
	MinDays        int
	MaxDays        int
}

// DefaultOptions returns the standard tolerance and window.
func DefaultOptions() Options {
	return Options{
		ValueTolerance: DefaultValueTolerance,
		MinDays:        DefaultMinDays,
		MaxDays:        DefaultMaxDays,
	}
}

// Validate fails fast on malformed configuration, before any grouping runs.
func (o Options) Validate() error {
	if o.ValueTolerance.IsNegative() {
		return &domain.ErrValidation{Field: "value_tolerance", Message: "must be >= 0"}
	}
	if o.MinDays <= 0 {
		return &domain.ErrValidation{Field: "month_window_min_days", Message: "must be > 0"}
	}
	if o.MaxDays < o.MinDays {
		return &domain.ErrValidation{Field: "month_window_max_days", Message: "must be >= month_window_min_days"}
	}
	return nil
}

// Installment wording patterns: "PARC"/"PARCELA"/"PARCELADO", "12/12",
// "12 de 12", "12x", "12x10", "em 12x".
var (
	reWordParc = regexp.MustCompile(`(?i)(?:\b|-)PARC(?:\.|ELA(?:S)?|ELAD[OA]|ELAMENT[OA])?\b`)
	reFrac     = regexp.MustCompile(`\b(\d{1,2})\s*/\s*(\d{1,2})\b`)
	reDeForm   = regexp.MustCompile(`(?i)\b(\d{1,2})\s*de\s*(\d{1,2})\b`)
	reXSimple  = regexp.MustCompile(`\b(\d{1,2})\s*[xX]\b`)
	reXPair    = regexp.MustCompile(`(?i)\b(\d{1,2})\s*[xX]\s*(?:de\s*)?(\d{1,2})\b`)
	reEmX      = regexp.MustCompile(`(?i)\bem\s+(\d{1,2})[xX]\b`)

	multiSpace = regexp.MustCompile(`\s+`)
	nonAlnum   = regexp.MustCompile(`[^A-Z0-9 ]+`)
)

type bucketKey struct {
	accountID string
	descBase  string
	total     int // 0 when unknown
}

type candidate struct {
	tx   *domain.Transaction
	date time.Time
}

// Group buckets candidates by (account, normalized description, inferred
// installment total), sub-buckets by value proximity and chains sub-bucket
// members into monthly sequences. Chains of length >= 2 become groups.
func Group(txs []domain.Transaction, opts Options) ([]domain.InstallmentGroup, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	buckets := make(map[bucketKey][]candidate)
	for i := range txs {
		tx := &txs[i]
		if !isCandidate(tx) {
			continue
		}
		date, err := tx.ParsedDate()
		if err != nil {
			continue
		}
		// Prefer an explicit total over one inferred from the description.
		total := tx.InstallmentTotal
		if total <= 0 {
			_, t := extractNumTotal(tx.Description)
			if t > 0 {
				total = t
			}
		}
		key := bucketKey{
			accountID: tx.AccountID,
			descBase:  NormalizeDescription(tx.Description),
			total:     total,
		}
		buckets[key] = append(buckets[key], candidate{tx: tx, date: date})
	}

	var groups []domain.InstallmentGroup
	for key, members := range buckets {
		sort.SliceStable(members, func(i, j int) bool {
			return q2(members[i].tx.Amount).LessThan(q2(members[j].tx.Amount))
		})

		var sub []candidate
		var ref decimal.Decimal
		haveRef := false

		flushSub := func() {
			for _, chain := range chainByMonth(sub, opts) {
				if g, ok := synthesize(key, chain); ok {
					groups = append(groups, g)
				}
			}
			sub = nil
			haveRef = false
		}

		for _, c := range members {
			v := q2(c.tx.Amount)
			if !haveRef {
				ref = v
				haveRef = true
				sub = []candidate{c}
				continue
			}
			// The reference is the sub-bucket's first member, not a running
			// average: drift accumulates otherwise.
			if v.Sub(ref).Abs().LessThanOrEqual(opts.ValueTolerance) {
				sub = append(sub, c)
			} else {
				flushSub()
				ref = v
				haveRef = true
				sub = []candidate{c}
			}
		}
		flushSub()
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].PurchaseDate != groups[j].PurchaseDate {
			return groups[i].PurchaseDate > groups[j].PurchaseDate
		}
		return groups[i].Description > groups[j].Description
	})
	return groups, nil
}

// chainByMonth walks date-sorted members and keeps a chain alive while each
// gap stays inside the month window. Single-member chains are discarded.
func chainByMonth(sub []candidate, opts Options) [][]candidate {
	if len(sub) == 0 {
		return nil
	}
	sorted := make([]candidate, len(sub))
	copy(sorted, sub)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].date.Equal(sorted[j].date) {
			return sorted[i].date.Before(sorted[j].date)
		}
		return sorted[i].tx.ID < sorted[j].tx.ID
	})

	var chains [][]candidate
	chain := []candidate{sorted[0]}
	for _, c := range sorted[1:] {
		gap := int(c.date.Sub(chain[len(chain)-1].date).Hours() / 24)
		if gap >= opts.MinDays && gap <= opts.MaxDays {
			chain = append(chain, c)
		} else {
			if len(chain) >= 2 {
				chains = append(chains, chain)
			}
			chain = []candidate{c}
		}
	}
	if len(chain) >= 2 {
		chains = append(chains, chain)
	}
	return chains
}

func synthesize(key bucketKey, chain []candidate) (domain.InstallmentGroup, bool) {
	if len(chain) < 2 {
		return domain.InstallmentGroup{}, false
	}

	total := decimal.Zero
	purchase := chain[0].date
	ids := make([]string, 0, len(chain))
	for _, c := range chain {
		total = total.Add(q2(c.tx.Amount))
		if c.date.Before(purchase) {
			purchase = c.date
		}
		ids = append(ids, c.tx.ID)
	}
	count := len(chain)
	avg := q2(total.Div(decimal.NewFromInt(int64(count))))
	total = q2(total)

	raw := fmt.Sprintf("%s|%s|%s|%s|%d",
		key.accountID, purchase.Format("2006-01-02"), key.descBase, avg.StringFixed(2), key.total)
	gid := parser.SHA1Hex(raw)[:16]

	return domain.InstallmentGroup{
		GroupID:          gid,
		PurchaseDate:     purchase.Format("2006-01-02"),
		Description:      key.descBase,
		InstallmentTotal: key.total,
		AvgValue:         avg,
		TotalValue:       total,
		Count:            count,
		TransactionIDs:   ids,
	}, true
}

// isCandidate: installment wording in the description, a non-empty tag, or
// an explicit positive total already recorded.
func isCandidate(tx *domain.Transaction) bool {
	if hasInstallmentPattern(tx.Description) {
		return true
	}
	if tx.InstallmentTag != "" {
		return true
	}
	return tx.InstallmentTotal > 0
}

func hasInstallmentPattern(s string) bool {
	if s == "" {
		return false
	}
	for _, re := range []*regexp.Regexp{reWordParc, reFrac, reDeForm, reXPair, reXSimple, reEmX} {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// extractNumTotal pulls (current, total) out of description text.
// "12x" alone gives no usable total.
func extractNumTotal(desc string) (num, total int) {
	if desc == "" {
		return 0, 0
	}
	for _, re := range []*regexp.Regexp{reFrac, reDeForm, reXPair} {
		if m := re.FindStringSubmatch(desc); m != nil {
			num = atoi(m[1])
			total = atoi(m[2])
			return num, total
		}
	}
	return 0, 0
}

func atoi(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// NormalizeDescription unifies the textual base of a bucket: diacritics
// stripped, uppercased, installment tokens removed, symbols dropped.
// Installment tokens go first: stripping symbols would break "01/03".
func NormalizeDescription(s string) string {
	base := parser.Normalize(s)
	base = reFrac.ReplaceAllString(base, "")
	base = reDeForm.ReplaceAllString(base, "")
	base = reEmX.ReplaceAllString(base, "")
	base = reXPair.ReplaceAllString(base, "")
	base = reXSimple.ReplaceAllString(base, "")
	base = reWordParc.ReplaceAllString(base, "")
	base = nonAlnum.ReplaceAllString(base, " ")
	return strings.TrimSpace(multiSpace.ReplaceAllString(base, " "))
}

// q2 rounds to two decimal places, half up, matching how the statement
// amounts are persisted.
func q2(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}
