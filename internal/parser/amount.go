package parser

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseDecimalBR converts a Brazilian-notation amount to an exact decimal.
// "1.234,56" → 1234.56. Signs ("+"/"-") may be separated from the digits by
// spaces, as they sometimes are in extracted statement text.
func ParseDecimalBR(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	return decimal.NewFromString(s)
}

// FormatBR renders a decimal in Brazilian notation with two decimal places:
// 1234.56 → "1.234,56". Round-trips any value produced by ParseDecimalBR.
func FormatBR(d decimal.Decimal) string {
	fixed := d.StringFixed(2)

	neg := strings.HasPrefix(fixed, "-")
	fixed = strings.TrimPrefix(fixed, "-")

	intPart, fracPart, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(c)
	}
	b.WriteByte(',')
	b.WriteString(fracPart)
	return b.String()
}

// SHA1Hex returns the lowercase hex SHA-1 of s. Used for statement source
// hashes, transaction line hashes and installment group IDs.
func SHA1Hex(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
