package enrich

import (
	"fmt"
	"strings"
)

var (
	cnpjWeights1 = []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	cnpjWeights2 = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
)

// NormalizeCNPJ strips punctuation, leaving only digits.
func NormalizeCNPJ(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidCNPJ reports whether s (formatted or not) has 14 digits with valid
// check digits.
func ValidCNPJ(s string) bool {
	d := NormalizeCNPJ(s)
	if len(d) != 14 || strings.Count(d, d[:1]) == 14 {
		return false
	}
	return d[12] == checkDigit(d[:12], cnpjWeights1) && d[13] == checkDigit(d[:13], cnpjWeights2)
}

func checkDigit(digits string, weights []int) byte {
	sum := 0
	for i, w := range weights {
		sum += int(digits[i]-'0') * w
	}
	r := sum % 11
	if r < 2 {
		return '0'
	}
	return byte('0' + 11 - r)
}

// FormatCNPJ renders 14 digits as 00.000.000/0000-00.
func FormatCNPJ(s string) string {
	d := NormalizeCNPJ(s)
	if len(d) != 14 {
		return s
	}
	return fmt.Sprintf("%s.%s.%s/%s-%s", d[:2], d[2:5], d[5:8], d[8:12], d[12:])
}

// FormatCNAE renders a 7-digit CNAE subclass as 0000-0/00.
func FormatCNAE(code int) string {
	s := fmt.Sprintf("%07d", code)
	return s[:4] + "-" + s[4:5] + "/" + s[5:]
}
