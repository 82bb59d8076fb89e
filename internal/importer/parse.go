package importer

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	rangeSepRe = regexp.MustCompile(`\s*(?:-|–|\ba\b|\bto\b)\s*`)
	listSepRe  = regexp.MustCompile(`[,;|]`)
)

// ParseNumber reads a number written the Brazilian way ("1.500.000,50",
// "R$ 2.000") or the English way ("1,500,000.50"). A single separator
// followed by exactly three digits is a thousands separator.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "R$")
	s = strings.TrimSuffix(s, "+")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, false
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		s = normalizeSingleSep(s, ",")
	case lastDot >= 0:
		s = normalizeSingleSep(s, ".")
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// normalizeSingleSep handles a number that uses only one kind of separator.
func normalizeSingleSep(s, sep string) string {
	parts := strings.Split(s, sep)
	if len(parts) > 2 || len(parts[len(parts)-1]) == 3 {
		return strings.Join(parts, "")
	}
	return strings.Join(parts, ".")
}

// ParseRange reads a headcount band such as "50-199", "50 a 199", "1.000+"
// or a single figure. A trailing "+" yields an open upper bound.
func ParseRange(s string) (lo, hi int, ok bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, 0, false
	}
	for _, prefix := range []string{"até ", "ate ", "up to "} {
		if rest, found := strings.CutPrefix(s, prefix); found {
			n, okN := ParseNumber(rest)
			if !okN {
				return 0, 0, false
			}
			return 0, int(n), true
		}
	}
	parts := rangeSepRe.Split(s, 2)
	if len(parts) == 2 {
		a, okA := ParseNumber(parts[0])
		b, okB := ParseNumber(parts[1])
		if !okA || !okB || a > b {
			return 0, 0, false
		}
		return int(a), int(b), true
	}
	n, okN := ParseNumber(s)
	if !okN {
		return 0, 0, false
	}
	if strings.HasSuffix(s, "+") {
		return int(n), 0, true
	}
	return int(n), int(n), true
}

// SplitList splits a cell holding several values separated by commas,
// semicolons or pipes.
func SplitList(s string) []string {
	var out []string
	for _, part := range listSepRe.Split(s, -1) {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}
