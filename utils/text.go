package utils

import (
	"regexp"
	"strconv"
	"strings"
)

const maxTextLen = 200

// A numeric token is an integer with an optional two-digit decimal part
// introduced by "." or ",". Grouping separators are not recognised.
const numberPattern = `(\d+(?:[.,]\d{2})?)`

var (
	priceRegexp   = regexp.MustCompile(numberPattern)
	surfaceRegexp = regexp.MustCompile(numberPattern + `\s*m`)
	emailRegexp   = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	leadingIntRe  = regexp.MustCompile(`^\+?(\d+)`)
)

// CleanText trims s, collapses internal whitespace and truncates it to 200 characters.
func CleanText(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > maxTextLen {
		s = string(r[:maxTextLen])
	}
	return s
}

// FormatPrice renders the first numeric token of raw as "<amount>€/mois".
// Text without digits is returned trimmed but otherwise verbatim.
func FormatPrice(raw string) string {
	text := CleanText(raw)
	amount, ok := firstAmount(priceRegexp, text)
	if !ok {
		return text
	}
	return amount + "€/mois"
}

// FormatSurface renders the first "<number> m" token of raw as "<amount>m²".
func FormatSurface(raw string) string {
	text := CleanText(raw)
	amount, ok := firstAmount(surfaceRegexp, text)
	if !ok {
		return text
	}
	return amount + "m²"
}

// ParseAmount reads the leading amount of a normalized price or surface
// ("1200,50€/mois" → 1200.5, "1.20€/mois" → 1.2). It returns 0 when no
// amount is present.
func ParseAmount(s string) float64 {
	amount, ok := firstAmount(priceRegexp, s)
	if !ok {
		return 0
	}
	v, err := strconv.ParseFloat(strings.Replace(amount, ",", ".", 1), 64)
	if err != nil {
		return 0
	}
	return v
}

func firstAmount(re *regexp.Regexp, text string) (string, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ValidateEmail reports whether s looks like an email address.
func ValidateEmail(s string) bool {
	return emailRegexp.MatchString(s)
}

// ParseNonNegativeInt reads the leading integer of s ("850€" → 850).
// Negative or non-numeric input is rejected.
func ParseNonNegativeInt(s string) (int, bool) {
	m := leadingIntRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
