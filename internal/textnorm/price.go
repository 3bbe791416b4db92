// Package textnorm parses Swedish price strings and normalizes the free
// text found in vehicle price lists.
package textnorm

import (
	"strings"
	"unicode"
)

// ParsePrice extracts the first amount from a price string such as
// "269 900 kr", "269.900:-", "fr. 389 900 SEK" or "2 699 kr/mån".
// Thousands separators (space, no-break space, dot, comma followed by
// exactly three digits) are dropped; a decimal part is truncated.
// Zero or missing amounts report ok=false.
func ParsePrice(s string) (int64, bool) {
	r := []rune(s)
	start := -1
	for i, c := range r {
		if isDigit(c) {
			start = i
			break
		}
	}
	if start < 0 {
		return 0, false
	}

	var n int64
	i := start
	for i < len(r) {
		c := r[i]
		switch {
		case isDigit(c):
			n = n*10 + int64(c-'0')
			if n > 1e12 {
				return 0, false
			}
			i++
			continue
		case isGroupSeparator(c) || c == '.' || c == ',':
			if digitGroup(r, i+1) == 3 {
				i++
				continue
			}
		}
		break
	}

	if n <= 0 {
		return 0, false
	}
	return n, true
}

// PriceOrNil parses s and returns nil when no usable amount is present.
func PriceOrNil(s string) *int64 {
	n, ok := ParsePrice(s)
	if !ok {
		return nil
	}
	return &n
}

func isGroupSeparator(c rune) bool {
	return c == ' ' || c == '\u00a0' || c == '\u202f' || c == '\u2009' || c == '\''
}

// digitGroup returns the length of the digit run starting at i.
func digitGroup(r []rune, i int) int {
	n := 0
	for i+n < len(r) && isDigit(r[i+n]) {
		n++
	}
	return n
}

// CleanText collapses whitespace runs, including no-break spaces, into a
// single space and trims the result.
func CleanText(s string) string {
	return strings.Join(strings.FieldsFunc(s, func(c rune) bool {
		return unicode.IsSpace(c) || c == '\u00a0' || c == '\u202f'
	}), " ")
}

func isDigit(c rune) bool {
	return c >= '0' && c <= '9'
}
