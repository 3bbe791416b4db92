package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lowercases s and strips combining marks, so "Nyå Škoda" becomes
// "nya skoda". Swedish å, ä and ö fold to a, a and o.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// Tokens folds s and splits it on anything that is not a letter or digit.
func Tokens(s string) []string {
	return strings.FieldsFunc(Fold(s), func(c rune) bool {
		return !unicode.IsLetter(c) && !unicode.IsDigit(c)
	})
}

var fuelSynonyms = []struct {
	canonical string
	words     []string
}{
	// Order matters: "laddhybrid" must win over "hybrid".
	{"Laddhybrid", []string{"laddhybrid", "plug-in", "plugin", "phev"}},
	{"El", []string{"el", "elbil", "electric", "bev", "ev", "elektrisk"}},
	{"Hybrid", []string{"hybrid", "hev", "mhev", "mildhybrid", "elhybrid"}},
	{"Diesel", []string{"diesel", "tdi", "bluehdi", "crdi", "dci"}},
	{"Gas", []string{"gas", "biogas", "cng", "fordonsgas"}},
	{"Bensin", []string{"bensin", "petrol", "gasoline", "tsi", "puretech", "tce"}},
}

// NormalizeFuel maps a fuel description to a canonical Swedish label.
// Unknown values are returned cleaned but otherwise unchanged.
func NormalizeFuel(s string) string {
	label, ok := DetectFuel(s)
	if !ok {
		return CleanText(s)
	}
	return label
}

// DetectFuel finds a fuel type keyword in s.
func DetectFuel(s string) (string, bool) {
	folded := Fold(s)
	toks := Tokens(s)
	for _, fs := range fuelSynonyms {
		for _, w := range fs.words {
			if strings.Contains(w, "-") {
				if strings.Contains(folded, w) {
					return fs.canonical, true
				}
				continue
			}
			for _, tok := range toks {
				if tok == w {
					return fs.canonical, true
				}
			}
		}
	}
	return "", false
}

var (
	manualWords    = []string{"manuell", "manual", "man", "mt", "manuellt"}
	automaticWords = []string{"automat", "automatic", "aut", "auto", "at", "automatisk", "dct", "dsg", "cvt", "edc", "eat6", "eat8", "steptronic"}
)

// NormalizeTransmission maps a gearbox description to "Manuell" or
// "Automat". Unknown values are returned cleaned.
func NormalizeTransmission(s string) string {
	label, ok := DetectTransmission(s)
	if !ok {
		return CleanText(s)
	}
	return label
}

// DetectTransmission finds a gearbox keyword in s.
func DetectTransmission(s string) (string, bool) {
	for _, tok := range Tokens(s) {
		for _, w := range manualWords {
			if tok == w {
				return "Manuell", true
			}
		}
		for _, w := range automaticWords {
			if tok == w {
				return "Automat", true
			}
		}
	}
	return "", false
}
