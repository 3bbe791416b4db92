package reconcile

import (
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agext/levenshtein"

	"github.com/sells-group/vehicle-catalog/internal/model"
	"github.com/sells-group/vehicle-catalog/internal/textnorm"
)

// Component weights of the variant score.
const (
	weightPower = 0.40
	weightTrans = 0.25
	weightTrim  = 0.20
	weightFuel  = 0.20

	componentShare = 0.6
	nameShare      = 0.4

	// partialCredit is the score of a component known on one side only.
	partialCredit = 0.85

	// Trim and engine guards.
	capOneTrim        = 0.4
	capDifferentTrims = 0.3
	capEngine         = 0.5

	kwToHK = 1.36
)

var (
	powerRe        = regexp.MustCompile(`^(\d+)(hk|hp|ps|hv|kw)$`)
	displacementRe = regexp.MustCompile(`^\d\.\d$`)
)

type features struct {
	name         string
	tokens       []string
	power        float64
	trans        string
	trim         string
	fuel         string
	family       string
	displacement string
}

// normalize folds a variant name into comparable tokens. Hyphens and
// split trim names join words ("GT-Line" and "GT Line" are "gtline"), power is written as "<n>hk" or "<n>kw",
// gearbox words collapse to "manuell" or "automat" and noise words are
// dropped.
func (r *Reconciler) normalize(name string) []string {
	rs := []rune(strings.ReplaceAll(textnorm.Fold(name), "-", ""))
	var sb strings.Builder
	for i, c := range rs {
		switch {
		case unicode.IsLetter(c) || unicode.IsDigit(c):
			sb.WriteRune(c)
		case (c == '.' || c == ',') && i > 0 && i < len(rs)-1 && unicode.IsDigit(rs[i-1]) && unicode.IsDigit(rs[i+1]):
			sb.WriteRune('.')
		default:
			sb.WriteRune(' ')
		}
	}

	raw := strings.Fields(sb.String())
	out := make([]string, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		t := raw[i]
		if isDigits(t) && i+1 < len(raw) {
			if unit, ok := powerUnit(raw[i+1]); ok {
				out = append(out, t+unit)
				i++
				continue
			}
		}
		if i+1 < len(raw) && r.trims[t+raw[i+1]] {
			out = append(out, t+raw[i+1])
			i++
			continue
		}
		if m := powerRe.FindStringSubmatch(t); m != nil {
			unit, _ := powerUnit(m[2])
			t = m[1] + unit
		}
		switch {
		case r.manual[t]:
			t = "manuell"
		case r.automatic[t]:
			t = "automat"
		case r.noise[t]:
			continue
		}
		out = append(out, t)
	}
	return out
}

func (r *Reconciler) features(v model.Variant) features {
	toks := r.normalize(v.Name)
	f := features{name: strings.Join(toks, " "), tokens: toks}
	for _, t := range toks {
		switch {
		case f.power == 0 && powerRe.MatchString(t):
			f.power = horsepower(t)
		case f.trans == "" && (t == "manuell" || t == "automat"):
			f.trans = t
		case f.trim == "" && r.trims[t]:
			f.trim = t
		case f.family == "" && r.engines[t]:
			f.family = t
		case f.displacement == "" && displacementRe.MatchString(t):
			f.displacement = t
		}
	}

	if f.trans == "" {
		if l, ok := textnorm.DetectTransmission(v.Transmission); ok {
			f.trans = strings.ToLower(l)
		}
	}
	if l, ok := textnorm.DetectFuel(v.Name); ok {
		f.fuel = strings.ToLower(l)
	} else if l, ok := textnorm.DetectFuel(v.FuelType); ok {
		f.fuel = strings.ToLower(l)
	} else if s := strings.TrimSpace(v.FuelType); s != "" {
		f.fuel = textnorm.Fold(s)
	}
	return f
}

// VariantSimilarity returns a score in [0,1] for how likely a and b are
// the same trim. The score is symmetric.
func (r *Reconciler) VariantSimilarity(a, b model.Variant) float64 {
	return similarity(r.features(a), r.features(b))
}

func similarity(a, b features) float64 {
	var num, den float64
	add := func(weight, score float64, ok bool) {
		if ok {
			num += weight * score
			den += weight
		}
	}
	s, ok := matchPower(a.power, b.power)
	add(weightPower, s, ok)
	s, ok = matchString(a.trans, b.trans)
	add(weightTrans, s, ok)
	s, ok = matchString(a.trim, b.trim)
	add(weightTrim, s, ok)
	s, ok = matchString(a.fuel, b.fuel)
	add(weightFuel, s, ok)

	lev := levenshtein.Similarity(a.name, b.name, nil)
	score := lev
	if den > 0 {
		score = componentShare*num/den + nameShare*lev
	}

	switch {
	case (a.trim == "") != (b.trim == ""):
		score = min(score, capOneTrim)
	case a.trim != b.trim:
		score = min(score, capDifferentTrims)
	}
	if differ(a.family, b.family) || differ(a.displacement, b.displacement) {
		score = min(score, capEngine)
	}
	return score
}

func matchString(a, b string) (float64, bool) {
	switch {
	case a == "" && b == "":
		return 0, false
	case a == "" || b == "":
		return partialCredit, true
	case a == b:
		return 1, true
	}
	return 0, true
}

// matchPower compares horsepower with a 3% tolerance so that a kW figure
// and its converted hk figure match.
func matchPower(a, b float64) (float64, bool) {
	switch {
	case a == 0 && b == 0:
		return 0, false
	case a == 0 || b == 0:
		return partialCredit, true
	case math.Abs(a-b) <= 0.03*math.Max(a, b):
		return 1, true
	}
	return 0, true
}

func differ(a, b string) bool {
	return a != "" && b != "" && a != b
}

// MergeVariants merges b into a. The more descriptive name wins, a set
// price in b replaces the one in a, strings and specs only fill gaps and
// equipment is unioned. Merging the result with a again changes nothing.
func (r *Reconciler) MergeVariants(a, b model.Variant) model.Variant {
	out := a.Clone()
	if moreDescriptive(b.Name, a.Name) {
		out.Name = b.Name
	}

	dst, src := out.PriceFields(), b.PriceFields()
	for i := range dst {
		if p := *src[i]; p != nil && *p > 0 {
			n := *p
			*dst[i] = &n
		}
	}

	if out.FuelType == "" {
		out.FuelType = b.FuelType
	}
	if out.Transmission == "" {
		out.Transmission = b.Transmission
	}
	if out.Thumbnail == "" {
		out.Thumbnail = b.Thumbnail
	}
	out.Equipment = unionEquipment(out.Equipment, b.Equipment)

	for k, val := range b.Specs {
		if val == nil {
			continue
		}
		if out.Specs == nil {
			out.Specs = make(map[string]any, len(b.Specs))
		}
		if cur, ok := out.Specs[k]; !ok || cur == nil {
			out.Specs[k] = val
		}
	}
	return out
}

// GroupVariants merges variants that score at or above threshold. Each
// pass walks the list left to right and lets every remaining record absorb
// the later ones it matches. Passes repeat until one merges nothing, so no
// two returned variants score at or above threshold.
func (r *Reconciler) GroupVariants(vs []model.Variant, threshold float64) []model.Variant {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	cur := make([]model.Variant, len(vs))
	for i, v := range vs {
		cur[i] = v.Clone()
	}
	for {
		next, merged := r.groupPass(cur, threshold)
		if !merged {
			return next
		}
		cur = next
	}
}

func (r *Reconciler) groupPass(vs []model.Variant, threshold float64) ([]model.Variant, bool) {
	feats := make([]features, len(vs))
	for i, v := range vs {
		feats[i] = r.features(v)
	}

	absorbed := make([]bool, len(vs))
	out := make([]model.Variant, 0, len(vs))
	merged := false
	for i := range vs {
		if absorbed[i] {
			continue
		}
		rec, fr := vs[i], feats[i]
		for j := i + 1; j < len(vs); j++ {
			if absorbed[j] || similarity(fr, feats[j]) < threshold {
				continue
			}
			rec = r.MergeVariants(rec, vs[j])
			fr = r.features(rec)
			absorbed[j] = true
			merged = true
		}
		out = append(out, rec)
	}
	return out, merged
}

func moreDescriptive(x, y string) bool {
	nx, ny := len(textnorm.Tokens(x)), len(textnorm.Tokens(y))
	if nx != ny {
		return nx > ny
	}
	return utf8.RuneCountInString(strings.TrimSpace(x)) > utf8.RuneCountInString(strings.TrimSpace(y))
}

func unionEquipment(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	seen := make(map[string]bool, len(a)+len(b))
	for _, e := range a {
		seen[textnorm.Fold(e)] = true
	}
	out := a
	for _, e := range b {
		k := textnorm.Fold(e)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, e)
	}
	return out
}

func powerUnit(s string) (string, bool) {
	switch s {
	case "hk", "hp", "ps", "hv":
		return "hk", true
	case "kw":
		return "kw", true
	}
	return "", false
}

func horsepower(tok string) float64 {
	m := powerRe.FindStringSubmatch(tok)
	if m == nil {
		return 0
	}
	var n float64
	for _, c := range m[1] {
		n = n*10 + float64(c-'0')
	}
	if m[2] == "kw" {
		return n * kwToHK
	}
	return n
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}
