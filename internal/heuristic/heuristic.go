// Package heuristic reads vehicle price lists from plain text without any
// remote provider. It is the last tier in the extraction chain.
package heuristic

import (
	"regexp"
	"strings"

	"github.com/sells-group/vehicle-catalog/internal/model"
	"github.com/sells-group/vehicle-catalog/internal/textnorm"
)

// Hints seeds the parsed vehicles.
type Hints struct {
	Brand  string
	Title  string
	Source string
}

var priceRe = regexp.MustCompile(`(?i)(\d{1,3}(?:[ \x{00a0}\x{202f}.]\d{3})+|\d+)\s*(?:kr|sek|:-)(\s*/\s*m[aå]n(?:ad)?|\s+per\s+m[aå]nad|\s+i\s+m[aå]naden)?`)

// nameNoise are words stripped from the ends of a variant line.
var nameNoise = map[string]bool{
	"pris": true, "fran": true, "fr": true, "privatleasing": true,
	"foretagsleasing": true, "billan": true, "lan": true, "leasing": true,
	"kampanjpris": true, "ord": true, "ordinarie": true, "ca": true,
	"per": true, "manad": true, "nu": true, "kr": true, "endast": true,
}

type field int

const (
	fieldPrice field = iota
	fieldOldPrice
	fieldPrivateLeasing
	fieldCompanyLeasing
	fieldLoan
)

type amount struct {
	field field
	value int64
}

type parser struct {
	hints    Hints
	vehicles []model.Vehicle
	cur      *model.Vehicle
	variant  *model.Variant
	pending  string
}

// Parse reads text line by line. A line with a name followed by prices
// starts a variant; a bare short line is remembered as the name for the
// price lines that follow it. Markdown headings start a new vehicle and
// bullet lines are equipment of the current variant. Vehicles without any
// priced variant are dropped.
func Parse(text string, hints Hints) []model.Vehicle {
	p := &parser{hints: hints}
	for _, raw := range strings.Split(text, "\n") {
		p.line(strings.TrimSpace(raw))
	}
	p.flushVehicle()
	return p.vehicles
}

func (p *parser) line(s string) {
	if s == "" {
		return
	}
	if strings.HasPrefix(s, "#") {
		p.flushVehicle()
		p.cur = &model.Vehicle{Title: textnorm.CleanText(strings.TrimLeft(s, "# "))}
		return
	}

	locs := priceRe.FindAllStringSubmatchIndex(s, -1)
	if bullet, ok := cutBullet(s); ok && len(locs) == 0 {
		p.equipment(bullet)
		return
	}
	if len(locs) == 0 {
		if isNameLine(s) {
			p.pending = textnorm.CleanText(s)
		}
		return
	}

	name := cleanName(s[:locs[0][0]])
	switch {
	case name != "":
		p.flushVariant()
		p.pending = ""
		p.startVariant(name)
	case p.pending != "":
		p.flushVariant()
		p.startVariant(p.pending)
		p.pending = ""
	case p.variant == nil:
		return
	}

	prev := 0
	for _, loc := range locs {
		seg := s[prev:loc[0]]
		prev = loc[1]
		n, ok := textnorm.ParsePrice(s[loc[2]:loc[3]])
		if !ok {
			continue
		}
		monthly := loc[4] >= 0
		p.assign(amount{field: classify(seg, monthly), value: n})
	}
}

func (p *parser) startVariant(name string) {
	v := model.Variant{Name: name}
	if fuel, ok := textnorm.DetectFuel(name); ok {
		v.FuelType = fuel
	}
	if tr, ok := textnorm.DetectTransmission(name); ok {
		v.Transmission = tr
	}
	p.variant = &v
}

func (p *parser) assign(a amount) {
	v := p.variant
	n := model.Int64(a.value)
	switch a.field {
	case fieldPrivateLeasing:
		if v.PrivateLeasing == nil {
			v.PrivateLeasing = n
		}
	case fieldCompanyLeasing:
		if v.CompanyLeasing == nil {
			v.CompanyLeasing = n
		}
	case fieldLoan:
		if v.LoanPrice == nil {
			v.LoanPrice = n
		}
	case fieldOldPrice:
		if v.OldPrice == nil {
			v.OldPrice = n
		}
	case fieldPrice:
		switch {
		case v.Price == nil:
			v.Price = n
		case v.OldPrice == nil && a.value > *v.Price:
			v.OldPrice = n
		case v.OldPrice == nil && a.value < *v.Price:
			v.OldPrice, v.Price = v.Price, n
		}
	}
}

func (p *parser) equipment(item string) {
	if p.variant == nil {
		return
	}
	item = textnorm.CleanText(item)
	for _, e := range p.variant.Equipment {
		if textnorm.Fold(e) == textnorm.Fold(item) {
			return
		}
	}
	p.variant.Equipment = append(p.variant.Equipment, item)
}

func (p *parser) flushVariant() {
	if p.variant == nil {
		return
	}
	if p.variant.HasPrice() {
		if p.cur == nil {
			p.cur = &model.Vehicle{}
		}
		p.cur.Variants = append(p.cur.Variants, *p.variant)
	}
	p.variant = nil
}

func (p *parser) flushVehicle() {
	p.flushVariant()
	p.pending = ""
	if p.cur == nil || len(p.cur.Variants) == 0 {
		p.cur = nil
		return
	}
	v := *p.cur
	if v.Title == "" {
		v.Title = p.hints.Title
	}
	v.Brand = p.hints.Brand
	v.SourceURL = p.hints.Source
	p.vehicles = append(p.vehicles, v)
	p.cur = nil
}

// classify picks the price slot from the words preceding an amount.
func classify(seg string, monthly bool) field {
	toks := textnorm.Tokens(seg)
	has := func(words ...string) bool {
		for _, t := range toks {
			for _, w := range words {
				if t == w {
					return true
				}
			}
		}
		return false
	}
	folded := textnorm.Fold(seg)
	switch {
	case strings.Contains(folded, "foretag"):
		return fieldCompanyLeasing
	case has("billan", "lan"):
		return fieldLoan
	case strings.Contains(folded, "leasing") || monthly:
		return fieldPrivateLeasing
	case has("ord", "ordinarie", "tidigare"):
		return fieldOldPrice
	}
	return fieldPrice
}

func cleanName(s string) string {
	words := strings.Fields(s)
	isNoise := func(w string) bool {
		f := strings.Trim(textnorm.Fold(w), ".:-–")
		return f == "" || nameNoise[f]
	}
	for len(words) > 0 && isNoise(words[len(words)-1]) {
		words = words[:len(words)-1]
	}
	for len(words) > 0 && isNoise(words[0]) {
		words = words[1:]
	}
	return strings.TrimRight(strings.Join(words, " "), ":-–, ")
}

func isNameLine(s string) bool {
	if strings.Contains(s, ":") || strings.HasSuffix(s, ".") {
		return false
	}
	n := len(strings.Fields(s))
	return n > 0 && n <= 8
}

func cutBullet(s string) (string, bool) {
	for _, b := range []string{"- ", "* ", "• ", "+ "} {
		if rest, ok := strings.CutPrefix(s, b); ok {
			return rest, true
		}
	}
	return "", false
}
