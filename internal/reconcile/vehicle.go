package reconcile

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sells-group/vehicle-catalog/internal/model"
	"github.com/sells-group/vehicle-catalog/internal/textnorm"
)

var yearRe = regexp.MustCompile(`^(19|20)\d{2}$`)

// minSharedWords is how many significant title words two vehicles of the
// same brand must share to match when their keys differ.
const minSharedWords = 2

func keyTokens(s string) []string {
	return textnorm.Tokens(strings.ReplaceAll(s, "-", ""))
}

// titleWords returns the title tokens of v without brand words, marketing
// noise or model years.
func (r *Reconciler) titleWords(v model.Vehicle) []string {
	brand := make(map[string]bool)
	for _, t := range keyTokens(v.Brand) {
		brand[t] = true
	}
	var out []string
	for _, t := range keyTokens(v.Title) {
		if brand[t] || r.titleNoise[t] || yearRe.MatchString(t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func brandKey(v model.Vehicle) string {
	return strings.Join(keyTokens(v.Brand), " ")
}

// VehicleKey returns "brand:title" with both parts folded and stripped of
// noise, for example "peugeot:208" for "Nya Peugeot 208 Hybrid 2025".
func (r *Reconciler) VehicleKey(v model.Vehicle) string {
	return brandKey(v) + ":" + strings.Join(r.titleWords(v), " ")
}

// SameVehicle reports whether a and b denote the same model: their keys
// are equal, or their brands are equal and their titles share at least two
// significant words. Anything else is a different vehicle. A key with an
// empty title part never matches.
func (r *Reconciler) SameVehicle(a, b model.Vehicle) bool {
	if len(r.titleWords(a)) > 0 && r.VehicleKey(a) == r.VehicleKey(b) {
		return true
	}
	ba := brandKey(a)
	if ba == "" || ba != brandKey(b) {
		return false
	}

	words := make(map[string]bool)
	for _, t := range r.titleWords(a) {
		if !r.stop[t] {
			words[t] = true
		}
	}
	shared := 0
	for _, t := range r.titleWords(b) {
		if words[t] {
			shared++
			delete(words, t)
		}
	}
	return shared >= minSharedWords
}

// MergeVehicles merges b into a. The first non-empty brand, title,
// thumbnail, body type and source are kept, the longer description wins
// and the variant lists are concatenated and regrouped.
func (r *Reconciler) MergeVehicles(a, b model.Vehicle, threshold float64) model.Vehicle {
	out := a.Clone()
	fill := func(dst *string, src string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = src
		}
	}
	fill(&out.Brand, b.Brand)
	fill(&out.Title, b.Title)
	fill(&out.Thumbnail, b.Thumbnail)
	fill(&out.BodyType, b.BodyType)
	fill(&out.SourceURL, b.SourceURL)
	if utf8.RuneCountInString(b.Description) > utf8.RuneCountInString(out.Description) {
		out.Description = b.Description
	}

	all := append(out.Variants, b.Variants...)
	out.Variants = r.GroupVariants(all, threshold)
	return out
}

// Vehicles reconciles candidate vehicles in input order. Each candidate is
// merged into the first earlier vehicle it matches or appended as a new
// one. Variants of every vehicle are deduplicated.
func (r *Reconciler) Vehicles(candidates []model.Vehicle, threshold float64) []model.Vehicle {
	var out []model.Vehicle
	for _, c := range candidates {
		merged := false
		for i := range out {
			if r.SameVehicle(out[i], c) {
				out[i] = r.MergeVehicles(out[i], c, threshold)
				merged = true
				break
			}
		}
		if !merged {
			v := c.Clone()
			v.Variants = r.GroupVariants(v.Variants, threshold)
			out = append(out, v)
		}
	}
	return out
}
