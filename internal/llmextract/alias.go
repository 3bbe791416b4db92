package llmextract

import (
	"sort"
	"strings"

	"github.com/sells-group/vehicle-catalog/internal/textnorm"
)

// keyAliases maps folded field names that models tend to produce onto the
// canonical IR field names.
var keyAliases = map[string]string{
	"bilar":                     "vehicles",
	"cars":                      "vehicles",
	"modeller":                  "vehicles",
	"models":                    "vehicles",
	"items":                     "vehicles",
	"type":                      "kind",
	"marke":                     "brand",
	"make":                      "brand",
	"manufacturer":              "brand",
	"modell":                    "title",
	"model":                     "title",
	"model_name":                "title",
	"beskrivning":               "description",
	"bild":                      "thumbnail",
	"image":                     "thumbnail",
	"image_url":                 "thumbnail",
	"kaross":                    "body_type",
	"karosstyp":                 "body_type",
	"body":                      "body_type",
	"varianter":                 "variants",
	"versioner":                 "variants",
	"versions":                  "variants",
	"trims":                     "variants",
	"namn":                      "name",
	"variant":                   "name",
	"variant_name":              "name",
	"pris":                      "price",
	"cash_price":                "price",
	"ordinarie_pris":            "old_price",
	"original_price":            "old_price",
	"previous_price":            "old_price",
	"privatleasing":             "private_leasing",
	"private_leasing_price":     "private_leasing",
	"foretagsleasing":           "company_leasing",
	"company_leasing_price":     "company_leasing",
	"business_leasing":          "company_leasing",
	"billan":                    "loan_price",
	"loan":                      "loan_price",
	"kampanjpris":               "campaign_price",
	"listpris":                  "list_price",
	"drivmedel":                 "fuel_type",
	"fuel":                      "fuel_type",
	"bransle":                   "fuel_type",
	"vaxellada":                 "transmission",
	"gearbox":                   "transmission",
	"utrustning":                "equipment",
	"features":                  "equipment",
	"specifikationer":           "specs",
	"specifications":            "specs",
	"lastvikt":                  "payload_kg",
	"lastvolym":                 "load_volume_m3",
	"private_leasing_old":       "old_private_leasing",
	"company_leasing_old":       "old_company_leasing",
	"old_company_leasing_price": "old_company_leasing",
}

// canonicalKey folds a field name and maps known aliases.
func canonicalKey(k string) string {
	f := strings.TrimSpace(textnorm.Fold(k))
	f = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '.':
			return '_'
		}
		return r
	}, f)
	if c, ok := keyAliases[f]; ok {
		return c
	}
	return f
}

// normalizeKeys rewrites object keys to canonical names throughout v. The
// contents of specs objects are left untouched. When an alias and its
// canonical name are both present the canonical one wins.
func normalizeKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		out := make(map[string]any, len(t))
		aliased := make(map[string]bool, len(t))
		for _, k := range keys {
			ck := canonicalKey(k)
			isAlias := ck != k
			if prev, exists := aliased[ck]; exists && isAlias && !prev {
				continue
			}
			val := t[k]
			if ck != "specs" {
				val = normalizeKeys(val)
			}
			out[ck] = val
			aliased[ck] = isAlias
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = normalizeKeys(x)
		}
		return out
	default:
		return v
	}
}
