package heuristic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const priceList = `# Peugeot 208

Active PureTech 75 hk manuell
Pris 199 900 kr
Privatleasing 2 699 kr/mån
- Farthållare
- Apple CarPlay
- farthållare

Allure PureTech 100 hk automat 249 900 kr 229 900 kr
Företagsleasing 2 100 kr/mån

Alla priser inkl. moms.
`

func TestParse_PriceList(t *testing.T) {
	vs := Parse(priceList, Hints{Brand: "Peugeot", Source: "208.pdf"})
	require.Len(t, vs, 1)

	v := vs[0]
	assert.Equal(t, "Peugeot", v.Brand)
	assert.Equal(t, "Peugeot 208", v.Title)
	assert.Equal(t, "208.pdf", v.SourceURL)
	require.Len(t, v.Variants, 2)

	active := v.Variants[0]
	assert.Equal(t, "Active PureTech 75 hk manuell", active.Name)
	assert.Equal(t, int64(199900), *active.Price)
	assert.Equal(t, int64(2699), *active.PrivateLeasing)
	assert.Equal(t, "Bensin", active.FuelType)
	assert.Equal(t, "Manuell", active.Transmission)
	assert.Equal(t, []string{"Farthållare", "Apple CarPlay"}, active.Equipment)

	allure := v.Variants[1]
	assert.Equal(t, "Allure PureTech 100 hk automat", allure.Name)
	assert.Equal(t, int64(229900), *allure.Price)
	assert.Equal(t, int64(249900), *allure.OldPrice)
	assert.Equal(t, int64(2100), *allure.CompanyLeasing)
	assert.Nil(t, allure.PrivateLeasing)
	assert.Equal(t, "Automat", allure.Transmission)
}

func TestParse_InlineLabels(t *testing.T) {
	text := "Niro EV Action: fr. 429 900 kr, billån 3 995 kr/mån, ord. pris 459 900 kr"
	vs := Parse(text, Hints{Brand: "Kia", Title: "Niro"})
	require.Len(t, vs, 1)
	assert.Equal(t, "Niro", vs[0].Title)
	require.Len(t, vs[0].Variants, 1)

	vr := vs[0].Variants[0]
	assert.Equal(t, "Niro EV Action", vr.Name)
	assert.Equal(t, int64(429900), *vr.Price)
	assert.Equal(t, int64(3995), *vr.LoanPrice)
	assert.Equal(t, int64(459900), *vr.OldPrice)
	assert.Equal(t, "El", vr.FuelType)
}

func TestParse_MultipleVehicles(t *testing.T) {
	text := "# Kia Picanto\nAction 189 900 kr\n# Kia Stonic\nAdvance 249 900:-\n# Tillbehör\nInga priser här"
	vs := Parse(text, Hints{Brand: "Kia"})
	require.Len(t, vs, 2)
	assert.Equal(t, "Kia Picanto", vs[0].Title)
	assert.Equal(t, "Kia Stonic", vs[1].Title)
	assert.Equal(t, int64(249900), *vs[1].Variants[0].Price)
}

func TestParse_NoPrices(t *testing.T) {
	assert.Empty(t, Parse("Välkommen till vår bilhall.\nRing oss!", Hints{}))
	assert.Empty(t, Parse("", Hints{}))
}

func TestParse_OrphanPriceIgnored(t *testing.T) {
	vs := Parse("Pris 199 900 kr", Hints{})
	assert.Empty(t, vs)
}

func TestStripHTML(t *testing.T) {
	in := `<html><head><style>.x{}</style><script>var a = "199 900 kr";</script></head><body>
<h2>Kia&nbsp;Ceed</h2>
<table><tr><td>GT-Line</td><td>299&nbsp;900 kr</td></tr></table>
<ul><li>LED-strålkastare</li><li>Navigation</li></ul>
</body></html>`

	got := StripHTML(in)
	assert.Equal(t, "# Kia Ceed\nGT-Line 299 900 kr\n- LED-strålkastare\n- Navigation", got)

	vs := Parse(got, Hints{})
	require.Len(t, vs, 1)
	assert.Equal(t, "Kia Ceed", vs[0].Title)
	assert.Equal(t, []string{"LED-strålkastare", "Navigation"}, vs[0].Variants[0].Equipment)
}
