package llmextract

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"

	"github.com/sells-group/vehicle-catalog/internal/model"
	"github.com/sells-group/vehicle-catalog/internal/textnorm"
)

// TransportBodyType is the body type given to transport_car entries.
const TransportBodyType = "transportbil"

// entry is one element of the extraction IR after alias normalization.
type entry struct {
	Kind          string    `json:"kind"`
	Brand         string    `json:"brand"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Thumbnail     string    `json:"thumbnail"`
	BodyType      string    `json:"body_type"`
	CampaignPrice price     `json:"campaign_price"`
	ListPrice     price     `json:"list_price"`
	Leasing       price     `json:"private_leasing"`
	PayloadKg     *float64  `json:"payload_kg"`
	LoadVolume    *float64  `json:"load_volume_m3"`
	Variants      []variant `json:"variants"`
}

type variant struct {
	Name              string         `json:"name"`
	Price             price          `json:"price"`
	OldPrice          price          `json:"old_price"`
	PrivateLeasing    price          `json:"private_leasing"`
	OldPrivateLeasing price          `json:"old_private_leasing"`
	CompanyLeasing    price          `json:"company_leasing"`
	OldCompanyLeasing price          `json:"old_company_leasing"`
	LoanPrice         price          `json:"loan_price"`
	OldLoanPrice      price          `json:"old_loan_price"`
	CampaignPrice     price          `json:"campaign_price"`
	ListPrice         price          `json:"list_price"`
	FuelType          string         `json:"fuel_type"`
	Transmission      string         `json:"transmission"`
	Specs             map[string]any `json:"specs"`
	Equipment         []string       `json:"equipment"`
	Thumbnail         string         `json:"thumbnail"`
}

// price accepts a JSON number, a formatted Swedish price string or null.
// Zero and negative values are unknown.
type price struct {
	v *int64
}

func (p *price) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		p.v = textnorm.PriceOrNil(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	p.v = model.Int64(int64(math.Round(f)))
	return nil
}

func (e entry) toVehicle(source string) model.Vehicle {
	v := model.Vehicle{
		Brand:       textnorm.CleanText(e.Brand),
		Title:       textnorm.CleanText(e.Title),
		Description: strings.TrimSpace(e.Description),
		Thumbnail:   strings.TrimSpace(e.Thumbnail),
		BodyType:    textnorm.CleanText(e.BodyType),
		SourceURL:   source,
	}

	for _, iv := range e.Variants {
		mv := iv.toVariant()
		if e.Kind == KindCampaign {
			if iv.CampaignPrice.v != nil {
				mv.Price = iv.CampaignPrice.v
			}
			if iv.ListPrice.v != nil {
				mv.OldPrice = iv.ListPrice.v
			}
		}
		v.Variants = append(v.Variants, mv)
	}

	switch e.Kind {
	case KindCampaign:
		if len(v.Variants) == 0 && (e.CampaignPrice.v != nil || e.Leasing.v != nil) {
			v.Variants = append(v.Variants, model.Variant{
				Name:           v.Title,
				Price:          e.CampaignPrice.v,
				OldPrice:       e.ListPrice.v,
				PrivateLeasing: e.Leasing.v,
			})
		}
	case KindTransportCar:
		if v.BodyType == "" {
			v.BodyType = TransportBodyType
		}
		for i := range v.Variants {
			setSpec(&v.Variants[i], "lastvikt_kg", e.PayloadKg)
			setSpec(&v.Variants[i], "lastvolym_m3", e.LoadVolume)
		}
	}
	return v
}

func (iv variant) toVariant() model.Variant {
	mv := model.Variant{
		Name:              textnorm.CleanText(iv.Name),
		Price:             iv.Price.v,
		OldPrice:          iv.OldPrice.v,
		PrivateLeasing:    iv.PrivateLeasing.v,
		OldPrivateLeasing: iv.OldPrivateLeasing.v,
		CompanyLeasing:    iv.CompanyLeasing.v,
		OldCompanyLeasing: iv.OldCompanyLeasing.v,
		LoanPrice:         iv.LoanPrice.v,
		OldLoanPrice:      iv.OldLoanPrice.v,
		Specs:             iv.Specs,
		Thumbnail:         strings.TrimSpace(iv.Thumbnail),
	}
	if s := strings.TrimSpace(iv.FuelType); s != "" {
		mv.FuelType = textnorm.NormalizeFuel(s)
	}
	if s := strings.TrimSpace(iv.Transmission); s != "" {
		mv.Transmission = textnorm.NormalizeTransmission(s)
	}

	seen := make(map[string]bool, len(iv.Equipment))
	for _, item := range iv.Equipment {
		item = textnorm.CleanText(item)
		key := textnorm.Fold(item)
		if item == "" || seen[key] {
			continue
		}
		seen[key] = true
		mv.Equipment = append(mv.Equipment, item)
	}
	return mv
}

func setSpec(v *model.Variant, key string, val *float64) {
	if val == nil {
		return
	}
	if v.Specs == nil {
		v.Specs = make(map[string]any, 2)
	}
	if _, ok := v.Specs[key]; !ok {
		v.Specs[key] = *val
	}
}
