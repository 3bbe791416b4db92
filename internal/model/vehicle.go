package model

// Variant is a purchasable trim of a vehicle model. Price fields are whole
// kronor as printed in the source; nil means unknown and is never zero.
type Variant struct {
	Name              string         `json:"name"`
	Price             *int64         `json:"price,omitempty"`
	OldPrice          *int64         `json:"old_price,omitempty"`
	PrivateLeasing    *int64         `json:"private_leasing,omitempty"`
	OldPrivateLeasing *int64         `json:"old_private_leasing,omitempty"`
	CompanyLeasing    *int64         `json:"company_leasing,omitempty"`
	OldCompanyLeasing *int64         `json:"old_company_leasing,omitempty"`
	LoanPrice         *int64         `json:"loan_price,omitempty"`
	OldLoanPrice      *int64         `json:"old_loan_price,omitempty"`
	FuelType          string         `json:"fuel_type,omitempty"`
	Transmission      string         `json:"transmission,omitempty"`
	Specs             map[string]any `json:"specs,omitempty"`
	Equipment         []string       `json:"equipment,omitempty"`
	Thumbnail         string         `json:"thumbnail,omitempty"`
}

// PriceFields returns pointers to every optional price slot, in a fixed
// order, so callers can walk them without repeating field lists.
func (v *Variant) PriceFields() []**int64 {
	return []**int64{
		&v.Price, &v.OldPrice,
		&v.PrivateLeasing, &v.OldPrivateLeasing,
		&v.CompanyLeasing, &v.OldCompanyLeasing,
		&v.LoanPrice, &v.OldLoanPrice,
	}
}

// HasPrice reports whether any price slot is known.
func (v *Variant) HasPrice() bool {
	for _, f := range v.PriceFields() {
		if *f != nil {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the variant.
func (v Variant) Clone() Variant {
	out := v
	src := v.PriceFields()
	for i, f := range out.PriceFields() {
		if *src[i] != nil {
			n := **src[i]
			*f = &n
		}
	}
	if v.Specs != nil {
		out.Specs = make(map[string]any, len(v.Specs))
		for k, val := range v.Specs {
			out.Specs[k] = val
		}
	}
	if v.Equipment != nil {
		out.Equipment = append([]string(nil), v.Equipment...)
	}
	return out
}

// Vehicle is a model with its variants.
type Vehicle struct {
	Brand       string    `json:"brand"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Thumbnail   string    `json:"thumbnail,omitempty"`
	BodyType    string    `json:"body_type,omitempty"`
	SourceURL   string    `json:"source_url,omitempty"`
	Variants    []Variant `json:"variants"`
}

// Clone returns a deep copy of the vehicle.
func (v Vehicle) Clone() Vehicle {
	out := v
	out.Variants = make([]Variant, len(v.Variants))
	for i, vr := range v.Variants {
		out.Variants[i] = vr.Clone()
	}
	return out
}

// Int64 returns a pointer to n, or nil when n is not a usable amount.
func Int64(n int64) *int64 {
	if n <= 0 {
		return nil
	}
	return &n
}
