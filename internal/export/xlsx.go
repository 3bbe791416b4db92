// Package export writes the reconciled catalog to spreadsheet files.
package export

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/vehicle-catalog/internal/model"
)

// Sheet names in the exported workbook.
const (
	SheetVariants = "Variants"
	SheetIssues   = "Issues"
)

// VariantHeader is the header row of the variants sheet.
var VariantHeader = []string{
	"Brand", "Model", "Body type", "Variant",
	"Price", "Old price",
	"Private leasing", "Old private leasing",
	"Company leasing", "Old company leasing",
	"Loan price", "Old loan price",
	"Fuel", "Transmission", "Source",
}

// IssueHeader is the header row of the issues sheet.
var IssueHeader = []string{"Kind", "Severity", "Source", "Vehicle", "Message"}

// WriteXLSX writes one row per variant, plus an issues sheet, to w. A
// vehicle without variants still gets one row so it is not lost.
func WriteXLSX(w io.Writer, result *model.ReconciliationResult) error {
	f, err := Workbook(result)
	if err != nil {
		return err
	}
	return eris.Wrap(f.Write(w), "export: write xlsx")
}

// SaveXLSX writes the workbook to path.
func SaveXLSX(path string, result *model.ReconciliationResult) error {
	f, err := Workbook(result)
	if err != nil {
		return err
	}
	return eris.Wrapf(f.Save(path), "export: save %s", path)
}

// Workbook builds the in-memory workbook for result.
func Workbook(result *model.ReconciliationResult) (*xlsx.File, error) {
	if result == nil {
		return nil, eris.New("export: nil result")
	}
	f := xlsx.NewFile()

	variants, err := f.AddSheet(SheetVariants)
	if err != nil {
		return nil, eris.Wrap(err, "export: add variants sheet")
	}
	addStrings(variants.AddRow(), VariantHeader)
	for _, v := range result.Vehicles {
		if len(v.Variants) == 0 {
			addVariantRow(variants.AddRow(), v, model.Variant{})
			continue
		}
		for _, vr := range v.Variants {
			addVariantRow(variants.AddRow(), v, vr)
		}
	}

	issues, err := f.AddSheet(SheetIssues)
	if err != nil {
		return nil, eris.Wrap(err, "export: add issues sheet")
	}
	addStrings(issues.AddRow(), IssueHeader)
	for _, is := range result.Issues {
		addStrings(issues.AddRow(), []string{
			string(is.Kind), string(is.Severity), is.Source, is.Vehicle, is.Message,
		})
	}
	return f, nil
}

func addStrings(row *xlsx.Row, vals []string) {
	for _, v := range vals {
		row.AddCell().SetString(v)
	}
}

func addVariantRow(row *xlsx.Row, v model.Vehicle, vr model.Variant) {
	addStrings(row, []string{v.Brand, v.Title, v.BodyType, vr.Name})
	for _, p := range vr.PriceFields() {
		c := row.AddCell()
		if *p != nil {
			c.SetInt64(**p)
		}
	}
	addStrings(row, []string{vr.FuelType, vr.Transmission, v.SourceURL})
}
