package llmextract

import (
	"fmt"
	"strings"
)

// systemText is sent as a cached system block on every extraction call.
const systemText = `You extract vehicle price lists for a Swedish car dealer catalog.

Return only JSON, no prose and no markdown. The top level is an object with a "vehicles" array. Each vehicle has a "kind":
- "car": a model with trims. Fields: brand, title, description, thumbnail, body_type, variants.
- "campaign": a time-limited offer. Fields: brand, title, campaign_price, list_price, private_leasing, valid_until, variants.
- "transport_car": a van or pickup. Fields as "car" plus payload_kg and load_volume_m3.

Each variant has: name, price, old_price, private_leasing, old_private_leasing, company_leasing, old_company_leasing, loan_price, old_loan_price, fuel_type, transmission, specs (object), equipment (array of strings), thumbnail.

Rules:
- Prices are whole kronor as printed. 269 900 kr is 269900. Monthly amounts stay monthly.
- Use null for anything the document does not state. Never guess a price.
- One variant per trim and engine combination. Do not repeat identical variants.
- Keep names as printed, including power such as "130 hk".`

const userTemplate = `Extract every vehicle and variant from the document below.
%s
Source: %s

Document:
%s`

const pdfTemplate = `Extract every vehicle and variant from the attached PDF price list.
%s
Source: %s`

// UserPrompt builds the user message for a text document.
func UserPrompt(hints Hints, text string) string {
	return fmt.Sprintf(userTemplate, hintLines(hints), hints.Source, text)
}

// PDFPrompt builds the user message for a PDF sent as an attachment.
func PDFPrompt(hints Hints) string {
	return fmt.Sprintf(pdfTemplate, hintLines(hints), hints.Source)
}

// SystemPrompt returns the extraction instructions.
func SystemPrompt() string { return systemText }

func hintLines(h Hints) string {
	var sb strings.Builder
	if h.BrandHint != "" {
		fmt.Fprintf(&sb, "Brand (if not stated otherwise): %s\n", h.BrandHint)
	}
	if h.TitleHint != "" {
		fmt.Fprintf(&sb, "Model (if not stated otherwise): %s\n", h.TitleHint)
	}
	return sb.String()
}
