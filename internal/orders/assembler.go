package orders

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/procurehub/webshop-backend/internal/cart"
	"github.com/procurehub/webshop-backend/internal/checkout"
	"github.com/procurehub/webshop-backend/pkg/textblock"
)

// Order type codes pinned by the receiving system.
const (
	OrderTypeConsumption = "ZNPR"
	OrderTypeInvestment  = "ZIN1"
)

// SustainabilityFlag is the wire value for "yes".
const SustainabilityFlag = "X"

// Header text-line type codes.
const (
	TextIDNote     = "B01"
	TextIDContract = "B03"
)

const wireDateLayout = "20060102"

// accountTypeCodes maps the cart's accounting types onto the wire codes.
var accountTypeCodes = map[cart.AccountType]string{
	cart.AccountGeneralLedger: "K",
	cart.AccountInternalOrder: "F",
	cart.AccountWBSElement:    "P",
}

// classificationOrder fixes the concatenation order of the tags.
var classificationOrder = []checkout.ClassificationTag{
	checkout.TagA, checkout.TagG, checkout.TagI, checkout.TagT,
}

// TextLine is one fixed-width text record on the header or a line.
type TextLine struct {
	TextID string `json:"textId"`
	Line   string `json:"line"`
}

// Line is one order line of the create request.
type Line struct {
	ItemID             string          `json:"itemId"`
	Description        string          `json:"description,omitempty"`
	Quantity           int             `json:"quantity"`
	Unit               string          `json:"unit,omitempty"`
	MaterialGroup      string          `json:"materialGroup,omitempty"`
	Plant              string          `json:"plant,omitempty"`
	DesiredDate        string          `json:"desiredDate,omitempty"`
	ExternalMaterialNo string          `json:"externalMaterialNo,omitempty"`
	AccountTypeCode    string          `json:"accountTypeCode,omitempty"`
	AccountValue       string          `json:"accountValue,omitempty"`
	GLAccount          string          `json:"glAccount,omitempty"`
	SupplierID         string          `json:"supplierId,omitempty"`
	PurchasingOrg      string          `json:"purchasingOrg,omitempty"`
	PurchasingGroup    string          `json:"purchasingGroup,omitempty"`
	Price              decimal.Decimal `json:"price"`
	Currency           string          `json:"currency,omitempty"`
	Receiver           string          `json:"receiver,omitempty"`
	TextLines          []TextLine      `json:"textLines,omitempty"`
}

// Request is the order-create document sent to the backend.
type Request struct {
	OrderType          string     `json:"orderType"`
	InvestmentType     string     `json:"investmentType,omitempty"`
	Classification     string     `json:"classification,omitempty"`
	SustainabilityFlag string     `json:"sustainabilityFlag,omitempty"`
	Sigma              string     `json:"sigma"`
	Plant              string     `json:"plant,omitempty"`
	HeadCostCenter     string     `json:"headCostCenter,omitempty"`
	HeaderTextLines    []TextLine `json:"headerTextLines,omitempty"`
	Lines              []Line     `json:"lines"`
}

// PropagateAccounting copies the accounting block of the first entry to
// every later entry that lacks one. Only consumption orders with at
// least two entries propagate; fields not matching the propagated type
// are cleared on the receiving entries, and an empty gl account is
// back-filled from the source.
func PropagateAccounting(materialType checkout.MaterialType, entries []*cart.Entry) {
	if materialType != checkout.MaterialConsumption || len(entries) < 2 {
		return
	}
	src := entries[0]
	if !src.HasCompleteAccounting() {
		return
	}
	for _, entry := range entries[1:] {
		if !entry.HasCompleteAccounting() {
			entry.SetAccounting(src.AccountType, src.AccountingValue())
		}
		if entry.GLAccount == "" {
			entry.GLAccount = src.GLAccount
		}
	}
}

// Build assembles the order-create request from the draft header and
// the cart entries. Accounting propagation runs first and is visible on
// the passed entries; everything else is a pure mapping.
func Build(draft *checkout.Draft, entries []*cart.Entry) *Request {
	PropagateAccounting(draft.MaterialType, entries)

	req := &Request{
		OrderType:          orderTypeCode(draft.MaterialType),
		InvestmentType:     investmentTypeCode(draft.InvestmentType),
		Classification:     classificationCode(draft),
		SustainabilityFlag: sustainabilityCode(draft.Sustainability),
		Sigma:              sigmaOrDefault(draft.Sigma),
		Plant:              draft.Plant,
		HeadCostCenter:     draft.HeadCostCenter,
		HeaderTextLines:    headerTextLines(draft),
		Lines:              make([]Line, 0, len(entries)),
	}

	for _, entry := range entries {
		line := Line{
			ItemID:             entry.ID,
			Description:        entry.Description,
			Quantity:           entry.Quantity,
			Unit:               entry.Unit,
			MaterialGroup:      entry.MaterialGroup,
			Plant:              draft.Plant,
			DesiredDate:        wireDate(entry.DesiredDate),
			ExternalMaterialNo: entry.ExternalMaterialNo,
			AccountTypeCode:    accountTypeCodes[entry.AccountType],
			AccountValue:       entry.AccountingValue(),
			GLAccount:          entry.GLAccount,
			SupplierID:         entry.SupplierID,
			PurchasingOrg:      draft.PurchasingOrg,
			PurchasingGroup:    draft.PurchasingGroup,
			Price:              entry.UnitPrice,
			Currency:           entry.Currency,
			Receiver:           strings.ToUpper(strings.TrimSpace(entry.Receiver)),
		}
		if entry.IsFreeText() && entry.FreeTextNote != "" {
			line.TextLines = asTextLines(TextIDNote, entry.FreeTextNote)
		}
		req.Lines = append(req.Lines, line)
	}
	return req
}

func headerTextLines(draft *checkout.Draft) []TextLine {
	var out []TextLine
	out = append(out, asTextLines(TextIDNote, draft.InternalNote)...)

	contractWanted := draft.GoodsReceiptExpected == cart.TriYes &&
		draft.ContractReference == cart.TriYes &&
		draft.ContractNumber != ""
	if contractWanted {
		out = append(out, asTextLines(TextIDContract, draft.ContractNumber)...)
	}
	return out
}

func asTextLines(textID, text string) []TextLine {
	lines := textblock.Wrap(text)
	if len(lines) == 0 {
		return nil
	}
	out := make([]TextLine, len(lines))
	for i, line := range lines {
		out[i] = TextLine{TextID: textID, Line: line}
	}
	return out
}

func orderTypeCode(materialType checkout.MaterialType) string {
	if materialType == checkout.MaterialInvestment {
		return OrderTypeInvestment
	}
	return OrderTypeConsumption
}

func investmentTypeCode(code string) string {
	if strings.EqualFold(code, checkout.InvestmentTypeNone) {
		return ""
	}
	return code
}

func classificationCode(draft *checkout.Draft) string {
	if draft.HasClassification(checkout.TagNone) {
		return ""
	}
	var b strings.Builder
	for _, tag := range classificationOrder {
		if draft.HasClassification(tag) {
			b.WriteString(string(tag))
		}
	}
	return b.String()
}

func sustainabilityCode(flag cart.TriState) string {
	if flag == cart.TriYes {
		return SustainabilityFlag
	}
	return ""
}

func sigmaOrDefault(sigma string) string {
	if sigma == "" {
		return checkout.DefaultSigma
	}
	return sigma
}

// wireDate converts the entry date to the 8-digit wire form, or empty
// when absent or unreadable.
func wireDate(date string) string {
	if date == "" {
		return ""
	}
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return ""
	}
	return t.Format(wireDateLayout)
}
