package cart

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const externalMaterialNoMax = 35

// unitAliases maps external piece-equivalent unit codes onto the
// canonical unit vocabulary. Unknown codes pass through unchanged.
var unitAliases = map[string]string{
	"PCE": "ST",
	"PC":  "ST",
	"PCS": "ST",
	"EA":  "ST",
}

// RawItem is the loose shape items arrive in from catalog rows,
// punch-out return payloads, and history re-adds. Field spellings vary
// by source; numeric fields may arrive as strings.
type RawItem struct {
	ArticleID string `json:"ZmmWebsArtikelId"`
	ProduktID string `json:"Produktid"`
	ProductID string `json:"ProductId"`
	PlainID   string `json:"id"`

	Description   string     `json:"Description"`
	Quantity      flexValue  `json:"Quantity"`
	Unit          string     `json:"Unit"`
	Currency      string     `json:"Currency"`
	Price         flexValue  `json:"Price"`
	CategoryID    string     `json:"CategoryId"`
	MaterialGroup string     `json:"MaterialGroup"`
	Status        ItemStatus `json:"Status"`

	Lifnr      string `json:"Lifnr"`
	SupplierID string `json:"SupplierId"`
	VendorNo   string `json:"vendorNo"`

	ExternalMaterialNo string `json:"ExternalMaterialNo"`
	MatNr              string `json:"MatNr"`
}

// NormalizeContext carries ambient defaults for fields the raw item may
// not provide itself.
type NormalizeContext struct {
	// DefaultSupplierID is filled from a punch-out session so returned
	// lines inherit the supplier of the catalog that produced them.
	DefaultSupplierID string
	// DefaultReceiver pre-fills the receiving user on new lines.
	DefaultReceiver string
}

// Normalize converts one raw item into a canonical Entry. The only
// rejection condition is the absence of a usable id; everything else is
// coerced or defaulted, never an error.
func Normalize(raw RawItem, nctx NormalizeContext) (*Entry, bool) {
	id := firstNonEmpty(raw.ArticleID, raw.ProduktID, raw.ProductID, raw.PlainID)
	if id == "" {
		return nil, false
	}

	supplier := firstNonEmpty(raw.Lifnr, raw.SupplierID, raw.VendorNo)
	if supplier == "" {
		supplier = strings.TrimSpace(nctx.DefaultSupplierID)
	}

	matNo := truncateRunes(firstNonEmpty(raw.ExternalMaterialNo, raw.MatNr), externalMaterialNoMax)

	return &Entry{
		ID:                 id,
		CategoryID:         strings.TrimSpace(raw.CategoryID),
		Description:        strings.TrimSpace(raw.Description),
		Quantity:           parseQuantity(string(raw.Quantity)),
		Unit:               normalizeUnit(raw.Unit),
		Currency:           strings.TrimSpace(raw.Currency),
		UnitPrice:          parsePrice(string(raw.Price)),
		SupplierID:         supplier,
		ExternalMaterialNo: matNo,
		MaterialGroup:      strings.TrimSpace(raw.MaterialGroup),
		Receiver:           strings.TrimSpace(nctx.DefaultReceiver),
		Status:             raw.Status,
	}, true
}

// FreeTextInput is what the free-text entry dialog collects.
type FreeTextInput struct {
	Description        string
	Quantity           string
	Unit               string
	Price              string
	Currency           string
	MaterialGroup      string
	SupplierID         string
	ExternalMaterialNo string
	Note               string
}

// NewFreeTextEntry builds a hand-typed line with a generated id. The
// timestamp keeps repeated submissions of the same description distinct.
func NewFreeTextEntry(in FreeTextInput, nctx NormalizeContext, now time.Time) *Entry {
	supplier := strings.TrimSpace(in.SupplierID)
	if supplier == "" {
		supplier = strings.TrimSpace(nctx.DefaultSupplierID)
	}
	return &Entry{
		ID:                 fmt.Sprintf("%s%d", FreeTextIDPrefix, now.UnixMilli()),
		CategoryID:         FreeTextCategory,
		Description:        strings.TrimSpace(in.Description),
		Quantity:           parseQuantity(in.Quantity),
		Unit:               normalizeUnit(in.Unit),
		Currency:           strings.TrimSpace(in.Currency),
		UnitPrice:          parsePrice(in.Price),
		SupplierID:         supplier,
		ExternalMaterialNo: truncateRunes(strings.TrimSpace(in.ExternalMaterialNo), externalMaterialNoMax),
		MaterialGroup:      strings.TrimSpace(in.MaterialGroup),
		FreeTextNote:       strings.TrimSpace(in.Note),
		Receiver:           strings.TrimSpace(nctx.DefaultReceiver),
		Status:             StatusAvailable,
	}
}

// NewReorderEntry derives a line from a previous requisition item. The
// id encodes the requisition and line so re-adding the same history row
// merges instead of duplicating.
func NewReorderEntry(requisitionID, lineNo string, raw RawItem, nctx NormalizeContext) (*Entry, bool) {
	entry, ok := Normalize(raw, nctx)
	if !ok {
		entry = &Entry{Quantity: 1, Status: StatusAvailable}
	}
	entry.ID = fmt.Sprintf("%s%s-%s", ReorderIDPrefix, strings.TrimSpace(requisitionID), strings.TrimSpace(lineNo))
	return entry, entry.ID != ReorderIDPrefix+"-"
}

// flexValue accepts JSON strings and numbers alike and keeps the raw
// textual form for later parsing.
type flexValue string

func (f *flexValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexValue(n.String())
		return nil
	}
	// Booleans, nulls and similar are useless here; treat as absent.
	*f = ""
	return nil
}

func parseQuantity(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 1
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 {
			return 1
		}
		return n
	}
	if d, err := decimal.NewFromString(normalizeDecimalSeparators(s)); err == nil {
		n := int(d.IntPart())
		if n < 1 {
			return 1
		}
		return n
	}
	return 1
}

func parsePrice(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(normalizeDecimalSeparators(s))
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// normalizeDecimalSeparators reduces locale-formatted numbers to the
// plain dot-decimal form. With both separators present the rightmost
// one is the decimal mark; a lone separator is a decimal mark when at
// most two digits follow it, otherwise it is a grouping separator.
func normalizeDecimalSeparators(s string) string {
	lastComma := strings.LastIndexByte(s, ',')
	lastDot := strings.LastIndexByte(s, '.')

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") == 1 && len(s)-lastComma-1 <= 2 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastDot >= 0:
		if !(strings.Count(s, ".") == 1 && len(s)-lastDot-1 <= 2) {
			s = strings.ReplaceAll(s, ".", "")
		}
	}
	return s
}

func normalizeUnit(unit string) string {
	unit = strings.TrimSpace(unit)
	if canonical, ok := unitAliases[strings.ToUpper(unit)]; ok {
		return canonical
	}
	return unit
}

// truncateRunes cuts s to at most max characters without splitting a
// multi-byte rune.
func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
