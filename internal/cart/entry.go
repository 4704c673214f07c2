package cart

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FreeTextCategory marks lines that were typed in by hand rather than
// picked from a catalog. Free-text lines carry their own note text into
// the order document.
const FreeTextCategory = "FREETEXT"

// FreeTextIDPrefix prefixes generated ids of free-text lines.
const FreeTextIDPrefix = "FREETEXT-"

// ReorderIDPrefix prefixes generated ids of lines re-added from a
// previous requisition.
const ReorderIDPrefix = "BANF-"

// AccountType selects which accounting sub-field carries the entry's
// assignment. Exactly one sub-field is populated per type.
type AccountType string

const (
	AccountNone          AccountType = ""
	AccountGeneralLedger AccountType = "generalLedger"
	AccountInternalOrder AccountType = "internalOrder"
	AccountWBSElement    AccountType = "wbsElement"
)

// Valid reports whether the type is one of the known assignments.
func (t AccountType) Valid() bool {
	switch t {
	case AccountGeneralLedger, AccountInternalOrder, AccountWBSElement:
		return true
	}
	return false
}

// TriState is a yes/no flag that can also be unset. The distinction
// matters for validation: unset is an error, "no" is a valid answer.
type TriState string

const (
	TriUnset TriState = ""
	TriYes   TriState = "yes"
	TriNo    TriState = "no"
)

// Defined reports whether the flag has been answered either way.
func (t TriState) Defined() bool {
	return t == TriYes || t == TriNo
}

// ItemStatus reflects catalog availability of a line at add time.
type ItemStatus string

const (
	StatusAvailable    ItemStatus = "available"
	StatusLimited      ItemStatus = "limited"
	StatusDiscontinued ItemStatus = "discontinued"
)

// FilterByStatus splits incoming entries by product availability.
// Discontinued products are always rejected; limited products pass only
// once the caller has confirmed the restricted availability.
func FilterByStatus(entries []*Entry, allowLimited bool) (ok []*Entry, rejected []Entry) {
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		switch entry.Status {
		case StatusDiscontinued:
			rejected = append(rejected, *entry)
		case StatusLimited:
			if allowLimited {
				ok = append(ok, entry)
			} else {
				rejected = append(rejected, *entry)
			}
		default:
			ok = append(ok, entry)
		}
	}
	return ok, rejected
}

// Entry is one purchasable line in the cart or the saved-for-later list.
type Entry struct {
	ID          string     `json:"id"`
	CategoryID  string     `json:"categoryId,omitempty"`
	Description string     `json:"description,omitempty"`
	Quantity    int        `json:"quantity"`
	Unit        string     `json:"unit,omitempty"`
	Currency    string     `json:"currency,omitempty"`

	UnitPrice decimal.Decimal `json:"unitPrice"`

	SupplierID         string `json:"supplierId,omitempty"`
	ExternalMaterialNo string `json:"externalMaterialNo,omitempty"`
	MaterialGroup      string `json:"materialGroup,omitempty"`

	AccountType   AccountType `json:"accountType,omitempty"`
	CostCenter    string      `json:"costCenter,omitempty"`
	InternalOrder string      `json:"internalOrder,omitempty"`
	WBSElement    string      `json:"wbsElement,omitempty"`
	GLAccount     string      `json:"glAccount,omitempty"`

	Receiver             string   `json:"receiver,omitempty"`
	DesiredDate          string   `json:"desiredDate,omitempty"`
	GoodsReceiptExpected TriState `json:"goodsReceiptExpected,omitempty"`

	FreeTextNote string     `json:"freeTextNote,omitempty"`
	Status       ItemStatus `json:"status,omitempty"`
}

// IsFreeText reports whether the line was typed in by hand.
func (e *Entry) IsFreeText() bool {
	return e.CategoryID == FreeTextCategory || strings.HasPrefix(e.ID, FreeTextIDPrefix)
}

// AccountingValue returns the sub-field matching the entry's account type.
func (e *Entry) AccountingValue() string {
	switch e.AccountType {
	case AccountGeneralLedger:
		return e.CostCenter
	case AccountInternalOrder:
		return e.InternalOrder
	case AccountWBSElement:
		return e.WBSElement
	}
	return ""
}

// SetAccounting assigns the account type and its sub-field, clearing
// the sub-fields of the other two types.
func (e *Entry) SetAccounting(accountType AccountType, value string) {
	e.AccountType = accountType
	e.CostCenter = ""
	e.InternalOrder = ""
	e.WBSElement = ""
	switch accountType {
	case AccountGeneralLedger:
		e.CostCenter = value
	case AccountInternalOrder:
		e.InternalOrder = value
	case AccountWBSElement:
		e.WBSElement = value
	}
}

// HasCompleteAccounting reports whether the accounting block is usable
// for order assembly: a valid type with its matching value present.
func (e *Entry) HasCompleteAccounting() bool {
	return e.AccountType.Valid() && e.AccountingValue() != ""
}

// mergeFrom adds the incoming quantity and back-fills fields that are
// still empty on the receiver. Existing values are never overwritten.
func (e *Entry) mergeFrom(in *Entry) {
	e.Quantity += in.Quantity

	if e.CategoryID == "" {
		e.CategoryID = in.CategoryID
	}
	if e.Description == "" {
		e.Description = in.Description
	}
	if e.Unit == "" {
		e.Unit = in.Unit
	}
	if e.Currency == "" {
		e.Currency = in.Currency
	}
	if e.UnitPrice.IsZero() {
		e.UnitPrice = in.UnitPrice
	}
	if e.SupplierID == "" {
		e.SupplierID = in.SupplierID
	}
	if e.ExternalMaterialNo == "" {
		e.ExternalMaterialNo = in.ExternalMaterialNo
	}
	if e.MaterialGroup == "" {
		e.MaterialGroup = in.MaterialGroup
	}
	if e.AccountType == AccountNone && in.AccountType != AccountNone {
		e.SetAccounting(in.AccountType, in.AccountingValue())
	}
	if e.GLAccount == "" {
		e.GLAccount = in.GLAccount
	}
	if e.Receiver == "" {
		e.Receiver = in.Receiver
	}
	if e.DesiredDate == "" {
		e.DesiredDate = in.DesiredDate
	}
	if e.GoodsReceiptExpected == TriUnset {
		e.GoodsReceiptExpected = in.GoodsReceiptExpected
	}
	if e.FreeTextNote == "" {
		e.FreeTextNote = in.FreeTextNote
	}
	if e.Status == "" {
		e.Status = in.Status
	}
}

// clone returns a deep copy so callers can hand out snapshots without
// aliasing the cart's own state.
func (e *Entry) clone() *Entry {
	cp := *e
	return &cp
}
