package checkout

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/procurehub/webshop-backend/internal/cart"
)

// MaterialType decides the order type of the requisition.
type MaterialType string

const (
	MaterialUnset       MaterialType = ""
	MaterialConsumption MaterialType = "consumption"
	MaterialInvestment  MaterialType = "investment"
)

// Valid reports whether the material type has been chosen.
func (m MaterialType) Valid() bool {
	return m == MaterialConsumption || m == MaterialInvestment
}

// ClassificationTag is one requisition classification marker. The
// sentinel TagNone voids the whole classification.
type ClassificationTag string

const (
	TagA    ClassificationTag = "A"
	TagG    ClassificationTag = "G"
	TagI    ClassificationTag = "I"
	TagT    ClassificationTag = "T"
	TagNone ClassificationTag = "NONE"
)

// InvestmentTypeNone is the sentinel for "no investment type", mapped
// to an empty code during order assembly.
const InvestmentTypeNone = "none"

// DefaultSigma is the fallback sigma code applied when the draft is
// assembled without one.
const DefaultSigma = "FG00"

// UploadState tracks one attachment through the sequential upload.
type UploadState string

const (
	UploadPending   UploadState = "pending"
	UploadUploading UploadState = "uploading"
	UploadDone      UploadState = "done"
	UploadError     UploadState = "error"
)

// Attachment is one file chosen for upload alongside the order.
type Attachment struct {
	FileRef      string      `json:"fileRef"`
	FileName     string      `json:"fileName"`
	SizeBytes    int64       `json:"sizeBytes"`
	ContentType  string      `json:"contentType"`
	UploadState  UploadState `json:"uploadState"`
	RemoteDocID  string      `json:"remoteDocId,omitempty"`
	ErrorMessage string      `json:"errorMessage,omitempty"`
}

// Draft is the header state of the in-progress order, disjoint from the
// cart entry list.
type Draft struct {
	MaterialType         MaterialType        `json:"materialType"`
	Sustainability       cart.TriState       `json:"sustainability"`
	GoodsReceiptExpected cart.TriState       `json:"goodsReceiptExpected"`
	ContractReference    cart.TriState       `json:"contractReference"`
	ContractNumber       string              `json:"contractNumber"`
	Sigma                string              `json:"sigma"`
	Plant                string              `json:"plant"`
	PurchasingOrg        string              `json:"purchasingOrg"`
	PurchasingGroup      string              `json:"purchasingGroup"`
	InvestmentType       string              `json:"investmentType"`
	HeadCostCenter       string              `json:"headCostCenter"`
	Classification       []ClassificationTag `json:"classification"`
	InternalNote         string              `json:"internalNote"`
	Attachments          []*Attachment       `json:"attachments"`
}

// NewDraft returns a draft with everything unset.
func NewDraft() *Draft {
	return &Draft{}
}

// AddAttachment registers a chosen file, sniffing its content type from
// the leading bytes. The attachment starts out pending.
func (d *Draft) AddAttachment(fileRef, fileName string, sizeBytes int64, head []byte) *Attachment {
	att := &Attachment{
		FileRef:     fileRef,
		FileName:    strings.TrimSpace(fileName),
		SizeBytes:   sizeBytes,
		ContentType: mimetype.Detect(head).String(),
		UploadState: UploadPending,
	}
	d.Attachments = append(d.Attachments, att)
	return att
}

// RemoveAttachment drops the attachment at the given index.
func (d *Draft) RemoveAttachment(index int) bool {
	if index < 0 || index >= len(d.Attachments) {
		return false
	}
	d.Attachments = append(d.Attachments[:index], d.Attachments[index+1:]...)
	return true
}

// HasClassification reports whether the tag is set on the draft.
func (d *Draft) HasClassification(tag ClassificationTag) bool {
	for _, t := range d.Classification {
		if t == tag {
			return true
		}
	}
	return false
}
