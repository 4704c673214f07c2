package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/procurehub/webshop-backend/internal/cart"
	pkgerrors "github.com/procurehub/webshop-backend/pkg/errors"
)

// desiredDateOffsetDays is added to today when an entry reaches the
// cart step without a desired date.
const desiredDateOffsetDays = 7

const dateLayout = "2006-01-02"

type cartAccess interface {
	Cart(ctx context.Context, owner string) (*cart.Cart, error)
}

// Service owns one checkout flow per owner. Entering the flow resets
// the draft; all wizard access for one owner is serialized.
type Service interface {
	Enter(ctx context.Context, owner string) (*Wizard, error)
	Flow(ctx context.Context, owner string) (*Wizard, error)
	Advance(ctx context.Context, owner string) (Step, error)
	UpdateDraft(ctx context.Context, owner string, patch DraftPatch) (*Draft, error)
	AddAttachment(ctx context.Context, owner, fileRef, fileName string, sizeBytes int64, head []byte) (*Attachment, error)
	RemoveAttachment(ctx context.Context, owner string, index int) (*Attachment, error)
}

type service struct {
	carts cartAccess
	now   func() time.Time

	mu    sync.Mutex
	flows map[string]*Wizard
}

// NewService builds the checkout service over the cart manager.
func NewService(carts cartAccess) (Service, error) {
	if carts == nil {
		return nil, fmt.Errorf("cart manager required")
	}
	return &service{
		carts: carts,
		now:   time.Now,
		flows: make(map[string]*Wizard),
	}, nil
}

// Enter starts a fresh flow, discarding any previous draft and step
// progress.
func (s *service) Enter(ctx context.Context, owner string) (*Wizard, error) {
	if owner == "" {
		return nil, fmt.Errorf("owner required")
	}
	w := NewWizard()
	s.mu.Lock()
	s.flows[owner] = w
	s.mu.Unlock()
	return w, nil
}

// Flow returns the owner's current flow, starting one if necessary.
func (s *service) Flow(ctx context.Context, owner string) (*Wizard, error) {
	if owner == "" {
		return nil, fmt.Errorf("owner required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.flows[owner]; ok {
		return w, nil
	}
	w := NewWizard()
	s.flows[owner] = w
	return w, nil
}

// Advance validates the current step and moves the flow forward,
// returning the step the flow is on afterwards.
func (s *service) Advance(ctx context.Context, owner string) (Step, error) {
	w, err := s.Flow(ctx, owner)
	if err != nil {
		return "", err
	}
	c, err := s.carts.Cart(ctx, owner)
	if err != nil {
		return w.CurrentStep(), err
	}

	defaultDate := s.now().AddDate(0, 0, desiredDateOffsetDays).Format(dateLayout)

	s.mu.Lock()
	defer s.mu.Unlock()
	c.PrefillReceiver(owner)
	if err := w.Advance(c.Entries(), defaultDate, c); err != nil {
		return w.CurrentStep(), err
	}
	return w.CurrentStep(), nil
}

// DraftPatch carries optional draft header updates. Nil fields are left
// alone.
type DraftPatch struct {
	MaterialType         *MaterialType        `json:"materialType"`
	Sustainability       *cart.TriState       `json:"sustainability"`
	GoodsReceiptExpected *cart.TriState       `json:"goodsReceiptExpected"`
	ContractReference    *cart.TriState       `json:"contractReference"`
	ContractNumber       *string              `json:"contractNumber"`
	Sigma                *string              `json:"sigma"`
	Plant                *string              `json:"plant"`
	PurchasingOrg        *string              `json:"purchasingOrg"`
	PurchasingGroup      *string              `json:"purchasingGroup"`
	InvestmentType       *string              `json:"investmentType"`
	HeadCostCenter       *string              `json:"headCostCenter"`
	Classification       *[]ClassificationTag `json:"classification"`
	InternalNote         *string              `json:"internalNote"`
}

// UpdateDraft applies the non-nil patch fields to the owner's draft.
func (s *service) UpdateDraft(ctx context.Context, owner string, patch DraftPatch) (*Draft, error) {
	w, err := s.Flow(ctx, owner)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	d := w.Draft()
	if patch.MaterialType != nil {
		if *patch.MaterialType != MaterialUnset && !patch.MaterialType.Valid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown material type %q", *patch.MaterialType))
		}
		d.MaterialType = *patch.MaterialType
	}
	if patch.Sustainability != nil {
		d.Sustainability = *patch.Sustainability
	}
	if patch.GoodsReceiptExpected != nil {
		d.GoodsReceiptExpected = *patch.GoodsReceiptExpected
	}
	if patch.ContractReference != nil {
		d.ContractReference = *patch.ContractReference
	}
	if patch.ContractNumber != nil {
		d.ContractNumber = *patch.ContractNumber
	}
	if patch.Sigma != nil {
		d.Sigma = *patch.Sigma
	}
	if patch.Plant != nil {
		d.Plant = *patch.Plant
	}
	if patch.PurchasingOrg != nil {
		d.PurchasingOrg = *patch.PurchasingOrg
	}
	if patch.PurchasingGroup != nil {
		d.PurchasingGroup = *patch.PurchasingGroup
	}
	if patch.InvestmentType != nil {
		d.InvestmentType = *patch.InvestmentType
	}
	if patch.HeadCostCenter != nil {
		d.HeadCostCenter = *patch.HeadCostCenter
	}
	if patch.Classification != nil {
		d.Classification = *patch.Classification
	}
	if patch.InternalNote != nil {
		d.InternalNote = *patch.InternalNote
	}
	return d, nil
}

// AddAttachment registers a chosen file on the owner's draft.
func (s *service) AddAttachment(ctx context.Context, owner, fileRef, fileName string, sizeBytes int64, head []byte) (*Attachment, error) {
	w, err := s.Flow(ctx, owner)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return w.Draft().AddAttachment(fileRef, fileName, sizeBytes, head), nil
}

// RemoveAttachment drops the attachment at the given index and returns
// it so the caller can release the staged file.
func (s *service) RemoveAttachment(ctx context.Context, owner string, index int) (*Attachment, error) {
	w, err := s.Flow(ctx, owner)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d := w.Draft()
	if index < 0 || index >= len(d.Attachments) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no attachment at that position")
	}
	att := d.Attachments[index]
	d.RemoveAttachment(index)
	return att, nil
}
