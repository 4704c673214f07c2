package checkout

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/procurehub/webshop-backend/internal/cart"
	pkgerrors "github.com/procurehub/webshop-backend/pkg/errors"
)

// Step is one stop of the checkout wizard. Transitions are forward-only
// per user action; re-entering the flow resets to StepHead.
type Step string

const (
	StepHead Step = "head"
	StepForm Step = "form"
	StepCart Step = "cart"
)

// Wizard is the multi-step validation gate over one owner's draft. It
// is not safe for concurrent use; the surrounding flow serializes
// access per owner.
type Wizard struct {
	draft *Draft

	current         Step
	validationArmed bool
	stepValid       map[Step]bool
}

// NewWizard starts a fresh flow with a clean draft at the head step.
func NewWizard() *Wizard {
	return &Wizard{
		draft:     NewDraft(),
		current:   StepHead,
		stepValid: make(map[Step]bool),
	}
}

// Draft exposes the mutable draft the steps validate.
func (w *Wizard) Draft() *Draft { return w.draft }

// CurrentStep returns the step the flow is on.
func (w *Wizard) CurrentStep() Step { return w.current }

// ValidationArmed reports whether field-level error indicators render
// live. It arms only after the cart step's first failed attempt.
func (w *Wizard) ValidationArmed() bool { return w.validationArmed }

// StepValid reports whether the step has passed validation this flow.
func (w *Wizard) StepValid(step Step) bool { return w.stepValid[step] }

// Advance validates the current step against the cart and moves
// forward on success. Failing validation keeps the flow where it is and
// returns every missing-field message at once.
func (w *Wizard) Advance(entries []cart.Entry, defaultDesiredDate string, c *cart.Cart) error {
	switch w.current {
	case StepHead:
		if err := ValidateHead(w.draft, entries); err != nil {
			w.stepValid[StepHead] = false
			return err
		}
		w.stepValid[StepHead] = true
		w.current = StepForm
		return nil

	case StepForm:
		if err := ValidateForm(w.draft); err != nil {
			w.stepValid[StepForm] = false
			return err
		}
		w.stepValid[StepForm] = true
		if c != nil {
			c.ApplyDefaultDesiredDate(defaultDesiredDate)
		}
		w.current = StepCart
		return nil

	case StepCart:
		if err := ValidateCart(entries); err != nil {
			w.stepValid[StepCart] = false
			w.validationArmed = true
			return err
		}
		w.stepValid[StepCart] = true
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("unknown wizard step %q", w.current))
}

// ReadyToSubmit reports whether every step has passed.
func (w *Wizard) ReadyToSubmit() bool {
	return w.stepValid[StepHead] && w.stepValid[StepForm] && w.stepValid[StepCart]
}

// ValidateHead checks the draft header. All problems are reported
// together in one aggregated error.
func ValidateHead(draft *Draft, entries []cart.Entry) error {
	var errs error

	if !draft.GoodsReceiptExpected.Defined() {
		errs = multierr.Append(errs, fmt.Errorf("goods receipt expected must be answered"))
	}
	if draft.GoodsReceiptExpected == cart.TriYes {
		if !draft.ContractReference.Defined() {
			errs = multierr.Append(errs, fmt.Errorf("contract reference must be answered"))
		}
		if draft.ContractReference == cart.TriYes && draft.ContractNumber == "" {
			errs = multierr.Append(errs, fmt.Errorf("contract number is required"))
		}
		if draft.Sigma == "" {
			errs = multierr.Append(errs, fmt.Errorf("sigma code is required"))
		}
	}

	if !draft.MaterialType.Valid() {
		errs = multierr.Append(errs, fmt.Errorf("material type is required"))
	}
	if draft.MaterialType == MaterialInvestment && draft.HeadCostCenter == "" {
		errs = multierr.Append(errs, fmt.Errorf("cost center is required for investments"))
	}
	if draft.InvestmentType == "" {
		errs = multierr.Append(errs, fmt.Errorf("investment type is required"))
	}
	if len(draft.Classification) == 0 {
		errs = multierr.Append(errs, fmt.Errorf("classification is required"))
	}
	if draft.Plant == "" {
		errs = multierr.Append(errs, fmt.Errorf("plant is required"))
	}
	if !draft.Sustainability.Defined() {
		errs = multierr.Append(errs, fmt.Errorf("sustainability must be answered"))
	}

	if draft.MaterialType == MaterialConsumption {
		if len(entries) == 0 || !entries[0].HasCompleteAccounting() {
			errs = multierr.Append(errs, fmt.Errorf("first cart entry needs a complete accounting block for consumption orders"))
		}
	}

	if errs != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, errs, "order header is incomplete")
	}
	return nil
}

// ValidateForm is a deliberate no-op gate. The step exists so later
// field checks can invalidate it without reshaping the flow.
func ValidateForm(draft *Draft) error {
	return nil
}

// ValidateCart checks every entry for the fields order assembly needs.
func ValidateCart(entries []cart.Entry) error {
	var errs error

	if len(entries) == 0 {
		errs = multierr.Append(errs, fmt.Errorf("cart is empty"))
	}
	for _, entry := range entries {
		if entry.Receiver == "" {
			errs = multierr.Append(errs, fmt.Errorf("entry %s: receiver is required", entry.ID))
		}
		if !entry.HasCompleteAccounting() {
			errs = multierr.Append(errs, fmt.Errorf("entry %s: accounting type and value are required", entry.ID))
		}
		if entry.MaterialGroup == "" {
			errs = multierr.Append(errs, fmt.Errorf("entry %s: material group is required", entry.ID))
		}
		if entry.GLAccount == "" {
			errs = multierr.Append(errs, fmt.Errorf("entry %s: gl account is required", entry.ID))
		}
		if !entry.GoodsReceiptExpected.Defined() {
			errs = multierr.Append(errs, fmt.Errorf("entry %s: goods receipt expected must be answered", entry.ID))
		}
	}

	if errs != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, errs, "cart entries are incomplete")
	}
	return nil
}
