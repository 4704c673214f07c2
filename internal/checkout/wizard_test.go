package checkout

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/procurehub/webshop-backend/internal/cart"
	"github.com/procurehub/webshop-backend/pkg/docstore"
)

func completeDraft() *Draft {
	return &Draft{
		MaterialType:         MaterialConsumption,
		Sustainability:       cart.TriNo,
		GoodsReceiptExpected: cart.TriYes,
		ContractReference:    cart.TriNo,
		Sigma:                "FG00",
		Plant:                "1000",
		InvestmentType:       InvestmentTypeNone,
		Classification:       []ClassificationTag{TagA},
	}
}

func completeEntry(id string) cart.Entry {
	e := cart.Entry{
		ID:                   id,
		Quantity:             1,
		Receiver:             "jdoe",
		MaterialGroup:        "MG01",
		GLAccount:            "400000",
		GoodsReceiptExpected: cart.TriYes,
	}
	e.SetAccounting(cart.AccountGeneralLedger, "CC1")
	return e
}

func TestValidateHeadAggregatesAllProblems(t *testing.T) {
	t.Parallel()
	err := ValidateHead(NewDraft(), nil)
	if err == nil {
		t.Fatal("empty draft must fail")
	}
	msg := err.Error()
	for _, want := range []string{"goods receipt", "material type", "investment type", "classification", "plant", "sustainability"} {
		if !strings.Contains(msg, want) {
			t.Errorf("aggregated error missing %q: %s", want, msg)
		}
	}
}

func TestValidateHeadContractChain(t *testing.T) {
	t.Parallel()
	draft := completeDraft()
	draft.ContractReference = cart.TriYes
	draft.ContractNumber = ""
	entries := []cart.Entry{completeEntry("A")}

	err := ValidateHead(draft, entries)
	if err == nil || !strings.Contains(err.Error(), "contract number") {
		t.Fatalf("expected contract number error, got %v", err)
	}

	draft.ContractNumber = "K-100"
	if err := ValidateHead(draft, entries); err != nil {
		t.Fatalf("complete draft must pass: %v", err)
	}

	// With goods receipt answered no, the contract chain is not required.
	draft2 := completeDraft()
	draft2.GoodsReceiptExpected = cart.TriNo
	draft2.ContractReference = cart.TriUnset
	draft2.Sigma = ""
	if err := ValidateHead(draft2, entries); err != nil {
		t.Fatalf("contract chain must not apply without goods receipt: %v", err)
	}
}

func TestValidateHeadInvestmentNeedsCostCenter(t *testing.T) {
	t.Parallel()
	draft := completeDraft()
	draft.MaterialType = MaterialInvestment
	err := ValidateHead(draft, nil)
	if err == nil || !strings.Contains(err.Error(), "cost center") {
		t.Fatalf("expected cost center error, got %v", err)
	}

	draft.HeadCostCenter = "CC9"
	if err := ValidateHead(draft, nil); err != nil {
		t.Fatalf("investment draft with cost center must pass: %v", err)
	}
}

func TestValidateHeadConsumptionNeedsFirstEntryAccounting(t *testing.T) {
	t.Parallel()
	draft := completeDraft()
	bare := cart.Entry{ID: "A", Quantity: 1}
	err := ValidateHead(draft, []cart.Entry{bare})
	if err == nil || !strings.Contains(err.Error(), "accounting") {
		t.Fatalf("expected accounting error, got %v", err)
	}
}

func TestValidateFormAlwaysPasses(t *testing.T) {
	t.Parallel()
	if err := ValidateForm(NewDraft()); err != nil {
		t.Fatalf("form gate must pass: %v", err)
	}
}

func TestValidateCartChecksEveryEntry(t *testing.T) {
	t.Parallel()
	if err := ValidateCart(nil); err == nil || !strings.Contains(err.Error(), "empty") {
		t.Fatalf("empty cart must fail, got %v", err)
	}

	good := completeEntry("A")
	bad := cart.Entry{ID: "B", Quantity: 1}
	err := ValidateCart([]cart.Entry{good, bad})
	if err == nil {
		t.Fatal("incomplete entry must fail")
	}
	for _, want := range []string{"receiver", "accounting", "material group", "gl account", "goods receipt"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("missing %q in %s", want, err)
		}
	}
	if strings.Contains(err.Error(), "entry A") {
		t.Errorf("complete entry must not be flagged: %s", err)
	}

	if err := ValidateCart([]cart.Entry{good}); err != nil {
		t.Fatalf("complete cart must pass: %v", err)
	}
}

func TestWizardArmsValidationOnlyAfterCartFailure(t *testing.T) {
	t.Parallel()
	w := NewWizard()
	*w.Draft() = *completeDraft()
	entries := []cart.Entry{completeEntry("A")}

	if err := w.Advance(entries, "2026-09-06", nil); err != nil {
		t.Fatalf("head: %v", err)
	}
	if w.ValidationArmed() {
		t.Fatal("head pass must not arm validation")
	}
	if err := w.Advance(entries, "2026-09-06", nil); err != nil {
		t.Fatalf("form: %v", err)
	}
	if w.CurrentStep() != StepCart {
		t.Fatalf("step = %q", w.CurrentStep())
	}

	incomplete := []cart.Entry{{ID: "B", Quantity: 1}}
	if err := w.Advance(incomplete, "2026-09-06", nil); err == nil {
		t.Fatal("incomplete cart must fail")
	}
	if !w.ValidationArmed() {
		t.Fatal("cart failure must arm validation")
	}
	if w.ReadyToSubmit() {
		t.Fatal("flow must not be submittable after a cart failure")
	}

	if err := w.Advance(entries, "2026-09-06", nil); err != nil {
		t.Fatalf("cart retry: %v", err)
	}
	if !w.ReadyToSubmit() {
		t.Fatal("flow should be submittable after all steps pass")
	}
}

func TestWizardHeadFailureBlocksAdvance(t *testing.T) {
	t.Parallel()
	w := NewWizard()
	if err := w.Advance(nil, "2026-09-06", nil); err == nil {
		t.Fatal("empty draft must not advance")
	}
	if w.CurrentStep() != StepHead {
		t.Fatalf("step = %q, want head", w.CurrentStep())
	}
	if w.ValidationArmed() {
		t.Fatal("head failure must not arm validation")
	}
}

func TestAdvancePastFormAppliesDefaultDesiredDate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mgr, err := cart.NewManager(docstore.NewMemoryStore(), nil)
	if err != nil {
		t.Fatalf("cart manager: %v", err)
	}
	svc, err := NewService(mgr)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	fixed := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	svc.(*service).now = func() time.Time { return fixed }

	c, _ := mgr.Cart(ctx, "jdoe")
	withDate := completeEntry("A")
	withDate.DesiredDate = "2026-01-01"
	without := completeEntry("B")
	c.MergeIncoming([]*cart.Entry{&withDate, &without})

	w, _ := svc.Enter(ctx, "jdoe")
	*w.Draft() = *completeDraft()

	if _, err := svc.Advance(ctx, "jdoe"); err != nil {
		t.Fatalf("head: %v", err)
	}
	if _, err := svc.Advance(ctx, "jdoe"); err != nil {
		t.Fatalf("form: %v", err)
	}

	entries := c.Entries()
	if entries[0].DesiredDate != "2026-01-01" {
		t.Fatalf("existing date overwritten: %q", entries[0].DesiredDate)
	}
	if entries[1].DesiredDate != "2026-09-06" {
		t.Fatalf("default date = %q, want today+7", entries[1].DesiredDate)
	}
}

func TestAdvancePrefillsReceiverFromOwner(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mgr, err := cart.NewManager(docstore.NewMemoryStore(), nil)
	if err != nil {
		t.Fatalf("cart manager: %v", err)
	}
	svc, err := NewService(mgr)
	if err != nil {
		t.Fatalf("service: %v", err)
	}

	c, _ := mgr.Cart(ctx, "jdoe")
	kept := completeEntry("A")
	kept.Receiver = "alice"
	blank := completeEntry("B")
	blank.Receiver = ""
	c.MergeIncoming([]*cart.Entry{&kept, &blank})

	w, _ := svc.Enter(ctx, "jdoe")
	*w.Draft() = *completeDraft()

	if _, err := svc.Advance(ctx, "jdoe"); err != nil {
		t.Fatalf("head: %v", err)
	}

	entries := c.Entries()
	if entries[0].Receiver != "alice" {
		t.Fatalf("existing receiver overwritten: %q", entries[0].Receiver)
	}
	if entries[1].Receiver != "jdoe" {
		t.Fatalf("empty receiver not prefilled: %q", entries[1].Receiver)
	}
}

func TestEnterResetsDraft(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mgr, err := cart.NewManager(docstore.NewMemoryStore(), nil)
	if err != nil {
		t.Fatalf("cart manager: %v", err)
	}
	svc, err := NewService(mgr)
	if err != nil {
		t.Fatalf("service: %v", err)
	}

	w1, _ := svc.Enter(ctx, "jdoe")
	w1.Draft().Plant = "1000"

	w2, _ := svc.Enter(ctx, "jdoe")
	if w2.Draft().Plant != "" {
		t.Fatal("re-entering the flow must reset the draft")
	}
	if w2.CurrentStep() != StepHead {
		t.Fatalf("step = %q, want head", w2.CurrentStep())
	}
}

func TestAddAttachmentSniffsContentType(t *testing.T) {
	t.Parallel()
	draft := NewDraft()
	att := draft.AddAttachment("ref-1", " spec.pdf ", 1024, []byte("%PDF-1.7\n"))
	if att.UploadState != UploadPending {
		t.Fatalf("state = %q", att.UploadState)
	}
	if att.FileName != "spec.pdf" {
		t.Fatalf("file name = %q", att.FileName)
	}
	if att.ContentType != "application/pdf" {
		t.Fatalf("content type = %q", att.ContentType)
	}

	if !draft.RemoveAttachment(0) {
		t.Fatal("remove failed")
	}
	if draft.RemoveAttachment(0) {
		t.Fatal("remove of absent index must fail")
	}
}
