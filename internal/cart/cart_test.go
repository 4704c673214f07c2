package cart

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/procurehub/webshop-backend/pkg/docstore"
)

func entry(id string, qty int) *Entry {
	return &Entry{ID: id, Quantity: qty}
}

func TestMergeIncomingIsIdempotentOnQuantity(t *testing.T) {
	t.Parallel()
	c := NewCart("jdoe")

	c.MergeIncoming([]*Entry{entry("P1", 1)})
	c.MergeIncoming([]*Entry{entry("P1", 1)})

	entries := c.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected one merged entry, got %d", len(entries))
	}
	if entries[0].Quantity != 2 {
		t.Fatalf("expected quantity 2, got %d", entries[0].Quantity)
	}
}

func TestMergeBackFillNeverOverwrites(t *testing.T) {
	t.Parallel()
	c := NewCart("jdoe")
	c.MergeIncoming([]*Entry{{ID: "A", Quantity: 1, Receiver: "alice"}})
	c.MergeIncoming([]*Entry{{ID: "A", Quantity: 1, Receiver: "bob", Unit: "ST"}})

	entries := c.Entries()
	if entries[0].Receiver != "alice" {
		t.Fatalf("existing receiver overwritten: %q", entries[0].Receiver)
	}
	if entries[0].Unit != "ST" {
		t.Fatalf("empty unit should have been back-filled, got %q", entries[0].Unit)
	}
}

func TestFilterByStatus(t *testing.T) {
	t.Parallel()
	entries := []*Entry{
		{ID: "A", Quantity: 1, Status: StatusAvailable},
		{ID: "B", Quantity: 1, Status: StatusLimited},
		{ID: "C", Quantity: 1, Status: StatusDiscontinued},
		{ID: "D", Quantity: 1},
	}

	ok, rejected := FilterByStatus(entries, false)
	if len(ok) != 2 || ok[0].ID != "A" || ok[1].ID != "D" {
		t.Fatalf("unexpected accepted entries: %+v", ok)
	}
	if len(rejected) != 2 || rejected[0].ID != "B" || rejected[1].ID != "C" {
		t.Fatalf("unexpected rejected entries: %+v", rejected)
	}

	ok, rejected = FilterByStatus(entries, true)
	if len(ok) != 3 || ok[1].ID != "B" {
		t.Fatalf("limited entry not admitted with override: %+v", ok)
	}
	if len(rejected) != 1 || rejected[0].ID != "C" {
		t.Fatalf("discontinued entry must stay rejected: %+v", rejected)
	}
}

func TestPrefillReceiverFillsOnlyEmpty(t *testing.T) {
	t.Parallel()
	c := NewCart("jdoe")
	c.MergeIncoming([]*Entry{
		{ID: "A", Quantity: 1, Receiver: "alice"},
		{ID: "B", Quantity: 1},
	})
	c.PrefillReceiver("jdoe")

	entries := c.Entries()
	if entries[0].Receiver != "alice" {
		t.Fatalf("existing receiver overwritten: %q", entries[0].Receiver)
	}
	if entries[1].Receiver != "jdoe" {
		t.Fatalf("empty receiver not filled: %q", entries[1].Receiver)
	}
}

func TestSetAccountingFieldIsExclusive(t *testing.T) {
	t.Parallel()
	c := NewCart("jdoe")
	c.MergeIncoming([]*Entry{entry("A", 1)})
	c.SetAccountingField("A", AccountGeneralLedger, "CC1")

	if !c.SetAccountingField("A", AccountInternalOrder, "IO1") {
		t.Fatal("entry not found")
	}

	e := c.Entries()[0]
	if e.AccountType != AccountInternalOrder {
		t.Fatalf("accountType = %q", e.AccountType)
	}
	if e.InternalOrder != "IO1" {
		t.Fatalf("internalOrder = %q", e.InternalOrder)
	}
	if e.CostCenter != "" || e.WBSElement != "" {
		t.Fatalf("other sub-fields not cleared: cc=%q wbs=%q", e.CostCenter, e.WBSElement)
	}
}

func TestSetQuantityClampsAndCoerces(t *testing.T) {
	t.Parallel()
	c := NewCart("jdoe")
	c.MergeIncoming([]*Entry{entry("A", 5)})

	c.SetQuantity("A", "0")
	if got := c.Entries()[0].Quantity; got != 1 {
		t.Fatalf("quantity after 0 = %d, want 1", got)
	}

	c.SetQuantity("A", "abc")
	if got := c.Entries()[0].Quantity; got != 1 {
		t.Fatalf("quantity after garbage = %d, want 1", got)
	}

	c.SetQuantity("A", "7")
	if got := c.Entries()[0].Quantity; got != 7 {
		t.Fatalf("quantity = %d, want 7", got)
	}

	if c.SetQuantity("missing", "3") {
		t.Fatal("expected false for unknown id")
	}
}

func TestMoveAndCopyBetweenLists(t *testing.T) {
	t.Parallel()
	c := NewCart("jdoe")
	c.MergeIncoming([]*Entry{entry("A", 2), entry("B", 1)})

	if !c.MoveToSavedForLater("A") {
		t.Fatal("move failed")
	}
	if len(c.Entries()) != 1 || len(c.SavedForLater()) != 1 {
		t.Fatalf("unexpected list sizes after move: %d/%d", len(c.Entries()), len(c.SavedForLater()))
	}

	if !c.CopyBackToCart("A") {
		t.Fatal("copy failed")
	}
	if len(c.SavedForLater()) != 1 {
		t.Fatal("copy must leave the saved list untouched")
	}
	entries := c.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 cart entries, got %d", len(entries))
	}

	// Moving back merges quantities with the saved twin.
	if !c.MoveToSavedForLater("A") {
		t.Fatal("second move failed")
	}
	saved := c.SavedForLater()
	if len(saved) != 1 || saved[0].Quantity != 4 {
		t.Fatalf("expected merged saved entry qty 4, got %+v", saved)
	}
}

func TestRemoveReportsPresence(t *testing.T) {
	t.Parallel()
	c := NewCart("jdoe")
	c.MergeIncoming([]*Entry{entry("A", 1)})

	if !c.Remove(ListCart, "A") {
		t.Fatal("expected removal of present id")
	}
	if c.Remove(ListCart, "A") {
		t.Fatal("expected false for absent id")
	}
	if c.Remove(ListSavedForLater, "A") {
		t.Fatal("expected false for empty saved list")
	}
}

func TestTotalPrice(t *testing.T) {
	t.Parallel()
	c := NewCart("jdoe")
	c.MergeIncoming([]*Entry{
		{ID: "A", Quantity: 3, UnitPrice: decimal.RequireFromString("10.50")},
		{ID: "B", Quantity: 1, UnitPrice: decimal.RequireFromString("2")},
	})
	if got := c.TotalPrice(); !got.Equal(decimal.RequireFromString("33.50")) {
		t.Fatalf("total = %s, want 33.50", got)
	}
}

func TestApplyDefaultDesiredDate(t *testing.T) {
	t.Parallel()
	c := NewCart("jdoe")
	c.MergeIncoming([]*Entry{
		{ID: "A", Quantity: 1, DesiredDate: "2026-01-01"},
		{ID: "B", Quantity: 1},
	})
	c.ApplyDefaultDesiredDate("2026-09-06")

	entries := c.Entries()
	if entries[0].DesiredDate != "2026-01-01" {
		t.Fatalf("existing date overwritten: %q", entries[0].DesiredDate)
	}
	if entries[1].DesiredDate != "2026-09-06" {
		t.Fatalf("missing date not defaulted: %q", entries[1].DesiredDate)
	}
}

func TestPersistRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := docstore.NewMemoryStore()

	mgr, err := NewManager(store, nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	c, err := mgr.Cart(ctx, "jdoe")
	if err != nil {
		t.Fatalf("cart: %v", err)
	}
	c.MergeIncoming([]*Entry{
		{ID: "P1", Quantity: 3, Description: "Hammer", UnitPrice: decimal.RequireFromString("9.99")},
	})
	c.MoveToSavedForLater("P1")
	c.MergeIncoming([]*Entry{{ID: "P2", Quantity: 1}})

	// Simulated restart: a fresh manager over the same store.
	mgr2, err := NewManager(store, nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	c2, err := mgr2.Cart(ctx, "jdoe")
	if err != nil {
		t.Fatalf("cart after restart: %v", err)
	}

	entries := c2.Entries()
	if len(entries) != 1 || entries[0].ID != "P2" {
		t.Fatalf("unexpected cart entries after reload: %+v", entries)
	}
	saved := c2.SavedForLater()
	if len(saved) != 1 || saved[0].ID != "P1" || saved[0].Quantity != 3 {
		t.Fatalf("unexpected saved entries after reload: %+v", saved)
	}
	if !saved[0].UnitPrice.Equal(decimal.RequireFromString("9.99")) {
		t.Fatalf("price did not round-trip: %s", saved[0].UnitPrice)
	}
}

func TestLoadNormalizesLegacyMapForm(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	legacy := []byte(`{"cartEntries":{"1":{"id":"B","quantity":2},"0":{"id":"A","quantity":1}},"savedForLaterEntries":[]}`)
	if err := store.Put(ctx, "jdoe", DocCart, legacy); err != nil {
		t.Fatalf("seed: %v", err)
	}

	mgr, err := NewManager(store, nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	c, err := mgr.Cart(ctx, "jdoe")
	if err != nil {
		t.Fatalf("cart: %v", err)
	}

	entries := c.Entries()
	if len(entries) != 2 || entries[0].ID != "A" || entries[1].ID != "B" {
		t.Fatalf("map form not normalized in index order: %+v", entries)
	}

	// The next mutation must write the list form with a version stamp.
	c.SetQuantity("A", "5")
	body, err := store.Get(ctx, "jdoe", DocCart)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var env struct {
		SchemaVersion int             `json:"schemaVersion"`
		CartEntries   json.RawMessage `json:"cartEntries"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.SchemaVersion != 1 {
		t.Fatalf("schemaVersion = %d", env.SchemaVersion)
	}
	if env.CartEntries[0] != '[' {
		t.Fatalf("entries persisted as %s, want a JSON list", env.CartEntries[:1])
	}
}

func TestLoadNewerSchemaStartsEmpty(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	future := []byte(`{"schemaVersion":99,"cartEntries":[{"id":"A","quantity":1}]}`)
	if err := store.Put(ctx, "jdoe", DocCart, future); err != nil {
		t.Fatalf("seed: %v", err)
	}

	mgr, err := NewManager(store, nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	c, err := mgr.Cart(ctx, "jdoe")
	if err != nil {
		t.Fatalf("cart: %v", err)
	}
	if len(c.Entries()) != 0 {
		t.Fatal("entries from a newer schema must not load")
	}
}

func TestLastOrderIDRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mgr, err := NewManager(docstore.NewMemoryStore(), nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	id, err := mgr.LastOrderID(ctx, "jdoe")
	if err != nil || id != "" {
		t.Fatalf("expected empty id before any order, got %q err %v", id, err)
	}

	if err := mgr.RecordLastOrderID(ctx, "jdoe", "4711"); err != nil {
		t.Fatalf("record: %v", err)
	}
	id, err = mgr.LastOrderID(ctx, "jdoe")
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if id != "4711" {
		t.Fatalf("lastOrderId = %q", id)
	}
}
