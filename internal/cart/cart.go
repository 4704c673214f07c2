package cart

import (
	"sort"
	"strconv"
	"sync"

	"github.com/shopspring/decimal"
)

// List names addressable by Remove.
const (
	ListCart          = "cart"
	ListSavedForLater = "savedForLater"
)

// Snapshot is the full cart document as it is persisted and served.
type Snapshot struct {
	CartEntries          []Entry `json:"cartEntries"`
	SavedForLaterEntries []Entry `json:"savedForLaterEntries"`
}

// ChangeListener observes committed cart mutations. Listeners run after
// the mutation completes and receive an isolated snapshot; persistence
// is wired up as one of these rather than being buried in the mutators.
type ChangeListener func(owner string, snap Snapshot)

// Cart holds one owner's entries and saved-for-later list. All
// operations are synchronous over the in-memory state; side effects
// happen only through registered listeners.
type Cart struct {
	mu        sync.Mutex
	owner     string
	entries   []*Entry
	saved     []*Entry
	listeners []ChangeListener
}

// NewCart returns an empty cart for the owner.
func NewCart(owner string) *Cart {
	return &Cart{owner: owner}
}

// Subscribe registers a listener for committed mutations.
func (c *Cart) Subscribe(fn ChangeListener) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// Owner returns the cart owner's identity.
func (c *Cart) Owner() string { return c.owner }

// MergeIncoming folds incoming entries into the cart list. An entry
// whose id already exists has its quantity added and empty fields
// back-filled; new ids are appended in order.
func (c *Cart) MergeIncoming(incoming []*Entry) {
	if len(incoming) == 0 {
		return
	}
	c.mu.Lock()
	for _, in := range incoming {
		if in == nil || in.ID == "" {
			continue
		}
		if existing := findEntry(c.entries, in.ID); existing != nil {
			existing.mergeFrom(in)
			continue
		}
		c.entries = append(c.entries, in.clone())
	}
	c.notifyLocked()
}

// SetQuantity updates an entry's quantity from raw user input. The
// value is clamped to a minimum of 1; unparseable input coerces to 1.
func (c *Cart) SetQuantity(id, raw string) bool {
	c.mu.Lock()
	entry := findEntry(c.entries, id)
	if entry == nil {
		c.mu.Unlock()
		return false
	}
	entry.Quantity = parseQuantity(raw)
	c.notifyLocked()
	return true
}

// MoveToSavedForLater moves an entry out of the cart, merging into any
// saved entry with the same id.
func (c *Cart) MoveToSavedForLater(id string) bool {
	c.mu.Lock()
	entry, rest := takeEntry(c.entries, id)
	if entry == nil {
		c.mu.Unlock()
		return false
	}
	c.entries = rest
	if existing := findEntry(c.saved, id); existing != nil {
		existing.mergeFrom(entry)
	} else {
		c.saved = append(c.saved, entry)
	}
	c.notifyLocked()
	return true
}

// CopyBackToCart copies a saved entry back into the cart, leaving the
// saved list untouched. Merge semantics apply at the destination.
func (c *Cart) CopyBackToCart(id string) bool {
	c.mu.Lock()
	entry := findEntry(c.saved, id)
	if entry == nil {
		c.mu.Unlock()
		return false
	}
	if existing := findEntry(c.entries, id); existing != nil {
		existing.mergeFrom(entry)
	} else {
		c.entries = append(c.entries, entry.clone())
	}
	c.notifyLocked()
	return true
}

// Remove deletes an entry from the named list and reports whether the
// id was found.
func (c *Cart) Remove(list, id string) bool {
	c.mu.Lock()
	var removed *Entry
	switch list {
	case ListCart:
		removed, c.entries = takeEntry(c.entries, id)
	case ListSavedForLater:
		removed, c.saved = takeEntry(c.saved, id)
	}
	if removed == nil {
		c.mu.Unlock()
		return false
	}
	c.notifyLocked()
	return true
}

// SetAccountingField assigns the account type and its value to one
// entry, clearing the sub-fields of the other types.
func (c *Cart) SetAccountingField(id string, accountType AccountType, value string) bool {
	c.mu.Lock()
	entry := findEntry(c.entries, id)
	if entry == nil {
		c.mu.Unlock()
		return false
	}
	entry.SetAccounting(accountType, value)
	c.notifyLocked()
	return true
}

// Patch carries optional per-entry field updates from the cart editor.
// Nil fields are left alone.
type Patch struct {
	Receiver             *string   `json:"receiver"`
	MaterialGroup        *string   `json:"materialGroup"`
	GLAccount            *string   `json:"glAccount"`
	DesiredDate          *string   `json:"desiredDate"`
	GoodsReceiptExpected *TriState `json:"goodsReceiptExpected"`
	FreeTextNote         *string   `json:"freeTextNote"`
}

// Apply updates one entry with the non-nil patch fields.
func (c *Cart) Apply(id string, patch Patch) bool {
	c.mu.Lock()
	entry := findEntry(c.entries, id)
	if entry == nil {
		c.mu.Unlock()
		return false
	}
	if patch.Receiver != nil {
		entry.Receiver = *patch.Receiver
	}
	if patch.MaterialGroup != nil {
		entry.MaterialGroup = *patch.MaterialGroup
	}
	if patch.GLAccount != nil {
		entry.GLAccount = *patch.GLAccount
	}
	if patch.DesiredDate != nil {
		entry.DesiredDate = *patch.DesiredDate
	}
	if patch.GoodsReceiptExpected != nil {
		entry.GoodsReceiptExpected = *patch.GoodsReceiptExpected
	}
	if patch.FreeTextNote != nil {
		entry.FreeTextNote = *patch.FreeTextNote
	}
	c.notifyLocked()
	return true
}

// ApplyDefaultDesiredDate sets the date on every cart entry that lacks
// one. Used when the checkout flow advances past the form step.
func (c *Cart) ApplyDefaultDesiredDate(date string) {
	c.mu.Lock()
	changed := false
	for _, entry := range c.entries {
		if entry.DesiredDate == "" {
			entry.DesiredDate = date
			changed = true
		}
	}
	if !changed {
		c.mu.Unlock()
		return
	}
	c.notifyLocked()
}

// PrefillReceiver sets the receiver on every cart entry that lacks
// one. Entries loaded from older documents predate receiver capture.
func (c *Cart) PrefillReceiver(receiver string) {
	if receiver == "" {
		return
	}
	c.mu.Lock()
	changed := false
	for _, entry := range c.entries {
		if entry.Receiver == "" {
			entry.Receiver = receiver
			changed = true
		}
	}
	if !changed {
		c.mu.Unlock()
		return
	}
	c.notifyLocked()
}

// Clear empties the cart list after a successful order submission. The
// saved-for-later list survives.
func (c *Cart) Clear() {
	c.mu.Lock()
	if len(c.entries) == 0 {
		c.mu.Unlock()
		return
	}
	c.entries = nil
	c.notifyLocked()
}

// TotalPrice sums quantity times unit price over the cart list.
func (c *Cart) TotalPrice() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := decimal.Zero
	for _, entry := range c.entries {
		total = total.Add(entry.UnitPrice.Mul(decimal.NewFromInt(int64(entry.Quantity))))
	}
	return total
}

// Entries returns a copy of the cart list.
func (c *Cart) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyEntries(c.entries)
}

// SavedForLater returns a copy of the saved-for-later list.
func (c *Cart) SavedForLater() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyEntries(c.saved)
}

// Snapshot returns both lists as one document.
func (c *Cart) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// restore replaces the cart's state from a loaded document without
// notifying listeners; loading is not a mutation.
func (c *Cart) restore(snap Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = toPointers(snap.CartEntries)
	c.saved = toPointers(snap.SavedForLaterEntries)
}

// notifyLocked snapshots state, releases the lock, and fans out to the
// listeners. Callers must hold c.mu and must not use it afterwards.
func (c *Cart) notifyLocked() {
	snap := c.snapshotLocked()
	listeners := make([]ChangeListener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(c.owner, snap)
	}
}

func (c *Cart) snapshotLocked() Snapshot {
	return Snapshot{
		CartEntries:          copyEntries(c.entries),
		SavedForLaterEntries: copyEntries(c.saved),
	}
}

func findEntry(list []*Entry, id string) *Entry {
	for _, entry := range list {
		if entry.ID == id {
			return entry
		}
	}
	return nil
}

func takeEntry(list []*Entry, id string) (*Entry, []*Entry) {
	for i, entry := range list {
		if entry.ID == id {
			return entry, append(list[:i], list[i+1:]...)
		}
	}
	return nil, list
}

func copyEntries(list []*Entry) []Entry {
	if len(list) == 0 {
		return []Entry{}
	}
	out := make([]Entry, len(list))
	for i, entry := range list {
		out[i] = *entry
	}
	return out
}

func toPointers(list []Entry) []*Entry {
	out := make([]*Entry, 0, len(list))
	for i := range list {
		entry := list[i]
		out = append(out, &entry)
	}
	return out
}

// sortedMapKeys orders the keys of a map-shaped entry collection, using
// numeric order where the keys are indexes.
func sortedMapKeys(m map[string]Entry) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ni, errI := strconv.Atoi(keys[i])
		nj, errJ := strconv.Atoi(keys[j])
		if errI == nil && errJ == nil {
			return ni < nj
		}
		return keys[i] < keys[j]
	})
	return keys
}
