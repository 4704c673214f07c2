package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/procurehub/webshop-backend/pkg/docstore"
	"github.com/procurehub/webshop-backend/pkg/logger"
)

// Document names under which cart state is persisted per owner.
const (
	DocCart      = "cart"
	DocLastOrder = "lastOrder"
)

// cartSchemaVersion is the envelope version written with every cart
// document. Documents without a version are legacy and load with a
// warning; documents from a newer schema load as empty.
const cartSchemaVersion = 1

type envelope struct {
	SchemaVersion        int       `json:"schemaVersion"`
	CartEntries          entryList `json:"cartEntries"`
	SavedForLaterEntries entryList `json:"savedForLaterEntries"`
}

// entryList tolerates the keyed-object form some storage round-trips
// produced historically, always normalizing to a list. The map form is
// never written back.
type entryList []Entry

func (l *entryList) UnmarshalJSON(data []byte) error {
	var list []Entry
	if err := json.Unmarshal(data, &list); err == nil {
		*l = list
		return nil
	}
	var m map[string]Entry
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("entry collection is neither list nor map: %w", err)
	}
	out := make([]Entry, 0, len(m))
	for _, key := range sortedMapKeys(m) {
		out = append(out, m[key])
	}
	*l = out
	return nil
}

// Manager hands out one Cart per owner, loading persisted state on
// first access and persisting every mutation through the document
// store. Write failures are logged and dropped; in-memory state stays
// authoritative for the session.
type Manager struct {
	store docstore.Store
	logg  *logger.Logger

	mu    sync.Mutex
	carts map[string]*Cart
}

// NewManager builds a cart manager over the given document store.
func NewManager(store docstore.Store, logg *logger.Logger) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("document store required")
	}
	return &Manager{
		store: store,
		logg:  logg,
		carts: make(map[string]*Cart),
	}, nil
}

// Cart returns the owner's cart, loading it from storage on first use.
// A failed or empty read falls back to an empty cart.
func (m *Manager) Cart(ctx context.Context, owner string) (*Cart, error) {
	if owner == "" {
		return nil, fmt.Errorf("cart owner required")
	}

	m.mu.Lock()
	if c, ok := m.carts[owner]; ok {
		m.mu.Unlock()
		return c, nil
	}
	m.mu.Unlock()

	c := NewCart(owner)
	if snap, ok := m.load(ctx, owner); ok {
		c.restore(snap)
	}
	c.Subscribe(m.persist)

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.carts[owner]; ok {
		// Another request loaded the same owner concurrently.
		return existing, nil
	}
	m.carts[owner] = c
	return c, nil
}

// LastOrderID returns the backend order id echoed from the owner's most
// recent submission, or empty if none exists.
func (m *Manager) LastOrderID(ctx context.Context, owner string) (string, error) {
	body, err := m.store.Get(ctx, owner, DocLastOrder)
	if errors.Is(err, docstore.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	var doc struct {
		LastOrderID string `json:"lastOrderId"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", fmt.Errorf("decoding last order document: %w", err)
	}
	return doc.LastOrderID, nil
}

// RecordLastOrderID persists the backend order id for the owner.
func (m *Manager) RecordLastOrderID(ctx context.Context, owner, orderID string) error {
	body, err := json.Marshal(struct {
		LastOrderID string `json:"lastOrderId"`
	}{LastOrderID: orderID})
	if err != nil {
		return err
	}
	return m.store.Put(ctx, owner, DocLastOrder, body)
}

func (m *Manager) load(ctx context.Context, owner string) (Snapshot, bool) {
	body, err := m.store.Get(ctx, owner, DocCart)
	if errors.Is(err, docstore.ErrNotFound) {
		return Snapshot{}, false
	}
	if err != nil {
		if m.logg != nil {
			m.logg.Warn(ctx, fmt.Sprintf("cart document read failed, starting empty: %v", err))
		}
		return Snapshot{}, false
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		if m.logg != nil {
			m.logg.Warn(ctx, fmt.Sprintf("cart document unreadable, starting empty: %v", err))
		}
		return Snapshot{}, false
	}
	if env.SchemaVersion > cartSchemaVersion {
		if m.logg != nil {
			m.logg.Warn(ctx, fmt.Sprintf("cart document schema %d is newer than supported %d, starting empty", env.SchemaVersion, cartSchemaVersion))
		}
		return Snapshot{}, false
	}
	if env.SchemaVersion == 0 && m.logg != nil {
		m.logg.Warn(ctx, "loaded unversioned legacy cart document")
	}

	return Snapshot{
		CartEntries:          env.CartEntries,
		SavedForLaterEntries: env.SavedForLaterEntries,
	}, true
}

func (m *Manager) persist(owner string, snap Snapshot) {
	body, err := json.Marshal(envelope{
		SchemaVersion:        cartSchemaVersion,
		CartEntries:          entryList(snap.CartEntries),
		SavedForLaterEntries: entryList(snap.SavedForLaterEntries),
	})
	if err != nil {
		if m.logg != nil {
			m.logg.Error(context.Background(), "encoding cart document", err)
		}
		return
	}
	if err := m.store.Put(context.Background(), owner, DocCart, body); err != nil && m.logg != nil {
		m.logg.Error(context.Background(), "persisting cart document", err)
	}
}
