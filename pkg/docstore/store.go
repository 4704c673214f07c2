package docstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/procurehub/webshop-backend/pkg/db"
)

// ErrNotFound signals that no document exists for the owner/name pair.
var ErrNotFound = errors.New("docstore: document not found")

// Store persists named JSON documents per owner. Put replaces the whole
// document; partial updates are a caller concern.
type Store interface {
	Get(ctx context.Context, owner, name string) ([]byte, error)
	Put(ctx context.Context, owner, name string, body []byte) error
	Delete(ctx context.Context, owner, name string) error
}

// Document is the persistence model for one owner-scoped document.
type Document struct {
	ID        uint   `gorm:"primaryKey"`
	Owner     string `gorm:"size:128;not null;uniqueIndex:idx_documents_owner_name,priority:1"`
	Name      string `gorm:"size:64;not null;uniqueIndex:idx_documents_owner_name,priority:2"`
	Body      []byte `gorm:"type:jsonb"`
	UpdatedAt time.Time
	CreatedAt time.Time
}

// TableName pins the table used by migrations.
func (Document) TableName() string { return "documents" }

type gormStore struct {
	client *db.Client
}

// NewGormStore returns a Store backed by the shared GORM connection.
func NewGormStore(client *db.Client) (Store, error) {
	if client == nil {
		return nil, errors.New("db client is required")
	}
	return &gormStore{client: client}, nil
}

func (s *gormStore) Get(ctx context.Context, owner, name string) ([]byte, error) {
	var doc Document
	err := s.client.DB().WithContext(ctx).
		Where("owner = ? AND name = ?", owner, name).
		First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.Body, nil
}

func (s *gormStore) Put(ctx context.Context, owner, name string, body []byte) error {
	doc := Document{Owner: owner, Name: name, Body: body}
	return s.client.DB().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner"}, {Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"body", "updated_at"}),
		}).
		Create(&doc).Error
}

func (s *gormStore) Delete(ctx context.Context, owner, name string) error {
	return s.client.DB().WithContext(ctx).
		Where("owner = ? AND name = ?", owner, name).
		Delete(&Document{}).Error
}

// MemoryStore is an in-process Store used by tests and as a last-resort
// fallback when no durable backend is reachable.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[memKey][]byte
}

type memKey struct {
	owner string
	name  string
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[memKey][]byte)}
}

func (s *MemoryStore) Get(ctx context.Context, owner, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	body, ok := s.docs[memKey{owner, name}]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(body))
	copy(out, body)
	return out, nil
}

func (s *MemoryStore) Put(ctx context.Context, owner, name string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]byte, len(body))
	copy(stored, body)
	s.docs[memKey{owner, name}] = stored
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, owner, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, memKey{owner, name})
	return nil
}
