package valuehelp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/procurehub/webshop-backend/pkg/db"
	pkgerrors "github.com/procurehub/webshop-backend/pkg/errors"
	"github.com/procurehub/webshop-backend/pkg/logger"
	"github.com/procurehub/webshop-backend/pkg/redis"
)

// Known lookup collections.
const (
	CollectionCurrencies       = "currencies"
	CollectionSuppliers        = "suppliers"
	CollectionCostCenters      = "costCenters"
	CollectionPurchasingGroups = "purchasingGroups"
	CollectionMaterialGroups   = "materialGroups"
	CollectionGLAccounts       = "glAccounts"
	CollectionUsers            = "users"
)

var knownCollections = map[string]struct{}{
	CollectionCurrencies:       {},
	CollectionSuppliers:        {},
	CollectionCostCenters:      {},
	CollectionPurchasingGroups: {},
	CollectionMaterialGroups:   {},
	CollectionGLAccounts:       {},
	CollectionUsers:            {},
}

const cacheTTL = 10 * time.Minute

// Item is one selectable value of a lookup dialog.
type Item struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// LookupEntry is the persistence model backing all collections.
type LookupEntry struct {
	ID          uint   `gorm:"primaryKey"`
	Collection  string `gorm:"size:64;not null;index"`
	Code        string `gorm:"size:64;not null"`
	Description string `gorm:"size:256"`
	Position    int    `gorm:"not null;default:0"`
}

// TableName pins the table used by migrations.
func (LookupEntry) TableName() string { return "value_help_entries" }

type cacheClient interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	ValueHelpKey(collection string) string
}

// Service serves lookup collections, read once from the database and
// cached for the dialog lifetime.
type Service interface {
	List(ctx context.Context, collection string) ([]Item, error)
}

type service struct {
	client *db.Client
	cache  cacheClient
	logg   *logger.Logger
}

// NewService builds the lookup service. The cache is optional; without
// it every call reads through to the database.
func NewService(client *db.Client, cache *redis.Client, logg *logger.Logger) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	svc := &service{client: client, logg: logg}
	if cache != nil {
		svc.cache = cache
	}
	return svc, nil
}

func (s *service) List(ctx context.Context, collection string) ([]Item, error) {
	if _, ok := knownCollections[collection]; !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("unknown lookup collection %q", collection))
	}

	if items, ok := s.fromCache(ctx, collection); ok {
		return items, nil
	}

	var rows []LookupEntry
	err := s.client.DB().WithContext(ctx).
		Where("collection = ?", collection).
		Order("position ASC, code ASC").
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "reading lookup collection")
	}

	items := make([]Item, 0, len(rows))
	for _, row := range rows {
		items = append(items, Item{Code: row.Code, Description: row.Description})
	}

	s.toCache(ctx, collection, items)
	return items, nil
}

func (s *service) fromCache(ctx context.Context, collection string) ([]Item, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, s.cache.ValueHelpKey(collection))
	if errors.Is(err, redis.ErrNotFound) {
		return nil, false
	}
	if err != nil {
		if s.logg != nil {
			s.logg.Warn(ctx, fmt.Sprintf("lookup cache read failed: %v", err))
		}
		return nil, false
	}
	var items []Item
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, false
	}
	return items, true
}

func (s *service) toCache(ctx context.Context, collection string, items []Item) {
	if s.cache == nil {
		return
	}
	body, err := json.Marshal(items)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, s.cache.ValueHelpKey(collection), body, cacheTTL); err != nil && s.logg != nil {
		s.logg.Warn(ctx, fmt.Sprintf("lookup cache write failed: %v", err))
	}
}
