package punchout

import (
	"context"
	"fmt"
	"strings"

	"github.com/procurehub/webshop-backend/pkg/db"
	pkgerrors "github.com/procurehub/webshop-backend/pkg/errors"
)

// ReturnTargetField and LegacyReturnTargetField carry the URL the
// external catalog posts its selection back to. Both spellings are set
// because catalogs disagree on which one they honor.
const (
	ReturnTargetField       = "~TARGET"
	LegacyReturnTargetField = "returntarget"
)

// supplierParamNames are the field names that may carry the catalog's
// supplier id.
var supplierParamNames = []string{"LIFNR", "Lifnr", "SupplierId"}

// CatalogParam is one configured launch parameter of a catalog. The row
// with an empty field name carries the action URL instead of a field.
type CatalogParam struct {
	ID         uint   `gorm:"primaryKey"`
	CatalogID  string `gorm:"size:64;not null;index"`
	FieldName  string `gorm:"size:128"`
	FieldValue string `gorm:"size:1024"`
	Position   int    `gorm:"not null;default:0"`
}

// TableName pins the table used by migrations.
func (CatalogParam) TableName() string { return "punchout_catalog_params" }

// LaunchParams is the resolved launch configuration of one catalog.
type LaunchParams struct {
	CatalogID  string
	Action     string
	Fields     []Field
	SupplierID string
}

// FreeTextCatalogID is the pseudo catalog offered alongside the
// configured ones; picking it opens the free-text entry dialog instead
// of an external window.
const FreeTextCatalogID = "FREETEXT"

// Catalog is one entry of the catalog picker.
type Catalog struct {
	ID       string `json:"id"`
	FreeText bool   `json:"freeText,omitempty"`
}

// CatalogRepo reads catalog launch configuration.
type CatalogRepo interface {
	LaunchParams(ctx context.Context, catalogID string) (*LaunchParams, error)
	Catalogs(ctx context.Context) ([]Catalog, error)
}

type catalogRepo struct {
	client *db.Client
}

// NewCatalogRepo builds a repo over the shared GORM connection.
func NewCatalogRepo(client *db.Client) (CatalogRepo, error) {
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	return &catalogRepo{client: client}, nil
}

func (r *catalogRepo) LaunchParams(ctx context.Context, catalogID string) (*LaunchParams, error) {
	var rows []CatalogParam
	err := r.client.DB().WithContext(ctx).
		Where("catalog_id = ?", catalogID).
		Order("position ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("catalog %q is not configured", catalogID))
	}

	params := &LaunchParams{CatalogID: catalogID}
	for _, row := range rows {
		if row.FieldName == "" {
			params.Action = row.FieldValue
			continue
		}
		params.Fields = append(params.Fields, Field{Name: row.FieldName, Value: row.FieldValue})
	}
	if params.Action == "" {
		return nil, pkgerrors.New(pkgerrors.CodeProtocol, fmt.Sprintf("catalog %q has no action url", catalogID))
	}
	params.SupplierID = extractSupplierID(params.Fields)
	return params, nil
}

func (r *catalogRepo) Catalogs(ctx context.Context) ([]Catalog, error) {
	var ids []string
	err := r.client.DB().WithContext(ctx).
		Model(&CatalogParam{}).
		Distinct("catalog_id").
		Order("catalog_id ASC").
		Pluck("catalog_id", &ids).Error
	if err != nil {
		return nil, err
	}

	catalogs := make([]Catalog, 0, len(ids))
	for _, id := range ids {
		catalogs = append(catalogs, Catalog{ID: id})
	}
	return catalogs, nil
}

// WithReturnTarget sets both return-target field spellings on a copy of
// the fields.
func WithReturnTarget(fields []Field, target string) []Field {
	out := make([]Field, len(fields))
	copy(out, fields)
	out = UpsertField(out, ReturnTargetField, target)
	out = UpsertField(out, LegacyReturnTargetField, target)
	return out
}

func extractSupplierID(fields []Field) string {
	for _, name := range supplierParamNames {
		for _, f := range fields {
			if strings.EqualFold(f.Name, name) && strings.TrimSpace(f.Value) != "" {
				return strings.TrimSpace(f.Value)
			}
		}
	}
	return ""
}
