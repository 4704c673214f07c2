package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/procurehub/webshop-backend/api/middleware"
	"github.com/procurehub/webshop-backend/api/responses"
	"github.com/procurehub/webshop-backend/api/validators"
	cartsvc "github.com/procurehub/webshop-backend/internal/cart"
	pkgerrors "github.com/procurehub/webshop-backend/pkg/errors"
	"github.com/procurehub/webshop-backend/pkg/logger"
)

type cartSnapshotResponse struct {
	CartEntries          []cartsvc.Entry `json:"cartEntries"`
	SavedForLaterEntries []cartsvc.Entry `json:"savedForLaterEntries"`
	Total                string          `json:"total"`
}

func newCartSnapshotResponse(c *cartsvc.Cart) cartSnapshotResponse {
	snap := c.Snapshot()
	return cartSnapshotResponse{
		CartEntries:          snap.CartEntries,
		SavedForLaterEntries: snap.SavedForLaterEntries,
		Total:                c.TotalPrice().StringFixed(2),
	}
}

// CartGet serves the owner's current cart and saved-for-later list.
func CartGet(carts *cartsvc.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := ownerCart(r, carts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartSnapshotResponse(c))
	}
}

type mergeItemsRequest struct {
	Items []cartsvc.RawItem `json:"items" validate:"required,min=1"`
	// AllowLimited confirms lines whose product has restricted
	// availability; discontinued products are rejected regardless.
	AllowLimited bool `json:"allowLimited"`
}

type mergeItemsResponse struct {
	cartSnapshotResponse
	Rejected []cartsvc.Entry `json:"rejected,omitempty"`
}

// CartMergeItems normalizes incoming catalog rows and merges them into
// the cart. Rows without any usable id are skipped, not rejected;
// rejected product statuses are reported back.
func CartMergeItems(carts *cartsvc.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := ownerCart(r, carts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload mergeItemsRequest
		if err := validators.DecodeJSONBodyAllowUnknown(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		nctx := cartsvc.NormalizeContext{DefaultReceiver: middleware.UserIDFromContext(r.Context())}
		var entries []*cartsvc.Entry
		skipped := 0
		for _, raw := range payload.Items {
			entry, ok := cartsvc.Normalize(raw, nctx)
			if !ok {
				skipped++
				continue
			}
			entries = append(entries, entry)
		}
		entries, rejected := cartsvc.FilterByStatus(entries, payload.AllowLimited)
		c.MergeIncoming(entries)

		if skipped > 0 && logg != nil {
			ctx := logg.WithFields(r.Context(), map[string]any{"skipped": skipped})
			logg.Warn(ctx, "merge skipped rows without an article id")
		}

		responses.WriteSuccess(w, mergeItemsResponse{
			cartSnapshotResponse: newCartSnapshotResponse(c),
			Rejected:             rejected,
		})
	}
}

type freeTextRequest struct {
	Description        string `json:"description" validate:"required"`
	Quantity           string `json:"quantity"`
	Unit               string `json:"unit"`
	Price              string `json:"price"`
	Currency           string `json:"currency"`
	MaterialGroup      string `json:"materialGroup"`
	SupplierID         string `json:"supplierId"`
	ExternalMaterialNo string `json:"externalMaterialNo"`
	Note               string `json:"note"`
}

// CartAddFreeText adds a described-by-hand line to the cart.
func CartAddFreeText(carts *cartsvc.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := ownerCart(r, carts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload freeTextRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		nctx := cartsvc.NormalizeContext{
			DefaultReceiver: middleware.UserIDFromContext(r.Context()),
		}
		entry := cartsvc.NewFreeTextEntry(cartsvc.FreeTextInput{
			Description:        payload.Description,
			Quantity:           payload.Quantity,
			Unit:               payload.Unit,
			Price:              payload.Price,
			Currency:           payload.Currency,
			MaterialGroup:      payload.MaterialGroup,
			SupplierID:         payload.SupplierID,
			ExternalMaterialNo: payload.ExternalMaterialNo,
			Note:               payload.Note,
		}, nctx, time.Now())
		c.MergeIncoming([]*cartsvc.Entry{entry})

		responses.WriteSuccessStatus(w, http.StatusCreated, newCartSnapshotResponse(c))
	}
}

type reorderRequest struct {
	RequisitionID string        `json:"requisitionId" validate:"required"`
	Lines         []reorderLine `json:"lines" validate:"required,min=1,dive"`
}

type reorderLine struct {
	LineNo string          `json:"lineNo" validate:"required"`
	Item   cartsvc.RawItem `json:"item"`
}

// CartReorder copies lines of a past requisition back into the cart.
func CartReorder(carts *cartsvc.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := ownerCart(r, carts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload reorderRequest
		if err := validators.DecodeJSONBodyAllowUnknown(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		nctx := cartsvc.NormalizeContext{DefaultReceiver: middleware.UserIDFromContext(r.Context())}
		var entries []*cartsvc.Entry
		for _, line := range payload.Lines {
			entry, ok := cartsvc.NewReorderEntry(payload.RequisitionID, line.LineNo, line.Item, nctx)
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "reorder line is missing requisition or line number"))
				return
			}
			entries = append(entries, entry)
		}
		c.MergeIncoming(entries)

		responses.WriteSuccess(w, newCartSnapshotResponse(c))
	}
}

type setQuantityRequest struct {
	Quantity string `json:"quantity" validate:"required"`
}

// CartSetQuantity updates one entry's quantity. Garbage input clamps to
// one rather than erroring; only an unknown entry is a failure.
func CartSetQuantity(carts *cartsvc.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := ownerCart(r, carts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload setQuantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if !c.SetQuantity(chi.URLParam(r, "id"), payload.Quantity) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "cart entry not found"))
			return
		}
		responses.WriteSuccess(w, newCartSnapshotResponse(c))
	}
}

// CartSaveForLater moves an entry from the cart to the saved list.
func CartSaveForLater(carts *cartsvc.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := ownerCart(r, carts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !c.MoveToSavedForLater(chi.URLParam(r, "id")) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "cart entry not found"))
			return
		}
		responses.WriteSuccess(w, newCartSnapshotResponse(c))
	}
}

// CartCopyBack copies a saved entry back into the cart, leaving the
// saved list untouched.
func CartCopyBack(carts *cartsvc.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := ownerCart(r, carts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !c.CopyBackToCart(chi.URLParam(r, "id")) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "saved entry not found"))
			return
		}
		responses.WriteSuccess(w, newCartSnapshotResponse(c))
	}
}

// CartRemove deletes an entry from the named list.
func CartRemove(carts *cartsvc.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := ownerCart(r, carts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list := chi.URLParam(r, "list")
		if list != cartsvc.ListCart && list != cartsvc.ListSavedForLater {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown list name"))
			return
		}
		if !c.Remove(list, chi.URLParam(r, "id")) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "entry not found"))
			return
		}
		responses.WriteSuccess(w, newCartSnapshotResponse(c))
	}
}

type setAccountingRequest struct {
	AccountType cartsvc.AccountType `json:"accountType" validate:"required"`
	Value       string              `json:"value"`
}

// CartSetAccounting assigns the account type and its matching value,
// clearing the other assignment sub-fields.
func CartSetAccounting(carts *cartsvc.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := ownerCart(r, carts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload setAccountingRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !payload.AccountType.Valid() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown account type"))
			return
		}

		if !c.SetAccountingField(chi.URLParam(r, "id"), payload.AccountType, payload.Value) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "cart entry not found"))
			return
		}
		responses.WriteSuccess(w, newCartSnapshotResponse(c))
	}
}

// CartPatchEntry applies partial field updates to one entry.
func CartPatchEntry(carts *cartsvc.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := ownerCart(r, carts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var patch cartsvc.Patch
		if err := validators.DecodeJSONBody(r, &patch); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if !c.Apply(chi.URLParam(r, "id"), patch) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "cart entry not found"))
			return
		}
		responses.WriteSuccess(w, newCartSnapshotResponse(c))
	}
}

func ownerCart(r *http.Request, carts *cartsvc.Manager) (*cartsvc.Cart, error) {
	if carts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart manager unavailable")
	}
	owner := middleware.UserIDFromContext(r.Context())
	if owner == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}
	return carts.Cart(r.Context(), owner)
}
