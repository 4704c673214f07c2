package controllers

import (
	"net/http"

	"github.com/procurehub/webshop-backend/api/responses"
	cartsvc "github.com/procurehub/webshop-backend/internal/cart"
	ordersvc "github.com/procurehub/webshop-backend/internal/orders"
	"github.com/procurehub/webshop-backend/pkg/logger"
)

// OrdersSubmit turns the validated flow into a requisition: it builds
// the order, creates it remotely, uploads the staged attachments and
// clears the cart.
func OrdersSubmit(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := requireOwner(r, svc != nil, "order service unavailable")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Submit(r.Context(), owner)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// OrdersLast serves the id of the owner's most recently submitted
// requisition.
func OrdersLast(carts *cartsvc.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := requireOwner(r, carts != nil, "cart manager unavailable")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := carts.LastOrderID(r.Context(), owner)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"lastOrderId": orderID})
	}
}
