package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/procurehub/webshop-backend/api/responses"
	valuehelpsvc "github.com/procurehub/webshop-backend/internal/valuehelp"
	pkgerrors "github.com/procurehub/webshop-backend/pkg/errors"
	"github.com/procurehub/webshop-backend/pkg/logger"
)

// ValueHelpList serves one lookup collection for form dropdowns.
func ValueHelpList(svc valuehelpsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "value help service unavailable"))
			return
		}

		items, err := svc.List(r.Context(), chi.URLParam(r, "collection"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if items == nil {
			items = []valuehelpsvc.Item{}
		}
		responses.WriteSuccess(w, map[string]any{"items": items})
	}
}
