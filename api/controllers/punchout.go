package controllers

import (
	"net/http"

	"github.com/procurehub/webshop-backend/api/responses"
	"github.com/procurehub/webshop-backend/api/validators"
	punchoutsvc "github.com/procurehub/webshop-backend/internal/punchout"
	"github.com/procurehub/webshop-backend/pkg/logger"
)

// PunchoutCatalogs lists the catalogs the owner can launch. The
// free-text pseudo catalog comes first.
func PunchoutCatalogs(svc punchoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := requireOwner(r, svc != nil, "punch-out service unavailable"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		catalogs, err := svc.Catalogs(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"catalogs": catalogs})
	}
}

type launchRequest struct {
	CatalogID    string `json:"catalogId" validate:"required"`
	ReturnTarget string `json:"returnTarget" validate:"required"`
	Popped       bool   `json:"popped"`
}

// PunchoutLaunch prepares a catalog session: it resolves the catalog's
// launch form, stamps the return target and hands the client the window
// name to open the launch document under.
func PunchoutLaunch(svc punchoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := requireOwner(r, svc != nil, "punch-out service unavailable")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload launchRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		instruction, err := svc.Launch(r.Context(), owner, payload.CatalogID, payload.ReturnTarget, payload.Popped)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, instruction)
	}
}

type readyRequest struct {
	Origin string `json:"origin" validate:"required"`
	Window string `json:"window" validate:"required"`
}

// PunchoutReady is called by the launch document once it is able to
// receive the catalog form. The first matching call releases the POST
// message; repeats are acknowledged without re-posting.
func PunchoutReady(svc punchoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := requireOwner(r, svc != nil, "punch-out service unavailable")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload readyRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		done, err := svc.Ready(r.Context(), owner, punchoutsvc.Identity{
			Origin: payload.Origin,
			Window: payload.Window,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"posted": done})
	}
}

// PunchoutMessages drains the pending messages for one catalog window.
// The launch document polls this until the POST payload arrives.
func PunchoutMessages(svc punchoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := requireOwner(r, svc != nil, "punch-out service unavailable")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		window, err := validators.RequireQuery(r, "window")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		msgs := svc.Messages(r.Context(), owner, window)
		if msgs == nil {
			msgs = []punchoutsvc.Message{}
		}
		responses.WriteSuccess(w, map[string]any{"messages": msgs})
	}
}

type importRequest struct {
	URL string `json:"url" validate:"required"`
}

// PunchoutImport extracts the returned basket from the catalog's return
// URL and merges it into the cart. A malformed payload imports nothing
// but still reports the cleaned URL.
func PunchoutImport(svc punchoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := requireOwner(r, svc != nil, "punch-out service unavailable")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload importRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Import(r.Context(), owner, payload.URL)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
