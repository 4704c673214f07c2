package controllers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/procurehub/webshop-backend/api/middleware"
	"github.com/procurehub/webshop-backend/api/responses"
	"github.com/procurehub/webshop-backend/api/validators"
	checkoutsvc "github.com/procurehub/webshop-backend/internal/checkout"
	pkgerrors "github.com/procurehub/webshop-backend/pkg/errors"
	"github.com/procurehub/webshop-backend/pkg/logger"
)

// attachmentSniffLen is how many leading bytes feed content-type
// detection.
const attachmentSniffLen = 3072

type flowResponse struct {
	Draft           *checkoutsvc.Draft `json:"draft"`
	CurrentStep     checkoutsvc.Step   `json:"currentStep"`
	ValidationArmed bool               `json:"validationArmed"`
	ReadyToSubmit   bool               `json:"readyToSubmit"`
}

func newFlowResponse(w *checkoutsvc.Wizard) flowResponse {
	return flowResponse{
		Draft:           w.Draft(),
		CurrentStep:     w.CurrentStep(),
		ValidationArmed: w.ValidationArmed(),
		ReadyToSubmit:   w.ReadyToSubmit(),
	}
}

// CheckoutEnter starts a fresh checkout flow, discarding any previous
// draft.
func CheckoutEnter(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := requireOwner(r, svc != nil, "checkout service unavailable")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		wiz, err := svc.Enter(r.Context(), owner)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newFlowResponse(wiz))
	}
}

// CheckoutFlow serves the current flow state.
func CheckoutFlow(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := requireOwner(r, svc != nil, "checkout service unavailable")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		wiz, err := svc.Flow(r.Context(), owner)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newFlowResponse(wiz))
	}
}

// CheckoutUpdateDraft applies partial header updates to the draft.
func CheckoutUpdateDraft(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := requireOwner(r, svc != nil, "checkout service unavailable")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var patch checkoutsvc.DraftPatch
		if err := validators.DecodeJSONBody(r, &patch); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		draft, err := svc.UpdateDraft(r.Context(), owner, patch)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, draft)
	}
}

// CheckoutAdvance validates the current step and moves forward.
// Validation problems come back as an error payload; the flow state is
// re-read with CheckoutFlow.
func CheckoutAdvance(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := requireOwner(r, svc != nil, "checkout service unavailable")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		step, err := svc.Advance(r.Context(), owner)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"currentStep": step})
	}
}

// CheckoutAddAttachment stages a multipart file upload on the draft.
// The file is held locally until order submit pushes it to the backend.
func CheckoutAddAttachment(svc checkoutsvc.Service, files checkoutsvc.FileStore, maxUploadMB int, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := requireOwner(r, svc != nil && files != nil, "checkout service unavailable")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		maxBytes := int64(maxUploadMB) << 20
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid or oversized upload"))
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, `multipart field "file" is required`))
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reading upload"))
			return
		}

		fileRef, err := files.Save(r.Context(), data)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "staging upload"))
			return
		}

		head := data
		if len(head) > attachmentSniffLen {
			head = head[:attachmentSniffLen]
		}
		att, err := svc.AddAttachment(r.Context(), owner, fileRef, header.Filename, int64(len(data)), head)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, att)
	}
}

// CheckoutRemoveAttachment drops a staged attachment and releases its
// file.
func CheckoutRemoveAttachment(svc checkoutsvc.Service, files checkoutsvc.FileStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := requireOwner(r, svc != nil, "checkout service unavailable")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		index, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "attachment index must be an integer"))
			return
		}

		att, err := svc.RemoveAttachment(r.Context(), owner, index)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if files != nil {
			if err := files.Discard(r.Context(), att.FileRef); err != nil && logg != nil {
				logg.Warn(r.Context(), "failed to discard staged attachment file")
			}
		}
		responses.WriteSuccess(w, map[string]string{"removed": att.FileName})
	}
}

func requireOwner(r *http.Request, serviceOK bool, unavailableMsg string) (string, error) {
	if !serviceOK {
		return "", pkgerrors.New(pkgerrors.CodeInternal, unavailableMsg)
	}
	owner := middleware.UserIDFromContext(r.Context())
	if owner == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}
	return owner, nil
}
