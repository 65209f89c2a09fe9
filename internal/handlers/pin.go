package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/soundrise/wallet/internal/apperrors"
	"github.com/soundrise/wallet/internal/handlers/render"
	"github.com/soundrise/wallet/internal/handlers/userctx"
	"github.com/soundrise/wallet/internal/logger"
)

// writePinError maps PIN verification failures to responses. Shared by every
// handler that gates on the PIN.
func writePinError(w http.ResponseWriter, err error, l logger.Logger) {
	var locked *apperrors.LockedOutError

	switch {
	case errors.As(err, &locked):
		render.JSONWithStatus(w, render.ErrorResponse{
			Error:   render.ServiceErrorType,
			Message: "Too many failed attempts, try again later",
			Fields: map[string]string{
				"retry_after_seconds": locked.Remaining(time.Now()).Round(time.Second).String(),
			},
		}, http.StatusLocked)
	case errors.Is(err, apperrors.ErrPinMismatch):
		render.ServiceError(w, "Incorrect transaction PIN", http.StatusForbidden)
	case errors.Is(err, apperrors.ErrPinNotSet):
		render.ServiceError(w, "Transaction PIN is not set", http.StatusNotFound)
	default:
		l.Error("PIN verification failed", "error", err)
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
	}
}

func handleSetupPin(securityService securityService, l logger.Logger) http.Handler {
	type request struct {
		Pin string `json:"pin" validate:"required,len=6,numeric"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		err = securityService.SetupPin(r.Context(), userID, req.Pin, requestMeta(r))

		switch {
		case err == nil:
			render.JSONWithStatus(w, struct{}{}, http.StatusCreated)
		case errors.Is(err, apperrors.ErrWeakPin):
			render.ServiceError(w, "PIN does not meet the minimum policy", http.StatusUnprocessableEntity)
		case errors.Is(err, apperrors.ErrPinAlreadySet):
			render.ServiceError(w, "PIN already set, use the change flow", http.StatusConflict)
		default:
			l.Error("Failed to set up PIN", "error", err, "user_id", userID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleVerifyPin(securityService securityService, l logger.Logger) http.Handler {
	type request struct {
		Pin string `json:"pin" validate:"required"`
	}

	type response struct {
		Valid bool `json:"valid"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		if err := securityService.VerifyPin(r.Context(), userID, req.Pin, requestMeta(r)); err != nil {
			writePinError(w, err, l)
			return
		}

		render.JSON(w, response{Valid: true})
	})
}

func handleChangePin(securityService securityService, l logger.Logger) http.Handler {
	type request struct {
		CurrentPin string `json:"current_pin" validate:"required"`
		NewPin     string `json:"new_pin" validate:"required,len=6,numeric"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		err = securityService.ChangePin(r.Context(), userID, req.CurrentPin, req.NewPin, requestMeta(r))

		switch {
		case err == nil:
			render.JSON(w, struct{}{})
		case errors.Is(err, apperrors.ErrWeakPin):
			render.ServiceError(w, "PIN does not meet the minimum policy", http.StatusUnprocessableEntity)
		default:
			writePinError(w, err, l)
		}
	})
}
