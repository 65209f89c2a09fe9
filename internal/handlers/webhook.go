package handlers

import (
	"io"
	"net/http"

	"github.com/soundrise/wallet/internal/handlers/render"
	"github.com/soundrise/wallet/internal/logger"
	"github.com/soundrise/wallet/internal/service/webhook"
)

const signatureHeader = "X-Provider-Signature"

// handleProviderWebhook is the provider callback endpoint. The provider
// retries on any non-2xx, so every authenticated, structurally valid event
// is answered 200 whether it was applied, already applied, or unrecognized.
// The handler holds no state: re-entrancy is safe because idempotency lives
// in the ingest transaction.
func handleProviderWebhook(webhookService webhookService, l logger.Logger) http.Handler {
	type response struct {
		Status string `json:"status"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawBody, err := io.ReadAll(r.Body)
		if err != nil {
			render.ServiceError(w, "Failed to read request body", http.StatusBadRequest)
			return
		}

		if !webhookService.VerifySignature(rawBody, r.Header.Get(signatureHeader)) {
			l.Warn("Rejecting webhook with bad signature", "remote_addr", r.RemoteAddr)
			render.ServiceError(w, "Signature mismatch", http.StatusUnauthorized)
			return
		}

		event, err := webhook.ParseEvent(rawBody)
		if err != nil {
			render.DecodeError(w, err)
			return
		}

		result, err := webhookService.Ingest(r.Context(), event)
		if err != nil {
			l.Error("Failed to ingest webhook event", "error", err, "event_type", event.EventType())
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, response{Status: string(result)})
	})
}
