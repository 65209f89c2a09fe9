package provider

import (
	"github.com/soundrise/wallet/internal/models"
)

// MapStatus translates a provider transfer status into the local withdrawal
// status. Webhooks and the reconciler share this one table so they can never
// disagree. Unrecognized statuses map to ok=false and are ignored by callers.
func MapStatus(providerStatus string) (status string, ok bool) {
	switch providerStatus {
	case "success":
		return models.WithdrawalStatusPaid, true
	case "failed":
		return models.WithdrawalStatusFailed, true
	case "pending", "otp", "queued":
		return models.WithdrawalStatusProcessing, true
	}
	return "", false
}
