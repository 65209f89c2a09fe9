package webhook

import (
	"encoding/json"
	"fmt"
	"strings"
)

// The provider's JSON envelope. The payload is dynamic on the wire but is
// parsed into one of the explicit event variants below; anything the service
// does not know becomes UnknownEvent rather than erroring the endpoint.
type eventEnvelope struct {
	Event string `json:"event"`
	Data  struct {
		Reference     string         `json:"reference"`
		Status        string         `json:"status"`
		FailureReason string         `json:"failure_reason"`
		TransferCode  string         `json:"transfer_code"`
		Metadata      map[string]any `json:"metadata"`
	} `json:"data"`
}

// Event is one parsed provider notification.
type Event interface {
	// EventType returns the provider's event name, the first half of the
	// idempotency key.
	EventType() string

	// Reference returns the provider reference, the second half of the
	// idempotency key. Empty means the event carries no dedupe identity.
	Reference() string
}

// TransferEvent reports the status of an outbound transfer.
type TransferEvent struct {
	Type           string
	TransferRef    string
	TransferCode   string
	ProviderStatus string
	FailureReason  string
	Payload        map[string]any
}

func (e TransferEvent) EventType() string { return e.Type }
func (e TransferEvent) Reference() string { return e.TransferRef }

// ChargeSuccessEvent reports an inbound charge. Campaign payments are the
// only charge the engine records; the ledger itself is untouched.
type ChargeSuccessEvent struct {
	ChargeRef   string
	PaymentType string
	Payload     map[string]any
}

func (e ChargeSuccessEvent) EventType() string { return "charge.success" }
func (e ChargeSuccessEvent) Reference() string { return e.ChargeRef }

// UnknownEvent is the fallback for event types the service does not handle.
// It is acknowledged so future provider event types never break delivery.
type UnknownEvent struct {
	Type     string
	EventRef string
}

func (e UnknownEvent) EventType() string { return e.Type }
func (e UnknownEvent) Reference() string { return e.EventRef }

// ParseEvent maps the raw envelope to an event variant.
func ParseEvent(body []byte) (Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to decode webhook envelope: %w", err)
	}
	if env.Event == "" {
		return nil, fmt.Errorf("webhook envelope has no event type")
	}

	var payload map[string]any
	_ = json.Unmarshal(body, &payload)

	switch {
	case strings.HasPrefix(env.Event, "transfer."):
		return TransferEvent{
			Type:           env.Event,
			TransferRef:    env.Data.Reference,
			TransferCode:   env.Data.TransferCode,
			ProviderStatus: env.Data.Status,
			FailureReason:  env.Data.FailureReason,
			Payload:        payload,
		}, nil

	case env.Event == "charge.success":
		paymentType, _ := env.Data.Metadata["payment_type"].(string)
		return ChargeSuccessEvent{
			ChargeRef:   env.Data.Reference,
			PaymentType: paymentType,
			Payload:     payload,
		}, nil

	default:
		return UnknownEvent{Type: env.Event, EventRef: env.Data.Reference}, nil
	}
}
