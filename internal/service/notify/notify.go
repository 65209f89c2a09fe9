// Package notify decouples ledger correctness from notification delivery:
// the engine publishes status-change events and never waits on consumers.
package notify

import (
	"time"

	"github.com/google/uuid"

	"github.com/soundrise/wallet/internal/logger"
)

// WithdrawalStatusChanged is emitted after every terminal transition.
// The notification sender (email, push) consumes these; delivery is its
// problem, not the ledger's.
type WithdrawalStatusChanged struct {
	TransactionID uuid.UUID
	UserID        uuid.UUID
	OldStatus     string
	NewStatus     string
	At            time.Time
}

type Notifier interface {
	NotifyStatusChanged(event WithdrawalStatusChanged)
}

// ChannelNotifier buffers events for an in-process consumer. Publishing
// never blocks: when the consumer lags, the oldest event is dropped and
// logged, the ledger write has already committed.
type ChannelNotifier struct {
	events chan WithdrawalStatusChanged
	logger logger.Logger
}

func NewChannelNotifier(buffer int, l logger.Logger) *ChannelNotifier {
	if buffer <= 0 {
		buffer = 64
	}

	return &ChannelNotifier{
		events: make(chan WithdrawalStatusChanged, buffer),
		logger: l,
	}
}

func (n *ChannelNotifier) NotifyStatusChanged(event WithdrawalStatusChanged) {
	for {
		select {
		case n.events <- event:
			return
		default:
		}

		select {
		case dropped := <-n.events:
			n.logger.Warn("Notification buffer full, dropping oldest event",
				"transaction_id", dropped.TransactionID,
				"new_status", dropped.NewStatus,
			)
		default:
		}
	}
}

// Events returns the consumer side of the buffer.
func (n *ChannelNotifier) Events() <-chan WithdrawalStatusChanged {
	return n.events
}

// NoOpNotifier discards events. Used in tests.
type NoOpNotifier struct{}

func (NoOpNotifier) NotifyStatusChanged(WithdrawalStatusChanged) {}
