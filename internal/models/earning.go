package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EarningStatusPending = "pending"
	EarningStatusPaid    = "paid"
)

// Earning is a royalty record credited by the ingestion pipeline.
// Immutable once status is 'paid'.
type Earning struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	SourceID    string
	Platform    string
	Amount      decimal.Decimal
	Currency    string
	Status      string
	PeriodStart time.Time
	PeriodEnd   time.Time
	CreatedAt   time.Time
}
