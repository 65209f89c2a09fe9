package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	PayoutMethodBank        = "bank"
	PayoutMethodMobileMoney = "mobile_money"
	PayoutMethodPayoneer    = "payoneer"
	PayoutMethodPaypal      = "paypal"
)

// PayoutMethod is a destination for withdrawals. Referenced by withdrawal
// transactions but owned by the payout-method management flow.
type PayoutMethod struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	Type           string
	AccountDetails map[string]any
	IsPrimary      bool
	IsVerified     bool
	CreatedAt      time.Time
}
