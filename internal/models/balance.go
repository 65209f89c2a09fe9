package models

import (
	"github.com/shopspring/decimal"
)

// WalletBalance is derived from earnings and withdrawal transactions on
// every read. It is never stored.
//
//	available = paid earnings - withdrawals in (processing, paid)
//	pending   = pending earnings + pending withdrawals
type WalletBalance struct {
	TotalEarnings    decimal.Decimal
	AvailableBalance decimal.Decimal
	PendingBalance   decimal.Decimal
	Currency         string
}
