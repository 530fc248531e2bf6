package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransferRail is the asynchronous payout rail a transfer-out rides on.
type TransferRail string

const (
	RailHandpay TransferRail = "handpay"
	RailVoucher TransferRail = "voucher"
	RailWat     TransferRail = "wat"
)

// PayMethodForRail maps a completed transfer's rail back to the pay method
// recorded on the bonus transaction.
func PayMethodForRail(rail TransferRail) PayMethod {
	switch rail {
	case RailHandpay:
		return PayMethodHandpay
	case RailVoucher:
		return PayMethodVoucher
	case RailWat:
		return PayMethodWat
	default:
		return PayMethodAny
	}
}

// RailForPayMethod maps a resolved pay method to its transfer rail.
// Credit is not a transfer rail; it is paid synchronously into the wallet.
func RailForPayMethod(method PayMethod) (TransferRail, bool) {
	switch method {
	case PayMethodHandpay:
		return RailHandpay, true
	case PayMethodVoucher:
		return RailVoucher, true
	case PayMethodWat:
		return RailWat, true
	default:
		return "", false
	}
}

// Payout is a bonus_payouts row: the durable record of one transfer-out
// request, written before the transfer is awaited so a crash between the
// request and its completion event is recoverable from the ledger alone.
type Payout struct {
	TraceID       uuid.UUID    `json:"trace_id"`
	TransactionID int64        `json:"transaction_id"`
	Rail          TransferRail `json:"rail"`

	CashableAmount int64 `json:"cashable_amount"`
	NonCashAmount  int64 `json:"non_cash_amount"`
	PromoAmount    int64 `json:"promo_amount"`

	// Voided marks a transfer the rail rejected or failed; voided rows are
	// excluded from recovery reconciliation.
	Voided bool `json:"voided"`

	CreatedAt time.Time `json:"created_at"`
}

// Total is the payout total across fund categories.
func (p *Payout) Total() int64 {
	return p.CashableAmount + p.NonCashAmount + p.PromoAmount
}
