package policy

import "github.com/attaboy/egm-bonus/internal/domain"

// PayMethodPolicy resolves which payout rail a bonus payment rides on,
// based on the total amount and the transaction's preferred method.
type PayMethodPolicy struct {
	// MaxCreditMeterAmount is the largest total paid directly to the credit
	// meter; above it the payout escalates to another rail.
	MaxCreditMeterAmount int64 `json:"max_credit_meter_amount"`

	// LargeWinLimit forces a handpay regardless of preference (jurisdictional
	// W-2G style threshold). Zero disables.
	LargeWinLimit int64 `json:"large_win_limit"`

	VoucherEnabled bool `json:"voucher_enabled"`
	WatEnabled     bool `json:"wat_enabled"`
}

// DefaultPayMethodPolicy returns the policy used when none is configured:
// credit up to $999.99, handpay at $10,000, voucher enabled, wat disabled.
func DefaultPayMethodPolicy() PayMethodPolicy {
	return PayMethodPolicy{
		MaxCreditMeterAmount: 99_999,
		LargeWinLimit:        1_000_000,
		VoucherEnabled:       true,
		WatEnabled:           false,
	}
}

// Determine resolves the pay method for a payment of the given total.
// A preferred method is honored when the policy allows it.
func (p PayMethodPolicy) Determine(total int64, preferred domain.PayMethod) domain.PayMethod {
	if p.LargeWinLimit > 0 && total >= p.LargeWinLimit {
		return domain.PayMethodHandpay
	}

	switch preferred {
	case domain.PayMethodHandpay:
		return domain.PayMethodHandpay
	case domain.PayMethodVoucher:
		if p.VoucherEnabled {
			return domain.PayMethodVoucher
		}
	case domain.PayMethodWat:
		if p.WatEnabled {
			return domain.PayMethodWat
		}
	case domain.PayMethodCredit:
		if p.MaxCreditMeterAmount == 0 || total <= p.MaxCreditMeterAmount {
			return domain.PayMethodCredit
		}
	}

	if p.MaxCreditMeterAmount == 0 || total <= p.MaxCreditMeterAmount {
		return domain.PayMethodCredit
	}
	if p.VoucherEnabled {
		return domain.PayMethodVoucher
	}
	return domain.PayMethodHandpay
}
