package gaming

import "sync"

// EGM meter names incremented by bonus payment completion, split by payout
// rail and by who physically paid.
const (
	MeterBonusEgmPaid       = "bonus_egm_paid_amount"
	MeterBonusHandpayPaid   = "bonus_handpay_paid_amount"
	MeterBonusMachinePaid   = "bonus_machine_paid_amount"
	MeterBonusAttendantPaid = "bonus_attendant_paid_amount"
)

// MeterProvider accumulates regulatory meters.
type MeterProvider interface {
	Increment(name string, amount int64)
}

// LocalMeters is an in-process meter bank.
type LocalMeters struct {
	mu     sync.Mutex
	values map[string]int64
}

// NewLocalMeters creates an empty meter bank.
func NewLocalMeters() *LocalMeters {
	return &LocalMeters{values: make(map[string]int64)}
}

func (m *LocalMeters) Increment(name string, amount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[name] += amount
}

// Value reads a meter.
func (m *LocalMeters) Value(name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[name]
}
