package domain

import "github.com/google/uuid"

// PaymentMarker is the singleton record of the EGM-wide payment token this
// subsystem currently holds. It is the crash-recovery anchor: durable, read
// before anything else at startup, cleared exactly when the owned payment
// work finishes or when recovery decides the token was never ours.
type PaymentMarker struct {
	TransactionID uuid.UUID `json:"transaction_id"`

	// OwnedTransaction false means the recorded token belongs to another
	// component of the EGM; recovery must clear the marker and do nothing.
	OwnedTransaction bool `json:"owned_transaction"`
}
