package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/attaboy/egm-bonus/internal/domain"
	"github.com/attaboy/egm-bonus/internal/gaming"
)

// OperatorHandler serves the attendant station: pending transfer-outs and
// their confirmations (handpay keyoff, voucher print result, WAT ack).
type OperatorHandler struct {
	transfers *gaming.LocalTransferOut
}

// NewOperatorHandler creates the operator HTTP handler.
func NewOperatorHandler(transfers *gaming.LocalTransferOut) *OperatorHandler {
	return &OperatorHandler{transfers: transfers}
}

// ListPendingTransfers handles GET /operator/transfers.
func (h *OperatorHandler) ListPendingTransfers(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"transfers": h.transfers.Pending(),
	})
}

// ConfirmTransfer handles POST /operator/transfers/{traceID}/confirm. The
// rail field reports where the transfer actually settled; empty means it
// settled as requested.
func (h *OperatorHandler) ConfirmTransfer(w http.ResponseWriter, r *http.Request) {
	traceID, err := uuid.Parse(chi.URLParam(r, "traceID"))
	if err != nil {
		RespondError(w, domain.ErrValidation("invalid trace id"))
		return
	}

	var body struct {
		Completed     bool                `json:"completed"`
		Rail          domain.TransferRail `json:"rail,omitempty"`
		CreditHandpay bool                `json:"credit_handpay,omitempty"`
	}
	if err := DecodeJSON(r, &body); err != nil {
		RespondError(w, domain.ErrValidation("invalid JSON body"))
		return
	}

	switch body.Rail {
	case "", domain.RailHandpay, domain.RailVoucher, domain.RailWat:
	default:
		RespondError(w, domain.ErrValidation("unknown transfer rail"))
		return
	}

	if !h.transfers.Confirm(traceID, body.Completed, body.Rail, body.CreditHandpay) {
		RespondError(w, domain.ErrNotFound("pending transfer", traceID.String()))
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"status": "confirmed"})
}
