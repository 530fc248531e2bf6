package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/attaboy/egm-bonus/internal/bonus"
	"github.com/attaboy/egm-bonus/internal/domain"
)

// TransactionReader serves the read endpoints straight from storage,
// bypassing the engine.
type TransactionReader interface {
	FindTransaction(ctx context.Context, transactionID int64) (*domain.BonusTransaction, error)
	ListTransactions(ctx context.Context, limit int) ([]*domain.BonusTransaction, error)
}

// BonusHandler exposes the bonus engine over HTTP to the host system.
type BonusHandler struct {
	engine *bonus.Handler
	reader TransactionReader
}

// NewBonusHandler creates the bonus HTTP handler.
func NewBonusHandler(engine *bonus.Handler, reader TransactionReader) *BonusHandler {
	return &BonusHandler{engine: engine, reader: reader}
}

// Award handles POST /bonus/awards. The body carries a "mode" discriminator
// alongside the mode-specific request fields.
func (h *BonusHandler) Award(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		RespondError(w, domain.ErrValidation("unreadable request body"))
		return
	}

	var envelope struct {
		Mode string `json:"mode"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		RespondError(w, domain.ErrValidation("invalid JSON body"))
		return
	}

	req, err := decodeAwardRequest(envelope.Mode, body)
	if err != nil {
		RespondError(w, err)
		return
	}

	tx, err := h.engine.Award(r.Context(), req, h.engine.InAudit())
	if err != nil {
		RespondError(w, err)
		return
	}
	if tx == nil {
		RespondError(w, domain.ErrValidation(fmt.Sprintf("no strategy for mode %s", envelope.Mode)))
		return
	}

	RespondJSON(w, http.StatusCreated, tx)
}

func decodeAwardRequest(modeName string, body []byte) (domain.BonusRequest, error) {
	mode, ok := domain.ParseBonusMode(modeName)
	if !ok {
		return nil, domain.ErrValidation(fmt.Sprintf("unknown bonus mode %q", modeName))
	}

	var req domain.BonusRequest
	var err error
	switch mode {
	case domain.ModeStandard:
		var sr domain.StandardRequest
		err = json.Unmarshal(body, &sr)
		req = sr
	case domain.ModeGameWin:
		var gr domain.GameWinRequest
		err = json.Unmarshal(body, &gr)
		req = gr
	case domain.ModeWagerMatch:
		var wr domain.WagerMatchRequest
		err = json.Unmarshal(body, &wr)
		req = wr
	case domain.ModeMultipleJackpotTime:
		var mr domain.MultipleJackpotTimeRequest
		err = json.Unmarshal(body, &mr)
		req = mr
	}
	if err != nil {
		return nil, domain.ErrValidation(fmt.Sprintf("invalid %s request: %v", modeName, err))
	}
	return req, nil
}

// Commit handles POST /bonus/commit. An optional payment_token lets the
// caller hand over an already-held transfer transaction.
func (h *BonusHandler) Commit(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PaymentToken string `json:"payment_token,omitempty"`
	}
	if r.ContentLength > 0 {
		if err := DecodeJSON(r, &body); err != nil {
			RespondError(w, domain.ErrValidation("invalid JSON body"))
			return
		}
	}

	token := uuid.Nil
	if body.PaymentToken != "" {
		parsed, err := uuid.Parse(body.PaymentToken)
		if err != nil {
			RespondError(w, domain.ErrValidation("invalid payment_token"))
			return
		}
		token = parsed
	}

	started := h.engine.Commit(r.Context(), token, h.engine.InAudit())
	RespondJSON(w, http.StatusAccepted, map[string]bool{"started": started})
}

// Cancel handles POST /bonus/transactions/{id}/cancel.
func (h *BonusHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		RespondError(w, domain.ErrValidation("invalid transaction id"))
		return
	}

	cancelled, err := h.engine.Cancel(r.Context(), id)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
}

// CancelByBonusID handles POST /bonus/awards/{bonusID}/cancel. The host
// cancels by its own bonus identifier, not the ledger id.
func (h *BonusHandler) CancelByBonusID(w http.ResponseWriter, r *http.Request) {
	bonusID := chi.URLParam(r, "bonusID")
	if bonusID == "" {
		RespondError(w, domain.ErrValidation("missing bonus id"))
		return
	}

	cancelled, err := h.engine.CancelBonus(r.Context(), bonusID)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
}

// Acknowledge handles POST /bonus/transactions/{id}/ack.
func (h *BonusHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		RespondError(w, domain.ErrValidation("invalid transaction id"))
		return
	}

	acked, err := h.engine.Acknowledge(r.Context(), id)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]bool{"acknowledged": acked})
}

// AcknowledgeByBonusID handles POST /bonus/awards/{bonusID}/ack. The host
// acknowledges by its own bonus identifier, not the ledger id.
func (h *BonusHandler) AcknowledgeByBonusID(w http.ResponseWriter, r *http.Request) {
	bonusID := chi.URLParam(r, "bonusID")
	if bonusID == "" {
		RespondError(w, domain.ErrValidation("missing bonus id"))
		return
	}

	acked, err := h.engine.AcknowledgeBonus(r.Context(), bonusID)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]bool{"acknowledged": acked})
}

// GetTransaction handles GET /bonus/transactions/{id}.
func (h *BonusHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		RespondError(w, domain.ErrValidation("invalid transaction id"))
		return
	}

	tx, err := h.reader.FindTransaction(r.Context(), id)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, tx)
}

// ListTransactions handles GET /bonus/transactions?limit=n, newest first.
func (h *BonusHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 500 {
			RespondError(w, domain.ErrValidation("limit must be between 1 and 500"))
			return
		}
		limit = n
	}

	txs, err := h.reader.ListTransactions(r.Context(), limit)
	if err != nil {
		RespondError(w, err)
		return
	}
	if txs == nil {
		txs = []*domain.BonusTransaction{}
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{"transactions": txs})
}
