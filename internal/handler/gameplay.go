package handler

import (
	"net/http"
	"time"

	"github.com/attaboy/egm-bonus/internal/bonus"
	"github.com/attaboy/egm-bonus/internal/domain"
)

// GamePlayHandler feeds cabinet lifecycle events into the bonus engine. The
// game process posts these; they are fire-and-forget from its point of view.
type GamePlayHandler struct {
	engine *bonus.Handler
}

// NewGamePlayHandler creates the gameplay event HTTP handler.
func NewGamePlayHandler(engine *bonus.Handler) *GamePlayHandler {
	return &GamePlayHandler{engine: engine}
}

// GameStarted handles POST /gameplay/game-started.
func (h *GamePlayHandler) GameStarted(w http.ResponseWriter, r *http.Request) {
	h.engine.HandleGameStarted(r.Context())
	RespondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// GameIdle handles POST /gameplay/game-idle.
func (h *GamePlayHandler) GameIdle(w http.ResponseWriter, r *http.Request) {
	h.engine.HandleGameIdle(r.Context())
	RespondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// TransferOutCompleted handles POST /gameplay/transfer-out-completed.
func (h *GamePlayHandler) TransferOutCompleted(w http.ResponseWriter, r *http.Request) {
	h.engine.HandleTransferOutCompleted(r.Context())
	RespondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// TransactionCompleted handles POST /gameplay/transaction-completed.
func (h *GamePlayHandler) TransactionCompleted(w http.ResponseWriter, r *http.Request) {
	h.engine.HandleTransactionCompleted(r.Context())
	RespondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// OperatorMenu handles POST /gameplay/operator-menu.
func (h *GamePlayHandler) OperatorMenu(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Entered bool `json:"entered"`
	}
	if err := DecodeJSON(r, &body); err != nil {
		RespondError(w, domain.ErrValidation("invalid JSON body"))
		return
	}
	h.engine.HandleOperatorMenu(r.Context(), body.Entered)
	RespondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// IDInvalidated handles POST /gameplay/id-invalidated.
func (h *GamePlayHandler) IDInvalidated(w http.ResponseWriter, r *http.Request) {
	h.engine.HandleIDInvalidated(r.Context())
	RespondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// Disabled handles POST /gameplay/disabled.
func (h *GamePlayHandler) Disabled(w http.ResponseWriter, r *http.Request) {
	h.engine.HandleDisabled(r.Context())
	RespondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// SetGameEndDelay handles PUT /gameplay/game-end-delay. A zero delay clears
// the hold; supplying duration or games arms a budgeted delay that expires
// on its own.
func (h *GamePlayHandler) SetGameEndDelay(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DelayMS     int64 `json:"delay_ms"`
		DurationMS  int64 `json:"duration_ms,omitempty"`
		Games       int   `json:"games,omitempty"`
		RequireBoth bool  `json:"require_both,omitempty"`
	}
	if err := DecodeJSON(r, &body); err != nil {
		RespondError(w, domain.ErrValidation("invalid JSON body"))
		return
	}
	if body.DelayMS < 0 || body.DurationMS < 0 || body.Games < 0 {
		RespondError(w, domain.ErrValidation("delay, duration and games must be non-negative"))
		return
	}

	delay := time.Duration(body.DelayMS) * time.Millisecond
	if body.DurationMS > 0 || body.Games > 0 {
		duration := time.Duration(body.DurationMS) * time.Millisecond
		h.engine.SetGameEndDelayBudget(r.Context(), delay, duration, body.Games, body.RequireBoth)
	} else {
		h.engine.SetGameEndDelay(r.Context(), delay)
	}
	RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// SkipGameEndDelay handles DELETE /gameplay/game-end-delay.
func (h *GamePlayHandler) SkipGameEndDelay(w http.ResponseWriter, r *http.Request) {
	h.engine.SkipGameEndDelay(r.Context())
	RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
