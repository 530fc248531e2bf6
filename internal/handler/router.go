package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/attaboy/egm-bonus/internal/auth"
)

// RouterConfig bundles everything the HTTP surface needs.
type RouterConfig struct {
	Logger     *slog.Logger
	Pool       *pgxpool.Pool
	JWT        *auth.JWTManager
	DeviceID   string
	CORSOrigin string

	Bonus    *BonusHandler
	GamePlay *GamePlayHandler
	Operator *OperatorHandler
}

// NewRouter assembles the cabinet's HTTP API. The host realm covers award
// and gameplay traffic; the operator realm covers the attendant station.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(Recovery(cfg.Logger))
	r.Use(RequestID)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(CORS(cfg.CORSOrigin))
	r.Use(JSONContentType)

	// Health (no auth)
	r.Get("/health", HealthHandler(cfg.Pool))

	// Host-authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(auth.AuthenticateHost(cfg.JWT, cfg.DeviceID))

		r.Route("/bonus", func(r chi.Router) {
			r.Post("/awards", cfg.Bonus.Award)
			r.Post("/awards/{bonusID}/cancel", cfg.Bonus.CancelByBonusID)
			r.Post("/awards/{bonusID}/ack", cfg.Bonus.AcknowledgeByBonusID)
			r.Post("/commit", cfg.Bonus.Commit)
			r.Get("/transactions", cfg.Bonus.ListTransactions)
			r.Get("/transactions/{id}", cfg.Bonus.GetTransaction)
			r.Post("/transactions/{id}/cancel", cfg.Bonus.Cancel)
			r.Post("/transactions/{id}/ack", cfg.Bonus.Acknowledge)
		})

		r.Route("/gameplay", func(r chi.Router) {
			r.Post("/game-started", cfg.GamePlay.GameStarted)
			r.Post("/game-idle", cfg.GamePlay.GameIdle)
			r.Post("/transfer-out-completed", cfg.GamePlay.TransferOutCompleted)
			r.Post("/transaction-completed", cfg.GamePlay.TransactionCompleted)
			r.Post("/operator-menu", cfg.GamePlay.OperatorMenu)
			r.Post("/id-invalidated", cfg.GamePlay.IDInvalidated)
			r.Post("/disabled", cfg.GamePlay.Disabled)
			r.Put("/game-end-delay", cfg.GamePlay.SetGameEndDelay)
			r.Delete("/game-end-delay", cfg.GamePlay.SkipGameEndDelay)
		})
	})

	// Operator-authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(auth.AuthenticateOperator(cfg.JWT))

		r.Route("/operator", func(r chi.Router) {
			r.Get("/transfers", cfg.Operator.ListPendingTransfers)
			r.Get("/transactions", cfg.Bonus.ListTransactions)
			r.With(auth.RequireRole(auth.RoleAttendant, auth.RoleTechnician)).
				Post("/transfers/{traceID}/confirm", cfg.Operator.ConfirmTransfer)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		RespondJSON(w, http.StatusNotFound, map[string]string{
			"code":    "NOT_FOUND",
			"message": "route not found",
		})
	})

	return r
}
