package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/attaboy/egm-bonus/internal/auth"
	"github.com/attaboy/egm-bonus/internal/bonus"
	"github.com/attaboy/egm-bonus/internal/gaming"
	"github.com/attaboy/egm-bonus/internal/handler"
	"github.com/attaboy/egm-bonus/internal/infra"
	"github.com/attaboy/egm-bonus/internal/policy"
	"github.com/attaboy/egm-bonus/internal/repository"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("bonusd failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	deviceID := uuid.New()
	if cfg.DeviceID != "" {
		deviceID, err = uuid.Parse(cfg.DeviceID)
		if err != nil {
			return fmt.Errorf("parse DEVICE_ID: %w", err)
		}
	}

	if err := infra.RunMigrations(cfg.DSN(), logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	// Storage
	store := repository.NewStore(pool, cfg.MaxPendingTransactions)

	// Cabinet subsystems
	registry := gaming.NewTransferRegistry(logger)
	transfers := gaming.NewLocalTransferOut(registry, logger)
	wallet := gaming.NewLocalWallet(cfg.OpeningCredits)
	gamePlay := gaming.NewLocalGamePlay(cfg.MaxBet)

	// Bonus engine
	deps := bonus.Deps{
		Ledger:      store,
		Markers:     store,
		Payouts:     store,
		Events:      store,
		Wallet:      wallet,
		Transfers:   transfers,
		Registry:    registry,
		GamePlay:    gamePlay,
		Identity:    gaming.NewLocalIdentity(),
		Display:     gaming.NewLocalDisplay(),
		Meters:      gaming.NewLocalMeters(),
		Coordinator: gaming.NewLocalCoordinator(),
		PayPolicy: policy.PayMethodPolicy{
			MaxCreditMeterAmount: cfg.MaxCreditMeterAmount,
			LargeWinLimit:        cfg.LargeWinLimit,
			VoucherEnabled:       cfg.VoucherEnabled,
			WatEnabled:           cfg.WatEnabled,
		},
		Limits: policy.AwardLimitPolicy{
			DisplayLimit:         cfg.DisplayLimit,
			DisplayLimitText:     cfg.DisplayLimitText,
			DisplayLimitDuration: cfg.DisplayLimitDuration,
			WagerMatchLimit:      cfg.WagerMatchLimit,
			EligibilityTimeout:   cfg.EligibilityTimeout,
		},
		Logger: logger,
	}
	factory, err := bonus.NewStrategyFactory(deps)
	if err != nil {
		return fmt.Errorf("build strategies: %w", err)
	}
	engine, err := bonus.NewHandler(deps, factory, deviceID)
	if err != nil {
		return fmt.Errorf("build bonus engine: %w", err)
	}

	// Crash recovery before taking traffic.
	engine.Initialize(ctx)

	// HTTP surface
	jwtMgr := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTHostExpiry, cfg.JWTOperatorExpiry)
	router := handler.NewRouter(handler.RouterConfig{
		Logger:     logger,
		Pool:       pool,
		JWT:        jwtMgr,
		DeviceID:   deviceID.String(),
		CORSOrigin: cfg.CORSAllowedOrigins,
		Bonus:      handler.NewBonusHandler(engine, store),
		GamePlay:   handler.NewGamePlayHandler(engine),
		Operator:   handler.NewOperatorHandler(transfers),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.APIPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("bonusd listening", "port", cfg.APIPort, "device_id", deviceID)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("bonusd stopped")
	return nil
}
