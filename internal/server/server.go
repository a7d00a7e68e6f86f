package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/VersatilVC/cybra-content-flow-sub002/internal/config"
	"github.com/VersatilVC/cybra-content-flow-sub002/internal/core/event"
	"github.com/VersatilVC/cybra-content-flow-sub002/internal/core/notify"
	"github.com/VersatilVC/cybra-content-flow-sub002/internal/core/retry"
	"github.com/VersatilVC/cybra-content-flow-sub002/internal/core/sweep"
	"github.com/VersatilVC/cybra-content-flow-sub002/internal/core/webhook"
	"github.com/VersatilVC/cybra-content-flow-sub002/internal/database"
	"github.com/VersatilVC/cybra-content-flow-sub002/internal/server/api"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// Run wires the service together and blocks until a shutdown signal.
func Run(ctx context.Context, cfg *config.Config) error {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err == nil {
		zerolog.SetGlobalLevel(level)
	}

	pool, err := database.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConnections)
	if err != nil {
		return fmt.Errorf("database connect: %w", err)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	store := database.NewStore(pool)

	// Auto-generate secrets on first boot
	jwtSecret, err := ensureSetting(ctx, store, "jwt_secret", 32)
	if err != nil {
		return fmt.Errorf("jwt secret: %w", err)
	}
	if cfg.Auth.JWTSecret != "" {
		jwtSecret = cfg.Auth.JWTSecret
	}

	callbackToken, err := ensureSetting(ctx, store, "callback_token", 32)
	if err != nil {
		return fmt.Errorf("callback token: %w", err)
	}

	adminPassword, err := ensureAdmin(ctx, store, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword)
	if err != nil {
		return fmt.Errorf("admin setup: %w", err)
	}
	if adminPassword != "" {
		log.Info().
			Str("username", cfg.Auth.AdminUsername).
			Str("password", adminPassword).
			Msg("admin account created (change the password after first login)")
	}

	bus := event.NewBus()

	emitter := notify.NewEmitter(store)
	emitter.SetupEventHandlers(bus)

	dispatcher := webhook.NewDispatcher(store, cfg.DispatchTimeout())
	engine := retry.New(store, dispatcher, cfg.Server.PublicURL, bus)
	sweeper := sweep.New(store, emitter)

	e := echo.New()
	e.HideBanner = true

	api.SetupRouter(e, api.RouterConfig{
		Store:         store,
		Bus:           bus,
		Engine:        engine,
		Sweeper:       sweeper,
		JWTSecret:     jwtSecret,
		JWTExpiry:     cfg.JWTExpiryDuration(),
		CallbackToken: callbackToken,
	})

	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	if cfg.Sweep.Enabled {
		go sweep.Run(sweepCtx, sweeper, cfg.SweepInterval())
	}

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sweepCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
	return nil
}

func ensureSetting(ctx context.Context, store *database.Store, key string, byteLen int) (string, error) {
	value, err := store.GetSetting(ctx, key)
	if err != nil {
		return "", err
	}
	if value != "" {
		return value, nil
	}

	b := make([]byte, byteLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	value = hex.EncodeToString(b)
	if err := store.SetSetting(ctx, key, value); err != nil {
		return "", err
	}
	return value, nil
}

// ensureAdmin creates the admin account on first boot and returns the
// generated password, or "" when the account already exists.
func ensureAdmin(ctx context.Context, store *database.Store, username, password string) (string, error) {
	if _, err := store.GetUserByUsername(ctx, username); err == nil {
		return "", nil
	} else if !errors.Is(err, database.ErrUserNotFound) {
		return "", err
	}

	generated := ""
	if password == "" {
		b := make([]byte, 12)
		if _, err := rand.Read(b); err != nil {
			return "", err
		}
		password = hex.EncodeToString(b)
		generated = password
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	if _, err := store.CreateUser(ctx, username, string(hash), "admin"); err != nil {
		return "", err
	}
	return generated, nil
}
