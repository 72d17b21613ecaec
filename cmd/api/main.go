// main.go
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

	"github.com/Marga-Ghale/group-calendar-backend/internal/api"
	"github.com/Marga-Ghale/group-calendar-backend/internal/config"
	"github.com/Marga-Ghale/group-calendar-backend/internal/cron"
	"github.com/Marga-Ghale/group-calendar-backend/internal/db"
	"github.com/Marga-Ghale/group-calendar-backend/internal/email"
	"github.com/Marga-Ghale/group-calendar-backend/internal/logging"
	"github.com/Marga-Ghale/group-calendar-backend/internal/repository"
	"github.com/Marga-Ghale/group-calendar-backend/internal/seed"
	"github.com/Marga-Ghale/group-calendar-backend/internal/service"
	"github.com/Marga-Ghale/group-calendar-backend/internal/socket"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// ============================================
	// Load environment and configuration
	// ============================================
	envErr := godotenv.Load()
	cfg := config.Load()
	logging.Setup(cfg.Environment, cfg.LogLevel)
	if envErr != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	// ============================================
	// Storage
	// ============================================
	repos, storePinger, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	components := map[string]string{"cache": "disabled", "email": "disabled"}
	checks := map[string]api.Pinger{}
	if storePinger != nil {
		checks["database"] = storePinger
	}

	// Redis is optional; the group repository reads through it when present.
	if cfg.RedisURL != "" {
		redisDB, err := db.NewRedisDB(ctx, cfg.RedisURL)
		if err != nil {
			slog.Warn("redis unavailable, continuing without cache", "error", err)
		} else {
			defer redisDB.Close()
			repos.WithGroupCache(redisDB, cfg.GroupCacheTTL)
			delete(components, "cache")
			checks["cache"] = redisDB
		}
	}

	// ============================================
	// Email (optional)
	// ============================================
	var mailer service.InvitationMailer
	if cfg.SMTPHost != "" {
		emailSvc := email.NewService(&email.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
			UseTLS:   cfg.SMTPUseTLS,
		})
		queue := email.NewEmailQueue(emailSvc, cfg.EmailWorkers)
		defer queue.Stop()
		mailer = queue
		components["email"] = "configured"
	} else {
		slog.Warn("email not configured (SMTP_HOST not set), invitations are recorded without mail")
	}

	// ============================================
	// WebSocket hub and services
	// ============================================
	hub := socket.NewHub()
	go hub.Run()
	defer hub.Stop()

	services := service.NewServices(&service.ServiceDeps{
		Config:      cfg,
		Repos:       repos,
		Mailer:      mailer,
		Broadcaster: socket.NewBroadcaster(hub),
	})

	wsHandler := socket.NewHandler(
		hub,
		services.Auth,
		groupRoomAuthorizer(services.Group),
		userGroupLister(services.User),
		cfg.CORSOrigins,
	)

	if cfg.SeedData {
		if err := seed.SeedData(ctx, services, repos.UserRepo); err != nil {
			slog.Warn("seeding failed", "error", err)
		}
	}

	// ============================================
	// Cron
	// ============================================
	scheduler := cron.NewScheduler(repos.UserRepo)
	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer scheduler.Stop()

	// ============================================
	// HTTP server
	// ============================================
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	router := api.NewRouter(api.RouterDeps{
		Config:     cfg,
		Services:   services,
		WSHandler:  wsHandler,
		Hub:        hub,
		Registry:   registry,
		Logger:     slog.Default(),
		Components: components,
		Checks:     checks,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Port, "store", cfg.StoreDriver, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return fmt.Errorf("listen: %w", err)
	case sig := <-quit:
		slog.Info("shutting down server", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("server exited")
	return nil
}

// openStore connects the configured backend and returns its repositories, a
// pinger for /health (nil for the memory store) and a close function.
func openStore(ctx context.Context, cfg *config.Config) (*repository.Repositories, api.Pinger, func(), error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		if err := db.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
			return nil, nil, nil, fmt.Errorf("migrations: %w", err)
		}
		pg, err := db.NewPostgresDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		return repository.NewRepositories(pg.Pool), pg, pg.Close, nil

	case config.StoreMongo:
		m, err := db.NewMongoDB(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, nil, nil, err
		}
		repos, err := repository.NewMongoRepositories(ctx, m.Database)
		if err != nil {
			m.Close()
			return nil, nil, nil, fmt.Errorf("mongo indexes: %w", err)
		}
		return repos, m, m.Close, nil

	case config.StoreMemory:
		slog.Warn("using in-memory store, data is lost on restart")
		return repository.NewMemoryRepositories(), nil, func() {}, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}

// groupRoomAuthorizer lets a socket join "group:<id>" only when the user can
// view that group, and "user:<id>" only for itself.
func groupRoomAuthorizer(groups service.GroupService) socket.RoomAuthorizer {
	return func(ctx context.Context, userID, room string) bool {
		if room == socket.UserRoom(userID) {
			return true
		}
		groupID, ok := socket.ParseGroupRoom(room)
		if !ok {
			return false
		}
		_, err := groups.Get(ctx, groupID, userID)
		return err == nil
	}
}

func userGroupLister(users service.UserService) socket.GroupLister {
	return func(ctx context.Context, userID string) ([]string, error) {
		user, err := users.GetByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		return user.GroupIDs, nil
	}
}
