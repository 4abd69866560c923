package app

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

	"github.com/redis/go-redis/v9"

	"go-wine-shop/internal/authz"
	"go-wine-shop/internal/config"
	"go-wine-shop/internal/database"
	"go-wine-shop/internal/event"
	"go-wine-shop/internal/handler"
	"go-wine-shop/internal/middleware"
	"go-wine-shop/internal/repository"
	"go-wine-shop/internal/router"
	"go-wine-shop/internal/service"
	"go-wine-shop/internal/token"
	"go-wine-shop/internal/util"
)

type App struct {
	server       *http.Server
	cleanupFuncs []func()
}

type stores struct {
	users  service.UserStore
	tokens service.RefreshTokenStore
	health handler.Pinger
}

func New(cfg *config.Config) (*App, error) {
	ctx := context.Background()
	a := &App{}

	st, err := a.openStores(ctx, cfg)
	if err != nil {
		a.cleanup()
		return nil, err
	}

	codec, err := token.NewCodec(token.Options{
		Secret:      cfg.JWTSecret,
		Issuer:      cfg.JWTIssuer,
		RolesClaim:  cfg.JWTRolesClaim,
		UserIDClaim: cfg.JWTUserIDClaim,
	})
	if err != nil {
		a.cleanup()
		return nil, fmt.Errorf("failed to initialize token codec: %w", err)
	}

	hasher, err := util.NewPasswordHasher(cfg.BcryptCost)
	if err != nil {
		a.cleanup()
		return nil, fmt.Errorf("failed to initialize password hasher: %w", err)
	}

	bus := event.NewBus()
	if err := a.startEventForwarding(cfg, bus); err != nil {
		a.cleanup()
		return nil, err
	}

	mapper := authz.NewMapper(cfg.AuthorityPrefix)
	refreshService := service.NewRefreshTokenService(st.tokens, cfg.JWTRefreshTTL, time.Now)
	authService := service.NewAuthService(st.users, refreshService, codec, mapper, hasher, bus, service.AuthOptions{
		AccessTTL:   cfg.JWTAccessTTL,
		TokenPrefix: cfg.JWTTokenPrefix,
		PhoneRegion: cfg.PhoneDefaultRegion,
	})
	userService := service.NewUserService(st.users, refreshService, hasher, bus, cfg.PhoneDefaultRegion)
	roleService := service.NewRoleService(mapper)

	if cfg.SeedsSuperAdmin() {
		if err := userService.EnsureSuperAdmin(ctx, cfg.SeedSuperAdminEmail, cfg.SeedSuperAdminPassword); err != nil {
			a.cleanup()
			return nil, fmt.Errorf("failed to seed super admin: %w", err)
		}
	}

	rateLimit, err := a.rateLimiter(ctx, cfg)
	if err != nil {
		a.cleanup()
		return nil, err
	}

	appRouter := router.New(cfg, mapper, middleware.NewAuthMiddleware(authService, cfg.JWTHeaderName), rateLimit, router.Handlers{
		Auth:   handler.NewAuthHandler(authService),
		User:   handler.NewUserHandler(userService),
		Role:   handler.NewRoleHandler(roleService),
		Health: handler.NewHealthHandler(st.health),
	})

	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	go refreshService.StartSweepTicker(sweepCtx, cfg.RefreshSweepInterval)
	a.cleanupFuncs = append(a.cleanupFuncs, sweepCancel)

	a.server = &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return a, nil
}

func (a *App) openStores(ctx context.Context, cfg *config.Config) (stores, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		slog.Warn("using in-memory store; data is lost on restart")
		users, tokens := repository.NewMemoryRepositories()
		return stores{users: users, tokens: tokens}, nil
	}

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return stores{}, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.cleanupFuncs = append(a.cleanupFuncs, db.Close)

	if err := db.EnsureSchema(ctx); err != nil {
		return stores{}, fmt.Errorf("failed to ensure database schema: %w", err)
	}
	if err := db.SeedRoles(ctx); err != nil {
		return stores{}, fmt.Errorf("failed to seed roles: %w", err)
	}
	slog.Info("database ready")

	return stores{
		users:  repository.NewUserRepository(db.Pool),
		tokens: repository.NewTokenRepository(db.Pool),
		health: db,
	}, nil
}

func (a *App) startEventForwarding(cfg *config.Config, bus event.Bus) error {
	if cfg.RabbitMQURL == "" {
		return nil
	}

	publisher, err := event.DialAMQP(cfg.RabbitMQURL, cfg.EventsQueue)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	forwardCtx, cancel := context.WithCancel(context.Background())
	go event.Forward(forwardCtx, bus, publisher)
	slog.Info("forwarding domain events", "queue", cfg.EventsQueue)

	a.cleanupFuncs = append(a.cleanupFuncs, cancel, func() {
		if err := publisher.Close(); err != nil {
			slog.Warn("close RabbitMQ publisher", "error", err)
		}
	})
	return nil
}

func (a *App) rateLimiter(ctx context.Context, cfg *config.Config) (*middleware.RateLimitMiddleware, error) {
	if cfg.RedisAddr == "" {
		return middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Info("rate limiting shared through Redis", "addr", cfg.RedisAddr)
	a.cleanupFuncs = append(a.cleanupFuncs, func() {
		_ = client.Close()
	})
	return middleware.NewRedisRateLimitMiddleware(client, cfg.RateLimitRPM, cfg.AuthRateLimitRPM), nil
}

func (a *App) Run() error {
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.cleanup()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	a.cleanup()
	slog.Info("server stopped")
	return nil
}

// cleanup releases resources in reverse order of acquisition.
func (a *App) cleanup() {
	for i := len(a.cleanupFuncs) - 1; i >= 0; i-- {
		a.cleanupFuncs[i]()
	}
	a.cleanupFuncs = nil
}
