// internal/app/server.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"authsession-service/internal/config"
	"authsession-service/internal/db"
	authHandler "authsession-service/internal/handlers/auth"
	healthHandler "authsession-service/internal/handlers/health"
	wsHandler "authsession-service/internal/handlers/websocket"
	"authsession-service/internal/middleware"
	"authsession-service/internal/pkg/jwt"
	"authsession-service/internal/pkg/logger"
	"authsession-service/internal/pkg/session"
	"authsession-service/internal/repository/postgres"
	authUsecase "authsession-service/internal/service/auth"
	"authsession-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	cfg    *config.AppConfig
	engine *gin.Engine
	logger *zap.Logger

	httpServer *http.Server
	database   *postgres.DB
	redis      redis.UniversalClient
	stop       context.CancelFunc
}

func NewServer(cfg *config.AppConfig, log *zap.Logger) *Server {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	return &Server{
		cfg:    cfg,
		engine: gin.New(),
		logger: logger.OrNop(log),
	}
}

// Start wires every component and blocks serving HTTP until Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	bgCtx, stop := context.WithCancel(context.Background())
	s.stop = stop

	// ----- PostgreSQL -----
	pool, err := db.ConnectDB(ctx, s.cfg.DatabaseURL, s.cfg.DBMaxConns)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	s.database = postgres.NewDB(pool)
	s.logger.Info("connected to PostgreSQL")

	// ----- Redis -----
	redisClient, err := db.NewRedisClient(ctx, s.cfg.Redis())
	if err != nil {
		// The cache is best effort; keep the client so it can recover.
		s.logger.Warn("redis unreachable at startup, running degraded", zap.Error(err))
		if redisClient, err = db.NewUniversalClient(s.cfg.Redis()); err != nil {
			return fmt.Errorf("failed to build Redis client: %w", err)
		}
	} else {
		s.logger.Info("connected to Redis")
	}
	s.redis = redisClient

	// ----- JWT Manager -----
	jwtManager, err := jwt.LoadAndBuild(s.cfg.JWT())
	if err != nil {
		return fmt.Errorf("failed to load JWT manager: %w", err)
	}

	// ----- Repositories -----
	sessionRepo := postgres.NewSessionRepository(pool)
	accountRepo := postgres.NewAccountRepository(pool)

	// ----- WebSocket Hub -----
	hub := websocket.NewHub(s.logger)
	go hub.Run(bgCtx)

	// ----- Session Manager & Throttle -----
	cache := session.NewRedisCache(redisClient, s.logger)
	sessionManager := session.NewManager(sessionRepo, cache, s.logger,
		session.WithMaxSessions(s.cfg.SessionMaxPerAccount),
		session.WithListener(hub),
	)
	throttle := session.NewLoginThrottle(redisClient, s.logger, s.cfg.LoginMaxFailures, s.cfg.LoginLockDuration)

	sweeper := session.NewSweeper(sessionManager, s.cfg.SessionSweepInterval, s.logger)
	go sweeper.Run(bgCtx)

	// ----- Services (Usecases) -----
	passwords := authUsecase.NewBcryptVerifier(s.cfg.BcryptCost)
	authService := authUsecase.NewAuthService(
		accountRepo,
		passwords,
		jwtManager,
		sessionManager,
		throttle,
		authUsecase.SessionPolicy{
			AbsoluteTimeout:   s.cfg.SessionAbsoluteTimeout,
			IdleTimeout:       s.cfg.SessionIdleTimeout,
			RememberMeTimeout: s.cfg.SessionRememberMeTimeout,
		},
		s.logger,
	)

	// ----- Initialize Super Admin -----
	seed := authUsecase.AdminSeed{
		Username: s.cfg.AdminUsername,
		Email:    s.cfg.AdminEmail,
		Password: s.cfg.AdminPassword,
	}
	if err := authUsecase.EnsureAdminAccount(ctx, accountRepo, passwords, seed, s.logger); err != nil {
		// Don't fail startup, just log the error
		s.logger.Error("failed to initialize super admin", zap.Error(err))
	}

	// ----- Middlewares -----
	s.engine.Use(
		middleware.RecoveryMiddleware(s.logger),
		middleware.LoggingMiddleware(s.logger),
	)

	// ----- Router -----
	SetupRouter(s.engine, &Handlers{
		AuthHandler:    authHandler.NewAuthHandler(authService, s.logger),
		HealthHandler:  healthHandler.NewHandler(s.database, cache),
		WSHandler:      wsHandler.NewWebSocketHandler(hub, s.cfg.AllowedOrigins(), s.logger),
		AuthMiddleware: middleware.NewAuthMiddleware(authService, s.logger),
	})

	// ----- Start HTTP -----
	s.httpServer = &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           middleware.NewCORS(s.cfg.AllowedOrigins()).Handler(s.engine),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("server listening", zap.String("addr", s.cfg.HTTPAddr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains HTTP traffic, stops background workers and closes the pools.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	if s.stop != nil {
		s.stop()
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if s.database != nil {
		s.database.Close()
	}
	return errors.Join(errs...)
}
