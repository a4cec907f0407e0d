package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/qrtrack/apiserver/config"
	"github.com/qrtrack/apiserver/internal/db"
	"github.com/qrtrack/apiserver/internal/handlers"
	"github.com/qrtrack/apiserver/internal/mq"
	"github.com/qrtrack/apiserver/internal/services"
	"github.com/qrtrack/apiserver/internal/sink"
	"github.com/qrtrack/apiserver/internal/store"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	broker     *mq.MQ
}

// New constructs a Server with basic middleware and defaults.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	qrRepo := store.NewQRRepository(dbConn)
	userRepo := store.NewUserRepository(dbConn)
	eventRepo := store.NewScanEventRepository(dbConn)

	relay, broker, err := buildRelay(ctx, cfg)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	qrService := services.NewQRService(qrRepo, services.DefaultRender)
	userService := services.NewUserService(userRepo)
	scanService := services.NewScanService(qrRepo, eventRepo, relay, cfg.Scan.DestinationBase)

	jwtSecret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if jwtSecret == "" {
		_ = dbConn.Close()
		return nil, errors.New("JWT_SECRET is required")
	}

	authMiddleware := handlers.RequireAuth(jwtSecret)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, userService, jwtSecret)
	})
	router.Route("/qrcodes", func(r chi.Router) {
		handlers.QRRouter(r, qrService, scanService, authMiddleware)
	})
	router.Route("/scan", func(r chi.Router) {
		handlers.ScanRouter(r, scanService, authMiddleware)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		broker:     broker,
	}, nil
}

// buildRelay picks the scan log relay: a broker channel when MQ is
// configured, direct object storage when only storage is configured,
// otherwise a no-op.
func buildRelay(ctx context.Context, cfg config.Config) (services.EventRelay, *mq.MQ, error) {
	if cfg.MQ.Backend != "" {
		broker, err := sink.NewMQFromConfig(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return sink.NewQueueSink(broker, cfg.MQ.Channel), broker, nil
	}

	if cfg.Storage.Backend != "" {
		st, err := sink.NewStorageFromConfig(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		if err := st.EnsureBucket(ctx); err != nil {
			return nil, nil, err
		}
		return sink.NewObjectSink(st), nil, nil
	}

	slog.Warn("no scan log sink configured, events are kept in the database only")
	return sink.Nop{}, nil, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	slog.Info("server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.broker != nil {
		_ = s.broker.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}
