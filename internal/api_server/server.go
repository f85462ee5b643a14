package apiserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/reviewhub/reviewhub/internal/config"
	"github.com/reviewhub/reviewhub/internal/jobs"
	"github.com/reviewhub/reviewhub/internal/notify"
	"github.com/reviewhub/reviewhub/internal/service"
	"github.com/reviewhub/reviewhub/internal/store"
	"github.com/reviewhub/reviewhub/pkg/log"
)

const (
	gracefulShutdownTimeout = 5 * time.Second
)

type Server struct {
	cfg      *config.Config
	store    store.Store
	registry *notify.Registry
	listener net.Listener
}

// New returns a new instance of a reviewhub API server.
func New(
	cfg *config.Config,
	store store.Store,
	registry *notify.Registry,
	listener net.Listener,
) *Server {
	return &Server{
		cfg:      cfg,
		store:    store,
		registry: registry,
		listener: listener,
	}
}

func (s *Server) Run(ctx context.Context) error {
	logger := zap.S().Named("api_server")
	logger.Info("Initializing API server")

	dsn := fmt.Sprintf("host=%s user=%s password=%s port=%s dbname=%s",
		s.cfg.Database.Hostname,
		s.cfg.Database.User,
		s.cfg.Database.Password,
		s.cfg.Database.Port,
		s.cfg.Database.Name,
	)
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return fmt.Errorf("failed to parse pgx config: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	dbPool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("failed to create pgx pool: %w", err)
	}
	defer dbPool.Close()

	// Insert-only client; workers run in the reviewhub-worker process.
	jobClient, err := jobs.NewInsertClient(dbPool)
	if err != nil {
		return fmt.Errorf("failed to create job client: %w", err)
	}

	h := NewHandler(service.NewReviewService(s.store, jobClient), s.registry)

	router := chi.NewRouter()
	router.Use(
		chiMiddleware.RequestID,
		log.Logger(zap.L(), "router"),
		chiMiddleware.Recoverer,
	)

	router.Get("/health", h.Health)
	router.Route("/api/v1/reviews", func(r chi.Router) {
		r.Post("/", h.SubmitReview)
		r.Get("/{id}", h.GetReview)
	})
	router.Get("/ws/reviews/{id}", h.StreamReview)
	router.Get("/ws/notifications", h.StreamNotifications)

	srv := http.Server{Addr: s.cfg.Service.Address, Handler: router}

	go func() {
		<-ctx.Done()
		logger.Infof("Shutdown signal received: %s", ctx.Err())
		ctxTimeout, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		srv.SetKeepAlivesEnabled(false)
		_ = srv.Shutdown(ctxTimeout)
		logger.Info("api server terminated")
	}()

	logger.Infof("Listening on %s...", s.listener.Addr().String())
	if err := srv.Serve(s.listener); err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
