package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	chimiddleware "github.com/go-chi/chi/middleware"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/clarencepanto/stockflow-api-backend/internal/auth"
	"github.com/clarencepanto/stockflow-api-backend/internal/eventbus"
	"github.com/clarencepanto/stockflow-api-backend/internal/eventengine"
	"github.com/clarencepanto/stockflow-api-backend/internal/eventengine/event"
	"github.com/clarencepanto/stockflow-api-backend/internal/features/inventory"
	"github.com/clarencepanto/stockflow-api-backend/internal/features/order"
	"github.com/clarencepanto/stockflow-api-backend/internal/features/product"
	"github.com/clarencepanto/stockflow-api-backend/internal/middlewares"
	"github.com/clarencepanto/stockflow-api-backend/internal/realtime"
)

type brokerPublisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
	Close()
}

type ServerConfig struct {
	Addr              string
	DB                *sqlx.DB
	TokenManager      *auth.TokenService
	EventEngineBuffer int
	ListenerBuffer    int

	// Broker is optional; when nil events stay in process.
	Broker brokerPublisher

	// ShutdownTracing flushes pending spans on shutdown, may be nil.
	ShutdownTracing func(context.Context) error
}

type server struct {
	*ServerConfig

	doneCh        chan struct{}   // used to signal internal go routines to shutdown
	internalSrvWG *sync.WaitGroup // waits for internal go routines (event engine, listeners, bridge) before shutting down.

	eventEngine eventengine.SubscribeRegisterPublisher
	hub         *realtime.Hub
	srv         *http.Server
}

func NewServer(serverConfig *ServerConfig) *server {
	return &server{
		ServerConfig:  serverConfig,
		doneCh:        make(chan struct{}),
		internalSrvWG: &sync.WaitGroup{},
	}
}

func (s *server) Run() error {
	if err := s.prep(); err != nil {
		return err
	}

	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%s", s.Addr),
		Handler:           s.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// start server and listen for [os.Signal] signals to graceful shutdown server.
	return s.listenAndServe()
}

func (s *server) router() *chi.Mux {
	router := chi.NewRouter()

	// strip trailing slashes, e.g. /orders/1/ -> /orders/1
	router.Use(chimiddleware.StripSlashes)
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Recoverer)
	router.Use(middlewares.RequestLogger)

	router.Mount("/api/v1", s.v1Router()) // api version 1 subrouter

	return router
}

func (s *server) listenAndServe() error {
	shutdownCtx, shutdownCancel := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer shutdownCancel()

	errGrp, shutdownCtx := errgroup.WithContext(shutdownCtx)

	errGrp.Go(
		func() error {
			log.Info().Str("port", s.Addr).Msg("server started and is listening")

			if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) && err != nil {
				return fmt.Errorf("failed to start server: %w", err)
			}

			return nil
		},
	)

	errGrp.Go(
		func() error {
			<-shutdownCtx.Done() // block and listen shutdown signals
			log.Info().Msg("hold and wait, server is gracefully shutting down...")

			ctx, cancel := context.WithTimeout(
				context.Background(),
				(20 * time.Second),
			)
			defer cancel()

			log.Info().Msg("waiting for all pending requests to finish...")
			if err := s.srv.Shutdown(ctx); err != nil {
				return fmt.Errorf("server failed shutdown gracefully: %w", err)
			}

			return nil
		},
	)

	srvErr := errGrp.Wait()
	if srvErr != nil {
		log.Error().Err(srvErr).Msg("server stopped with error")
	} else {
		log.Info().Msg("all pending requests completed")
	}

	// websocket listeners are hijacked connections that Shutdown does not
	// wait for; closing doneCh ends them together with the event engine.
	log.Info().Msg("waiting for all internal go routines...")
	close(s.doneCh)
	s.internalSrvWG.Wait()
	log.Info().Msg("all internal go routines are done")

	s.closeResources()

	log.Info().Msg("server has been gracefully shutdown")
	return srvErr
}

func (s *server) closeResources() {
	log.Info().Msg("closing other resources...")

	if s.Broker != nil {
		s.Broker.Close()
	}

	if err := s.DB.Close(); err != nil {
		log.Error().Err(err).Msg("server failed to close db for shutdown")
	}

	if s.ShutdownTracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.ShutdownTracing(ctx); err != nil {
			log.Error().Err(err).Msg("failed to flush traces")
		}
	}
}

// prep prepares server dependencies needed for server to function
func (s *server) prep() error {
	engine, err := eventengine.NewEventEngine(
		&eventengine.EventEngineConfig{
			DoneCh:        s.doneCh,
			InternalSrvWG: s.internalSrvWG,
			BufferSize:    s.EventEngineBuffer,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to start event engine: %w", err)
	}
	engine.RegisterEvents(event.BroadcastEventNames...)
	s.eventEngine = engine

	if s.Broker != nil {
		_, err := eventbus.NewBridge(&eventbus.BridgeConfig{
			DoneCh:        s.doneCh,
			InternalSrvWG: s.internalSrvWG,
			EventEngine:   engine,
			Publisher:     s.Broker,
			AddressChSize: s.ListenerBuffer,
		})
		if err != nil {
			return fmt.Errorf("failed to start event bridge: %w", err)
		}
	}

	s.hub, err = realtime.NewHub(&realtime.HubConfig{
		DoneCh:         s.doneCh,
		InternalSrvWG:  s.internalSrvWG,
		EventEngine:    engine,
		ListenerBuffer: s.ListenerBuffer,
	})
	if err != nil {
		return fmt.Errorf("failed to start realtime hub: %w", err)
	}

	return nil
}

func (s *server) v1Router() *chi.Mux {
	r := chi.NewRouter()

	// health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := s.DB.PingContext(r.Context()); err != nil {
			log.Error().Err(err).Msg("health check: db unreachable")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("DB UNAVAILABLE"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	//middleware
	middleware := middlewares.NewMiddleware(
		s.TokenManager,
	)

	emitter := eventengine.NewEmitter(s.eventEngine)

	// inventory feature
	inventoryStore := inventory.NewStore(s.DB)
	inventoryService := inventory.NewService(
		inventoryStore,
		emitter,
	)
	inventoryHandler := inventory.NewHandler(
		inventoryService,
		middleware,
	)
	inventoryHandler.RegisterRoutes(r)

	// products feature
	productStore := product.NewStore(s.DB)
	productService := product.NewService(
		productStore,
		emitter,
	)
	productHandler := product.NewHandler(
		productService,
		middleware,
	)
	productHandler.RegisterRoutes(r)

	// orders feature
	orderStore := order.NewStore(s.DB)
	orderService := order.NewService(
		orderStore,
		emitter,
	)
	orderHandler := order.NewHandler(
		orderService,
		middleware,
	)
	orderHandler.RegisterRoutes(r)

	// realtime events
	r.Get(
		"/events",
		middleware.ErrorHandler(
			middleware.AuthWithContext(s.hub.ServeWS),
		),
	)

	return r
}
