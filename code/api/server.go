package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Voltaic314/GameLedger/code/api/routes"
	"github.com/Voltaic314/GameLedger/code/config"
	"github.com/Voltaic314/GameLedger/code/sdk"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ShutdownTimeout bounds the graceful stop of the HTTP server and the final
// flush of pending edits.
const ShutdownTimeout = 30 * time.Second

// LedgerServer represents the GameLedger HTTP server
type LedgerServer struct {
	*sdk.Client

	router *chi.Mux
	server *http.Server
}

// NewLedgerServer opens the ledger described by cfg and builds the router.
func NewLedgerServer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*LedgerServer, error) {
	client, err := sdk.Open(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	return newServer(client), nil
}

func newServer(client *sdk.Client) *LedgerServer {
	router := chi.NewRouter()
	s := &LedgerServer{
		Client: client,
		router: router,
		server: &http.Server{
			Addr:              client.Config().Network.Addr(),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	routes.RegisterAllRoutes(router, s)
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *LedgerServer) Handler() http.Handler {
	return s.router
}

// Start serves on the configured address until Stop is called.
func (s *LedgerServer) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.server.Addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on ln until Stop is called.
func (s *LedgerServer) Serve(ln net.Listener) error {
	s.Logger().Info("GameLedger server starting", zap.String("addr", ln.Addr().String()))
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server, then flushes pending edits and
// closes the ledger.
func (s *LedgerServer) Stop(ctx context.Context) error {
	err := s.server.Shutdown(ctx)
	if cerr := s.Client.Close(ctx); err == nil {
		err = cerr
	}
	return err
}

// Run serves and relays changes until ctx is done, then shuts down.
func (s *LedgerServer) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(s.Start)
	g.Go(func() error {
		return s.Client.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		s.Logger().Info("shutdown signal received, stopping server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := s.Stop(shutdownCtx); err != nil {
			s.Logger().Error("error during shutdown", zap.Error(err))
			return err
		}
		s.Logger().Info("server stopped gracefully")
		return nil
	})
	return g.Wait()
}

// StartServer opens the ledger and runs the server until ctx is done.
func StartServer(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	server, err := NewLedgerServer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	return server.Run(ctx)
}
