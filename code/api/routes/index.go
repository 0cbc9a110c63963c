package routes

import (
	"net/http"
	"time"

	"github.com/Voltaic314/GameLedger/code/api/routes/bonds"
	"github.com/Voltaic314/GameLedger/code/api/routes/events"
	"github.com/Voltaic314/GameLedger/code/api/routes/items"
	"github.com/Voltaic314/GameLedger/code/api/routes/records"
	"github.com/Voltaic314/GameLedger/code/api/routes/server"
	"github.com/Voltaic314/GameLedger/code/api/routes/tables"
	"github.com/Voltaic314/GameLedger/code/api/routes/tools"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Server is everything the route groups need from the ledger.
type Server interface {
	server.Server
	tables.Server
	records.Server
	items.Server
	bonds.Server
	tools.Server
	events.Server
}

// RegisterAllRoutes registers all API routes
func RegisterAllRoutes(r chi.Router, s Server) {
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(s.Logger()))
	r.Use(middleware.Recoverer)

	// websocket connections outlive any request timeout
	r.Route("/events", func(r chi.Router) {
		events.RegisterRoutes(r, s)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		server.RegisterRoutes(r, s)
		r.Route("/tables", func(r chi.Router) {
			tables.RegisterRoutes(r, s)
		})
		r.Route("/records/{table}", func(r chi.Router) {
			records.RegisterRoutes(r, s)
		})
		r.Route("/items", func(r chi.Router) {
			items.RegisterRoutes(r, s)
		})
		r.Route("/bonds", func(r chi.Router) {
			bonds.RegisterRoutes(r, s)
		})
		r.Route("/tools", func(r chi.Router) {
			tools.RegisterRoutes(r, s)
		})
	})
}

// RequestLogger logs every request with zap once it completes.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	logger = logger.Named("http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
