package api

import (
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/yegors/overhead/pkg/logger"
)

// Router wires the API handlers onto a chi mux
type Router struct {
	handler        *Handler
	allowedOrigins []string
	logger         *logger.Logger
}

// NewRouter creates a new API router
func NewRouter(deps Deps, allowedOrigins []string, log *logger.Logger) *Router {
	h := NewHandler(deps, log)
	if deps.WSServer != nil {
		deps.WSServer.SetMessageHandler(h)
	}
	return &Router{
		handler:        h,
		allowedOrigins: allowedOrigins,
		logger:         log.Named("api-router"),
	}
}

// Handler returns the handler set behind the router
func (r *Router) Handler() *Handler { return r.handler }

// Routes builds the HTTP handler
func (r *Router) Routes() http.Handler {
	mux := chi.NewRouter()

	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(middleware.Recoverer)
	mux.Use(r.requestLogger)
	mux.Use(r.cors)

	mux.Route("/api/v1", func(api chi.Router) {
		api.Get("/health", r.handler.GetHealth)
		api.Get("/observer", r.handler.GetObserver)
		api.Get("/stats", r.handler.GetStats)

		api.Get("/flights", r.handler.GetFlights)
		api.Get("/flights/{id}", r.handler.GetFlight)
		api.Get("/flights/{id}/alerts", r.handler.GetFlightAlerts)

		api.Get("/alerts/recent", r.handler.GetRecentAlerts)
	})

	if ws := r.handler.deps.WSServer; ws != nil {
		mux.Get("/ws", ws.HandleConnection)
	}

	return mux
}

func (r *Router) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, req)
		r.logger.Debug("HTTP request",
			logger.String("method", req.Method),
			logger.String("path", req.URL.Path),
			logger.Int("status", ww.Status()),
			logger.Duration("duration", time.Since(start)),
			logger.String("request_id", middleware.GetReqID(req.Context())))
	})
}

// cors answers preflight requests and sets Access-Control headers for the
// configured origins
func (r *Router) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		origin := req.Header.Get("Origin")
		if origin != "" && r.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Add("Vary", "Origin")
		}
		if req.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, req)
	})
}

func (r *Router) originAllowed(origin string) bool {
	return slices.Contains(r.allowedOrigins, "*") || slices.Contains(r.allowedOrigins, origin)
}
