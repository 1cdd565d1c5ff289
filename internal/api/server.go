// Package api serves the node's HTTP monitor: a JSON view of the engine's
// interfaces, controllers, senders and receivers, plus a WebSocket stream of
// inbound ArtDMX frames.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"

	"github.com/bbernstein/dmxnet-go/internal/database/repositories"
	"github.com/bbernstein/dmxnet-go/internal/services/dmx"
	"github.com/bbernstein/dmxnet-go/internal/services/node"
)

// Options configures the monitor.
type Options struct {
	Version    string
	CORSOrigin string
	Debug      bool
	Logger     dmx.Logger
}

// Server exposes an Engine over HTTP.
type Server struct {
	engine    *node.Engine
	history   *repositories.ControllerRepository
	opts      Options
	logger    dmx.Logger
	startedAt time.Time
	upgrader  websocket.Upgrader
}

// NewServer creates a monitor for engine. history may be nil when controller
// history is disabled.
func NewServer(engine *node.Engine, history *repositories.ControllerRepository, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		engine:    engine,
		history:   history,
		opts:      opts,
		logger:    logger,
		startedAt: time.Now(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for WebSocket
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	if s.opts.Debug {
		router.Use(middleware.Logger)
	}
	router.Use(middleware.Recoverer)

	origins := []string{"http://localhost:3000", "http://localhost:4000"}
	if s.opts.CORSOrigin != "" {
		origins = append(origins, s.opts.CORSOrigin)
	}
	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		Debug:            s.opts.Debug,
	})
	router.Use(corsMiddleware.Handler)

	router.Get("/health", s.handleHealth)
	router.Get("/ws/dmx", s.handleDMXStream)

	router.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(15 * time.Second))
		r.Get("/node", s.handleNode)
		r.Get("/controllers", s.handleControllers)
		r.Get("/controllers/history", s.handleControllerHistory)
		r.Get("/senders", s.handleSenders)
		r.Put("/senders/{address}/channels/{channel}", s.handleSetChannel)
		r.Get("/receivers", s.handleReceivers)
		r.Get("/receivers/{address}", s.handleReceiver)
	})

	return router
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
