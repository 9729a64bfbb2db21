// Package api exposes the gateway over HTTP: the JSON-RPC endpoint, the
// status endpoints and streams, the config endpoint and the chain helpers.
//
// Every route except /metrics is also mounted under /api for the dashboard.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"soulvan-gateway/internal/chain"
	"soulvan-gateway/internal/configstore"
	"soulvan-gateway/internal/gate"
	"soulvan-gateway/internal/logger"
	"soulvan-gateway/internal/metrics"
	"soulvan-gateway/internal/models"
	"soulvan-gateway/internal/stats"
)

const (
	legacyPrefix = "/api"
	maxBodyBytes = 1 << 20
)

// History is the read side of the stats history store.
type History interface {
	Enabled() bool
	Recent(ctx context.Context, limit int) ([]models.StatsSample, error)
}

// Streamer hands out snapshot subscriptions.
type Streamer interface {
	Subscribe(ctx context.Context) <-chan stats.Snapshot
}

type Deps struct {
	Gate      *gate.Gate
	Cache     stats.Reader
	Publisher Streamer
	History   History
	Config    *configstore.Store
	Chain     *chain.Service
	Metrics   *metrics.Metrics
	Logger    *logger.Logger
	Version   string
}

type Server struct {
	gate      *gate.Gate
	cache     stats.Reader
	publisher Streamer
	history   History
	config    *configstore.Store
	chain     *chain.Service
	metrics   *metrics.Metrics
	log       *logger.Logger
	version   string
	upgrader  websocket.Upgrader
	router    *mux.Router
}

func New(d Deps) *Server {
	s := &Server{
		gate:      d.Gate,
		cache:     d.Cache,
		publisher: d.Publisher,
		history:   d.History,
		config:    d.Config,
		chain:     d.Chain,
		metrics:   d.Metrics,
		log:       d.Logger,
		version:   d.Version,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// the dashboard is served from another origin
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	s.log = s.log.With("module", "api")
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *mux.Router {
	root := mux.NewRouter()
	root.Use(requestID, s.logRequests)

	s.mount(root)
	s.mount(root.PathPrefix(legacyPrefix).Subrouter())
	root.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	root.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Not Found"})
	})
	return root
}

func (s *Server) mount(r *mux.Router) {
	r.HandleFunc("/health", s.health).Methods(http.MethodGet)

	r.HandleFunc("/stats", s.snapshot).Methods(http.MethodGet)
	r.HandleFunc("/stats/stream", s.statsStream).Methods(http.MethodGet)
	r.HandleFunc("/stats/ws", s.statsSocket).Methods(http.MethodGet)
	r.HandleFunc("/stats/history", s.statsHistory).Methods(http.MethodGet)

	r.HandleFunc("/config", s.getConfig).Methods(http.MethodGet)
	r.HandleFunc("/config", s.updateConfig).Methods(http.MethodPost, http.MethodPut)

	r.HandleFunc("/rpc", s.rpc).Methods(http.MethodPost)

	r.HandleFunc("/blockchain/info", s.blockchainInfo).Methods(http.MethodGet)
	r.HandleFunc("/blockchain/besthash", s.bestBlockHash).Methods(http.MethodGet)
	r.HandleFunc("/block/byheight/{height:-?[0-9]+}", s.blockByHeight).Methods(http.MethodGet)
	r.HandleFunc("/mining/info", s.miningInfo).Methods(http.MethodGet)
	r.HandleFunc("/mining/template", s.miningTemplate).Methods(http.MethodGet)
	r.HandleFunc("/mining/submit", s.miningSubmit).Methods(http.MethodPost)
}

// NewHTTPServer wraps the handler with the timeouts used in production.
// WriteTimeout stays zero because the stream endpoints never finish.
func (s *Server) NewHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
