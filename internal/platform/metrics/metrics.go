package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	SessionsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studypomo_sessions_started_total",
			Help: "Sessions started, by session type and trigger (manual or auto)",
		},
		[]string{"type", "trigger"},
	)

	SessionsCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studypomo_sessions_completed_total",
			Help: "Sessions whose countdown reached zero",
		},
		[]string{"type"},
	)

	SessionsInterrupted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studypomo_sessions_interrupted_total",
			Help: "Sessions stopped before their deadline",
		},
		[]string{"type"},
	)

	AutoStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studypomo_autostart_total",
			Help: "Auto-start lifecycle transitions",
		},
		[]string{"outcome"},
	)

	BackendErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studypomo_backend_errors_total",
			Help: "Session backend failures by operation and kind",
		},
		[]string{"op", "kind"},
	)

	Restores = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studypomo_timer_restores_total",
			Help: "Timer snapshot restores by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		SessionsStarted,
		SessionsCompleted,
		SessionsInterrupted,
		AutoStarts,
		BackendErrors,
		Restores,
	)
}

// Server exposes /metrics and /health.
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener
}

func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return &Server{
		server: &http.Server{Addr: addr, Handler: mux},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// Serve blocks until the server is closed. http.ErrServerClosed is not an error.
func (s *Server) Serve() error {
	ln := s.listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", s.server.Addr)
		if err != nil {
			return err
		}
	}
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("serving metrics")
	if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// SetListener makes Serve use a pre-bound listener.
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

func (s *Server) Close() error {
	return s.server.Close()
}
