package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Wallet metrics
	TokensCredited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokentimer_tokens_credited_total",
			Help: "Total tokens credited to the wallet",
		},
		[]string{"reason"},
	)

	TokensRedeemed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tokentimer_tokens_redeemed_total",
			Help: "Total tokens redeemed to start timers",
		},
	)

	WalletBalance = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tokentimer_wallet_balance",
			Help: "Current wallet balance in tokens",
		},
	)

	// Session metrics
	SessionsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokentimer_sessions_finished_total",
			Help: "Timer sessions finished, by outcome",
		},
		[]string{"outcome"},
	)

	TokensReturned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tokentimer_tokens_returned_total",
			Help: "Tokens returned by ending sessions early",
		},
	)

	UsageMinutesConsumed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tokentimer_usage_minutes_consumed_total",
			Help: "Total usage minutes recorded",
		},
	)

	SessionActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tokentimer_session_active",
			Help: "1 while a timer session is running or paused",
		},
	)

	// Scheduler metrics
	GrantsFired = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokentimer_grants_fired_total",
			Help: "Scheduled grant firings, by recurrence",
		},
		[]string{"recurrence"},
	)

	GrantPeriodsCaughtUp = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tokentimer_grant_periods_total",
			Help: "Recurrence periods credited, including catch-up",
		},
	)

	// Persistence metrics
	StorageErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokentimer_storage_errors_total",
			Help: "Storage load/save failures",
		},
		[]string{"op"},
	)
)

func init() {
	prometheus.MustRegister(
		TokensCredited,
		TokensRedeemed,
		WalletBalance,
		SessionsFinished,
		TokensReturned,
		UsageMinutesConsumed,
		SessionActive,
		GrantsFired,
		GrantPeriodsCaughtUp,
		StorageErrors,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Handler exposes the mux, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		var err error
		if s.listener != nil {
			s.logger.Debug().Msg("Using systemd socket-activated metrics listener")
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
