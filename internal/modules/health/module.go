package health

import (
	"context"
	"net"
	"net/http"
	"time"

	"signal_trader/internal/modules/config"
	"signal_trader/internal/modules/health/service"
	"signal_trader/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

type Config struct {
	Addr       string
	StaleAfter time.Duration
}

func NewConfig(cfg *config.Config) Config {
	return Config{Addr: cfg.Health.Addr, StaleAfter: cfg.Health.StaleAfter}
}

type Server struct {
	cfg   Config
	state *service.State
	mux   *http.ServeMux
	now   func() time.Time
}

func NewServer(cfg Config, state *service.State, gatherer prometheus.Gatherer) *Server {
	s := &Server{cfg: cfg, state: state, mux: http.NewServeMux(), now: time.Now}

	s.mux.HandleFunc("/livez", s.livez)
	s.mux.HandleFunc("/readyz", s.readyz)
	s.mux.HandleFunc("/healthz", s.healthz)
	s.mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) livez(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

// readyz: первая цена получена, циклы запущены, движок не завис
func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	ok, reason := s.state.Check(s.now(), s.cfg.StaleAfter)
	if !ok {
		http.Error(w, reason, http.StatusServiceUnavailable)
		return
	}
	_, _ = w.Write([]byte(reason))
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = sonic.ConfigDefault.NewEncoder(w).Encode(s.state.Status())
}

func RunHTTP(lc fx.Lifecycle, cfg Config, s *Server) {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", cfg.Addr)
			if err != nil {
				return err
			}
			logger.Info("health: listening on %s", ln.Addr())
			go func() {
				if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
					logger.Error("health: %v", err)
				}
			}()
			return nil
		},
		OnStop: srv.Shutdown,
	})
}

func Module() fx.Option {
	return fx.Module("health",
		fx.Provide(
			service.NewState,
			NewConfig,
			NewServer,
		),
		fx.Invoke(RunHTTP),
	)
}
