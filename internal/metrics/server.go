package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AnishMulay/sandblock/internal/log_service"
)

// Server is the diagnostic HTTP listener.
//
// Endpoints:
//   - GET /metrics: Prometheus metrics in text format
//   - GET /: index page linking to /metrics
type Server struct {
	server       *http.Server
	listener     net.Listener
	host         string
	port         int
	ls           log_service.LogService
	shutdownOnce sync.Once
}

type ServerConfig struct {
	// Host to bind. Default: all interfaces
	Host string

	// Port to listen on. Default: 9000
	Port int
}

func (c *ServerConfig) applyDefaults() {
	if c.Port <= 0 {
		c.Port = 9000
	}
}

func NewServer(config ServerConfig, ls log_service.LogService) *Server {
	config.applyDefaults()

	mux := http.NewServeMux()

	if IsEnabled() {
		mux.Handle("/metrics", promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}))
	} else {
		mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprintf(w, "Metrics collection is disabled\n")
		})
	}

	port := config.Port
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>sandblock client</title></head>
<body>
    <h1>sandblock client diagnostics</h1>
    <p><a href="/metrics">/metrics</a> (port %d)</p>
</body>
</html>`, port)
	})

	return &Server{
		server: &http.Server{
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		host: config.Host,
		port: config.Port,
		ls:   ls,
	}
}

// Start binds the port and serves in the background. A bind failure is
// returned synchronously so callers can probe the next port.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", net.JoinHostPort(s.host, strconv.Itoa(s.port)))
	if err != nil {
		return fmt.Errorf("metrics server bind port %d: %w", s.port, err)
	}
	s.listener = lis

	go func() {
		if err := s.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.ls.Error(log_service.LogEvent{
				Message:  "Metrics server stopped unexpectedly",
				Metadata: map[string]any{"port": s.port, "error": err.Error()},
			})
		}
	}()

	s.ls.Info(log_service.LogEvent{
		Message:  "Metrics server listening",
		Metadata: map[string]any{"port": s.port},
	})
	return nil
}

// Stop is safe to call multiple times.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("metrics server shutdown error: %w", err)
		}
	})
	return shutdownErr
}

func (s *Server) Port() int {
	return s.port
}
