package sandlib

import (
	"sync"
	"sync/atomic"

	"github.com/AnishMulay/sandblock/internal/config"
	"github.com/AnishMulay/sandblock/internal/log_service"
	"github.com/AnishMulay/sandblock/internal/metrics"
)

const maxPort = 65535

// The diagnostic listener is started at most once per process, however many
// FileClients are initialized.
var (
	diagnosticsOnce   = new(sync.Once)
	diagnosticsServer atomic.Pointer[metrics.Server]

	startDiagnosticsListener = func(port int, ls log_service.LogService) (*metrics.Server, error) {
		srv := metrics.NewServer(metrics.ServerConfig{Port: port}, ls)
		if err := srv.Start(); err != nil {
			return nil, err
		}
		return srv, nil
	}
)

// bootstrapDiagnostics probes ports upward from StartPort until one binds.
// Running out of ports is logged, never returned.
func bootstrapDiagnostics(cfg config.DummyServerConfig, ls log_service.LogService) {
	diagnosticsOnce.Do(func() {
		if !cfg.Enabled {
			ls.Info(log_service.LogEvent{Message: "Diagnostic listener disabled"})
			return
		}

		for port := cfg.StartPort; port <= maxPort; port++ {
			srv, err := startDiagnosticsListener(port, ls)
			if err != nil {
				ls.Debug(log_service.LogEvent{
					Message:  "Diagnostic port busy",
					Metadata: map[string]any{"port": port, "error": err.Error()},
				})
				continue
			}
			diagnosticsServer.Store(srv)
			return
		}

		ls.Warn(log_service.LogEvent{
			Message:  "No free port for diagnostic listener",
			Metadata: map[string]any{"startPort": cfg.StartPort},
		})
	})
}

// DiagnosticPort is the port the diagnostic listener bound, or 0.
func DiagnosticPort() int {
	if srv := diagnosticsServer.Load(); srv != nil {
		return srv.Port()
	}
	return 0
}
