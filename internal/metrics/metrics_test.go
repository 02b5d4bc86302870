package metrics

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnishMulay/sandblock/internal/log_service"
)

func freePort(t *testing.T) int {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := lis.Addr().(*net.TCPAddr).Port
	require.NoError(t, lis.Close())
	return port
}

func TestClientMetricsSharedAcrossInstances(t *testing.T) {
	InitRegistry()

	a := NewClientMetrics()
	b := NewClientMetrics()
	a.RecordOperation("open", "OK", time.Millisecond)
	b.RecordOperation("open", "OK", time.Millisecond)
	a.RecordBytes("read", 4096)
	a.SetOpenFiles(3)

	families, err := GetRegistry().Gather()
	require.NoError(t, err)

	var found bool
	for _, mf := range families {
		if mf.GetName() != "sandblock_client_operations_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			if m.GetCounter().GetValue() >= 2 {
				found = true
			}
		}
	}
	assert.True(t, found, "both instances should increment the same counter")
}

func TestServerServesMetrics(t *testing.T) {
	InitRegistry()
	NewClientMetrics().RecordOperation("stat", "OK", time.Millisecond)

	port := freePort(t)
	srv := NewServer(ServerConfig{Host: "127.0.0.1", Port: port}, log_service.Nop())
	require.NoError(t, srv.Start())
	defer srv.Stop(context.Background())

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/metrics", port))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "sandblock_client_operations_total"))
}

func TestServerStartFailsOnBusyPort(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer lis.Close()

	srv := NewServer(ServerConfig{Host: "127.0.0.1", Port: lis.Addr().(*net.TCPAddr).Port}, log_service.Nop())
	assert.Error(t, srv.Start())
}

func TestServerStopIdempotent(t *testing.T) {
	srv := NewServer(ServerConfig{Host: "127.0.0.1", Port: freePort(t)}, log_service.Nop())
	require.NoError(t, srv.Start())
	assert.NoError(t, srv.Stop(context.Background()))
	assert.NoError(t, srv.Stop(context.Background()))
}
