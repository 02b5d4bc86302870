package etcd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clientv3 "go.etcd.io/etcd/client/v3"

	cluster "github.com/AnishMulay/sandblock/internal/cluster_service"
	"github.com/AnishMulay/sandblock/internal/log_service"
)

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestApplyEventTracksLiveness(t *testing.T) {
	s := NewEtcdClusterService(nil, "/test", log_service.Nop())

	s.applyEvent(clientv3.EventTypePut, "/test/config/nodes/n1",
		mustJSON(t, cluster.ClusterNode{ID: "n1", Address: "127.0.0.1:9001", Role: cluster.RoleAll}))
	s.applyEvent(clientv3.EventTypePut, "/test/config/nodes/n2",
		mustJSON(t, cluster.ClusterNode{ID: "n2", Address: "127.0.0.1:9002", Role: cluster.RoleChunk}))
	s.applyEvent(clientv3.EventTypePut, "/test/leases/n1",
		mustJSON(t, cluster.NodeLiveness{NodeID: "n1", Status: cluster.NodeStatusAlive}))
	s.applyEvent(clientv3.EventTypePut, "/test/leases/n2",
		mustJSON(t, cluster.NodeLiveness{NodeID: "n2", Status: cluster.NodeStatusAlive}))

	healthy, err := s.GetHealthyNodes()
	require.NoError(t, err)
	assert.Len(t, healthy, 2)

	// Lease expiry deletes the liveness key.
	s.applyEvent(clientv3.EventTypeDelete, "/test/leases/n2", nil)

	healthy, err = s.GetHealthyNodes()
	require.NoError(t, err)
	require.Len(t, healthy, 1)
	assert.Equal(t, "n1", healthy[0].ID)
	assert.Equal(t, cluster.RoleAll, healthy[0].Role)

	all, err := s.GetAllNodes()
	require.NoError(t, err)
	assert.Len(t, all, 2)

	s.applyEvent(clientv3.EventTypeDelete, "/test/config/nodes/n2", nil)
	all, err = s.GetAllNodes()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestPrefixNormalization(t *testing.T) {
	s := NewEtcdClusterService(nil, "", log_service.Nop())
	assert.Equal(t, "/sandblock/config/nodes/", s.prefixConfig)
	assert.Equal(t, "/sandblock/leases/", s.prefixLease)
}
