package remote

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnishMulay/sandblock/internal/chunk_client"
	"github.com/AnishMulay/sandblock/internal/chunk_service"
	"github.com/AnishMulay/sandblock/internal/chunk_service/localdisc"
	cluster "github.com/AnishMulay/sandblock/internal/cluster_service"
	"github.com/AnishMulay/sandblock/internal/cluster_service/static"
	grpccomm "github.com/AnishMulay/sandblock/internal/communication/grpc"
	"github.com/AnishMulay/sandblock/internal/log_service"
	"github.com/AnishMulay/sandblock/internal/server/simple"
)

func startChunkNodes(t *testing.T, n int) []cluster.ClusterNode {
	t.Helper()
	var nodes []cluster.ClusterNode
	for i := 0; i < n; i++ {
		cs, err := localdisc.NewLocalDiscChunkService(t.TempDir(), log_service.Nop())
		require.NoError(t, err)

		srv := simple.NewSimpleServer(grpccomm.NewGRPCCommunicator("127.0.0.1:0", log_service.Nop()), nil, cs, log_service.Nop())
		require.NoError(t, srv.Start())
		t.Cleanup(func() { _ = srv.Stop() })

		nodes = append(nodes, cluster.ClusterNode{
			ID:      fmt.Sprintf("chunk-%d", i),
			Address: srv.Address(),
			Role:    cluster.RoleChunk,
		})
	}
	return nodes
}

func newClient(t *testing.T, nodes []cluster.ClusterNode) *RemoteChunkClient {
	t.Helper()
	comm := grpccomm.NewGRPCCommunicator("", log_service.Nop())
	t.Cleanup(func() { _ = comm.Stop() })
	return NewRemoteChunkClient(comm, static.NewStaticClusterService(nodes), "test-client", 2*time.Second, log_service.Nop())
}

func TestRemoteChunkClient_WriteRead(t *testing.T) {
	c := newClient(t, startChunkNodes(t, 3))
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		id := fmt.Sprintf("1_%d", i)
		data := bytes.Repeat([]byte{byte(i + 1)}, 4096)
		require.NoError(t, c.WriteChunk(ctx, id, 4096, data))

		got, err := c.ReadChunk(ctx, id, 4096, 4096)
		require.NoError(t, err)
		assert.Equal(t, data, got)

		hole, err := c.ReadChunk(ctx, id, 0, 4096)
		require.NoError(t, err)
		assert.Equal(t, make([]byte, 4096), hole)
	}
}

func TestRemoteChunkClient_PlacementStable(t *testing.T) {
	nodes := []cluster.ClusterNode{
		{ID: "b", Address: "10.0.0.2:1", Role: cluster.RoleChunk},
		{ID: "a", Address: "10.0.0.1:1", Role: cluster.RoleChunk},
		{ID: "m", Address: "10.0.0.3:1", Role: cluster.RoleMetadata},
	}
	c1 := newClient(t, nodes)
	c2 := newClient(t, []cluster.ClusterNode{nodes[2], nodes[0], nodes[1]})

	for i := 0; i < 32; i++ {
		id := fmt.Sprintf("7_%d", i)
		n1, err := c1.Placement(id)
		require.NoError(t, err)
		n2, err := c2.Placement(id)
		require.NoError(t, err)
		assert.Equal(t, n1.ID, n2.ID)
		assert.NotEqual(t, "m", n1.ID)
	}
}

func TestRemoteChunkClient_NoNodes(t *testing.T) {
	c := newClient(t, []cluster.ClusterNode{{ID: "m", Address: "10.0.0.3:1", Role: cluster.RoleMetadata}})

	err := c.WriteChunk(context.Background(), "1_0", 0, []byte("x"))
	assert.ErrorIs(t, err, chunk_client.ErrNoChunkNodes)
}

func TestRemoteChunkClient_DeleteFileChunks(t *testing.T) {
	c := newClient(t, startChunkNodes(t, 2))
	ctx := context.Background()

	data := bytes.Repeat([]byte{9}, 4096)
	for i := uint64(0); i < 4; i++ {
		require.NoError(t, c.WriteChunk(ctx, chunk_service.ChunkID(7, i), 0, data))
	}

	require.NoError(t, chunk_service.DeleteFileChunks(ctx, c, 7, 4*4096, 4096))

	for i := uint64(0); i < 4; i++ {
		got, err := c.ReadChunk(ctx, chunk_service.ChunkID(7, i), 0, 4096)
		require.NoError(t, err)
		assert.Equal(t, make([]byte, 4096), got)
	}
	// Deleting chunks that are already gone succeeds.
	assert.NoError(t, c.DeleteChunk(ctx, chunk_service.ChunkID(7, 0)))
}
