package remote

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnishMulay/sandblock/internal/chunk_service/localdisc"
	cluster "github.com/AnishMulay/sandblock/internal/cluster_service"
	"github.com/AnishMulay/sandblock/internal/cluster_service/static"
	grpccomm "github.com/AnishMulay/sandblock/internal/communication/grpc"
	"github.com/AnishMulay/sandblock/internal/log_service"
	"github.com/AnishMulay/sandblock/internal/log_service/memory"
	"github.com/AnishMulay/sandblock/internal/mds_client"
	ms "github.com/AnishMulay/sandblock/internal/metadata_service"
	"github.com/AnishMulay/sandblock/internal/metadata_service/memstore"
	"github.com/AnishMulay/sandblock/internal/metadata_service/namespace"
	"github.com/AnishMulay/sandblock/internal/server/simple"
)

var alice = ms.UserInfo{Owner: "alice", Password: "pw"}

func startMDS(t *testing.T) string {
	t.Helper()
	cs, err := localdisc.NewLocalDiscChunkService(t.TempDir(), log_service.Nop())
	require.NoError(t, err)
	ns := namespace.NewNamespace(memstore.NewMemStore(), namespace.Options{RootUser: "root", RootPassword: "rootpw"}, log_service.Nop())
	require.NoError(t, ns.Start(context.Background()))

	srv := simple.NewSimpleServer(grpccomm.NewGRPCCommunicator("127.0.0.1:0", log_service.Nop()), ns, cs, log_service.Nop())
	require.NoError(t, srv.Start())
	t.Cleanup(func() { _ = srv.Stop() })
	return srv.Address()
}

func newClient(t *testing.T, ls log_service.LogService, addrs ...string) *RemoteMDSClient {
	t.Helper()
	var nodes []cluster.ClusterNode
	for i, a := range addrs {
		nodes = append(nodes, cluster.ClusterNode{ID: string(rune('a' + i)), Address: a, Role: cluster.RoleAll})
	}
	c := NewRemoteMDSClient(
		grpccomm.NewGRPCCommunicator("", log_service.Nop()),
		static.NewStaticClusterService(nodes),
		Options{ClientID: "client-1", RPCTimeout: 2 * time.Second, RetryTimes: 2, RetryInterval: 10 * time.Millisecond},
		ls,
	)
	require.NoError(t, c.Initialize(context.Background()))
	t.Cleanup(func() { _ = c.UnInitialize() })
	return c
}

func TestRemoteMDSClient_Namespace(t *testing.T) {
	c := newClient(t, log_service.Nop(), startMDS(t))
	ctx := context.Background()

	require.NoError(t, c.Mkdir(ctx, "/vol", alice))
	require.NoError(t, c.CreateFile(ctx, "/vol/a", alice, 1<<20))
	assert.ErrorIs(t, c.CreateFile(ctx, "/vol/a", alice, 1<<20), ms.ErrFileExists)

	fi, err := c.GetFileInfo(ctx, "/vol/a", alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<20), fi.Length)
	assert.Equal(t, "alice", fi.Owner)

	require.NoError(t, c.Extend(ctx, "/vol/a", alice, 2<<20))
	assert.ErrorIs(t, c.Extend(ctx, "/vol/a", alice, 1<<20), ms.ErrNoShrink)

	require.NoError(t, c.RenameFile(ctx, alice, "/vol/a", "/vol/b"))
	entries, err := c.ListDir(ctx, "/vol", alice)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "b", entries[0].Name)

	_, err = c.GetFileInfo(ctx, "/vol/b", ms.UserInfo{Owner: "mallory"})
	assert.ErrorIs(t, err, ms.ErrAuthFailed)

	assert.ErrorIs(t, c.Rmdir(ctx, "/vol", alice), ms.ErrDirNotEmpty)
	require.NoError(t, c.DeleteFile(ctx, "/vol/b", alice, false))
	require.NoError(t, c.Rmdir(ctx, "/vol", alice))
}

func TestRemoteMDSClient_Sessions(t *testing.T) {
	c := newClient(t, log_service.Nop(), startMDS(t))
	ctx := context.Background()

	require.NoError(t, c.CreateFile(ctx, "/f", alice, 4096))
	fi, si, err := c.OpenFile(ctx, "/f", alice)
	require.NoError(t, err)
	assert.Equal(t, "/f", fi.FullPath)
	assert.Equal(t, "client-1", si.ClientID)
	assert.Greater(t, si.LeaseTime, time.Duration(0))

	_, _, err = c.OpenFile(ctx, "/f", alice)
	assert.ErrorIs(t, err, ms.ErrFileOccupied)

	_, _, err = c.RefreshSession(ctx, "/f", si.SessionID, alice)
	require.NoError(t, err)

	require.NoError(t, c.CloseFile(ctx, "/f", si.SessionID, alice))
	assert.ErrorIs(t, c.CloseFile(ctx, "/f", si.SessionID, alice), ms.ErrSessionNotFound)
}

func TestRemoteMDSClient_FailsOverToLiveServer(t *testing.T) {
	logs := memory.NewMemoryLogService()
	// "a" sorts first and points at a port nothing listens on.
	c := newClient(t, logs, "127.0.0.1:1", startMDS(t))
	c.next.Store(0)

	require.NoError(t, c.Mkdir(context.Background(), "/d", alice))
	assert.True(t, logs.Contains(log_service.WarnLevel, "trying next server"))
}

func TestRemoteMDSClient_NoServers(t *testing.T) {
	c := NewRemoteMDSClient(
		grpccomm.NewGRPCCommunicator("", log_service.Nop()),
		static.NewStaticClusterService([]cluster.ClusterNode{{ID: "c", Address: "x:1", Role: cluster.RoleChunk}}),
		Options{RPCTimeout: time.Second},
		log_service.Nop(),
	)
	assert.ErrorIs(t, c.Initialize(context.Background()), mds_client.ErrNoMetadataServer)
	assert.NotEmpty(t, c.ClientID())

	err := c.Mkdir(context.Background(), "/d", alice)
	assert.ErrorIs(t, err, mds_client.ErrNotInitialized)
}
