package simple

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sandlib "github.com/AnishMulay/sandblock/clients/library"
	"github.com/AnishMulay/sandblock/internal/config"
)

func nodeConfig(t *testing.T, nodeID, role string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DummyServer.Enabled = false
	cfg.Logging.Path = t.TempDir()
	cfg.Server.NodeID = nodeID
	cfg.Server.ListenAddr = "127.0.0.1:0"
	cfg.Server.Role = role
	cfg.Embedded.ChunkSize = 64 << 10
	cfg.Embedded.Chunk.Localdisc = map[string]any{"dir": t.TempDir()}
	return cfg
}

func startNode(t *testing.T, cfg *config.Config) *Node {
	t.Helper()
	n, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, n.Start(context.Background()))
	t.Cleanup(func() { _ = n.Stop(context.Background()) })
	return n
}

func TestBuild_RemoteClientAgainstSplitRoles(t *testing.T) {
	chunkCfg := nodeConfig(t, "chunk-a", config.RoleChunk)
	chunkDir := chunkCfg.Embedded.Chunk.Localdisc["dir"].(string)
	chunkNode := startNode(t, chunkCfg)

	mdsCfg := nodeConfig(t, "mds-a", config.RoleMetadata)
	mdsCfg.MDS.ChunkAddrs = []string{chunkNode.Address()}
	mdsNode := startNode(t, mdsCfg)

	clientCfg := config.Default()
	clientCfg.DummyServer.Enabled = false
	clientCfg.Logging.Path = t.TempDir()
	clientCfg.MDS.Addrs = []string{mdsNode.Address()}
	clientCfg.MDS.ChunkAddrs = []string{chunkNode.Address()}

	c := sandlib.NewFileClient()
	require.NoError(t, c.InitWithConfig(clientCfg))
	defer c.UnInit()

	user := sandlib.UserInfo{Owner: "u"}
	require.NoError(t, c.Create("/f", user, 256<<10))

	fd, err := c.Open("/f", user)
	require.NoError(t, err)

	data := bytes.Repeat([]byte{5}, 128<<10)
	n, err := c.Write(fd, data, 32<<10)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)

	got := make([]byte, len(data))
	_, err = c.Read(fd, got, 32<<10)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	require.NoError(t, c.Close(fd))

	chunks, err := filepath.Glob(filepath.Join(chunkDir, "*.chunk"))
	require.NoError(t, err)
	assert.Len(t, chunks, 3)

	// The metadata node removes the chunks from the chunk node.
	require.NoError(t, c.Unlink("/f", user, false))
	chunks, err = filepath.Glob(filepath.Join(chunkDir, "*.chunk"))
	require.NoError(t, err)
	assert.Empty(t, chunks)

	_, err = c.StatFile("/f", user)
	assert.Equal(t, sandlib.CodeNotExist, sandlib.CodeOf(err))
}

func TestBuild_CombinedNodeOverHTTP(t *testing.T) {
	cfg := nodeConfig(t, "all-a", config.RoleAll)
	cfg.Transport = config.TransportHTTP
	node := startNode(t, cfg)

	clientCfg := config.Default()
	clientCfg.DummyServer.Enabled = false
	clientCfg.Logging.Path = t.TempDir()
	clientCfg.Transport = config.TransportHTTP
	clientCfg.MDS.Addrs = []string{node.Address()}

	c := sandlib.NewFileClient()
	require.NoError(t, c.InitWithConfig(clientCfg))
	defer c.UnInit()

	user := sandlib.UserInfo{Owner: "u"}
	require.NoError(t, c.Mkdir("/d", user))
	require.NoError(t, c.Create("/d/x", user, 8192))

	entries, err := c.Listdir("/d", user)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "x", entries[0].FileName)
}

func TestBuild_AdvertiseAddress(t *testing.T) {
	cfg := nodeConfig(t, "adv", config.RoleChunk)
	cfg.Server.AdvertiseAddr = "node.example:6700"
	n := startNode(t, cfg)
	assert.Equal(t, "node.example:6700", n.Address())
}

func TestBuild_BadStore(t *testing.T) {
	cfg := nodeConfig(t, "bad", config.RoleAll)
	cfg.Embedded.Metadata = config.MetadataStoreConfig{Type: "badger"}
	_, err := Build(context.Background(), cfg)
	assert.Error(t, err)
}
