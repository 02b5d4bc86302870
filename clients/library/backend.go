package sandlib

import (
	"context"
	"fmt"

	"github.com/AnishMulay/sandblock/internal/chunk_client"
	localchunk "github.com/AnishMulay/sandblock/internal/chunk_client/local"
	remotechunk "github.com/AnishMulay/sandblock/internal/chunk_client/remote"
	"github.com/AnishMulay/sandblock/internal/chunk_service"
	cluster "github.com/AnishMulay/sandblock/internal/cluster_service"
	etcdcluster "github.com/AnishMulay/sandblock/internal/cluster_service/etcd"
	"github.com/AnishMulay/sandblock/internal/cluster_service/static"
	"github.com/AnishMulay/sandblock/internal/communication"
	grpccomm "github.com/AnishMulay/sandblock/internal/communication/grpc"
	httpcomm "github.com/AnishMulay/sandblock/internal/communication/http"
	"github.com/AnishMulay/sandblock/internal/config"
	"github.com/AnishMulay/sandblock/internal/log_service"
	"github.com/AnishMulay/sandblock/internal/mds_client"
	localmds "github.com/AnishMulay/sandblock/internal/mds_client/local"
	remotemds "github.com/AnishMulay/sandblock/internal/mds_client/remote"
	ms "github.com/AnishMulay/sandblock/internal/metadata_service"
	"github.com/AnishMulay/sandblock/internal/metadata_service/namespace"
)

// Backend is what one FileClient talks to: a metadata client and the chunk
// client its sessions share.
type Backend struct {
	MDS    mds_client.MDSClient
	Chunks chunk_client.ChunkClient
}

// BackendFactory builds a backend without initializing it.
type BackendFactory func(ctx context.Context, cfg *config.Config, ls log_service.LogService) (*Backend, error)

// NewBackend builds the backend selected by cfg.Mode.
func NewBackend(ctx context.Context, cfg *config.Config, ls log_service.LogService) (*Backend, error) {
	switch cfg.Mode {
	case config.ModeEmbedded:
		return newEmbeddedBackend(ctx, cfg, ls)
	case config.ModeRemote:
		return newRemoteBackend(cfg, ls)
	default:
		return nil, fmt.Errorf("unknown mode %q", cfg.Mode)
	}
}

func newCommunicator(transport string, ls log_service.LogService) communication.Communicator {
	if transport == config.TransportHTTP {
		return httpcomm.NewHTTPCommunicator("", ls)
	}
	return grpccomm.NewGRPCCommunicator("", ls)
}

// staticNodes turns the configured addresses into cluster nodes. Without
// explicit chunk servers the metadata servers serve chunks too.
func staticNodes(mds config.MDSConfig) []cluster.ClusterNode {
	role := cluster.RoleMetadata
	if len(mds.ChunkAddrs) == 0 {
		role = cluster.RoleAll
	}

	var nodes []cluster.ClusterNode
	for i, addr := range mds.Addrs {
		nodes = append(nodes, cluster.ClusterNode{ID: fmt.Sprintf("mds-%d", i), Address: addr, Role: role})
	}
	for i, addr := range mds.ChunkAddrs {
		nodes = append(nodes, cluster.ClusterNode{ID: fmt.Sprintf("chunk-%d", i), Address: addr, Role: cluster.RoleChunk})
	}
	return nodes
}

func newRemoteBackend(cfg *config.Config, ls log_service.LogService) (*Backend, error) {
	var discovery cluster.ClusterService
	switch cfg.MDS.Discovery {
	case config.DiscoveryEtcd:
		discovery = etcdcluster.NewEtcdClusterService(cfg.MDS.EtcdEndpoints, cfg.MDS.EtcdPrefix, ls)
	default:
		discovery = static.NewStaticClusterService(staticNodes(cfg.MDS))
	}

	comm := newCommunicator(cfg.Transport, ls)
	mds := remotemds.NewRemoteMDSClient(comm, discovery, remotemds.Options{
		ClientID:      cfg.ClientID,
		RPCTimeout:    cfg.MDS.RPCTimeout,
		RetryTimes:    cfg.MDS.RetryTimes,
		RetryInterval: cfg.MDS.RetryInterval,
	}, ls)

	return &Backend{
		MDS:    mds,
		Chunks: remotechunk.NewRemoteChunkClient(comm, discovery, mds.ClientID(), cfg.MDS.RPCTimeout, ls),
	}, nil
}

func newEmbeddedBackend(ctx context.Context, cfg *config.Config, ls log_service.LogService) (*Backend, error) {
	store, err := config.NewMetadataStore(cfg.Embedded.Metadata)
	if err != nil {
		return nil, err
	}
	chunks, err := config.NewChunkService(ctx, cfg.Embedded.Chunk, ls)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	ns := namespace.NewNamespace(store, namespace.Options{
		RootUser:     cfg.Embedded.RootUser,
		RootPassword: cfg.Embedded.RootPassword,
		ChunkSize:    cfg.Embedded.ChunkSize,
		LeaseTime:    cfg.Embedded.LeaseTime,
		Alignment:    IOAlignedBlockSize,
	}, ls)
	ns.OnDelete(func(ctx context.Context, fi ms.FileInfo) {
		if err := chunk_service.DeleteFileChunks(ctx, chunks, fi.ID, fi.Length, fi.ChunkSize); err != nil {
			ls.Warn(log_service.LogEvent{
				Message:  "Failed to delete chunks of removed file",
				Metadata: map[string]any{"path": fi.FullPath, "error": err.Error()},
			})
		}
	})

	return &Backend{
		MDS:    localmds.NewLocalMDSClient(ns, cfg.ClientID),
		Chunks: localchunk.NewLocalChunkClient(chunks),
	}, nil
}
