// Package simple wires one cluster node: a metadata namespace, a chunk store or
// both behind a single communicator.
package simple

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

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
	locallog "github.com/AnishMulay/sandblock/internal/log_service/localdisc"
	ms "github.com/AnishMulay/sandblock/internal/metadata_service"
	"github.com/AnishMulay/sandblock/internal/metadata_service/namespace"
	"github.com/AnishMulay/sandblock/internal/metrics"
	simpleserver "github.com/AnishMulay/sandblock/internal/server/simple"
)

const stopTimeout = 10 * time.Second

type Node struct {
	cfg     *config.Config
	ls      log_service.LogService
	logFile *locallog.LocalDiscLogService

	comm    communication.Communicator
	cluster cluster.ClusterService
	ns      *namespace.Namespace
	srv     *simpleserver.SimpleServer
	metrics *metrics.Server
}

// Build assembles a node from cfg without starting anything that listens.
// Storage comes from the embedded section; a chunk-only node ignores the
// metadata store settings.
func Build(ctx context.Context, cfg *config.Config) (*Node, error) {
	logFile, err := locallog.NewLocalDiscLogService(cfg.Logging.Path, cfg.Server.NodeID, cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	n := &Node{cfg: cfg, ls: logFile, logFile: logFile}

	if cfg.Transport == config.TransportHTTP {
		n.comm = httpcomm.NewHTTPCommunicator(cfg.Server.ListenAddr, n.ls)
	} else {
		n.comm = grpccomm.NewGRPCCommunicator(cfg.Server.ListenAddr, n.ls)
	}

	if cfg.Server.Register {
		n.cluster = etcdcluster.NewEtcdClusterService(cfg.MDS.EtcdEndpoints, cfg.MDS.EtcdPrefix, n.ls)
	} else {
		n.cluster = static.NewStaticClusterService(chunkNodes(cfg.MDS.ChunkAddrs))
	}

	var cs chunk_service.ChunkService
	if cfg.Server.Role != config.RoleMetadata {
		local, err := config.NewChunkService(ctx, cfg.Embedded.Chunk, n.ls)
		if err != nil {
			_ = logFile.Close()
			return nil, err
		}
		cs = local
	}

	var md ms.MetadataService
	if cfg.Server.Role != config.RoleChunk {
		store, err := config.NewMetadataStore(cfg.Embedded.Metadata)
		if err != nil {
			_ = logFile.Close()
			return nil, err
		}
		n.ns = namespace.NewNamespace(store, namespace.Options{
			RootUser:     cfg.Embedded.RootUser,
			RootPassword: cfg.Embedded.RootPassword,
			ChunkSize:    cfg.Embedded.ChunkSize,
			LeaseTime:    cfg.Embedded.LeaseTime,
		}, n.ls)

		// A metadata-only node drops chunks on the chunk nodes that hold them.
		holder := cs
		if holder == nil {
			holder = remotechunk.NewRemoteChunkClient(n.comm, n.cluster, cfg.Server.NodeID, cfg.MDS.RPCTimeout, n.ls)
		}
		n.ns.OnDelete(func(ctx context.Context, fi ms.FileInfo) {
			if err := chunk_service.DeleteFileChunks(ctx, holder, fi.ID, fi.Length, fi.ChunkSize); err != nil {
				n.ls.Warn(log_service.LogEvent{
					Message:  "Failed to delete chunks of removed file",
					Metadata: map[string]any{"path": fi.FullPath, "error": err.Error()},
				})
			}
		})
		md = n.ns
	}

	n.srv = simpleserver.NewSimpleServer(n.comm, md, cs, n.ls)

	if cfg.DummyServer.Enabled {
		metrics.InitRegistry()
		n.metrics = metrics.NewServer(metrics.ServerConfig{Port: cfg.DummyServer.StartPort}, n.ls)
	}
	return n, nil
}

func chunkNodes(addrs []string) []cluster.ClusterNode {
	var nodes []cluster.ClusterNode
	for i, addr := range addrs {
		nodes = append(nodes, cluster.ClusterNode{ID: fmt.Sprintf("chunk-%d", i), Address: addr, Role: cluster.RoleChunk})
	}
	return nodes
}

func (n *Node) Start(ctx context.Context) error {
	n.ls.Info(log_service.LogEvent{
		Message:  "Starting node",
		Metadata: map[string]any{"nodeID": n.cfg.Server.NodeID, "role": n.cfg.Server.Role, "listen": n.cfg.Server.ListenAddr},
	})

	if n.ns != nil {
		if err := n.ns.Start(ctx); err != nil {
			return err
		}
	}
	if err := n.srv.Start(); err != nil {
		return err
	}
	if err := n.cluster.Start(ctx); err != nil {
		_ = n.srv.Stop()
		return err
	}

	if n.cfg.Server.Register {
		if err := n.cluster.RegisterNode(cluster.ClusterNode{
			ID:      n.cfg.Server.NodeID,
			Address: n.Address(),
			Role:    n.cfg.Server.Role,
		}); err != nil {
			_ = n.cluster.Stop(ctx)
			_ = n.srv.Stop()
			return err
		}
	}

	if n.metrics != nil {
		if err := n.metrics.Start(); err != nil {
			n.ls.Warn(log_service.LogEvent{
				Message:  "Metrics listener not started",
				Metadata: map[string]any{"port": n.cfg.DummyServer.StartPort, "error": err.Error()},
			})
			n.metrics = nil
		}
	}
	return nil
}

// Address is the advertised address, falling back to the bound one.
func (n *Node) Address() string {
	if n.cfg.Server.AdvertiseAddr != "" {
		return n.cfg.Server.AdvertiseAddr
	}
	return n.srv.Address()
}

func (n *Node) Stop(ctx context.Context) error {
	n.ls.Info(log_service.LogEvent{
		Message:  "Stopping node",
		Metadata: map[string]any{"nodeID": n.cfg.Server.NodeID},
	})

	var errs []error
	if n.metrics != nil {
		errs = append(errs, n.metrics.Stop(ctx))
	}
	errs = append(errs, n.cluster.Stop(ctx), n.srv.Stop())
	if n.ns != nil {
		errs = append(errs, n.ns.Stop())
	}
	errs = append(errs, n.logFile.Close())
	return errors.Join(errs...)
}

// Run starts the node and blocks until SIGINT or SIGTERM.
func (n *Node) Run() error {
	if err := n.Start(context.Background()); err != nil {
		return err
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return n.Stop(ctx)
}
