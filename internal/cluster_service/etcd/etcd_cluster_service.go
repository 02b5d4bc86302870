package etcd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	cluster "github.com/AnishMulay/sandblock/internal/cluster_service"
	"github.com/AnishMulay/sandblock/internal/log_service"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
)

const (
	EtcdDialTimeout = 5 * time.Second
	LeaseTTL        = 5 // seconds
	DefaultPrefix   = "/sandblock/"
)

type EtcdClusterService struct {
	mu        sync.RWMutex
	client    *clientv3.Client
	endpoints []string
	ls        log_service.LogService

	prefixConfig string
	prefixLease  string
	prefixRoot   string

	// Local identity
	selfNode cluster.ClusterNode
	leaseID  clientv3.LeaseID

	// Local Cache
	configCache map[string]cluster.ClusterNode
	// Map of NodeID -> NodeLiveness (Dynamic State)
	livenessCache map[string]cluster.NodeLiveness

	// Callbacks
	watchCallbacks []func()

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewEtcdClusterService keeps its keys under prefix, DefaultPrefix when empty.
func NewEtcdClusterService(endpoints []string, prefix string, ls log_service.LogService) *EtcdClusterService {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &EtcdClusterService{
		endpoints:     endpoints,
		ls:            ls,
		prefixRoot:    prefix,
		prefixConfig:  prefix + "config/nodes/",
		prefixLease:   prefix + "leases/",
		configCache:   make(map[string]cluster.ClusterNode),
		livenessCache: make(map[string]cluster.NodeLiveness),
		stopCh:        make(chan struct{}),
	}
}

func (s *EtcdClusterService) Start(ctx context.Context) error {
	s.ls.Info(log_service.LogEvent{Message: "Starting EtcdClusterService", Metadata: map[string]any{"endpoints": s.endpoints}})

	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   s.endpoints,
		DialTimeout: EtcdDialTimeout,
		Context:     ctx,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to etcd: %w", err)
	}
	s.client = cli

	if err := s.syncState(ctx); err != nil {
		_ = cli.Close()
		return err
	}

	s.wg.Add(1)
	go s.watchLoop()

	return nil
}

func (s *EtcdClusterService) Stop(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		s.ls.Info(log_service.LogEvent{Message: "Stopping EtcdClusterService"})
		close(s.stopCh)

		if s.client == nil {
			return
		}
		if s.leaseID != 0 {
			if _, rerr := s.client.Revoke(ctx, s.leaseID); rerr != nil {
				s.ls.Warn(log_service.LogEvent{Message: "Failed to revoke lease during shutdown", Metadata: map[string]any{"error": rerr.Error()}})
			}
		}

		s.wg.Wait()
		err = s.client.Close()
	})
	return err
}

// RegisterNode publishes the node's static entry and a liveness key bound to a lease
// that is kept alive until Stop.
func (s *EtcdClusterService) RegisterNode(node cluster.ClusterNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), EtcdDialTimeout)
	defer cancel()

	s.selfNode = node
	cfg, err := json.Marshal(node)
	if err != nil {
		return err
	}
	if _, err := s.client.Put(ctx, s.prefixConfig+node.ID, string(cfg)); err != nil {
		return fmt.Errorf("failed to put node config: %w", err)
	}
	s.configCache[node.ID] = node

	resp, err := s.client.Grant(ctx, LeaseTTL)
	if err != nil {
		return fmt.Errorf("failed to grant lease: %w", err)
	}
	s.leaseID = resp.ID

	liveness := cluster.NodeLiveness{
		NodeID:        node.ID,
		Status:        cluster.NodeStatusAlive,
		LeaseID:       int64(s.leaseID),
		LastRenewedAt: time.Now(),
	}
	val, _ := json.Marshal(liveness)

	_, err = s.client.Put(ctx, s.prefixLease+node.ID, string(val), clientv3.WithLease(s.leaseID))
	if err != nil {
		return fmt.Errorf("failed to put liveness key: %w", err)
	}
	s.livenessCache[node.ID] = liveness

	s.ls.Info(log_service.LogEvent{
		Message:  "Node Registered in Cluster",
		Metadata: map[string]any{"id": node.ID, "role": node.Role, "leaseID": s.leaseID},
	})

	s.wg.Add(1)
	go s.heartbeatLoop(s.leaseID)

	return nil
}

func (s *EtcdClusterService) heartbeatLoop(leaseID clientv3.LeaseID) {
	defer s.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := s.client.KeepAlive(ctx, leaseID)
	if err != nil {
		s.ls.Error(log_service.LogEvent{Message: "Failed to start keepalive channel", Metadata: map[string]any{"error": err.Error()}})
		return
	}

	for {
		select {
		case <-s.stopCh:
			return
		case _, ok := <-ch:
			if !ok {
				s.ls.Error(log_service.LogEvent{Message: "Etcd keepalive channel closed unexpectedly"})
				return
			}
		}
	}
}

func (s *EtcdClusterService) syncState(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	respCfg, err := s.client.Get(ctx, s.prefixConfig, clientv3.WithPrefix())
	if err != nil {
		return err
	}
	for _, kv := range respCfg.Kvs {
		var n cluster.ClusterNode
		if err := json.Unmarshal(kv.Value, &n); err == nil {
			s.configCache[n.ID] = n
		}
	}

	respLease, err := s.client.Get(ctx, s.prefixLease, clientv3.WithPrefix())
	if err != nil {
		return err
	}
	for _, kv := range respLease.Kvs {
		var l cluster.NodeLiveness
		if err := json.Unmarshal(kv.Value, &l); err == nil {
			s.livenessCache[l.NodeID] = l
		}
	}

	return nil
}

func (s *EtcdClusterService) watchLoop() {
	defer s.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watchCh := s.client.Watch(ctx, s.prefixRoot, clientv3.WithPrefix())

	for {
		select {
		case <-s.stopCh:
			return
		case resp, ok := <-watchCh:
			if !ok {
				return
			}
			for _, ev := range resp.Events {
				s.handleEvent(ev)
			}
		}
	}
}

func (s *EtcdClusterService) handleEvent(ev *clientv3.Event) {
	s.mu.Lock()
	s.applyEvent(ev.Type, string(ev.Kv.Key), ev.Kv.Value)
	s.mu.Unlock()

	s.notifyWatchers()
}

// applyEvent updates the caches for one key change. Callers hold mu.
func (s *EtcdClusterService) applyEvent(typ mvccpb.Event_EventType, key string, value []byte) {
	switch {
	case strings.HasPrefix(key, s.prefixConfig) && len(key) > len(s.prefixConfig):
		if typ == clientv3.EventTypePut {
			var n cluster.ClusterNode
			if err := json.Unmarshal(value, &n); err == nil {
				s.configCache[n.ID] = n
			}
		} else if typ == clientv3.EventTypeDelete {
			delete(s.configCache, key[len(s.prefixConfig):])
		}
	case strings.HasPrefix(key, s.prefixLease) && len(key) > len(s.prefixLease):
		id := key[len(s.prefixLease):]
		if typ == clientv3.EventTypePut {
			var l cluster.NodeLiveness
			if err := json.Unmarshal(value, &l); err == nil {
				s.livenessCache[l.NodeID] = l
			}
		} else if typ == clientv3.EventTypeDelete {
			if entry, ok := s.livenessCache[id]; ok {
				entry.Status = cluster.NodeStatusDown
				s.livenessCache[id] = entry
			}
		}
	}
}

func (s *EtcdClusterService) notifyWatchers() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, cb := range s.watchCallbacks {
		go cb()
	}
}

func (s *EtcdClusterService) Watch(callback func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchCallbacks = append(s.watchCallbacks, callback)
}

func (s *EtcdClusterService) GetHealthyNodes() ([]cluster.SafeNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var nodes []cluster.SafeNode
	for id, cfg := range s.configCache {
		liveness, hasLease := s.livenessCache[id]
		if hasLease && liveness.Status == cluster.NodeStatusAlive {
			nodes = append(nodes, cluster.SafeNode{
				ID:       cfg.ID,
				Address:  cfg.Address,
				Role:     cfg.Role,
				Status:   cluster.NodeStatusAlive,
				Metadata: cfg.Metadata,
			})
		}
	}
	return nodes, nil
}

func (s *EtcdClusterService) GetAllNodes() ([]cluster.SafeNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var nodes []cluster.SafeNode
	for id, cfg := range s.configCache {
		status := cluster.NodeStatusDown
		if l, ok := s.livenessCache[id]; ok {
			status = l.Status
		}

		nodes = append(nodes, cluster.SafeNode{
			ID:       cfg.ID,
			Address:  cfg.Address,
			Role:     cfg.Role,
			Status:   status,
			Metadata: cfg.Metadata,
		})
	}
	return nodes, nil
}
