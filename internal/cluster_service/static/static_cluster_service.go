package static

import (
	"context"
	"sync"

	cluster "github.com/AnishMulay/sandblock/internal/cluster_service"
)

// StaticClusterService serves a fixed node list. Every node is reported alive.
type StaticClusterService struct {
	mu    sync.RWMutex
	nodes map[string]cluster.ClusterNode
}

func NewStaticClusterService(nodes []cluster.ClusterNode) *StaticClusterService {
	s := &StaticClusterService{nodes: make(map[string]cluster.ClusterNode)}
	for _, n := range nodes {
		s.nodes[n.ID] = n
	}
	return s
}

func (s *StaticClusterService) Start(context.Context) error { return nil }
func (s *StaticClusterService) Stop(context.Context) error  { return nil }

func (s *StaticClusterService) RegisterNode(node cluster.ClusterNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[node.ID] = node
	return nil
}

func (s *StaticClusterService) GetHealthyNodes() ([]cluster.SafeNode, error) {
	return s.GetAllNodes()
}

func (s *StaticClusterService) GetAllNodes() ([]cluster.SafeNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes := make([]cluster.SafeNode, 0, len(s.nodes))
	for _, n := range s.nodes {
		nodes = append(nodes, cluster.SafeNode{
			ID:       n.ID,
			Address:  n.Address,
			Role:     n.Role,
			Status:   cluster.NodeStatusAlive,
			Metadata: n.Metadata,
		})
	}
	return nodes, nil
}

// Watch never fires; the membership does not change on its own.
func (s *StaticClusterService) Watch(func()) {}
