package cluster_service

import (
	"context"
	"sort"
	"time"
)

// NodeStatus represents the liveness state of a node.
type NodeStatus int

const (
	NodeStatusUnknown NodeStatus = iota
	NodeStatusAlive
	NodeStatusSuspect
	NodeStatusDown
)

func (s NodeStatus) String() string {
	switch s {
	case NodeStatusAlive:
		return "Alive"
	case NodeStatusSuspect:
		return "Suspect"
	case NodeStatusDown:
		return "Down"
	default:
		return "Unknown"
	}
}

// Node roles. A node with RoleAll serves both namespace and chunk traffic.
const (
	RoleMetadata = "mds"
	RoleChunk    = "chunk"
	RoleAll      = "all"
)

// ClusterNode represents the STATIC configuration of a node.
// This exists even if the node is currently offline.
type ClusterNode struct {
	ID       string            `json:"id"`
	Address  string            `json:"address"`
	Role     string            `json:"role"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NodeLiveness represents the EPHEMERAL runtime state of a node.
type NodeLiveness struct {
	NodeID        string     `json:"nodeId"`
	Status        NodeStatus `json:"status"`
	LeaseID       int64      `json:"leaseId"`
	LastRenewedAt time.Time  `json:"lastRenewedAt"`
}

type SafeNode struct {
	ID       string
	Address  string
	Role     string
	Status   NodeStatus
	Metadata map[string]string
}

func (n SafeNode) HasRole(role string) bool {
	return n.Role == role || n.Role == RoleAll || n.Role == ""
}

type ClusterService interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error

	// Registration (Node Side)
	RegisterNode(node ClusterNode) error

	// GetHealthyNodes returns a list of nodes that are currently Alive.
	GetHealthyNodes() ([]SafeNode, error)

	// GetAllNodes returns all nodes in the static configuration, regardless of status.
	GetAllNodes() ([]SafeNode, error)

	// Watch allows components to subscribe to cluster changes.
	Watch(callback func())
}

// NodesWithRole filters nodes by role and orders them by ID so every client sees
// the same placement order.
func NodesWithRole(nodes []SafeNode, role string) []SafeNode {
	var out []SafeNode
	for _, n := range nodes {
		if n.HasRole(role) {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
