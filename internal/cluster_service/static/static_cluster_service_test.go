package static

import (
	"testing"

	cluster "github.com/AnishMulay/sandblock/internal/cluster_service"
)

func TestStaticClusterService_NodesWithRole(t *testing.T) {
	s := NewStaticClusterService([]cluster.ClusterNode{
		{ID: "c2", Address: "10.0.0.2:9000", Role: cluster.RoleChunk},
		{ID: "m1", Address: "10.0.0.1:9000", Role: cluster.RoleMetadata},
		{ID: "a1", Address: "10.0.0.3:9000", Role: cluster.RoleAll},
	})
	_ = s.RegisterNode(cluster.ClusterNode{ID: "c1", Address: "10.0.0.4:9000", Role: cluster.RoleChunk})

	nodes, err := s.GetHealthyNodes()
	if err != nil {
		t.Fatalf("GetHealthyNodes() error = %v", err)
	}

	tests := []struct {
		role string
		want []string
	}{
		{role: cluster.RoleChunk, want: []string{"a1", "c1", "c2"}},
		{role: cluster.RoleMetadata, want: []string{"a1", "m1"}},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			got := cluster.NodesWithRole(nodes, tt.role)
			if len(got) != len(tt.want) {
				t.Fatalf("NodesWithRole(%s) = %d nodes, want %d", tt.role, len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("NodesWithRole(%s)[%d] = %s, want %s", tt.role, i, got[i].ID, id)
				}
				if got[i].Status != cluster.NodeStatusAlive {
					t.Errorf("node %s status = %s, want Alive", got[i].ID, got[i].Status)
				}
			}
		})
	}
}
