package remote

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/AnishMulay/sandblock/internal/chunk_client"
	cluster "github.com/AnishMulay/sandblock/internal/cluster_service"
	"github.com/AnishMulay/sandblock/internal/communication"
	"github.com/AnishMulay/sandblock/internal/log_service"
	"github.com/AnishMulay/sandblock/internal/server"
)

// RemoteChunkClient places each chunk on one chunk node chosen by hashing the
// chunk id over the healthy chunk nodes ordered by id.
type RemoteChunkClient struct {
	comm     communication.Communicator
	cluster  cluster.ClusterService
	clientID string
	timeout  time.Duration
	ls       log_service.LogService
}

func NewRemoteChunkClient(
	comm communication.Communicator,
	cs cluster.ClusterService,
	clientID string,
	timeout time.Duration,
	ls log_service.LogService,
) *RemoteChunkClient {
	return &RemoteChunkClient{
		comm:     comm,
		cluster:  cs,
		clientID: clientID,
		timeout:  timeout,
		ls:       ls,
	}
}

// Placement returns the node holding chunkID.
func (c *RemoteChunkClient) Placement(chunkID string) (cluster.SafeNode, error) {
	healthy, err := c.cluster.GetHealthyNodes()
	if err != nil {
		return cluster.SafeNode{}, err
	}
	nodes := cluster.NodesWithRole(healthy, cluster.RoleChunk)
	if len(nodes) == 0 {
		return cluster.SafeNode{}, chunk_client.ErrNoChunkNodes
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(chunkID))
	return nodes[h.Sum32()%uint32(len(nodes))], nil
}

func (c *RemoteChunkClient) send(ctx context.Context, chunkID string, msgType string, payload any) (*communication.Response, error) {
	node, err := c.Placement(chunkID)
	if err != nil {
		return nil, err
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.comm.Send(ctx, node.Address, communication.Message{
		From:    c.clientID,
		Type:    msgType,
		Payload: payload,
	})
	if err != nil {
		c.ls.Warn(log_service.LogEvent{
			Message:  "Chunk request failed",
			Metadata: map[string]any{"chunkID": chunkID, "node": node.ID, "type": msgType, "error": err.Error()},
		})
		return nil, fmt.Errorf("chunk %s on %s: %w", chunkID, node.ID, err)
	}
	if err := server.ErrorForResponse(resp); err != nil {
		return nil, fmt.Errorf("chunk %s on %s: %w", chunkID, node.ID, err)
	}
	return resp, nil
}

func (c *RemoteChunkClient) WriteChunk(ctx context.Context, chunkID string, offset int64, data []byte) error {
	_, err := c.send(ctx, chunkID, server.MsgChunkWrite, server.ChunkWriteRequest{
		ChunkID: chunkID,
		Offset:  offset,
		Data:    data,
	})
	return err
}

func (c *RemoteChunkClient) ReadChunk(ctx context.Context, chunkID string, offset int64, length int64) ([]byte, error) {
	resp, err := c.send(ctx, chunkID, server.MsgChunkRead, server.ChunkReadRequest{
		ChunkID: chunkID,
		Offset:  offset,
		Length:  length,
	})
	if err != nil {
		return nil, err
	}
	if int64(len(resp.Body)) != length {
		return nil, fmt.Errorf("%w: chunk %s got %d want %d", chunk_client.ErrShortChunkRead, chunkID, len(resp.Body), length)
	}
	return resp.Body, nil
}

// DeleteChunk lets a metadata node remove the chunks of a deleted file from
// the chunk nodes holding them.
func (c *RemoteChunkClient) DeleteChunk(ctx context.Context, chunkID string) error {
	_, err := c.send(ctx, chunkID, server.MsgChunkDelete, server.ChunkDeleteRequest{ChunkID: chunkID})
	return err
}

// Close is a no-op; the communicator belongs to the metadata client.
func (c *RemoteChunkClient) Close() error { return nil }
