package local

import (
	"context"

	"github.com/AnishMulay/sandblock/internal/chunk_service"
)

// LocalChunkClient calls an in-process chunk service directly.
type LocalChunkClient struct {
	cs chunk_service.ChunkService
}

func NewLocalChunkClient(cs chunk_service.ChunkService) *LocalChunkClient {
	return &LocalChunkClient{cs: cs}
}

func (c *LocalChunkClient) WriteChunk(ctx context.Context, chunkID string, offset int64, data []byte) error {
	return c.cs.WriteChunk(ctx, chunkID, offset, data)
}

func (c *LocalChunkClient) ReadChunk(ctx context.Context, chunkID string, offset int64, length int64) ([]byte, error) {
	return c.cs.ReadChunk(ctx, chunkID, offset, length)
}

func (c *LocalChunkClient) Close() error { return nil }
