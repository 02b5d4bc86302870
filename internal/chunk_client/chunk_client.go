package chunk_client

import "context"

// ChunkClient moves chunk data between a file session and wherever chunks live.
type ChunkClient interface {
	WriteChunk(ctx context.Context, chunkID string, offset int64, data []byte) error
	ReadChunk(ctx context.Context, chunkID string, offset int64, length int64) ([]byte, error)
	Close() error
}
