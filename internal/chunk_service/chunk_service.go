package chunk_service

import (
	"context"
	"fmt"
)

// ChunkService stores the fixed-size pieces a file's data is split into. Offsets are
// relative to the start of the chunk. A chunk that was never written reads as zeros.
type ChunkService interface {
	WriteChunk(ctx context.Context, chunkID string, offset int64, data []byte) error
	ReadChunk(ctx context.Context, chunkID string, offset int64, length int64) ([]byte, error)
	DeleteChunk(ctx context.Context, chunkID string) error
}

// ChunkID names chunk index of file fileID.
func ChunkID(fileID uint64, index uint64) string {
	return fmt.Sprintf("%d_%d", fileID, index)
}

// ChunkCount is the number of chunks a file of the given length occupies.
func ChunkCount(length, chunkSize uint64) uint64 {
	if chunkSize == 0 {
		return 0
	}
	return (length + chunkSize - 1) / chunkSize
}

// DeleteFileChunks removes every chunk of a file. Missing chunks are skipped.
func DeleteFileChunks(ctx context.Context, cs ChunkService, fileID, length, chunkSize uint64) error {
	var firstErr error
	for i := uint64(0); i < ChunkCount(length, chunkSize); i++ {
		if err := cs.DeleteChunk(ctx, ChunkID(fileID, i)); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func ValidateRange(offset, length int64) error {
	if offset < 0 || length < 0 {
		return fmt.Errorf("%w: offset=%d length=%d", ErrInvalidRange, offset, length)
	}
	return nil
}
