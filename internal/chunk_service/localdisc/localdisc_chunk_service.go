package localdisc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/AnishMulay/sandblock/internal/chunk_service"
	"github.com/AnishMulay/sandblock/internal/log_service"
)

type LocalDiscChunkService struct {
	baseDir string
	ls      log_service.LogService
}

func NewLocalDiscChunkService(baseDir string, ls log_service.LogService) (*LocalDiscChunkService, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create chunk dir %s: %w", baseDir, err)
	}
	return &LocalDiscChunkService{
		baseDir: baseDir,
		ls:      ls,
	}, nil
}

func (cs *LocalDiscChunkService) chunkPath(chunkID string) string {
	return filepath.Join(cs.baseDir, chunkID+".chunk")
}

func (cs *LocalDiscChunkService) WriteChunk(_ context.Context, chunkID string, offset int64, data []byte) error {
	if err := chunk_service.ValidateRange(offset, int64(len(data))); err != nil {
		return err
	}

	cs.ls.Debug(log_service.LogEvent{
		Message:  "Writing chunk",
		Metadata: map[string]any{"chunkID": chunkID, "offset": offset, "size": len(data)},
	})

	f, err := os.OpenFile(cs.chunkPath(chunkID), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		cs.ls.Error(log_service.LogEvent{
			Message:  "Failed to open chunk",
			Metadata: map[string]any{"chunkID": chunkID, "error": err.Error()},
		})
		return fmt.Errorf("%w: %v", chunk_service.ErrChunkWriteFailed, err)
	}
	defer f.Close()

	if _, err := f.WriteAt(data, offset); err != nil {
		cs.ls.Error(log_service.LogEvent{
			Message:  "Failed to write chunk",
			Metadata: map[string]any{"chunkID": chunkID, "error": err.Error()},
		})
		return fmt.Errorf("%w: %v", chunk_service.ErrChunkWriteFailed, err)
	}
	return nil
}

func (cs *LocalDiscChunkService) ReadChunk(_ context.Context, chunkID string, offset int64, length int64) ([]byte, error) {
	if err := chunk_service.ValidateRange(offset, length); err != nil {
		return nil, err
	}

	cs.ls.Debug(log_service.LogEvent{
		Message:  "Reading chunk",
		Metadata: map[string]any{"chunkID": chunkID, "offset": offset, "length": length},
	})

	buf := make([]byte, length)
	f, err := os.Open(cs.chunkPath(chunkID))
	if errors.Is(err, os.ErrNotExist) {
		return buf, nil
	}
	if err != nil {
		cs.ls.Error(log_service.LogEvent{
			Message:  "Failed to open chunk",
			Metadata: map[string]any{"chunkID": chunkID, "error": err.Error()},
		})
		return nil, fmt.Errorf("%w: %v", chunk_service.ErrChunkReadFailed, err)
	}
	defer f.Close()

	// Bytes past the end of a sparse chunk stay zero.
	if _, err := f.ReadAt(buf, offset); err != nil && !errors.Is(err, io.EOF) {
		cs.ls.Error(log_service.LogEvent{
			Message:  "Failed to read chunk",
			Metadata: map[string]any{"chunkID": chunkID, "error": err.Error()},
		})
		return nil, fmt.Errorf("%w: %v", chunk_service.ErrChunkReadFailed, err)
	}
	return buf, nil
}

func (cs *LocalDiscChunkService) DeleteChunk(_ context.Context, chunkID string) error {
	cs.ls.Debug(log_service.LogEvent{
		Message:  "Deleting chunk",
		Metadata: map[string]any{"chunkID": chunkID},
	})

	err := os.Remove(cs.chunkPath(chunkID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		cs.ls.Error(log_service.LogEvent{
			Message:  "Failed to delete chunk",
			Metadata: map[string]any{"chunkID": chunkID, "error": err.Error()},
		})
		return fmt.Errorf("%w: %v", chunk_service.ErrChunkDeleteFailed, err)
	}
	return nil
}
