package localdisc

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	"github.com/AnishMulay/sandblock/internal/chunk_service"
	"github.com/AnishMulay/sandblock/internal/log_service"
)

func newService(t *testing.T) *LocalDiscChunkService {
	t.Helper()
	cs, err := NewLocalDiscChunkService(t.TempDir(), log_service.Nop())
	if err != nil {
		t.Fatalf("NewLocalDiscChunkService() error = %v", err)
	}
	return cs
}

func TestLocalDiscChunkService_WriteThenRead(t *testing.T) {
	tests := []struct {
		name       string
		writeOff   int64
		data       []byte
		readOff    int64
		readLen    int64
		wantResult []byte
	}{
		{
			name:       "read back what was written",
			writeOff:   0,
			data:       []byte("hello world"),
			readOff:    0,
			readLen:    11,
			wantResult: []byte("hello world"),
		},
		{
			name:       "write at offset leaves a zero hole",
			writeOff:   4,
			data:       []byte{0xAA, 0xBB},
			readOff:    0,
			readLen:    6,
			wantResult: []byte{0, 0, 0, 0, 0xAA, 0xBB},
		},
		{
			name:       "read past end is zero filled",
			writeOff:   0,
			data:       []byte{1, 2},
			readOff:    0,
			readLen:    4,
			wantResult: []byte{1, 2, 0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs := newService(t)
			ctx := context.Background()

			if err := cs.WriteChunk(ctx, "1_0", tt.writeOff, tt.data); err != nil {
				t.Fatalf("WriteChunk() error = %v", err)
			}
			got, err := cs.ReadChunk(ctx, "1_0", tt.readOff, tt.readLen)
			if err != nil {
				t.Fatalf("ReadChunk() error = %v", err)
			}
			if !bytes.Equal(got, tt.wantResult) {
				t.Errorf("ReadChunk() = %v, want %v", got, tt.wantResult)
			}
		})
	}
}

func TestLocalDiscChunkService_ReadMissingChunkIsZero(t *testing.T) {
	cs := newService(t)

	got, err := cs.ReadChunk(context.Background(), "missing", 0, 8)
	if err != nil {
		t.Fatalf("ReadChunk() error = %v", err)
	}
	if !bytes.Equal(got, make([]byte, 8)) {
		t.Errorf("ReadChunk() = %v, want zeros", got)
	}
}

func TestLocalDiscChunkService_Delete(t *testing.T) {
	cs := newService(t)
	ctx := context.Background()

	if err := cs.WriteChunk(ctx, "2_0", 0, []byte("x")); err != nil {
		t.Fatalf("WriteChunk() error = %v", err)
	}
	if err := cs.DeleteChunk(ctx, "2_0"); err != nil {
		t.Fatalf("DeleteChunk() error = %v", err)
	}
	if _, err := os.Stat(cs.chunkPath("2_0")); !os.IsNotExist(err) {
		t.Errorf("chunk file still present after delete")
	}
	if err := cs.DeleteChunk(ctx, "2_0"); err != nil {
		t.Errorf("DeleteChunk() on missing chunk error = %v", err)
	}
}

func TestLocalDiscChunkService_RejectsNegativeOffset(t *testing.T) {
	cs := newService(t)

	err := cs.WriteChunk(context.Background(), "3_0", -1, []byte("x"))
	if !errors.Is(err, chunk_service.ErrInvalidRange) {
		t.Errorf("WriteChunk() error = %v, want ErrInvalidRange", err)
	}
}

func TestDeleteFileChunks(t *testing.T) {
	cs := newService(t)
	ctx := context.Background()

	for i := uint64(0); i < 3; i++ {
		if err := cs.WriteChunk(ctx, chunk_service.ChunkID(9, i), 0, []byte("d")); err != nil {
			t.Fatalf("WriteChunk() error = %v", err)
		}
	}
	if err := chunk_service.DeleteFileChunks(ctx, cs, 9, 3*4096, 4096); err != nil {
		t.Fatalf("DeleteFileChunks() error = %v", err)
	}
	for i := uint64(0); i < 3; i++ {
		if _, err := os.Stat(cs.chunkPath(chunk_service.ChunkID(9, i))); !os.IsNotExist(err) {
			t.Errorf("chunk %d still present", i)
		}
	}
}
