package simple

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fs "github.com/AnishMulay/sandblock/internal/file_session"
	"github.com/AnishMulay/sandblock/internal/log_service"
	ms "github.com/AnishMulay/sandblock/internal/metadata_service"
)

const testChunkSize = 16 * 1024

var alice = ms.UserInfo{Owner: "alice", Password: "pw"}

type fakeMDS struct {
	mu         sync.Mutex
	file       ms.FileInfo
	lease      time.Duration
	openErr    error
	refreshErr error
	refreshes  atomic.Int32
	closes     atomic.Int32
}

func (f *fakeMDS) Initialize(context.Context) error { return nil }
func (f *fakeMDS) UnInitialize() error              { return nil }
func (f *fakeMDS) ClientID() string                 { return "fake" }
func (f *fakeMDS) CreateFile(context.Context, string, ms.UserInfo, uint64) error {
	return nil
}
func (f *fakeMDS) Mkdir(context.Context, string, ms.UserInfo) error { return nil }
func (f *fakeMDS) Rmdir(context.Context, string, ms.UserInfo) error { return nil }
func (f *fakeMDS) DeleteFile(context.Context, string, ms.UserInfo, bool) error {
	return nil
}
func (f *fakeMDS) RenameFile(context.Context, ms.UserInfo, string, string) error {
	return nil
}
func (f *fakeMDS) Extend(context.Context, string, ms.UserInfo, uint64) error { return nil }
func (f *fakeMDS) ChangeOwner(context.Context, string, string, ms.UserInfo) error {
	return nil
}
func (f *fakeMDS) GetFileInfo(context.Context, string, ms.UserInfo) (*ms.FileInfo, error) {
	return &f.file, nil
}
func (f *fakeMDS) ListDir(context.Context, string, ms.UserInfo) ([]ms.FileInfo, error) {
	return nil, nil
}

func (f *fakeMDS) OpenFile(_ context.Context, path string, _ ms.UserInfo) (*ms.FileInfo, *ms.SessionInfo, error) {
	if f.openErr != nil {
		return nil, nil, f.openErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	fi := f.file
	return &fi, &ms.SessionInfo{SessionID: "s1", ClientID: "fake", LeaseTime: f.lease}, nil
}

func (f *fakeMDS) RefreshSession(context.Context, string, string, ms.UserInfo) (*ms.FileInfo, *ms.SessionInfo, error) {
	f.refreshes.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refreshErr != nil {
		return nil, nil, f.refreshErr
	}
	fi := f.file
	return &fi, &ms.SessionInfo{SessionID: "s1", LeaseTime: f.lease}, nil
}

func (f *fakeMDS) CloseFile(context.Context, string, string, ms.UserInfo) error {
	f.closes.Add(1)
	return nil
}

func (f *fakeMDS) setFile(fi ms.FileInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.file = fi
}

func (f *fakeMDS) setRefreshErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshErr = err
}

type memChunks struct {
	mu     sync.Mutex
	chunks map[string][]byte
	calls  atomic.Int32
	gate   chan struct{}
}

func newMemChunks() *memChunks {
	return &memChunks{chunks: make(map[string][]byte)}
}

func (m *memChunks) wait() {
	if m.gate != nil {
		<-m.gate
	}
}

func (m *memChunks) WriteChunk(_ context.Context, id string, offset int64, data []byte) error {
	m.wait()
	m.calls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.chunks[id]
	if need := offset + int64(len(data)); int64(len(c)) < need {
		c = append(c, make([]byte, need-int64(len(c)))...)
	}
	copy(c[offset:], data)
	m.chunks[id] = c
	return nil
}

func (m *memChunks) ReadChunk(_ context.Context, id string, offset int64, length int64) ([]byte, error) {
	m.wait()
	m.calls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, length)
	c := m.chunks[id]
	if offset < int64(len(c)) {
		copy(out, c[offset:])
	}
	return out, nil
}

func (m *memChunks) Close() error { return nil }

func newOpenSession(t *testing.T, mds *fakeMDS, chunks *memChunks, opts Options) *Session {
	t.Helper()
	s := NewSession("/f", alice, mds, chunks, opts, log_service.Nop())
	require.NoError(t, s.Open(context.Background()))
	t.Cleanup(s.UnInitialize)
	return s
}

func testFile() ms.FileInfo {
	return ms.FileInfo{ID: 9, FullPath: "/f", Length: 4 * testChunkSize, ChunkSize: testChunkSize}
}

func TestSession_ReadWriteAcrossChunks(t *testing.T) {
	chunks := newMemChunks()
	s := newOpenSession(t, &fakeMDS{file: testFile()}, chunks, Options{})

	data := bytes.Repeat([]byte("0123456789abcdef"), 2*testChunkSize/16)
	n, err := s.Write(data, testChunkSize/2)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Len(t, chunks.chunks, 3)
	assert.Contains(t, chunks.chunks, "9_0")
	assert.Contains(t, chunks.chunks, "9_2")

	got := make([]byte, len(data))
	n, err = s.Read(got, testChunkSize/2)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, data, got)

	hole := make([]byte, 4096)
	_, err = s.Read(hole, 3*testChunkSize)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 4096), hole)
}

func TestSession_OutOfRange(t *testing.T) {
	s := newOpenSession(t, &fakeMDS{file: testFile()}, newMemChunks(), Options{})

	tests := []struct {
		name   string
		offset int64
		length int
	}{
		{"past end", 4 * testChunkSize, 4096},
		{"straddles end", 4*testChunkSize - 4096, 8192},
		{"negative", -4096, 4096},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Read(make([]byte, tt.length), tt.offset)
			assert.ErrorIs(t, err, fs.ErrOutOfRange)
		})
	}
}

func TestSession_OpenFailure(t *testing.T) {
	mds := &fakeMDS{openErr: ms.ErrFileOccupied}
	s := NewSession("/f", alice, mds, newMemChunks(), Options{}, log_service.Nop())

	assert.ErrorIs(t, s.Open(context.Background()), ms.ErrFileOccupied)
	s.UnInitialize()
	s.UnInitialize()

	_, err := s.Read(make([]byte, 4096), 0)
	assert.ErrorIs(t, err, fs.ErrNotOpen)
}

func TestSession_LeaseLapseDisablesIO(t *testing.T) {
	s := newOpenSession(t, &fakeMDS{file: testFile(), lease: time.Hour}, newMemChunks(), Options{})

	_, err := s.Write(make([]byte, 4096), 0)
	require.NoError(t, err)

	base := time.Now()
	s.now = func() time.Time { return base.Add(2 * time.Hour) }

	_, err = s.Write(make([]byte, 4096), 0)
	assert.ErrorIs(t, err, fs.ErrIODisabled)
}

func TestSession_RefresherKeepsLeaseAndPicksUpExtend(t *testing.T) {
	mds := &fakeMDS{file: testFile(), lease: 80 * time.Millisecond}
	s := newOpenSession(t, mds, newMemChunks(), Options{RefreshTimesPerLease: 4})

	grown := testFile()
	grown.Length = 8 * testChunkSize
	mds.setFile(grown)

	require.Eventually(t, func() bool {
		return mds.refreshes.Load() >= 3 && s.FileInfo().Length == grown.Length
	}, 2*time.Second, 5*time.Millisecond)

	_, err := s.Write(make([]byte, 4096), 6*testChunkSize)
	assert.NoError(t, err)
}

func TestSession_RefreshSessionLostDisablesIO(t *testing.T) {
	mds := &fakeMDS{file: testFile(), lease: 80 * time.Millisecond}
	s := newOpenSession(t, mds, newMemChunks(), Options{RefreshTimesPerLease: 4})

	mds.setRefreshErr(ms.ErrSessionNotFound)
	require.Eventually(t, func() bool {
		_, err := s.Read(make([]byte, 4096), 0)
		return errors.Is(err, fs.ErrIODisabled)
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSession_AioCompletesThroughCallback(t *testing.T) {
	s := newOpenSession(t, &fakeMDS{file: testFile()}, newMemChunks(), Options{MaxInflightAIO: 2})

	done := make(chan *fs.AioContext, 8)
	for i := 0; i < 8; i++ {
		aio := &fs.AioContext{
			Offset: int64(i) * 4096,
			Length: 4096,
			Buf:    bytes.Repeat([]byte{byte(i)}, 4096),
			Cb:     func(a *fs.AioContext) { done <- a },
		}
		require.NoError(t, s.AioWrite(aio))
	}
	for i := 0; i < 8; i++ {
		a := <-done
		assert.NoError(t, a.Err)
		assert.Equal(t, 4096, a.Ret)
		assert.Equal(t, fs.AioOpWrite, a.Op)
	}

	buf := make([]byte, 4096)
	aio := &fs.AioContext{Offset: 5 * 4096, Length: 4096, Buf: buf, Cb: func(a *fs.AioContext) { done <- a }}
	require.NoError(t, s.AioRead(aio))
	a := <-done
	require.NoError(t, a.Err)
	assert.Equal(t, bytes.Repeat([]byte{5}, 4096), buf)

	assert.ErrorIs(t, s.AioRead(&fs.AioContext{Length: 4096}), fs.ErrInvalidAio)
}

func TestSession_CloseWaitsForAio(t *testing.T) {
	chunks := newMemChunks()
	chunks.gate = make(chan struct{})
	mds := &fakeMDS{file: testFile()}
	s := newOpenSession(t, mds, chunks, Options{})

	completed := make(chan struct{})
	require.NoError(t, s.AioWrite(&fs.AioContext{
		Length: 4096,
		Buf:    make([]byte, 4096),
		Cb:     func(*fs.AioContext) { close(completed) },
	}))

	closed := make(chan error, 1)
	go func() { closed <- s.Close(context.Background()) }()

	select {
	case <-closed:
		t.Fatal("Close returned while aio was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(chunks.gate)
	require.NoError(t, <-closed)
	<-completed
	assert.Equal(t, int32(1), mds.closes.Load())

	assert.ErrorIs(t, s.Close(context.Background()), fs.ErrSessionClosed)
	assert.ErrorIs(t, s.AioRead(&fs.AioContext{Length: 4096, Buf: make([]byte, 4096)}), fs.ErrSessionClosed)
	_, err := s.Write(make([]byte, 4096), 0)
	assert.ErrorIs(t, err, fs.ErrSessionClosed)
}

func TestSession_CloseFromAioCallback(t *testing.T) {
	mds := &fakeMDS{file: testFile()}
	s := newOpenSession(t, mds, newMemChunks(), Options{})

	closed := make(chan error, 1)
	require.NoError(t, s.AioWrite(&fs.AioContext{
		Length: 4096,
		Buf:    make([]byte, 4096),
		Cb: func(done *fs.AioContext) {
			assert.NoError(t, done.Err)
			closed <- s.Close(context.Background())
		},
	}))

	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Close from the completion callback did not return")
	}
	assert.Equal(t, int32(1), mds.closes.Load())
}
