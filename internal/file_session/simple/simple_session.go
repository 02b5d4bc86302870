// Package simple is the default file session: one metadata lease per open file,
// kept alive by a background refresher, with reads and writes split at chunk
// boundaries and sent to the chunk client in parallel.
package simple

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/AnishMulay/sandblock/internal/chunk_client"
	"github.com/AnishMulay/sandblock/internal/chunk_service"
	fs "github.com/AnishMulay/sandblock/internal/file_session"
	"github.com/AnishMulay/sandblock/internal/log_service"
	"github.com/AnishMulay/sandblock/internal/mds_client"
	ms "github.com/AnishMulay/sandblock/internal/metadata_service"
)

type Options struct {
	RPCTimeout           time.Duration
	MaxInflightAIO       int
	MaxSplitConcurrency  int
	RefreshTimesPerLease int
}

func (o *Options) applyDefaults() {
	if o.RPCTimeout <= 0 {
		o.RPCTimeout = 3 * time.Second
	}
	if o.MaxInflightAIO <= 0 {
		o.MaxInflightAIO = 64
	}
	if o.MaxSplitConcurrency <= 0 {
		o.MaxSplitConcurrency = 8
	}
	if o.RefreshTimesPerLease <= 0 {
		o.RefreshTimesPerLease = 4
	}
}

type Session struct {
	path   string
	user   ms.UserInfo
	mds    mds_client.MDSClient
	chunks chunk_client.ChunkClient
	opts   Options
	ls     log_service.LogService

	mu          sync.RWMutex
	file        ms.FileInfo
	lease       ms.SessionInfo
	lastRefresh time.Time

	opened     atomic.Bool
	closed     atomic.Bool
	ioDisabled atomic.Bool

	// aioMu orders closing against new submissions so aioWG.Add never races Wait.
	aioMu   sync.Mutex
	closing bool
	aioWG   sync.WaitGroup
	aioSem  *semaphore.Weighted

	stopOnce    sync.Once
	stopCh      chan struct{}
	refreshDone chan struct{}

	now func() time.Time
}

func NewSession(
	path string,
	user ms.UserInfo,
	mds mds_client.MDSClient,
	chunks chunk_client.ChunkClient,
	opts Options,
	ls log_service.LogService,
) *Session {
	opts.applyDefaults()
	return &Session{
		path:   path,
		user:   user,
		mds:    mds,
		chunks: chunks,
		opts:   opts,
		ls:     ls,
		aioSem: semaphore.NewWeighted(int64(opts.MaxInflightAIO)),
		stopCh: make(chan struct{}),
		now:    time.Now,
	}
}

func (s *Session) Open(ctx context.Context) error {
	fi, si, err := s.mds.OpenFile(ctx, s.path, s.user)
	if err != nil {
		return err
	}
	if fi.ChunkSize == 0 {
		_ = s.mds.CloseFile(ctx, s.path, si.SessionID, s.user)
		return fmt.Errorf("%w: %s has no chunk size", ms.ErrInvalidParam, s.path)
	}

	s.mu.Lock()
	s.file = *fi
	s.lease = *si
	s.lastRefresh = s.now()
	s.mu.Unlock()
	s.opened.Store(true)

	if si.LeaseTime > 0 {
		s.refreshDone = make(chan struct{})
		go s.refreshLoop(si.LeaseTime)
	}

	s.ls.Debug(log_service.LogEvent{
		Message:  "Session opened",
		Metadata: map[string]any{"path": s.path, "sessionID": si.SessionID, "lease": si.LeaseTime.String()},
	})
	return nil
}

// FileInfo returns the metadata last seen by open or refresh.
func (s *Session) FileInfo() ms.FileInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.file
}

func (s *Session) refreshLoop(lease time.Duration) {
	defer close(s.refreshDone)

	interval := lease / time.Duration(s.opts.RefreshTimesPerLease)
	for {
		timer := time.NewTimer(jitter(interval))
		select {
		case <-s.stopCh:
			timer.Stop()
			return
		case <-timer.C:
		}
		s.refresh()
	}
}

// jitter shortens d by up to a tenth so clients opened together do not refresh in step.
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	return d - time.Duration(rand.Int63n(int64(d)/10+1))
}

func (s *Session) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.RPCTimeout)
	defer cancel()

	s.mu.RLock()
	sessionID := s.lease.SessionID
	s.mu.RUnlock()

	fi, si, err := s.mds.RefreshSession(ctx, s.path, sessionID, s.user)
	if err == nil {
		s.mu.Lock()
		s.file = *fi
		s.lease.LeaseTime = si.LeaseTime
		s.lastRefresh = s.now()
		s.mu.Unlock()

		if s.ioDisabled.CompareAndSwap(true, false) {
			s.ls.Info(log_service.LogEvent{
				Message:  "Lease refreshed, io enabled",
				Metadata: map[string]any{"path": s.path, "sessionID": sessionID},
			})
		}
		return
	}

	s.ls.Warn(log_service.LogEvent{
		Message:  "Lease refresh failed",
		Metadata: map[string]any{"path": s.path, "sessionID": sessionID, "error": err.Error()},
	})
	if errors.Is(err, ms.ErrSessionNotFound) || s.leaseLapsed() {
		s.disableIO()
	}
}

func (s *Session) leaseLapsed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lease.LeaseTime <= 0 {
		return false
	}
	return s.now().Sub(s.lastRefresh) > s.lease.LeaseTime
}

func (s *Session) disableIO() {
	if s.ioDisabled.CompareAndSwap(false, true) {
		s.ls.Error(log_service.LogEvent{
			Message:  "Lease lost, io disabled",
			Metadata: map[string]any{"path": s.path},
		})
	}
}

func (s *Session) checkIO() error {
	if !s.opened.Load() {
		return fs.ErrNotOpen
	}
	if s.closed.Load() {
		return fs.ErrSessionClosed
	}
	if s.leaseLapsed() {
		s.disableIO()
	}
	if s.ioDisabled.Load() {
		return fs.ErrIODisabled
	}
	return nil
}

func (s *Session) Read(buf []byte, offset int64) (int, error) {
	return s.doIO(fs.AioOpRead, buf, offset)
}

func (s *Session) Write(buf []byte, offset int64) (int, error) {
	return s.doIO(fs.AioOpWrite, buf, offset)
}

func (s *Session) doIO(op fs.AioOp, buf []byte, offset int64) (int, error) {
	if err := s.checkIO(); err != nil {
		return 0, err
	}

	fi := s.FileInfo()
	length := int64(len(buf))
	if offset < 0 || uint64(offset)+uint64(length) > fi.Length {
		return 0, fmt.Errorf("%w: %s offset=%d length=%d size=%d", fs.ErrOutOfRange, op, offset, length, fi.Length)
	}

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(s.opts.MaxSplitConcurrency)

	chunkSize := int64(fi.ChunkSize)
	for pos := int64(0); pos < length; {
		abs := offset + pos
		inChunk := abs % chunkSize
		n := min(chunkSize-inChunk, length-pos)
		piece := buf[pos : pos+n]
		chunkID := chunk_service.ChunkID(fi.ID, uint64(abs/chunkSize))

		g.Go(func() error {
			if op == fs.AioOpWrite {
				return s.chunks.WriteChunk(ctx, chunkID, inChunk, piece)
			}
			data, err := s.chunks.ReadChunk(ctx, chunkID, inChunk, n)
			if err != nil {
				return err
			}
			copy(piece, data)
			return nil
		})
		pos += n
	}

	if err := g.Wait(); err != nil {
		s.ls.Error(log_service.LogEvent{
			Message:  "Chunk io failed",
			Metadata: map[string]any{"path": s.path, "op": op.String(), "offset": offset, "length": length, "error": err.Error()},
		})
		return 0, err
	}
	return int(length), nil
}

func (s *Session) AioRead(aio *fs.AioContext) error {
	return s.submit(fs.AioOpRead, aio)
}

func (s *Session) AioWrite(aio *fs.AioContext) error {
	return s.submit(fs.AioOpWrite, aio)
}

// submit blocks while MaxInflightAIO requests are already running.
func (s *Session) submit(op fs.AioOp, aio *fs.AioContext) error {
	if aio == nil || aio.Length < 0 || int64(len(aio.Buf)) < aio.Length {
		return fs.ErrInvalidAio
	}
	if !s.opened.Load() {
		return fs.ErrNotOpen
	}

	s.aioMu.Lock()
	if s.closing {
		s.aioMu.Unlock()
		return fs.ErrSessionClosed
	}
	s.aioWG.Add(1)
	s.aioMu.Unlock()

	_ = s.aioSem.Acquire(context.Background(), 1)
	aio.Op = op

	// The request is finished before Cb runs, so Cb may close the session.
	go func() {
		n, err := s.doIO(op, aio.Buf[:aio.Length], aio.Offset)
		aio.Ret, aio.Err = n, err
		s.aioSem.Release(1)
		s.aioWG.Done()

		if aio.Cb != nil {
			aio.Cb(aio)
		}
	}()
	return nil
}

func (s *Session) Close(ctx context.Context) error {
	s.aioMu.Lock()
	if s.closing {
		s.aioMu.Unlock()
		return fs.ErrSessionClosed
	}
	s.closing = true
	s.aioMu.Unlock()

	s.aioWG.Wait()
	s.stopRefresh()
	s.closed.Store(true)

	if !s.opened.Load() {
		return fs.ErrNotOpen
	}

	s.mu.RLock()
	sessionID := s.lease.SessionID
	s.mu.RUnlock()

	if err := s.mds.CloseFile(ctx, s.path, sessionID, s.user); err != nil {
		return fmt.Errorf("close %s: %w", s.path, err)
	}
	return nil
}

func (s *Session) UnInitialize() {
	s.stopRefresh()
	s.closed.Store(true)
}

func (s *Session) stopRefresh() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		if s.refreshDone != nil {
			<-s.refreshDone
		}
	})
}
