// Package sandlib is the client entry point: it opens files as integer
// handles, gates every read and write on alignment, and forwards metadata
// operations to the metadata service.
//
// Init and UnInit must not run concurrently with each other or with other
// operations on the same FileClient.
package sandlib

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/AnishMulay/sandblock/internal/chunk_client"
	"github.com/AnishMulay/sandblock/internal/config"
	fs "github.com/AnishMulay/sandblock/internal/file_session"
	"github.com/AnishMulay/sandblock/internal/file_session/simple"
	"github.com/AnishMulay/sandblock/internal/log_service"
	"github.com/AnishMulay/sandblock/internal/log_service/localdisc"
	"github.com/AnishMulay/sandblock/internal/mds_client"
	"github.com/AnishMulay/sandblock/internal/metrics"
)

const (
	stateUninitialized int32 = iota
	stateInitializing
	stateReady
)

// SessionFactory builds an unopened session for one file.
type SessionFactory func(
	path string,
	user UserInfo,
	mds mds_client.MDSClient,
	chunks chunk_client.ChunkClient,
	cfg *config.Config,
	ls log_service.LogService,
) fs.Session

// DefaultSessionFactory builds the lease-keeping chunk session.
func DefaultSessionFactory(
	path string,
	user UserInfo,
	mds mds_client.MDSClient,
	chunks chunk_client.ChunkClient,
	cfg *config.Config,
	ls log_service.LogService,
) fs.Session {
	return simple.NewSession(path, user, mds, chunks, simple.Options{
		RPCTimeout:           cfg.MDS.RPCTimeout,
		MaxInflightAIO:       cfg.IO.MaxInflightAIO,
		MaxSplitConcurrency:  cfg.IO.MaxSplitConcurrency,
		RefreshTimesPerLease: cfg.Lease.RefreshTimesPerLease,
	}, ls)
}

type FileClient struct {
	state atomic.Int32

	cfg      *config.Config
	ls       log_service.LogService
	logFile  *localdisc.LocalDiscLogService
	mds      mds_client.MDSClient
	chunks   chunk_client.ChunkClient
	registry *descriptorRegistry
	metrics  metrics.ClientMetrics

	newBackend BackendFactory
	newSession SessionFactory
}

func NewFileClient() *FileClient {
	return &FileClient{
		ls:         log_service.Nop(),
		registry:   newDescriptorRegistry(),
		metrics:    metrics.NewClientMetrics(),
		newBackend: NewBackend,
		newSession: DefaultSessionFactory,
	}
}

// Init loads the configuration at configPath and connects to the cluster.
// Calling it again after success logs a warning and returns nil.
func (c *FileClient) Init(configPath string) error {
	if c.state.Load() == stateReady {
		c.ls.Warn(log_service.LogEvent{Message: "Client already initialized"})
		return nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return &Error{Code: CodeFailed, Op: "init", Err: err}
	}
	return c.InitWithConfig(cfg)
}

// InitWithConfig is Init with an already loaded configuration.
func (c *FileClient) InitWithConfig(cfg *config.Config) error {
	if c.state.Load() == stateReady {
		c.ls.Warn(log_service.LogEvent{Message: "Client already initialized"})
		return nil
	}
	if !c.state.CompareAndSwap(stateUninitialized, stateInitializing) {
		return &Error{Code: CodeFailed, Op: "init", Err: fmt.Errorf("%w: initialization in progress", ErrFailed)}
	}

	if err := c.initialize(cfg); err != nil {
		c.state.Store(stateUninitialized)
		return &Error{Code: CodeFailed, Op: "init", Err: err}
	}
	c.state.Store(stateReady)
	return nil
}

func (c *FileClient) initialize(shared *config.Config) error {
	if err := config.Validate(shared); err != nil {
		return err
	}
	// The client keeps its own copy; the caller may hand the same config to
	// several clients.
	copied := *shared
	cfg := &copied
	if cfg.ClientID == "" {
		cfg.ClientID = uuid.NewString()
	}

	logFile, err := localdisc.NewLocalDiscLogService(cfg.Logging.Path, cfg.Logging.Name, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	ls := log_service.LogService(logFile)

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout(cfg))
	defer cancel()

	backend, err := c.newBackend(ctx, cfg, ls)
	if err != nil {
		_ = logFile.Close()
		return fmt.Errorf("build metadata client: %w", err)
	}
	if err := backend.MDS.Initialize(ctx); err != nil {
		ls.Error(log_service.LogEvent{
			Message:  "Failed to initialize metadata client",
			Metadata: map[string]any{"error": err.Error()},
		})
		_ = backend.Chunks.Close()
		_ = logFile.Close()
		return fmt.Errorf("initialize metadata client: %w", err)
	}

	metrics.InitRegistry()
	bootstrapDiagnostics(cfg.DummyServer, ls)

	c.cfg = cfg
	c.ls = ls
	c.logFile = logFile
	c.mds = backend.MDS
	c.chunks = backend.Chunks
	c.metrics = metrics.NewClientMetrics()

	ls.Info(log_service.LogEvent{
		Message:  "Client initialized",
		Metadata: map[string]any{"mode": cfg.Mode, "transport": cfg.Transport, "clientID": cfg.ClientID},
	})
	return nil
}

// initTimeout bounds one facade call: every attempt, the waits between them
// and some slack.
func initTimeout(cfg *config.Config) time.Duration {
	retries := time.Duration(cfg.MDS.RetryTimes)
	return cfg.MDS.RPCTimeout*(retries+1) + cfg.MDS.RetryInterval*retries + 5*time.Second
}

// UnInit closes every open file and disconnects. It is a no-op when the client
// is not initialized.
func (c *FileClient) UnInit() {
	if !c.state.CompareAndSwap(stateReady, stateUninitialized) {
		c.ls.Warn(log_service.LogEvent{Message: "Client not initialized"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout(c.cfg))
	defer cancel()

	for fd, s := range c.registry.drain() {
		if err := s.Close(ctx); err != nil {
			c.ls.Warn(log_service.LogEvent{
				Message:  "Failed to close file during shutdown",
				Metadata: map[string]any{"fd": fd, "error": err.Error()},
			})
		}
		s.UnInitialize()
	}
	c.metrics.SetOpenFiles(0)

	if err := c.chunks.Close(); err != nil {
		c.ls.Warn(log_service.LogEvent{
			Message:  "Failed to close chunk client",
			Metadata: map[string]any{"error": err.Error()},
		})
	}
	if err := c.mds.UnInitialize(); err != nil {
		c.ls.Warn(log_service.LogEvent{
			Message:  "Failed to uninitialize metadata client",
			Metadata: map[string]any{"error": err.Error()},
		})
	}
	c.ls.Info(log_service.LogEvent{Message: "Client uninitialized"})

	_ = c.logFile.Close()
	c.ls = log_service.Nop()
	c.logFile = nil
	c.mds = nil
	c.chunks = nil
	c.cfg = nil
}

// OpenedFileCount is the number of registered handles.
func (c *FileClient) OpenedFileCount() int {
	return c.registry.len()
}

func (c *FileClient) checkReady(op string) error {
	if c.state.Load() != stateReady {
		return &Error{Code: CodeNotInitialized, Op: op, Err: ErrNotInitialized}
	}
	return nil
}

func (c *FileClient) observe(op string, start time.Time, errp *error) {
	c.metrics.RecordOperation(op, CodeOf(*errp).String(), time.Since(start))
}

func (c *FileClient) rpcContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), initTimeout(c.cfg))
}

// Open returns a new handle for path. A failed open consumes no handle.
func (c *FileClient) Open(path string, user UserInfo) (fd int, err error) {
	defer c.observe("open", time.Now(), &err)
	if err := c.checkReady("open"); err != nil {
		return -1, err
	}

	s := c.newSession(path, user, c.mds, c.chunks, c.cfg, c.ls)
	ctx, cancel := c.rpcContext()
	defer cancel()

	if err := s.Open(ctx); err != nil {
		s.UnInitialize()
		c.ls.Error(log_service.LogEvent{
			Message:  "Open failed",
			Metadata: map[string]any{"path": path, "owner": user.Owner, "error": err.Error()},
		})
		return -1, wrapError("open", err)
	}

	fd = c.registry.allocate()
	c.registry.insert(fd, s)
	c.metrics.SetOpenFiles(c.registry.len())
	return fd, nil
}

// Close removes fd before closing its session; a handle whose close fails is
// not restored.
func (c *FileClient) Close(fd int) (err error) {
	defer c.observe("close", time.Now(), &err)
	if err := c.checkReady("close"); err != nil {
		return err
	}

	s, err := c.registry.remove(fd)
	if err != nil {
		return wrapError("close", err)
	}
	c.metrics.SetOpenFiles(c.registry.len())

	ctx, cancel := c.rpcContext()
	defer cancel()

	closeErr := s.Close(ctx)
	s.UnInitialize()
	if closeErr != nil {
		c.ls.Error(log_service.LogEvent{
			Message:  "Close failed, handle discarded",
			Metadata: map[string]any{"fd": fd, "error": closeErr.Error()},
		})
		return wrapError("close", closeErr)
	}
	return nil
}

func (c *FileClient) Read(fd int, buf []byte, offset int64) (n int, err error) {
	return c.syncIO("read", fd, buf, offset)
}

func (c *FileClient) Write(fd int, buf []byte, offset int64) (n int, err error) {
	return c.syncIO("write", fd, buf, offset)
}

func (c *FileClient) syncIO(op string, fd int, buf []byte, offset int64) (n int, err error) {
	if len(buf) == 0 {
		return 0, nil
	}
	defer c.observe(op, time.Now(), &err)

	if !CheckAligned(offset, int64(len(buf))) {
		return 0, &Error{Code: CodeNotAligned, Op: op, Err: ErrNotAligned}
	}
	if err := c.checkReady(op); err != nil {
		return 0, err
	}

	err = c.registry.lookup(fd, func(s fs.Session) error {
		var ioErr error
		if op == "write" {
			n, ioErr = s.Write(buf, offset)
		} else {
			n, ioErr = s.Read(buf, offset)
		}
		return ioErr
	})
	if err != nil {
		return 0, wrapError(op, err)
	}
	c.metrics.RecordBytes(op, n)
	return n, nil
}

// AioRead validates and dispatches aio; the result arrives through aio.Cb.
func (c *FileClient) AioRead(fd int, aio *AioContext) error {
	return c.asyncIO("aio_read", fd, aio)
}

func (c *FileClient) AioWrite(fd int, aio *AioContext) error {
	return c.asyncIO("aio_write", fd, aio)
}

func (c *FileClient) asyncIO(op string, fd int, aio *AioContext) (err error) {
	if aio == nil {
		return &Error{Code: CodeParamError, Op: op, Err: fs.ErrInvalidAio}
	}
	if aio.Length == 0 {
		return nil
	}
	defer c.observe(op, time.Now(), &err)

	if !CheckAligned(aio.Offset, aio.Length) {
		return &Error{Code: CodeNotAligned, Op: op, Err: ErrNotAligned}
	}
	if err := c.checkReady(op); err != nil {
		return err
	}

	return wrapError(op, c.registry.lookup(fd, func(s fs.Session) error {
		if op == "aio_write" {
			return s.AioWrite(aio)
		}
		return s.AioRead(aio)
	}))
}

func (c *FileClient) Create(path string, user UserInfo, size uint64) (err error) {
	defer c.observe("create", time.Now(), &err)
	if err := c.checkReady("create"); err != nil {
		return err
	}
	ctx, cancel := c.rpcContext()
	defer cancel()
	return wrapError("create", c.mds.CreateFile(ctx, path, user, size))
}

func (c *FileClient) Extend(path string, user UserInfo, newSize uint64) (err error) {
	defer c.observe("extend", time.Now(), &err)
	if err := c.checkReady("extend"); err != nil {
		return err
	}
	ctx, cancel := c.rpcContext()
	defer cancel()
	return wrapError("extend", c.mds.Extend(ctx, path, user, newSize))
}

func (c *FileClient) Unlink(path string, user UserInfo, deleteForce bool) (err error) {
	defer c.observe("unlink", time.Now(), &err)
	if err := c.checkReady("unlink"); err != nil {
		return err
	}
	ctx, cancel := c.rpcContext()
	defer cancel()
	return wrapError("unlink", c.mds.DeleteFile(ctx, path, user, deleteForce))
}

func (c *FileClient) Rename(user UserInfo, oldPath, newPath string) (err error) {
	defer c.observe("rename", time.Now(), &err)
	if err := c.checkReady("rename"); err != nil {
		return err
	}
	ctx, cancel := c.rpcContext()
	defer cancel()
	return wrapError("rename", c.mds.RenameFile(ctx, user, oldPath, newPath))
}

func (c *FileClient) Mkdir(path string, user UserInfo) (err error) {
	defer c.observe("mkdir", time.Now(), &err)
	if err := c.checkReady("mkdir"); err != nil {
		return err
	}
	ctx, cancel := c.rpcContext()
	defer cancel()
	return wrapError("mkdir", c.mds.Mkdir(ctx, path, user))
}

func (c *FileClient) Rmdir(path string, user UserInfo) (err error) {
	defer c.observe("rmdir", time.Now(), &err)
	if err := c.checkReady("rmdir"); err != nil {
		return err
	}
	ctx, cancel := c.rpcContext()
	defer cancel()
	return wrapError("rmdir", c.mds.Rmdir(ctx, path, user))
}

func (c *FileClient) ChangeOwner(path string, newOwner string, user UserInfo) (err error) {
	defer c.observe("change_owner", time.Now(), &err)
	if err := c.checkReady("change_owner"); err != nil {
		return err
	}
	ctx, cancel := c.rpcContext()
	defer cancel()
	return wrapError("change_owner", c.mds.ChangeOwner(ctx, path, newOwner, user))
}

func (c *FileClient) StatFile(path string, user UserInfo) (_ *FileStatInfo, err error) {
	defer c.observe("stat", time.Now(), &err)
	if err := c.checkReady("stat"); err != nil {
		return nil, err
	}
	ctx, cancel := c.rpcContext()
	defer cancel()

	fi, err := c.mds.GetFileInfo(ctx, path, user)
	if err != nil {
		return nil, wrapError("stat", err)
	}
	st := statFromInfo(fi)
	return &st, nil
}

// Listdir returns the entries of path ordered by file name.
func (c *FileClient) Listdir(path string, user UserInfo) (_ []FileStatInfo, err error) {
	defer c.observe("listdir", time.Now(), &err)
	if err := c.checkReady("listdir"); err != nil {
		return nil, err
	}
	ctx, cancel := c.rpcContext()
	defer cancel()

	entries, err := c.mds.ListDir(ctx, path, user)
	if err != nil {
		return nil, wrapError("listdir", err)
	}
	out := make([]FileStatInfo, 0, len(entries))
	for i := range entries {
		out = append(out, statFromInfo(&entries[i]))
	}
	return out, nil
}
