// Package namespace implements the metadata authority on top of a Store: the
// file/directory tree, ownership checks and the per-file open sessions.
package namespace

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AnishMulay/sandblock/internal/log_service"
	ms "github.com/AnishMulay/sandblock/internal/metadata_service"
)

const (
	DefaultChunkSize = 16 << 20
	DefaultLeaseTime = 5 * time.Second
	DefaultAlignment = 4096
)

type Options struct {
	RootUser     string
	RootPassword string
	ChunkSize    uint64
	LeaseTime    time.Duration
	Alignment    uint64
}

type session struct {
	info    ms.SessionInfo
	path    string
	expires time.Time
}

// Namespace serializes all mutations under one lock. The Store only has to be safe
// for the calls Namespace makes while holding it.
type Namespace struct {
	mu    sync.Mutex
	store ms.Store
	ls    log_service.LogService
	opts  Options

	sessions map[string]*session // by session id
	byPath   map[string]string   // path -> session id

	onDelete func(ctx context.Context, fi ms.FileInfo)
	now      func() time.Time
}

func NewNamespace(store ms.Store, opts Options, ls log_service.LogService) *Namespace {
	if opts.ChunkSize == 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.LeaseTime == 0 {
		opts.LeaseTime = DefaultLeaseTime
	}
	if opts.Alignment == 0 {
		opts.Alignment = DefaultAlignment
	}
	return &Namespace{
		store:    store,
		ls:       ls,
		opts:     opts,
		sessions: make(map[string]*session),
		byPath:   make(map[string]string),
		now:      time.Now,
	}
}

// OnDelete registers a hook run after a file record is removed, used to drop its chunks.
func (n *Namespace) OnDelete(fn func(ctx context.Context, fi ms.FileInfo)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onDelete = fn
}

// Start creates the root directory on an empty store.
func (n *Namespace) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	_, err := n.store.Get(ctx, ms.RootPath)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ms.ErrFileNotFound) {
		return err
	}

	n.ls.Info(log_service.LogEvent{Message: "Initializing empty namespace"})
	return n.store.Put(ctx, &ms.FileInfo{
		ID:       0,
		Type:     ms.TypeDirectory,
		Name:     ms.RootPath,
		FullPath: ms.RootPath,
		Owner:    n.opts.RootUser,
		Ctime:    n.nowMicros(),
	})
}

func (n *Namespace) Stop() error {
	return n.store.Close()
}

func (n *Namespace) nowMicros() uint64 {
	return uint64(n.now().UnixMicro())
}

// isRoot reports whether user is the root user. A root owner with the wrong password
// is rejected outright.
func (n *Namespace) isRoot(user ms.UserInfo) (bool, error) {
	if n.opts.RootUser == "" || user.Owner != n.opts.RootUser {
		return false, nil
	}
	if user.Password != n.opts.RootPassword {
		return false, ms.ErrAuthFailed
	}
	return true, nil
}

func (n *Namespace) checkOwner(fi *ms.FileInfo, user ms.UserInfo) error {
	root, err := n.isRoot(user)
	if err != nil {
		return err
	}
	if root || user.Owner == fi.Owner {
		return nil
	}
	return fmt.Errorf("%w: %s is owned by %s", ms.ErrAuthFailed, fi.FullPath, fi.Owner)
}

// checkParent verifies that the parent of p is a directory the user may add to.
// The root directory is open to everyone.
func (n *Namespace) checkParent(ctx context.Context, p string, user ms.UserInfo) (*ms.FileInfo, error) {
	parent, err := n.store.Get(ctx, ms.ParentPath(p))
	if err != nil {
		return nil, err
	}
	if !parent.IsDir() {
		return nil, fmt.Errorf("%w: %s", ms.ErrNotDirectory, parent.FullPath)
	}
	if parent.FullPath == ms.RootPath {
		if _, err := n.isRoot(user); err != nil {
			return nil, err
		}
		return parent, nil
	}
	if err := n.checkOwner(parent, user); err != nil {
		return nil, err
	}
	return parent, nil
}

func (n *Namespace) create(ctx context.Context, p string, user ms.UserInfo, ft ms.FileType, size uint64) error {
	p, err := ms.CleanPath(p)
	if err != nil {
		return err
	}
	if p == ms.RootPath {
		return ms.ErrFileExists
	}
	if user.Owner == "" {
		return fmt.Errorf("%w: empty owner", ms.ErrAuthFailed)
	}

	parent, err := n.checkParent(ctx, p, user)
	if err != nil {
		return err
	}
	if _, err := n.store.Get(ctx, p); err == nil {
		return fmt.Errorf("%w: %s", ms.ErrFileExists, p)
	} else if !errors.Is(err, ms.ErrFileNotFound) {
		return err
	}

	id, err := n.store.NextID(ctx)
	if err != nil {
		return err
	}

	fi := &ms.FileInfo{
		ID:       id,
		ParentID: parent.ID,
		Type:     ft,
		Name:     ms.BaseName(p),
		FullPath: p,
		Owner:    user.Owner,
		Length:   size,
		Ctime:    n.nowMicros(),
	}
	if ft == ms.TypePageFile {
		fi.ChunkSize = n.opts.ChunkSize
	}
	if err := n.store.Put(ctx, fi); err != nil {
		return err
	}

	n.ls.Info(log_service.LogEvent{
		Message:  "Namespace entry created",
		Metadata: map[string]any{"path": p, "type": ft.String(), "id": id, "owner": user.Owner},
	})
	return nil
}

func (n *Namespace) CreateFile(ctx context.Context, p string, user ms.UserInfo, size uint64) error {
	if size == 0 || size%n.opts.Alignment != 0 {
		return fmt.Errorf("%w: size %d must be a positive multiple of %d", ms.ErrInvalidParam, size, n.opts.Alignment)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	return n.create(ctx, p, user, ms.TypePageFile, size)
}

func (n *Namespace) Mkdir(ctx context.Context, p string, user ms.UserInfo) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.create(ctx, p, user, ms.TypeDirectory, 0)
}

// lookup returns the cleaned path and its record.
func (n *Namespace) lookup(ctx context.Context, p string) (string, *ms.FileInfo, error) {
	p, err := ms.CleanPath(p)
	if err != nil {
		return "", nil, err
	}
	fi, err := n.store.Get(ctx, p)
	if err != nil {
		return "", nil, err
	}
	return p, fi, nil
}

func (n *Namespace) Rmdir(ctx context.Context, p string, user ms.UserInfo) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	p, fi, err := n.lookup(ctx, p)
	if err != nil {
		return err
	}
	if p == ms.RootPath {
		return fmt.Errorf("%w: cannot remove root", ms.ErrInvalidParam)
	}
	if !fi.IsDir() {
		return fmt.Errorf("%w: %s", ms.ErrNotDirectory, p)
	}
	if err := n.checkOwner(fi, user); err != nil {
		return err
	}

	children, err := n.store.List(ctx, p)
	if err != nil {
		return err
	}
	if len(children) > 0 {
		return fmt.Errorf("%w: %s", ms.ErrDirNotEmpty, p)
	}
	return n.store.Delete(ctx, p)
}

// liveSession returns the unexpired session holding p. Expired sessions are reaped.
func (n *Namespace) liveSession(p string) *session {
	id, ok := n.byPath[p]
	if !ok {
		return nil
	}
	s := n.sessions[id]
	if s == nil || n.now().After(s.expires) {
		delete(n.byPath, p)
		delete(n.sessions, id)
		return nil
	}
	return s
}

func (n *Namespace) dropSession(p string) {
	if id, ok := n.byPath[p]; ok {
		delete(n.sessions, id)
		delete(n.byPath, p)
	}
}

func (n *Namespace) DeleteFile(ctx context.Context, p string, user ms.UserInfo, force bool) error {
	n.mu.Lock()
	p, fi, err := n.lookup(ctx, p)
	if err != nil {
		n.mu.Unlock()
		return err
	}
	if fi.IsDir() {
		n.mu.Unlock()
		return fmt.Errorf("%w: %s is a directory", ms.ErrNotSupported, p)
	}
	if err := n.checkOwner(fi, user); err != nil {
		n.mu.Unlock()
		return err
	}
	if s := n.liveSession(p); s != nil {
		if !force {
			n.mu.Unlock()
			return fmt.Errorf("%w: %s held by %s", ms.ErrFileOccupied, p, s.info.ClientID)
		}
		n.dropSession(p)
	}
	if err := n.store.Delete(ctx, p); err != nil {
		n.mu.Unlock()
		return err
	}
	hook := n.onDelete
	n.mu.Unlock()

	n.ls.Info(log_service.LogEvent{
		Message:  "File deleted",
		Metadata: map[string]any{"path": p, "id": fi.ID, "force": force},
	})
	if hook != nil {
		hook(ctx, *fi)
	}
	return nil
}

func (n *Namespace) RenameFile(ctx context.Context, user ms.UserInfo, oldPath, newPath string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	oldPath, fi, err := n.lookup(ctx, oldPath)
	if err != nil {
		return err
	}
	if fi.IsDir() {
		return fmt.Errorf("%w: renaming directories", ms.ErrNotSupported)
	}
	if err := n.checkOwner(fi, user); err != nil {
		return err
	}

	newPath, err = ms.CleanPath(newPath)
	if err != nil {
		return err
	}
	if newPath == oldPath {
		return nil
	}
	parent, err := n.checkParent(ctx, newPath, user)
	if err != nil {
		return err
	}
	if _, err := n.store.Get(ctx, newPath); err == nil {
		return fmt.Errorf("%w: %s", ms.ErrFileExists, newPath)
	} else if !errors.Is(err, ms.ErrFileNotFound) {
		return err
	}
	if n.liveSession(oldPath) != nil {
		return fmt.Errorf("%w: %s is open", ms.ErrFileOccupied, oldPath)
	}

	renamed := *fi
	renamed.FullPath = newPath
	renamed.Name = ms.BaseName(newPath)
	renamed.ParentID = parent.ID
	return n.store.Rename(ctx, oldPath, &renamed)
}

func (n *Namespace) Extend(ctx context.Context, p string, user ms.UserInfo, newSize uint64) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	p, fi, err := n.lookup(ctx, p)
	if err != nil {
		return err
	}
	if fi.IsDir() {
		return fmt.Errorf("%w: extend a directory", ms.ErrNotSupported)
	}
	if err := n.checkOwner(fi, user); err != nil {
		return err
	}
	if newSize < fi.Length {
		return fmt.Errorf("%w: %s from %d to %d", ms.ErrNoShrink, p, fi.Length, newSize)
	}
	if newSize%n.opts.Alignment != 0 {
		return fmt.Errorf("%w: size %d not aligned", ms.ErrInvalidParam, newSize)
	}
	if newSize == fi.Length {
		return nil
	}

	fi.Length = newSize
	return n.store.Put(ctx, fi)
}

func (n *Namespace) ChangeOwner(ctx context.Context, p string, newOwner string, user ms.UserInfo) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	root, err := n.isRoot(user)
	if err != nil {
		return err
	}
	if !root {
		return fmt.Errorf("%w: only root may change owners", ms.ErrAuthFailed)
	}
	if newOwner == "" {
		return fmt.Errorf("%w: empty owner", ms.ErrInvalidParam)
	}

	_, fi, err := n.lookup(ctx, p)
	if err != nil {
		return err
	}
	fi.Owner = newOwner
	return n.store.Put(ctx, fi)
}

func (n *Namespace) GetFileInfo(ctx context.Context, p string, user ms.UserInfo) (*ms.FileInfo, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	p, fi, err := n.lookup(ctx, p)
	if err != nil {
		return nil, err
	}
	if p != ms.RootPath {
		if err := n.checkOwner(fi, user); err != nil {
			return nil, err
		}
	}
	return fi, nil
}

func (n *Namespace) ListDir(ctx context.Context, p string, user ms.UserInfo) ([]ms.FileInfo, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	p, fi, err := n.lookup(ctx, p)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("%w: %s", ms.ErrNotDirectory, p)
	}
	if p != ms.RootPath {
		if err := n.checkOwner(fi, user); err != nil {
			return nil, err
		}
	}
	return n.store.List(ctx, p)
}

func (n *Namespace) OpenFile(ctx context.Context, p string, user ms.UserInfo, clientID string) (*ms.FileInfo, *ms.SessionInfo, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	p, fi, err := n.lookup(ctx, p)
	if err != nil {
		return nil, nil, err
	}
	if fi.IsDir() {
		return nil, nil, fmt.Errorf("%w: open a directory", ms.ErrNotSupported)
	}
	if err := n.checkOwner(fi, user); err != nil {
		return nil, nil, err
	}
	if s := n.liveSession(p); s != nil {
		return nil, nil, fmt.Errorf("%w: %s held by %s", ms.ErrFileOccupied, p, s.info.ClientID)
	}

	now := n.now()
	s := &session{
		info: ms.SessionInfo{
			SessionID:  uuid.NewString(),
			ClientID:   clientID,
			LeaseTime:  n.opts.LeaseTime,
			CreateTime: now,
		},
		path:    p,
		expires: now.Add(n.opts.LeaseTime),
	}
	n.sessions[s.info.SessionID] = s
	n.byPath[p] = s.info.SessionID

	n.ls.Info(log_service.LogEvent{
		Message:  "File opened",
		Metadata: map[string]any{"path": p, "sessionID": s.info.SessionID, "clientID": clientID},
	})
	info := s.info
	return fi, &info, nil
}

func (n *Namespace) RefreshSession(ctx context.Context, p string, sessionID string, user ms.UserInfo) (*ms.FileInfo, *ms.SessionInfo, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	p, fi, err := n.lookup(ctx, p)
	if err != nil {
		return nil, nil, err
	}
	s, ok := n.sessions[sessionID]
	if !ok || s.path != p {
		return nil, nil, fmt.Errorf("%w: %s", ms.ErrSessionNotFound, sessionID)
	}
	if err := n.checkOwner(fi, user); err != nil {
		return nil, nil, err
	}

	s.expires = n.now().Add(n.opts.LeaseTime)
	info := s.info
	return fi, &info, nil
}

func (n *Namespace) CloseFile(ctx context.Context, p string, sessionID string, user ms.UserInfo) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	p, err := ms.CleanPath(p)
	if err != nil {
		return err
	}
	s, ok := n.sessions[sessionID]
	if !ok || s.path != p {
		return fmt.Errorf("%w: %s", ms.ErrSessionNotFound, sessionID)
	}
	delete(n.sessions, sessionID)
	if n.byPath[p] == sessionID {
		delete(n.byPath, p)
	}

	n.ls.Info(log_service.LogEvent{
		Message:  "File closed",
		Metadata: map[string]any{"path": p, "sessionID": sessionID, "owner": user.Owner},
	})
	return nil
}

// OpenSessions reports the number of sessions currently tracked, expired or not.
func (n *Namespace) OpenSessions() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sessions)
}
