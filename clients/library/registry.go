package sandlib

import (
	"sync"
	"sync/atomic"

	fs "github.com/AnishMulay/sandblock/internal/file_session"
)

// descriptorRegistry maps handles to the sessions it owns. The lock guards the
// map only; sessions synchronize themselves.
type descriptorRegistry struct {
	mu       sync.RWMutex
	sessions map[int]fs.Session

	// next only grows; handles are never reused.
	next atomic.Int64
}

func newDescriptorRegistry() *descriptorRegistry {
	return &descriptorRegistry{sessions: make(map[int]fs.Session)}
}

func (r *descriptorRegistry) allocate() int {
	return int(r.next.Add(1) - 1)
}

func (r *descriptorRegistry) insert(fd int, s fs.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[fd] = s
}

// lookup runs fn with the session for fd while holding the shared lock, so a
// concurrent remove waits for fn to return.
func (r *descriptorRegistry) lookup(fd int, fn func(s fs.Session) error) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[fd]
	if !ok {
		return ErrBadHandle
	}
	return fn(s)
}

// remove hands ownership of the session back to the caller.
func (r *descriptorRegistry) remove(fd int) (fs.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[fd]
	if !ok {
		return nil, ErrBadHandle
	}
	delete(r.sessions, fd)
	return s, nil
}

func (r *descriptorRegistry) drain() map[int]fs.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.sessions
	r.sessions = make(map[int]fs.Session)
	return out
}

func (r *descriptorRegistry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
