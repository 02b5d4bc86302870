package memstore

import (
	"context"
	"sort"
	"sync"

	ms "github.com/AnishMulay/sandblock/internal/metadata_service"
)

type MemStore struct {
	mu     sync.RWMutex
	files  map[string]ms.FileInfo
	nextID uint64
}

func NewMemStore() *MemStore {
	return &MemStore{
		files:  make(map[string]ms.FileInfo),
		nextID: 1,
	}
}

func (s *MemStore) Get(_ context.Context, path string) (*ms.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fi, ok := s.files[path]
	if !ok {
		return nil, ms.ErrFileNotFound
	}
	return &fi, nil
}

func (s *MemStore) Put(_ context.Context, fi *ms.FileInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[fi.FullPath] = *fi
	return nil
}

func (s *MemStore) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[path]; !ok {
		return ms.ErrFileNotFound
	}
	delete(s.files, path)
	return nil
}

func (s *MemStore) Rename(_ context.Context, oldPath string, fi *ms.FileInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[oldPath]; !ok {
		return ms.ErrFileNotFound
	}
	delete(s.files, oldPath)
	s.files[fi.FullPath] = *fi
	return nil
}

func (s *MemStore) List(_ context.Context, dirPath string) ([]ms.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ms.FileInfo
	for p, fi := range s.files {
		if ms.IsChildOf(p, dirPath) {
			out = append(out, fi)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemStore) NextID(_ context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	return id, nil
}

func (s *MemStore) Close() error { return nil }
