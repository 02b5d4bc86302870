package metadata_service

import "context"

// MetadataService is the namespace authority. Every call carries the caller's
// credentials; paths are absolute.
type MetadataService interface {
	CreateFile(ctx context.Context, path string, user UserInfo, size uint64) error
	Mkdir(ctx context.Context, path string, user UserInfo) error
	Rmdir(ctx context.Context, path string, user UserInfo) error
	DeleteFile(ctx context.Context, path string, user UserInfo, force bool) error
	RenameFile(ctx context.Context, user UserInfo, oldPath, newPath string) error
	Extend(ctx context.Context, path string, user UserInfo, newSize uint64) error
	ChangeOwner(ctx context.Context, path string, newOwner string, user UserInfo) error
	GetFileInfo(ctx context.Context, path string, user UserInfo) (*FileInfo, error)
	ListDir(ctx context.Context, path string, user UserInfo) ([]FileInfo, error)

	// Sessions
	OpenFile(ctx context.Context, path string, user UserInfo, clientID string) (*FileInfo, *SessionInfo, error)
	RefreshSession(ctx context.Context, path string, sessionID string, user UserInfo) (*FileInfo, *SessionInfo, error)
	CloseFile(ctx context.Context, path string, sessionID string, user UserInfo) error
}

// Store persists FileInfo records keyed by full path.
type Store interface {
	Get(ctx context.Context, path string) (*FileInfo, error)
	Put(ctx context.Context, fi *FileInfo) error
	Delete(ctx context.Context, path string) error
	// Rename replaces the record at oldPath with fi in one step.
	Rename(ctx context.Context, oldPath string, fi *FileInfo) error
	// List returns the direct children of dirPath ordered by name.
	List(ctx context.Context, dirPath string) ([]FileInfo, error)
	NextID(ctx context.Context) (uint64, error)
	Close() error
}
