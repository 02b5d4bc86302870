package mds_client

import (
	"context"

	ms "github.com/AnishMulay/sandblock/internal/metadata_service"
)

// MDSClient is the client side of the metadata service. Initialize must succeed
// before any other call; UnInitialize releases connections and discovery.
type MDSClient interface {
	Initialize(ctx context.Context) error
	UnInitialize() error

	// ClientID is sent with every open so the server can name the session holder.
	ClientID() string

	CreateFile(ctx context.Context, path string, user ms.UserInfo, size uint64) error
	Mkdir(ctx context.Context, path string, user ms.UserInfo) error
	Rmdir(ctx context.Context, path string, user ms.UserInfo) error
	DeleteFile(ctx context.Context, path string, user ms.UserInfo, force bool) error
	RenameFile(ctx context.Context, user ms.UserInfo, oldPath, newPath string) error
	Extend(ctx context.Context, path string, user ms.UserInfo, newSize uint64) error
	ChangeOwner(ctx context.Context, path string, newOwner string, user ms.UserInfo) error
	GetFileInfo(ctx context.Context, path string, user ms.UserInfo) (*ms.FileInfo, error)
	ListDir(ctx context.Context, path string, user ms.UserInfo) ([]ms.FileInfo, error)

	OpenFile(ctx context.Context, path string, user ms.UserInfo) (*ms.FileInfo, *ms.SessionInfo, error)
	RefreshSession(ctx context.Context, path string, sessionID string, user ms.UserInfo) (*ms.FileInfo, *ms.SessionInfo, error)
	CloseFile(ctx context.Context, path string, sessionID string, user ms.UserInfo) error
}
