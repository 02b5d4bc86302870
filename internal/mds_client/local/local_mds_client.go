// Package local runs the metadata namespace inside the client process.
package local

import (
	"context"

	ms "github.com/AnishMulay/sandblock/internal/metadata_service"
	"github.com/AnishMulay/sandblock/internal/metadata_service/namespace"
)

type LocalMDSClient struct {
	ns       *namespace.Namespace
	clientID string
}

func NewLocalMDSClient(ns *namespace.Namespace, clientID string) *LocalMDSClient {
	return &LocalMDSClient{ns: ns, clientID: clientID}
}

func (c *LocalMDSClient) Initialize(ctx context.Context) error {
	return c.ns.Start(ctx)
}

// UnInitialize closes the namespace store.
func (c *LocalMDSClient) UnInitialize() error {
	return c.ns.Stop()
}

func (c *LocalMDSClient) ClientID() string { return c.clientID }

func (c *LocalMDSClient) CreateFile(ctx context.Context, path string, user ms.UserInfo, size uint64) error {
	return c.ns.CreateFile(ctx, path, user, size)
}

func (c *LocalMDSClient) Mkdir(ctx context.Context, path string, user ms.UserInfo) error {
	return c.ns.Mkdir(ctx, path, user)
}

func (c *LocalMDSClient) Rmdir(ctx context.Context, path string, user ms.UserInfo) error {
	return c.ns.Rmdir(ctx, path, user)
}

func (c *LocalMDSClient) DeleteFile(ctx context.Context, path string, user ms.UserInfo, force bool) error {
	return c.ns.DeleteFile(ctx, path, user, force)
}

func (c *LocalMDSClient) RenameFile(ctx context.Context, user ms.UserInfo, oldPath, newPath string) error {
	return c.ns.RenameFile(ctx, user, oldPath, newPath)
}

func (c *LocalMDSClient) Extend(ctx context.Context, path string, user ms.UserInfo, newSize uint64) error {
	return c.ns.Extend(ctx, path, user, newSize)
}

func (c *LocalMDSClient) ChangeOwner(ctx context.Context, path string, newOwner string, user ms.UserInfo) error {
	return c.ns.ChangeOwner(ctx, path, newOwner, user)
}

func (c *LocalMDSClient) GetFileInfo(ctx context.Context, path string, user ms.UserInfo) (*ms.FileInfo, error) {
	return c.ns.GetFileInfo(ctx, path, user)
}

func (c *LocalMDSClient) ListDir(ctx context.Context, path string, user ms.UserInfo) ([]ms.FileInfo, error) {
	return c.ns.ListDir(ctx, path, user)
}

func (c *LocalMDSClient) OpenFile(ctx context.Context, path string, user ms.UserInfo) (*ms.FileInfo, *ms.SessionInfo, error) {
	return c.ns.OpenFile(ctx, path, user, c.clientID)
}

func (c *LocalMDSClient) RefreshSession(ctx context.Context, path string, sessionID string, user ms.UserInfo) (*ms.FileInfo, *ms.SessionInfo, error) {
	return c.ns.RefreshSession(ctx, path, sessionID, user)
}

func (c *LocalMDSClient) CloseFile(ctx context.Context, path string, sessionID string, user ms.UserInfo) error {
	return c.ns.CloseFile(ctx, path, sessionID, user)
}
