// Package remote talks to metadata servers over a communicator. Servers are
// found through a cluster service; requests fail over to the next server on
// transport errors.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/rand"

	cluster "github.com/AnishMulay/sandblock/internal/cluster_service"
	"github.com/AnishMulay/sandblock/internal/communication"
	"github.com/AnishMulay/sandblock/internal/log_service"
	"github.com/AnishMulay/sandblock/internal/mds_client"
	ms "github.com/AnishMulay/sandblock/internal/metadata_service"
	"github.com/AnishMulay/sandblock/internal/server"
)

type Options struct {
	ClientID      string
	RPCTimeout    time.Duration
	RetryTimes    int
	RetryInterval time.Duration
}

type RemoteMDSClient struct {
	comm    communication.Communicator
	cluster cluster.ClusterService
	opts    Options
	ls      log_service.LogService

	// next is the index of the server tried first; it moves on after a failover.
	next        atomic.Uint32
	initialized atomic.Bool
}

func NewRemoteMDSClient(
	comm communication.Communicator,
	cs cluster.ClusterService,
	opts Options,
	ls log_service.LogService,
) *RemoteMDSClient {
	if opts.ClientID == "" {
		opts.ClientID = uuid.NewString()
	}
	c := &RemoteMDSClient{
		comm:    comm,
		cluster: cs,
		opts:    opts,
		ls:      ls,
	}
	c.next.Store(rand.Uint32())
	return c
}

func (c *RemoteMDSClient) Initialize(ctx context.Context) error {
	if err := c.cluster.Start(ctx); err != nil {
		return fmt.Errorf("start discovery: %w", err)
	}
	nodes, err := c.metadataNodes()
	if err != nil {
		_ = c.cluster.Stop(ctx)
		return err
	}

	c.initialized.Store(true)
	c.ls.Info(log_service.LogEvent{
		Message:  "Metadata client initialized",
		Metadata: map[string]any{"clientID": c.opts.ClientID, "servers": len(nodes)},
	})
	return nil
}

func (c *RemoteMDSClient) UnInitialize() error {
	if !c.initialized.CompareAndSwap(true, false) {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.RPCTimeout+time.Second)
	defer cancel()

	err := c.cluster.Stop(ctx)
	if stopErr := c.comm.Stop(); stopErr != nil && err == nil {
		err = stopErr
	}
	return err
}

func (c *RemoteMDSClient) ClientID() string { return c.opts.ClientID }

func (c *RemoteMDSClient) metadataNodes() ([]cluster.SafeNode, error) {
	healthy, err := c.cluster.GetHealthyNodes()
	if err != nil {
		return nil, err
	}
	nodes := cluster.NodesWithRole(healthy, cluster.RoleMetadata)
	if len(nodes) == 0 {
		return nil, mds_client.ErrNoMetadataServer
	}
	return nodes, nil
}

// call sends one request, trying each attempt on the next server. Transport
// failures and Unavailable responses are retried; everything else is final.
func (c *RemoteMDSClient) call(ctx context.Context, msgType string, payload any) (*communication.Response, error) {
	if !c.initialized.Load() {
		return nil, mds_client.ErrNotInitialized
	}

	requestID := uuid.NewString()
	var lastErr error
	for attempt := 0; attempt <= c.opts.RetryTimes; attempt++ {
		if attempt > 0 && c.opts.RetryInterval > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.opts.RetryInterval):
			}
		}

		nodes, err := c.metadataNodes()
		if err != nil {
			lastErr = err
			continue
		}
		idx := c.next.Load()
		node := nodes[idx%uint32(len(nodes))]

		resp, err := c.send(ctx, node, msgType, payload)
		if err == nil && resp.Code != communication.CodeUnavailable {
			return resp, server.ErrorForResponse(resp)
		}
		if err == nil {
			err = server.ErrorForResponse(resp)
		}
		lastErr = err
		c.next.CompareAndSwap(idx, idx+1)

		c.ls.Warn(log_service.LogEvent{
			Message: "Metadata request failed, trying next server",
			Metadata: map[string]any{
				"requestID": requestID,
				"type":      msgType,
				"node":      node.ID,
				"attempt":   attempt,
				"error":     err.Error(),
			},
		})
	}
	return nil, fmt.Errorf("%s after %d attempts: %w", msgType, c.opts.RetryTimes+1, lastErr)
}

func (c *RemoteMDSClient) send(ctx context.Context, node cluster.SafeNode, msgType string, payload any) (*communication.Response, error) {
	if c.opts.RPCTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.RPCTimeout)
		defer cancel()
	}
	return c.comm.Send(ctx, node.Address, communication.Message{
		From:    c.opts.ClientID,
		Type:    msgType,
		Payload: payload,
	})
}

func decode[T any](resp *communication.Response) (*T, error) {
	var out T
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", mds_client.ErrDecodeResponse, err)
	}
	return &out, nil
}

func (c *RemoteMDSClient) CreateFile(ctx context.Context, path string, user ms.UserInfo, size uint64) error {
	_, err := c.call(ctx, server.MsgCreateFile, server.CreateFileRequest{Path: path, User: user, Size: size})
	return err
}

func (c *RemoteMDSClient) Mkdir(ctx context.Context, path string, user ms.UserInfo) error {
	_, err := c.call(ctx, server.MsgMkdir, server.MkdirRequest{Path: path, User: user})
	return err
}

func (c *RemoteMDSClient) Rmdir(ctx context.Context, path string, user ms.UserInfo) error {
	_, err := c.call(ctx, server.MsgRmdir, server.RmdirRequest{Path: path, User: user})
	return err
}

func (c *RemoteMDSClient) DeleteFile(ctx context.Context, path string, user ms.UserInfo, force bool) error {
	_, err := c.call(ctx, server.MsgDeleteFile, server.DeleteFileRequest{Path: path, User: user, Force: force})
	return err
}

func (c *RemoteMDSClient) RenameFile(ctx context.Context, user ms.UserInfo, oldPath, newPath string) error {
	_, err := c.call(ctx, server.MsgRenameFile, server.RenameFileRequest{User: user, OldPath: oldPath, NewPath: newPath})
	return err
}

func (c *RemoteMDSClient) Extend(ctx context.Context, path string, user ms.UserInfo, newSize uint64) error {
	_, err := c.call(ctx, server.MsgExtend, server.ExtendRequest{Path: path, User: user, NewSize: newSize})
	return err
}

func (c *RemoteMDSClient) ChangeOwner(ctx context.Context, path string, newOwner string, user ms.UserInfo) error {
	_, err := c.call(ctx, server.MsgChangeOwner, server.ChangeOwnerRequest{Path: path, NewOwner: newOwner, User: user})
	return err
}

func (c *RemoteMDSClient) GetFileInfo(ctx context.Context, path string, user ms.UserInfo) (*ms.FileInfo, error) {
	resp, err := c.call(ctx, server.MsgGetFileInfo, server.GetFileInfoRequest{Path: path, User: user})
	if err != nil {
		return nil, err
	}
	return decode[ms.FileInfo](resp)
}

func (c *RemoteMDSClient) ListDir(ctx context.Context, path string, user ms.UserInfo) ([]ms.FileInfo, error) {
	resp, err := c.call(ctx, server.MsgListDir, server.ListDirRequest{Path: path, User: user})
	if err != nil {
		return nil, err
	}
	entries, err := decode[[]ms.FileInfo](resp)
	if err != nil {
		return nil, err
	}
	return *entries, nil
}

func (c *RemoteMDSClient) OpenFile(ctx context.Context, path string, user ms.UserInfo) (*ms.FileInfo, *ms.SessionInfo, error) {
	resp, err := c.call(ctx, server.MsgOpenFile, server.OpenFileRequest{Path: path, User: user, ClientID: c.opts.ClientID})
	return sessionResult(resp, err)
}

func (c *RemoteMDSClient) RefreshSession(ctx context.Context, path string, sessionID string, user ms.UserInfo) (*ms.FileInfo, *ms.SessionInfo, error) {
	resp, err := c.call(ctx, server.MsgRefreshSession, server.RefreshSessionRequest{Path: path, SessionID: sessionID, User: user})
	return sessionResult(resp, err)
}

func (c *RemoteMDSClient) CloseFile(ctx context.Context, path string, sessionID string, user ms.UserInfo) error {
	_, err := c.call(ctx, server.MsgCloseFile, server.CloseFileRequest{Path: path, SessionID: sessionID, User: user})
	return err
}

func sessionResult(resp *communication.Response, err error) (*ms.FileInfo, *ms.SessionInfo, error) {
	if err != nil {
		return nil, nil, err
	}
	out, err := decode[server.OpenFileResponse](resp)
	if err != nil {
		return nil, nil, err
	}
	if out.Session.SessionID == "" {
		return nil, nil, fmt.Errorf("%w: no session in open response", mds_client.ErrDecodeResponse)
	}
	return &out.File, &out.Session, nil
}
