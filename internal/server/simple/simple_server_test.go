package simple

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnishMulay/sandblock/internal/chunk_service/localdisc"
	"github.com/AnishMulay/sandblock/internal/communication"
	"github.com/AnishMulay/sandblock/internal/log_service"
	ms "github.com/AnishMulay/sandblock/internal/metadata_service"
	"github.com/AnishMulay/sandblock/internal/metadata_service/memstore"
	"github.com/AnishMulay/sandblock/internal/metadata_service/namespace"
	"github.com/AnishMulay/sandblock/internal/server"
)

var alice = ms.UserInfo{Owner: "alice", Password: "pw"}

func newTestServer(t *testing.T, withMetadata bool) *SimpleServer {
	t.Helper()
	cs, err := localdisc.NewLocalDiscChunkService(t.TempDir(), log_service.Nop())
	require.NoError(t, err)

	var md ms.MetadataService
	if withMetadata {
		n := namespace.NewNamespace(memstore.NewMemStore(), namespace.Options{}, log_service.Nop())
		require.NoError(t, n.Start(context.Background()))
		md = n
	}
	return NewSimpleServer(nil, md, cs, log_service.Nop())
}

func TestSimpleServer_NamespaceRoundTrip(t *testing.T) {
	s := newTestServer(t, true)
	ctx := context.Background()

	resp, err := s.handleMessage(ctx, communication.Message{
		Type:    server.MsgCreateFile,
		Payload: server.CreateFileRequest{Path: "/f", User: alice, Size: 4096},
	})
	require.NoError(t, err)
	assert.Equal(t, communication.CodeOK, resp.Code)

	resp, err = s.handleMessage(ctx, communication.Message{
		Type:    server.MsgCreateFile,
		Payload: server.CreateFileRequest{Path: "/f", User: alice, Size: 4096},
	})
	require.NoError(t, err)
	assert.Equal(t, communication.CodeAlreadyExists, resp.Code)

	resp, err = s.handleMessage(ctx, communication.Message{
		Type:    server.MsgOpenFile,
		Payload: server.OpenFileRequest{Path: "/f", User: alice, ClientID: "c1"},
	})
	require.NoError(t, err)
	require.Equal(t, communication.CodeOK, resp.Code)

	var opened server.OpenFileResponse
	require.NoError(t, json.Unmarshal(resp.Body, &opened))
	assert.Equal(t, uint64(4096), opened.File.Length)
	assert.NotEmpty(t, opened.Session.SessionID)

	resp, err = s.handleMessage(ctx, communication.Message{
		Type:    server.MsgListDir,
		Payload: server.ListDirRequest{Path: "/", User: alice},
	})
	require.NoError(t, err)
	var entries []ms.FileInfo
	require.NoError(t, json.Unmarshal(resp.Body, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "f", entries[0].Name)
}

func TestSimpleServer_ErrorCodes(t *testing.T) {
	s := newTestServer(t, true)
	ctx := context.Background()

	tests := []struct {
		name string
		msg  communication.Message
		want communication.SandCode
	}{
		{
			name: "stat missing",
			msg:  communication.Message{Type: server.MsgGetFileInfo, Payload: server.GetFileInfoRequest{Path: "/nope", User: alice}},
			want: communication.CodeNotFound,
		},
		{
			name: "close unknown session",
			msg:  communication.Message{Type: server.MsgCloseFile, Payload: server.CloseFileRequest{Path: "/nope", SessionID: "x", User: alice}},
			want: communication.CodeSessionNotFound,
		},
		{
			name: "unknown type",
			msg:  communication.Message{Type: "nope"},
			want: communication.CodeBadRequest,
		},
		{
			name: "missing payload",
			msg:  communication.Message{Type: server.MsgMkdir},
			want: communication.CodeBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := s.handleMessage(ctx, tt.msg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.Code)
		})
	}
}

func TestSimpleServer_ChunkOnlyNode(t *testing.T) {
	s := newTestServer(t, false)
	ctx := context.Background()

	resp, err := s.handleMessage(ctx, communication.Message{
		Type:    server.MsgChunkWrite,
		Payload: server.ChunkWriteRequest{ChunkID: "1_0", Offset: 2, Data: []byte{7, 8}},
	})
	require.NoError(t, err)
	require.Equal(t, communication.CodeOK, resp.Code)

	resp, err = s.handleMessage(ctx, communication.Message{
		Type:    server.MsgChunkRead,
		Payload: server.ChunkReadRequest{ChunkID: "1_0", Offset: 0, Length: 4},
	})
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 7, 8}, resp.Body)

	resp, err = s.handleMessage(ctx, communication.Message{
		Type:    server.MsgMkdir,
		Payload: server.MkdirRequest{Path: "/d", User: alice},
	})
	require.NoError(t, err)
	assert.Equal(t, communication.CodeNotSupported, resp.Code)
}

func TestSimpleServer_MetadataOnlyNode(t *testing.T) {
	n := namespace.NewNamespace(memstore.NewMemStore(), namespace.Options{}, log_service.Nop())
	require.NoError(t, n.Start(context.Background()))
	s := NewSimpleServer(nil, n, nil, log_service.Nop())

	resp, err := s.handleMessage(context.Background(), communication.Message{
		Type:    server.MsgChunkRead,
		Payload: server.ChunkReadRequest{ChunkID: "1_0", Length: 4},
	})
	require.NoError(t, err)
	assert.Equal(t, communication.CodeNotSupported, resp.Code)
}
