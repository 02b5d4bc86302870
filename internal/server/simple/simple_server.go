package simple

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/AnishMulay/sandblock/internal/chunk_service"
	"github.com/AnishMulay/sandblock/internal/communication"
	"github.com/AnishMulay/sandblock/internal/log_service"
	ms "github.com/AnishMulay/sandblock/internal/metadata_service"
	"github.com/AnishMulay/sandblock/internal/server"
)

// SimpleServer routes namespace and chunk messages arriving on one communicator.
// A node started without a metadata service answers only chunk messages, and
// one without a chunk service answers only namespace messages.
type SimpleServer struct {
	comm communication.Communicator
	md   ms.MetadataService
	cs   chunk_service.ChunkService
	ls   log_service.LogService
}

func NewSimpleServer(
	comm communication.Communicator,
	md ms.MetadataService,
	cs chunk_service.ChunkService,
	ls log_service.LogService,
) *SimpleServer {
	return &SimpleServer{
		comm: comm,
		md:   md,
		cs:   cs,
		ls:   ls,
	}
}

func (s *SimpleServer) Start() error {
	s.ls.Info(log_service.LogEvent{Message: "Starting Simple Server"})

	for msgType, payloadType := range server.PayloadTypes {
		s.comm.RegisterPayloadType(msgType, payloadType)
	}
	return s.comm.Start(s.handleMessage)
}

func (s *SimpleServer) Stop() error {
	s.ls.Info(log_service.LogEvent{Message: "Stopping Simple Server"})
	return s.comm.Stop()
}

func (s *SimpleServer) Address() string {
	return s.comm.Address()
}

// Handler exposes the router so an in-process transport can call it directly.
func (s *SimpleServer) Handler() communication.MessageHandler {
	return s.handleMessage
}

// Central Router for all incoming messages
func (s *SimpleServer) handleMessage(ctx context.Context, msg communication.Message) (resp *communication.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.ls.Error(log_service.LogEvent{
				Message:  "Handler panicked",
				Metadata: map[string]any{"type": msg.Type, "panic": fmt.Sprint(r)},
			})
			resp = &communication.Response{Code: communication.CodeBadRequest, Body: []byte(server.ErrInvalidPayload.Error())}
			err = nil
		}
	}()

	if isNamespaceMessage(msg.Type) && s.md == nil {
		return &communication.Response{Code: communication.CodeNotSupported, Body: []byte("node has no metadata service")}, nil
	}
	if isChunkMessage(msg.Type) && s.cs == nil {
		return &communication.Response{Code: communication.CodeNotSupported, Body: []byte("node has no chunk service")}, nil
	}

	switch msg.Type {
	// --- Namespace ---
	case server.MsgCreateFile:
		req := msg.Payload.(server.CreateFileRequest)
		return s.respond(nil, s.md.CreateFile(ctx, req.Path, req.User, req.Size))

	case server.MsgMkdir:
		req := msg.Payload.(server.MkdirRequest)
		return s.respond(nil, s.md.Mkdir(ctx, req.Path, req.User))

	case server.MsgRmdir:
		req := msg.Payload.(server.RmdirRequest)
		return s.respond(nil, s.md.Rmdir(ctx, req.Path, req.User))

	case server.MsgDeleteFile:
		req := msg.Payload.(server.DeleteFileRequest)
		return s.respond(nil, s.md.DeleteFile(ctx, req.Path, req.User, req.Force))

	case server.MsgRenameFile:
		req := msg.Payload.(server.RenameFileRequest)
		return s.respond(nil, s.md.RenameFile(ctx, req.User, req.OldPath, req.NewPath))

	case server.MsgExtend:
		req := msg.Payload.(server.ExtendRequest)
		return s.respond(nil, s.md.Extend(ctx, req.Path, req.User, req.NewSize))

	case server.MsgChangeOwner:
		req := msg.Payload.(server.ChangeOwnerRequest)
		return s.respond(nil, s.md.ChangeOwner(ctx, req.Path, req.NewOwner, req.User))

	case server.MsgGetFileInfo:
		req := msg.Payload.(server.GetFileInfoRequest)
		fi, err := s.md.GetFileInfo(ctx, req.Path, req.User)
		return s.respond(fi, err)

	case server.MsgListDir:
		req := msg.Payload.(server.ListDirRequest)
		entries, err := s.md.ListDir(ctx, req.Path, req.User)
		if entries == nil {
			entries = []ms.FileInfo{}
		}
		return s.respond(entries, err)

	case server.MsgOpenFile:
		req := msg.Payload.(server.OpenFileRequest)
		fi, si, err := s.md.OpenFile(ctx, req.Path, req.User, req.ClientID)
		return s.respondSession(fi, si, err)

	case server.MsgRefreshSession:
		req := msg.Payload.(server.RefreshSessionRequest)
		fi, si, err := s.md.RefreshSession(ctx, req.Path, req.SessionID, req.User)
		return s.respondSession(fi, si, err)

	case server.MsgCloseFile:
		req := msg.Payload.(server.CloseFileRequest)
		return s.respond(nil, s.md.CloseFile(ctx, req.Path, req.SessionID, req.User))

	// --- Chunks ---
	case server.MsgChunkWrite:
		req := msg.Payload.(server.ChunkWriteRequest)
		return s.respond(nil, s.cs.WriteChunk(ctx, req.ChunkID, req.Offset, req.Data))

	case server.MsgChunkRead:
		req := msg.Payload.(server.ChunkReadRequest)
		data, err := s.cs.ReadChunk(ctx, req.ChunkID, req.Offset, req.Length)
		if err != nil {
			return s.respond(nil, err)
		}
		return &communication.Response{Code: communication.CodeOK, Body: data}, nil

	case server.MsgChunkDelete:
		req := msg.Payload.(server.ChunkDeleteRequest)
		return s.respond(nil, s.cs.DeleteChunk(ctx, req.ChunkID))

	default:
		s.ls.Warn(log_service.LogEvent{
			Message:  "Unhandled message type",
			Metadata: map[string]any{"type": msg.Type, "from": msg.From},
		})
		return &communication.Response{
			Code: communication.CodeBadRequest,
			Body: []byte(fmt.Sprintf("%s: %s", server.ErrUnknownMessageType, msg.Type)),
		}, nil
	}
}

func isChunkMessage(msgType string) bool {
	switch msgType {
	case server.MsgChunkWrite, server.MsgChunkRead, server.MsgChunkDelete:
		return true
	}
	return false
}

func isNamespaceMessage(msgType string) bool {
	if isChunkMessage(msgType) {
		return false
	}
	_, ok := server.PayloadTypes[msgType]
	return ok
}

func (s *SimpleServer) respondSession(fi *ms.FileInfo, si *ms.SessionInfo, err error) (*communication.Response, error) {
	if err != nil {
		return s.respond(nil, err)
	}
	return s.respond(server.OpenFileResponse{File: *fi, Session: *si}, nil)
}

func (s *SimpleServer) respond(data any, err error) (*communication.Response, error) {
	if err != nil {
		code := server.CodeForError(err)
		if code == communication.CodeInternal {
			s.ls.Error(log_service.LogEvent{
				Message:  "Request failed",
				Metadata: map[string]any{"error": err.Error()},
			})
		}
		return &communication.Response{
			Code: code,
			Body: []byte(err.Error()),
		}, nil
	}

	if data == nil {
		return &communication.Response{Code: communication.CodeOK}, nil
	}

	bytes, marshalErr := json.Marshal(data)
	if marshalErr != nil {
		return &communication.Response{
			Code: communication.CodeInternal,
			Body: []byte("failed to marshal response: " + marshalErr.Error()),
		}, nil
	}

	return &communication.Response{
		Code: communication.CodeOK,
		Body: bytes,
	}, nil
}
