package server

import (
	"reflect"

	ms "github.com/AnishMulay/sandblock/internal/metadata_service"
)

// Message Type Constants
const (
	// Namespace Operations
	MsgCreateFile     = "mds_create_file"
	MsgMkdir          = "mds_mkdir"
	MsgRmdir          = "mds_rmdir"
	MsgDeleteFile     = "mds_delete_file"
	MsgRenameFile     = "mds_rename_file"
	MsgExtend         = "mds_extend"
	MsgChangeOwner    = "mds_change_owner"
	MsgGetFileInfo    = "mds_get_file_info"
	MsgListDir        = "mds_list_dir"
	MsgOpenFile       = "mds_open_file"
	MsgRefreshSession = "mds_refresh_session"
	MsgCloseFile      = "mds_close_file"

	// Chunk Operations
	MsgChunkWrite  = "chunk_write"
	MsgChunkRead   = "chunk_read"
	MsgChunkDelete = "chunk_delete"
)

// --- Payload Structs ---

type CreateFileRequest struct {
	Path string      `json:"path"`
	User ms.UserInfo `json:"user"`
	Size uint64      `json:"size"`
}

type MkdirRequest struct {
	Path string      `json:"path"`
	User ms.UserInfo `json:"user"`
}

type RmdirRequest struct {
	Path string      `json:"path"`
	User ms.UserInfo `json:"user"`
}

type DeleteFileRequest struct {
	Path  string      `json:"path"`
	User  ms.UserInfo `json:"user"`
	Force bool        `json:"force"`
}

type RenameFileRequest struct {
	User    ms.UserInfo `json:"user"`
	OldPath string      `json:"oldPath"`
	NewPath string      `json:"newPath"`
}

type ExtendRequest struct {
	Path    string      `json:"path"`
	User    ms.UserInfo `json:"user"`
	NewSize uint64      `json:"newSize"`
}

type ChangeOwnerRequest struct {
	Path     string      `json:"path"`
	NewOwner string      `json:"newOwner"`
	User     ms.UserInfo `json:"user"`
}

type GetFileInfoRequest struct {
	Path string      `json:"path"`
	User ms.UserInfo `json:"user"`
}

type ListDirRequest struct {
	Path string      `json:"path"`
	User ms.UserInfo `json:"user"`
}

type OpenFileRequest struct {
	Path     string      `json:"path"`
	User     ms.UserInfo `json:"user"`
	ClientID string      `json:"clientId"`
}

type RefreshSessionRequest struct {
	Path      string      `json:"path"`
	SessionID string      `json:"sessionId"`
	User      ms.UserInfo `json:"user"`
}

type CloseFileRequest struct {
	Path      string      `json:"path"`
	SessionID string      `json:"sessionId"`
	User      ms.UserInfo `json:"user"`
}

// OpenFileResponse is the body of a successful open or refresh.
type OpenFileResponse struct {
	File    ms.FileInfo    `json:"file"`
	Session ms.SessionInfo `json:"session"`
}

type ChunkWriteRequest struct {
	ChunkID string `json:"chunkId"`
	Offset  int64  `json:"offset"`
	Data    []byte `json:"data"`
}

// ChunkReadRequest is answered with the raw chunk bytes as the response body.
type ChunkReadRequest struct {
	ChunkID string `json:"chunkId"`
	Offset  int64  `json:"offset"`
	Length  int64  `json:"length"`
}

type ChunkDeleteRequest struct {
	ChunkID string `json:"chunkId"`
}

// PayloadTypes lists every request type a node accepts.
var PayloadTypes = map[string]reflect.Type{
	MsgCreateFile:     reflect.TypeOf(CreateFileRequest{}),
	MsgMkdir:          reflect.TypeOf(MkdirRequest{}),
	MsgRmdir:          reflect.TypeOf(RmdirRequest{}),
	MsgDeleteFile:     reflect.TypeOf(DeleteFileRequest{}),
	MsgRenameFile:     reflect.TypeOf(RenameFileRequest{}),
	MsgExtend:         reflect.TypeOf(ExtendRequest{}),
	MsgChangeOwner:    reflect.TypeOf(ChangeOwnerRequest{}),
	MsgGetFileInfo:    reflect.TypeOf(GetFileInfoRequest{}),
	MsgListDir:        reflect.TypeOf(ListDirRequest{}),
	MsgOpenFile:       reflect.TypeOf(OpenFileRequest{}),
	MsgRefreshSession: reflect.TypeOf(RefreshSessionRequest{}),
	MsgCloseFile:      reflect.TypeOf(CloseFileRequest{}),
	MsgChunkWrite:     reflect.TypeOf(ChunkWriteRequest{}),
	MsgChunkRead:      reflect.TypeOf(ChunkReadRequest{}),
	MsgChunkDelete:    reflect.TypeOf(ChunkDeleteRequest{}),
}
