package metadata_service

import "time"

type FileType int32

const (
	TypeDirectory FileType = iota
	TypePageFile
)

func (t FileType) String() string {
	switch t {
	case TypeDirectory:
		return "directory"
	case TypePageFile:
		return "file"
	default:
		return "unknown"
	}
}

const RootPath = "/"

// UserInfo is the credential pair carried with every namespace request.
type UserInfo struct {
	Owner    string `json:"owner"`
	Password string `json:"password"`
}

// FileInfo is the stored record for one namespace entry. Ctime is in microseconds.
type FileInfo struct {
	ID        uint64   `json:"id"`
	ParentID  uint64   `json:"parentId"`
	Type      FileType `json:"type"`
	Name      string   `json:"name"`
	FullPath  string   `json:"fullPath"`
	Owner     string   `json:"owner"`
	Length    uint64   `json:"length"`
	ChunkSize uint64   `json:"chunkSize"`
	Ctime     uint64   `json:"ctime"`
}

func (fi *FileInfo) IsDir() bool {
	return fi.Type == TypeDirectory
}

// SessionInfo describes the lease granted to the client holding a file open.
type SessionInfo struct {
	SessionID  string        `json:"sessionId"`
	ClientID   string        `json:"clientId"`
	LeaseTime  time.Duration `json:"leaseTime"`
	CreateTime time.Time     `json:"createTime"`
}
