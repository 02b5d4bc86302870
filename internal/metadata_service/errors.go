package metadata_service

import "errors"

var (
	ErrFileExists       = errors.New("file already exists")
	ErrFileNotFound     = errors.New("file not found")
	ErrAuthFailed       = errors.New("authentication failed")
	ErrDirNotEmpty      = errors.New("directory not empty")
	ErrNoShrink         = errors.New("cannot shrink file")
	ErrFileOccupied     = errors.New("file is occupied by another session")
	ErrSessionNotFound  = errors.New("session not found")
	ErrNotSupported     = errors.New("operation not supported")
	ErrInvalidParam     = errors.New("invalid parameter")
	ErrNotDirectory     = errors.New("not a directory")
	ErrStoreUnavailable = errors.New("metadata store unavailable")
)
