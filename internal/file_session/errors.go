package file_session

import "errors"

var (
	ErrIODisabled    = errors.New("io disabled: lease expired")
	ErrOutOfRange    = errors.New("request beyond end of file")
	ErrNotOpen       = errors.New("session not open")
	ErrSessionClosed = errors.New("session closed")
	ErrInvalidAio    = errors.New("invalid aio context")
)
