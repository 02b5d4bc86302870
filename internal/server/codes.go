package server

import (
	"errors"
	"fmt"

	"github.com/AnishMulay/sandblock/internal/chunk_service"
	"github.com/AnishMulay/sandblock/internal/communication"
	ms "github.com/AnishMulay/sandblock/internal/metadata_service"
)

var codeTable = []struct {
	err  error
	code communication.SandCode
}{
	{ms.ErrFileExists, communication.CodeAlreadyExists},
	{ms.ErrFileNotFound, communication.CodeNotFound},
	{ms.ErrAuthFailed, communication.CodeUnauthorized},
	{ms.ErrDirNotEmpty, communication.CodeNotEmpty},
	{ms.ErrNoShrink, communication.CodeNoShrink},
	{ms.ErrFileOccupied, communication.CodeConflict},
	{ms.ErrSessionNotFound, communication.CodeSessionNotFound},
	{ms.ErrNotSupported, communication.CodeNotSupported},
	{ms.ErrInvalidParam, communication.CodeBadRequest},
	{ms.ErrNotDirectory, communication.CodeBadRequest},
	{chunk_service.ErrInvalidRange, communication.CodeBadRequest},
	{ms.ErrStoreUnavailable, communication.CodeUnavailable},
}

// CodeForError maps a service error onto the wire code.
func CodeForError(err error) communication.SandCode {
	if err == nil {
		return communication.CodeOK
	}
	for _, e := range codeTable {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return communication.CodeInternal
}

// ErrorForResponse rebuilds a service error from a non-OK response so callers can
// match it with errors.Is.
func ErrorForResponse(resp *communication.Response) error {
	if resp == nil {
		return ErrEmptyResponse
	}
	if resp.Code == communication.CodeOK {
		return nil
	}

	var base error
	switch resp.Code {
	case communication.CodeAlreadyExists:
		base = ms.ErrFileExists
	case communication.CodeNotFound:
		base = ms.ErrFileNotFound
	case communication.CodeUnauthorized:
		base = ms.ErrAuthFailed
	case communication.CodeNotEmpty:
		base = ms.ErrDirNotEmpty
	case communication.CodeNoShrink:
		base = ms.ErrNoShrink
	case communication.CodeConflict:
		base = ms.ErrFileOccupied
	case communication.CodeSessionNotFound:
		base = ms.ErrSessionNotFound
	case communication.CodeNotSupported:
		base = ms.ErrNotSupported
	case communication.CodeBadRequest:
		base = ms.ErrInvalidParam
	case communication.CodeUnavailable:
		base = ms.ErrStoreUnavailable
	default:
		base = ErrRemoteInternal
	}
	if len(resp.Body) == 0 {
		return base
	}
	return fmt.Errorf("%w: %s", base, string(resp.Body))
}
