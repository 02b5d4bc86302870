package sandlib

import (
	"errors"
	"fmt"

	"github.com/AnishMulay/sandblock/internal/chunk_service"
	fs "github.com/AnishMulay/sandblock/internal/file_session"
	ms "github.com/AnishMulay/sandblock/internal/metadata_service"
	"github.com/AnishMulay/sandblock/internal/server"
)

// Code is the status kind reported across the flattened interface, where a
// failure is returned as -Code.
type Code int

const (
	CodeOK                 Code = 0
	CodeExists             Code = 1
	CodeFailed             Code = 2
	CodeDisableIO          Code = 3
	CodeAuthFail           Code = 4
	CodeNotExist           Code = 6
	CodeNotSupport         Code = 11
	CodeNotEmpty           Code = 12
	CodeNoShrinkBiggerFile Code = 13
	CodeSessionNotExist    Code = 14
	CodeFileOccupied       Code = 15
	CodeParamError         Code = 16
	CodeInternalError      Code = 17
	CodeNotAligned         Code = 22
	CodeBadFD              Code = 23
	CodeNotInitialized     Code = 30
)

var codeNames = map[Code]string{
	CodeOK:                 "OK",
	CodeExists:             "EXISTS",
	CodeFailed:             "FAILED",
	CodeDisableIO:          "DISABLEIO",
	CodeAuthFail:           "AUTHFAIL",
	CodeNotExist:           "NOTEXIST",
	CodeNotSupport:         "NOT_SUPPORT",
	CodeNotEmpty:           "NOT_EMPTY",
	CodeNoShrinkBiggerFile: "NO_SHRINK_BIGGER_FILE",
	CodeSessionNotExist:    "SESSION_NOTEXISTS",
	CodeFileOccupied:       "FILE_OCCUPIED",
	CodeParamError:         "PARAM_ERROR",
	CodeInternalError:      "INTERNAL_ERROR",
	CodeNotAligned:         "NOT_ALIGNED",
	CodeBadFD:              "BAD_FD",
	CodeNotInitialized:     "NOT_INITIALIZED",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CODE_%d", int(c))
}

var (
	ErrNotInitialized = errors.New("client not initialized")
	ErrBadHandle      = errors.New("bad file descriptor")
	ErrNotAligned     = errors.New("offset or length not aligned")
	ErrFailed         = errors.New("operation failed")
)

// Error is returned by every FileClient operation.
type Error struct {
	Code Code
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

var codeTable = []struct {
	err  error
	code Code
}{
	{ErrNotInitialized, CodeNotInitialized},
	{ErrBadHandle, CodeBadFD},
	{ErrNotAligned, CodeNotAligned},
	{ErrFailed, CodeFailed},
	{ms.ErrFileExists, CodeExists},
	{ms.ErrFileNotFound, CodeNotExist},
	{ms.ErrAuthFailed, CodeAuthFail},
	{ms.ErrDirNotEmpty, CodeNotEmpty},
	{ms.ErrNoShrink, CodeNoShrinkBiggerFile},
	{ms.ErrSessionNotFound, CodeSessionNotExist},
	{ms.ErrFileOccupied, CodeFileOccupied},
	{ms.ErrNotSupported, CodeNotSupport},
	{ms.ErrInvalidParam, CodeParamError},
	{ms.ErrNotDirectory, CodeParamError},
	{fs.ErrIODisabled, CodeDisableIO},
	{fs.ErrOutOfRange, CodeParamError},
	{fs.ErrInvalidAio, CodeParamError},
	{chunk_service.ErrInvalidRange, CodeParamError},
	{server.ErrRemoteInternal, CodeInternalError},
}

// CodeOf returns the most specific code for err. Errors the client does not
// recognise are CodeFailed.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	for _, entry := range codeTable {
		if errors.Is(err, entry.err) {
			return entry.code
		}
	}
	return CodeFailed
}

// Status is the flattened form of err: 0 or -code.
func Status(err error) int {
	return -int(CodeOf(err))
}

func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Code: CodeOf(err), Op: op, Err: err}
}
