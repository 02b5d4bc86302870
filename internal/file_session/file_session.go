package file_session

import "context"

type AioOp int

const (
	AioOpRead AioOp = iota
	AioOpWrite
)

func (o AioOp) String() string {
	if o == AioOpWrite {
		return "write"
	}
	return "read"
}

// AioContext is one asynchronous request. The caller owns it until Cb runs;
// Ret and Err are set before Cb is called.
type AioContext struct {
	Offset int64
	Length int64
	Op     AioOp
	Buf    []byte

	Ret int
	Err error
	Cb  func(aio *AioContext)
}

// Session is the per-file data path for one open file.
type Session interface {
	// Open runs the open protocol against the metadata service.
	Open(ctx context.Context) error
	// Close waits for in-flight asynchronous requests and releases the lease.
	Close(ctx context.Context) error
	// UnInitialize stops background work. Safe to call more than once and
	// after a failed Open.
	UnInitialize()

	Read(buf []byte, offset int64) (int, error)
	Write(buf []byte, offset int64) (int, error)
	AioRead(aio *AioContext) error
	AioWrite(aio *AioContext) error
}
