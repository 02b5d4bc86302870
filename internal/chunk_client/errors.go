package chunk_client

import "errors"

var (
	ErrNoChunkNodes   = errors.New("no healthy chunk nodes")
	ErrShortChunkRead = errors.New("chunk read returned fewer bytes than requested")
)
