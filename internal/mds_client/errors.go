package mds_client

import "errors"

var (
	ErrNoMetadataServer = errors.New("no metadata server available")
	ErrNotInitialized   = errors.New("metadata client not initialized")
	ErrDecodeResponse   = errors.New("failed to decode metadata response")
)
