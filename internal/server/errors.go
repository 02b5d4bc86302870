package server

import "errors"

var (
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrInvalidPayload     = errors.New("invalid payload for message type")
	ErrEmptyResponse      = errors.New("empty response")
	ErrRemoteInternal     = errors.New("remote internal error")
)
