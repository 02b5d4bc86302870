package communication

import (
	"context"
	"reflect"
)

type Message struct {
	From    string
	Type    string
	Payload any
}

type Response struct {
	Code    SandCode
	Body    []byte
	Headers map[string]string
}

type Communicator interface {
	Start(handler MessageHandler) error
	Stop() error
	Send(ctx context.Context, to string, msg Message) (*Response, error)
	RegisterPayloadType(msgType string, payloadType reflect.Type)
	Address() string
}
