package communication

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
)

// PayloadRegistry maps message types to the Go type their JSON payload decodes into.
// Communicators embed it so handlers receive typed payload values.
type PayloadRegistry struct {
	mu    sync.RWMutex
	types map[string]reflect.Type
}

func NewPayloadRegistry() *PayloadRegistry {
	return &PayloadRegistry{types: make(map[string]reflect.Type)}
}

func (r *PayloadRegistry) RegisterPayloadType(msgType string, payloadType reflect.Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[msgType] = payloadType
}

// Decode turns a raw JSON payload into a value of the registered type. A nil or empty
// payload decodes to nil.
func (r *PayloadRegistry) Decode(msgType string, raw []byte) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	r.mu.RLock()
	payloadType, ok := r.types[msgType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMessageType, msgType)
	}

	payload := reflect.New(payloadType).Interface()
	if err := json.Unmarshal(raw, payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayloadUnmarshalFailed, err)
	}
	return reflect.ValueOf(payload).Elem().Interface(), nil
}

// EncodePayload marshals an outgoing payload. A nil payload encodes to nil.
func EncodePayload(payload any) ([]byte, error) {
	if payload == nil {
		return nil, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayloadMarshalFailed, err)
	}
	return data, nil
}
