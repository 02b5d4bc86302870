package communication

import (
	"encoding/base64"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// Envelope field names shared by every transport that carries structpb messages.
const (
	fieldFrom    = "from"
	fieldType    = "type"
	fieldPayload = "payload"
	fieldCode    = "code"
	fieldBody    = "body"
	fieldHeaders = "headers"
)

// RequestToStruct packs a message whose payload is already JSON encoded.
func RequestToStruct(from, msgType string, payload []byte) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		fieldFrom:    from,
		fieldType:    msgType,
		fieldPayload: string(payload),
	})
}

// StructToRequest is the inverse of RequestToStruct.
func StructToRequest(s *structpb.Struct) (from, msgType string, payload []byte, err error) {
	if s == nil {
		return "", "", nil, ErrMalformedEnvelope
	}
	fields := s.GetFields()
	msgType = fields[fieldType].GetStringValue()
	if msgType == "" {
		return "", "", nil, fmt.Errorf("%w: missing type", ErrMalformedEnvelope)
	}
	from = fields[fieldFrom].GetStringValue()
	if raw := fields[fieldPayload].GetStringValue(); raw != "" {
		payload = []byte(raw)
	}
	return from, msgType, payload, nil
}

// ResponseToStruct packs a response. The body is base64 encoded since chunk reads
// carry raw bytes.
func ResponseToStruct(resp *Response) (*structpb.Struct, error) {
	headers := make(map[string]any, len(resp.Headers))
	for k, v := range resp.Headers {
		headers[k] = v
	}
	return structpb.NewStruct(map[string]any{
		fieldCode:    string(resp.Code),
		fieldBody:    base64.StdEncoding.EncodeToString(resp.Body),
		fieldHeaders: headers,
	})
}

func StructToResponse(s *structpb.Struct) (*Response, error) {
	if s == nil {
		return nil, ErrMalformedEnvelope
	}
	fields := s.GetFields()
	code := fields[fieldCode].GetStringValue()
	if code == "" {
		return nil, fmt.Errorf("%w: missing code", ErrMalformedEnvelope)
	}

	body, err := base64.StdEncoding.DecodeString(fields[fieldBody].GetStringValue())
	if err != nil {
		return nil, fmt.Errorf("%w: body: %v", ErrMalformedEnvelope, err)
	}
	if len(body) == 0 {
		body = nil
	}

	var headers map[string]string
	if h := fields[fieldHeaders].GetStructValue(); h != nil && len(h.GetFields()) > 0 {
		headers = make(map[string]string, len(h.GetFields()))
		for k, v := range h.GetFields() {
			headers[k] = v.GetStringValue()
		}
	}

	return &Response{Code: SandCode(code), Body: body, Headers: headers}, nil
}
