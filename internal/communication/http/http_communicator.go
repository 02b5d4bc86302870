package httpcomm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/AnishMulay/sandblock/internal/communication"
	"github.com/AnishMulay/sandblock/internal/log_service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const messagePath = "/message"

var (
	ErrHTTPRequestCreateFailed = errors.New("failed to create HTTP request")
	ErrHTTPRequestSendFailed   = errors.New("failed to send HTTP request")
	ErrHTTPResponseReadFailed  = errors.New("failed to read HTTP response")
	ErrInvalidJSON             = errors.New("invalid JSON in request")
)

type wireRequest struct {
	From    string          `json:"from"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type wireResponse struct {
	Code    communication.SandCode `json:"code"`
	Body    []byte                 `json:"body,omitempty"`
	Headers map[string]string      `json:"headers,omitempty"`
}

type HTTPCommunicator struct {
	*communication.PayloadRegistry

	listenAddress string
	boundAddress  string
	httpServer    *http.Server
	handler       communication.MessageHandler
	ls            log_service.LogService
	timeout       time.Duration

	mu         sync.RWMutex
	clientLock sync.RWMutex
	clients    map[string]*http.Client
}

func NewHTTPCommunicator(listenAddress string, ls log_service.LogService) *HTTPCommunicator {
	return &HTTPCommunicator{
		PayloadRegistry: communication.NewPayloadRegistry(),
		listenAddress:   listenAddress,
		ls:              ls,
		timeout:         5 * time.Second,
		clients:         make(map[string]*http.Client),
	}
}

func (c *HTTPCommunicator) Address() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.boundAddress != "" {
		return c.boundAddress
	}
	return c.listenAddress
}

func (c *HTTPCommunicator) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post(messagePath, c.handleHTTPMessage)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func (c *HTTPCommunicator) Start(handler communication.MessageHandler) error {
	c.ls.Info(log_service.LogEvent{
		Message:  "Starting HTTP communicator",
		Metadata: map[string]any{"address": c.listenAddress},
	})

	if handler == nil {
		return communication.ErrHandlerNotSet
	}

	lis, err := net.Listen("tcp", c.listenAddress)
	if err != nil {
		c.ls.Error(log_service.LogEvent{
			Message:  "Failed to listen on address",
			Metadata: map[string]any{"address": c.listenAddress, "error": err.Error()},
		})
		return fmt.Errorf("%w: %v", communication.ErrListenFailed, err)
	}

	c.mu.Lock()
	c.handler = handler
	c.boundAddress = lis.Addr().String()
	c.httpServer = &http.Server{
		Handler:           c.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	srv := c.httpServer
	c.mu.Unlock()

	c.ls.Info(log_service.LogEvent{
		Message:  "HTTP communicator started successfully",
		Metadata: map[string]any{"address": lis.Addr().String()},
	})

	go func() {
		if err := srv.Serve(lis); err != nil && err != http.ErrServerClosed {
			c.ls.Error(log_service.LogEvent{
				Message:  "HTTP server error",
				Metadata: map[string]any{"address": c.listenAddress, "error": err.Error()},
			})
		}
	}()

	return nil
}

func (c *HTTPCommunicator) Stop() error {
	c.mu.Lock()
	srv := c.httpServer
	c.httpServer = nil
	c.mu.Unlock()

	if srv == nil {
		return nil
	}

	c.ls.Info(log_service.LogEvent{
		Message:  "Stopping HTTP communicator",
		Metadata: map[string]any{"address": c.listenAddress},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		c.ls.Error(log_service.LogEvent{
			Message:  "Failed to stop HTTP server",
			Metadata: map[string]any{"address": c.listenAddress, "error": err.Error()},
		})
		return fmt.Errorf("%w: %v", communication.ErrServerStopFailed, err)
	}

	c.ls.Info(log_service.LogEvent{
		Message:  "HTTP communicator stopped successfully",
		Metadata: map[string]any{"address": c.listenAddress},
	})

	return nil
}

func mapFromHTTPCode(code int) communication.SandCode {
	switch code {
	case http.StatusOK:
		return communication.CodeOK
	case http.StatusBadRequest:
		return communication.CodeBadRequest
	case http.StatusNotFound:
		return communication.CodeNotFound
	case http.StatusServiceUnavailable:
		return communication.CodeUnavailable
	default:
		return communication.CodeInternal
	}
}

func (c *HTTPCommunicator) clientFor(to string) *http.Client {
	c.clientLock.RLock()
	client, ok := c.clients[to]
	c.clientLock.RUnlock()
	if ok {
		return client
	}

	c.ls.Debug(log_service.LogEvent{
		Message:  "Creating new HTTP client",
		Metadata: map[string]any{"to": to},
	})

	client = &http.Client{Timeout: c.timeout}
	c.clientLock.Lock()
	c.clients[to] = client
	c.clientLock.Unlock()
	return client
}

func (c *HTTPCommunicator) Send(ctx context.Context, to string, msg communication.Message) (*communication.Response, error) {
	c.ls.Debug(log_service.LogEvent{
		Message:  "Sending HTTP message",
		Metadata: map[string]any{"to": to, "type": msg.Type, "from": msg.From},
	})

	payload, err := communication.EncodePayload(msg.Payload)
	if err != nil {
		return nil, err
	}

	jsonData, err := json.Marshal(wireRequest{From: msg.From, Type: msg.Type, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", communication.ErrMessageMarshalFailed, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("http://%s%s", to, messagePath), bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHTTPRequestCreateFailed, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.clientFor(to).Do(httpReq)
	if err != nil {
		c.ls.Error(log_service.LogEvent{
			Message:  "Failed to send HTTP request",
			Metadata: map[string]any{"to": to, "type": msg.Type, "error": err.Error()},
		})
		return nil, fmt.Errorf("%w: %v", ErrHTTPRequestSendFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHTTPResponseReadFailed, err)
	}

	c.ls.Debug(log_service.LogEvent{
		Message:  "HTTP message sent successfully",
		Metadata: map[string]any{"to": to, "type": msg.Type, "status": resp.StatusCode},
	})

	var wr wireResponse
	if err := json.Unmarshal(body, &wr); err != nil || wr.Code == "" {
		// Not an envelope; the failure happened below the handler.
		return &communication.Response{Code: mapFromHTTPCode(resp.StatusCode), Body: body}, nil
	}
	return &communication.Response{Code: wr.Code, Body: wr.Body, Headers: wr.Headers}, nil
}

func (c *HTTPCommunicator) writeResponse(w http.ResponseWriter, resp *communication.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(wireResponse{Code: resp.Code, Body: resp.Body, Headers: resp.Headers}); err != nil {
		c.ls.Error(log_service.LogEvent{
			Message:  "Failed to write HTTP response body",
			Metadata: map[string]any{"error": err.Error()},
		})
	}
}

func (c *HTTPCommunicator) handleHTTPMessage(w http.ResponseWriter, r *http.Request) {
	var req wireRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		c.ls.Error(log_service.LogEvent{
			Message:  "Invalid JSON in request",
			Metadata: map[string]any{"error": err.Error()},
		})
		http.Error(w, ErrInvalidJSON.Error(), http.StatusBadRequest)
		return
	}
	if req.Type == "" {
		http.Error(w, communication.ErrMalformedEnvelope.Error(), http.StatusBadRequest)
		return
	}

	c.mu.RLock()
	handler := c.handler
	c.mu.RUnlock()
	if handler == nil {
		http.Error(w, communication.ErrHandlerNotSet.Error(), http.StatusServiceUnavailable)
		return
	}

	var raw []byte
	if len(req.Payload) > 0 && string(req.Payload) != "null" {
		raw = req.Payload
	}
	payload, err := c.Decode(req.Type, raw)
	if err != nil {
		c.writeResponse(w, &communication.Response{Code: communication.CodeBadRequest, Body: []byte(err.Error())})
		return
	}

	resp, err := handler(r.Context(), communication.Message{From: req.From, Type: req.Type, Payload: payload})
	if err != nil {
		c.ls.Error(log_service.LogEvent{
			Message:  "Message handler failed",
			Metadata: map[string]any{"type": req.Type, "error": err.Error()},
		})
		resp = &communication.Response{Code: communication.CodeInternal, Body: []byte(err.Error())}
	}
	if resp == nil {
		resp = &communication.Response{Code: communication.CodeInternal, Body: []byte(communication.ErrMessageHandlerFailed.Error())}
	}
	c.writeResponse(w, resp)
}
