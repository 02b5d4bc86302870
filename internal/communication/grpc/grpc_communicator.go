package grpccomm

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/AnishMulay/sandblock/internal/communication"
	"github.com/AnishMulay/sandblock/internal/log_service"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

type GRPCCommunicator struct {
	*communication.PayloadRegistry

	listenAddress string
	boundAddress  string
	handler       communication.MessageHandler
	grpcServer    *grpc.Server
	ls            log_service.LogService

	clientLock sync.RWMutex
	clients    map[string]*grpc.ClientConn
	stopped    bool
	stopMutex  sync.RWMutex
}

func NewGRPCCommunicator(addr string, ls log_service.LogService) *GRPCCommunicator {
	return &GRPCCommunicator{
		PayloadRegistry: communication.NewPayloadRegistry(),
		listenAddress:   addr,
		ls:              ls,
		clients:         make(map[string]*grpc.ClientConn),
	}
}

// Address reports the bound listener address once started, so ":0" listeners
// advertise their real port.
func (c *GRPCCommunicator) Address() string {
	c.stopMutex.RLock()
	defer c.stopMutex.RUnlock()
	if c.boundAddress != "" {
		return c.boundAddress
	}
	return c.listenAddress
}

func (c *GRPCCommunicator) Start(handler communication.MessageHandler) error {
	c.ls.Info(log_service.LogEvent{
		Message:  "Starting GRPC communicator",
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

	c.stopMutex.Lock()
	c.handler = handler
	c.boundAddress = lis.Addr().String()
	c.grpcServer = grpc.NewServer()
	c.grpcServer.RegisterService(&messageServiceDesc, &grpcServer{comm: c})
	srv := c.grpcServer
	c.stopMutex.Unlock()

	c.ls.Info(log_service.LogEvent{
		Message:  "GRPC communicator started successfully",
		Metadata: map[string]any{"address": lis.Addr().String()},
	})

	go func() {
		if err := srv.Serve(lis); err != nil {
			c.ls.Error(log_service.LogEvent{
				Message:  "GRPC server error",
				Metadata: map[string]any{"address": c.listenAddress, "error": err.Error()},
			})
		}
	}()
	return nil
}

func (c *GRPCCommunicator) Stop() error {
	c.stopMutex.Lock()
	defer c.stopMutex.Unlock()

	if c.stopped {
		c.ls.Debug(log_service.LogEvent{
			Message:  "GRPC communicator already stopped, skipping",
			Metadata: map[string]any{"address": c.listenAddress},
		})
		return nil
	}

	c.ls.Info(log_service.LogEvent{
		Message:  "Stopping GRPC communicator",
		Metadata: map[string]any{"address": c.listenAddress},
	})

	if c.grpcServer != nil {
		c.grpcServer.GracefulStop()
	}

	c.clientLock.Lock()
	for addr, conn := range c.clients {
		if err := conn.Close(); err != nil {
			c.ls.Warn(log_service.LogEvent{
				Message:  "Failed to close GRPC client connection",
				Metadata: map[string]any{"to": addr, "error": err.Error()},
			})
		}
		delete(c.clients, addr)
	}
	c.clientLock.Unlock()

	c.stopped = true
	c.ls.Info(log_service.LogEvent{
		Message:  "GRPC communicator stopped successfully",
		Metadata: map[string]any{"address": c.listenAddress},
	})

	return nil
}

func (c *GRPCCommunicator) connFor(to string) (*grpc.ClientConn, error) {
	c.clientLock.RLock()
	conn, ok := c.clients[to]
	c.clientLock.RUnlock()
	if ok {
		return conn, nil
	}

	c.ls.Debug(log_service.LogEvent{
		Message:  "Creating new GRPC client",
		Metadata: map[string]any{"to": to},
	})

	c.clientLock.Lock()
	defer c.clientLock.Unlock()
	if conn, ok := c.clients[to]; ok {
		return conn, nil
	}
	conn, err := grpc.NewClient(to, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		c.ls.Error(log_service.LogEvent{
			Message:  "Failed to create GRPC client",
			Metadata: map[string]any{"to": to, "error": err.Error()},
		})
		return nil, fmt.Errorf("%w: %v", communication.ErrClientCreateFailed, err)
	}
	c.clients[to] = conn
	return conn, nil
}

func (c *GRPCCommunicator) Send(ctx context.Context, to string, msg communication.Message) (*communication.Response, error) {
	c.ls.Debug(log_service.LogEvent{
		Message:  "Sending GRPC message",
		Metadata: map[string]any{"to": to, "type": msg.Type, "from": msg.From},
	})

	conn, err := c.connFor(to)
	if err != nil {
		return nil, err
	}

	payloadBytes, err := communication.EncodePayload(msg.Payload)
	if err != nil {
		c.ls.Error(log_service.LogEvent{
			Message:  "Failed to marshal payload",
			Metadata: map[string]any{"to": to, "type": msg.Type, "error": err.Error()},
		})
		return nil, err
	}

	req, err := communication.RequestToStruct(msg.From, msg.Type, payloadBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", communication.ErrMessageMarshalFailed, err)
	}

	out, err := invokeSendMessage(ctx, conn, req)
	if err != nil {
		c.ls.Error(log_service.LogEvent{
			Message:  "Failed to send GRPC message",
			Metadata: map[string]any{"to": to, "type": msg.Type, "error": err.Error()},
		})
		return nil, fmt.Errorf("%w: %v", communication.ErrMessageSendFailed, err)
	}

	resp, err := communication.StructToResponse(out)
	if err != nil {
		return nil, err
	}

	c.ls.Debug(log_service.LogEvent{
		Message:  "GRPC message sent successfully",
		Metadata: map[string]any{"to": to, "type": msg.Type, "responseCode": resp.Code},
	})
	return resp, nil
}

type grpcServer struct {
	comm *GRPCCommunicator
}

func (s *grpcServer) SendMessage(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	s.comm.stopMutex.RLock()
	handler := s.comm.handler
	s.comm.stopMutex.RUnlock()
	if handler == nil {
		return nil, communication.ErrHandlerNotSet
	}

	from, msgType, raw, err := communication.StructToRequest(req)
	if err != nil {
		return communication.ResponseToStruct(&communication.Response{
			Code: communication.CodeBadRequest,
			Body: []byte(err.Error()),
		})
	}

	payload, err := s.comm.Decode(msgType, raw)
	if err != nil {
		return communication.ResponseToStruct(&communication.Response{
			Code: communication.CodeBadRequest,
			Body: []byte(err.Error()),
		})
	}

	resp, err := handler(ctx, communication.Message{From: from, Type: msgType, Payload: payload})
	if err != nil {
		s.comm.ls.Error(log_service.LogEvent{
			Message:  "Message handler failed",
			Metadata: map[string]any{"type": msgType, "error": err.Error()},
		})
		resp = &communication.Response{Code: communication.CodeInternal, Body: []byte(err.Error())}
	}
	if resp == nil {
		resp = &communication.Response{Code: communication.CodeInternal, Body: []byte("handler returned nil response")}
	}

	return communication.ResponseToStruct(resp)
}
