// Package server carries the JSON-RPC 2.0 surface between the desktop
// shell and the engine: newline-delimited JSON requests on stdin, responses
// and push notifications on stdout.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"

	"github.com/promptdeck/engine/pkg/types"
)

// Handler is one JSON-RPC method implementation.
type Handler func(session *Session, params json.RawMessage) (any, *types.RPCError)

// maxFrameBytes bounds one NDJSON line; large datasets and result payloads
// must fit in a single frame.
const maxFrameBytes = 10 * 1024 * 1024

// Server reads NDJSON requests from in and writes NDJSON frames to out.
// Responses and notifications share one writer mutex so frames never
// interleave.
type Server struct {
	reader        *bufio.Scanner
	writer        *bufio.Writer
	mu            sync.Mutex // protects writer
	session       *Session
	handlers      map[string]Handler
	logger        *slog.Logger
	maxConcurrent int
	semaphore     chan struct{}
}

// New creates a sequential Server reading from in and writing to out.
func New(in io.Reader, out io.Writer, logger *slog.Logger) *Server {
	return NewWithConcurrency(in, out, logger, 1)
}

// NewWithConcurrency creates a Server dispatching up to maxConcurrent
// requests at once. maxConcurrent <= 1 means strictly sequential handling.
func NewWithConcurrency(in io.Reader, out io.Writer, logger *slog.Logger, maxConcurrent int) *Server {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, maxFrameBytes), maxFrameBytes)

	return &Server{
		reader:        scanner,
		writer:        bufio.NewWriter(out),
		session:       NewSession(),
		handlers:      make(map[string]Handler),
		logger:        logger,
		maxConcurrent: maxConcurrent,
		semaphore:     make(chan struct{}, maxConcurrent),
	}
}

// Session exposes the connection state, mainly for tests.
func (s *Server) Session() *Session { return s.session }

// RegisterHandler installs h for the given method name.
func (s *Server) RegisterHandler(method string, h Handler) {
	s.handlers[method] = h
}

// Run consumes request lines until stdin closes, the context is canceled,
// or a shutdown request lands.
func (s *Server) Run(ctx context.Context) error {
	lines := make(chan []byte)
	scanErr := make(chan error, 1)

	go func() {
		for s.reader.Scan() {
			line := make([]byte, len(s.reader.Bytes()))
			copy(line, s.reader.Bytes())
			lines <- line
		}
		if err := s.reader.Err(); err != nil {
			scanErr <- err
		}
		close(lines)
	}()

	dispatchOne := func(line []byte) {
		s.semaphore <- struct{}{}
		handle := func() {
			defer func() { <-s.semaphore }()
			s.writeResponse(s.dispatch(line))
		}
		if s.maxConcurrent > 1 {
			go handle()
		} else {
			handle()
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-scanErr:
			return err
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			dispatchOne(line)
			if s.session.State() == StateShuttingDown {
				return nil
			}
		}
	}
}

// dispatch parses one request line and routes it to its handler.
func (s *Server) dispatch(line []byte) *types.Response {
	var req types.Request
	if err := json.Unmarshal(line, &req); err != nil {
		s.logger.Error("parse error", "err", err)
		return types.NewErrorResponse(0, &types.RPCError{
			Code:    -32700,
			Message: "parse error",
			Data: &types.ErrorData{
				ErrorType: "PARSE_ERROR",
				Retryable: false,
				Detail:    err.Error(),
			},
		})
	}

	if req.JSONRPC != "2.0" || req.Method == "" {
		s.logger.Error("invalid request", "method", req.Method)
		return types.NewErrorResponse(req.ID, &types.RPCError{
			Code:    -32600,
			Message: "invalid request",
			Data: &types.ErrorData{
				ErrorType: "INVALID_REQUEST",
				Retryable: false,
				Detail:    "jsonrpc must be \"2.0\" and method must be non-empty",
			},
		})
	}

	h, ok := s.handlers[req.Method]
	if !ok {
		s.logger.Warn("method not found", "method", req.Method)
		return types.NewErrorResponse(req.ID, &types.RPCError{
			Code:    -32601,
			Message: "method not found",
			Data: &types.ErrorData{
				ErrorType: "METHOD_NOT_FOUND",
				Retryable: false,
				Detail:    "unknown method: " + req.Method,
			},
		})
	}

	result, rpcErr := h(s.session, req.Params)
	if rpcErr != nil {
		return types.NewErrorResponse(req.ID, rpcErr)
	}

	resp, err := types.NewSuccessResponse(req.ID, result)
	if err != nil {
		s.logger.Error("failed to marshal result", "method", req.Method, "err", err)
		return types.NewErrorResponse(req.ID, types.NewRPCError(
			types.ErrEngineError,
			"failed to marshal result",
			types.ErrTypeEngineError,
			false,
			err.Error(),
		))
	}
	return resp
}

// writeResponse serializes one response as a compact JSON line.
func (s *Server) writeResponse(resp *types.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("failed to marshal response", "err", err)
		return
	}
	s.writeFrame(data)
}

// Notify pushes a JSON-RPC notification. Run goroutines use this for log,
// progress, and terminal run events.
func (s *Server) Notify(method string, params any) {
	data, err := json.Marshal(&types.Notification{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
	})
	if err != nil {
		s.logger.Error("failed to marshal notification", "method", method, "err", err)
		return
	}
	s.writeFrame(data)
}

func (s *Server) writeFrame(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.writer.Write(data)
	_ = s.writer.WriteByte('\n')
	_ = s.writer.Flush()
}
