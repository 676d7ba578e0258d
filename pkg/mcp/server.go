// Package mcp exposes the control service as Model Context Protocol tools
// over newline-delimited JSON-RPC on stdio.
package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/lingoroute/lingoroute/pkg/control"
	"github.com/lingoroute/lingoroute/pkg/logging"
)

type methodFunc func(ctx context.Context, params json.RawMessage) (any, error)

// Server answers MCP requests against a control service.
type Server struct {
	svc     *control.Service
	version string
	logger  *zap.Logger
	methods map[string]methodFunc
	tools   map[string]tool
	specs   []toolSpec
}

// New creates a Server backed by svc.
func New(svc *control.Service, version string, logger *zap.Logger) *Server {
	s := &Server{
		svc:     svc,
		version: version,
		logger:  logging.OrNop(logger).Named("mcp"),
		tools:   make(map[string]tool),
	}
	s.methods = map[string]methodFunc{
		"initialize":                s.initialize,
		"notifications/initialized": func(context.Context, json.RawMessage) (any, error) { return nil, nil },
		"ping":                      func(context.Context, json.RawMessage) (any, error) { return struct{}{}, nil },
		"tools/list":                s.listTools,
		"tools/call":                s.callTool,
	}
	s.registerTools()
	return s
}

// Run serves one message per line from r until r is exhausted or ctx is
// cancelled.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	in := bufio.NewReader(r)
	enc := json.NewEncoder(w)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, readErr := in.ReadBytes('\n')
		if line = bytes.TrimSpace(line); len(line) > 0 {
			if reply := s.handle(ctx, line); reply != nil {
				if err := enc.Encode(reply); err != nil {
					return fmt.Errorf("write reply: %w", err)
				}
			}
		}
		if errors.Is(readErr, io.EOF) {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("read request: %w", readErr)
		}
	}
}

// handle processes one raw message. It returns nil when no reply is due.
func (s *Server) handle(ctx context.Context, line []byte) *Reply {
	var msg Message
	if err := json.Unmarshal(line, &msg); err != nil {
		return &Reply{Version: jsonrpcVersion, Error: faultf(codeParseError, "parse error: %v", err)}
	}
	if msg.Version != jsonrpcVersion || msg.Method == "" {
		return &Reply{Version: jsonrpcVersion, ID: msg.ID, Error: faultf(codeInvalidRequest, "invalid request: jsonrpc must be %q and method must be set", jsonrpcVersion)}
	}

	method, ok := s.methods[msg.Method]
	if !ok {
		if msg.isNotification() {
			return nil
		}
		return &Reply{Version: jsonrpcVersion, ID: msg.ID, Error: faultf(codeMethodNotFound, "method not found: %s", msg.Method)}
	}

	result, err := method(ctx, msg.Params)
	if msg.isNotification() {
		if err != nil {
			s.logger.Warn("notification failed", zap.String("method", msg.Method), zap.Error(err))
		}
		return nil
	}
	if err != nil {
		return &Reply{Version: jsonrpcVersion, ID: msg.ID, Error: s.fault(msg.Method, err)}
	}
	return &Reply{Version: jsonrpcVersion, ID: msg.ID, Result: result}
}

// fault maps a method error to its wire form. Errors that are not already
// faults are internal.
func (s *Server) fault(method string, err error) *Fault {
	var f *Fault
	if errors.As(err, &f) {
		return f
	}
	s.logger.Error("request failed", zap.String("method", method), zap.Error(err))
	return faultf(codeInternalError, "%v", err)
}

func (s *Server) initialize(context.Context, json.RawMessage) (any, error) {
	return initializeResult{
		ProtocolVersion: protocolVersion,
		ServerInfo:      implementation{Name: "lingoroute", Version: s.version},
		Capabilities:    map[string]any{"tools": map[string]any{}},
	}, nil
}

func (s *Server) listTools(context.Context, json.RawMessage) (any, error) {
	return toolsListResult{Tools: s.specs}, nil
}

func (s *Server) callTool(ctx context.Context, params json.RawMessage) (any, error) {
	var p callParams
	if err := json.Unmarshal(params, &p); err != nil || p.Name == "" {
		return nil, faultf(codeInvalidParams, "tools/call needs a tool name")
	}
	t, ok := s.tools[p.Name]
	if !ok {
		return nil, faultf(codeInvalidParams, "unknown tool: %s", p.Name)
	}
	s.logger.Debug("tool call", zap.String("tool", p.Name))
	res, err := t.call(ctx, p.Arguments)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Name, err)
	}
	return res, nil
}
