package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"agentsuite/internal/logging"
	"agentsuite/internal/memory"
	"agentsuite/internal/protocol"
)

// Server speaks JSON-RPC 2.0 over newline-delimited messages, one request
// per line. Responses are written in request order.
type Server struct {
	registry *protocol.Registry
	executor *protocol.Executor
	bank     *memory.Bank

	name    string
	version string

	mu  sync.Mutex // guards out
	out io.Writer
}

// NewServer creates an MCP server over the given engine components.
func NewServer(registry *protocol.Registry, executor *protocol.Executor, bank *memory.Bank, name, version string) *Server {
	return &Server{
		registry: registry,
		executor: executor,
		bank:     bank,
		name:     name,
		version:  version,
	}
}

// Serve reads requests from r until EOF or context cancellation and writes
// responses to w. Notifications (requests without an id) get no response.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	s.mu.Lock()
	s.out = w
	s.mu.Unlock()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req rpcRequest
		if err := json.Unmarshal(line, &req); err != nil {
			logging.MCPDebug("unparseable request: %v", err)
			s.writeError(nil, codeParseError, "parse error")
			continue
		}

		s.dispatch(ctx, &req)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read request stream: %w", err)
	}
	return nil
}

func (s *Server) dispatch(ctx context.Context, req *rpcRequest) {
	logging.MCPDebug("request: method=%s", req.Method)

	// Notifications carry no id and expect no response.
	if len(req.ID) == 0 || string(req.ID) == "null" {
		return
	}

	switch req.Method {
	case "initialize":
		s.writeResult(req.ID, map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities": map[string]any{
				"tools": map[string]any{},
			},
			"serverInfo": map[string]string{
				"name":    s.name,
				"version": s.version,
			},
		})
	case "ping":
		s.writeResult(req.ID, map[string]any{})
	case "tools/list":
		s.writeResult(req.ID, map[string]any{"tools": s.toolSchemas()})
	case "tools/call":
		s.handleToolCall(ctx, req)
	default:
		s.writeError(req.ID, codeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

func (s *Server) handleToolCall(ctx context.Context, req *rpcRequest) {
	var params struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.writeError(req.ID, codeInvalidParams, "invalid tools/call params")
		return
	}

	result, err := s.callTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.writeError(req.ID, codeInternalError, err.Error())
		return
	}
	s.writeResult(req.ID, result)
}

func (s *Server) writeResult(id json.RawMessage, result any) {
	s.write(&rpcResponse{JSONRPC: "2.0", ID: id, Result: result})
}

func (s *Server) writeError(id json.RawMessage, code int, message string) {
	if id == nil {
		id = json.RawMessage("null")
	}
	s.write(&rpcResponse{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: message}})
}

func (s *Server) write(resp *rpcResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		logging.Get(logging.CategoryMCP).Error("failed to marshal response: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.out.Write(append(data, '\n')); err != nil {
		logging.Get(logging.CategoryMCP).Error("failed to write response: %v", err)
	}
}
