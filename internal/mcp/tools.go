package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"agentsuite/internal/memory"
	"agentsuite/internal/protocol"
)

func (s *Server) toolSchemas() []ToolSchema {
	kinds := make([]string, 0, len(memory.Kinds()))
	for _, k := range memory.Kinds() {
		kinds = append(kinds, string(k))
	}
	kindEnum, _ := json.Marshal(kinds)

	return []ToolSchema{
		{
			Name:        "list_protocols",
			Description: "List all available protocols with their phase counts and descriptions",
			InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
		},
		{
			Name:        "execute_protocol",
			Description: "Execute a protocol by name and return the full execution result",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"protocol_name": {"type": "string", "description": "Name of the protocol to execute"},
					"context": {"type": "object", "description": "Optional execution context passed through to the result"}
				},
				"required": ["protocol_name"]
			}`),
		},
		{
			Name:        "get_protocol_details",
			Description: "Get phase breakdown and content preview for one protocol",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"protocol_name": {"type": "string", "description": "Name of the protocol"}
				},
				"required": ["protocol_name"]
			}`),
		},
		{
			Name:        "get_memory_context",
			Description: "Read one memory bank context file, or all of them",
			InputSchema: json.RawMessage(fmt.Sprintf(`{
				"type": "object",
				"properties": {
					"context_type": {"type": "string", "enum": %s, "description": "Context kind; omit for all"}
				}
			}`, kindEnum)),
		},
		{
			Name:        "update_memory_context",
			Description: "Replace or append to one memory bank context file",
			InputSchema: json.RawMessage(fmt.Sprintf(`{
				"type": "object",
				"properties": {
					"context_type": {"type": "string", "enum": %s},
					"content": {"type": "string", "description": "Content that replaces the file"},
					"append": {"type": "string", "description": "Content appended to the file"}
				},
				"required": ["context_type"]
			}`, kindEnum)),
		},
		{
			Name:        "log_decision",
			Description: "Append a decision with rationale to the decision log",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"decision": {"type": "string", "description": "The decision made"},
					"rationale": {"type": "string", "description": "Why it was made"},
					"context": {"type": "object", "description": "Optional structured context"}
				},
				"required": ["decision", "rationale"]
			}`),
		},
	}
}

// callTool runs the named tool. Tool failures are reported inside the
// result payload; an error return means the request itself was malformed.
func (s *Server) callTool(ctx context.Context, name string, args map[string]any) (*toolResult, error) {
	switch name {
	case "list_protocols":
		return s.listProtocols(ctx)
	case "execute_protocol":
		return s.executeProtocol(ctx, args)
	case "get_protocol_details":
		return s.protocolDetails(ctx, args)
	case "get_memory_context":
		return s.memoryContext(args)
	case "update_memory_context":
		return s.updateMemoryContext(args)
	case "log_decision":
		return s.logDecision(args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

func (s *Server) listProtocols(ctx context.Context) (*toolResult, error) {
	summaries := s.registry.List(ctx)

	names := make([]string, 0, len(summaries))
	for name := range summaries {
		names = append(names, name)
	}
	sort.Strings(names)

	type entry struct {
		Name        string `json:"name"`
		Phases      int    `json:"phases"`
		Description string `json:"description"`
		DSLSupport  bool   `json:"dsl_support"`
	}
	entries := make([]entry, 0, len(names))
	for _, name := range names {
		sum := summaries[name]
		entries = append(entries, entry{
			Name:        sum.Name,
			Phases:      sum.Phases,
			Description: sum.Description,
			DSLSupport:  sum.DSLSupport,
		})
	}

	return jsonResult(map[string]any{
		"protocols": entries,
		"count":     len(entries),
	})
}

func (s *Server) executeProtocol(ctx context.Context, args map[string]any) (*toolResult, error) {
	name, ok := args["protocol_name"].(string)
	if !ok || strings.TrimSpace(name) == "" {
		return errorResult("protocol_name is required"), nil
	}

	var callerCtx map[string]any
	if raw, ok := args["context"].(map[string]any); ok {
		callerCtx = raw
	}

	rec, err := s.executor.Execute(ctx, name, callerCtx)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	return jsonResult(protocol.AssembleResult(rec))
}

func (s *Server) protocolDetails(ctx context.Context, args map[string]any) (*toolResult, error) {
	name, ok := args["protocol_name"].(string)
	if !ok || strings.TrimSpace(name) == "" {
		return errorResult("protocol_name is required"), nil
	}

	details, ok := s.registry.Details(ctx, name)
	if !ok {
		return errorResult(fmt.Sprintf("protocol not found: %s", name)), nil
	}

	return jsonResult(details)
}

func (s *Server) memoryContext(args map[string]any) (*toolResult, error) {
	raw, _ := args["context_type"].(string)
	if raw == "" {
		all, err := s.bank.GetAllContexts()
		if err != nil {
			return errorResult(err.Error()), nil
		}
		out := make(map[string]string, len(all))
		for kind, c := range all {
			out[string(kind)] = c.Content
		}
		return jsonResult(out)
	}

	c, err := s.bank.GetContext(memory.Kind(raw))
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return jsonResult(c)
}

func (s *Server) updateMemoryContext(args map[string]any) (*toolResult, error) {
	raw, _ := args["context_type"].(string)
	if raw == "" {
		return errorResult("context_type is required"), nil
	}

	update := memory.Update{}
	if content, ok := args["content"].(string); ok {
		update.Content = content
	}
	if app, ok := args["append"].(string); ok {
		update.Append = app
	}

	if err := s.bank.UpdateContext(memory.Kind(raw), update); err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(fmt.Sprintf("updated %s context", raw)), nil
}

func (s *Server) logDecision(args map[string]any) (*toolResult, error) {
	decision, _ := args["decision"].(string)
	rationale, _ := args["rationale"].(string)
	if strings.TrimSpace(decision) == "" || strings.TrimSpace(rationale) == "" {
		return errorResult("decision and rationale are required"), nil
	}

	var extra map[string]any
	if raw, ok := args["context"].(map[string]any); ok {
		extra = raw
	}

	if err := s.bank.LogDecision(decision, rationale, extra); err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult("decision logged"), nil
}
