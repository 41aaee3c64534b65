package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/Sushiba2ker/google-workspace-mcp/jsonrpc"
	"github.com/Sushiba2ker/google-workspace-mcp/session"
	"github.com/Sushiba2ker/google-workspace-mcp/tools"
)

// Server is the protocol dispatcher. It validates JSON-RPC envelopes,
// resolves sessions, routes methods, and builds response envelopes. It holds
// no per-request state; the session id for a call travels in the request
// context.
type Server struct {
	registry *tools.Registry
	sessions *session.Store
	logger   *slog.Logger
	info     ServerInfo
	version  string
	service  interface{}
}

// ServerOption configures a Server
type ServerOption func(*Server)

// WithRegistry sets the tool registry consulted for tools/list and
// tools/call. Required.
func WithRegistry(registry *tools.Registry) ServerOption {
	return func(s *Server) {
		s.registry = registry
	}
}

// WithSessions sets the session store. Required.
func WithSessions(store *session.Store) ServerOption {
	return func(s *Server) {
		s.sessions = store
	}
}

// WithLogger sets the logger for dispatch events and internal failures
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithServerInfo sets the static server identity advertised on initialize
func WithServerInfo(name, version string) ServerOption {
	return func(s *Server) {
		s.info = ServerInfo{Name: name, Version: version}
	}
}

// WithService sets the pre-authenticated service handle injected into tools
// that declare the reserved service parameter. The dispatcher never inspects
// it.
func WithService(service interface{}) ServerOption {
	return func(s *Server) {
		s.service = service
	}
}

// NewServer creates a new dispatcher
func NewServer(opts ...ServerOption) (*Server, error) {
	s := &Server{
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		info:    ServerInfo{Name: "google_workspace", Version: "1.12.0"},
		version: Version,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.registry == nil {
		return nil, errors.New("tool registry is required")
	}
	if s.sessions == nil {
		return nil, errors.New("session store is required")
	}
	return s, nil
}

var _ jsonrpc.Handler = (*Server)(nil)

// Handle processes a single JSON-RPC request and returns a response. Any
// fault raised while handling is caught here and converted into an internal
// error envelope; nothing propagates to the transport.
func (s *Server) Handle(ctx context.Context, request jsonrpc.Request) (response jsonrpc.Response) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic during dispatch", "method", request.Method, "panic", r)
			response = jsonrpc.NewErrorResponse(request.ID,
				jsonrpc.NewError(jsonrpc.ErrInternal, fmt.Sprintf("%v", r)))
		}
	}()

	if request.Version != jsonrpc.Version {
		return jsonrpc.NewErrorResponse(request.ID,
			jsonrpc.Errorf(jsonrpc.ErrInvalidRequest, "Invalid Request: not a valid JSON-RPC 2.0 request"))
	}
	if request.Method == "" {
		return jsonrpc.NewErrorResponse(request.ID,
			jsonrpc.Errorf(jsonrpc.ErrInvalidRequest, "Invalid Request: missing method"))
	}

	s.logger.Debug("dispatching request",
		"method", request.Method,
		"session_id", SessionIDFromContext(ctx),
	)

	switch request.Method {
	case "initialize":
		return s.handleInitialize(ctx, request)
	case "tools/list":
		return s.handleToolsList(request)
	case "resources/list":
		return jsonrpc.NewResponse(request.ID, ListResourcesResult{Resources: []Resource{}})
	case "prompts/list":
		return jsonrpc.NewResponse(request.ID, ListPromptsResult{Prompts: []Prompt{}})
	case "tools/call":
		return s.handleToolsCall(ctx, request)
	default:
		return jsonrpc.NewErrorResponse(request.ID,
			jsonrpc.Errorf(jsonrpc.ErrMethodNotFound, "Method not found: %s", request.Method))
	}
}

// handleInitialize resolves or creates the session named by the transport
// token, records the client's payloads on it, and returns the static
// protocol identity. An expired client-supplied id is silently healed by
// recreating the session under the same id.
func (s *Server) handleInitialize(ctx context.Context, request jsonrpc.Request) jsonrpc.Response {
	var params InitializeParams
	if len(request.Params) > 0 {
		if err := json.Unmarshal(request.Params, &params); err != nil {
			return jsonrpc.NewErrorResponse(request.ID,
				jsonrpc.NewError(jsonrpc.ErrInvalidParams, err.Error()))
		}
	}

	sess := s.sessions.GetOrCreate(SessionIDFromContext(ctx))
	if !s.sessions.Initialize(sess.ID, params.ClientInfo, params.Capabilities) {
		return jsonrpc.NewErrorResponse(request.ID,
			jsonrpc.Errorf(jsonrpc.ErrInvalidRequest, "Invalid Request: session could not be initialized"))
	}

	result := InitializeResult{
		ProtocolVersion: s.version,
		Capabilities:    defaultCapabilities(),
		ServerInfo:      s.info,
	}
	return jsonrpc.NewResponse(request.ID, result)
}

func (s *Server) handleToolsList(request jsonrpc.Request) jsonrpc.Response {
	defs := s.registry.List()
	list := make([]Tool, 0, len(defs))
	for _, def := range defs {
		list = append(list, Tool{
			Name:        def.Name,
			Description: def.Summary(),
			InputSchema: def.InputSchema(),
		})
	}
	return jsonrpc.NewResponse(request.ID, ToolsListResult{Tools: list})
}

func (s *Server) handleToolsCall(ctx context.Context, request jsonrpc.Request) jsonrpc.Response {
	var params ToolCallParams
	if len(request.Params) > 0 {
		if err := json.Unmarshal(request.Params, &params); err != nil {
			return jsonrpc.NewErrorResponse(request.ID,
				jsonrpc.NewError(jsonrpc.ErrInvalidParams, err.Error()))
		}
	}
	if params.Name == "" {
		return jsonrpc.NewErrorResponse(request.ID,
			jsonrpc.Errorf(jsonrpc.ErrInvalidParams, "Invalid params: missing tool name"))
	}

	def, ok := s.registry.Resolve(params.Name)
	if !ok {
		return jsonrpc.NewErrorResponse(request.ID,
			jsonrpc.Errorf(jsonrpc.ErrMethodNotFound, "Method not found: tool %q not found", params.Name))
	}

	args := s.bindArguments(ctx, def, params.Arguments)

	result, err := def.Invoke(ctx, args)
	if err != nil {
		s.logger.Error("tool call failed", "tool", def.Name, "error", err)
		return jsonrpc.NewErrorResponse(request.ID,
			jsonrpc.NewError(jsonrpc.ErrInternal, err.Error()))
	}

	return jsonrpc.NewResponse(request.ID, ToolCallResult{
		Content: []Content{NewTextContent(stringify(result))},
	})
}

// bindArguments builds a tool's argument set: client-supplied value if
// present, else the declared default, else omitted. The reserved parameters
// are filled by the dispatcher and never read from client arguments;
// requiredness of everything else is enforced by the tool itself.
func (s *Server) bindArguments(ctx context.Context, def tools.Definition, supplied map[string]interface{}) map[string]interface{} {
	args := make(map[string]interface{})
	for _, p := range def.Params {
		switch p.Name {
		case tools.ParamSessionID:
			if id := SessionIDFromContext(ctx); id != "" {
				args[p.Name] = id
			}
		case tools.ParamService:
			if s.service != nil {
				args[p.Name] = s.service
			}
		default:
			if v, ok := supplied[p.Name]; ok {
				args[p.Name] = v
			} else if p.Default != nil {
				args[p.Name] = p.Default
			}
		}
	}
	return args
}

// stringify renders a tool result as the text of a content block. Strings
// pass through verbatim; anything else is JSON-encoded.
func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		if data, err := json.Marshal(v); err == nil {
			return string(data)
		}
		return fmt.Sprintf("%v", v)
	}
}
