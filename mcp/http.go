package mcp

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/Sushiba2ker/google-workspace-mcp/jsonrpc"
)

// SessionHeader is the HTTP header carrying the opaque session token. The
// server reads it on every request and writes it back on initialize
// responses to establish session continuity.
const SessionHeader = "Mcp-Session-Id"

// MaxRequestBodySize is the maximum allowed size for request bodies (1MB).
const MaxRequestBodySize = 1 << 20

// RegisterRoutes registers the JSON-RPC endpoint and the debug surface on
// the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/mcp", s.handleHTTP)
	mux.HandleFunc("/debug/tools", s.handleDebugTools)
}

// handleHTTP is the HTTP binding of the dispatcher: one JSON-RPC exchange
// per POST.
func (s *Server) handleHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize+1))
	if err != nil {
		writeResponse(w, jsonrpc.NewErrorResponse(nil,
			jsonrpc.Errorf(jsonrpc.ErrParse, "Parse error: failed to read request body")))
		return
	}
	if len(body) > MaxRequestBodySize {
		writeResponse(w, jsonrpc.NewErrorResponse(nil,
			jsonrpc.Errorf(jsonrpc.ErrInvalidRequest, "Invalid Request: request body too large")))
		return
	}

	sessionID := r.Header.Get(SessionHeader)
	if sessionID == "" {
		sessionID = s.sessions.GetOrCreate("").ID
	}
	ctx := WithSessionID(r.Context(), sessionID)

	request, perr := jsonrpc.Parse(body)
	if perr != nil {
		writeResponse(w, jsonrpc.NewErrorResponse(nil, perr))
		return
	}

	response := s.Handle(ctx, request)

	// Echo the session token so the client can carry it on subsequent calls
	if request.Method == "initialize" && response.Error == nil {
		w.Header().Set(SessionHeader, sessionID)
	}
	writeResponse(w, response)
}

// handleDebugTools enumerates registered tools and session counts. This is
// an operability surface, not part of the JSON-RPC contract.
func (s *Server) handleDebugTools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	info := map[string]interface{}{
		"tools_count":   s.registry.Len(),
		"tools":         s.registry.Names(),
		"session_count": s.sessions.Count(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(info); err != nil {
		s.logger.Error("failed to encode debug info", "error", err)
	}
}

// writeResponse writes a JSON-RPC response with the HTTP status implied by
// its error code: 400 for client-malformed input, 404 for not found, 500
// for internal errors, 200 otherwise.
func writeResponse(w http.ResponseWriter, response jsonrpc.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus(response))
	json.NewEncoder(w).Encode(response)
}

func httpStatus(response jsonrpc.Response) int {
	if response.Error == nil {
		return http.StatusOK
	}
	switch response.Error.Code {
	case jsonrpc.ErrParse, jsonrpc.ErrInvalidRequest, jsonrpc.ErrInvalidParams:
		return http.StatusBadRequest
	case jsonrpc.ErrMethodNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
