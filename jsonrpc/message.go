package jsonrpc

import (
	"bytes"
	"encoding/json"
)

// Version is the JSON-RPC protocol version
const Version = "2.0"

// Request represents a JSON-RPC request object.
//
// The id is kept as raw JSON so that any scalar the client sent (string,
// number, or null) is echoed back verbatim in the response.
type Request struct {
	Version string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

// NewRequest creates a new Request object
func NewRequest(method string, params json.RawMessage, id json.RawMessage) Request {
	return Request{
		Version: Version,
		Method:  method,
		Params:  params,
		ID:      id,
	}
}

// Response represents a JSON-RPC response object. Exactly one of Result or
// Error is set. A nil ID marshals as null, which is what the spec requires
// when the request id could not be determined.
type Response struct {
	Version string          `json:"jsonrpc"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

// NewResponse creates a success response carrying the given result
func NewResponse(id json.RawMessage, result interface{}) Response {
	return Response{
		Version: Version,
		Result:  result,
		ID:      id,
	}
}

// NewErrorResponse creates an error response carrying the given error
func NewErrorResponse(id json.RawMessage, err *Error) Response {
	return Response{
		Version: Version,
		Error:   err,
		ID:      id,
	}
}

// Parse decodes a raw message into a Request. It distinguishes unreadable
// input (Parse error) from well-formed JSON that is not a request object
// (Invalid Request); validation of the jsonrpc version and method fields is
// left to the handler.
func Parse(data []byte) (Request, *Error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Request{}, Errorf(ErrParse, "Parse error: empty request")
	}

	var request Request
	if err := json.Unmarshal(data, &request); err != nil {
		if json.Valid(data) {
			return Request{}, Errorf(ErrInvalidRequest, "Invalid Request: not a JSON-RPC request object")
		}
		return Request{}, NewError(ErrParse, err.Error())
	}
	return request, nil
}
