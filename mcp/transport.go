package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/Sushiba2ker/google-workspace-mcp/jsonrpc"
)

// StdioTransport reads line-delimited JSON-RPC requests from an input stream
// and writes responses to an output stream. The caller is expected to bind a
// session id to the context passed to Run; every request on the stream
// shares it.
type StdioTransport struct {
	handler jsonrpc.Handler
	scanner *bufio.Scanner
	writer  *json.Encoder
	bufOut  *bufio.Writer
	errOut  io.Writer
}

// NewStdioTransport creates a new stdio transport
func NewStdioTransport(handler jsonrpc.Handler, in io.Reader, out io.Writer, errOut io.Writer) *StdioTransport {
	scanner := bufio.NewScanner(in)
	// Set a reasonable max size for each line
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	bufOut := bufio.NewWriter(out)
	return &StdioTransport{
		handler: handler,
		scanner: scanner,
		writer:  json.NewEncoder(bufOut),
		bufOut:  bufOut,
		errOut:  errOut,
	}
}

// Run starts the transport loop, reading requests until EOF or context
// cancellation
func (t *StdioTransport) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if !t.scanner.Scan() {
				if err := t.scanner.Err(); err != nil {
					return fmt.Errorf("scanner error: %w", err)
				}
				return nil
			}

			line := t.scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			request, perr := jsonrpc.Parse(line)
			var response jsonrpc.Response
			if perr != nil {
				response = jsonrpc.NewErrorResponse(nil, perr)
			} else {
				response = t.handler.Handle(ctx, request)
			}

			if err := t.writer.Encode(response); err != nil {
				fmt.Fprintf(t.errOut, "Error encoding response: %v\n", err)
			}
			t.bufOut.Flush()
		}
	}
}
