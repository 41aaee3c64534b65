package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sushiba2ker/google-workspace-mcp/jsonrpc"
)

func runTransport(t *testing.T, ctx context.Context, input string) []jsonrpc.Response {
	t.Helper()

	server, store, _ := newTestServer(t)
	ctx = WithSessionID(ctx, store.GetOrCreate("").ID)

	var out, errOut bytes.Buffer
	transport := NewStdioTransport(server, strings.NewReader(input), &out, &errOut)
	require.NoError(t, transport.Run(ctx))
	assert.Empty(t, errOut.String())

	var responses []jsonrpc.Response
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var response jsonrpc.Response
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &response))
		responses = append(responses, response)
	}
	return responses
}

func TestStdioTransportRoundTrip(t *testing.T) {
	input := `{"jsonrpc":"2.0","id":1,"method":"initialize"}
{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"echo","arguments":{"message":"hi"}}}
`
	responses := runTransport(t, context.Background(), input)
	require.Len(t, responses, 2)

	require.Nil(t, responses[0].Error)
	assert.JSONEq(t, `1`, string(responses[0].ID))

	require.Nil(t, responses[1].Error)
	assert.JSONEq(t, `2`, string(responses[1].ID))

	var result ToolCallResult
	raw, err := json.Marshal(responses[1].Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &result))
	require.Len(t, result.Content, 1)
	assert.Equal(t, "hi", result.Content[0].Text)
}

func TestStdioTransportSkipsBlankLines(t *testing.T) {
	input := "\n\n{\"jsonrpc\":\"2.0\",\"id\":1,\"method\":\"tools/list\"}\n\n"

	responses := runTransport(t, context.Background(), input)
	require.Len(t, responses, 1)
	assert.Nil(t, responses[0].Error)
}

func TestStdioTransportMalformedLine(t *testing.T) {
	input := "{not json}\n{\"jsonrpc\":\"2.0\",\"id\":2,\"method\":\"tools/list\"}\n"

	responses := runTransport(t, context.Background(), input)
	require.Len(t, responses, 2)

	require.NotNil(t, responses[0].Error)
	assert.Equal(t, jsonrpc.ErrParse, responses[0].Error.Code)
	assert.JSONEq(t, `null`, string(responses[0].ID))

	assert.Nil(t, responses[1].Error)
}

func TestStdioTransportStopsOnCancel(t *testing.T) {
	server, store, _ := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ctx = WithSessionID(ctx, store.GetOrCreate("").ID)

	var out bytes.Buffer
	transport := NewStdioTransport(server, strings.NewReader(""), &out, &out)
	assert.ErrorIs(t, transport.Run(ctx), context.Canceled)
}
