package mcp

import (
	"github.com/google/jsonschema-go/jsonschema"
)

// Version is the Model Context Protocol version advertised in initialize
// responses.
const Version = "2024-11-05"

// Content represents one content block in a tool result
type Content struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// NewTextContent creates a text content block
func NewTextContent(text string) Content {
	return Content{
		Type: "text",
		Text: text,
	}
}

// Initialize
type (
	// ServerCapabilities represents the server's supported capabilities
	ServerCapabilities struct {
		Experimental map[string]interface{} `json:"experimental"`
		Prompts      *struct {
			ListChanged bool `json:"listChanged"`
		} `json:"prompts,omitempty"`
		Resources *struct {
			Subscribe   bool `json:"subscribe"`
			ListChanged bool `json:"listChanged"`
		} `json:"resources,omitempty"`
		Tools *struct {
			ListChanged bool `json:"listChanged"`
		} `json:"tools,omitempty"`
	}

	// ServerInfo represents static identity metadata about the server
	ServerInfo struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	}

	// InitializeParams are the params of an initialize request. Both
	// payloads are stored on the session verbatim.
	InitializeParams struct {
		ClientInfo   map[string]interface{} `json:"clientInfo"`
		Capabilities map[string]interface{} `json:"capabilities"`
	}

	// InitializeResult is the result of a successful initialize request
	InitializeResult struct {
		ProtocolVersion string             `json:"protocolVersion"`
		Capabilities    ServerCapabilities `json:"capabilities"`
		ServerInfo      ServerInfo         `json:"serverInfo"`
	}
)

// Tools
type (
	// Tool represents a single tool in the tools/list response
	Tool struct {
		Name        string             `json:"name"`
		Description string             `json:"description,omitempty"`
		InputSchema *jsonschema.Schema `json:"inputSchema"`
	}

	// ToolsListResult is the result of the tools/list method
	ToolsListResult struct {
		Tools []Tool `json:"tools"`
	}

	// ToolCallParams are the params of the tools/call method
	ToolCallParams struct {
		Name      string                 `json:"name"`
		Arguments map[string]interface{} `json:"arguments,omitempty"`
	}

	// ToolCallResult is the result of a successful tool call
	ToolCallResult struct {
		Content []Content `json:"content"`
		IsError bool      `json:"isError,omitempty"`
	}
)

// Resources
type (
	// Resource represents a known resource the server can read
	Resource struct {
		URI         string `json:"uri"`
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
		MimeType    string `json:"mimeType,omitempty"`
	}

	// ListResourcesResult is the result of the resources/list method
	ListResourcesResult struct {
		Resources []Resource `json:"resources"`
	}
)

// Prompts
type (
	// PromptArgument represents an argument for a prompt
	PromptArgument struct {
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
		Required    bool   `json:"required,omitempty"`
	}

	// Prompt represents a prompt or prompt template
	Prompt struct {
		Name        string           `json:"name"`
		Description string           `json:"description,omitempty"`
		Arguments   []PromptArgument `json:"arguments,omitempty"`
	}

	// ListPromptsResult is the result of the prompts/list method
	ListPromptsResult struct {
		Prompts []Prompt `json:"prompts"`
	}
)

// defaultCapabilities advertises tools, resources, and prompts support with
// no list-change notifications and no resource subscriptions.
func defaultCapabilities() ServerCapabilities {
	return ServerCapabilities{
		Experimental: map[string]interface{}{},
		Prompts: &struct {
			ListChanged bool `json:"listChanged"`
		}{},
		Resources: &struct {
			Subscribe   bool `json:"subscribe"`
			ListChanged bool `json:"listChanged"`
		}{},
		Tools: &struct {
			ListChanged bool `json:"listChanged"`
		}{},
	}
}
