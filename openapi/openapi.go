// Package openapi derives a tool set from an OpenAPI v3 document. Each
// operation becomes one tool whose invocation performs the corresponding
// HTTP request against the upstream API.
package openapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/pb33f/libopenapi"
	"github.com/pb33f/libopenapi/datamodel/high/base"
	v3 "github.com/pb33f/libopenapi/datamodel/high/v3"

	"github.com/Sushiba2ker/google-workspace-mcp/tools"
)

// Source builds tool definitions from an OpenAPI v3 document. It implements
// tools.Source and is consulted once at startup; a build failure there must
// abort startup rather than degrade to an empty registry.
type Source struct {
	doc     libopenapi.Document
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// Option configures a Source
type Option func(*Source)

// WithClient sets the HTTP client used for upstream calls
func WithClient(client *http.Client) Option {
	return func(s *Source) {
		s.client = client
	}
}

// WithBaseURL overrides the upstream base URL instead of taking it from the
// document's servers
func WithBaseURL(baseURL string) Option {
	return func(s *Source) {
		s.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithLogger sets the logger for upstream call events
func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) {
		s.logger = logger
	}
}

// New parses an OpenAPI specification document
func New(specData []byte, opts ...Option) (*Source, error) {
	doc, err := libopenapi.NewDocument(specData)
	if err != nil {
		return nil, fmt.Errorf("parsing OpenAPI spec: %w", err)
	}

	s := &Source{
		doc:    doc,
		client: http.DefaultClient,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Tools walks the document and returns one definition per operation.
func (s *Source) Tools(ctx context.Context) ([]tools.Definition, error) {
	model, errs := s.doc.BuildV3Model()
	if errs != nil {
		return nil, fmt.Errorf("building OpenAPI model: %v", errs)
	}

	baseURL := s.baseURL
	if baseURL == "" {
		if len(model.Model.Servers) == 0 || model.Model.Servers[0].URL == "" {
			return nil, fmt.Errorf("no server URL in spec; set one with WithBaseURL")
		}
		baseURL = strings.TrimSuffix(model.Model.Servers[0].URL, "/")
	}

	var defs []tools.Definition
	for pair := model.Model.Paths.PathItems.First(); pair != nil; pair = pair.Next() {
		path := pair.Key()
		pathItem := pair.Value()
		if pathItem.Get != nil {
			defs = append(defs, s.definition(http.MethodGet, path, baseURL, pathItem.Get))
		}
		if pathItem.Post != nil {
			defs = append(defs, s.definition(http.MethodPost, path, baseURL, pathItem.Post))
		}
		if pathItem.Put != nil {
			defs = append(defs, s.definition(http.MethodPut, path, baseURL, pathItem.Put))
		}
		if pathItem.Delete != nil {
			defs = append(defs, s.definition(http.MethodDelete, path, baseURL, pathItem.Delete))
		}
		if pathItem.Patch != nil {
			defs = append(defs, s.definition(http.MethodPatch, path, baseURL, pathItem.Patch))
		}
	}
	return defs, nil
}

// definition converts one operation into a tool definition. The tool name is
// the operationId when present, "METHOD /path" otherwise.
func (s *Source) definition(method, path, baseURL string, operation *v3.Operation) tools.Definition {
	name := operation.OperationId
	if name == "" {
		name = fmt.Sprintf("%s %s", method, path)
	}

	description := operation.Description
	if description == "" {
		description = operation.Summary
	}

	var params []tools.Param
	var pathParams, queryParams, bodyParams []string

	for _, param := range operation.Parameters {
		p := tools.Param{
			Name:        param.Name,
			Type:        schemaParamType(param.Schema),
			Description: param.Description,
		}
		switch param.In {
		case "path":
			pathParams = append(pathParams, param.Name)
		case "query":
			queryParams = append(queryParams, param.Name)
		default:
			continue
		}
		params = append(params, p)
	}

	if operation.RequestBody != nil && operation.RequestBody.Content != nil {
		if mediaType, ok := operation.RequestBody.Content.Get("application/json"); ok && mediaType != nil && mediaType.Schema != nil {
			if schema := mediaType.Schema.Schema(); schema != nil && schema.Properties != nil {
				for pair := schema.Properties.First(); pair != nil; pair = pair.Next() {
					propName := pair.Key()
					p := tools.Param{
						Name: propName,
						Type: tools.TypeString,
					}
					if inner := pair.Value().Schema(); inner != nil {
						if len(inner.Type) > 0 {
							p.Type = mapType(inner.Type[0])
						}
						p.Description = inner.Description
					}
					bodyParams = append(bodyParams, propName)
					params = append(params, p)
				}
			}
		}
	}

	return tools.Definition{
		Name:        name,
		Description: description,
		Params:      params,
		CallContext: s.invoker(method, path, baseURL, pathParams, queryParams, bodyParams),
	}
}

// invoker builds the tool implementation: substitute path parameters, encode
// query parameters, marshal remaining arguments as the JSON body for
// mutating methods, and decode the upstream response.
func (s *Source) invoker(method, path, baseURL string, pathParams, queryParams, bodyParams []string) tools.FuncContext {
	return func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		target := path
		for _, name := range pathParams {
			v, ok := args[name]
			if !ok {
				return nil, fmt.Errorf("missing required path parameter %q", name)
			}
			target = strings.ReplaceAll(target, "{"+name+"}", url.PathEscape(fmt.Sprint(v)))
		}

		query := url.Values{}
		for _, name := range queryParams {
			if v, ok := args[name]; ok {
				query.Set(name, fmt.Sprint(v))
			}
		}

		var body io.Reader
		if method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch {
			payload := make(map[string]interface{})
			for _, name := range bodyParams {
				if v, ok := args[name]; ok {
					payload[name] = v
				}
			}
			if len(payload) > 0 {
				data, err := json.Marshal(payload)
				if err != nil {
					return nil, fmt.Errorf("encoding request body: %w", err)
				}
				body = bytes.NewReader(data)
			}
		}

		requestURL := baseURL + target
		if encoded := query.Encode(); encoded != "" {
			requestURL += "?" + encoded
		}

		req, err := http.NewRequestWithContext(ctx, method, requestURL, body)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		s.logger.Debug("calling upstream", "method", method, "url", requestURL)

		resp, err := s.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("calling upstream: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("reading response: %w", err)
		}

		if resp.StatusCode >= http.StatusBadRequest {
			return nil, fmt.Errorf("upstream returned %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
		}

		var result interface{}
		if err := json.Unmarshal(respBody, &result); err != nil {
			return string(respBody), nil
		}
		return result, nil
	}
}

func schemaParamType(proxy *base.SchemaProxy) string {
	if proxy == nil {
		return tools.TypeString
	}
	schema := proxy.Schema()
	if schema == nil || len(schema.Type) == 0 {
		return tools.TypeString
	}
	return mapType(schema.Type[0])
}

// mapType narrows OpenAPI schema types to the advertised primitive family;
// everything unrecognized degrades to string.
func mapType(t string) string {
	switch t {
	case "integer":
		return tools.TypeInteger
	case "boolean":
		return tools.TypeBoolean
	case "array":
		return tools.TypeArray
	default:
		return tools.TypeString
	}
}
