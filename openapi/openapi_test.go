package openapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sushiba2ker/google-workspace-mcp/tools"
)

const testSpec = `{
  "openapi": "3.0.0",
  "info": {"title": "Pet Store", "version": "1.0.0"},
  "paths": {
    "/pets": {
      "get": {
        "operationId": "listPets",
        "summary": "List pets",
        "description": "Lists pets with optional filtering.",
        "parameters": [
          {"name": "limit", "in": "query", "description": "max results", "schema": {"type": "integer"}},
          {"name": "type", "in": "query", "schema": {"type": "string"}},
          {"name": "X-Trace", "in": "header", "schema": {"type": "string"}}
        ],
        "responses": {"200": {"description": "OK"}}
      },
      "post": {
        "operationId": "createPet",
        "summary": "Create a pet",
        "requestBody": {
          "content": {
            "application/json": {
              "schema": {
                "type": "object",
                "properties": {
                  "name": {"type": "string", "description": "pet name"},
                  "age": {"type": "integer"}
                }
              }
            }
          }
        },
        "responses": {"201": {"description": "Created"}}
      }
    },
    "/pets/{petId}": {
      "get": {
        "operationId": "getPet",
        "summary": "Get a pet by id",
        "parameters": [
          {"name": "petId", "in": "path", "required": true, "schema": {"type": "integer"}}
        ],
        "responses": {"200": {"description": "OK"}}
      }
    },
    "/health": {
      "get": {
        "summary": "Health check",
        "responses": {"200": {"description": "OK"}}
      }
    }
  }
}`

func newTestSource(t *testing.T, baseURL string) []tools.Definition {
	t.Helper()

	source, err := New([]byte(testSpec), WithBaseURL(baseURL))
	require.NoError(t, err)

	defs, err := source.Tools(context.Background())
	require.NoError(t, err)
	return defs
}

func defByName(t *testing.T, defs []tools.Definition, name string) tools.Definition {
	t.Helper()
	for _, def := range defs {
		if def.Name == name {
			return def
		}
	}
	t.Fatalf("no definition named %q", name)
	return tools.Definition{}
}

func TestNewRejectsInvalidSpec(t *testing.T) {
	_, err := New([]byte("not an openapi document"))
	assert.Error(t, err)
}

func TestToolsRequiresBaseURL(t *testing.T) {
	source, err := New([]byte(testSpec))
	require.NoError(t, err)

	_, err = source.Tools(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no server URL")
}

func TestToolsFromDocument(t *testing.T) {
	defs := newTestSource(t, "http://example.com")
	require.Len(t, defs, 4)

	names := make([]string, 0, len(defs))
	for _, def := range defs {
		names = append(names, def.Name)
	}
	assert.Equal(t, []string{"listPets", "createPet", "getPet", "GET /health"}, names)

	list := defByName(t, defs, "listPets")
	assert.Equal(t, "Lists pets with optional filtering.", list.Description)
	require.Len(t, list.Params, 2, "header parameters are not exposed")
	assert.Equal(t, "limit", list.Params[0].Name)
	assert.Equal(t, tools.TypeInteger, list.Params[0].Type)
	assert.Equal(t, "max results", list.Params[0].Description)
	assert.Equal(t, "type", list.Params[1].Name)
	assert.Equal(t, tools.TypeString, list.Params[1].Type)

	create := defByName(t, defs, "createPet")
	assert.Equal(t, "Create a pet", create.Description)
	require.Len(t, create.Params, 2)
	assert.Equal(t, "name", create.Params[0].Name)
	assert.Equal(t, tools.TypeString, create.Params[0].Type)
	assert.Equal(t, "pet name", create.Params[0].Description)
	assert.Equal(t, "age", create.Params[1].Name)
	assert.Equal(t, tools.TypeInteger, create.Params[1].Type)

	get := defByName(t, defs, "getPet")
	require.Len(t, get.Params, 1)
	assert.Equal(t, "petId", get.Params[0].Name)
	assert.Equal(t, tools.TypeInteger, get.Params[0].Type)
}

func TestDefinitionsLoadIntoRegistry(t *testing.T) {
	source, err := New([]byte(testSpec), WithBaseURL("http://example.com"))
	require.NoError(t, err)

	registry := tools.NewRegistry()
	require.NoError(t, registry.Load(context.Background(), source))
	assert.Equal(t, 4, registry.Len())
}

func TestInvokeGetWithQuery(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/pets", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		assert.Equal(t, "dog", r.URL.Query().Get("type"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]map[string]interface{}{{"name": "rex"}})
	}))
	defer upstream.Close()

	defs := newTestSource(t, upstream.URL)
	result, err := defByName(t, defs, "listPets").Invoke(context.Background(), map[string]interface{}{
		"limit": 5,
		"type":  "dog",
	})
	require.NoError(t, err)

	pets, ok := result.([]interface{})
	require.True(t, ok)
	require.Len(t, pets, 1)
	assert.Equal(t, "rex", pets[0].(map[string]interface{})["name"])
}

func TestInvokeOmitsUnsetQueryParams(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.False(t, r.URL.Query().Has("limit"))
		assert.False(t, r.URL.Query().Has("type"))
		w.Write([]byte(`[]`))
	}))
	defer upstream.Close()

	defs := newTestSource(t, upstream.URL)
	_, err := defByName(t, defs, "listPets").Invoke(context.Background(), nil)
	require.NoError(t, err)
}

func TestInvokePostWithBody(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "rex", payload["name"])
		assert.Equal(t, float64(3), payload["age"])

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{"id": 1, "name": "rex"})
	}))
	defer upstream.Close()

	defs := newTestSource(t, upstream.URL)
	result, err := defByName(t, defs, "createPet").Invoke(context.Background(), map[string]interface{}{
		"name": "rex",
		"age":  3,
	})
	require.NoError(t, err)

	created, ok := result.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), created["id"])
}

func TestInvokeSubstitutesPathParams(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pets/7", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{"id": 7})
	}))
	defer upstream.Close()

	defs := newTestSource(t, upstream.URL)
	_, err := defByName(t, defs, "getPet").Invoke(context.Background(), map[string]interface{}{
		"petId": 7,
	})
	require.NoError(t, err)
}

func TestInvokeMissingPathParam(t *testing.T) {
	defs := newTestSource(t, "http://example.com")

	_, err := defByName(t, defs, "getPet").Invoke(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "petId")
}

func TestInvokeUpstreamError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "pet not found", http.StatusNotFound)
	}))
	defer upstream.Close()

	defs := newTestSource(t, upstream.URL)
	_, err := defByName(t, defs, "getPet").Invoke(context.Background(), map[string]interface{}{
		"petId": 99,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "pet not found")
}

func TestInvokeNonJSONResponse(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("plain text response"))
	}))
	defer upstream.Close()

	defs := newTestSource(t, upstream.URL)
	result, err := defByName(t, defs, "GET /health").Invoke(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "plain text response", result)
}
