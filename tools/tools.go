// Package tools maintains the registry of invocable capabilities exposed
// over the protocol. Tools are registered with explicit declarative
// descriptors (name, typed parameters, documentation) rather than discovered
// by reflection, so the registry contents are statically verifiable.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

// Reserved parameter names. These are excluded from the externally visible
// schema and supplied by the dispatcher at call time, never by the client.
const (
	// ParamService injects a pre-authenticated service handle.
	ParamService = "service"

	// ParamSessionID injects the current session id.
	ParamSessionID = "mcp_session_id"
)

// Parameter type tags. These map to the JSON Schema primitive family
// advertised in tools/list; anything else is treated as a string.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
	TypeArray   = "array"
)

// Param describes one declared parameter of a tool.
type Param struct {
	Name        string
	Type        string
	Description string

	// Default, when non-nil, is the value bound when the client omits the
	// argument. A parameter is required iff it has no default.
	Default interface{}
}

// Required reports whether the parameter must be supplied by the client.
func (p Param) Required() bool {
	return p.Default == nil
}

// Reserved reports whether the parameter is dispatcher-injected.
func (p Param) Reserved() bool {
	return p.Name == ParamService || p.Name == ParamSessionID
}

// Func is a blocking tool implementation.
type Func func(args map[string]interface{}) (interface{}, error)

// FuncContext is a context-aware tool implementation, for tools that block
// on I/O or need cancellation.
type FuncContext func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// Definition describes one invocable capability. Exactly one of Call and
// CallContext must be set; the variant is chosen at registration time, not
// detected per call.
type Definition struct {
	Name        string
	Description string
	Params      []Param

	Call        Func
	CallContext FuncContext
}

// Invoke runs the tool with the given bound arguments.
func (d Definition) Invoke(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	if d.CallContext != nil {
		return d.CallContext(ctx, args)
	}
	return d.Call(args)
}

// Summary returns the first line of the tool's documentation.
func (d Definition) Summary() string {
	summary, _, _ := strings.Cut(strings.TrimSpace(d.Description), "\n")
	return strings.TrimSpace(summary)
}

// InputSchema derives the JSON Schema advertised for the tool. Reserved
// parameters are skipped, unrecognized type tags fall back to string, and a
// parameter is listed as required iff it has no default. The schema is
// advisory metadata for clients; arguments are not validated against it at
// call time.
func (d Definition) InputSchema() *jsonschema.Schema {
	properties := make(map[string]*jsonschema.Schema)
	var required []string

	for _, p := range d.Params {
		if p.Reserved() {
			continue
		}

		prop := &jsonschema.Schema{
			Type:        schemaType(p.Type),
			Description: p.Description,
		}
		if p.Required() {
			required = append(required, p.Name)
		} else if raw, err := json.Marshal(p.Default); err == nil {
			prop.Default = json.RawMessage(raw)
		}

		properties[p.Name] = prop
	}

	return &jsonschema.Schema{
		Type:       "object",
		Properties: properties,
		Required:   required,
	}
}

func (d Definition) validate() error {
	if d.Name == "" {
		return fmt.Errorf("tool has no name")
	}
	if d.Call == nil && d.CallContext == nil {
		return fmt.Errorf("tool %q has no implementation", d.Name)
	}
	if d.Call != nil && d.CallContext != nil {
		return fmt.Errorf("tool %q declares both blocking and context variants", d.Name)
	}
	return nil
}

func schemaType(t string) string {
	switch t {
	case TypeString, TypeInteger, TypeBoolean, TypeArray:
		return t
	default:
		return TypeString
	}
}

// Source provides an initial tool set, typically consulted once at startup.
// A source failure must surface as a startup error rather than an empty or
// fallback registry.
type Source interface {
	Tools(ctx context.Context) ([]Definition, error)
}

// Registry maps tool names to definitions. It preserves registration order
// for listing and is safe for concurrent use, though in normal operation it
// is built before traffic starts and read-mostly afterward.
type Registry struct {
	mu    sync.RWMutex
	defs  map[string]Definition
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// Register adds a definition. Registering a name twice replaces the earlier
// definition while keeping its position in the listing order (last
// registration wins).
func (r *Registry) Register(def Definition) error {
	if err := def.validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.defs[def.Name]; !exists {
		r.order = append(r.order, def.Name)
	}
	r.defs[def.Name] = def
	return nil
}

// Load registers every definition produced by the source.
func (r *Registry) Load(ctx context.Context, src Source) error {
	defs, err := src.Tools(ctx)
	if err != nil {
		return fmt.Errorf("loading tools: %w", err)
	}
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// Resolve returns the definition registered under name.
func (r *Registry) Resolve(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.defs[name]
	return def, ok
}

// List returns all definitions in registration order. The order is stable
// across calls.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.defs[name])
	}
	return defs
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
