// Package catalog turns a set of data-provider capability objects into an
// immutable tool catalog for completion-API function calling. Providers
// register their operations explicitly at construction time; there is no
// runtime signature inspection. The catalog is built once at startup and
// never mutated.
package catalog

import (
	"context"
	"sort"
	"strings"

	"mosaic/internal/adapters/ai"
	"mosaic/pkg/errors"
)

// ParamType enumerates the parameter types a tool schema can declare.
type ParamType string

const (
	TypeString      ParamType = "string"
	TypeInteger     ParamType = "integer"
	TypeNumber      ParamType = "number"
	TypeBoolean     ParamType = "boolean"
	TypeStringArray ParamType = "array"
)

// Param describes one parameter of an operation.
type Param struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
}

// Handler executes an operation with the raw arguments the model supplied.
// Arguments are untyped JSON; handlers do their own argument handling.
type Handler func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// Operation is one named retrieval capability of a provider.
//
// Description is the explicit LLM-friendly summary and is preferred verbatim.
// When it is empty the descriptor falls back to Doc's first line (or a
// generic placeholder) and generic parameter hints. The fallback output is
// intentionally low quality and flagged Derived on the descriptor.
type Operation struct {
	Name        string // snake_case, e.g. "fetch_user_data"
	Description string
	Doc         string // short doc line, fallback description source
	Params      []Param
	Handler     Handler
}

// Provider is an external-data collaborator exposing named retrieval
// operations. Credential and session state stay inside the provider.
type Provider interface {
	Operations() []Operation
	Authenticated() bool
}

// Descriptor is the introspectable form of one cataloged tool.
type Descriptor struct {
	Name        string // "<provider>_<operation>"
	Description string
	Params      []Param
	Derived     bool // descriptor came from the heuristic fallback path
}

// Catalog holds the tool descriptors and the name→handler lookup.
type Catalog struct {
	descriptors []Descriptor
	definitions []ai.ToolDefinition
	handlers    map[string]Handler
}

// Operations covering auth and session management are never exposed as tools.
var excludedOperations = map[string]struct{}{
	"is_authenticated":      {},
	"clear_token":           {},
	"search_team":           {},
	"get_authorization_url": {},
	"fetch_token_from_code": {},
}

// Build constructs the catalog from a provider map. Only operations whose
// name signals retrieval intent (fetch_/get_ prefix) and which are not in
// the exclusion set are included. Construction is deterministic: providers
// and operations are processed in sorted name order, so building twice from
// the same set yields identical descriptor lists.
func Build(providers map[string]Provider) *Catalog {
	c := &Catalog{handlers: make(map[string]Handler)}

	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, providerName := range names {
		ops := providers[providerName].Operations()
		sort.Slice(ops, func(i, j int) bool { return ops[i].Name < ops[j].Name })

		for _, op := range ops {
			if _, excluded := excludedOperations[op.Name]; excluded {
				continue
			}
			if !strings.HasPrefix(op.Name, "fetch_") && !strings.HasPrefix(op.Name, "get_") {
				continue
			}

			desc := describe(providerName, op)
			c.descriptors = append(c.descriptors, desc)
			c.definitions = append(c.definitions, desc.definition())
			c.handlers[desc.Name] = op.Handler
		}
	}

	return c
}

// describe builds the descriptor for one operation, preferring explicit
// metadata and falling back to derived hints.
func describe(providerName string, op Operation) Descriptor {
	desc := Descriptor{
		Name:        providerName + "_" + op.Name,
		Description: op.Description,
		Params:      append([]Param(nil), op.Params...),
	}

	if desc.Description == "" {
		desc.Derived = true
		if line, _, _ := strings.Cut(op.Doc, "\n"); line != "" {
			desc.Description = line
		} else {
			desc.Description = "Get data from " + providerName
		}
		for i := range desc.Params {
			if desc.Params[i].Description == "" {
				if desc.Params[i].Type == TypeStringArray {
					desc.Params[i].Description = "List of " + desc.Params[i].Name
				} else {
					desc.Params[i].Description = "Parameter " + desc.Params[i].Name
				}
			}
		}
	}

	return desc
}

// definition converts a descriptor to the wire format the completion API
// consumes. Operations without parameters omit the parameters block.
func (d Descriptor) definition() ai.ToolDefinition {
	def := ai.ToolDefinition{
		Type: "function",
		Function: ai.FunctionDefinition{
			Name:        d.Name,
			Description: d.Description,
		},
	}

	if len(d.Params) == 0 {
		return def
	}

	properties := make(map[string]interface{}, len(d.Params))
	required := make([]string, 0, len(d.Params))
	for _, p := range d.Params {
		schema := map[string]interface{}{
			"type":        string(p.Type),
			"description": p.Description,
		}
		if p.Type == TypeStringArray {
			schema["items"] = map[string]interface{}{"type": "string"}
		}
		properties[p.Name] = schema
		if p.Required {
			required = append(required, p.Name)
		}
	}

	def.Function.Parameters = map[string]interface{}{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
	return def
}

// Definitions returns the tool catalog in completion-API wire format.
func (c *Catalog) Definitions() []ai.ToolDefinition {
	return c.definitions
}

// Descriptors returns the introspectable descriptor list in catalog order.
func (c *Catalog) Descriptors() []Descriptor {
	return c.descriptors
}

// Resolve returns the handler registered for a tool name.
func (c *Catalog) Resolve(name string) (Handler, error) {
	h, ok := c.handlers[name]
	if !ok {
		return nil, errors.Wrapf(errors.ErrUnknownTool, "%s", name)
	}
	return h, nil
}

// Len returns the number of cataloged tools.
func (c *Catalog) Len() int {
	return len(c.descriptors)
}
