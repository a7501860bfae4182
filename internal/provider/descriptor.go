package provider

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/toolbridge/toolbridge/internal/schema"
)

// defaultInputSchema is used when a provider advertises a tool without an
// input schema; it accepts any object.
var defaultInputSchema = json.RawMessage(`{"type":"object","properties":{}}`)

// ToolDescriptor describes one callable capability exposed by a provider.
// Immutable once fetched from the provider.
type ToolDescriptor struct {
	Name        string
	Description string
	InputSchema json.RawMessage

	resolved *jsonschema.Resolved
}

// NewToolDescriptor parses and resolves the input schema so arguments can be
// validated without re-compiling the schema on every call. An empty schema
// defaults to one that accepts any object.
func NewToolDescriptor(name, description string, inputSchema json.RawMessage) (ToolDescriptor, error) {
	if len(inputSchema) == 0 {
		inputSchema = defaultInputSchema
	}
	var s jsonschema.Schema
	if err := json.Unmarshal(inputSchema, &s); err != nil {
		return ToolDescriptor{}, fmt.Errorf("parse input schema for tool %q: %w", name, err)
	}
	resolved, err := s.Resolve(nil)
	if err != nil {
		return ToolDescriptor{}, fmt.Errorf("resolve input schema for tool %q: %w", name, err)
	}
	return ToolDescriptor{
		Name:        name,
		Description: description,
		InputSchema: inputSchema,
		resolved:    resolved,
	}, nil
}

// ValidateArguments checks args against the tool's input schema.
// A mismatch is returned as a *ValidationError naming the offending field.
func (d ToolDescriptor) ValidateArguments(args map[string]any) error {
	if args == nil {
		args = map[string]any{}
	}
	if err := d.resolved.Validate(args); err != nil {
		return &ValidationError{Tool: d.Name, Err: err}
	}
	return nil
}

// Definition converts the descriptor to the model-facing form.
func (d ToolDescriptor) Definition() schema.ToolDefinition {
	return schema.ToolDefinition{
		Name:        d.Name,
		Description: d.Description,
		Parameters:  d.InputSchema,
	}
}

// Catalog is the set of tool descriptors exposed by one provider,
// queryable by name. Tool names are unique within one catalog.
type Catalog struct {
	byName map[string]ToolDescriptor
	names  []string
}

// NewCatalog builds a catalog from descriptors. A later descriptor with a
// duplicate name replaces the earlier one, matching provider list order.
func NewCatalog(descriptors []ToolDescriptor) Catalog {
	c := Catalog{byName: make(map[string]ToolDescriptor, len(descriptors))}
	for _, d := range descriptors {
		if _, seen := c.byName[d.Name]; !seen {
			c.names = append(c.names, d.Name)
		}
		c.byName[d.Name] = d
	}
	sort.Strings(c.names)
	return c
}

// Get returns the descriptor with the given name.
func (c Catalog) Get(name string) (ToolDescriptor, bool) {
	d, ok := c.byName[name]
	return d, ok
}

// Names returns the sorted tool names in the catalog.
func (c Catalog) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Len returns the number of tools in the catalog.
func (c Catalog) Len() int { return len(c.byName) }
