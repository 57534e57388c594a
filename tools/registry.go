// Package tools provides a metadata-driven registry for MCP tool definitions.
// Tools are defined declaratively in AllTools and registered through
// type-safe handlers.
package tools

// ToolSpec defines a tool's metadata for declarative registration.
// Each spec maps to a client method with matching Args/Result types.
type ToolSpec struct {
	// Name is the MCP tool name (e.g., "leaders_get_leaders")
	Name string

	// Method is the handler key (e.g., "GetLeaders")
	Method string

	// Description is the tool description shown to LLMs
	Description string

	// Title is the human-readable tool title for annotations
	Title string

	// Category groups tools logically (read, enrich, scrape, history)
	Category string

	// Upstream names the service the tool talks to (leaders, wikipedia, store)
	Upstream string

	// ReadOnly indicates the tool doesn't modify anything
	ReadOnly bool

	// Destructive indicates the tool can delete or overwrite data
	Destructive bool

	// Idempotent indicates repeated calls have the same effect
	Idempotent bool

	// OpenWorld indicates the tool accesses external resources
	OpenWorld bool

	// ObjectOutput replaces the inferred output schema with a plain object
	// schema. Leader dates have custom JSON encodings the inferred schema
	// does not describe.
	ObjectOutput bool
}

// ToolsByCategory returns the specs in category.
func ToolsByCategory(category string) []ToolSpec {
	var out []ToolSpec
	for _, spec := range AllTools {
		if spec.Category == category {
			out = append(out, spec)
		}
	}
	return out
}

// ToolsByUpstream returns the specs that call upstream.
func ToolsByUpstream(upstream string) []ToolSpec {
	var out []ToolSpec
	for _, spec := range AllTools {
		if spec.Upstream == upstream {
			out = append(out, spec)
		}
	}
	return out
}

// ptr is a helper to create a pointer to a value.
func ptr[T any](v T) *T {
	return &v
}
