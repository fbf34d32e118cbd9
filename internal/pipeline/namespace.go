package pipeline

import "strings"

// toolNamespaces maps tool-name provider prefixes to data context namespaces.
// Unmapped prefixes use themselves as namespace. If two providers ever map
// to the same namespace, colliding keys resolve last-write-wins with no
// conflict signal.
var toolNamespaces = map[string]string{
	"spotify": "music",
	"stocks":  "stocks",
	"sports":  "sports",
	"strava":  "fitness",
	"clash":   "gaming",
}

// Aggregate is the flat two-level namespace → key → value data context
// produced by the agent loop and consumed by the renderer.
type Aggregate map[string]map[string]interface{}

// splitTool separates a tool name into its provider prefix and operation name.
func splitTool(toolName string) (prefix, operation string) {
	prefix, operation, found := strings.Cut(toolName, "_")
	if !found {
		return toolName, ""
	}
	return prefix, operation
}

// namespaceFor resolves the namespace for a tool name.
func namespaceFor(toolName string) string {
	prefix, _ := splitTool(toolName)
	if ns, ok := toolNamespaces[prefix]; ok {
		return ns
	}
	return prefix
}

// Add merges one successful tool result into the aggregate. Structured map
// results shallow-merge into the namespace (later keys overwrite earlier
// ones); scalar and list results are stored under the operation name with
// the provider prefix stripped.
func (a Aggregate) Add(toolName string, result interface{}) {
	ns := namespaceFor(toolName)
	if a[ns] == nil {
		a[ns] = make(map[string]interface{})
	}

	if m, ok := result.(map[string]interface{}); ok {
		for k, v := range m {
			a[ns][k] = v
		}
		return
	}

	_, operation := splitTool(toolName)
	a[ns][operation] = result
}

// Merge folds another aggregate into this one, namespace by namespace.
func (a Aggregate) Merge(other Aggregate) {
	for ns, values := range other {
		if a[ns] == nil {
			a[ns] = make(map[string]interface{})
		}
		for k, v := range values {
			a[ns][k] = v
		}
	}
}
