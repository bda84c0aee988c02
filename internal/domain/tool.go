package domain

// ToolCategory groups tools for catalog filtering. It is derived from the
// tool name unless the tool backend supplies one.
type ToolCategory string

const (
	CategoryAuth     ToolCategory = "auth"
	CategoryHouse    ToolCategory = "house"
	CategoryRoom     ToolCategory = "room"
	CategoryTenant   ToolCategory = "tenant"
	CategoryContract ToolCategory = "contract"
	CategoryService  ToolCategory = "service"
	CategoryInvoice  ToolCategory = "invoice"
	CategoryUser     ToolCategory = "user"
	CategoryOther    ToolCategory = "other"
)

// AllCategories lists every category in declaration order.
var AllCategories = []ToolCategory{
	CategoryAuth,
	CategoryHouse,
	CategoryRoom,
	CategoryTenant,
	CategoryContract,
	CategoryService,
	CategoryInvoice,
	CategoryUser,
	CategoryOther,
}

// Valid reports whether c is one of the known categories.
func (c ToolCategory) Valid() bool {
	for _, k := range AllCategories {
		if c == k {
			return true
		}
	}
	return false
}

// ParameterSpec describes one tool parameter.
type ParameterSpec struct {
	Type        string `json:"type"`
	Required    bool   `json:"required,omitempty"`
	Description string `json:"description,omitempty"`
	Enum        []any  `json:"enum,omitempty"`
}

// ToolDescriptor is one entry of the tool backend's catalog.
type ToolDescriptor struct {
	Name        string                   `json:"name"`
	Description string                   `json:"description"`
	Parameters  map[string]ParameterSpec `json:"parameters,omitempty"`
	Category    ToolCategory             `json:"category,omitempty"`
}

// ToolInvocationRequest is a structured tool call extracted from model output.
type ToolInvocationRequest struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolInvocationResult records the outcome of one executed call. Exactly one
// of Result and ErrorMessage is meaningful; use NewToolResult and
// NewToolError to build one.
type ToolInvocationResult struct {
	Name         string         `json:"name"`
	Arguments    map[string]any `json:"arguments"`
	Result       any            `json:"result,omitempty"`
	ErrorMessage string         `json:"error,omitempty"`
}

// NewToolResult records a successful invocation.
func NewToolResult(req ToolInvocationRequest, result any) ToolInvocationResult {
	return ToolInvocationResult{Name: req.Name, Arguments: req.argsOrEmpty(), Result: result}
}

// NewToolError records a failed invocation.
func NewToolError(req ToolInvocationRequest, msg string) ToolInvocationResult {
	if msg == "" {
		msg = "unknown error"
	}
	return ToolInvocationResult{Name: req.Name, Arguments: req.argsOrEmpty(), ErrorMessage: msg}
}

// Failed reports whether the invocation failed.
func (r ToolInvocationResult) Failed() bool {
	return r.ErrorMessage != ""
}

func (r ToolInvocationRequest) argsOrEmpty() map[string]any {
	if r.Arguments == nil {
		return map[string]any{}
	}
	return r.Arguments
}
