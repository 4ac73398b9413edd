/*
Package tool turns plain Go functions into tools a model can call.

A Definition pairs a function with the name, description and parameter names
the model sees. The JSON schema of the arguments object is derived from the
function signature by reflection, so the function stays the single source of
truth for the parameter types.

# Definitions

	calculator := tool.Must(tools.Calculator,
		tool.Name("calculator"),
		tool.Description("Evaluate a simple arithmetic expression."),
		tool.Parameters("expression"),
	)

Parameters names the function parameters in order. Unnamed parameters are
called param0, param1 and so on. A context.Context or types.ContextVars
parameter is supplied by the runtime and never appears in the schema.

# Calls

Call decodes the model's JSON arguments with gjson, converts them to the
parameter types and invokes the function. Results are rendered as text:
strings as is, other values as JSON. A non-nil error result is returned as
the call error, and a panicking tool is reported as an error as well, so a
broken tool never takes the run down with it.

Tools may be called concurrently when an agent allows parallel tool calls.
*/
package tool
