// Package observability wires OpenTelemetry tracing into a run.
//
// Configure installs the process-wide tracer provider with one OTLP/HTTP
// exporter per configured backend (a collector, Langfuse, LangSmith).
// StartTaskSpan opens the root span of a question and TracingHook turns the
// events of a run into span events and tool call spans below it.
package observability
