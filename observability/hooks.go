package observability

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/phdev/Final-Assignment-Template/events"
	"github.com/phdev/Final-Assignment-Template/messages"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys shared by the spans and span events of a run.
const (
	AttrRunID        = "run.id"
	AttrToolName     = "tool.name"
	AttrToolCallID   = "tool.call_id"
	AttrToolInput    = "tool.input"
	AttrToolOutput   = "tool.output"
	AttrToolError    = "tool.error"
	AttrLLMOutputLen = "llm.output_length"
	AttrLLMRefusal   = "llm.refusal"
	AttrAnswerLen    = "app.answer_length"

	toolSpanPrefix   = "tool."
	toolErrorPrefix  = "ERROR: "
	maxAttrValueSize = 1024
)

// Callbacks assembles the hooks of one run: a tracing hook, and a hook that
// publishes the run's events on pub when pub is not nil.
func Callbacks(runID uuid.UUID, pub events.Publisher) []events.Hook {
	hooks := []events.Hook{TracingHook()}
	if pub != nil {
		hooks = append(hooks, events.NewPublishingHook(pub, runID))
	}
	return hooks
}

// TracingHook records the run on the span found in the callback context.
// Every tool call gets a child span that ends with its response.
func TracingHook() events.Hook {
	return newTracingHook(Tracer())
}

func newTracingHook(tracer trace.Tracer) *tracingHook {
	return &tracingHook{tracer: tracer, calls: make(map[string]trace.Span)}
}

type tracingHook struct {
	events.NoopHook

	tracer trace.Tracer
	mu     sync.Mutex
	calls  map[string]trace.Span
}

func (h *tracingHook) OnUserPrompt(ctx context.Context, msg messages.Message[messages.UserMessage]) {
	trace.SpanFromContext(ctx).AddEvent("user.prompt", trace.WithAttributes(
		attribute.String(AttrRunID, msg.RunID.String()),
		attribute.Int("app.question_length", len(msg.Payload.Content)),
	))
}

func (h *tracingHook) OnAssistantMessage(ctx context.Context, msg messages.Message[messages.AssistantMessage]) {
	attrs := []attribute.KeyValue{
		attribute.String(AttrRunID, msg.RunID.String()),
		attribute.Int(AttrLLMOutputLen, len(msg.Payload.Content)),
	}
	if msg.Payload.Refusal != "" {
		attrs = append(attrs, attribute.String(AttrLLMRefusal, truncate(msg.Payload.Refusal)))
	}
	trace.SpanFromContext(ctx).AddEvent("llm.completion", trace.WithAttributes(attrs...))
}

func (h *tracingHook) OnToolCallMessage(ctx context.Context, msg messages.Message[messages.ToolCallMessage]) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, call := range msg.Payload.ToolCalls {
		_, span := h.tracer.Start(ctx, toolSpanPrefix+call.Name,
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(
				attribute.String(AttrRunID, msg.RunID.String()),
				attribute.String(AttrToolName, call.Name),
				attribute.String(AttrToolCallID, call.ID),
				attribute.String(AttrToolInput, truncate(call.Arguments)),
			),
		)
		h.calls[call.ID] = span
	}
}

func (h *tracingHook) OnToolCallResponse(ctx context.Context, msg messages.Message[messages.ToolResponse]) {
	h.mu.Lock()
	span, ok := h.calls[msg.Payload.ToolCallID]
	delete(h.calls, msg.Payload.ToolCallID)
	h.mu.Unlock()
	if !ok {
		return
	}

	failed := strings.HasPrefix(msg.Payload.Content, toolErrorPrefix)
	span.SetAttributes(
		attribute.String(AttrToolOutput, truncate(msg.Payload.Content)),
		attribute.Bool(AttrToolError, failed),
	)
	if failed {
		span.SetStatus(codes.Error, strings.TrimPrefix(msg.Payload.Content, toolErrorPrefix))
	}
	span.End()
}

func (h *tracingHook) OnResult(ctx context.Context, result string) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int(AttrAnswerLen, len(result)))
	h.endPending("")
}

func (h *tracingHook) OnError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	h.endPending(err.Error())
}

// endPending ends tool spans that never got a response.
func (h *tracingHook) endPending(reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, span := range h.calls {
		if reason != "" {
			span.SetStatus(codes.Error, reason)
		}
		span.End()
		delete(h.calls, id)
	}
}

func truncate(s string) string {
	if len(s) <= maxAttrValueSize {
		return s
	}
	return s[:maxAttrValueSize] + "..."
}
