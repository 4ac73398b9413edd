package events

import (
	"context"
	"log/slog"

	json "github.com/goccy/go-json"
	"github.com/phdev/Final-Assignment-Template/messages"
	"github.com/phdev/Final-Assignment-Template/pkg/slogx"
)

// Hook observes a run as it happens. Implementations must be safe for
// concurrent use: tool responses of parallel calls arrive from several
// goroutines.
type Hook interface {
	OnUserPrompt(context.Context, messages.Message[messages.UserMessage])
	OnAssistantChunk(context.Context, messages.Message[messages.AssistantMessage])
	OnToolCallChunk(context.Context, messages.Message[messages.ToolCallMessage])
	OnAssistantMessage(context.Context, messages.Message[messages.AssistantMessage])
	OnToolCallMessage(context.Context, messages.Message[messages.ToolCallMessage])
	OnToolCallResponse(context.Context, messages.Message[messages.ToolResponse])
	OnResult(context.Context, string)
	OnError(context.Context, error)
}

// NoopHook ignores everything. Embed it to implement only some callbacks.
type NoopHook struct{}

func (NoopHook) OnUserPrompt(context.Context, messages.Message[messages.UserMessage])            {}
func (NoopHook) OnAssistantChunk(context.Context, messages.Message[messages.AssistantMessage])   {}
func (NoopHook) OnToolCallChunk(context.Context, messages.Message[messages.ToolCallMessage])     {}
func (NoopHook) OnAssistantMessage(context.Context, messages.Message[messages.AssistantMessage]) {}
func (NoopHook) OnToolCallMessage(context.Context, messages.Message[messages.ToolCallMessage])   {}
func (NoopHook) OnToolCallResponse(context.Context, messages.Message[messages.ToolResponse])     {}
func (NoopHook) OnResult(context.Context, string)                                                {}
func (NoopHook) OnError(context.Context, error)                                                  {}

// LoggingHook writes every callback to the default logger. Chunks are logged
// at debug level.
func LoggingHook() Hook {
	return &loggingHook{}
}

type loggingHook struct{}

func (l *loggingHook) logger() *slog.Logger {
	return slog.Default().With(slogx.LoggerName("events"))
}

func (l *loggingHook) OnUserPrompt(ctx context.Context, msg messages.Message[messages.UserMessage]) {
	l.logger().InfoContext(ctx, "user prompt", slog.String("run_id", msg.RunID.String()), slog.String("message", mustJSON(msg)))
}

func (l *loggingHook) OnAssistantChunk(ctx context.Context, msg messages.Message[messages.AssistantMessage]) {
	l.logger().DebugContext(ctx, "assistant chunk", slog.String("run_id", msg.RunID.String()), slog.String("content", msg.Payload.Content))
}

func (l *loggingHook) OnToolCallChunk(ctx context.Context, msg messages.Message[messages.ToolCallMessage]) {
	l.logger().DebugContext(ctx, "tool call chunk", slog.String("run_id", msg.RunID.String()), slog.String("message", mustJSON(msg)))
}

func (l *loggingHook) OnAssistantMessage(ctx context.Context, msg messages.Message[messages.AssistantMessage]) {
	l.logger().InfoContext(ctx, "assistant message", slog.String("run_id", msg.RunID.String()), slog.String("message", mustJSON(msg)))
}

func (l *loggingHook) OnToolCallMessage(ctx context.Context, msg messages.Message[messages.ToolCallMessage]) {
	l.logger().InfoContext(ctx, "tool call message", slog.String("run_id", msg.RunID.String()), slog.String("message", mustJSON(msg)))
}

func (l *loggingHook) OnToolCallResponse(ctx context.Context, msg messages.Message[messages.ToolResponse]) {
	l.logger().InfoContext(ctx, "tool call response",
		slog.String("run_id", msg.RunID.String()),
		slog.String("tool", msg.Payload.ToolName),
		slog.String("content", msg.Payload.Content),
	)
}

func (l *loggingHook) OnResult(ctx context.Context, result string) {
	l.logger().InfoContext(ctx, "result", slog.String("result", result))
}

func (l *loggingHook) OnError(ctx context.Context, err error) {
	l.logger().ErrorContext(ctx, "run failed", slogx.Error(err))
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}

// NewCompositeHook fans every callback out to hooks in order.
func NewCompositeHook(hooks ...Hook) Hook {
	return compositeHook(hooks)
}

type compositeHook []Hook

func (c compositeHook) OnUserPrompt(ctx context.Context, msg messages.Message[messages.UserMessage]) {
	for _, h := range c {
		h.OnUserPrompt(ctx, msg)
	}
}

func (c compositeHook) OnAssistantChunk(ctx context.Context, msg messages.Message[messages.AssistantMessage]) {
	for _, h := range c {
		h.OnAssistantChunk(ctx, msg)
	}
}

func (c compositeHook) OnToolCallChunk(ctx context.Context, msg messages.Message[messages.ToolCallMessage]) {
	for _, h := range c {
		h.OnToolCallChunk(ctx, msg)
	}
}

func (c compositeHook) OnAssistantMessage(ctx context.Context, msg messages.Message[messages.AssistantMessage]) {
	for _, h := range c {
		h.OnAssistantMessage(ctx, msg)
	}
}

func (c compositeHook) OnToolCallMessage(ctx context.Context, msg messages.Message[messages.ToolCallMessage]) {
	for _, h := range c {
		h.OnToolCallMessage(ctx, msg)
	}
}

func (c compositeHook) OnToolCallResponse(ctx context.Context, msg messages.Message[messages.ToolResponse]) {
	for _, h := range c {
		h.OnToolCallResponse(ctx, msg)
	}
}

func (c compositeHook) OnResult(ctx context.Context, result string) {
	for _, h := range c {
		h.OnResult(ctx, result)
	}
}

func (c compositeHook) OnError(ctx context.Context, err error) {
	for _, h := range c {
		h.OnError(ctx, err)
	}
}
