package broker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phdev/Final-Assignment-Template/events"
	"github.com/phdev/Final-Assignment-Template/messages"
	"github.com/phdev/Final-Assignment-Template/pkg/slogx"
)

// dispatch hands one event to the matching hook callback. Delims only frame
// a stream and are dropped.
func dispatch(ctx context.Context, hook events.Hook, event events.Event) {
	switch ev := event.(type) {
	case events.Delim:
	case events.Request[messages.UserMessage]:
		hook.OnUserPrompt(ctx, messages.Message[messages.UserMessage]{
			RunID: ev.RunID, TurnID: ev.TurnID, Payload: ev.Message,
			Sender: ev.Sender, Timestamp: ev.Timestamp, Meta: ev.Meta,
		})
	case events.Request[messages.ToolResponse]:
		hook.OnToolCallResponse(ctx, messages.Message[messages.ToolResponse]{
			RunID: ev.RunID, TurnID: ev.TurnID, Payload: ev.Message,
			Sender: ev.Sender, Timestamp: ev.Timestamp, Meta: ev.Meta,
		})
	case events.Chunk[messages.AssistantMessage]:
		hook.OnAssistantChunk(ctx, messages.Message[messages.AssistantMessage]{
			RunID: ev.RunID, TurnID: ev.TurnID, Payload: ev.Chunk,
			Sender: ev.Sender, Timestamp: ev.Timestamp, Meta: ev.Meta,
		})
	case events.Chunk[messages.ToolCallMessage]:
		hook.OnToolCallChunk(ctx, messages.Message[messages.ToolCallMessage]{
			RunID: ev.RunID, TurnID: ev.TurnID, Payload: ev.Chunk,
			Sender: ev.Sender, Timestamp: ev.Timestamp, Meta: ev.Meta,
		})
	case events.Response[messages.AssistantMessage]:
		hook.OnAssistantMessage(ctx, messages.Message[messages.AssistantMessage]{
			RunID: ev.RunID, TurnID: ev.TurnID, Payload: ev.Response,
			Sender: ev.Sender, Timestamp: ev.Timestamp, Meta: ev.Meta,
		})
	case events.Response[messages.ToolCallMessage]:
		hook.OnToolCallMessage(ctx, messages.Message[messages.ToolCallMessage]{
			RunID: ev.RunID, TurnID: ev.TurnID, Payload: ev.Response,
			Sender: ev.Sender, Timestamp: ev.Timestamp, Meta: ev.Meta,
		})
	case events.Result:
		hook.OnResult(ctx, ev.Result)
	case events.Error:
		hook.OnError(ctx, ev)
	default:
		slog.WarnContext(ctx, "dropping unknown event", slogx.LoggerName("broker"), slog.String("type", fmt.Sprintf("%T", event)))
	}
}
