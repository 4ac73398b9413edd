package events

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/phdev/Final-Assignment-Template/messages"
	"github.com/phdev/Final-Assignment-Template/pkg/slogx"
)

// Publisher delivers events to subscribers. Broker topics implement it.
type Publisher interface {
	Publish(context.Context, Event) error
}

// NewPublishingHook turns hook callbacks of one run into events on pub.
// Publish failures are logged and otherwise ignored.
func NewPublishingHook(pub Publisher, runID uuid.UUID) Hook {
	return &publishingHook{pub: pub, runID: runID}
}

type publishingHook struct {
	pub   Publisher
	runID uuid.UUID
}

func (p *publishingHook) publish(ctx context.Context, ev Event) {
	if err := p.pub.Publish(ctx, ev); err != nil {
		slog.WarnContext(ctx, "failed to publish event", slogx.LoggerName("events"), slogx.Error(err))
	}
}

func (p *publishingHook) OnUserPrompt(ctx context.Context, msg messages.Message[messages.UserMessage]) {
	p.publish(ctx, Request[messages.UserMessage]{
		RunID: msg.RunID, TurnID: msg.TurnID, Message: msg.Payload,
		Sender: msg.Sender, Timestamp: msg.Timestamp, Meta: msg.Meta,
	})
}

func (p *publishingHook) OnAssistantChunk(ctx context.Context, msg messages.Message[messages.AssistantMessage]) {
	p.publish(ctx, Chunk[messages.AssistantMessage]{
		RunID: msg.RunID, TurnID: msg.TurnID, Chunk: msg.Payload,
		Sender: msg.Sender, Timestamp: msg.Timestamp, Meta: msg.Meta,
	})
}

func (p *publishingHook) OnToolCallChunk(ctx context.Context, msg messages.Message[messages.ToolCallMessage]) {
	p.publish(ctx, Chunk[messages.ToolCallMessage]{
		RunID: msg.RunID, TurnID: msg.TurnID, Chunk: msg.Payload,
		Sender: msg.Sender, Timestamp: msg.Timestamp, Meta: msg.Meta,
	})
}

func (p *publishingHook) OnAssistantMessage(ctx context.Context, msg messages.Message[messages.AssistantMessage]) {
	p.publish(ctx, Response[messages.AssistantMessage]{
		RunID: msg.RunID, TurnID: msg.TurnID, Response: msg.Payload,
		Sender: msg.Sender, Timestamp: msg.Timestamp, Meta: msg.Meta,
	})
}

func (p *publishingHook) OnToolCallMessage(ctx context.Context, msg messages.Message[messages.ToolCallMessage]) {
	p.publish(ctx, Response[messages.ToolCallMessage]{
		RunID: msg.RunID, TurnID: msg.TurnID, Response: msg.Payload,
		Sender: msg.Sender, Timestamp: msg.Timestamp, Meta: msg.Meta,
	})
}

func (p *publishingHook) OnToolCallResponse(ctx context.Context, msg messages.Message[messages.ToolResponse]) {
	p.publish(ctx, Request[messages.ToolResponse]{
		RunID: msg.RunID, TurnID: msg.TurnID, Message: msg.Payload,
		Sender: msg.Sender, Timestamp: msg.Timestamp, Meta: msg.Meta,
	})
}

func (p *publishingHook) OnResult(ctx context.Context, result string) {
	p.publish(ctx, Result{RunID: p.runID, Result: result, Timestamp: strfmt.DateTime(time.Now().UTC())})
}

func (p *publishingHook) OnError(ctx context.Context, err error) {
	var ev Error
	if errors.As(err, &ev) {
		p.publish(ctx, ev)
		return
	}
	p.publish(ctx, Error{RunID: p.runID, Err: err, Timestamp: strfmt.DateTime(time.Now().UTC())})
}
