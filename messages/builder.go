package messages

import (
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/tidwall/gjson"
)

// Builder stamps new messages with a sender, a timestamp and metadata.
// The zero timestamp means "now" at construction time.
type Builder struct {
	sender    string
	timestamp strfmt.DateTime
	meta      gjson.Result
}

// New returns an empty Builder.
func New() Builder {
	return Builder{}
}

func (b Builder) WithSender(sender string) Builder {
	b.sender = sender
	return b
}

func (b Builder) WithTimestamp(ts strfmt.DateTime) Builder {
	b.timestamp = ts
	return b
}

func (b Builder) WithMetadata(meta gjson.Result) Builder {
	b.meta = meta
	return b
}

func (b Builder) UserPrompt(prompt string) Message[UserMessage] {
	return build(b, UserMessage{Content: prompt})
}

func (b Builder) AssistantMessage(content string) Message[AssistantMessage] {
	return build(b, AssistantMessage{Content: content})
}

func (b Builder) AssistantRefusal(refusal string) Message[AssistantMessage] {
	return build(b, AssistantMessage{Refusal: refusal})
}

func (b Builder) ToolCall(calls []ToolCallData) Message[ToolCallMessage] {
	return build(b, ToolCallMessage{ToolCalls: calls})
}

func (b Builder) ToolResponse(toolCallID, toolName, content string) Message[ToolResponse] {
	return build(b, ToolResponse{ToolCallID: toolCallID, ToolName: toolName, Content: content})
}

func build[T ModelMessage](b Builder, payload T) Message[T] {
	ts := b.timestamp
	if ts.IsZero() {
		ts = strfmt.DateTime(time.Now().UTC())
	}
	return Message[T]{
		Sender:    b.sender,
		Timestamp: ts,
		Meta:      b.meta,
		Payload:   payload,
	}
}
