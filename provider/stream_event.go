package provider

import (
	"fmt"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/phdev/Final-Assignment-Template/internal/shorttermmemory"
	"github.com/phdev/Final-Assignment-Template/messages"
	"github.com/tidwall/gjson"
)

// StreamEvent is one item on a completion channel.
type StreamEvent interface {
	streamEvent()
}

// Delim marks the start or end of a streamed completion.
type Delim struct {
	RunID  uuid.UUID
	TurnID uuid.UUID
	Delim  string
}

func (Delim) streamEvent() {}

// Chunk is an incremental piece of a streamed reply.
type Chunk[T messages.Response] struct {
	RunID     uuid.UUID
	TurnID    uuid.UUID
	Chunk     T
	Timestamp strfmt.DateTime
	Meta      gjson.Result
}

func (Chunk[T]) streamEvent() {}

// Response is the complete reply of one model call, with the tokens it used.
type Response[T messages.Response] struct {
	RunID     uuid.UUID
	TurnID    uuid.UUID
	Response  T
	Usage     shorttermmemory.Usage
	Timestamp strfmt.DateTime
	Meta      gjson.Result
}

func (Response[T]) streamEvent() {}

// Message converts the response to a thread message from sender.
func (r Response[T]) Message(sender string) messages.Message[T] {
	return messages.Message[T]{
		RunID:     r.RunID,
		TurnID:    r.TurnID,
		Sender:    sender,
		Timestamp: r.Timestamp,
		Meta:      r.Meta,
		Payload:   r.Response,
	}
}

// Message converts the chunk to a message from sender.
func (c Chunk[T]) Message(sender string) messages.Message[T] {
	return messages.Message[T]{
		RunID:     c.RunID,
		TurnID:    c.TurnID,
		Sender:    sender,
		Timestamp: c.Timestamp,
		Meta:      c.Meta,
		Payload:   c.Chunk,
	}
}

// Error reports a failed model call.
type Error struct {
	RunID     uuid.UUID
	TurnID    uuid.UUID
	Err       error
	Timestamp strfmt.DateTime
	Meta      gjson.Result
}

func (Error) streamEvent() {}

func (e Error) Error() string {
	return fmt.Sprintf("run_id: %s, turn_id: %s, timestamp: %s, error: %v", e.RunID, e.TurnID, e.Timestamp, e.Err)
}

func (e Error) Unwrap() error {
	return e.Err
}
