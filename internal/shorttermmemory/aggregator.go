package shorttermmemory

import (
	"iter"
	"slices"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/phdev/Final-Assignment-Template/messages"
	"github.com/phdev/Final-Assignment-Template/pkg/uuidx"
)

// AggregatedMessages is an ordered conversation thread.
type AggregatedMessages []messages.Message[messages.ModelMessage]

func (a AggregatedMessages) Len() int {
	return len(a)
}

// New creates an empty thread with a fresh ID.
func New() *Aggregator {
	return &Aggregator{
		id:       uuidx.New(),
		messages: make(AggregatedMessages, 0),
	}
}

// Aggregator is the conversation thread of one run. It is not safe for
// concurrent mutation: a run owns its fork and joins it back when done.
type Aggregator struct {
	id       uuid.UUID
	messages AggregatedMessages
	initLen  int
	usage    Usage
}

func (a *Aggregator) ID() uuid.UUID {
	return a.id
}

func (a *Aggregator) Len() int {
	return a.messages.Len()
}

// TurnLen counts the messages added since the aggregator was forked.
func (a *Aggregator) TurnLen() int {
	return len(a.messages) - a.initLen
}

// Messages returns a copy of the thread.
func (a *Aggregator) Messages() AggregatedMessages {
	return slices.Clone(a.messages)
}

func (a *Aggregator) MessagesIter() iter.Seq[messages.Message[messages.ModelMessage]] {
	return slices.Values(a.messages)
}

// LastAssistantMessage returns the most recent textual model reply.
func (a *Aggregator) LastAssistantMessage() (messages.Message[messages.AssistantMessage], bool) {
	for i := len(a.messages) - 1; i >= 0; i-- {
		if m, ok := messages.As[messages.AssistantMessage](a.messages[i]); ok {
			return m, true
		}
	}
	return messages.Message[messages.AssistantMessage]{}, false
}

// AddMessage appends a message of any payload kind.
func AddMessage[T messages.ModelMessage](a *Aggregator, m messages.Message[T]) {
	a.add(m.Erase())
}

func (a *Aggregator) AddUserPrompt(m messages.Message[messages.UserMessage]) {
	a.add(m.Erase())
}

func (a *Aggregator) AddAssistantMessage(m messages.Message[messages.AssistantMessage]) {
	a.add(m.Erase())
}

func (a *Aggregator) AddToolCall(m messages.Message[messages.ToolCallMessage]) {
	a.add(m.Erase())
}

func (a *Aggregator) AddToolResponse(m messages.Message[messages.ToolResponse]) {
	a.add(m.Erase())
}

func (a *Aggregator) add(m messages.Message[messages.ModelMessage]) {
	a.messages = append(a.messages, m)
}

// Usage returns the token consumption recorded so far.
func (a *Aggregator) Usage() Usage {
	return a.usage
}

func (a *Aggregator) AddUsage(u *Usage) {
	a.usage.AddUsage(u)
}

// Fork returns a child thread holding a copy of the messages. Only what the
// child appends afterwards travels back on Join.
func (a *Aggregator) Fork() *Aggregator {
	return &Aggregator{
		id:       uuidx.New(),
		messages: slices.Clone(a.messages),
		initLen:  a.Len(),
	}
}

// Join appends the messages b gained since it was forked, and its usage.
func (a *Aggregator) Join(b *Aggregator) {
	a.messages = append(a.messages, b.messages[b.initLen:]...)
	a.usage.AddUsage(&b.usage)
}

// Checkpoint snapshots the thread so it can cross a process boundary.
func (a *Aggregator) Checkpoint() Checkpoint {
	return Checkpoint{
		id:       a.id,
		messages: slices.Clone(a.messages),
		usage:    a.usage,
		initLen:  a.initLen,
	}
}

// Restore rebuilds an aggregator from a checkpoint, keeping its fork point.
func Restore(c Checkpoint) *Aggregator {
	return &Aggregator{
		id:       c.id,
		messages: slices.Clone(c.messages),
		usage:    c.usage,
		initLen:  c.initLen,
	}
}

// Checkpoint is an immutable snapshot of an Aggregator.
type Checkpoint struct {
	id       uuid.UUID
	messages AggregatedMessages
	usage    Usage
	initLen  int
}

func (c *Checkpoint) ID() uuid.UUID {
	return c.id
}

func (c *Checkpoint) Messages() AggregatedMessages {
	return slices.Clone(c.messages)
}

func (c *Checkpoint) Usage() Usage {
	return c.usage
}

// MergeInto applies what was added after the checkpoint's fork point to other.
func (c *Checkpoint) MergeInto(other *Aggregator) {
	other.messages = append(other.messages, c.messages[c.initLen:]...)
	other.usage.AddUsage(&c.usage)
	if other.id == uuid.Nil {
		other.id = c.id
	}
}

type checkpointJSON struct {
	ID       string                                    `json:"id"`
	Messages []messages.Message[messages.ModelMessage] `json:"messages"`
	Usage    Usage                                     `json:"usage"`
	InitLen  int                                       `json:"init_len"`
}

func (c Checkpoint) MarshalJSON() ([]byte, error) {
	msgs := c.messages
	if msgs == nil {
		msgs = AggregatedMessages{}
	}
	return json.Marshal(checkpointJSON{
		ID:       c.id.String(),
		Messages: msgs,
		Usage:    c.usage,
		InitLen:  c.initLen,
	})
}

func (c *Checkpoint) UnmarshalJSON(data []byte) error {
	var tmp checkpointJSON
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	id, err := uuid.Parse(tmp.ID)
	if err != nil {
		return err
	}
	c.id = id
	c.messages = tmp.Messages
	c.usage = tmp.Usage
	c.initLen = tmp.InitLen
	return nil
}
