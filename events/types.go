package events

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/phdev/Final-Assignment-Template/messages"
	"github.com/phdev/Final-Assignment-Template/provider"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	TypeDelim    = "delim"
	TypeChunk    = "chunk"
	TypeRequest  = "request"
	TypeResponse = "response"
	TypeResult   = "result"
	TypeError    = "error"
)

var (
	delimJSON    = []byte(`{"type":"delim"}`)
	chunkJSON    = []byte(`{"type":"chunk"}`)
	requestJSON  = []byte(`{"type":"request"}`)
	responseJSON = []byte(`{"type":"response"}`)
	resultJSON   = []byte(`{"type":"result"}`)
	errorJSON    = []byte(`{"type":"error"}`)
)

// Event is anything that travels over a broker topic.
type Event interface {
	event()
}

// Delim marks the start or end of a streamed completion.
type Delim struct {
	RunID  uuid.UUID `json:"run_id"`
	TurnID uuid.UUID `json:"turn_id"`
	Delim  string    `json:"delim"`
}

func (Delim) event() {}

func (d Delim) MarshalJSON() ([]byte, error) {
	result, err := setIDs(delimJSON, d.RunID, d.TurnID)
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(result, "delim", d.Delim)
}

func (d *Delim) UnmarshalJSON(data []byte) error {
	doc, err := parse(data, TypeDelim)
	if err != nil {
		return err
	}
	if d.RunID, d.TurnID, err = readIDs(doc); err != nil {
		return err
	}
	delim := doc.Get("delim")
	if !delim.Exists() {
		return errors.New("missing required field 'delim'")
	}
	d.Delim = delim.String()
	return nil
}

// Chunk is a fragment of a streamed model response.
type Chunk[T messages.Response] struct {
	RunID     uuid.UUID       `json:"run_id"`
	TurnID    uuid.UUID       `json:"turn_id"`
	Chunk     T               `json:"chunk"`
	Sender    string          `json:"sender,omitempty"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
	Meta      gjson.Result    `json:"meta,omitempty"`
}

func (Chunk[T]) event() {}

func (c Chunk[T]) MarshalJSON() ([]byte, error) {
	return marshalEvent(chunkJSON, c.RunID, c.TurnID, "chunk", c.Chunk, c.Sender, c.Timestamp, c.Meta)
}

func (c *Chunk[T]) UnmarshalJSON(data []byte) error {
	doc, err := parse(data, TypeChunk)
	if err != nil {
		return err
	}
	if c.RunID, c.TurnID, err = readIDs(doc); err != nil {
		return err
	}
	if c.Chunk, err = readPayload[T](doc, "chunk"); err != nil {
		return err
	}
	c.Sender, c.Timestamp, c.Meta, err = readTrailer(doc)
	return err
}

// Request is input to the model: a user prompt or a tool response.
type Request[T messages.Request] struct {
	RunID     uuid.UUID       `json:"run_id"`
	TurnID    uuid.UUID       `json:"turn_id"`
	Message   T               `json:"message"`
	Sender    string          `json:"sender,omitempty"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
	Meta      gjson.Result    `json:"meta,omitempty"`
}

func (Request[T]) event() {}

func (r Request[T]) MarshalJSON() ([]byte, error) {
	return marshalEvent(requestJSON, r.RunID, r.TurnID, "message", r.Message, r.Sender, r.Timestamp, r.Meta)
}

func (r *Request[T]) UnmarshalJSON(data []byte) error {
	doc, err := parse(data, TypeRequest)
	if err != nil {
		return err
	}
	if r.RunID, r.TurnID, err = readIDs(doc); err != nil {
		return err
	}
	if r.Message, err = readPayload[T](doc, "message"); err != nil {
		return err
	}
	r.Sender, r.Timestamp, r.Meta, err = readTrailer(doc)
	return err
}

// Response is a complete model reply.
type Response[T messages.Response] struct {
	RunID     uuid.UUID       `json:"run_id"`
	TurnID    uuid.UUID       `json:"turn_id"`
	Response  T               `json:"response"`
	Sender    string          `json:"sender,omitempty"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
	Meta      gjson.Result    `json:"meta,omitempty"`
}

func (Response[T]) event() {}

func (r Response[T]) MarshalJSON() ([]byte, error) {
	return marshalEvent(responseJSON, r.RunID, r.TurnID, "response", r.Response, r.Sender, r.Timestamp, r.Meta)
}

func (r *Response[T]) UnmarshalJSON(data []byte) error {
	doc, err := parse(data, TypeResponse)
	if err != nil {
		return err
	}
	if r.RunID, r.TurnID, err = readIDs(doc); err != nil {
		return err
	}
	if r.Response, err = readPayload[T](doc, "response"); err != nil {
		return err
	}
	r.Sender, r.Timestamp, r.Meta, err = readTrailer(doc)
	return err
}

// Result is the final answer of a run.
type Result struct {
	RunID     uuid.UUID       `json:"run_id"`
	TurnID    uuid.UUID       `json:"turn_id"`
	Result    string          `json:"result"`
	Sender    string          `json:"sender,omitempty"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
	Meta      gjson.Result    `json:"meta,omitempty"`
}

func (Result) event() {}

func (r Result) MarshalJSON() ([]byte, error) {
	result, err := setIDs(resultJSON, r.RunID, r.TurnID)
	if err != nil {
		return nil, err
	}
	if result, err = sjson.SetBytes(result, "result", r.Result); err != nil {
		return nil, err
	}
	return setTrailer(result, r.Sender, r.Timestamp, r.Meta)
}

func (r *Result) UnmarshalJSON(data []byte) error {
	doc, err := parse(data, TypeResult)
	if err != nil {
		return err
	}
	if r.RunID, r.TurnID, err = readIDs(doc); err != nil {
		return err
	}
	res := doc.Get("result")
	if !res.Exists() {
		return errors.New("missing required field 'result'")
	}
	r.Result = res.String()
	r.Sender, r.Timestamp, r.Meta, err = readTrailer(doc)
	return err
}

// Error reports a failed run. It keeps the run context so a subscriber on
// another process can correlate it.
type Error struct {
	RunID     uuid.UUID       `json:"run_id"`
	TurnID    uuid.UUID       `json:"turn_id"`
	Err       error           `json:"error"`
	Sender    string          `json:"sender,omitempty"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
	Meta      gjson.Result    `json:"meta,omitempty"`
}

func (Error) event() {}

func (e Error) Error() string {
	msg := "<nil>"
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("run %s, turn %s: %s", e.RunID, e.TurnID, msg)
}

func (e Error) Unwrap() error {
	return e.Err
}

func (e Error) MarshalJSON() ([]byte, error) {
	result, err := setIDs(errorJSON, e.RunID, e.TurnID)
	if err != nil {
		return nil, err
	}
	msg := "<nil>"
	if e.Err != nil {
		msg = e.Err.Error()
	}
	if result, err = sjson.SetBytes(result, "error", msg); err != nil {
		return nil, err
	}
	return setTrailer(result, e.Sender, e.Timestamp, e.Meta)
}

func (e *Error) UnmarshalJSON(data []byte) error {
	doc, err := parse(data, TypeError)
	if err != nil {
		return err
	}
	if e.RunID, e.TurnID, err = readIDs(doc); err != nil {
		return err
	}
	msg := doc.Get("error")
	if !msg.Exists() {
		return errors.New("missing required field 'error'")
	}
	e.Err = errors.New(msg.String())
	e.Sender, e.Timestamp, e.Meta, err = readTrailer(doc)
	return err
}

// ToJSON serializes any event with its type discriminator.
func ToJSON(event Event) ([]byte, error) {
	if event == nil {
		return nil, errors.New("event is nil")
	}
	return json.Marshal(event)
}

// FromJSON restores the concrete event type, including the payload type
// parameter of chunks, requests and responses.
func FromJSON(data []byte) (Event, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("invalid json")
	}
	doc := gjson.ParseBytes(data)
	typ := doc.Get("type")
	if !typ.Exists() {
		return nil, errors.New("missing required field 'type'")
	}

	switch typ.String() {
	case TypeDelim:
		return decode[Delim](data)
	case TypeChunk:
		switch kind := doc.Get("chunk.type").String(); kind {
		case messages.TypeAssistant:
			return decode[Chunk[messages.AssistantMessage]](data)
		case messages.TypeToolCall:
			return decode[Chunk[messages.ToolCallMessage]](data)
		default:
			return nil, fmt.Errorf("unknown chunk type: %s", kind)
		}
	case TypeRequest:
		switch kind := doc.Get("message.type").String(); kind {
		case messages.TypeUser:
			return decode[Request[messages.UserMessage]](data)
		case messages.TypeToolResponse:
			return decode[Request[messages.ToolResponse]](data)
		default:
			return nil, fmt.Errorf("unknown request type: %s", kind)
		}
	case TypeResponse:
		switch kind := doc.Get("response.type").String(); kind {
		case messages.TypeAssistant:
			return decode[Response[messages.AssistantMessage]](data)
		case messages.TypeToolCall:
			return decode[Response[messages.ToolCallMessage]](data)
		default:
			return nil, fmt.Errorf("unknown response type: %s", kind)
		}
	case TypeResult:
		return decode[Result](data)
	case TypeError:
		return decode[Error](data)
	default:
		return nil, fmt.Errorf("unknown event type: %s", typ.String())
	}
}

func decode[E Event, P interface {
	*E
	UnmarshalJSON([]byte) error
}](data []byte) (Event, error) {
	var e E
	if err := P(&e).UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return e, nil
}

// FromStreamEvent attaches a sender to a provider event. Token usage of a
// complete response is kept under meta.usage.
func FromStreamEvent(ev provider.StreamEvent, sender string) Event {
	switch e := ev.(type) {
	case provider.Delim:
		return Delim{RunID: e.RunID, TurnID: e.TurnID, Delim: e.Delim}
	case provider.Chunk[messages.AssistantMessage]:
		return Chunk[messages.AssistantMessage]{RunID: e.RunID, TurnID: e.TurnID, Chunk: e.Chunk, Sender: sender, Timestamp: e.Timestamp, Meta: e.Meta}
	case provider.Chunk[messages.ToolCallMessage]:
		return Chunk[messages.ToolCallMessage]{RunID: e.RunID, TurnID: e.TurnID, Chunk: e.Chunk, Sender: sender, Timestamp: e.Timestamp, Meta: e.Meta}
	case provider.Response[messages.AssistantMessage]:
		return Response[messages.AssistantMessage]{RunID: e.RunID, TurnID: e.TurnID, Response: e.Response, Sender: sender, Timestamp: e.Timestamp, Meta: withUsage(e.Meta, e.Usage.PromptTokens, e.Usage.CompletionTokens, e.Usage.TotalTokens)}
	case provider.Response[messages.ToolCallMessage]:
		return Response[messages.ToolCallMessage]{RunID: e.RunID, TurnID: e.TurnID, Response: e.Response, Sender: sender, Timestamp: e.Timestamp, Meta: withUsage(e.Meta, e.Usage.PromptTokens, e.Usage.CompletionTokens, e.Usage.TotalTokens)}
	case provider.Error:
		return Error{RunID: e.RunID, TurnID: e.TurnID, Err: e.Err, Sender: sender, Timestamp: e.Timestamp, Meta: e.Meta}
	default:
		return Error{Err: fmt.Errorf("unknown stream event: %T", ev), Sender: sender}
	}
}

func withUsage(meta gjson.Result, prompt, completion, total int64) gjson.Result {
	if total == 0 {
		return meta
	}
	raw := meta.Raw
	if !meta.IsObject() {
		raw = `{}`
	}
	raw, _ = sjson.Set(raw, "usage.prompt_tokens", prompt)
	raw, _ = sjson.Set(raw, "usage.completion_tokens", completion)
	raw, _ = sjson.Set(raw, "usage.total_tokens", total)
	return gjson.Parse(raw)
}

func parse(data []byte, want string) (gjson.Result, error) {
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, errors.New("invalid json")
	}
	doc := gjson.ParseBytes(data)
	typ := doc.Get("type")
	if !typ.Exists() {
		return gjson.Result{}, errors.New("missing required field 'type'")
	}
	if typ.String() != want {
		return gjson.Result{}, fmt.Errorf("expected type %q, got %q", want, typ.String())
	}
	return doc, nil
}

func readIDs(doc gjson.Result) (runID, turnID uuid.UUID, err error) {
	if runID, err = readUUID(doc, "run_id"); err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	if turnID, err = readUUID(doc, "turn_id"); err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return runID, turnID, nil
}

func readUUID(doc gjson.Result, field string) (uuid.UUID, error) {
	v := doc.Get(field)
	if !v.Exists() {
		return uuid.Nil, fmt.Errorf("missing required field '%s'", field)
	}
	id, err := uuid.Parse(v.String())
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s: %w", field, err)
	}
	return id, nil
}

func readPayload[T messages.ModelMessage](doc gjson.Result, field string) (T, error) {
	var zero T
	v := doc.Get(field)
	if !v.Exists() {
		return zero, fmt.Errorf("missing required field '%s'", field)
	}
	payload, err := messages.UnmarshalPayload([]byte(v.Raw))
	if err != nil {
		return zero, fmt.Errorf("invalid %s: %w", field, err)
	}
	typed, ok := payload.(T)
	if !ok {
		return zero, fmt.Errorf("invalid %s: unexpected payload %T", field, payload)
	}
	return typed, nil
}

func readTrailer(doc gjson.Result) (sender string, ts strfmt.DateTime, meta gjson.Result, err error) {
	sender = doc.Get("sender").String()
	if v := doc.Get("timestamp"); v.Exists() {
		if ts, err = strfmt.ParseDateTime(v.String()); err != nil {
			return "", strfmt.DateTime{}, gjson.Result{}, fmt.Errorf("invalid timestamp: %w", err)
		}
	}
	if m := doc.Get("meta"); m.Exists() {
		meta = m
	}
	return sender, ts, meta, nil
}

func setIDs(prefab []byte, runID, turnID uuid.UUID) ([]byte, error) {
	result, err := sjson.SetBytes(prefab, "run_id", runID.String())
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(result, "turn_id", turnID.String())
}

func setTrailer(result []byte, sender string, ts strfmt.DateTime, meta gjson.Result) ([]byte, error) {
	var err error
	if sender != "" {
		if result, err = sjson.SetBytes(result, "sender", sender); err != nil {
			return nil, err
		}
	}
	if !time.Time(ts).IsZero() {
		if result, err = sjson.SetBytes(result, "timestamp", ts.String()); err != nil {
			return nil, err
		}
	}
	if meta.Exists() {
		if result, err = sjson.SetRawBytes(result, "meta", []byte(meta.Raw)); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func marshalEvent(prefab []byte, runID, turnID uuid.UUID, field string, payload messages.ModelMessage, sender string, ts strfmt.DateTime, meta gjson.Result) ([]byte, error) {
	result, err := setIDs(prefab, runID, turnID)
	if err != nil {
		return nil, err
	}
	pb, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", field, err)
	}
	if result, err = sjson.SetRawBytes(result, field, pb); err != nil {
		return nil, err
	}
	return setTrailer(result, sender, ts, meta)
}
