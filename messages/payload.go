package messages

import (
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	TypeUser         = "user"
	TypeAssistant    = "assistant"
	TypeToolCall     = "tool_call"
	TypeToolResponse = "tool_response"
)

var (
	userJSON         = []byte(`{"type":"user"}`)
	assistantJSON    = []byte(`{"type":"assistant"}`)
	toolCallJSON     = []byte(`{"type":"tool_call"}`)
	toolResponseJSON = []byte(`{"type":"tool_response"}`)
)

// UserMessage is a prompt typed by a person.
type UserMessage struct {
	Content string `json:"content"`
}

func (UserMessage) message() {}
func (UserMessage) request() {}

func (u UserMessage) MarshalJSON() ([]byte, error) {
	return sjson.SetBytes(userJSON, "content", u.Content)
}

func (u *UserMessage) UnmarshalJSON(data []byte) error {
	if err := expectType(data, TypeUser); err != nil {
		return err
	}
	content := gjson.GetBytes(data, "content")
	if !content.Exists() {
		return errors.New("missing required field 'content'")
	}
	u.Content = content.String()
	return nil
}

// AssistantMessage is a textual model reply. Refusal is set when the model
// declined to answer.
type AssistantMessage struct {
	Content string `json:"content"`
	Refusal string `json:"refusal,omitempty"`
}

func (AssistantMessage) message()  {}
func (AssistantMessage) response() {}

func (a AssistantMessage) MarshalJSON() ([]byte, error) {
	result, err := sjson.SetBytes(assistantJSON, "content", a.Content)
	if err != nil {
		return nil, err
	}
	if a.Refusal != "" {
		return sjson.SetBytes(result, "refusal", a.Refusal)
	}
	return result, nil
}

func (a *AssistantMessage) UnmarshalJSON(data []byte) error {
	if err := expectType(data, TypeAssistant); err != nil {
		return err
	}
	a.Content = gjson.GetBytes(data, "content").String()
	a.Refusal = gjson.GetBytes(data, "refusal").String()
	return nil
}

// ToolCallData is a single function invocation requested by the model.
// Arguments is the raw JSON object the model produced.
type ToolCallData struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCallMessage is a model reply asking for one or more tool invocations.
type ToolCallMessage struct {
	ToolCalls []ToolCallData `json:"tool_calls"`
}

func (ToolCallMessage) message()  {}
func (ToolCallMessage) response() {}

func (t ToolCallMessage) MarshalJSON() ([]byte, error) {
	calls := t.ToolCalls
	if calls == nil {
		calls = []ToolCallData{}
	}
	b, err := json.Marshal(calls)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tool calls: %w", err)
	}
	return sjson.SetRawBytes(toolCallJSON, "tool_calls", b)
}

func (t *ToolCallMessage) UnmarshalJSON(data []byte) error {
	if err := expectType(data, TypeToolCall); err != nil {
		return err
	}
	calls := gjson.GetBytes(data, "tool_calls")
	if !calls.Exists() {
		return errors.New("missing required field 'tool_calls'")
	}
	if !calls.IsArray() {
		return errors.New("field 'tool_calls' must be an array")
	}
	t.ToolCalls = t.ToolCalls[:0]
	for _, c := range calls.Array() {
		t.ToolCalls = append(t.ToolCalls, ToolCallData{
			ID:        c.Get("id").String(),
			Name:      c.Get("name").String(),
			Arguments: c.Get("arguments").String(),
		})
	}
	return nil
}

// ToolResponse carries the output of a tool back to the model.
type ToolResponse struct {
	ToolCallID string `json:"tool_call_id"`
	ToolName   string `json:"tool_name"`
	Content    string `json:"content"`
}

func (ToolResponse) message() {}
func (ToolResponse) request() {}

func (t ToolResponse) MarshalJSON() ([]byte, error) {
	result, err := sjson.SetBytes(toolResponseJSON, "tool_call_id", t.ToolCallID)
	if err != nil {
		return nil, err
	}
	if result, err = sjson.SetBytes(result, "tool_name", t.ToolName); err != nil {
		return nil, err
	}
	return sjson.SetBytes(result, "content", t.Content)
}

func (t *ToolResponse) UnmarshalJSON(data []byte) error {
	if err := expectType(data, TypeToolResponse); err != nil {
		return err
	}
	id := gjson.GetBytes(data, "tool_call_id")
	if !id.Exists() {
		return errors.New("missing required field 'tool_call_id'")
	}
	t.ToolCallID = id.String()
	t.ToolName = gjson.GetBytes(data, "tool_name").String()
	t.Content = gjson.GetBytes(data, "content").String()
	return nil
}

// UnmarshalPayload decodes any payload by its type discriminator.
func UnmarshalPayload(data []byte) (ModelMessage, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid json: %s", data)
	}
	typ := gjson.GetBytes(data, "type")
	if !typ.Exists() {
		return nil, errors.New("missing required field 'type'")
	}

	switch typ.String() {
	case TypeUser:
		var m UserMessage
		err := m.UnmarshalJSON(data)
		return m, err
	case TypeAssistant:
		var m AssistantMessage
		err := m.UnmarshalJSON(data)
		return m, err
	case TypeToolCall:
		var m ToolCallMessage
		err := m.UnmarshalJSON(data)
		return m, err
	case TypeToolResponse:
		var m ToolResponse
		err := m.UnmarshalJSON(data)
		return m, err
	default:
		return nil, fmt.Errorf("unknown message type: %s", typ.String())
	}
}

func marshalPayload(p ModelMessage) ([]byte, error) {
	switch v := p.(type) {
	case UserMessage:
		return v.MarshalJSON()
	case AssistantMessage:
		return v.MarshalJSON()
	case ToolCallMessage:
		return v.MarshalJSON()
	case ToolResponse:
		return v.MarshalJSON()
	default:
		return nil, fmt.Errorf("unknown message type: %T", p)
	}
}

func expectType(data []byte, want string) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}
	typ := gjson.GetBytes(data, "type")
	if !typ.Exists() {
		return errors.New("missing required field 'type'")
	}
	if typ.String() != want {
		return fmt.Errorf("expected message type %q, got %q", want, typ.String())
	}
	return nil
}
