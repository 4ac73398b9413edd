package messages

import (
	"fmt"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ModelMessage is any payload that can appear in a conversation thread.
type ModelMessage interface {
	message()
}

// Request is a payload sent to the model: user input or tool output.
type Request interface {
	ModelMessage
	request()
}

// Response is a payload produced by the model.
type Response interface {
	ModelMessage
	response()
}

// Message wraps a payload with the run it belongs to and who produced it.
type Message[T ModelMessage] struct {
	RunID     uuid.UUID       `json:"run_id"`
	TurnID    uuid.UUID       `json:"turn_id"`
	Sender    string          `json:"sender,omitempty"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
	Meta      gjson.Result    `json:"meta,omitempty"`
	Payload   T               `json:"payload"`
}

// Erase drops the static payload type so messages of different kinds can
// share a slice.
func (m Message[T]) Erase() Message[ModelMessage] {
	return Message[ModelMessage]{
		RunID:     m.RunID,
		TurnID:    m.TurnID,
		Sender:    m.Sender,
		Timestamp: m.Timestamp,
		Meta:      m.Meta,
		Payload:   m.Payload,
	}
}

// As recovers a typed message from an erased one.
func As[T ModelMessage](m Message[ModelMessage]) (Message[T], bool) {
	p, ok := m.Payload.(T)
	if !ok {
		return Message[T]{}, false
	}
	return Message[T]{
		RunID:     m.RunID,
		TurnID:    m.TurnID,
		Sender:    m.Sender,
		Timestamp: m.Timestamp,
		Meta:      m.Meta,
		Payload:   p,
	}, true
}

// MarshalJSON flattens the payload fields next to the envelope fields. The
// payload's type discriminator ends up at the top level.
func (m Message[T]) MarshalJSON() ([]byte, error) {
	if any(m.Payload) == nil {
		return nil, fmt.Errorf("message has no payload")
	}
	result, err := marshalPayload(m.Payload)
	if err != nil {
		return nil, err
	}

	if m.RunID != uuid.Nil {
		if result, err = sjson.SetBytes(result, "run_id", m.RunID.String()); err != nil {
			return nil, err
		}
	}
	if m.TurnID != uuid.Nil {
		if result, err = sjson.SetBytes(result, "turn_id", m.TurnID.String()); err != nil {
			return nil, err
		}
	}
	if m.Sender != "" {
		if result, err = sjson.SetBytes(result, "sender", m.Sender); err != nil {
			return nil, err
		}
	}
	if !m.Timestamp.IsZero() {
		if result, err = sjson.SetBytes(result, "timestamp", m.Timestamp.String()); err != nil {
			return nil, err
		}
	}
	if m.Meta.Exists() {
		if result, err = sjson.SetRawBytes(result, "meta", []byte(m.Meta.Raw)); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (m *Message[T]) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}

	payload, err := UnmarshalPayload(data)
	if err != nil {
		return err
	}
	p, ok := payload.(T)
	if !ok {
		return fmt.Errorf("unexpected message type %T for %T", payload, m.Payload)
	}

	var msg Message[T]
	msg.Payload = p

	if v := gjson.GetBytes(data, "run_id"); v.Exists() {
		if err := msg.RunID.UnmarshalText([]byte(v.String())); err != nil {
			return fmt.Errorf("invalid run_id: %w", err)
		}
	}
	if v := gjson.GetBytes(data, "turn_id"); v.Exists() {
		if err := msg.TurnID.UnmarshalText([]byte(v.String())); err != nil {
			return fmt.Errorf("invalid turn_id: %w", err)
		}
	}
	msg.Sender = gjson.GetBytes(data, "sender").String()
	if v := gjson.GetBytes(data, "timestamp"); v.Exists() {
		if err := msg.Timestamp.UnmarshalText([]byte(v.String())); err != nil {
			return fmt.Errorf("invalid timestamp: %w", err)
		}
	}
	if v := gjson.GetBytes(data, "meta"); v.Exists() {
		msg.Meta = v
	}

	*m = msg
	return nil
}
