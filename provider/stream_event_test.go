package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/phdev/Final-Assignment-Template/messages"
	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"
)

func TestResponseMessage(t *testing.T) {
	runID := uuid.New()
	turnID := uuid.New()
	ts := strfmt.DateTime(time.Now().UTC())
	meta := gjson.Parse(`{"k":"v"}`)

	r := Response[messages.AssistantMessage]{
		RunID:     runID,
		TurnID:    turnID,
		Response:  messages.AssistantMessage{Content: "4"},
		Timestamp: ts,
		Meta:      meta,
	}
	m := r.Message("calculator")
	assert.Equal(t, runID, m.RunID)
	assert.Equal(t, turnID, m.TurnID)
	assert.Equal(t, "calculator", m.Sender)
	assert.Equal(t, ts, m.Timestamp)
	assert.Equal(t, "v", m.Meta.Get("k").String())
	assert.Equal(t, "4", m.Payload.Content)
}

func TestChunkMessage(t *testing.T) {
	c := Chunk[messages.ToolCallMessage]{
		RunID: uuid.New(),
		Chunk: messages.ToolCallMessage{ToolCalls: []messages.ToolCallData{{ID: "c1", Name: "now_utc"}}},
	}
	m := c.Message("calculator")
	assert.Equal(t, c.RunID, m.RunID)
	assert.Equal(t, "now_utc", m.Payload.ToolCalls[0].Name)
}

func TestError(t *testing.T) {
	runID := uuid.New()
	e := Error{RunID: runID, Err: context.Canceled}
	assert.Contains(t, e.Error(), runID.String())
	assert.Contains(t, e.Error(), "context canceled")
	assert.True(t, errors.Is(e, context.Canceled))

	var asErr Error
	assert.True(t, errors.As(error(e), &asErr))
}
