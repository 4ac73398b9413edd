package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/phdev/Final-Assignment-Template/agent"
	"github.com/phdev/Final-Assignment-Template/events"
	"github.com/phdev/Final-Assignment-Template/internal/shorttermmemory"
	"github.com/phdev/Final-Assignment-Template/messages"
	"github.com/phdev/Final-Assignment-Template/provider"
	"github.com/phdev/Final-Assignment-Template/tool"
	"github.com/phdev/Final-Assignment-Template/types"
	"golang.org/x/sync/errgroup"
)

// ToolErrorPrefix starts every tool response that reports a failure back to
// the model.
const ToolErrorPrefix = "ERROR: "

func wrapErr(runID, turnID uuid.UUID, sender string, err error) (events.Error, bool) {
	if err == nil {
		return events.Error{}, false
	}
	var pErr events.Error
	if errors.As(err, &pErr) {
		return pErr, true
	}
	return events.Error{
		RunID:     runID,
		TurnID:    turnID,
		Sender:    sender,
		Err:       err,
		Timestamp: strfmt.DateTime(time.Now()),
	}, true
}

type completionParams struct {
	runID       uuid.UUID
	agent       agent.Agent
	thread      *shorttermmemory.Aggregator
	contextVars types.ContextVars
	stream      bool
	hook        events.Hook
}

// complete asks the agent's model for the next reply and drains the stream.
// Chunks go to the hook as they arrive; the final response is returned
// without being added to the thread.
func complete(ctx context.Context, params completionParams) (provider.StreamEvent, error) {
	model := params.agent.Model()
	if model == nil {
		return nil, fmt.Errorf("agent %s has no model", params.agent.Name())
	}
	prov := model.Provider()
	if prov == nil {
		return nil, fmt.Errorf("model %s has no provider", model.Name())
	}

	instructions, err := params.agent.RenderInstructions(params.contextVars)
	if err != nil {
		return nil, fmt.Errorf("failed to render instructions: %w", err)
	}

	stream, err := prov.ChatCompletion(ctx, provider.CompletionParams{
		RunID:             params.runID,
		Instructions:      instructions,
		Thread:            params.thread,
		Stream:            params.stream,
		Model:             model,
		Temperature:       model.Temperature(),
		Tools:             params.agent.Tools(),
		ParallelToolCalls: params.agent.ParallelToolCalls(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get chat completion: %w", err)
	}

	var response provider.StreamEvent
	for {
		select {
		case event, hasMore := <-stream:
			if !hasMore {
				if response == nil {
					return nil, errors.New("completion stream ended without a response")
				}
				return response, nil
			}

			switch event := event.(type) {
			case provider.Delim:
			case provider.Error:
				return nil, event
			case provider.Chunk[messages.AssistantMessage]:
				params.hook.OnAssistantChunk(ctx, event.Message(params.agent.Name()))
			case provider.Chunk[messages.ToolCallMessage]:
				params.hook.OnToolCallChunk(ctx, event.Message(params.agent.Name()))
			case provider.Response[messages.AssistantMessage], provider.Response[messages.ToolCallMessage]:
				response = event
			default:
				return nil, fmt.Errorf("unknown event type %T", event)
			}

		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// toolsByName indexes the agent's tools.
func toolsByName(a agent.Agent) map[string]tool.Definition {
	tools := make(map[string]tool.Definition, len(a.Tools()))
	for _, td := range a.Tools() {
		tools[td.Name] = td
	}
	return tools
}

type toolCallParams struct {
	runID       uuid.UUID
	turnID      uuid.UUID
	tools       map[string]tool.Definition
	contextVars types.ContextVars
}

// callTool runs one call and always produces a response. Unknown tools,
// errors and panics are reported to the model as ERROR text.
func callTool(ctx context.Context, params toolCallParams, call messages.ToolCallData) messages.Message[messages.ToolResponse] {
	var content string
	if td, ok := params.tools[call.Name]; !ok {
		content = ToolErrorPrefix + "unknown tool " + call.Name
	} else if result, err := td.Call(ctx, call.Arguments, params.contextVars); err != nil {
		content = ToolErrorPrefix + err.Error()
	} else {
		content = result
	}

	msg := messages.New().
		WithSender(call.Name).
		WithTimestamp(strfmt.DateTime(time.Now())).
		ToolResponse(call.ID, call.Name, content)
	msg.RunID = params.runID
	msg.TurnID = params.turnID
	return msg
}

// callTools runs every call of a tool-call message. With parallel set the
// calls run concurrently; responses keep the order of the calls either way.
func callTools(ctx context.Context, params toolCallParams, calls []messages.ToolCallData, parallel bool) ([]messages.Message[messages.ToolResponse], error) {
	responses := make([]messages.Message[messages.ToolResponse], len(calls))

	g, gctx := errgroup.WithContext(ctx)
	if !parallel {
		g.SetLimit(1)
	}
	for i, call := range calls {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			responses[i] = callTool(gctx, params, call)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return responses, nil
}
