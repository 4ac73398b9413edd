package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phdev/Final-Assignment-Template/internal/shorttermmemory"
	"github.com/phdev/Final-Assignment-Template/messages"
	"github.com/phdev/Final-Assignment-Template/pkg/slogx"
	"github.com/phdev/Final-Assignment-Template/provider"
	"github.com/phdev/Final-Assignment-Template/types"
)

var _ Executor = &Local{}

// Local runs the reasoning loop in the calling goroutine.
type Local struct {
	logger *slog.Logger
}

func NewLocal() *Local {
	return &Local{logger: slog.Default().With(slogx.LoggerName("executor"))}
}

func (l *Local) Run(ctx context.Context, command RunCommand, promise Promise) error {
	if err := command.Validate(); err != nil {
		promise.Error(err)
		return err
	}

	thread := command.Thread.Fork()
	defer command.Thread.Join(thread)

	result, err := l.runReactorLoop(ctx, reactorParams{
		command:     command,
		thread:      thread,
		contextVars: command.initializeContextVars(),
	})
	if err != nil {
		if ee, hasErr := wrapErr(command.ID(), thread.ID(), command.Agent.Name(), err); hasErr {
			command.Hook.OnError(ctx, ee)
		}
		promise.Error(err)
		return err
	}

	command.Hook.OnResult(ctx, result)
	promise.Complete(result)
	return nil
}

type reactorParams struct {
	command     RunCommand
	thread      *shorttermmemory.Aggregator
	contextVars types.ContextVars
}

func (l *Local) runReactorLoop(ctx context.Context, params reactorParams) (string, error) {
	agent := params.command.Agent
	tools := toolsByName(agent)

	for turn := range params.command.MaxTurns {
		l.logger.DebugContext(ctx, "requesting completion",
			slog.String("run_id", params.command.ID().String()),
			slog.String("agent", agent.Name()),
			slog.Int("turn", turn),
		)

		response, err := complete(ctx, completionParams{
			runID:       params.command.ID(),
			agent:       agent,
			thread:      params.thread,
			contextVars: params.contextVars,
			stream:      params.command.Stream,
			hook:        params.command.Hook,
		})
		if err != nil {
			return "", err
		}

		switch response := response.(type) {
		case provider.Response[messages.AssistantMessage]:
			params.thread.AddUsage(&response.Usage)
			msg := response.Message(agent.Name())
			params.thread.AddAssistantMessage(msg)
			params.command.Hook.OnAssistantMessage(ctx, msg)
			return answerOf(msg.Payload), nil

		case provider.Response[messages.ToolCallMessage]:
			params.thread.AddUsage(&response.Usage)
			msg := response.Message(agent.Name())
			params.thread.AddToolCall(msg)
			params.command.Hook.OnToolCallMessage(ctx, msg)

			responses, err := callTools(ctx, toolCallParams{
				runID:       params.command.ID(),
				turnID:      params.thread.ID(),
				tools:       tools,
				contextVars: params.contextVars,
			}, msg.Payload.ToolCalls, agent.ParallelToolCalls())
			if err != nil {
				return "", err
			}
			for _, resp := range responses {
				params.thread.AddToolResponse(resp)
				params.command.Hook.OnToolCallResponse(ctx, resp)
			}

		default:
			return "", fmt.Errorf("unexpected response %T", response)
		}
	}
	return "", fmt.Errorf("%w: no answer after %d turns", ErrMaxTurns, params.command.MaxTurns)
}

// answerOf is the text of a final reply. A refusal stands in for the answer
// when the model declined.
func answerOf(msg messages.AssistantMessage) string {
	if msg.Content == "" && msg.Refusal != "" {
		return msg.Refusal
	}
	return msg.Content
}
