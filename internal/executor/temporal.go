package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phdev/Final-Assignment-Template/agent"
	"github.com/phdev/Final-Assignment-Template/events"
	"github.com/phdev/Final-Assignment-Template/internal/broker"
	"github.com/phdev/Final-Assignment-Template/internal/registry"
	"github.com/phdev/Final-Assignment-Template/internal/shorttermmemory"
	"github.com/phdev/Final-Assignment-Template/messages"
	"github.com/phdev/Final-Assignment-Template/provider"
	"github.com/phdev/Final-Assignment-Template/types"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

var _ Executor = &Temporal{}

// Temporal runs commands as AnswerWorkflow executions on a worker. Events the
// worker publishes on the run's topic are forwarded to the command's hook.
type Temporal struct {
	client    client.Client
	taskQueue string
	broker    broker.Broker
}

// NewTemporal creates a durable executor. The broker may be nil, in which
// case only the final result reaches the hook.
func NewTemporal(c client.Client, taskQueue string, b broker.Broker) *Temporal {
	return &Temporal{client: c, taskQueue: taskQueue, broker: b}
}

func (t *Temporal) Run(ctx context.Context, cmd RunCommand, promise Promise) error {
	if err := cmd.Validate(); err != nil {
		promise.Error(err)
		return err
	}

	if t.broker != nil {
		sub, err := t.broker.Topic(ctx, cmd.ID().String()).Subscribe(ctx, cmd.Hook)
		if err != nil {
			promise.Error(err)
			return err
		}
		defer sub.Unsubscribe()
	}

	forked := cmd.Thread.Fork()
	result, err := Submit(ctx, t.client, t.taskQueue, WorkflowCommand{
		RunID:            cmd.ID(),
		Agent:            cmd.Agent.Name(),
		Stream:           cmd.Stream,
		MaxTurns:         cmd.MaxTurns,
		ContextVariables: cmd.ContextVariables,
		Checkpoint:       forked.Checkpoint(),
	})
	if err != nil {
		if ee, hasErr := wrapErr(cmd.ID(), forked.ID(), cmd.Agent.Name(), err); hasErr {
			cmd.Hook.OnError(ctx, ee)
		}
		promise.Error(err)
		return err
	}

	result.Checkpoint.MergeInto(cmd.Thread)
	cmd.Hook.OnResult(ctx, result.Answer)
	promise.Complete(result.Answer)
	return nil
}

// WorkflowID is the workflow ID used for a run.
func WorkflowID(runID uuid.UUID) string {
	return "answer-" + runID.String()
}

// Submit starts AnswerWorkflow on taskQueue and waits for its answer. A run
// ID can only be submitted again after the previous execution failed.
func Submit(ctx context.Context, c client.Client, taskQueue string, cmd WorkflowCommand) (WorkflowResult, error) {
	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:                    WorkflowID(cmd.RunID),
		TaskQueue:             taskQueue,
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE_FAILED_ONLY,
	}, AnswerWorkflow, cmd)
	if err != nil {
		return WorkflowResult{}, fmt.Errorf("failed to start workflow: %w", err)
	}

	var result WorkflowResult
	if err := run.Get(ctx, &result); err != nil {
		return WorkflowResult{}, fmt.Errorf("workflow %s failed: %w", run.GetID(), err)
	}
	return result, nil
}

// Registrar is the part of a Temporal worker that registers code.
type Registrar interface {
	RegisterWorkflow(w any)
	RegisterActivity(a any)
}

// Register adds AnswerWorkflow and the activities to a worker.
func Register(r Registrar, activities *Activities) {
	r.RegisterWorkflow(AnswerWorkflow)
	r.RegisterActivity(activities)
}

// WorkflowCommand is the serializable form of a RunCommand. The agent is
// referenced by name and resolved on the worker.
type WorkflowCommand struct {
	RunID            uuid.UUID                  `json:"run_id"`
	Agent            string                     `json:"agent"`
	Stream           bool                       `json:"stream"`
	MaxTurns         int                        `json:"max_turns"`
	ContextVariables types.ContextVars          `json:"context_variables,omitempty"`
	Checkpoint       shorttermmemory.Checkpoint `json:"checkpoint"`
}

type WorkflowResult struct {
	Answer     string                     `json:"answer"`
	Checkpoint shorttermmemory.Checkpoint `json:"checkpoint"`
}

type CompletionRequest struct {
	RunID            uuid.UUID                  `json:"run_id"`
	Agent            string                     `json:"agent"`
	Stream           bool                       `json:"stream"`
	ContextVariables types.ContextVars          `json:"context_variables,omitempty"`
	Checkpoint       shorttermmemory.Checkpoint `json:"checkpoint"`
}

// CompletionResult holds exactly one of Answer or ToolCalls.
type CompletionResult struct {
	Answer            *messages.Message[messages.AssistantMessage] `json:"answer,omitempty"`
	ToolCalls         *messages.Message[messages.ToolCallMessage]  `json:"tool_calls,omitempty"`
	ParallelToolCalls bool                                         `json:"parallel_tool_calls"`
	Usage             shorttermmemory.Usage                        `json:"usage"`
}

type ToolCallRequest struct {
	RunID            uuid.UUID             `json:"run_id"`
	TurnID           uuid.UUID             `json:"turn_id"`
	Agent            string                `json:"agent"`
	Call             messages.ToolCallData `json:"call"`
	ContextVariables types.ContextVars     `json:"context_variables,omitempty"`
}

var (
	completionActivityOptions = workflow.ActivityOptions{
		StartToCloseTimeout:    5 * time.Minute,
		ScheduleToStartTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    1 * time.Second,
			MaximumInterval:    10 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumAttempts:    3,
		},
	}

	toolActivityOptions = workflow.ActivityOptions{
		StartToCloseTimeout:    1 * time.Minute,
		ScheduleToStartTimeout: 10 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    500 * time.Millisecond,
			MaximumInterval:    5 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumAttempts:    3,
		},
	}
)

// AnswerWorkflow is the durable reasoning loop. Each model call and each tool
// call is an activity, so a worker restart resumes from the last finished
// step.
func AnswerWorkflow(ctx workflow.Context, cmd WorkflowCommand) (WorkflowResult, error) {
	logger := workflow.GetLogger(ctx)

	maxTurns := cmd.MaxTurns
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}

	thread := shorttermmemory.Restore(cmd.Checkpoint)
	cctx := workflow.WithActivityOptions(ctx, completionActivityOptions)
	tctx := workflow.WithActivityOptions(ctx, toolActivityOptions)

	var a *Activities
	for turn := range maxTurns {
		logger.Debug("requesting completion", "agent", cmd.Agent, "turn", turn)

		var completion CompletionResult
		err := workflow.ExecuteActivity(cctx, a.Complete, CompletionRequest{
			RunID:            cmd.RunID,
			Agent:            cmd.Agent,
			Stream:           cmd.Stream,
			ContextVariables: cmd.ContextVariables,
			Checkpoint:       thread.Checkpoint(),
		}).Get(ctx, &completion)
		if err != nil {
			return WorkflowResult{}, err
		}
		thread.AddUsage(&completion.Usage)

		switch {
		case completion.Answer != nil:
			thread.AddAssistantMessage(*completion.Answer)
			return WorkflowResult{
				Answer:     answerOf(completion.Answer.Payload),
				Checkpoint: thread.Checkpoint(),
			}, nil

		case completion.ToolCalls != nil:
			thread.AddToolCall(*completion.ToolCalls)

			calls := completion.ToolCalls.Payload.ToolCalls
			futures := make([]workflow.Future, len(calls))
			for i, call := range calls {
				futures[i] = workflow.ExecuteActivity(tctx, a.CallTool, ToolCallRequest{
					RunID:            cmd.RunID,
					TurnID:           thread.ID(),
					Agent:            cmd.Agent,
					Call:             call,
					ContextVariables: cmd.ContextVariables,
				})
				if !completion.ParallelToolCalls {
					if err := futures[i].Get(ctx, nil); err != nil {
						return WorkflowResult{}, err
					}
				}
			}
			for _, f := range futures {
				var resp messages.Message[messages.ToolResponse]
				if err := f.Get(ctx, &resp); err != nil {
					return WorkflowResult{}, err
				}
				thread.AddToolResponse(resp)
			}

		default:
			return WorkflowResult{}, temporal.NewNonRetryableApplicationError("completion returned no message", "EmptyCompletion", nil)
		}
	}

	return WorkflowResult{}, temporal.NewNonRetryableApplicationError(
		fmt.Sprintf("no answer after %d turns", maxTurns), "MaxTurns", ErrMaxTurns)
}

// Activities are the side effects of AnswerWorkflow. Agents are resolved by
// name from the registry, and every hook callback is published on the run's
// topic when a broker is configured.
type Activities struct {
	agents *registry.Registry[agent.Agent]
	broker broker.Broker
}

func NewActivities(agents *registry.Registry[agent.Agent], b broker.Broker) *Activities {
	return &Activities{agents: agents, broker: b}
}

func (a *Activities) hook(ctx context.Context, runID uuid.UUID) events.Hook {
	if a.broker == nil {
		return events.NoopHook{}
	}
	return events.NewPublishingHook(a.broker.Topic(ctx, runID.String()), runID)
}

func (a *Activities) agent(name string) (agent.Agent, error) {
	ag, ok := a.agents.Get(name)
	if !ok {
		return nil, temporal.NewNonRetryableApplicationError(fmt.Sprintf("agent %s is not registered", name), "AgentNotFound", nil)
	}
	return ag, nil
}

// Complete performs one model call for the thread in the request.
func (a *Activities) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	log := activity.GetLogger(ctx)
	log.Info("running completion", "agent", req.Agent)

	ag, err := a.agent(req.Agent)
	if err != nil {
		return CompletionResult{}, err
	}

	hook := a.hook(ctx, req.RunID)
	response, err := complete(ctx, completionParams{
		runID:       req.RunID,
		agent:       ag,
		thread:      shorttermmemory.Restore(req.Checkpoint),
		contextVars: req.ContextVariables,
		stream:      req.Stream,
		hook:        hook,
	})
	if err != nil {
		var perr provider.Error
		if errors.As(err, &perr) {
			hook.OnError(ctx, events.Error{
				RunID:     perr.RunID,
				TurnID:    perr.TurnID,
				Err:       perr.Err,
				Sender:    ag.Name(),
				Timestamp: perr.Timestamp,
			})
		}
		return CompletionResult{}, err
	}

	switch response := response.(type) {
	case provider.Response[messages.AssistantMessage]:
		msg := response.Message(ag.Name())
		hook.OnAssistantMessage(ctx, msg)
		return CompletionResult{Answer: &msg, Usage: response.Usage}, nil
	case provider.Response[messages.ToolCallMessage]:
		msg := response.Message(ag.Name())
		hook.OnToolCallMessage(ctx, msg)
		return CompletionResult{
			ToolCalls:         &msg,
			ParallelToolCalls: ag.ParallelToolCalls(),
			Usage:             response.Usage,
		}, nil
	default:
		return CompletionResult{}, fmt.Errorf("unexpected response %T", response)
	}
}

// CallTool runs a single tool call. Tool failures are part of the response,
// so the activity only fails when the agent is unknown.
func (a *Activities) CallTool(ctx context.Context, req ToolCallRequest) (messages.Message[messages.ToolResponse], error) {
	log := activity.GetLogger(ctx)
	log.Info("calling tool", "name", req.Call.Name, "args", req.Call.Arguments)

	ag, err := a.agent(req.Agent)
	if err != nil {
		return messages.Message[messages.ToolResponse]{}, err
	}

	msg := callTool(ctx, toolCallParams{
		runID:       req.RunID,
		turnID:      req.TurnID,
		tools:       toolsByName(ag),
		contextVars: req.ContextVariables,
	}, req.Call)
	a.hook(ctx, req.RunID).OnToolCallResponse(ctx, msg)
	return msg, nil
}
