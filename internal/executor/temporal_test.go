package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/phdev/Final-Assignment-Template/agent"
	"github.com/phdev/Final-Assignment-Template/internal/broker"
	"github.com/phdev/Final-Assignment-Template/internal/registry"
	"github.com/phdev/Final-Assignment-Template/internal/shorttermmemory"
	"github.com/phdev/Final-Assignment-Template/messages"
	"github.com/phdev/Final-Assignment-Template/pkg/uuidx"
	"github.com/phdev/Final-Assignment-Template/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/mocks"
	"go.temporal.io/sdk/testsuite"
)

type testEnv struct {
	env    *testsuite.TestWorkflowEnvironment
	agents *registry.Registry[agent.Agent]
	broker broker.Broker
}

func setupTestEnvironment(t *testing.T, prov provider.Provider) *testEnv {
	t.Helper()

	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()
	env.SetTestTimeout(time.Minute)

	agents := registry.New[agent.Agent]()
	agents.Add("calculator_agent", testAgent(prov))

	b := broker.Local()
	Register(env, NewActivities(agents, b))
	return &testEnv{env: env, agents: agents, broker: b}
}

func workflowCommand(maxTurns int) (WorkflowCommand, *shorttermmemory.Aggregator) {
	thread := shorttermmemory.New()
	thread.AddUserPrompt(messages.New().WithSender("user").UserPrompt("What is 2 + 2?"))
	forked := thread.Fork()
	return WorkflowCommand{
		RunID:      uuidx.New(),
		Agent:      "calculator_agent",
		MaxTurns:   maxTurns,
		Checkpoint: forked.Checkpoint(),
	}, thread
}

func TestAnswerWorkflow(t *testing.T) {
	t.Run("answers after a tool call", func(t *testing.T) {
		prov := &scriptedProvider{replies: [][]provider.StreamEvent{
			toolCalls(calculatorCall("c1", "2 + 2"), calculatorCall("c2", "6 * 7")),
			answer("4 and 42"),
		}}
		te := setupTestEnvironment(t, prov)
		cmd, thread := workflowCommand(5)

		hook := &recordingHook{}
		sub, err := te.broker.Topic(context.Background(), cmd.RunID.String()).Subscribe(context.Background(), hook)
		require.NoError(t, err)
		defer sub.Unsubscribe()

		te.env.ExecuteWorkflow(AnswerWorkflow, cmd)
		require.True(t, te.env.IsWorkflowCompleted())
		require.NoError(t, te.env.GetWorkflowError())

		var result WorkflowResult
		require.NoError(t, te.env.GetWorkflowResult(&result))
		assert.Equal(t, "4 and 42", result.Answer)

		result.Checkpoint.MergeInto(thread)
		msgs := thread.Messages()
		require.Len(t, msgs, 5)
		first, ok := messages.As[messages.ToolResponse](msgs[2])
		require.True(t, ok)
		assert.Equal(t, "4", first.Payload.Content)
		second, ok := messages.As[messages.ToolResponse](msgs[3])
		require.True(t, ok)
		assert.Equal(t, "42", second.Payload.Content)
		last, ok := thread.LastAssistantMessage()
		require.True(t, ok)
		assert.Equal(t, "4 and 42", last.Payload.Content)
		assert.Equal(t, usage(15, 3), thread.Usage())

		// the second completion saw both tool responses
		assert.Equal(t, []int{1, 4}, prov.threadLens())

		assert.Eventually(t, func() bool {
			return hook.answerCount() == 1 && len(hook.responseContents()) == 2
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("sequential tool calls", func(t *testing.T) {
		prov := &scriptedProvider{replies: [][]provider.StreamEvent{
			toolCalls(calculatorCall("c1", "2 + 2"), messages.ToolCallData{ID: "c2", Name: "search", Arguments: "{}"}),
			answer("4"),
		}}
		te := setupTestEnvironment(t, prov)
		te.agents.Add("calculator_agent", testAgent(prov, agent.ParallelToolCalls(false)))
		cmd, thread := workflowCommand(5)

		te.env.ExecuteWorkflow(AnswerWorkflow, cmd)
		require.True(t, te.env.IsWorkflowCompleted())
		require.NoError(t, te.env.GetWorkflowError())

		var result WorkflowResult
		require.NoError(t, te.env.GetWorkflowResult(&result))
		result.Checkpoint.MergeInto(thread)

		var contents []string
		for m := range thread.MessagesIter() {
			if r, ok := messages.As[messages.ToolResponse](m); ok {
				contents = append(contents, r.Payload.Content)
			}
		}
		assert.Equal(t, []string{"4", "ERROR: unknown tool search"}, contents)
		assert.False(t, prov.calls()[0].ParallelToolCalls)
	})

	t.Run("max turns", func(t *testing.T) {
		prov := &scriptedProvider{replies: [][]provider.StreamEvent{
			toolCalls(calculatorCall("c1", "2 + 2")),
			answer("too late"),
		}}
		te := setupTestEnvironment(t, prov)
		cmd, _ := workflowCommand(1)

		te.env.ExecuteWorkflow(AnswerWorkflow, cmd)
		require.True(t, te.env.IsWorkflowCompleted())
		err := te.env.GetWorkflowError()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no answer after 1 turns")
		assert.Len(t, prov.calls(), 1)
	})

	t.Run("unknown agent", func(t *testing.T) {
		te := setupTestEnvironment(t, &scriptedProvider{})
		cmd, _ := workflowCommand(3)
		cmd.Agent = "nobody"

		te.env.ExecuteWorkflow(AnswerWorkflow, cmd)
		require.True(t, te.env.IsWorkflowCompleted())
		err := te.env.GetWorkflowError()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "agent nobody is not registered")
	})
}

func TestSubmit(t *testing.T) {
	cmd, _ := workflowCommand(3)

	t.Run("starts the workflow and waits for the answer", func(t *testing.T) {
		run := &mocks.WorkflowRun{}
		run.On("GetID").Return(WorkflowID(cmd.RunID)).Maybe()
		run.On("Get", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				*args.Get(1).(*WorkflowResult) = WorkflowResult{Answer: "4", Checkpoint: cmd.Checkpoint}
			}).
			Return(nil)

		c := &mocks.Client{}
		c.On("ExecuteWorkflow", mock.Anything, mock.MatchedBy(func(o client.StartWorkflowOptions) bool {
			return o.ID == "answer-"+cmd.RunID.String() &&
				o.TaskQueue == "calculator-agent" &&
				o.WorkflowIDReusePolicy == enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE_FAILED_ONLY
		}), mock.Anything, cmd).Return(run, nil)

		result, err := Submit(context.Background(), c, "calculator-agent", cmd)
		require.NoError(t, err)
		assert.Equal(t, "4", result.Answer)
		c.AssertExpectations(t)
		run.AssertExpectations(t)
	})

	t.Run("start failure", func(t *testing.T) {
		c := &mocks.Client{}
		c.On("ExecuteWorkflow", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.New("unavailable"))

		_, err := Submit(context.Background(), c, "calculator-agent", cmd)
		assert.ErrorContains(t, err, "failed to start workflow: unavailable")
	})

	t.Run("workflow failure", func(t *testing.T) {
		run := &mocks.WorkflowRun{}
		run.On("GetID").Return(WorkflowID(cmd.RunID))
		run.On("Get", mock.Anything, mock.Anything).Return(errors.New("max turns"))

		c := &mocks.Client{}
		c.On("ExecuteWorkflow", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(run, nil)

		_, err := Submit(context.Background(), c, "calculator-agent", cmd)
		assert.ErrorContains(t, err, "max turns")
	})
}

func TestTemporalRun(t *testing.T) {
	thread := shorttermmemory.New()
	thread.AddUserPrompt(messages.New().WithSender("user").UserPrompt("What is 2 + 2?"))
	hook := &recordingHook{}

	cmd, err := NewRunCommand(testAgent(&scriptedProvider{}), thread, hook)
	require.NoError(t, err)

	reply := shorttermmemory.New()
	reply.AddAssistantMessage(messages.New().WithSender("calculator_agent").AssistantMessage("4"))

	run := &mocks.WorkflowRun{}
	run.On("GetID").Return(WorkflowID(cmd.ID())).Maybe()
	run.On("Get", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			*args.Get(1).(*WorkflowResult) = WorkflowResult{Answer: "4", Checkpoint: reply.Checkpoint()}
		}).
		Return(nil)

	c := &mocks.Client{}
	c.On("ExecuteWorkflow", mock.Anything, mock.Anything, mock.Anything, mock.MatchedBy(func(wc WorkflowCommand) bool {
		return wc.RunID == cmd.ID() && wc.Agent == "calculator_agent" && wc.MaxTurns == DefaultMaxTurns
	})).Return(run, nil)

	fut := NewFuture(DefaultUnmarshal[string]())
	require.NoError(t, NewTemporal(c, "calculator-agent", broker.Local()).Run(context.Background(), cmd, fut))

	got, err := fut.Get()
	require.NoError(t, err)
	assert.Equal(t, "4", got)
	assert.Equal(t, []string{"4"}, hook.results)
	assert.Equal(t, 2, thread.Len())
}
