package executor

import (
	"context"
	"errors"
	"sync"

	"github.com/phdev/Final-Assignment-Template/agent"
	"github.com/phdev/Final-Assignment-Template/events"
	"github.com/phdev/Final-Assignment-Template/internal/shorttermmemory"
	"github.com/phdev/Final-Assignment-Template/messages"
	"github.com/phdev/Final-Assignment-Template/provider"
	"github.com/phdev/Final-Assignment-Template/tool"
)

// scriptedProvider replies to the n-th ChatCompletion call with the n-th
// script entry.
type scriptedProvider struct {
	mu      sync.Mutex
	replies [][]provider.StreamEvent
	err     error
	params  []provider.CompletionParams
	// thread length seen by each call
	seen []int
}

func (p *scriptedProvider) ChatCompletion(_ context.Context, params provider.CompletionParams) (<-chan provider.StreamEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return nil, p.err
	}
	n := len(p.params)
	p.params = append(p.params, params)
	if params.Thread != nil {
		p.seen = append(p.seen, params.Thread.Len())
	}
	if n >= len(p.replies) {
		return nil, errors.New("no scripted reply left")
	}

	ch := make(chan provider.StreamEvent, len(p.replies[n]))
	for _, ev := range p.replies[n] {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

func (p *scriptedProvider) threadLens() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.seen...)
}

func (p *scriptedProvider) calls() []provider.CompletionParams {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]provider.CompletionParams(nil), p.params...)
}

type testModel struct {
	provider provider.Provider
}

func (m testModel) Name() string                { return "test-model" }
func (m testModel) Provider() provider.Provider { return m.provider }
func (m testModel) Temperature() float64        { return 0 }

func usage(prompt, completion int64) shorttermmemory.Usage {
	return shorttermmemory.Usage{PromptTokens: prompt, CompletionTokens: completion, TotalTokens: prompt + completion}
}

func answer(content string) []provider.StreamEvent {
	return []provider.StreamEvent{
		provider.Response[messages.AssistantMessage]{
			Response: messages.AssistantMessage{Content: content},
			Usage:    usage(10, 2),
		},
	}
}

func toolCalls(calls ...messages.ToolCallData) []provider.StreamEvent {
	return []provider.StreamEvent{
		provider.Response[messages.ToolCallMessage]{
			Response: messages.ToolCallMessage{ToolCalls: calls},
			Usage:    usage(5, 1),
		},
	}
}

func calculatorCall(id, expression string) messages.ToolCallData {
	return messages.ToolCallData{ID: id, Name: "calculator", Arguments: `{"expression":"` + expression + `"}`}
}

func testAgent(prov provider.Provider, options ...agent.Option) agent.Agent {
	base := []agent.Option{
		agent.Name("calculator_agent"),
		agent.Model(testModel{provider: prov}),
		agent.Instructions("You are a calculator."),
		agent.Tools(
			tool.Must(func(expression string) string {
				switch expression {
				case "2 + 2":
					return "4"
				case "6 * 7":
					return "42"
				}
				return "ERROR: unsupported"
			}, tool.Name("calculator"), tool.Parameters("expression")),
			tool.Must(func() (string, error) {
				return "", errors.New("clock stopped")
			}, tool.Name("now_utc")),
			tool.Must(func() string {
				panic("boom")
			}, tool.Name("explode")),
		),
	}
	return agent.Must(append(base, options...)...)
}

type recordingHook struct {
	events.NoopHook
	mu            sync.Mutex
	userPrompts   []messages.Message[messages.UserMessage]
	chunks        []messages.Message[messages.AssistantMessage]
	answers       []messages.Message[messages.AssistantMessage]
	toolCalls     []messages.Message[messages.ToolCallMessage]
	toolResponses []messages.Message[messages.ToolResponse]
	results       []string
	errs          []error
}

func (r *recordingHook) OnUserPrompt(_ context.Context, msg messages.Message[messages.UserMessage]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.userPrompts = append(r.userPrompts, msg)
}

func (r *recordingHook) OnAssistantChunk(_ context.Context, msg messages.Message[messages.AssistantMessage]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks = append(r.chunks, msg)
}

func (r *recordingHook) OnAssistantMessage(_ context.Context, msg messages.Message[messages.AssistantMessage]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.answers = append(r.answers, msg)
}

func (r *recordingHook) OnToolCallMessage(_ context.Context, msg messages.Message[messages.ToolCallMessage]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toolCalls = append(r.toolCalls, msg)
}

func (r *recordingHook) OnToolCallResponse(_ context.Context, msg messages.Message[messages.ToolResponse]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toolResponses = append(r.toolResponses, msg)
}

func (r *recordingHook) OnResult(_ context.Context, result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
}

func (r *recordingHook) OnError(_ context.Context, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recordingHook) responseContents() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.toolResponses))
	for _, m := range r.toolResponses {
		out = append(out, m.Payload.Content)
	}
	return out
}

func (r *recordingHook) answerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.answers)
}
