package assistant

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/openai/openai-go/option"
	"github.com/phdev/Final-Assignment-Template/config"
	"github.com/phdev/Final-Assignment-Template/events"
	"github.com/phdev/Final-Assignment-Template/messages"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const toolCallReply = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-4o-mini",
  "choices": [{"index": 0, "finish_reason": "tool_calls", "message": {
    "role": "assistant",
    "content": null,
    "tool_calls": [
      {"id": "call_1", "type": "function", "function": {"name": "calculator", "arguments": "{\"expression\":\"6 * 7\"}"}}
    ]
  }}],
  "usage": {"prompt_tokens": 20, "completion_tokens": 8, "total_tokens": 28}
}`

const fencedAnswerReply = `{
  "id": "chatcmpl-2",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-4o-mini",
  "choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "` + "```\\n42\\n```" + `"}}],
  "usage": {"prompt_tokens": 30, "completion_tokens": 3, "total_tokens": 33}
}`

// fakeOpenAI serves the replies in order and records the request bodies.
type fakeOpenAI struct {
	mu      sync.Mutex
	replies []string
	bodies  [][]byte
}

func (f *fakeOpenAI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies = append(f.bodies, body)
	if len(f.replies) == 0 {
		http.Error(w, `{"error":{"message":"no more replies"}}`, http.StatusInternalServerError)
		return
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]

	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, reply)
}

func (f *fakeOpenAI) requests() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies
}

func testConfig(baseURL string) config.Config {
	return config.Config{
		ModelName:         "gpt-4o-mini",
		OpenAIBaseURL:     baseURL,
		MaxTurns:          config.DefaultMaxTurns,
		ParallelToolCalls: true,
	}
}

func newTestAssistant(t *testing.T, replies ...string) (*Assistant, *fakeOpenAI) {
	t.Helper()
	fake := &fakeOpenAI{replies: replies}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	a, err := New(
		Config(testConfig(server.URL+"/v1")),
		RequestOptions(option.WithAPIKey("test"), option.WithMaxRetries(0)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a, fake
}

type promptRecorder struct {
	events.NoopHook

	mu      sync.Mutex
	prompts []messages.Message[messages.UserMessage]
	results []string
}

func (p *promptRecorder) OnUserPrompt(_ context.Context, msg messages.Message[messages.UserMessage]) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompts = append(p.prompts, msg)
}

func (p *promptRecorder) OnResult(_ context.Context, result string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results = append(p.results, result)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "42", want: "42"},
		{name: "surrounding space", in: "  42\n", want: "42"},
		{name: "fenced", in: "```\n42\n```", want: "42"},
		{name: "fenced with language", in: "```text\n42\n```", want: "text\n42"},
		{name: "only opening fence", in: "```42", want: "```42"},
		{name: "inner backticks kept", in: "use `x`", want: "use `x`"},
		{name: "empty", in: "", want: ""},
		{name: "bare fence", in: "```", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestCalculatorAgent(t *testing.T) {
	cfg := testConfig("")
	cfg.ModelTemperature = 0.2
	cfg.ParallelToolCalls = false

	ag, err := CalculatorAgent(cfg)
	require.NoError(t, err)

	assert.Equal(t, AgentName, ag.Name())
	assert.Equal(t, "gpt-4o-mini", ag.Model().Name())
	assert.InDelta(t, 0.2, ag.Model().Temperature(), 1e-9)
	assert.Equal(t, SystemPrompt, ag.Instructions())
	assert.False(t, ag.ParallelToolCalls())

	names := make([]string, 0, len(ag.Tools()))
	for _, td := range ag.Tools() {
		names = append(names, td.Name)
	}
	assert.Equal(t, []string{"calculator", "now_utc"}, names)
}

func TestAnswer(t *testing.T) {
	a, fake := newTestAssistant(t, toolCallReply, fencedAnswerReply)
	rec := &promptRecorder{}

	answer, err := a.Answer(context.Background(), "What is 6 times 7?",
		Metadata(map[string]any{"task_id": "t-1"}),
		Tags("unit4", "calc"),
		WithHooks(rec),
	)
	require.NoError(t, err)
	assert.Equal(t, "42", answer)

	bodies := fake.requests()
	require.Len(t, bodies, 2)

	first := gjson.ParseBytes(bodies[0])
	assert.Equal(t, "gpt-4o-mini", first.Get("model").String())
	assert.Equal(t, "system", first.Get("messages.0.role").String())
	assert.Contains(t, first.Get("messages.0.content").Raw, "precise assistant")
	assert.Equal(t, "user", first.Get("messages.1.role").String())
	assert.Contains(t, first.Get("messages.1.content").Raw, "What is 6 times 7?")
	assert.Equal(t, int64(2), first.Get("tools.#").Int())

	second := gjson.ParseBytes(bodies[1])
	toolMsg := second.Get(`messages.#(role=="tool")`)
	require.True(t, toolMsg.Exists())
	assert.Equal(t, "call_1", toolMsg.Get("tool_call_id").String())
	assert.Contains(t, toolMsg.Get("content").Raw, "42")

	require.Len(t, rec.prompts, 1)
	prompt := rec.prompts[0]
	assert.Equal(t, UserSender, prompt.Sender)
	assert.Equal(t, "t-1", prompt.Meta.Get("metadata.task_id").String())
	assert.Equal(t, "gpt-4o-mini", prompt.Meta.Get("metadata.model").String())
	assert.Equal(t, `["unit4","calc"]`, prompt.Meta.Get("tags").Raw)
	assert.Equal(t, []string{"```\n42\n```"}, rec.results, "hooks see the raw answer")
}

func TestAnswerErrors(t *testing.T) {
	t.Run("blank question", func(t *testing.T) {
		a, fake := newTestAssistant(t)
		_, err := a.Answer(context.Background(), "   ")
		require.EqualError(t, err, "question is required")
		assert.Empty(t, fake.requests())
	})

	t.Run("provider failure", func(t *testing.T) {
		a, fake := newTestAssistant(t)
		_, err := a.Answer(context.Background(), "What is 2 + 2?")
		require.Error(t, err)
		assert.Len(t, fake.requests(), 1)
	})

	t.Run("turn budget", func(t *testing.T) {
		fake := &fakeOpenAI{replies: []string{toolCallReply, toolCallReply}}
		server := httptest.NewServer(fake)
		t.Cleanup(server.Close)

		cfg := testConfig(server.URL + "/v1")
		cfg.MaxTurns = 2
		a, err := New(Config(cfg), RequestOptions(option.WithAPIKey("test"), option.WithMaxRetries(0)))
		require.NoError(t, err)

		_, err = a.Answer(context.Background(), "What is 6 times 7?")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max turns exceeded")
		assert.Len(t, fake.requests(), 2)
	})
}

func TestPromptMeta(t *testing.T) {
	meta, err := promptMeta(map[string]any{"username": "ada"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ada", meta.Get("metadata.username").String())
	assert.False(t, meta.Get("tags").Exists())
}
