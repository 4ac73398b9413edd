// Package assistant answers questions with the calculator agent.
//
// An Assistant owns the agent, the executor that runs it and the hooks that
// observe every run. Answer wraps one run in an agent.task span and returns
// the normalized text of the final assistant message.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"sync"

	"github.com/fogfish/opts"
	"github.com/nats-io/nats.go"
	"github.com/openai/openai-go/option"
	"github.com/phdev/Final-Assignment-Template/agent"
	"github.com/phdev/Final-Assignment-Template/config"
	"github.com/phdev/Final-Assignment-Template/events"
	"github.com/phdev/Final-Assignment-Template/internal/broker"
	"github.com/phdev/Final-Assignment-Template/internal/executor"
	"github.com/phdev/Final-Assignment-Template/internal/shorttermmemory"
	"github.com/phdev/Final-Assignment-Template/messages"
	"github.com/phdev/Final-Assignment-Template/observability"
	"github.com/phdev/Final-Assignment-Template/pkg/natsx"
	"github.com/phdev/Final-Assignment-Template/pkg/slogx"
	"github.com/phdev/Final-Assignment-Template/pkg/uuidx"
	"github.com/phdev/Final-Assignment-Template/provider/openai"
	"github.com/phdev/Final-Assignment-Template/tools"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	AgentName  = "calculator_agent"
	UserSender = "user"

	natsClientName = "calculator-agent"
)

// SystemPrompt steers the model towards the tools and short answers.
const SystemPrompt = `You are a precise assistant that answers questions with as little text as possible.

Use the calculator tool for every arithmetic computation, however simple, and the now_utc tool whenever the answer depends on the current date or time.
If a tool returns a message starting with "ERROR:", fix the input and try again or explain why the question cannot be answered.

Reply with the final answer only: no explanations, no units unless asked, no markdown.`

type Assistant struct {
	cfg            config.Config
	agent          agent.Agent
	executor       executor.Executor
	publisher      events.Publisher
	hooks          []events.Hook
	requestOptions []option.RequestOption

	nc *nats.Conn
}

type Option = opts.Option[Assistant]

var (
	// Config replaces the configuration read from the environment.
	Config   = opts.ForName[Assistant, config.Config]("cfg")
	Agent    = opts.ForName[Assistant, agent.Agent]("agent")
	Executor = opts.ForName[Assistant, executor.Executor]("executor")
	// Publisher receives the events of every run. Without one, events go to
	// the NATS subject when NATS is configured.
	Publisher = opts.ForName[Assistant, events.Publisher]("publisher")
)

// Hooks adds hooks that observe every run.
func Hooks(hooks ...events.Hook) Option {
	return opts.Type[Assistant](func(a *Assistant) error {
		a.hooks = append(a.hooks, hooks...)
		return nil
	})
}

// RequestOptions are passed to the OpenAI client of the default agent.
func RequestOptions(options ...option.RequestOption) Option {
	return opts.Type[Assistant](func(a *Assistant) error {
		a.requestOptions = append(a.requestOptions, options...)
		return nil
	})
}

// New builds an assistant. Without options it reads the configuration from
// the environment, runs the calculator agent in-process and publishes events
// to NATS when NATS_URL is set.
func New(options ...Option) (*Assistant, error) {
	a := &Assistant{}
	if err := opts.Apply(a, options); err != nil {
		return nil, err
	}

	if a.cfg.ModelName == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		a.cfg = cfg
	}

	if a.agent == nil {
		ag, err := CalculatorAgent(a.cfg, a.requestOptions...)
		if err != nil {
			return nil, err
		}
		a.agent = ag
	}

	if a.executor == nil {
		a.executor = executor.NewLocal()
	}

	if a.publisher == nil && a.cfg.NATS.Enabled() {
		nc, err := natsx.Connect(a.cfg.NATS.URL, natsClientName)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to nats: %w", err)
		}
		a.nc = nc
		a.publisher = broker.NATS(nc).Topic(context.Background(), a.cfg.NATS.Subject)
	}
	return a, nil
}

// CalculatorAgent builds the agent that answers with the calculator and
// now_utc tools on the configured model.
func CalculatorAgent(cfg config.Config, options ...option.RequestOption) (agent.Agent, error) {
	reqOpts := []option.RequestOption{option.WithHTTPClient(observability.HTTPClient(cfg.OTel))}
	if cfg.OpenAIBaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.OpenAIBaseURL))
	}
	reqOpts = append(reqOpts, options...)

	return agent.New(
		agent.Name(AgentName),
		agent.Model(openai.NewModel(cfg.ModelName, cfg.ModelTemperature, reqOpts...)),
		agent.Instructions(SystemPrompt),
		agent.Tools(tools.Definitions()...),
		agent.ParallelToolCalls(cfg.ParallelToolCalls),
	)
}

// Agent returns the agent the assistant runs.
func (a *Assistant) Agent() agent.Agent {
	return a.agent
}

// Close releases the NATS connection opened by New.
func (a *Assistant) Close() error {
	if a.nc == nil {
		return nil
	}
	return a.nc.Drain()
}

type answerOptions struct {
	metadata map[string]any
	tags     []string
	stream   bool
	hooks    []events.Hook
}

type AnswerOption = opts.Option[answerOptions]

var Stream = opts.ForName[answerOptions, bool]("stream")

// Metadata is attached to the user prompt and the task span. Later calls add
// to earlier ones.
func Metadata(md map[string]any) AnswerOption {
	return opts.Type[answerOptions](func(o *answerOptions) error {
		if o.metadata == nil {
			o.metadata = make(map[string]any, len(md))
		}
		maps.Copy(o.metadata, md)
		return nil
	})
}

func Tags(tags ...string) AnswerOption {
	return opts.Type[answerOptions](func(o *answerOptions) error {
		o.tags = append(o.tags, tags...)
		return nil
	})
}

// WithHooks observes this run only.
func WithHooks(hooks ...events.Hook) AnswerOption {
	return opts.Type[answerOptions](func(o *answerOptions) error {
		o.hooks = append(o.hooks, hooks...)
		return nil
	})
}

// Answer runs the agent on question and returns its normalized answer.
func (a *Assistant) Answer(ctx context.Context, question string, options ...AnswerOption) (answer string, err error) {
	ao := answerOptions{stream: a.cfg.Stream}
	if err := opts.Apply(&ao, options); err != nil {
		return "", err
	}
	if strings.TrimSpace(question) == "" {
		return "", errors.New("question is required")
	}

	runID := uuidx.New()
	logger := slog.Default().With(slogx.LoggerName("assistant"), slog.String("run_id", runID.String()))

	hooks := observability.Callbacks(runID, a.publisher)
	hooks = append(hooks, a.hooks...)
	hooks = append(hooks, ao.hooks...)
	hook := events.NewCompositeHook(hooks...)

	md := maps.Clone(ao.metadata)
	if md == nil {
		md = make(map[string]any)
	}
	if _, ok := md["model"]; !ok {
		md["model"] = a.agent.Model().Name()
	}
	meta, err := promptMeta(md, ao.tags)
	if err != nil {
		return "", err
	}

	ctx, end := observability.StartTaskSpan(ctx, a.cfg.LangSmith, question, md)
	defer func() { end(err) }()

	thread := shorttermmemory.New()
	prompt := messages.New().WithSender(UserSender).WithMetadata(meta).UserPrompt(question)
	prompt.RunID = runID
	prompt.TurnID = uuidx.New()
	thread.AddUserPrompt(prompt)
	hook.OnUserPrompt(ctx, prompt)

	cmd, err := executor.NewRunCommand(a.agent, thread, hook)
	if err != nil {
		return "", err
	}
	cmd = cmd.WithID(runID).WithStream(ao.stream).WithMaxTurns(a.cfg.MaxTurns)

	logger.DebugContext(ctx, "answering question", slog.Int("question_length", len(question)))
	future := executor.NewFuture(executor.DefaultUnmarshal[string]())
	if err := a.executor.Run(ctx, cmd, future); err != nil {
		return "", err
	}
	result, err := future.Get()
	if err != nil {
		return "", err
	}

	if last, ok := thread.LastAssistantMessage(); ok {
		result = last.Payload.Content
		if result == "" {
			result = last.Payload.Refusal
		}
	}
	return Normalize(result), nil
}

// promptMeta renders run metadata and tags as the user prompt's meta.
func promptMeta(md map[string]any, tags []string) (gjson.Result, error) {
	doc, err := sjson.SetBytes([]byte(`{}`), "metadata", md)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to encode metadata: %w", err)
	}
	if len(tags) > 0 {
		doc, err = sjson.SetBytes(doc, "tags", tags)
		if err != nil {
			return gjson.Result{}, fmt.Errorf("failed to encode tags: %w", err)
		}
	}
	return gjson.ParseBytes(doc), nil
}

// Normalize trims the answer and drops a surrounding code fence.
func Normalize(answer string) string {
	out := strings.TrimSpace(answer)
	if strings.HasPrefix(out, "```") && strings.HasSuffix(out, "```") {
		out = strings.TrimSpace(strings.Trim(out, "`"))
	}
	return out
}

// Default is the process-wide assistant, built from the environment on
// first use.
var Default = sync.OnceValues(func() (*Assistant, error) {
	return New()
})

// Answer answers question with the Default assistant.
func Answer(ctx context.Context, question string, options ...AnswerOption) (string, error) {
	a, err := Default()
	if err != nil {
		return "", err
	}
	return a.Answer(ctx, question, options...)
}
