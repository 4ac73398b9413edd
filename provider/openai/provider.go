package openai

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/phdev/Final-Assignment-Template/internal/shorttermmemory"
	"github.com/phdev/Final-Assignment-Template/messages"
	"github.com/phdev/Final-Assignment-Template/pkg/jsonx"
	"github.com/phdev/Final-Assignment-Template/provider"
)

var _ provider.Provider = (*Provider)(nil)

// Provider implements provider.Provider on the OpenAI chat completions API.
type Provider struct {
	client *openai.Client
}

func New(options ...option.RequestOption) *Provider {
	return &Provider{
		client: openai.NewClient(options...),
	}
}

func (p *Provider) buildRequest(_ context.Context, params *provider.CompletionParams) (openai.ChatCompletionNewParams, error) {
	if params.Model == nil {
		return openai.ChatCompletionNewParams{}, fmt.Errorf("no model configured")
	}
	if params.Thread == nil {
		return openai.ChatCompletionNewParams{}, fmt.Errorf("no thread configured")
	}

	msgs, user := messagesToOpenAI(params.Instructions, params.Thread.MessagesIter())

	tools := make([]openai.ChatCompletionToolParam, len(params.Tools))
	for i, td := range params.Tools {
		if td.Function == nil {
			return openai.ChatCompletionNewParams{}, fmt.Errorf("tool %s has nil function", td.Name)
		}

		name, schema := td.ToNameAndSchema()
		jv, err := jsonx.ToDynamicJSON(schema)
		if err != nil {
			return openai.ChatCompletionNewParams{}, fmt.Errorf("failed to convert schema of tool %s: %w", name, err)
		}

		def := openai.FunctionDefinitionParam{
			Name:       openai.String(name),
			Parameters: openai.F(shared.FunctionParameters(jv)),
		}
		if desc := strings.TrimSpace(td.Description); desc != "" {
			def.Description = openai.String(desc)
		}
		tools[i] = openai.ChatCompletionToolParam{
			Type:     openai.F(openai.ChatCompletionToolTypeFunction),
			Function: openai.F(def),
		}
	}

	req := openai.ChatCompletionNewParams{
		Messages:    openai.F(msgs),
		Model:       openai.F(params.Model.Name()),
		N:           openai.Int(1),
		Temperature: openai.Float(params.Temperature),
	}
	if len(tools) > 0 {
		req.Tools = openai.F(tools)
		req.ParallelToolCalls = openai.Bool(params.ParallelToolCalls)
	}
	if params.Stream {
		req.StreamOptions = openai.F(openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		})
	}
	if strings.TrimSpace(user) != "" {
		req.User = openai.String(user)
	}
	return req, nil
}

// ChatCompletion starts one model call. The returned channel is closed when
// the call is over; a failure arrives as a provider.Error on it.
func (p *Provider) ChatCompletion(ctx context.Context, params provider.CompletionParams) (<-chan provider.StreamEvent, error) {
	req, err := p.buildRequest(ctx, &params)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	events := make(chan provider.StreamEvent, 10)
	go func() {
		defer close(events)
		if params.Stream {
			p.runStream(ctx, req, &params, events)
		} else {
			p.runOnce(ctx, req, &params, events)
		}
	}()
	return events, nil
}

func (p *Provider) runStream(ctx context.Context, req openai.ChatCompletionNewParams, command *provider.CompletionParams, events chan<- provider.StreamEvent) {
	strm := p.client.Chat.Completions.NewStreaming(ctx, req)
	defer strm.Close()

	if err := strm.Err(); err != nil {
		events <- errorEvent(command, err)
		return
	}

	var (
		started bool
		acc     openai.ChatCompletionAccumulator
		usage   shorttermmemory.Usage
	)
	for strm.Next() {
		if ctx.Err() != nil {
			break
		}
		if !started {
			started = true
			events <- provider.Delim{RunID: command.RunID, TurnID: command.Thread.ID(), Delim: "start"}
		}

		chunk := strm.Current()
		acc.AddChunk(chunk)
		if chunk.Usage.TotalTokens > 0 {
			usage = usageOf(chunk.Usage)
		}
		if ev, ok := completionChunkToStreamEvent(&chunk, command); ok {
			events <- ev
		}
	}

	if err := ctx.Err(); err != nil {
		events <- errorEvent(command, err)
		return
	}
	if err := strm.Err(); err != nil {
		events <- errorEvent(command, err)
		return
	}
	if !started {
		events <- errorEvent(command, fmt.Errorf("empty completion stream"))
		return
	}

	events <- provider.Delim{RunID: command.RunID, TurnID: command.Thread.ID(), Delim: "end"}
	ev := completionToStreamEvent(&acc.ChatCompletion, command)
	events <- withUsage(ev, usage)
}

func (p *Provider) runOnce(ctx context.Context, req openai.ChatCompletionNewParams, command *provider.CompletionParams, events chan<- provider.StreamEvent) {
	chat, err := p.client.Chat.Completions.New(ctx, req)
	if err != nil {
		events <- errorEvent(command, err)
		return
	}
	events <- withUsage(completionToStreamEvent(chat, command), usageOf(chat.Usage))
}

func errorEvent(command *provider.CompletionParams, err error) provider.Error {
	return provider.Error{
		RunID:     command.RunID,
		TurnID:    command.Thread.ID(),
		Err:       err,
		Timestamp: strfmt.DateTime(time.Now()),
	}
}

func usageOf(u openai.CompletionUsage) shorttermmemory.Usage {
	return shorttermmemory.Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
}

func withUsage(ev provider.StreamEvent, usage shorttermmemory.Usage) provider.StreamEvent {
	switch r := ev.(type) {
	case provider.Response[messages.AssistantMessage]:
		r.Usage = usage
		return r
	case provider.Response[messages.ToolCallMessage]:
		r.Usage = usage
		return r
	default:
		return ev
	}
}

func messagesToOpenAI(instructions string, thread iter.Seq[messages.Message[messages.ModelMessage]]) ([]openai.ChatCompletionMessageParamUnion, string) {
	result := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(instructions),
	}
	var user string
	for message := range thread {
		switch msg := message.Payload.(type) {
		case messages.UserMessage:
			if message.Sender != "" {
				user = message.Sender
			}
			result = append(result, openai.UserMessageParts(openai.TextPart(msg.Content)))
		case messages.ToolResponse:
			result = append(result, openai.ToolMessage(msg.ToolCallID, msg.Content))
		case messages.ToolCallMessage:
			calls := make([]openai.ChatCompletionMessageToolCallParam, len(msg.ToolCalls))
			for i, tc := range msg.ToolCalls {
				calls[i] = openai.ChatCompletionMessageToolCallParam{
					ID:   openai.String(tc.ID),
					Type: openai.F(openai.ChatCompletionMessageToolCallTypeFunction),
					Function: openai.F(openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      openai.String(tc.Name),
						Arguments: openai.String(tc.Arguments),
					}),
				}
			}
			result = append(result, openai.ChatCompletionMessageParam{
				Role:      openai.F(openai.ChatCompletionMessageParamRoleAssistant),
				ToolCalls: openai.F[any](calls),
			})
		case messages.AssistantMessage:
			am := openai.ChatCompletionAssistantMessageParam{
				Role: openai.F(openai.ChatCompletionAssistantMessageParamRoleAssistant),
			}
			if msg.Content != "" {
				am.Content = openai.F(append(am.Content.Value, openai.TextPart(msg.Content)))
			}
			if msg.Refusal != "" {
				am.Refusal = openai.String(msg.Refusal)
			}
			result = append(result, am)
		}
	}
	return result, user
}

func toolCallData(id, name, arguments string) messages.ToolCallData {
	return messages.ToolCallData{ID: id, Name: name, Arguments: arguments}
}

// completionChunkToStreamEvent reports false for chunks that carry nothing,
// such as the trailing usage-only chunk.
func completionChunkToStreamEvent(chunk *openai.ChatCompletionChunk, command *provider.CompletionParams) (provider.StreamEvent, bool) {
	if len(chunk.Choices) == 0 {
		return nil, false
	}

	delta := chunk.Choices[0].Delta
	if len(delta.ToolCalls) > 0 {
		calls := make([]messages.ToolCallData, len(delta.ToolCalls))
		for i, tc := range delta.ToolCalls {
			calls[i] = toolCallData(tc.ID, tc.Function.Name, tc.Function.Arguments)
		}
		return provider.Chunk[messages.ToolCallMessage]{
			RunID:     command.RunID,
			TurnID:    command.Thread.ID(),
			Chunk:     messages.ToolCallMessage{ToolCalls: calls},
			Timestamp: strfmt.DateTime(time.Now()),
		}, true
	}

	if delta.Content == "" && delta.Refusal == "" {
		return nil, false
	}
	return provider.Chunk[messages.AssistantMessage]{
		RunID:     command.RunID,
		TurnID:    command.Thread.ID(),
		Chunk:     messages.AssistantMessage{Content: delta.Content, Refusal: delta.Refusal},
		Timestamp: strfmt.DateTime(time.Now()),
	}, true
}

func completionToStreamEvent(chat *openai.ChatCompletion, command *provider.CompletionParams) provider.StreamEvent {
	if len(chat.Choices) == 0 {
		return errorEvent(command, fmt.Errorf("completion has no choices"))
	}

	msg := chat.Choices[0].Message
	if len(msg.ToolCalls) > 0 {
		calls := make([]messages.ToolCallData, len(msg.ToolCalls))
		for i, tc := range msg.ToolCalls {
			calls[i] = toolCallData(tc.ID, tc.Function.Name, tc.Function.Arguments)
		}
		return provider.Response[messages.ToolCallMessage]{
			RunID:     command.RunID,
			TurnID:    command.Thread.ID(),
			Response:  messages.ToolCallMessage{ToolCalls: calls},
			Timestamp: strfmt.DateTime(time.Now()),
		}
	}

	return provider.Response[messages.AssistantMessage]{
		RunID:     command.RunID,
		TurnID:    command.Thread.ID(),
		Response:  messages.AssistantMessage{Content: msg.Content, Refusal: msg.Refusal},
		Timestamp: strfmt.DateTime(time.Now()),
	}
}
