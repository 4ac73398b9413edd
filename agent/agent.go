package agent

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/fogfish/opts"
	"github.com/phdev/Final-Assignment-Template/pkg/stdx"
	"github.com/phdev/Final-Assignment-Template/provider"
	"github.com/phdev/Final-Assignment-Template/provider/openai"
	"github.com/phdev/Final-Assignment-Template/tool"
	"github.com/phdev/Final-Assignment-Template/types"
)

// Agent is a named model configuration: what it is told, which model answers
// and which tools it may call.
type Agent interface {
	Name() string
	Model() provider.Model
	Instructions() string
	RenderInstructions(types.ContextVars) (string, error)
	Tools() []tool.Definition
	ParallelToolCalls() bool
}

var _ Agent = (*defaultAgent)(nil)

type defaultAgent struct {
	name              string
	model             provider.Model
	instructions      string
	tools             []tool.Definition
	parallelToolCalls bool
}

func (a *defaultAgent) Name() string {
	return a.name
}

func (a *defaultAgent) Model() provider.Model {
	return a.model
}

func (a *defaultAgent) Tools() []tool.Definition {
	return a.tools
}

func (a *defaultAgent) Instructions() string {
	return a.instructions
}

func (a *defaultAgent) ParallelToolCalls() bool {
	return a.parallelToolCalls
}

// RenderInstructions executes the instructions as a text/template over cv.
// Instructions without actions are returned unchanged.
func (a *defaultAgent) RenderInstructions(cv types.ContextVars) (string, error) {
	if !strings.Contains(a.instructions, "{{") {
		return a.instructions, nil
	}
	tmpl, err := template.New(a.name).Option("missingkey=error").Parse(a.instructions)
	if err != nil {
		return "", fmt.Errorf("failed to parse instructions of %s: %w", a.name, err)
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, cv); err != nil {
		return "", fmt.Errorf("failed to render instructions of %s: %w", a.name, err)
	}
	return buf.String(), nil
}

type Option = opts.Option[defaultAgent]

var (
	Name              = opts.ForName[defaultAgent, string]("name")
	Model             = opts.ForName[defaultAgent, provider.Model]("model")
	Instructions      = opts.ForName[defaultAgent, string]("instructions")
	ParallelToolCalls = opts.ForName[defaultAgent, bool]("parallelToolCalls")
)

// Tools appends tool definitions. Tool names must be unique within an agent.
func Tools(tools ...tool.Definition) Option {
	return opts.Type[defaultAgent](func(o *defaultAgent) error {
		for _, td := range tools {
			for _, existing := range o.tools {
				if existing.Name == td.Name {
					return fmt.Errorf("duplicate tool %q", td.Name)
				}
			}
			o.tools = append(o.tools, td)
		}
		return nil
	})
}

// New builds an agent. It defaults to gpt-4o-mini with parallel tool calls
// enabled and fails when no name is given.
func New(options ...Option) (Agent, error) {
	agent := &defaultAgent{
		parallelToolCalls: true,
	}
	if err := opts.Apply(agent, options); err != nil {
		return nil, err
	}
	if agent.name == "" {
		return nil, fmt.Errorf("agent name is required")
	}
	if agent.model == nil {
		agent.model = openai.GPT4oMini()
	}
	return agent, nil
}

// Must is New that panics on error.
func Must(options ...Option) Agent {
	return stdx.Must1(New(options...))
}
