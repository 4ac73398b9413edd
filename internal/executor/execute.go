package executor

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/phdev/Final-Assignment-Template/agent"
	"github.com/phdev/Final-Assignment-Template/events"
	"github.com/phdev/Final-Assignment-Template/internal/shorttermmemory"
	"github.com/phdev/Final-Assignment-Template/pkg/stdx"
	"github.com/phdev/Final-Assignment-Template/pkg/uuidx"
	"github.com/phdev/Final-Assignment-Template/types"
	"github.com/tidwall/gjson"
)

// DefaultMaxTurns bounds the number of model calls of one run.
const DefaultMaxTurns = 10

// ErrMaxTurns is returned when a run does not produce an answer within its
// turn budget.
var ErrMaxTurns = errors.New("max turns exceeded")

func NewRunCommand(agent agent.Agent, thread *shorttermmemory.Aggregator, hook events.Hook) (RunCommand, error) {
	var err error
	if agent == nil {
		err = errors.Join(err, errors.New("agent is required"))
	}
	if thread == nil {
		err = errors.Join(err, errors.New("thread is required"))
	}
	if hook == nil {
		err = errors.Join(err, errors.New("hook is required"))
	}

	if err != nil {
		return RunCommand{}, err
	}

	return RunCommand{
		id:       uuidx.New(),
		Agent:    agent,
		Thread:   thread,
		Hook:     hook,
		MaxTurns: DefaultMaxTurns,
	}, nil
}

type RunCommand struct {
	id               uuid.UUID
	Agent            agent.Agent
	Thread           *shorttermmemory.Aggregator
	Stream           bool
	MaxTurns         int
	ContextVariables types.ContextVars
	Hook             events.Hook
}

func (r *RunCommand) Validate() error {
	if r.Agent == nil {
		return fmt.Errorf("agent cannot be nil")
	}
	if r.Thread == nil {
		return fmt.Errorf("thread cannot be nil")
	}
	if r.Hook == nil {
		return fmt.Errorf("hook cannot be nil")
	}
	if r.MaxTurns <= 0 {
		return fmt.Errorf("max turns must be positive, got %d", r.MaxTurns)
	}
	return nil
}

func (r *RunCommand) initializeContextVars() types.ContextVars {
	if r.ContextVariables != nil {
		return maps.Clone(r.ContextVariables)
	}
	return make(types.ContextVars)
}

func (r *RunCommand) ID() uuid.UUID {
	return r.id
}

// WithID replaces the generated run ID, for callers that correlate the run
// with an ID they already handed out.
func (r RunCommand) WithID(id uuid.UUID) RunCommand {
	r.id = id
	return r
}

func (r RunCommand) WithStream(stream bool) RunCommand {
	r.Stream = stream
	return r
}

func (r RunCommand) WithMaxTurns(maxTurns int) RunCommand {
	r.MaxTurns = maxTurns
	return r
}

func (r RunCommand) WithContextVariables(contextVariables types.ContextVars) RunCommand {
	r.ContextVariables = contextVariables
	return r
}

func DefaultUnmarshal[T any]() func([]byte) (T, error) {
	var t T
	if _, isGjsonResult := any(t).(gjson.Result); isGjsonResult {
		return func(data []byte) (T, error) {
			return any(gjson.ParseBytes(data)).(T), nil
		}
	}
	if reflect.TypeFor[T]().Kind() == reflect.String {
		return func(data []byte) (T, error) {
			return any(string(data)).(T), nil
		}
	}
	return func(data []byte) (T, error) {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return v, err
		}
		return v, nil
	}
}

type CompletableFuture[T any] interface {
	Future[T]
	Promise
}

// Promise receives the outcome of a run. Only the first call counts.
type Promise interface {
	Complete(string)
	Error(error)
}

type Future[T any] interface {
	Get() (T, error)
}

type futState struct {
	value string
	err   error
}

type futResult[T any] struct {
	result T
	err    error
	done   bool
}

type future[T any] struct {
	unmarshal func([]byte) (T, error)
	ch        chan futState
	result    atomic.Value // holds *futResult[T]
	once      sync.Once
	mu        sync.Mutex
}

func NewFuture[T any](unmarshal func([]byte) (T, error)) CompletableFuture[T] {
	f := &future[T]{
		unmarshal: unmarshal,
		ch:        make(chan futState, 1),
	}
	f.result.Store(&futResult[T]{})
	return f
}

func (f *future[T]) Get() (T, error) {
	res := f.result.Load().(*futResult[T])
	if res.done {
		return res.result, res.err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	res = f.result.Load().(*futResult[T])
	if res.done {
		return res.result, res.err
	}

	r := <-f.ch
	var newResult futResult[T]
	if r.err != nil {
		newResult = futResult[T]{
			result: stdx.Zero[T](),
			err:    r.err,
			done:   true,
		}
	} else {
		result, err := f.unmarshal([]byte(r.value))
		newResult = futResult[T]{
			result: result,
			err:    err,
			done:   true,
		}
	}
	f.result.Store(&newResult)
	return newResult.result, newResult.err
}

func (f *future[T]) Complete(data string) {
	f.once.Do(func() {
		f.ch <- futState{value: data}
	})
}

func (f *future[T]) Error(err error) {
	f.once.Do(func() {
		f.ch <- futState{err: err}
	})
}

// Executor runs a command to completion and settles the promise with the
// final answer or the error that stopped the run.
type Executor interface {
	Run(context.Context, RunCommand, Promise) error
}
