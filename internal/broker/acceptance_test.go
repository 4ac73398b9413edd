package broker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/phdev/Final-Assignment-Template/events"
	"github.com/phdev/Final-Assignment-Template/messages"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHook struct {
	events.NoopHook
	mu                sync.Mutex
	wg                *sync.WaitGroup
	userPrompts       []messages.Message[messages.UserMessage]
	assistantMessages []messages.Message[messages.AssistantMessage]
	toolCallMessages  []messages.Message[messages.ToolCallMessage]
	toolResponses     []messages.Message[messages.ToolResponse]
	results           []string
	errs              []error
}

func (r *recordingHook) record(fn func()) {
	r.mu.Lock()
	fn()
	r.mu.Unlock()
	if r.wg != nil {
		r.wg.Done()
	}
}

func (r *recordingHook) OnUserPrompt(_ context.Context, msg messages.Message[messages.UserMessage]) {
	r.record(func() { r.userPrompts = append(r.userPrompts, msg) })
}

func (r *recordingHook) OnAssistantMessage(_ context.Context, msg messages.Message[messages.AssistantMessage]) {
	r.record(func() { r.assistantMessages = append(r.assistantMessages, msg) })
}

func (r *recordingHook) OnToolCallMessage(_ context.Context, msg messages.Message[messages.ToolCallMessage]) {
	r.record(func() { r.toolCallMessages = append(r.toolCallMessages, msg) })
}

func (r *recordingHook) OnToolCallResponse(_ context.Context, msg messages.Message[messages.ToolResponse]) {
	r.record(func() { r.toolResponses = append(r.toolResponses, msg) })
}

func (r *recordingHook) OnResult(_ context.Context, result string) {
	r.record(func() { r.results = append(r.results, result) })
}

func (r *recordingHook) OnError(_ context.Context, err error) {
	r.record(func() { r.errs = append(r.errs, err) })
}

func (r *recordingHook) assistantCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.assistantMessages)
}

func waitFor(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for events")
	}
}

type brokerFactory func(t *testing.T) Broker

func TestBrokerImplementations(t *testing.T) {
	factories := map[string]brokerFactory{
		"Local": func(t *testing.T) Broker { return Local() },
		"NATS": func(t *testing.T) Broker {
			url := os.Getenv("NATS_URL")
			if url == "" {
				url = nats.DefaultURL
			}
			nc, err := nats.Connect(url, nats.Timeout(time.Second))
			if err != nil {
				t.Skipf("no NATS server at %s: %v", url, err)
			}
			t.Cleanup(nc.Close)
			return NATS(nc)
		},
	}

	tests := []struct {
		name string
		test func(t *testing.T, createBroker brokerFactory)
	}{
		{"creates unique topics", testUniqueTopics},
		{"reuses existing topics", testReuseTopics},
		{"publishes events to all subscribers", testPublishToAllSubscribers},
		{"handles subscription lifecycle", testSubscriptionLifecycle},
		{"handles context cancellation", testContextCancellation},
		{"handles concurrent operations", testConcurrentOperations},
		{"validates hook requirement", testHookValidation},
	}

	for name, factory := range factories {
		for _, tt := range tests {
			t.Run(name+"/"+tt.name, func(t *testing.T) {
				tt.test(t, factory)
			})
		}
	}
}

func topicName() string {
	return "test." + uuid.NewString()
}

func testUniqueTopics(t *testing.T, createBroker brokerFactory) {
	broker := createBroker(t)
	topic1 := broker.Topic(context.Background(), "test1")
	topic2 := broker.Topic(context.Background(), "test2")
	assert.NotSame(t, topic1, topic2)
}

func testReuseTopics(t *testing.T, createBroker brokerFactory) {
	broker := createBroker(t)
	topic1 := broker.Topic(context.Background(), "test")
	topic2 := broker.Topic(context.Background(), "test")
	assert.Same(t, topic1, topic2)
}

func testPublishToAllSubscribers(t *testing.T, createBroker brokerFactory) {
	broker := createBroker(t)
	topic := broker.Topic(context.Background(), topicName())
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2 * 6)
	recorder1 := &recordingHook{wg: &wg}
	recorder2 := &recordingHook{wg: &wg}

	sub1, err := topic.Subscribe(ctx, recorder1)
	require.NoError(t, err)
	defer sub1.Unsubscribe()
	sub2, err := topic.Subscribe(ctx, recorder2)
	require.NoError(t, err)
	defer sub2.Unsubscribe()
	assert.NotEqual(t, sub1.ID(), sub2.ID())

	runID, turnID := uuid.New(), uuid.New()
	timestamp := strfmt.DateTime(time.Now().UTC().Truncate(time.Millisecond))
	b := messages.New()

	published := []events.Event{
		events.Delim{RunID: runID, TurnID: turnID, Delim: "start"},
		events.Request[messages.UserMessage]{RunID: runID, TurnID: turnID, Message: b.UserPrompt("2 + 2?").Payload, Sender: "ada", Timestamp: timestamp},
		events.Response[messages.ToolCallMessage]{RunID: runID, TurnID: turnID, Response: b.ToolCall([]messages.ToolCallData{{ID: "c1", Name: "calculator", Arguments: `{"expression":"2 + 2"}`}}).Payload, Sender: "agent"},
		events.Request[messages.ToolResponse]{RunID: runID, TurnID: turnID, Message: b.ToolResponse("c1", "calculator", "4").Payload, Sender: "calculator"},
		events.Response[messages.AssistantMessage]{RunID: runID, TurnID: turnID, Response: b.AssistantMessage("4").Payload, Sender: "agent", Timestamp: timestamp},
		events.Result{RunID: runID, TurnID: turnID, Result: "4"},
		events.Error{RunID: runID, TurnID: turnID, Err: errors.New("boom")},
	}
	for _, ev := range published {
		require.NoError(t, topic.Publish(ctx, ev))
	}

	waitFor(t, &wg)

	for _, r := range []*recordingHook{recorder1, recorder2} {
		r.mu.Lock()
		require.Len(t, r.userPrompts, 1)
		assert.Equal(t, "2 + 2?", r.userPrompts[0].Payload.Content)
		assert.Equal(t, "ada", r.userPrompts[0].Sender)
		assert.Equal(t, runID, r.userPrompts[0].RunID)
		assert.Equal(t, timestamp, r.userPrompts[0].Timestamp)
		require.Len(t, r.toolCallMessages, 1)
		assert.Equal(t, "calculator", r.toolCallMessages[0].Payload.ToolCalls[0].Name)
		require.Len(t, r.toolResponses, 1)
		assert.Equal(t, "4", r.toolResponses[0].Payload.Content)
		require.Len(t, r.assistantMessages, 1)
		assert.Equal(t, "4", r.assistantMessages[0].Payload.Content)
		assert.Equal(t, []string{"4"}, r.results)
		require.Len(t, r.errs, 1)
		assert.ErrorContains(t, r.errs[0], "boom")
		r.mu.Unlock()
	}
}

func testSubscriptionLifecycle(t *testing.T, createBroker brokerFactory) {
	broker := createBroker(t)
	topic := broker.Topic(context.Background(), topicName())
	ctx := context.Background()

	recorder := &recordingHook{}
	sub, err := topic.Subscribe(ctx, recorder)
	require.NoError(t, err)

	sub.Unsubscribe()
	sub.Unsubscribe()
	time.Sleep(100 * time.Millisecond)

	err = topic.Publish(ctx, events.Response[messages.AssistantMessage]{
		RunID:    uuid.New(),
		TurnID:   uuid.New(),
		Response: messages.AssistantMessage{Content: "late"},
	})
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, recorder.assistantCount())
}

func testContextCancellation(t *testing.T, createBroker brokerFactory) {
	broker := createBroker(t)
	topic := broker.Topic(context.Background(), topicName())

	ctx, cancel := context.WithCancel(context.Background())
	recorder := &recordingHook{}
	sub, err := topic.Subscribe(ctx, recorder)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	cancel()
	time.Sleep(100 * time.Millisecond)

	err = topic.Publish(context.Background(), events.Response[messages.AssistantMessage]{
		RunID:    uuid.New(),
		TurnID:   uuid.New(),
		Response: messages.AssistantMessage{Content: "late"},
	})
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, recorder.assistantCount())
}

func testConcurrentOperations(t *testing.T, createBroker brokerFactory) {
	broker := createBroker(t)
	topic := broker.Topic(context.Background(), topicName())
	ctx := context.Background()

	const (
		numSubscribers = 10
		numEvents      = 100
	)

	var processWg sync.WaitGroup
	processWg.Add(numSubscribers * numEvents)

	recorders := make([]*recordingHook, numSubscribers)
	for i := range recorders {
		recorders[i] = &recordingHook{wg: &processWg}
		sub, err := topic.Subscribe(ctx, recorders[i])
		require.NoError(t, err)
		t.Cleanup(sub.Unsubscribe)
	}

	var publishWg sync.WaitGroup
	publishWg.Add(numEvents)
	errs := make(chan error, numEvents)
	for i := range numEvents {
		go func() {
			defer publishWg.Done()
			errs <- topic.Publish(ctx, events.Response[messages.AssistantMessage]{
				RunID:    uuid.New(),
				TurnID:   uuid.New(),
				Response: messages.AssistantMessage{Content: fmt.Sprintf("message-%d", i)},
			})
		}()
	}
	publishWg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	waitFor(t, &processWg)
	for _, recorder := range recorders {
		assert.Equal(t, numEvents, recorder.assistantCount())
	}
}

func testHookValidation(t *testing.T, createBroker brokerFactory) {
	broker := createBroker(t)
	topic := broker.Topic(context.Background(), topicName())

	_, err := topic.Subscribe(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hook is required")
}
