package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alphadose/haxmap"
	"github.com/nats-io/nats.go"
	"github.com/phdev/Final-Assignment-Template/events"
	"github.com/phdev/Final-Assignment-Template/pkg/slogx"
	"github.com/phdev/Final-Assignment-Template/pkg/uuidx"
)

type natsBroker struct {
	client *nats.Conn
	topics *haxmap.Map[string, *natsTopic]
}

// NATS returns a broker whose topics are NATS subjects. Events travel as the
// JSON produced by events.ToJSON.
func NATS(client *nats.Conn) Broker {
	return &natsBroker{
		client: client,
		topics: haxmap.New[string, *natsTopic](),
	}
}

func (b *natsBroker) Topic(_ context.Context, id string) Topic {
	top, _ := b.topics.GetOrCompute(id, func() *natsTopic {
		return &natsTopic{
			subject: id,
			client:  b.client,
		}
	})
	return top
}

type natsTopic struct {
	client  *nats.Conn
	subject string
}

func (t *natsTopic) Publish(ctx context.Context, event events.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	eb, err := events.ToJSON(event)
	if err != nil {
		return fmt.Errorf("failed to encode event for %s: %w", t.subject, err)
	}
	return t.client.Publish(t.subject, eb)
}

// Subscribe delivers events in publish order: NATS runs the message handler
// of a subscription on a single goroutine.
func (t *natsTopic) Subscribe(ctx context.Context, hook events.Hook) (Subscription, error) {
	if hook == nil {
		return nil, fmt.Errorf("hook is required")
	}

	logger := slog.Default().With(slogx.LoggerName("broker"), slog.String("subject", t.subject))
	nsub, err := t.client.Subscribe(t.subject, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		event, err := events.FromJSON(msg.Data)
		if err != nil {
			logger.Error("failed to unmarshal event", slogx.Error(err))
			return
		}
		dispatch(ctx, hook, event)

		if msg.Reply != "" {
			if nerr := msg.Respond(nil); nerr != nil {
				logger.Error("failed to ack message", slogx.Error(nerr))
			}
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", t.subject, err)
	}

	sub := &natsSubscription{
		id:   uuidx.NewString(),
		sub:  nsub,
		done: make(chan struct{}),
	}
	go func() {
		select {
		case <-ctx.Done():
			sub.Unsubscribe()
		case <-sub.done:
		}
	}()
	return sub, nil
}

type natsSubscription struct {
	id   string
	sub  *nats.Subscription
	done chan struct{}
	once sync.Once
}

func (n *natsSubscription) ID() string {
	return n.id
}

func (n *natsSubscription) Unsubscribe() {
	n.once.Do(func() {
		close(n.done)
		if err := n.sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe", slogx.LoggerName("broker"), slogx.Error(err), slog.String("subscription", n.id))
		}
	})
}
