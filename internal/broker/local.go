package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/phdev/Final-Assignment-Template/events"
	"github.com/phdev/Final-Assignment-Template/pkg/slogx"
	"github.com/phdev/Final-Assignment-Template/pkg/uuidx"
)

const (
	defaultSlowSubscriberTimeout = 100 * time.Millisecond
	subscriptionBuffer           = 50
)

type localBroker struct {
	topics                *haxmap.Map[string, *topic]
	slowSubscriberTimeout time.Duration
}

// LocalOption configures the in-process broker.
type LocalOption func(*localBroker)

// WithSlowSubscriberTimeout sets how long Publish waits on a full
// subscriber before evicting it.
func WithSlowSubscriberTimeout(timeout time.Duration) LocalOption {
	return func(b *localBroker) {
		b.slowSubscriberTimeout = timeout
	}
}

// Local returns an in-process broker. Every subscriber gets its own buffered
// queue; one that stays full for longer than the slow subscriber timeout is
// unsubscribed.
func Local(options ...LocalOption) Broker {
	b := &localBroker{
		topics:                haxmap.New[string, *topic](),
		slowSubscriberTimeout: defaultSlowSubscriberTimeout,
	}
	for _, o := range options {
		o(b)
	}
	return b
}

func (b *localBroker) Topic(_ context.Context, id string) Topic {
	t, _ := b.topics.GetOrCompute(id, func() *topic {
		return &topic{
			id:                    id,
			subscriptions:         haxmap.New[string, *subscription](),
			slowSubscriberTimeout: b.slowSubscriberTimeout,
		}
	})
	return t
}

type topic struct {
	id                    string
	subscriptions         *haxmap.Map[string, *subscription]
	slowSubscriberTimeout time.Duration
}

func (t *topic) Publish(ctx context.Context, event events.Event) error {
	if event == nil {
		return fmt.Errorf("event is required")
	}

	t.subscriptions.ForEach(func(_ string, sub *subscription) bool {
		if sub == nil {
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-sub.done:
			return true
		case <-sub.ctx.Done():
			sub.Unsubscribe()
			return true
		default:
		}

		timer := time.NewTimer(t.slowSubscriberTimeout)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return false
		case <-sub.done:
		case <-sub.ctx.Done():
			sub.Unsubscribe()
		case sub.channel <- event:
		case <-timer.C:
			slog.WarnContext(ctx, "evicting slow subscriber",
				slogx.LoggerName("broker"),
				slog.String("topic", t.id),
				slog.String("subscription", sub.id),
			)
			sub.Unsubscribe()
		}
		return true
	})
	return ctx.Err()
}

func (t *topic) Subscribe(ctx context.Context, hook events.Hook) (Subscription, error) {
	if hook == nil {
		return nil, fmt.Errorf("hook is required")
	}

	id := uuidx.NewString()
	sub := &subscription{
		id:      id,
		ctx:     ctx,
		channel: make(chan events.Event, subscriptionBuffer),
		done:    make(chan struct{}),
		onClose: func() { t.subscriptions.Del(id) },
		hook:    hook,
	}
	t.subscriptions.Set(id, sub)
	go sub.forwardToHook()
	return sub, nil
}

type subscription struct {
	id        string
	ctx       context.Context
	channel   chan events.Event
	done      chan struct{}
	closeOnce sync.Once
	onClose   func()
	hook      events.Hook
}

func (s *subscription) ID() string {
	return s.id
}

// Unsubscribe stops delivery. Events already queued are discarded.
func (s *subscription) Unsubscribe() {
	s.closeOnce.Do(func() {
		if s.onClose != nil {
			s.onClose()
		}
		close(s.done)
	})
}

func (s *subscription) forwardToHook() {
	for {
		select {
		case event := <-s.channel:
			dispatch(s.ctx, s.hook, event)
		case <-s.done:
			return
		case <-s.ctx.Done():
			s.Unsubscribe()
			return
		}
	}
}
