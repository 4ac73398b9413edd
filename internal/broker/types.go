package broker

import (
	"context"

	"github.com/phdev/Final-Assignment-Template/events"
)

type Broker interface {
	Topic(context.Context, string) Topic
}

// Topic is a named stream of events. Publishing to a topic nobody listens to
// is not an error.
type Topic interface {
	events.Publisher
	Subscribe(context.Context, events.Hook) (Subscription, error)
}

type Subscription interface {
	ID() string
	Unsubscribe()
}
