// Package broker distributes run events to subscribers.
//
// A Broker hands out named Topics. Publishing an event on a topic delivers it
// to every Subscription's events.Hook; a topic also satisfies
// events.Publisher, so events.NewPublishingHook can feed it directly from the
// executor.
//
// Two implementations exist:
//   - Local: in-process fan-out. Each subscriber has a buffered queue and is
//     evicted when it stays full past the slow subscriber timeout.
//   - NATS: topics are subjects on a NATS connection and events travel as
//     JSON, so a run on a Temporal worker can be watched from another process.
//
// Example:
//
//	topic := broker.Local().Topic(ctx, runID.String())
//	sub, err := topic.Subscribe(ctx, events.LoggingHook())
//	if err != nil {
//		return err
//	}
//	defer sub.Unsubscribe()
//
//	hook := events.NewPublishingHook(topic, runID)
package broker
