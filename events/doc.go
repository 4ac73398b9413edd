// Package events carries what happens during an agent run to whoever is
// watching it.
//
// A Hook receives typed callbacks from the executor: user prompts, streamed
// chunks, complete model replies, tool responses, the final result and
// errors. LoggingHook writes them to slog, NewCompositeHook fans them out
// and NewPublishingHook turns them into Events on a Publisher such as a
// broker topic.
//
// Events are the wire form of the same information:
//
//	Event
//	├── Delim          stream start/end markers
//	├── Chunk[T]       fragments of a streamed reply
//	├── Request[T]     user prompts and tool responses
//	├── Response[T]    complete model replies
//	├── Result         the final answer of a run
//	└── Error          a failed run, with its run and turn ids
//
// ToJSON and FromJSON serialize them with a "type" discriminator so that a
// subscriber in another process gets back the same concrete type:
//
//	data, _ := events.ToJSON(events.Result{RunID: runID, Result: "4"})
//	ev, _ := events.FromJSON(data)
//	switch e := ev.(type) {
//	case events.Result:
//		fmt.Println(e.Result)
//	case events.Error:
//		log.Println(e)
//	}
package events
