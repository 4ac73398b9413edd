// Package provider abstracts chat-completion services.
//
// A Provider turns CompletionParams (instructions, the conversation thread
// and the tool table) into a channel of StreamEvents:
//
//   - Delim marks the start and end of a streamed reply
//   - Chunk carries an incremental fragment of a streamed reply
//   - Response carries the complete reply and the tokens it used
//   - Error reports a failed call
//
// The channel is closed once the call is over, so consumers range over it.
package provider
