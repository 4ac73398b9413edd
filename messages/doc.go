// Package messages defines the conversation records exchanged between a user,
// a model and its tools.
//
// A Message wraps one of four payloads:
//   - UserMessage: a prompt typed by a person
//   - AssistantMessage: a textual model reply
//   - ToolCallMessage: a model reply asking for tool invocations
//   - ToolResponse: the output of a tool, fed back to the model
//
// Every payload serializes with a "type" discriminator, so a thread of
// type-erased messages can be written to JSON and read back without losing
// the payload kinds:
//
//	msg := messages.New().WithSender("calculator").UserPrompt("What is 2 + 2?")
//	data, _ := json.Marshal(msg.Erase())
//	var back messages.Message[messages.ModelMessage]
//	_ = json.Unmarshal(data, &back)
package messages
