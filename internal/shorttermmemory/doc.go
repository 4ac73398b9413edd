// Package shorttermmemory holds the conversation thread of an agent run and
// the tokens it consumed.
//
// A run forks the caller's thread, appends to the fork, and joins it back
// when it finishes, so a failed run leaves the caller's thread untouched:
//
//	history := shorttermmemory.New()
//	history.AddUserPrompt(messages.New().UserPrompt("sqrt(9)?"))
//	run := history.Fork()
//	// ... the run appends tool calls, tool responses and the answer
//	history.Join(run)
//
// Checkpoints serialize a thread to JSON, which is how it crosses Temporal
// activity boundaries.
package shorttermmemory
