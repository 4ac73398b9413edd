// Package executor runs an agent against a conversation thread until the
// model produces a final answer.
//
// A run is a reasoning loop: ask the model for the next reply, execute the
// tool calls it requests, append the tool responses to the thread and ask
// again. The loop ends when the model answers with text, and fails when the
// turn budget (RunCommand.MaxTurns) is spent first. Tool failures never end
// the loop: unknown tools, tool errors and tool panics become tool responses
// starting with "ERROR: " so the model can recover.
//
// Key components:
//
//   - RunCommand: the agent, the thread, the hook that observes the run and
//     the run options (streaming, max turns, context variables).
//
//   - Local: runs the loop in-process. Tool calls of one reply run
//     concurrently when the agent allows parallel tool calls; their
//     responses are appended in the order the model asked for them.
//
//   - Temporal: runs the loop as AnswerWorkflow. Model calls and tool calls
//     are activities (see Activities), so a run survives worker restarts.
//     Events produced on the worker reach the caller's hook through a broker
//     topic named after the run ID.
//
//   - Future/Promise: the result channel of a run.
//
// Example usage:
//
//	cmd, err := executor.NewRunCommand(agent, thread, hook)
//	if err != nil {
//		return err
//	}
//	cmd = cmd.WithStream(true).WithMaxTurns(5)
//
//	future := executor.NewFuture(executor.DefaultUnmarshal[string]())
//	if err := executor.NewLocal().Run(ctx, cmd, future); err != nil {
//		return err
//	}
//	answer, err := future.Get()
package executor
