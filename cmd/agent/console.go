package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/phdev/Final-Assignment-Template/events"
	"github.com/phdev/Final-Assignment-Template/messages"
)

const toolErrorPrefix = "ERROR: "

// consoleHook prints a run as it happens. Assistant chunks are printed when
// streaming; final answers only when showAnswers is set, since ask and repl
// render them once the run is over.
type consoleHook struct {
	mu          sync.Mutex
	w           io.Writer
	stream      bool
	showAnswers bool
	streaming   bool
}

func newConsoleHook(w io.Writer, stream, showAnswers bool) *consoleHook {
	return &consoleHook{w: w, stream: stream, showAnswers: showAnswers}
}

func senderOr(sender, fallback string) string {
	if sender == "" {
		return fallback
	}
	return sender
}

// endStream terminates a streamed line. Callers hold mu.
func (c *consoleHook) endStream() {
	if c.streaming {
		fmt.Fprintln(c.w)
		c.streaming = false
	}
}

func (c *consoleHook) OnUserPrompt(_ context.Context, msg messages.Message[messages.UserMessage]) {
	if !c.showAnswers {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endStream()
	fmt.Fprintf(c.w, "%s: %s\n", color.CyanString(senderOr(msg.Sender, "User")), msg.Payload.Content)
}

func (c *consoleHook) OnAssistantChunk(_ context.Context, msg messages.Message[messages.AssistantMessage]) {
	if !c.stream || msg.Payload.Content == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.streaming {
		fmt.Fprint(c.w, color.MagentaString(senderOr(msg.Sender, "Assistant"))+": ")
		c.streaming = true
	}
	fmt.Fprint(c.w, msg.Payload.Content)
}

func (c *consoleHook) OnToolCallChunk(context.Context, messages.Message[messages.ToolCallMessage]) {}

func (c *consoleHook) OnAssistantMessage(_ context.Context, msg messages.Message[messages.AssistantMessage]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endStream()
	if !c.showAnswers {
		return
	}
	content := msg.Payload.Content
	if content == "" {
		content = msg.Payload.Refusal
	}
	fmt.Fprintf(c.w, "%s: %s\n", color.MagentaString(senderOr(msg.Sender, "Assistant")), content)
}

func (c *consoleHook) OnToolCallMessage(_ context.Context, msg messages.Message[messages.ToolCallMessage]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endStream()
	for _, tc := range msg.Payload.ToolCalls {
		args := strings.ReplaceAll(tc.Arguments, ": ", "=")
		fmt.Fprintf(c.w, "%s%s\n", color.YellowString(tc.Name), args)
	}
}

func (c *consoleHook) OnToolCallResponse(_ context.Context, msg messages.Message[messages.ToolResponse]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endStream()
	name := color.YellowString(senderOr(msg.Payload.ToolName, "Tool"))
	content := msg.Payload.Content
	if strings.HasPrefix(content, toolErrorPrefix) {
		content = color.RedString(content)
	}
	fmt.Fprintf(c.w, "%s: %s\n", name, content)
}

func (c *consoleHook) OnResult(context.Context, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endStream()
}

func (c *consoleHook) OnError(_ context.Context, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endStream()
	fmt.Fprintf(c.w, "%s %v\n", color.RedString("Error:"), err)
}

// transcript keeps every event of a run for -debug output.
type transcript struct {
	mu     sync.Mutex
	events []events.Event
}

func (t *transcript) Publish(_ context.Context, ev events.Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, ev)
	return nil
}

func (t *transcript) Events() []events.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]events.Event(nil), t.events...)
}

// renderMarkdown renders s for the terminal and falls back to the plain
// text when no renderer is available.
func renderMarkdown(s string) string {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle())
	if err != nil {
		return s + "\n"
	}
	out, err := r.Render(s)
	if err != nil {
		return s + "\n"
	}
	return out
}
