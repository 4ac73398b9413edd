package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"os/user"
	"strings"
	"syscall"
	"time"

	// Load .env before the configuration is read
	_ "github.com/joho/godotenv/autoload"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/k0kubun/pp/v3"
	"github.com/nats-io/nats.go"
	"github.com/phdev/Final-Assignment-Template/agent"
	"github.com/phdev/Final-Assignment-Template/assistant"
	"github.com/phdev/Final-Assignment-Template/calc"
	"github.com/phdev/Final-Assignment-Template/config"
	"github.com/phdev/Final-Assignment-Template/events"
	"github.com/phdev/Final-Assignment-Template/internal/broker"
	"github.com/phdev/Final-Assignment-Template/internal/executor"
	"github.com/phdev/Final-Assignment-Template/observability"
	"github.com/phdev/Final-Assignment-Template/pkg/natsx"
	"github.com/phdev/Final-Assignment-Template/pkg/slogx"
	"github.com/phdev/Final-Assignment-Template/pkg/tprl"
	"github.com/phdev/Final-Assignment-Template/tools"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

const (
	natsClientName  = "calculator-agent-cli"
	shutdownTimeout = 5 * time.Second
)

const usage = `usage: agent [-debug] [-env file] <command> [arguments]

commands:
  ask [-stream] [-task-id id] [-username name] [-tag tag ...] question
  calc [expression]
  now
  repl
  worker
  submit question
  watch
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		slog.Error("agent failed", slogx.Error(err))
		os.Exit(1)
	}
}

type app struct {
	cfg    config.Config
	debug  bool
	stdin  io.Reader
	stdout io.Writer
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("agent", flag.ContinueOnError)
	fs.SetOutput(stdout)
	fs.Usage = func() { fmt.Fprint(fs.Output(), usage) }
	debug := fs.Bool("debug", false, "print the configuration and the run transcript")
	envFile := fs.String("env", "", "additional .env file to load")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return flag.ErrHelp
	}

	var envFiles []string
	if *envFile != "" {
		envFiles = append(envFiles, *envFile)
	}
	cfg, err := config.Load(envFiles...)
	if err != nil {
		return err
	}
	if err := slogx.Setup(cfg.Log); err != nil {
		return err
	}

	a := &app{cfg: cfg, debug: *debug, stdin: stdin, stdout: stdout}
	if a.debug {
		pp.Fprintln(stdout, cfg.Redacted())
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "calc":
		if len(rest) == 0 {
			printNames(stdout)
			return nil
		}
		fmt.Fprintln(stdout, tools.Calculator(strings.Join(rest, " ")))
		return nil
	case "now":
		fmt.Fprintln(stdout, tools.NowUTC())
		return nil
	}

	shutdown, err := observability.Configure(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			slog.Warn("failed to flush traces", slogx.Error(err))
		}
	}()

	switch cmd {
	case "ask":
		return a.ask(ctx, rest)
	case "repl":
		return a.repl(ctx)
	case "worker":
		return a.worker(ctx)
	case "submit":
		return a.submit(ctx, rest)
	case "watch":
		return a.watch(ctx)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// printNames lists the constants and functions calc accepts, with the
// number of arguments each function takes.
func printNames(w io.Writer) {
	fns := calc.Functions()
	isFunc := make(map[string]bool, len(fns))
	sigs := make([]string, 0, len(fns))
	for _, f := range fns {
		isFunc[f.Name] = true
		if f.MinArgs == f.MaxArgs {
			sigs = append(sigs, fmt.Sprintf("%s/%d", f.Name, f.MinArgs))
		} else {
			sigs = append(sigs, fmt.Sprintf("%s/%d..%d", f.Name, f.MinArgs, f.MaxArgs))
		}
	}
	var consts []string
	for _, name := range calc.Names() {
		if !isFunc[name] {
			consts = append(consts, name)
		}
	}
	fmt.Fprintf(w, "constants: %s\nfunctions: %s\n", strings.Join(consts, " "), strings.Join(sigs, " "))
}

// tagList collects a repeated -tag flag.
type tagList []string

func (t *tagList) String() string { return strings.Join(*t, ",") }

func (t *tagList) Set(v string) error {
	*t = append(*t, v)
	return nil
}

func currentUser() string {
	u, err := user.Current()
	if err != nil || u == nil {
		return ""
	}
	return u.Username
}

func (a *app) ask(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ask", flag.ContinueOnError)
	fs.SetOutput(a.stdout)
	stream := fs.Bool("stream", a.cfg.Stream, "stream the answer as it is generated")
	taskID := fs.String("task-id", "", "task id recorded on the trace")
	username := fs.String("username", currentUser(), "user name recorded on the trace")
	var tags tagList
	fs.Var(&tags, "tag", "tag recorded on the run, repeatable")
	if err := fs.Parse(args); err != nil {
		return err
	}
	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		return errors.New("ask: a question is required")
	}

	ast, err := assistant.New(assistant.Config(a.cfg))
	if err != nil {
		return err
	}
	defer ast.Close()

	md := map[string]any{}
	if *taskID != "" {
		md["task_id"] = *taskID
	}
	if *username != "" {
		md["username"] = *username
	}
	return a.answer(ctx, ast, question, *stream,
		assistant.Metadata(md),
		assistant.Tags(tags...),
	)
}

// answer runs one question and prints the rendered answer.
func (a *app) answer(ctx context.Context, ast *assistant.Assistant, question string, stream bool, options ...assistant.AnswerOption) error {
	var tr transcript
	hooks := []events.Hook{newConsoleHook(a.stdout, stream, false)}
	if a.debug {
		hooks = append(hooks, events.LoggingHook(), events.NewPublishingHook(&tr, uuid.Nil))
	}
	options = append(options, assistant.Stream(stream), assistant.WithHooks(hooks...))

	answer, err := ast.Answer(ctx, question, options...)
	if a.debug {
		pp.Fprintln(a.stdout, tr.Events())
	}
	if err != nil {
		return err
	}
	fmt.Fprint(a.stdout, renderMarkdown(answer))
	return nil
}

func (a *app) repl(ctx context.Context) error {
	ast, err := assistant.New(assistant.Config(a.cfg))
	if err != nil {
		return err
	}
	defer ast.Close()

	scanner := bufio.NewScanner(a.stdin)
	for {
		fmt.Fprintf(a.stdout, "%s: ", color.CyanString("User"))
		if !scanner.Scan() {
			fmt.Fprintln(a.stdout, "Exiting...")
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())
		switch {
		case input == "":
			continue
		case strings.EqualFold(input, "exit"), strings.EqualFold(input, "quit"):
			return nil
		}

		if err := a.answer(ctx, ast, input, true); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(a.stdout, "%s %v\n", color.RedString("Error:"), err)
		}
	}
}

// connectNATS returns nil without error when NATS is not configured.
func (a *app) connectNATS() (*nats.Conn, error) {
	if !a.cfg.NATS.Enabled() {
		return nil, nil
	}
	nc, err := natsx.Connect(a.cfg.NATS.URL, natsClientName)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return nc, nil
}

func (a *app) temporal(ctx context.Context) (client.Client, error) {
	c, err := tprl.NewClient(a.cfg.Temporal)
	if err != nil {
		return nil, err
	}
	if _, err := c.CheckHealth(ctx, &client.CheckHealthRequest{}); err != nil {
		c.Close()
		return nil, fmt.Errorf("temporal is not reachable: %w", err)
	}
	return c, nil
}

func (a *app) worker(ctx context.Context) error {
	c, err := a.temporal(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	nc, err := a.connectNATS()
	if err != nil {
		return err
	}
	var b broker.Broker
	if nc != nil {
		defer nc.Drain()
		b = broker.NATS(nc)
	}

	ag, err := assistant.CalculatorAgent(a.cfg)
	if err != nil {
		return err
	}
	agent.Register(ag)

	w := worker.New(c, a.cfg.Temporal.TaskQueue, worker.Options{})
	executor.Register(w, executor.NewActivities(agent.Global, b))

	stopCh := make(chan any)
	go func() {
		<-ctx.Done()
		close(stopCh)
	}()
	slog.Info("worker started", slog.String("task_queue", a.cfg.Temporal.TaskQueue), slog.Any("agents", agent.Names()))
	return w.Run(stopCh)
}

func (a *app) submit(ctx context.Context, args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return errors.New("submit: a question is required")
	}

	c, err := a.temporal(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	nc, err := a.connectNATS()
	if err != nil {
		return err
	}
	var b broker.Broker
	options := []assistant.Option{assistant.Config(a.cfg)}
	if nc != nil {
		defer nc.Drain()
		b = broker.NATS(nc)
		options = append(options, assistant.Publisher(b.Topic(ctx, a.cfg.NATS.Subject)))
	}
	options = append(options, assistant.Executor(executor.NewTemporal(c, a.cfg.Temporal.TaskQueue, b)))

	ast, err := assistant.New(options...)
	if err != nil {
		return err
	}
	defer ast.Close()

	return a.answer(ctx, ast, question, false)
}

func (a *app) watch(ctx context.Context) error {
	nc, err := a.connectNATS()
	if err != nil {
		return err
	}
	if nc == nil {
		return errors.New("watch: NATS_URL is not set")
	}
	defer nc.Drain()

	sub, err := broker.NATS(nc).Topic(ctx, a.cfg.NATS.Subject).Subscribe(ctx, newConsoleHook(a.stdout, true, true))
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	slog.Info("watching events", slog.String("subject", a.cfg.NATS.Subject))
	<-ctx.Done()
	return nil
}
