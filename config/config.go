// Package config reads the process configuration from the environment.
//
// Every setting has a default, so an empty environment yields a working
// configuration for the public OpenAI endpoint. Invalid values are collected
// and reported together.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-openapi/swag"
	"github.com/joho/godotenv"
	"github.com/phdev/Final-Assignment-Template/pkg/slogx"
)

const (
	DefaultModelName      = "gpt-4o-mini"
	DefaultServiceName    = "hf-agents-unit4"
	DefaultLangfuseHost   = "https://cloud.langfuse.com"
	DefaultLangSmithURL   = "https://api.smith.langchain.com"
	DefaultEventsSubject  = "agent.events"
	DefaultTemporalNS     = "default"
	DefaultTaskQueue      = "calculator-agent"
	DefaultMaxTurns       = 10
	maxModelTemperature   = 2.0
	defaultLogLevel       = "info"
	defaultLogFormat      = slogx.FormatConsole
	defaultInstrumentHTTP = true
)

type Config struct {
	ModelName        string  `json:"model_name"`
	ModelTemperature float64 `json:"model_temperature"`
	OpenAIBaseURL    string  `json:"openai_base_url,omitempty"`

	MaxTurns          int  `json:"max_turns"`
	Stream            bool `json:"stream"`
	ParallelToolCalls bool `json:"parallel_tool_calls"`

	Log       slogx.Options `json:"log"`
	OTel      OTel          `json:"otel"`
	Langfuse  Langfuse      `json:"langfuse"`
	LangSmith LangSmith     `json:"langsmith"`
	NATS      NATS          `json:"nats"`
	Temporal  Temporal      `json:"temporal"`
}

type OTel struct {
	Endpoint           string `json:"endpoint,omitempty"`
	Headers            string `json:"-"`
	ServiceName        string `json:"service_name"`
	InstrumentRequests bool   `json:"instrument_requests"`
}

// Enabled reports whether traces are exported at all.
func (o OTel) Enabled() bool {
	return o.Endpoint != ""
}

type Langfuse struct {
	PublicKey string `json:"public_key,omitempty"`
	SecretKey string `json:"-"`
	Host      string `json:"host"`
}

// Enabled requires both keys.
func (l Langfuse) Enabled() bool {
	return l.PublicKey != "" && l.SecretKey != ""
}

type LangSmith struct {
	Tracing  bool   `json:"tracing"`
	APIKey   string `json:"-"`
	Project  string `json:"project,omitempty"`
	Endpoint string `json:"endpoint"`
}

// Enabled requires tracing to be switched on and an API key.
func (l LangSmith) Enabled() bool {
	return l.Tracing && l.APIKey != ""
}

type NATS struct {
	URL     string `json:"url,omitempty"`
	Subject string `json:"subject"`
}

func (n NATS) Enabled() bool {
	return n.URL != ""
}

type Temporal struct {
	Address   string `json:"address,omitempty"`
	Namespace string `json:"namespace"`
	TaskQueue string `json:"task_queue"`
}

const redacted = "[redacted]"

// Redacted returns a copy with the secrets masked, for printing.
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return redacted
	}
	c.OTel.Headers = mask(c.OTel.Headers)
	c.Langfuse.SecretKey = mask(c.Langfuse.SecretKey)
	c.LangSmith.APIKey = mask(c.LangSmith.APIKey)
	return c
}

// Load reads the given .env files into the environment, without overriding
// variables that are already set, and then parses the environment.
func Load(files ...string) (Config, error) {
	if len(files) > 0 {
		if err := godotenv.Load(files...); err != nil {
			return Config{}, fmt.Errorf("failed to load env files: %w", err)
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup, which has the signature of
// os.LookupEnv. Blank values count as unset.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	r := &reader{lookup: lookup}

	cfg := Config{
		ModelName:        r.string("MODEL_NAME", DefaultModelName),
		ModelTemperature: r.float("MODEL_TEMPERATURE", 0),
		OpenAIBaseURL:    r.string("OPENAI_BASE_URL", ""),

		MaxTurns:          r.int("AGENT_MAX_TURNS", DefaultMaxTurns),
		Stream:            r.bool("AGENT_STREAM", false),
		ParallelToolCalls: r.bool("AGENT_PARALLEL_TOOL_CALLS", true),

		Log: slogx.Options{
			Level:  r.string("LOG_LEVEL", defaultLogLevel),
			Format: strings.ToLower(r.string("LOG_FORMAT", defaultLogFormat)),
		},
		OTel: OTel{
			Endpoint:           r.string("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:            r.string("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:        r.string("OTEL_SERVICE_NAME", DefaultServiceName),
			InstrumentRequests: r.bool("OTEL_INSTRUMENT_REQUESTS", defaultInstrumentHTTP),
		},
		Langfuse: Langfuse{
			PublicKey: r.string("LANGFUSE_PUBLIC_KEY", ""),
			SecretKey: r.string("LANGFUSE_SECRET_KEY", ""),
			Host:      strings.TrimRight(r.string("LANGFUSE_HOST", DefaultLangfuseHost), "/"),
		},
		LangSmith: LangSmith{
			Tracing:  r.bool("LANGCHAIN_TRACING_V2", false),
			APIKey:   r.string("LANGCHAIN_API_KEY", ""),
			Project:  r.string("LANGCHAIN_PROJECT", ""),
			Endpoint: strings.TrimRight(r.string("LANGCHAIN_ENDPOINT", DefaultLangSmithURL), "/"),
		},
		NATS: NATS{
			URL:     r.string("NATS_URL", ""),
			Subject: r.string("AGENT_EVENTS_SUBJECT", DefaultEventsSubject),
		},
		Temporal: Temporal{
			Address:   r.string("TEMPORAL_ADDRESS", ""),
			Namespace: r.string("TEMPORAL_NAMESPACE", DefaultTemporalNS),
			TaskQueue: r.string("TEMPORAL_TASK_QUEUE", DefaultTaskQueue),
		},
	}

	if cfg.ModelTemperature < 0 || cfg.ModelTemperature > maxModelTemperature {
		r.fail("MODEL_TEMPERATURE", fmt.Errorf("must be between 0 and %g", maxModelTemperature))
	}
	if cfg.MaxTurns <= 0 {
		r.fail("AGENT_MAX_TURNS", errors.New("must be positive"))
	}
	if _, err := slogx.ParseLevel(cfg.Log.Level); err != nil {
		r.fail("LOG_LEVEL", err)
	}
	if cfg.Log.Format != slogx.FormatConsole && cfg.Log.Format != slogx.FormatJSON {
		r.fail("LOG_FORMAT", fmt.Errorf("must be %s or %s", slogx.FormatConsole, slogx.FormatJSON))
	}

	if r.err != nil {
		return Config{}, r.err
	}
	return cfg, nil
}

var (
	truthy = map[string]struct{}{"1": {}, "true": {}, "yes": {}, "y": {}, "on": {}}
	falsy  = map[string]struct{}{"0": {}, "false": {}, "no": {}, "n": {}, "off": {}}
)

// Truthy reports whether s is one of 1, true, yes, y or on, ignoring case and
// surrounding space.
func Truthy(s string) bool {
	_, ok := truthy[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

type reader struct {
	lookup func(string) (string, bool)
	err    error
}

func (r *reader) fail(key string, err error) {
	r.err = errors.Join(r.err, fmt.Errorf("%s: %w", key, err))
}

func (r *reader) value(key string) (string, bool) {
	v, ok := r.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (r *reader) string(key, def string) string {
	if v, ok := r.value(key); ok {
		return v
	}
	return def
}

func (r *reader) bool(key string, def bool) bool {
	v, ok := r.value(key)
	if !ok {
		return def
	}
	if Truthy(v) {
		return true
	}
	if _, ok := falsy[strings.ToLower(v)]; ok {
		return false
	}
	r.fail(key, fmt.Errorf("invalid boolean %q", v))
	return def
}

func (r *reader) float(key string, def float64) float64 {
	v, ok := r.value(key)
	if !ok {
		return def
	}
	f, err := swag.ConvertFloat64(v)
	if err != nil {
		r.fail(key, fmt.Errorf("invalid number %q", v))
		return def
	}
	return f
}

func (r *reader) int(key string, def int) int {
	v, ok := r.value(key)
	if !ok {
		return def
	}
	i, err := swag.ConvertInt64(v)
	if err != nil {
		r.fail(key, fmt.Errorf("invalid integer %q", v))
		return def
	}
	return int(i)
}
