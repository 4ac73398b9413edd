package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(env(nil))
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", cfg.ModelName)
	assert.Zero(t, cfg.ModelTemperature)
	assert.Empty(t, cfg.OpenAIBaseURL)
	assert.Equal(t, 10, cfg.MaxTurns)
	assert.False(t, cfg.Stream)
	assert.True(t, cfg.ParallelToolCalls)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)

	assert.False(t, cfg.OTel.Enabled())
	assert.Equal(t, "hf-agents-unit4", cfg.OTel.ServiceName)
	assert.True(t, cfg.OTel.InstrumentRequests)
	assert.False(t, cfg.Langfuse.Enabled())
	assert.Equal(t, "https://cloud.langfuse.com", cfg.Langfuse.Host)
	assert.False(t, cfg.LangSmith.Enabled())
	assert.Equal(t, "https://api.smith.langchain.com", cfg.LangSmith.Endpoint)

	assert.False(t, cfg.NATS.Enabled())
	assert.Equal(t, "agent.events", cfg.NATS.Subject)
	assert.Empty(t, cfg.Temporal.Address)
	assert.Equal(t, "default", cfg.Temporal.Namespace)
	assert.Equal(t, "calculator-agent", cfg.Temporal.TaskQueue)
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"MODEL_NAME":                  "gpt-4o",
		"MODEL_TEMPERATURE":           "0.7",
		"OPENAI_BASE_URL":             "http://localhost:8080/v1",
		"AGENT_MAX_TURNS":             "4",
		"AGENT_STREAM":                "Yes",
		"AGENT_PARALLEL_TOOL_CALLS":   "off",
		"LOG_LEVEL":                   "debug",
		"LOG_FORMAT":                  "JSON",
		"OTEL_EXPORTER_OTLP_ENDPOINT": "http://collector:4318",
		"OTEL_EXPORTER_OTLP_HEADERS":  "Authorization=Bearer x",
		"OTEL_INSTRUMENT_REQUESTS":    "0",
		"LANGFUSE_PUBLIC_KEY":         "pk",
		"LANGFUSE_SECRET_KEY":         "sk",
		"LANGFUSE_HOST":               "https://langfuse.example.com/",
		"LANGCHAIN_TRACING_V2":        "true",
		"LANGCHAIN_API_KEY":           "ls-key",
		"LANGCHAIN_PROJECT":           "unit4",
		"NATS_URL":                    "nats://localhost:4222",
		"TEMPORAL_ADDRESS":            "localhost:7233",
		"TEMPORAL_TASK_QUEUE":         "q",
		"MODEL_UNKNOWN":               "ignored",
		"AGENT_EVENTS_SUBJECT":        "   ",
	}))
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", cfg.ModelName)
	assert.InDelta(t, 0.7, cfg.ModelTemperature, 1e-9)
	assert.Equal(t, "http://localhost:8080/v1", cfg.OpenAIBaseURL)
	assert.Equal(t, 4, cfg.MaxTurns)
	assert.True(t, cfg.Stream)
	assert.False(t, cfg.ParallelToolCalls)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.OTel.Enabled())
	assert.Equal(t, "Authorization=Bearer x", cfg.OTel.Headers)
	assert.False(t, cfg.OTel.InstrumentRequests)
	assert.True(t, cfg.Langfuse.Enabled())
	assert.Equal(t, "https://langfuse.example.com", cfg.Langfuse.Host)
	assert.True(t, cfg.LangSmith.Enabled())
	assert.Equal(t, "unit4", cfg.LangSmith.Project)
	assert.True(t, cfg.NATS.Enabled())
	assert.Equal(t, "agent.events", cfg.NATS.Subject, "blank values fall back to the default")
	assert.Equal(t, "localhost:7233", cfg.Temporal.Address)
	assert.Equal(t, "q", cfg.Temporal.TaskQueue)
}

func TestFromEnvInvalidValues(t *testing.T) {
	_, err := FromEnv(env(map[string]string{
		"MODEL_TEMPERATURE": "hot",
		"AGENT_MAX_TURNS":   "0",
		"AGENT_STREAM":      "maybe",
		"LOG_LEVEL":         "loud",
		"LOG_FORMAT":        "xml",
	}))
	require.Error(t, err)

	for _, key := range []string{"MODEL_TEMPERATURE", "AGENT_MAX_TURNS", "AGENT_STREAM", "LOG_LEVEL", "LOG_FORMAT"} {
		assert.Contains(t, err.Error(), key)
	}
}

func TestFromEnvTemperatureRange(t *testing.T) {
	_, err := FromEnv(env(map[string]string{"MODEL_TEMPERATURE": "2.5"}))
	assert.ErrorContains(t, err, "MODEL_TEMPERATURE: must be between 0 and 2")

	_, err = FromEnv(env(map[string]string{"AGENT_MAX_TURNS": "ten"}))
	assert.ErrorContains(t, err, `invalid integer "ten"`)
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"1", true},
		{"true", true},
		{"TRUE", true},
		{" yes ", true},
		{"y", true},
		{"On", true},
		{"", false},
		{"0", false},
		{"false", false},
		{"enabled", false},
		{"t", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Truthy(tt.in))
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	const key = "AGENT_EVENTS_SUBJECT"
	if _, set := os.LookupEnv(key); set {
		t.Skipf("%s is set in the environment", key)
	}
	t.Cleanup(func() { os.Unsetenv(key) })

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(key+"=runs.calculator\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "runs.calculator", cfg.NATS.Subject)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorContains(t, err, "failed to load env files")
}

func TestRedacted(t *testing.T) {
	cfg := Config{
		OTel:      OTel{Headers: "Authorization=Bearer x"},
		Langfuse:  Langfuse{PublicKey: "pk", SecretKey: "sk"},
		LangSmith: LangSmith{APIKey: "ls"},
	}

	red := cfg.Redacted()
	assert.Equal(t, "[redacted]", red.OTel.Headers)
	assert.Equal(t, "pk", red.Langfuse.PublicKey)
	assert.Equal(t, "[redacted]", red.Langfuse.SecretKey)
	assert.Equal(t, "[redacted]", red.LangSmith.APIKey)
	assert.Equal(t, "sk", cfg.Langfuse.SecretKey, "the original is unchanged")
	assert.Empty(t, Config{}.Redacted().LangSmith.APIKey)
}
