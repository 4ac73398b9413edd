package slogx

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"WARN", slog.LevelWarn, false},
		{" error ", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Format: FormatJSON, Out: &buf})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("shown", LoggerName("calc"), Error(errors.New("boom")))

	out := buf.Bytes()
	assert.NotContains(t, string(out), "hidden")
	doc := gjson.ParseBytes(bytes.TrimSpace(out))
	assert.Equal(t, "shown", doc.Get("message").String())
	assert.Equal(t, "calc", doc.Get(KeyLoggerName).String())
	assert.Equal(t, "boom", doc.Get("error").String())
}

func TestNewInvalid(t *testing.T) {
	_, err := New(Options{Format: "xml"})
	assert.Error(t, err)

	_, err = New(Options{Level: "chatty"})
	assert.Error(t, err)
}

func TestErrorNil(t *testing.T) {
	assert.Equal(t, "<nil>", Error(nil).Value.String())
}
