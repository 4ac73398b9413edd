// Package tools exposes the functions the calculator agent may call.
package tools

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/phdev/Final-Assignment-Template/calc"
	"github.com/phdev/Final-Assignment-Template/pkg/slogx"
	"github.com/phdev/Final-Assignment-Template/tool"
)

const (
	CalculatorName = "calculator"
	NowUTCName     = "now_utc"

	calculatorDescription = "Evaluate a simple arithmetic expression and return the numeric result."
	nowUTCDescription     = "Return the current UTC time in ISO-8601 format."
)

// Calculator evaluates expression with the restricted evaluator. It never
// fails at the interface level: problems come back as "ERROR: ..." text.
func Calculator(expression string) string {
	v, err := calc.Evaluate(strings.TrimSpace(expression))
	if err != nil {
		attrs := []any{slogx.LoggerName("tools"), slog.String("expression", expression), slogx.Error(err)}
		var cerr *calc.Error
		if errors.As(err, &cerr) {
			attrs = append(attrs, slogx.Stringer("kind", cerr.Kind), slog.Int("offset", cerr.Offset))
			if cerr.Detail != "" {
				attrs = append(attrs, slog.String("detail", cerr.Detail))
			}
		}
		slog.Debug("calculator rejected expression", attrs...)
	}
	return calc.Format(v, err)
}

// NowUTC returns the current instant in UTC as YYYY-MM-DDTHH:MM:SS[.ffffff]+00:00.
func NowUTC() string {
	return isoformat(clock())
}

var clock = time.Now

func isoformat(t time.Time) string {
	t = t.UTC().Truncate(time.Microsecond)
	if t.Nanosecond() != 0 {
		return t.Format("2006-01-02T15:04:05.000000-07:00")
	}
	return t.Format("2006-01-02T15:04:05-07:00")
}

// Definitions describes both tools for the model.
func Definitions() []tool.Definition {
	return []tool.Definition{
		tool.Must(Calculator,
			tool.Name(CalculatorName),
			tool.Description(calculatorDescription),
			tool.Parameters("expression"),
		),
		tool.Must(NowUTC,
			tool.Name(NowUTCName),
			tool.Description(nowUTCDescription),
		),
	}
}
