package observability

import (
	"context"
	"fmt"
	"maps"

	"github.com/phdev/Final-Assignment-Template/config"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TaskSpanName is the root span of one answered question.
const TaskSpanName = "agent.task"

// spanMetadataKeys are the run metadata keys copied onto the task span.
var spanMetadataKeys = []string{"task_id", "username", "space_id", "model", "langsmith_project"}

// SpanAttributesFrom maps the known metadata keys to app.<key> string
// attributes. Missing and nil values are skipped.
func SpanAttributesFrom(metadata map[string]any) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	for _, key := range spanMetadataKeys {
		v, ok := metadata[key]
		if !ok || v == nil {
			continue
		}
		attrs = append(attrs, attribute.String("app."+key, fmt.Sprint(v)))
	}
	return attrs
}

// LangSmithMetadata returns the metadata LangSmith filters on.
func LangSmithMetadata(cfg config.LangSmith) map[string]any {
	md := make(map[string]any)
	if cfg.Project != "" {
		md["langsmith_project"] = cfg.Project
	}
	return md
}

// StartTaskSpan starts the agent.task span for question. The end func
// records err, when not nil, and ends the span.
func StartTaskSpan(ctx context.Context, cfg config.LangSmith, question string, metadata map[string]any) (context.Context, func(err error)) {
	md := maps.Clone(metadata)
	if md == nil {
		md = make(map[string]any)
	}
	maps.Copy(md, LangSmithMetadata(cfg))

	attrs := append(SpanAttributesFrom(md), attribute.Int("app.question_length", len(question)))
	ctx, span := Tracer().Start(ctx, TaskSpanName, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}
