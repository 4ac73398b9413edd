package observability

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/phdev/Final-Assignment-Template/config"
	"github.com/phdev/Final-Assignment-Template/pkg/slogx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerName names the tracer of every span this module creates.
const TracerName = "hf-agents-unit4"

const (
	tracesPath          = "/v1/traces"
	langfuseTracesPath  = "/api/public/otel/v1/traces"
	langsmithTracesPath = "/otel/v1/traces"
)

var configureMu sync.Mutex

// Configure installs a global tracer provider that exports to every
// configured backend: the OTLP collector, Langfuse and LangSmith. It does
// nothing when no backend is configured or when an SDK tracer provider is
// already installed. The returned func flushes and stops the exporters.
func Configure(ctx context.Context, cfg config.Config) (func(context.Context) error, error) {
	configureMu.Lock()
	defer configureMu.Unlock()

	noop := func(context.Context) error { return nil }
	logger := slog.Default().With(slogx.LoggerName("observability"))

	if _, installed := otel.GetTracerProvider().(*sdktrace.TracerProvider); installed {
		logger.DebugContext(ctx, "tracer provider already installed")
		return noop, nil
	}

	exporters, err := newExporters(ctx, cfg)
	if err != nil {
		return noop, err
	}
	if len(exporters) == 0 {
		return noop, nil
	}

	res := resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(cfg.OTel.ServiceName))
	options := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	for _, exp := range exporters {
		options = append(options, sdktrace.WithBatcher(exp))
	}
	tp := sdktrace.NewTracerProvider(options...)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	logger.InfoContext(ctx, "tracing configured", slog.String("service", cfg.OTel.ServiceName), slog.Int("exporters", len(exporters)))

	return tp.Shutdown, nil
}

type exporterTarget struct {
	name    string
	url     string
	headers map[string]string
}

// exportTargets lists the OTLP/HTTP endpoints traces are sent to.
func exportTargets(cfg config.Config) []exporterTarget {
	var targets []exporterTarget
	if cfg.OTel.Enabled() {
		targets = append(targets, exporterTarget{
			name:    "otlp",
			url:     tracesURL(cfg.OTel.Endpoint),
			headers: ParseHeaders(cfg.OTel.Headers),
		})
	}
	if cfg.Langfuse.Enabled() {
		creds := base64.StdEncoding.EncodeToString([]byte(cfg.Langfuse.PublicKey + ":" + cfg.Langfuse.SecretKey))
		targets = append(targets, exporterTarget{
			name:    "langfuse",
			url:     cfg.Langfuse.Host + langfuseTracesPath,
			headers: map[string]string{"Authorization": "Basic " + creds},
		})
	}
	if cfg.LangSmith.Enabled() {
		headers := map[string]string{"x-api-key": cfg.LangSmith.APIKey}
		if cfg.LangSmith.Project != "" {
			headers["Langsmith-Project"] = cfg.LangSmith.Project
		}
		targets = append(targets, exporterTarget{
			name:    "langsmith",
			url:     cfg.LangSmith.Endpoint + langsmithTracesPath,
			headers: headers,
		})
	}
	return targets
}

func newExporters(ctx context.Context, cfg config.Config) ([]sdktrace.SpanExporter, error) {
	var (
		exporters []sdktrace.SpanExporter
		errs      error
	)
	for _, target := range exportTargets(cfg) {
		options := []otlptracehttp.Option{otlptracehttp.WithEndpointURL(target.url)}
		if len(target.headers) > 0 {
			options = append(options, otlptracehttp.WithHeaders(target.headers))
		}
		exp, err := otlptracehttp.New(ctx, options...)
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("%s exporter: %w", target.name, err))
			continue
		}
		exporters = append(exporters, exp)
	}
	if errs != nil {
		for _, exp := range exporters {
			_ = exp.Shutdown(ctx)
		}
		return nil, errs
	}
	return exporters, nil
}

// tracesURL turns a collector base URL into its traces endpoint.
func tracesURL(endpoint string) string {
	endpoint = strings.TrimRight(endpoint, "/")
	if strings.HasSuffix(endpoint, tracesPath) {
		return endpoint
	}
	return endpoint + tracesPath
}

// ParseHeaders reads the k=v,k=v form of OTEL_EXPORTER_OTLP_HEADERS. Parts
// without "=" are skipped, keys and values are trimmed. It returns nil when
// nothing was parsed.
func ParseHeaders(s string) map[string]string {
	var headers map[string]string
	for _, part := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if headers == nil {
			headers = make(map[string]string)
		}
		headers[k] = strings.TrimSpace(v)
	}
	return headers
}

// HTTPClient returns the client outbound API calls should use. With request
// instrumentation on, every request gets a client span and carries the
// trace context.
func HTTPClient(cfg config.OTel) *http.Client {
	if !cfg.InstrumentRequests {
		return http.DefaultClient
	}
	return &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
}

// Tracer returns the module's tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}
