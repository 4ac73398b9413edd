package tprl

import (
	"fmt"
	"log/slog"

	"github.com/phdev/Final-Assignment-Template/config"
	"github.com/phdev/Final-Assignment-Template/pkg/slogx"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/log"
)

// Options maps the Temporal settings onto client options. An empty address
// means the local development server.
func Options(cfg config.Temporal) client.Options {
	hostPort := cfg.Address
	if hostPort == "" {
		hostPort = client.DefaultHostPort
	}
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = client.DefaultNamespace
	}
	lg := slog.Default().With(slogx.LoggerName("temporal"))

	return client.Options{
		HostPort:  hostPort,
		Namespace: namespace,
		Logger:    log.NewStructuredLogger(lg),
	}
}

// NewClient creates a lazy client: the connection is made on first use.
func NewClient(cfg config.Temporal) (client.Client, error) {
	cl, err := client.NewLazyClient(Options(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create temporal client: %w", err)
	}
	return cl, nil
}
