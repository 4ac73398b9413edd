package natsx

import (
	"errors"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/phdev/Final-Assignment-Template/pkg/slogx"
)

// ErrNoURL is returned by Connect when no server URL is configured.
var ErrNoURL = errors.New("nats: no server url configured")

// Connect dials the NATS server at url. Without options the connection is
// named after the client and logs disconnects through slog.
func Connect(url, name string, opts ...nats.Option) (*nats.Conn, error) {
	if url == "" {
		return nil, ErrNoURL
	}
	if len(opts) == 0 {
		logger := slog.Default().With(slogx.LoggerName("nats"))
		opts = append(opts,
			nats.Name(name),
			nats.Compression(true),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				if err != nil {
					logger.Warn("disconnected", slogx.Error(err))
				}
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				logger.Info("reconnected", slog.String("url", nc.ConnectedUrl()))
			}),
		)
	}
	return nats.Connect(url, opts...)
}
