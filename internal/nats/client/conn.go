package client

import (
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"ar-io-observer/internal/nats/server"
	"ar-io-observer/logging"
)

const ClientName = "ar-io-observer"

// ConnectToNats dials the embedded server as the observer client and fails
// unless the reports stream is already provisioned.
func ConnectToNats(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(ClientName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, errors.Wrap(err, "failed to get JetStream context")
	}
	if _, err := js.StreamInfo(server.ReportsStream); err != nil {
		nc.Close()
		return nil, errors.Wrapf(err, "reports stream %s unavailable", server.ReportsStream)
	}
	logging.Info("Connected to nats", logging.Messages, "url", url, "stream", server.ReportsStream)
	return nc, nil
}
