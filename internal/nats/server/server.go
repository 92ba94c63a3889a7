package server

import (
	"time"

	natssrv "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"ar-io-observer/logging"
	"ar-io-observer/nodeconfig"
)

const (
	ReportsStream = "observer_reports"

	DefaultStoreDir = "./data/nats"
	DefaultPort     = 4222
	DefaultHost     = "127.0.0.1"
)

type NatsServer interface {
	Start() error
	ClientURL() string
	Shutdown()
}

type server struct {
	conf nodeconfig.NatsConfig
	ns   *natssrv.Server
}

func NewServer(config nodeconfig.NatsConfig) NatsServer {
	return &server{
		conf: config,
	}
}

func (s *server) Start() error {
	if s.conf.Host == "" {
		s.conf.Host = DefaultHost
	}

	if s.conf.Port == 0 {
		s.conf.Port = DefaultPort
	}

	if s.conf.StoreDir == "" {
		s.conf.StoreDir = DefaultStoreDir
	}

	logging.Info("starting nats server", logging.Messages, "port", s.conf.Port, "host", s.conf.Host, "storeDir", s.conf.StoreDir)

	opts := &natssrv.Options{
		Host:      s.conf.Host,
		Port:      s.conf.Port,
		JetStream: true,
		StoreDir:  s.conf.StoreDir,
		NoSigs:    true,
	}

	ns, err := natssrv.NewServer(opts)
	if err != nil {
		return errors.Wrap(err, "failed to create NATS server")
	}

	s.ns = ns
	go ns.Start()

	for i := 0; i < 3; i++ {
		if ns.ReadyForConnections(2 * time.Second) {
			break
		}
		if i == 2 {
			return errors.New("NATS server not ready after 3 attempts")
		}
	}

	return s.createJetStreamTopics([]string{ReportsStream})
}

func (s *server) ClientURL() string {
	if s.ns == nil {
		return ""
	}
	return s.ns.ClientURL()
}

func (s *server) Shutdown() {
	if s.ns != nil {
		s.ns.Shutdown()
		s.ns.WaitForShutdown()
	}
}

func (s *server) createJetStreamTopics(topicNames []string) error {
	nc, err := nats.Connect(s.ns.ClientURL())
	if err != nil {
		return errors.Wrap(err, "failed to connect to embedded NATS")
	}
	defer nc.Close()

	js, err := nc.JetStream()
	if err != nil {
		return errors.Wrap(err, "failed to get JetStream context")
	}

	for _, topic := range topicNames {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:     topic,
			Subjects: []string{topic},
			Storage:  nats.FileStorage,
			MaxAge:   30 * 24 * time.Hour,
		})

		if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			return errors.Wrap(err, "failed to add stream for topic "+topic)
		}
	}
	return nil
}
