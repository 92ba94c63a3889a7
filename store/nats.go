package store

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"ar-io-observer/logging"
	"ar-io-observer/report"
)

// ReportSavedEvent announces a completed pipeline pass to local consumers.
type ReportSavedEvent struct {
	ID                 string   `json:"id"`
	EpochStartHeight   int64    `json:"epochStartHeight"`
	EpochEndHeight     int64    `json:"epochEndHeight"`
	ObserverAddress    string   `json:"observerAddress"`
	ReportTxID         string   `json:"reportTxId,omitempty"`
	InteractionTxIDs   []string `json:"interactionTxIds"`
	FailedInteractions int      `json:"failedInteractions"`
	FailedGatewayCount int      `json:"failedGatewayCount"`
}

// NatsReportSink publishes a ReportSavedEvent to a JetStream subject. It adds
// no identifiers to the result.
type NatsReportSink struct {
	js      nats.JetStreamContext
	subject string
}

func NewNatsReportSink(nc *nats.Conn, subject string) (*NatsReportSink, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get JetStream context")
	}
	return &NatsReportSink{js: js, subject: subject}, nil
}

func (s *NatsReportSink) SaveReport(ctx context.Context, r *report.ObserverReport, prior report.SaveResult) (report.SaveResult, error) {
	event := ReportSavedEvent{
		ID:                 uuid.New().String(),
		EpochStartHeight:   r.EpochStartHeight,
		EpochEndHeight:     r.EpochEndHeight,
		ObserverAddress:    r.ObserverAddress,
		ReportTxID:         prior.ReportTxID,
		InteractionTxIDs:   prior.InteractionTxIDs(),
		FailedInteractions: prior.FailedInteractions(),
		FailedGatewayCount: len(r.FailedGateways()),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return prior, err
	}
	if _, err := s.js.Publish(s.subject, data, nats.MsgId(event.ID), nats.Context(ctx)); err != nil {
		return prior, errors.Wrap(err, "publishing report saved event")
	}
	logging.Debug("Published report saved event", logging.Messages, "id", event.ID, "subject", s.subject)
	return prior, nil
}
