package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"

	natsserver "ar-io-observer/internal/nats/server"
	"ar-io-observer/nodeconfig"
	"ar-io-observer/report"
)

func TestNatsReportSink(t *testing.T) {
	srv := natsserver.NewServer(nodeconfig.NatsConfig{Host: "127.0.0.1", Port: -1, StoreDir: t.TempDir()})
	require.NoError(t, srv.Start())
	defer srv.Shutdown()

	nc, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	sub, err := nc.SubscribeSync(natsserver.ReportsStream)
	require.NoError(t, err)

	sink, err := NewNatsReportSink(nc, natsserver.ReportsStream)
	require.NoError(t, err)

	prior := report.SaveResult{
		ReportTxID:   "report-tx",
		Interactions: []report.InteractionOutcome{{TxID: "i-1"}, {Failed: true}},
	}
	result, err := sink.SaveReport(context.Background(), testReport("gw-1"), prior)
	require.NoError(t, err)
	require.Equal(t, prior, result)

	msg, err := sub.NextMsg(5 * time.Second)
	require.NoError(t, err)
	var event ReportSavedEvent
	require.NoError(t, json.Unmarshal(msg.Data, &event))
	require.Equal(t, "report-tx", event.ReportTxID)
	require.Equal(t, []string{"i-1"}, event.InteractionTxIDs)
	require.Equal(t, 1, event.FailedInteractions)
	require.Equal(t, 1, event.FailedGatewayCount)
	require.NotEmpty(t, event.ID)
}
