package report

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFailedGateways(t *testing.T) {
	r := ObserverReport{
		GatewayAssessments: map[string]GatewayAssessment{
			"gw-c": {Pass: false},
			"gw-a": {Pass: false},
			"gw-b": {Pass: true},
		},
	}
	require.Equal(t, []string{"gw-a", "gw-c"}, r.FailedGateways())
}

func TestFailedGateways_AllPass(t *testing.T) {
	r := ObserverReport{
		GatewayAssessments: map[string]GatewayAssessment{
			"gw-a": {Pass: true},
		},
	}
	require.Empty(t, r.FailedGateways())
	require.NotNil(t, r.FailedGateways())
}

func TestSaveResult_InteractionTxIDs(t *testing.T) {
	result := SaveResult{
		ReportTxID: "report-tx",
		Interactions: []InteractionOutcome{
			{TxID: "tx-1"},
			{Failed: true, Error: "upload failed"},
			{TxID: "tx-3"},
		},
	}
	require.True(t, result.HasReportTxID())
	require.Equal(t, []string{"tx-1", "tx-3"}, result.InteractionTxIDs())
	require.Equal(t, 1, result.FailedInteractions())
}
