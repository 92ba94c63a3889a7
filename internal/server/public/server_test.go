package public

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ar-io-observer/chainphase"
	"ar-io-observer/internal/reportcache"
	"ar-io-observer/nodeconfig"
	"ar-io-observer/report"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSavesLister struct {
	mock.Mock
}

func (m *MockSavesLister) ListReportSaves(ctx context.Context, limit int) ([]nodeconfig.ReportSaveRecord, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]nodeconfig.ReportSaveRecord), args.Error(1)
}

func newTestServer(t *testing.T) (*Server, *reportcache.MemoryCache, *MockSavesLister, *chainphase.ChainPhaseTracker) {
	t.Helper()
	cache := reportcache.NewMemoryCache()
	saves := &MockSavesLister{}
	tracker := chainphase.NewChainPhaseTracker()
	s := NewServer(Info{WalletAddress: "wallet-1", ContractID: "contract-1"}, cache, saves, tracker)
	return s, cache, saves, tracker
}

func doGet(s *Server, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func TestHealthcheck(t *testing.T) {
	s, _, _, _ := newTestServer(t)
	rec := doGet(s, "/ar-io/observer/healthcheck")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCurrentReport(t *testing.T) {
	s, cache, _, _ := newTestServer(t)

	rec := doGet(s, "/ar-io/observer/reports/current")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.JSONEq(t, `{"error":"Report not found"}`, rec.Body.String())

	r := &report.ObserverReport{
		FormatVersion:      report.FormatVersion,
		ObserverAddress:    "wallet-1",
		EpochStartHeight:   5000,
		EpochEndHeight:     9999,
		GatewayAssessments: map[string]report.GatewayAssessment{"gw": {Pass: true}},
	}
	require.NoError(t, cache.Set(context.Background(), reportcache.CurrentKey, r, time.Hour))

	rec = doGet(s, "/ar-io/observer/reports/current")
	require.Equal(t, http.StatusOK, rec.Code)
	var got report.ObserverReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, int64(5000), got.EpochStartHeight)
	require.True(t, got.GatewayAssessments["gw"].Pass)
}

func TestInfo(t *testing.T) {
	s, _, _, tracker := newTestServer(t)

	rec := doGet(s, "/ar-io/observer/info")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"wallet":"wallet-1","contractId":"contract-1"}`, rec.Body.String())

	tracker.Update(1234, chainphase.Epoch{StartHeight: 1000, EndHeight: 1999, EpochLength: 1000})
	rec = doGet(s, "/ar-io/observer/info")
	require.Equal(t, http.StatusOK, rec.Code)
	var got InfoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.NotNil(t, got.CurrentHeight)
	require.Equal(t, int64(1234), *got.CurrentHeight)
	require.Equal(t, int64(1999), got.Epoch.EndHeight)
}

func TestReportSaves(t *testing.T) {
	s, _, saves, _ := newTestServer(t)
	records := []nodeconfig.ReportSaveRecord{
		{ID: 2, EpochStartHeight: 2000, ReportTxID: "tx-2"},
		{ID: 1, EpochStartHeight: 1000, ReportTxID: "tx-1"},
	}
	saves.On("ListReportSaves", mock.Anything, defaultSavesLimit).Return(records, nil)
	saves.On("ListReportSaves", mock.Anything, 1).Return(records[:1], nil)
	saves.On("ListReportSaves", mock.Anything, maxSavesLimit).Return(records, nil)

	rec := doGet(s, "/ar-io/observer/reports/saves")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doGet(s, "/ar-io/observer/reports/saves?limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Saves []nodeconfig.ReportSaveRecord `json:"saves"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Saves, 1)
	require.Equal(t, "tx-2", body.Saves[0].ReportTxID)

	rec = doGet(s, "/ar-io/observer/reports/saves?limit=5000")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doGet(s, "/ar-io/observer/reports/saves?limit=abc")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	saves.AssertExpectations(t)
}
