package contractclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ar-io-observer/bundler"
	"ar-io-observer/utils"
)

func newCacheServer(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/contract/test-contract/read/epoch":
			_, _ = w.Write([]byte(`{"result":{"epochZeroStartHeight":1350700,"epochBlockLength":720,"epochStartHeight":1351420}}`))
		case "/v1/contract/test-contract/read/prescribed-observers":
			_, _ = w.Write([]byte(`{"result":[{"gatewayAddress":"gw-1","observerAddress":"obs-1"},{"gatewayAddress":"gw-2","observerAddress":"obs-2"}]}`))
		case "/v1/contract/test-contract/gateways":
			_, _ = w.Write([]byte(`{"gateways":{"gw-1":{"observerWallet":"obs-1","settings":{"fqdn":"one.example"}}}}`))
		case "/v1/contract/test-contract/records":
			_, _ = w.Write([]byte(`{"records":{"ardrive":{"contractTxId":"abc"},"arns":{"contractTxId":"def"}}}`))
		default:
			http.NotFound(w, r)
		}
	}))
}

func fastRetry() utils.RetryPolicy {
	return utils.RetryPolicy{MaxRetries: 1, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}
}

func TestReads(t *testing.T) {
	server := newCacheServer(t)
	defer server.Close()
	client := NewClient(server.URL, "test-contract").WithRetryPolicy(fastRetry())
	ctx := context.Background()

	params, err := client.GetCurrentEpoch(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1350700), params.EpochZeroStartHeight)
	assert.Equal(t, int64(720), params.EpochBlockLength)

	addresses, err := client.GetPrescribedObserverAddresses(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"obs-1", "obs-2"}, addresses)

	gateways, err := client.GetGateways(ctx)
	require.NoError(t, err)
	assert.Equal(t, "one.example", gateways["gw-1"].Settings.FQDN)

	records, err := client.GetNameRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestReadMissingContract(t *testing.T) {
	server := newCacheServer(t)
	defer server.Close()
	client := NewClient(server.URL, "other").WithRetryPolicy(fastRetry())

	_, err := client.GetCurrentEpoch(context.Background())
	require.ErrorIs(t, err, utils.ErrNotFound)
}

func TestWriteInteraction(t *testing.T) {
	signer, err := bundler.GenerateSigner()
	require.NoError(t, err)

	var item *bundler.DataItem
	bundlerServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		item, err = bundler.ParseDataItem(raw)
		require.NoError(t, err)
		_ = json.NewEncoder(w).Encode(bundler.UploadResult{ID: item.ID(), Owner: item.OwnerAddress()})
	}))
	defer bundlerServer.Close()

	client := NewClient("http://unused", "test-contract")
	_, err = client.WriteInteraction(context.Background(), map[string]string{"function": "saveObservations"})
	require.ErrorIs(t, err, ErrReadOnly)

	client.WithWriter(bundler.NewClient(bundlerServer.URL), signer)
	result, err := client.WriteInteraction(context.Background(), map[string]string{"function": "saveObservations"})
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, item.ID(), result.OriginalTxID)

	contract, _ := item.Tag("Contract")
	assert.Equal(t, "test-contract", contract)
	appName, _ := item.Tag("App-Name")
	assert.Equal(t, "SmartWeaveAction", appName)
	input, _ := item.Tag("Input")
	assert.JSONEq(t, `{"function":"saveObservations"}`, input)
}
