package startup

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"ar-io-observer/bundler"
	"ar-io-observer/nodeconfig"
	"ar-io-observer/scheduler"
)

type fakeNetwork struct {
	chain    *httptest.Server
	contract *httptest.Server
	bundler  *httptest.Server
	height   atomic.Int64
	observer atomic.Value
	uploads  atomic.Int64
}

func newFakeNetwork(t *testing.T) *fakeNetwork {
	t.Helper()
	n := &fakeNetwork{}
	n.height.Store(1940)
	n.observer.Store("")

	n.chain = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/height":
			fmt.Fprintf(w, "%d", n.height.Load())
		case strings.HasPrefix(r.URL.Path, "/block/height/"):
			h := strings.TrimPrefix(r.URL.Path, "/block/height/")
			hash := base64.RawURLEncoding.EncodeToString([]byte("block-hash-" + h))
			fmt.Fprintf(w, `{"indep_hash":%q,"height":%s}`, hash, h)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(n.chain.Close)

	n.contract = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/contract/contract-1/read/epoch":
			fmt.Fprint(w, `{"result":{"epochZeroStartHeight":0,"epochBlockLength":1000}}`)
		case "/v1/contract/contract-1/read/prescribed-observers":
			fmt.Fprintf(w, `{"result":[{"observerAddress":%q}]}`, n.observer.Load().(string))
		case "/v1/contract/contract-1/gateways":
			fmt.Fprint(w, `{"gateways":{}}`)
		case "/v1/contract/contract-1/records":
			fmt.Fprint(w, `{"records":{}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(n.contract.Close)

	n.bundler = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := n.uploads.Add(1)
		fmt.Fprintf(w, `{"id":"bundled-%d"}`, id)
	}))
	t.Cleanup(n.bundler.Close)
	return n
}

func writeConfig(t *testing.T, n *fakeNetwork, extra string) *nodeconfig.ConfigManager {
	t.Helper()
	dir := t.TempDir()
	yaml := fmt.Sprintf(`observer:
  data_dir: %s
  key_file: ""
  report_generation_interval: 1h
%s
chain:
  url: %s
  max_fork_depth: 50
contract:
  id: contract-1
  cache_url: %s
bundler:
  url: %s
`, filepath.Join(dir, "data"), extra, n.chain.URL, n.contract.URL, n.bundler.URL)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	manager, err := nodeconfig.LoadConfigManagerWithPaths(path, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })
	return manager
}

func TestNewSystem_RequiresObserverAddress(t *testing.T) {
	n := newFakeNetwork(t)
	config := writeConfig(t, n, "")

	_, err := NewSystem(context.Background(), config)
	require.ErrorIs(t, err, ErrNoObserverAddress)
}

func TestNewSystem_WalletOnlyIsReadOnly(t *testing.T) {
	n := newFakeNetwork(t)
	config := writeConfig(t, n, "  wallet: wallet-only")

	system, err := NewSystem(context.Background(), config)
	require.NoError(t, err)
	defer system.Close()

	require.Nil(t, system.Signer)
	require.Equal(t, []string{"fs"}, system.Pipeline.Names())
	require.Equal(t, "wallet-only", system.Observer.Address())
	require.Equal(t, int64(1000), system.Epochs.Params().EpochBlockLength)
}

func TestNewSystem_PublishesThroughPipeline(t *testing.T) {
	signer, err := bundler.GenerateSigner()
	require.NoError(t, err)
	jwk, err := signer.MarshalJWK()
	require.NoError(t, err)

	n := newFakeNetwork(t)
	n.observer.Store(signer.Address())
	config := writeConfig(t, n, fmt.Sprintf("  jwk: '%s'\n  submit_contract_interactions: true", jwk))

	ctx := context.Background()
	system, err := NewSystem(ctx, config)
	require.NoError(t, err)
	defer system.Close()

	require.Equal(t, signer.Address(), system.Observer.Address())
	require.Equal(t, []string{"fs", "turbo", "contract"}, system.Pipeline.Names())

	require.Equal(t, scheduler.OutcomePublishing, system.Scheduler.Tick(ctx))
	system.Scheduler.Wait()

	saves, err := config.ListReportSaves(ctx, 10)
	require.NoError(t, err)
	require.Len(t, saves, 1)
	require.Equal(t, int64(1000), saves[0].EpochStartHeight)
	require.Equal(t, "bundled-1", saves[0].ReportTxID)
	require.Empty(t, saves[0].Interactions)

	files, err := system.FsStore.ListReports(-1)
	require.NoError(t, err)
	require.Len(t, files, 1)

	require.Equal(t, scheduler.OutcomeAlreadyPublished, system.Scheduler.Tick(ctx))
	require.Equal(t, int64(1), n.uploads.Load())

	state := system.Tracker.GetCurrentEpochState()
	require.NotNil(t, state)
	require.Equal(t, int64(1940), state.CurrentHeight)
}
