package hosts

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"ar-io-observer/contractclient"
)

type fakeGateways struct {
	gateways map[string]contractclient.Gateway
	err      error
}

func (f fakeGateways) GetGateways(ctx context.Context) (map[string]contractclient.Gateway, error) {
	return f.gateways, f.err
}

func TestStaticHostsSource(t *testing.T) {
	hosts, err := NewStaticHostsSource([]string{"a.example", "", "b.example"}).GetHosts(context.Background())
	require.NoError(t, err)
	require.Equal(t, []HostRecord{
		{FQDN: "a.example", WalletAddress: UnknownWallet},
		{FQDN: "b.example", WalletAddress: UnknownWallet},
	}, hosts)
}

func TestRemoteCacheHostsSource(t *testing.T) {
	source := NewRemoteCacheHostsSource(fakeGateways{gateways: map[string]contractclient.Gateway{
		"wallet-b": {Settings: contractclient.GatewaySettings{FQDN: "b.example"}},
		"wallet-a": {Settings: contractclient.GatewaySettings{FQDN: "a.example"}},
		"wallet-c": {},
	}})
	hosts, err := source.GetHosts(context.Background())
	require.NoError(t, err)
	require.Equal(t, []HostRecord{
		{FQDN: "a.example", WalletAddress: "wallet-a"},
		{FQDN: "b.example", WalletAddress: "wallet-b"},
	}, hosts)

	_, err = NewRemoteCacheHostsSource(fakeGateways{err: errors.New("down")}).GetHosts(context.Background())
	require.Error(t, err)
}
