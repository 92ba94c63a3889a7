// Package hosts lists the gateways assessed by the observer.
package hosts

import (
	"context"

	"golang.org/x/exp/slices"

	"ar-io-observer/contractclient"
	"ar-io-observer/logging"
)

// UnknownWallet marks a statically configured host whose operator wallet is
// not known to the observer.
const UnknownWallet = "<unknown>"

type HostRecord struct {
	FQDN          string `json:"fqdn"`
	WalletAddress string `json:"wallet"`
}

type Source interface {
	GetHosts(ctx context.Context) ([]HostRecord, error)
}

type StaticHostsSource struct {
	hosts []HostRecord
}

func NewStaticHostsSource(fqdns []string) *StaticHostsSource {
	hosts := make([]HostRecord, 0, len(fqdns))
	for _, fqdn := range fqdns {
		if fqdn == "" {
			continue
		}
		hosts = append(hosts, HostRecord{FQDN: fqdn, WalletAddress: UnknownWallet})
	}
	return &StaticHostsSource{hosts: hosts}
}

func (s *StaticHostsSource) GetHosts(ctx context.Context) ([]HostRecord, error) {
	return slices.Clone(s.hosts), nil
}

type GatewaysFetcher interface {
	GetGateways(ctx context.Context) (map[string]contractclient.Gateway, error)
}

// RemoteCacheHostsSource lists every gateway registered in the contract that
// advertises an fqdn, ordered by wallet address.
type RemoteCacheHostsSource struct {
	fetcher GatewaysFetcher
}

func NewRemoteCacheHostsSource(fetcher GatewaysFetcher) *RemoteCacheHostsSource {
	return &RemoteCacheHostsSource{fetcher: fetcher}
}

func (s *RemoteCacheHostsSource) GetHosts(ctx context.Context) ([]HostRecord, error) {
	gateways, err := s.fetcher.GetGateways(ctx)
	if err != nil {
		return nil, err
	}
	hosts := make([]HostRecord, 0, len(gateways))
	for address, gw := range gateways {
		if gw.Settings.FQDN == "" {
			logging.Debug("Skipping gateway without fqdn", logging.Hosts, "address", address)
			continue
		}
		hosts = append(hosts, HostRecord{FQDN: gw.Settings.FQDN, WalletAddress: address})
	}
	slices.SortFunc(hosts, func(a, b HostRecord) int {
		switch {
		case a.WalletAddress < b.WalletAddress:
			return -1
		case a.WalletAddress > b.WalletAddress:
			return 1
		}
		return 0
	})
	return hosts, nil
}
