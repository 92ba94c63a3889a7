package names

import (
	"context"

	"golang.org/x/exp/slices"

	"ar-io-observer/contractclient"
	"ar-io-observer/logging"
)

// StaticNameList serves a fixed set of names in sorted order.
type StaticNameList struct {
	names []string
}

func NewStaticNameList(names []string) *StaticNameList {
	return &StaticNameList{names: normalize(names)}
}

func (l *StaticNameList) GetNames(ctx context.Context) ([]string, error) {
	return slices.Clone(l.names), nil
}

type NameRecordsFetcher interface {
	GetNameRecords(ctx context.Context) (map[string]contractclient.NameRecord, error)
}

// RemoteCacheNameList refreshes the registered names from the contract cache
// on every call. Names are sorted so every observer permutes the same list.
type RemoteCacheNameList struct {
	fetcher NameRecordsFetcher
}

func NewRemoteCacheNameList(fetcher NameRecordsFetcher) *RemoteCacheNameList {
	return &RemoteCacheNameList{fetcher: fetcher}
}

func (l *RemoteCacheNameList) GetNames(ctx context.Context) ([]string, error) {
	records, err := l.fetcher.GetNameRecords(ctx)
	if err != nil {
		logging.Warn("Unable to fetch name records", logging.Names, "error", err)
		return nil, err
	}
	names := make([]string, 0, len(records))
	for name := range records {
		names = append(names, name)
	}
	return normalize(names), nil
}

func normalize(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n != "" {
			out = append(out, n)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
