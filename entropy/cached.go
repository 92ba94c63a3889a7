package entropy

import (
	"context"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"

	"ar-io-observer/logging"
)

type BadgerStore struct {
	db *badger.DB
}

func OpenBadgerStore(dataDir string) (*BadgerStore, error) {
	dbPath := filepath.Join(dataDir, "entropy")
	db, err := badger.Open(badger.DefaultOptions(dbPath).WithLogger(nil))
	if err != nil {
		return nil, errors.Wrapf(err, "opening entropy store at %s", dbPath)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func entropyKey(height int64) []byte {
	return []byte("entropy:" + strconv.FormatInt(height, 10))
}

// Get returns ok=false when nothing is stored for height.
func (s *BadgerStore) Get(height int64) ([]byte, bool, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(entropyKey(height))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

func (s *BadgerStore) Put(height int64, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entropyKey(height), value)
	})
}

// CachedEntropySource pins the first value produced by the wrapped source for
// each height. Wrapping a RandomEntropySource makes the entropy stable per
// node and height while remaining unknown to other parties.
type CachedEntropySource struct {
	source Source
	store  *BadgerStore

	mu sync.Mutex
}

func NewCachedEntropySource(source Source, store *BadgerStore) *CachedEntropySource {
	return &CachedEntropySource{
		source: source,
		store:  store,
	}
}

func (s *CachedEntropySource) GetEntropy(ctx context.Context, height int64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cached, ok, err := s.store.Get(height)
	if err != nil {
		return nil, errors.Wrapf(err, "reading cached entropy for height %d", height)
	}
	if ok {
		return cached, nil
	}

	value, err := s.source.GetEntropy(ctx, height)
	if err != nil {
		return nil, err
	}
	if err := s.store.Put(height, value); err != nil {
		return nil, errors.Wrapf(err, "caching entropy for height %d", height)
	}
	logging.Debug("Cached new entropy", logging.Entropy, "height", height)
	return value, nil
}
