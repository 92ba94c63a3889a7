// Package names selects which ArNS names are assessed during an epoch.
package names

import (
	"context"
	"crypto/sha256"
	"encoding/binary"

	"github.com/pkg/errors"

	"ar-io-observer/entropy"
	"ar-io-observer/logging"
)

type NameList interface {
	GetNames(ctx context.Context) ([]string, error)
}

// Sampler draws a bounded, entropy-seeded subset of a name list. Seeded with
// chain entropy it yields the same names on every observer; seeded with
// composite entropy each observer diversifies its coverage.
type Sampler struct {
	nameList NameList
	entropy  entropy.Source
	count    int
}

func NewSampler(nameList NameList, source entropy.Source, count int) *Sampler {
	return &Sampler{
		nameList: nameList,
		entropy:  source,
		count:    count,
	}
}

// GetNames returns min(count, len(list)) names for height. A non-positive
// count uses the sampler's configured count.
func (s *Sampler) GetNames(ctx context.Context, height int64, count int) ([]string, error) {
	if count <= 0 {
		count = s.count
	}
	candidates, err := s.nameList.GetNames(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fetching name list")
	}
	seed, err := s.entropy.GetEntropy(ctx, height)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching entropy for height %d", height)
	}
	selected := SelectNames(candidates, seed, count)
	logging.Debug("Sampled names", logging.Names, "height", height, "candidates", len(candidates), "selected", len(selected))
	return selected, nil
}

// SelectNames permutes a copy of candidates with a Fisher-Yates shuffle driven
// by seed and returns the first count entries.
func SelectNames(candidates []string, seed []byte, count int) []string {
	if count > len(candidates) {
		count = len(candidates)
	}
	if count <= 0 {
		return []string{}
	}
	shuffled := make([]string, len(candidates))
	copy(shuffled, candidates)

	stream := newSeedStream(seed)
	for i := len(shuffled) - 1; i > 0; i-- {
		j := int(stream.next() % uint32(i+1))
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return shuffled[:count]
}

// seedStream yields successive big-endian uint32 values from a seed,
// re-hashing the block with sha256 whenever it is exhausted.
type seedStream struct {
	block []byte
	pos   int
}

func newSeedStream(seed []byte) *seedStream {
	if len(seed) < 4 {
		sum := sha256.Sum256(seed)
		seed = sum[:]
	}
	return &seedStream{block: seed}
}

func (s *seedStream) next() uint32 {
	if s.pos+4 > len(s.block) {
		sum := sha256.Sum256(s.block)
		s.block = sum[:]
		s.pos = 0
	}
	v := binary.BigEndian.Uint32(s.block[s.pos : s.pos+4])
	s.pos += 4
	return v
}
