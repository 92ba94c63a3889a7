// Package entropy provides byte strings tied to a block height. Sources are
// layered to balance verifiability (anyone can derive the bytes from public
// chain data) against unpredictability (node-local randomness).
package entropy

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"

	"github.com/pkg/errors"
	"golang.org/x/crypto/sha3"

	"ar-io-observer/logging"
)

// Source returns entropy for a height. Errors are transient I/O failures of
// the underlying collaborator.
type Source interface {
	GetEntropy(ctx context.Context, height int64) ([]byte, error)
}

type ChainDataSource interface {
	GetEntropySourceData(ctx context.Context, height int64) ([]byte, error)
}

// ChainEntropySource is verifiable: any party holding the block at height
// derives the same bytes.
type ChainEntropySource struct {
	chain ChainDataSource
}

func NewChainEntropySource(chain ChainDataSource) *ChainEntropySource {
	return &ChainEntropySource{chain: chain}
}

func (s *ChainEntropySource) GetEntropy(ctx context.Context, height int64) ([]byte, error) {
	data, err := s.chain.GetEntropySourceData(ctx, height)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching chain entropy data for height %d", height)
	}
	if len(data) == 0 {
		return nil, errors.Errorf("empty chain entropy data for height %d", height)
	}
	h := sha3.New256()
	h.Write(data)
	return h.Sum(nil), nil
}

const RandomEntropySize = 32

// RandomEntropySource ignores the height.
type RandomEntropySource struct {
	size int
}

func NewRandomEntropySource() *RandomEntropySource {
	return &RandomEntropySource{size: RandomEntropySize}
}

func (s *RandomEntropySource) GetEntropy(ctx context.Context, height int64) ([]byte, error) {
	buf := make([]byte, s.size)
	if _, err := rand.Read(buf); err != nil {
		return nil, errors.Wrap(err, "reading random entropy")
	}
	return buf, nil
}

// CompositeEntropySource combines the entropy of every member for a height.
// Each member's bytes are length-prefixed before hashing so that member
// boundaries cannot be shifted. Any member failure fails the whole call.
type CompositeEntropySource struct {
	sources []Source
}

func NewCompositeEntropySource(sources ...Source) *CompositeEntropySource {
	return &CompositeEntropySource{sources: sources}
}

func (s *CompositeEntropySource) GetEntropy(ctx context.Context, height int64) ([]byte, error) {
	if len(s.sources) == 0 {
		return nil, errors.New("composite entropy source has no members")
	}
	h := sha256.New()
	var prefix [4]byte
	for i, source := range s.sources {
		data, err := source.GetEntropy(ctx, height)
		if err != nil {
			logging.Warn("Composite entropy member failed", logging.Entropy, "member", i, "height", height, "error", err)
			return nil, errors.Wrapf(err, "composite entropy member %d", i)
		}
		binary.BigEndian.PutUint32(prefix[:], uint32(len(data)))
		h.Write(prefix[:])
		h.Write(data)
	}
	return h.Sum(nil), nil
}
