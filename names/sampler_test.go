package names

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ar-io-observer/contractclient"
	"ar-io-observer/entropy"
)

type fixedEntropy []byte

func (f fixedEntropy) GetEntropy(ctx context.Context, height int64) ([]byte, error) {
	sum := sha256.Sum256(append([]byte(f), byte(height)))
	return sum[:], nil
}

type brokenEntropy struct{}

func (brokenEntropy) GetEntropy(ctx context.Context, height int64) ([]byte, error) {
	return nil, errors.New("chain unavailable")
}

type fakeRecords map[string]contractclient.NameRecord

func (f fakeRecords) GetNameRecords(ctx context.Context) (map[string]contractclient.NameRecord, error) {
	return f, nil
}

func candidateNames(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("name-%03d", i)
	}
	return out
}

func TestSelectNames_Deterministic(t *testing.T) {
	seed := []byte("same-seed-for-everyone")
	a := SelectNames(candidateNames(100), seed, 8)
	b := SelectNames(candidateNames(100), seed, 8)
	require.Equal(t, a, b)
	require.Len(t, a, 8)

	c := SelectNames(candidateNames(100), []byte("another-seed"), 8)
	require.NotEqual(t, a, c)
}

func TestSelectNames_Clamp(t *testing.T) {
	selected := SelectNames(candidateNames(3), []byte("seed"), 10)
	require.Len(t, selected, 3)
	require.ElementsMatch(t, candidateNames(3), selected)

	require.Empty(t, SelectNames(nil, []byte("seed"), 5))
	require.Empty(t, SelectNames(candidateNames(5), []byte("seed"), 0))
}

func TestSelectNames_NoDuplicatesAndInputUntouched(t *testing.T) {
	candidates := candidateNames(50)
	selected := SelectNames(candidates, []byte{1, 2, 3, 4, 5, 6, 7, 8}, 50)

	seen := map[string]bool{}
	for _, n := range selected {
		require.False(t, seen[n], "duplicate %s", n)
		seen[n] = true
	}
	require.Equal(t, candidateNames(50), candidates)
}

func TestSeedStream_RehashesWhenExhausted(t *testing.T) {
	stream := newSeedStream([]byte{0, 0, 0, 1, 0, 0, 0, 2})
	require.Equal(t, uint32(1), stream.next())
	require.Equal(t, uint32(2), stream.next())
	third := stream.next()
	fourth := stream.next()
	require.NotEqual(t, third, fourth)
}

func TestSampler_PrescribedAgreeAcrossInstances(t *testing.T) {
	list := NewStaticNameList(candidateNames(40))
	a := NewSampler(list, fixedEntropy("chain"), 8)
	b := NewSampler(NewStaticNameList(candidateNames(40)), fixedEntropy("chain"), 8)

	first, err := a.GetNames(context.Background(), 1000, 0)
	require.NoError(t, err)
	second, err := b.GetNames(context.Background(), 1000, 0)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Len(t, first, 8)
}

func TestSampler_ChosenVaryWithRandomEntropy(t *testing.T) {
	list := NewStaticNameList(candidateNames(200))
	sampler := NewSampler(list, entropy.NewRandomEntropySource(), 8)

	first, err := sampler.GetNames(context.Background(), 1000, 0)
	require.NoError(t, err)
	second, err := sampler.GetNames(context.Background(), 1000, 0)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestSampler_EntropyFailure(t *testing.T) {
	sampler := NewSampler(NewStaticNameList(candidateNames(5)), brokenEntropy{}, 2)
	_, err := sampler.GetNames(context.Background(), 1, 0)
	require.Error(t, err)
}

func TestNameLists_Sorted(t *testing.T) {
	static := NewStaticNameList([]string{"zeta", "alpha", "", "alpha", "mid"})
	names, err := static.GetNames(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"alpha", "mid", "zeta"}, names)

	remote := NewRemoteCacheNameList(fakeRecords{"ardrive": {}, "arns": {}, "ao": {}})
	names, err = remote.GetNames(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"ao", "ardrive", "arns"}, names)
}
