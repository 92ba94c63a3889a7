package chainphase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fixedHeight int64

func (h fixedHeight) GetHeight(ctx context.Context) (int64, error) {
	return int64(h), nil
}

type fakeParamsFetcher struct {
	params EpochParams
	err    error
}

func (f *fakeParamsFetcher) GetCurrentEpoch(ctx context.Context) (EpochParams, error) {
	return f.params, f.err
}

func TestGetEpochForHeight(t *testing.T) {
	source := NewEpochHeightSource(fixedHeight(0), EpochParams{EpochZeroStartHeight: 1000, EpochBlockLength: 1000})

	tests := []struct {
		height        int64
		expectedStart int64
	}{
		{1000, 1000},
		{1001, 1000},
		{1999, 1000},
		{2000, 2000},
		{2500, 2000},
		{10999, 10000},
	}
	for _, tt := range tests {
		epoch := source.GetEpochForHeight(tt.height)
		require.Equal(t, tt.expectedStart, epoch.StartHeight, "height %d", tt.height)
		require.Equal(t, tt.expectedStart+999, epoch.EndHeight, "height %d", tt.height)
		require.Equal(t, int64(1000), epoch.EpochLength)
		require.True(t, epoch.Contains(tt.height))
	}
}

func TestGetEpochForHeight_SameEpochSameStart(t *testing.T) {
	source := NewEpochHeightSource(fixedHeight(0), EpochParams{EpochZeroStartHeight: 37, EpochBlockLength: 720})
	first := source.GetEpochForHeight(37 + 720*3)
	for h := first.StartHeight; h <= first.EndHeight; h += 7 {
		require.Equal(t, first.StartHeight, source.GetEpochForHeight(h).StartHeight)
	}
	next := source.GetEpochForHeight(first.EndHeight + 1)
	require.Equal(t, first.EndHeight+1, next.StartHeight)
}

func TestGetEpochForHeight_BeforeEpochZero(t *testing.T) {
	source := NewEpochHeightSource(fixedHeight(0), EpochParams{EpochZeroStartHeight: 1000, EpochBlockLength: 100})
	epoch := source.GetEpochForHeight(10)
	require.Equal(t, int64(1000), epoch.StartHeight)
	require.Equal(t, int64(1099), epoch.EndHeight)
}

func TestGetCurrentEpoch(t *testing.T) {
	source := NewEpochHeightSource(fixedHeight(2345), EpochParams{EpochZeroStartHeight: 0, EpochBlockLength: 1000})
	epoch, err := source.GetCurrentEpoch(context.Background())
	require.NoError(t, err)
	require.Equal(t, Epoch{StartHeight: 2000, EndHeight: 2999, EpochLength: 1000}, epoch)
}

func TestNewEpochHeightSource_InvalidLengthUsesDefault(t *testing.T) {
	source := NewEpochHeightSource(fixedHeight(0), EpochParams{EpochBlockLength: 0})
	require.Equal(t, DefaultEpochBlockLength, source.Params().EpochBlockLength)
}

func TestLoadEpochParams(t *testing.T) {
	defaults := EpochParams{EpochZeroStartHeight: 1, EpochBlockLength: 10}

	params := LoadEpochParams(context.Background(), &fakeParamsFetcher{
		params: EpochParams{EpochZeroStartHeight: 500, EpochBlockLength: 720},
	}, defaults)
	require.Equal(t, EpochParams{EpochZeroStartHeight: 500, EpochBlockLength: 720}, params)

	params = LoadEpochParams(context.Background(), &fakeParamsFetcher{err: errors.New("cache unavailable")}, defaults)
	require.Equal(t, defaults, params)

	params = LoadEpochParams(context.Background(), &fakeParamsFetcher{params: EpochParams{EpochBlockLength: -1}}, defaults)
	require.Equal(t, defaults, params)

	params = LoadEpochParams(context.Background(), nil, defaults)
	require.Equal(t, defaults, params)
}

func TestChainPhaseTracker(t *testing.T) {
	tracker := NewChainPhaseTracker()
	require.Nil(t, tracker.GetCurrentEpochState())

	tracker.UpdateEpochParams(EpochParams{EpochBlockLength: 100})
	tracker.Update(150, Epoch{StartHeight: 100, EndHeight: 199, EpochLength: 100})

	state := tracker.GetCurrentEpochState()
	require.NotNil(t, state)
	require.Equal(t, int64(150), state.CurrentHeight)
	require.Equal(t, int64(100), state.Epoch.StartHeight)
	require.Equal(t, int64(100), state.EpochParams.EpochBlockLength)
}
