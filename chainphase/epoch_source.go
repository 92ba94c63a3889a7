package chainphase

import (
	"context"

	"ar-io-observer/logging"
)

const (
	DefaultEpochZeroStartHeight int64 = 0
	DefaultEpochBlockLength     int64 = 5000
)

// Epoch is a window of consecutive block heights. EndHeight is inclusive.
type Epoch struct {
	StartHeight int64 `json:"startHeight"`
	EndHeight   int64 `json:"endHeight"`
	EpochLength int64 `json:"epochLength"`
}

func (e Epoch) Contains(height int64) bool {
	return height >= e.StartHeight && height <= e.EndHeight
}

type EpochParams struct {
	EpochZeroStartHeight int64 `json:"epochZeroStartHeight"`
	EpochBlockLength     int64 `json:"epochBlockLength"`
}

func DefaultEpochParams() EpochParams {
	return EpochParams{
		EpochZeroStartHeight: DefaultEpochZeroStartHeight,
		EpochBlockLength:     DefaultEpochBlockLength,
	}
}

type HeightSource interface {
	GetHeight(ctx context.Context) (int64, error)
}

type EpochParamsFetcher interface {
	GetCurrentEpoch(ctx context.Context) (EpochParams, error)
}

// LoadEpochParams reads the epoch parameters from the contract. Epoch math
// must never block report generation, so any failure falls back to defaults.
func LoadEpochParams(ctx context.Context, fetcher EpochParamsFetcher, defaults EpochParams) EpochParams {
	if fetcher == nil {
		logging.Warn("No epoch parameter source configured - using default values", logging.Epochs,
			"epochZeroStartHeight", defaults.EpochZeroStartHeight,
			"epochBlockLength", defaults.EpochBlockLength)
		return defaults
	}
	params, err := fetcher.GetCurrentEpoch(ctx)
	if err != nil {
		logging.Warn("Unable to get epoch parameters from contract - using default values", logging.Epochs,
			"error", err,
			"epochZeroStartHeight", defaults.EpochZeroStartHeight,
			"epochBlockLength", defaults.EpochBlockLength)
		return defaults
	}
	if params.EpochBlockLength <= 0 {
		logging.Warn("Contract returned invalid epoch block length - using default values", logging.Epochs,
			"epochBlockLength", params.EpochBlockLength)
		return defaults
	}
	logging.Info("Loaded epoch parameters from contract", logging.Epochs,
		"epochZeroStartHeight", params.EpochZeroStartHeight,
		"epochBlockLength", params.EpochBlockLength)
	return params
}

type EpochHeightSource struct {
	heightSource HeightSource
	params       EpochParams
}

func NewEpochHeightSource(heightSource HeightSource, params EpochParams) *EpochHeightSource {
	if params.EpochBlockLength <= 0 {
		params.EpochBlockLength = DefaultEpochBlockLength
	}
	return &EpochHeightSource{
		heightSource: heightSource,
		params:       params,
	}
}

func (s *EpochHeightSource) Params() EpochParams {
	return s.params
}

// GetEpochForHeight maps a height to the epoch containing it. Heights before
// the first epoch map to the first epoch.
func (s *EpochHeightSource) GetEpochForHeight(height int64) Epoch {
	length := s.params.EpochBlockLength
	zero := s.params.EpochZeroStartHeight

	offset := height - zero
	if offset < 0 {
		offset = 0
	}
	start := zero + (offset/length)*length
	return Epoch{
		StartHeight: start,
		EndHeight:   start + length - 1,
		EpochLength: length,
	}
}

func (s *EpochHeightSource) GetCurrentHeight(ctx context.Context) (int64, error) {
	return s.heightSource.GetHeight(ctx)
}

func (s *EpochHeightSource) GetCurrentEpoch(ctx context.Context) (Epoch, error) {
	height, err := s.heightSource.GetHeight(ctx)
	if err != nil {
		return Epoch{}, err
	}
	return s.GetEpochForHeight(height), nil
}
