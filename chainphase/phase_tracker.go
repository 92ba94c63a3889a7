package chainphase

import (
	"sync"
)

// ChainPhaseTracker acts as a thread-safe cache of the latest observed height
// and the epoch containing it. It is updated by the report scheduler on every
// tick and read by the HTTP API.
type ChainPhaseTracker struct {
	mu sync.RWMutex

	currentHeight int64
	currentEpoch  *Epoch
	epochParams   *EpochParams
}

func NewChainPhaseTracker() *ChainPhaseTracker {
	return &ChainPhaseTracker{}
}

func (t *ChainPhaseTracker) Update(height int64, epoch Epoch) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.currentHeight = height
	t.currentEpoch = &epoch
}

type EpochState struct {
	CurrentHeight int64       `json:"currentHeight"`
	Epoch         Epoch       `json:"epoch"`
	EpochParams   EpochParams `json:"epochParams"`
}

// GetCurrentEpochState returns nil until the first Update.
func (t *ChainPhaseTracker) GetCurrentEpochState() *EpochState {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.currentEpoch == nil {
		return nil
	}
	state := &EpochState{
		CurrentHeight: t.currentHeight,
		Epoch:         *t.currentEpoch,
	}
	if t.epochParams != nil {
		state.EpochParams = *t.epochParams
	}
	return state
}

func (t *ChainPhaseTracker) GetEpochParams() *EpochParams {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.epochParams
}

func (t *ChainPhaseTracker) UpdateEpochParams(params EpochParams) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.epochParams = &params
}
