package scheduler

import (
	"encoding/binary"

	"golang.org/x/exp/slices"
)

type Outcome string

const (
	OutcomeGenerationFailed     Outcome = "generation_failed"
	OutcomeNoObservers          Outcome = "no_observers"
	OutcomeNotSelected          Outcome = "not_selected"
	OutcomeTooCloseToEpochEnd   Outcome = "too_close_to_epoch_end"
	OutcomeSaveHeightNotReached Outcome = "save_height_not_reached"
	OutcomeAlreadyPublished     Outcome = "already_published"
	OutcomePublishInFlight      Outcome = "publish_in_flight"
	OutcomePublishing           Outcome = "publishing"
	OutcomeError                Outcome = "error"
)

// SaveAfterHeight scatters an observer's publish height across the safe part
// of the epoch: at least maxForkDepth blocks after the start and at least
// 2*maxForkDepth blocks before the end.
func SaveAfterHeight(epochStartHeight, epochLength, maxForkDepth int64, entropy []byte) int64 {
	startOffset := maxForkDepth
	endOffset := 2 * maxForkDepth
	window := epochLength - startOffset - endOffset
	if window <= 0 || len(entropy) < 4 {
		return epochStartHeight + startOffset
	}
	return epochStartHeight + startOffset + int64(binary.BigEndian.Uint32(entropy[:4]))%window
}

type GateInput struct {
	ObserverAddress string
	Observers       []string
	CurrentHeight   int64
	EpochEndHeight  int64
	SaveAfterHeight int64
	MaxForkDepth    int64
}

// EvaluateGates applies, in order, the selection, fork-safety and
// earliest-height checks. It returns OutcomePublishing when all pass.
func EvaluateGates(in GateInput) Outcome {
	switch {
	case len(in.Observers) == 0:
		return OutcomeNoObservers
	case !slices.Contains(in.Observers, in.ObserverAddress):
		return OutcomeNotSelected
	case in.CurrentHeight > in.EpochEndHeight-in.MaxForkDepth:
		return OutcomeTooCloseToEpochEnd
	case in.CurrentHeight < in.SaveAfterHeight:
		return OutcomeSaveHeightNotReached
	}
	return OutcomePublishing
}
