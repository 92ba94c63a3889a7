// Package scheduler generates a report on every tick and decides whether
// and when it is published for the current epoch.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"ar-io-observer/chainphase"
	"ar-io-observer/entropy"
	"ar-io-observer/internal/reportcache"
	"ar-io-observer/logging"
	"ar-io-observer/nodeconfig"
	"ar-io-observer/report"
)

type ReportGenerator interface {
	GenerateReport(ctx context.Context) (*report.ObserverReport, error)
}

type HeightSource interface {
	GetHeight(ctx context.Context) (int64, error)
}

type ObserversSource interface {
	GetPrescribedObserverAddresses(ctx context.Context) ([]string, error)
}

type ReportSaver interface {
	SaveReport(ctx context.Context, r *report.ObserverReport, prior report.SaveResult) (report.SaveResult, error)
}

// SaveLedger remembers which epochs already have a published report.
type SaveLedger interface {
	HasPublishedReport(ctx context.Context, epochStartHeight int64) (bool, error)
	RecordReportSave(ctx context.Context, record nodeconfig.ReportSaveRecord) error
	SetLastObservedHeight(ctx context.Context, height int64) error
}

type Config struct {
	ObserverAddress string
	MaxForkDepth    int64
	ReportCacheTTL  time.Duration
	Interval        time.Duration
}

type Scheduler struct {
	config    Config
	generator ReportGenerator
	heights   HeightSource
	observers ObserversSource
	entropy   entropy.Source
	saver     ReportSaver
	cache     reportcache.Cache
	ledger    SaveLedger
	tracker   *chainphase.ChainPhaseTracker

	publishing atomic.Bool
	wg         sync.WaitGroup
	// publishCtx outlives a single tick so that publication continues after
	// the tick returns.
	publishCtx context.Context
}

func NewScheduler(
	config Config,
	generator ReportGenerator,
	heights HeightSource,
	observers ObserversSource,
	entropySource entropy.Source,
	saver ReportSaver,
	cache reportcache.Cache,
	ledger SaveLedger,
	tracker *chainphase.ChainPhaseTracker,
) *Scheduler {
	return &Scheduler{
		config:     config,
		generator:  generator,
		heights:    heights,
		observers:  observers,
		entropy:    entropySource,
		saver:      saver,
		cache:      cache,
		ledger:     ledger,
		tracker:    tracker,
		publishCtx: context.Background(),
	}
}

// Run ticks immediately and then on every interval until ctx is done. Ticks
// never overlap. In-flight publications are awaited before returning.
func (s *Scheduler) Run(ctx context.Context) {
	s.publishCtx = ctx
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	logging.Info("Report scheduler started", logging.Scheduler, "interval", s.config.Interval)
	for {
		s.Tick(ctx)
		select {
		case <-ctx.Done():
			logging.Info("Report scheduler stopping, waiting for publications", logging.Scheduler)
			s.Wait()
			return
		case <-ticker.C:
		}
	}
}

// Wait blocks until no publication is in flight.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Tick runs one generate-and-maybe-publish cycle. It never panics and never
// returns an error: every failure is logged and ends the tick.
func (s *Scheduler) Tick(ctx context.Context) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Report tick panicked", logging.Scheduler, "panic", fmt.Sprint(r))
			outcome = OutcomeError
		}
	}()
	outcome, err := s.tick(ctx)
	if err != nil {
		logging.Error("Error generating report", logging.Scheduler, "error", err, "outcome", outcome)
	}
	return outcome
}

func (s *Scheduler) tick(ctx context.Context) (Outcome, error) {
	logging.Info("Generating report...", logging.Scheduler)
	start := time.Now()
	r, err := s.generator.GenerateReport(ctx)
	if err != nil {
		return OutcomeGenerationFailed, err
	}
	logging.Info("Report generated", logging.Scheduler, "durationMs", time.Since(start).Milliseconds(),
		"epochStartHeight", r.EpochStartHeight, "gateways", len(r.GatewayAssessments))

	if err := s.cache.Set(ctx, reportcache.CurrentKey, r, s.config.ReportCacheTTL); err != nil {
		logging.Warn("Unable to cache report", logging.Scheduler, "error", err)
	} else {
		logging.Info("Report cached", logging.Scheduler)
	}

	observers, err := s.observers.GetPrescribedObserverAddresses(ctx)
	if err != nil {
		logging.Error("Unable to get observers from contract state", logging.Scheduler, "error", err)
		observers = nil
	} else {
		logging.Info("Retrieved observers from contract state", logging.Scheduler, "count", len(observers))
	}
	if len(observers) == 0 {
		logging.Warn("Not saving report - no observers retrieved from the contract", logging.Scheduler)
		return OutcomeNoObservers, nil
	}

	epochLength := r.EpochEndHeight - r.EpochStartHeight + 1
	seed, err := s.entropy.GetEntropy(ctx, r.EpochStartHeight)
	if err != nil {
		return OutcomeError, errors.Wrap(err, "fetching save height entropy")
	}
	saveAfter := SaveAfterHeight(r.EpochStartHeight, epochLength, s.config.MaxForkDepth, seed)

	currentHeight, err := s.heights.GetHeight(ctx)
	if err != nil {
		return OutcomeError, errors.Wrap(err, "fetching current height")
	}
	s.observeHeight(ctx, currentHeight, r, epochLength)

	outcome := EvaluateGates(GateInput{
		ObserverAddress: s.config.ObserverAddress,
		Observers:       observers,
		CurrentHeight:   currentHeight,
		EpochEndHeight:  r.EpochEndHeight,
		SaveAfterHeight: saveAfter,
		MaxForkDepth:    s.config.MaxForkDepth,
	})
	switch outcome {
	case OutcomeNotSelected:
		logging.Info("Not saving report - not selected as an observer", logging.Scheduler)
		return outcome, nil
	case OutcomeTooCloseToEpochEnd:
		logging.Info("Not saving report - too close to end of epoch", logging.Scheduler,
			"currentHeight", currentHeight, "epochEndHeight", r.EpochEndHeight)
		return outcome, nil
	case OutcomeSaveHeightNotReached:
		logging.Info("Not saving report - save height not reached", logging.Scheduler,
			"currentHeight", currentHeight, "saveAfterHeight", saveAfter)
		return outcome, nil
	}

	published, err := s.ledger.HasPublishedReport(ctx, r.EpochStartHeight)
	if err != nil {
		logging.Warn("Unable to read publication ledger", logging.Scheduler, "error", err)
	} else if published {
		logging.Info("Not saving report - already published for this epoch", logging.Scheduler,
			"epochStartHeight", r.EpochStartHeight)
		return OutcomeAlreadyPublished, nil
	}

	if !s.publishing.CompareAndSwap(false, true) {
		logging.Info("Not saving report - previous publication still in flight", logging.Scheduler)
		return OutcomePublishInFlight, nil
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.publishing.Store(false)
		if _, err := s.Publish(s.publishCtx, r); err != nil {
			logging.Error("Report publication failed", logging.Scheduler, "error", err)
		}
	}()
	return OutcomePublishing, nil
}

func (s *Scheduler) observeHeight(ctx context.Context, height int64, r *report.ObserverReport, epochLength int64) {
	if s.tracker != nil {
		s.tracker.Update(height, chainphase.Epoch{
			StartHeight: r.EpochStartHeight,
			EndHeight:   r.EpochEndHeight,
			EpochLength: epochLength,
		})
	}
	if err := s.ledger.SetLastObservedHeight(ctx, height); err != nil {
		logging.Warn("Unable to record observed height", logging.Scheduler, "error", err)
	}
}

// Publish pushes r through the sink pipeline without any gating and records
// the outcome in the ledger.
func (s *Scheduler) Publish(ctx context.Context, r *report.ObserverReport) (report.SaveResult, error) {
	result, err := s.saver.SaveReport(ctx, r, report.SaveResult{})
	if err != nil {
		return result, err
	}
	record := nodeconfig.ReportSaveRecord{
		EpochStartHeight: r.EpochStartHeight,
		EpochEndHeight:   r.EpochEndHeight,
		ReportTxID:       result.ReportTxID,
		Interactions:     result.Interactions,
		FailedGateways:   len(r.FailedGateways()),
		SavedAt:          time.Now(),
	}
	if err := s.ledger.RecordReportSave(ctx, record); err != nil {
		logging.Warn("Unable to record report save", logging.Scheduler, "error", err)
	}
	logging.Info("Report publication finished", logging.Scheduler,
		"reportTxId", result.ReportTxID,
		"interactionTxIds", result.InteractionTxIDs(),
		"failedInteractions", result.FailedInteractions())
	return result, nil
}
