// Package store persists and publishes observer reports through an ordered
// pipeline of sinks.
package store

import (
	"context"
	"time"

	"ar-io-observer/logging"
	"ar-io-observer/report"
)

// ReportSink persists or publishes a report. prior carries the identifiers
// produced by the sinks that ran before it; the returned result replaces it.
type ReportSink interface {
	SaveReport(ctx context.Context, r *report.ObserverReport, prior report.SaveResult) (report.SaveResult, error)
}

type ReportSinkEntry struct {
	Name string
	Sink ReportSink
}

// PipelineReportSink runs its sinks sequentially in list order. A failing
// sink is logged and skipped; the result accumulated so far is passed on.
type PipelineReportSink struct {
	sinks []ReportSinkEntry
}

func NewPipelineReportSink(sinks []ReportSinkEntry) *PipelineReportSink {
	return &PipelineReportSink{sinks: sinks}
}

func (p *PipelineReportSink) Names() []string {
	names := make([]string, 0, len(p.sinks))
	for _, s := range p.sinks {
		names = append(names, s.Name)
	}
	return names
}

func (p *PipelineReportSink) SaveReport(ctx context.Context, r *report.ObserverReport, prior report.SaveResult) (report.SaveResult, error) {
	result := prior
	for _, entry := range p.sinks {
		start := time.Now()
		logging.Info("Saving report", logging.Reports, "sink", entry.Name, "epochStartHeight", r.EpochStartHeight)

		next, err := entry.Sink.SaveReport(ctx, r, result)
		if err != nil {
			logging.Error("Report sink failed", logging.Reports, "sink", entry.Name, "error", err,
				"durationMs", time.Since(start).Milliseconds())
			continue
		}
		result = next
		logging.Info("Report saved", logging.Reports, "sink", entry.Name,
			"reportTxId", result.ReportTxID,
			"interactionTxIds", result.InteractionTxIDs(),
			"durationMs", time.Since(start).Milliseconds())
	}
	return result, nil
}
