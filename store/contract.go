package store

import (
	"context"

	"github.com/pkg/errors"

	"ar-io-observer/contractclient"
	"ar-io-observer/logging"
	"ar-io-observer/report"
)

// MaxFailedGatewaySummaryBytes bounds the failed gateway list of one
// interaction.
const MaxFailedGatewaySummaryBytes = 1280

var ErrReportTxIDMissing = errors.New("report tx id is missing")

type InteractionWriter interface {
	WriteInteraction(ctx context.Context, input any) (*contractclient.InteractionResult, error)
}

type SaveObservationsInput struct {
	Function           string   `json:"function"`
	ObserverReportTxID string   `json:"observerReportTxId"`
	FailedGateways     []string `json:"failedGateways"`
}

// ContractReportSink records the failed gateway summary in the network
// contract, one interaction per size-bounded chunk.
type ContractReportSink struct {
	writer InteractionWriter
}

func NewContractReportSink(writer InteractionWriter) *ContractReportSink {
	return &ContractReportSink{writer: writer}
}

func (s *ContractReportSink) SaveReport(ctx context.Context, r *report.ObserverReport, prior report.SaveResult) (report.SaveResult, error) {
	if !prior.HasReportTxID() {
		return prior, ErrReportTxIDMissing
	}

	chunks := SplitBySize(r.FailedGateways(), MaxFailedGatewaySummaryBytes)
	logging.Info("Saving observation interactions", logging.Contract,
		"reportTxId", prior.ReportTxID, "chunks", len(chunks))

	outcomes := make([]report.InteractionOutcome, 0, len(chunks))
	for i, chunk := range chunks {
		result, err := s.writer.WriteInteraction(ctx, SaveObservationsInput{
			Function:           "saveObservations",
			ObserverReportTxID: prior.ReportTxID,
			FailedGateways:     chunk,
		})
		switch {
		case err != nil:
			logging.Error("Observation interaction failed", logging.Contract, "chunk", i, "error", err)
			outcomes = append(outcomes, report.InteractionOutcome{Failed: true, Error: err.Error()})
		case result == nil || result.OriginalTxID == "":
			logging.Error("Observation interaction returned no id", logging.Contract, "chunk", i)
			outcomes = append(outcomes, report.InteractionOutcome{Failed: true, Error: "no interaction id returned"})
		default:
			outcomes = append(outcomes, report.InteractionOutcome{TxID: result.OriginalTxID})
		}
	}

	next := prior
	next.Interactions = append(append([]report.InteractionOutcome{}, prior.Interactions...), outcomes...)
	return next, nil
}

// SplitBySize packs entries, in order, into chunks whose summed UTF-8 byte
// length does not exceed maxBytes. A chunk is closed as soon as the next
// entry would overflow it. An entry larger than maxBytes gets a chunk of its
// own. Empty input yields no chunks.
func SplitBySize(entries []string, maxBytes int) [][]string {
	chunks := make([][]string, 0)
	var current []string
	size := 0
	for _, e := range entries {
		n := len(e)
		if len(current) > 0 && size+n > maxBytes {
			chunks = append(chunks, current)
			current = nil
			size = 0
		}
		current = append(current, e)
		size += n
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}
