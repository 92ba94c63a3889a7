// Package report holds the observation report and the publication
// results that flow through the sink pipeline.
package report

import "time"

const FormatVersion = 1

type ObserverReport struct {
	FormatVersion      int                          `json:"formatVersion"`
	ObserverAddress    string                       `json:"observerAddress"`
	EpochStartHeight   int64                        `json:"epochStartHeight"`
	EpochEndHeight     int64                        `json:"epochEndHeight"`
	GeneratedAt        int64                        `json:"generatedAt"`
	GatewayAssessments map[string]GatewayAssessment `json:"gatewayAssessments"`
}

type GatewayAssessment struct {
	OwnershipAssessment OwnershipAssessment `json:"ownershipAssessment"`
	ArnsAssessments     ArnsAssessments     `json:"arnsAssessments"`
	Pass                bool                `json:"pass"`
}

type OwnershipAssessment struct {
	ExpectedWallets []string `json:"expectedWallets"`
	ObservedWallet  string   `json:"observedWallet,omitempty"`
	FailureReason   string   `json:"failureReason,omitempty"`
	Pass            bool     `json:"pass"`
}

type ArnsAssessments struct {
	PrescribedNames map[string]ArnsNameAssessment `json:"prescribedNames"`
	ChosenNames     map[string]ArnsNameAssessment `json:"chosenNames"`
	Pass            bool                          `json:"pass"`
}

type ArnsNameAssessment struct {
	AssessedAt    int64  `json:"assessedAt"`
	ExpectedID    string `json:"expectedId,omitempty"`
	ResolvedID    string `json:"resolvedId,omitempty"`
	FailureReason string `json:"failureReason,omitempty"`
	TimingsMs     int64  `json:"timingsMs"`
	Pass          bool   `json:"pass"`
}

// FailedGateways returns the ids of every gateway whose assessment did not
// pass, in ascending id order so the summary is stable across runs.
func (r *ObserverReport) FailedGateways() []string {
	failed := make([]string, 0)
	for _, id := range sortedKeys(r.GatewayAssessments) {
		if !r.GatewayAssessments[id].Pass {
			failed = append(failed, id)
		}
	}
	return failed
}

func (r *ObserverReport) GeneratedTime() time.Time {
	return time.Unix(r.GeneratedAt, 0).UTC()
}

// InteractionOutcome is the result of submitting one failure-summary bin.
// A failed submission has Failed set and no TxID.
type InteractionOutcome struct {
	TxID   string `json:"txId,omitempty"`
	Failed bool   `json:"failed,omitempty"`
	Error  string `json:"error,omitempty"`
}

type SaveResult struct {
	ReportTxID   string               `json:"reportTxId,omitempty"`
	Interactions []InteractionOutcome `json:"interactions,omitempty"`
}

func (r SaveResult) HasReportTxID() bool {
	return r.ReportTxID != ""
}

// InteractionTxIDs returns the ids of the successfully submitted interactions.
func (r SaveResult) InteractionTxIDs() []string {
	ids := make([]string, 0, len(r.Interactions))
	for _, i := range r.Interactions {
		if !i.Failed && i.TxID != "" {
			ids = append(ids, i.TxID)
		}
	}
	return ids
}

func (r SaveResult) FailedInteractions() int {
	n := 0
	for _, i := range r.Interactions {
		if i.Failed {
			n++
		}
	}
	return n
}
