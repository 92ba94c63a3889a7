package store

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"

	"ar-io-observer/bundler"
	"ar-io-observer/report"
)

const AppName = "AR-IO Observer"

type Uploader interface {
	Upload(ctx context.Context, signer *bundler.Signer, data []byte, tags []bundler.Tag) (*bundler.UploadResult, error)
}

// TurboReportSink signs the report as a data item and uploads it to the
// bundling service. The upload id becomes the report tx id.
type TurboReportSink struct {
	uploader   Uploader
	signer     *bundler.Signer
	appVersion string
}

func NewTurboReportSink(uploader Uploader, signer *bundler.Signer, appVersion string) *TurboReportSink {
	return &TurboReportSink{
		uploader:   uploader,
		signer:     signer,
		appVersion: appVersion,
	}
}

func (s *TurboReportSink) SaveReport(ctx context.Context, r *report.ObserverReport, prior report.SaveResult) (report.SaveResult, error) {
	payload, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return prior, errors.Wrap(err, "encoding report")
	}
	tags := []bundler.Tag{
		{Name: "App-Name", Value: AppName},
		{Name: "App-Version", Value: s.appVersion},
		{Name: "Content-Type", Value: "application/json"},
		{Name: "AR-IO-Component", Value: "observer"},
		{Name: "AR-IO-Epoch-Start-Height", Value: strconv.FormatInt(r.EpochStartHeight, 10)},
	}
	result, err := s.uploader.Upload(ctx, s.signer, payload, tags)
	if err != nil {
		return prior, errors.Wrap(err, "uploading report")
	}

	next := prior
	next.ReportTxID = result.ID
	return next, nil
}
