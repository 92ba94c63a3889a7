package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"

	"ar-io-observer/logging"
	"ar-io-observer/report"
)

// FsReportStore writes each report to <baseDir>/<epochStart>-<generatedAt>.json.
// Files are written to a temporary name and renamed into place so a crash
// never leaves a truncated report behind.
type FsReportStore struct {
	baseDir string
}

func NewFsReportStore(baseDir string) *FsReportStore {
	return &FsReportStore{baseDir: baseDir}
}

func (s *FsReportStore) ReportPath(r *report.ObserverReport) string {
	return filepath.Join(s.baseDir, fmt.Sprintf("%d-%d.json", r.EpochStartHeight, r.GeneratedAt))
}

func (s *FsReportStore) SaveReport(ctx context.Context, r *report.ObserverReport, prior report.SaveResult) (report.SaveResult, error) {
	if err := os.MkdirAll(s.baseDir, 0o755); err != nil {
		return prior, errors.Wrap(err, "creating report directory")
	}
	payload, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return prior, errors.Wrap(err, "encoding report")
	}

	path := s.ReportPath(r)
	tmp, err := os.CreateTemp(s.baseDir, ".report-*.tmp")
	if err != nil {
		return prior, errors.Wrap(err, "creating temporary report file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return prior, errors.Wrap(err, "writing report")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return prior, errors.Wrap(err, "syncing report")
	}
	if err := tmp.Close(); err != nil {
		return prior, errors.Wrap(err, "closing report")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return prior, errors.Wrap(err, "moving report into place")
	}

	logging.Info("Report written to disk", logging.Reports, "path", path)
	return prior, nil
}

// LoadReport reads a report previously written by SaveReport.
func LoadReport(path string) (*report.ObserverReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading report %s", path)
	}
	var r report.ObserverReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, errors.Wrapf(err, "decoding report %s", path)
	}
	return &r, nil
}

// ListReports returns stored report paths for an epoch, oldest first. A
// negative epochStartHeight lists every report.
func (s *FsReportStore) ListReports(epochStartHeight int64) ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	prefix := fmt.Sprintf("%d-", epochStartHeight)
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		if epochStartHeight >= 0 && !strings.HasPrefix(name, prefix) {
			continue
		}
		paths = append(paths, filepath.Join(s.baseDir, name))
	}
	slices.Sort(paths)
	return paths, nil
}
