package bundler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"ar-io-observer/logging"
	"ar-io-observer/utils"
)

type UploadResult struct {
	ID                  string   `json:"id"`
	Owner               string   `json:"owner"`
	DataCaches          []string `json:"dataCaches"`
	FastFinalityIndexes []string `json:"fastFinalityIndexes"`
}

type StreamFactory func() (io.Reader, error)
type SizeFactory func() int64

type Client struct {
	url        string
	httpClient *http.Client
}

func NewClient(url string) *Client {
	return &Client{
		url:        strings.TrimRight(url, "/"),
		httpClient: utils.NewHttpClient(60 * time.Second),
	}
}

func (c *Client) UploadSignedDataItem(ctx context.Context, stream StreamFactory, size SizeFactory) (*UploadResult, error) {
	body, err := stream()
	if err != nil {
		return nil, errors.Wrap(err, "opening data item stream")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/tx", body)
	if err != nil {
		return nil, err
	}
	req.ContentLength = size()
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "uploading data item")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, errors.Errorf("bundler rejected data item: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(err, "decoding upload response")
	}
	if result.ID == "" {
		return nil, errors.New("bundler response has no id")
	}
	return &result, nil
}

// Upload signs data with the signer and uploads it.
func (c *Client) Upload(ctx context.Context, signer *Signer, data []byte, tags []Tag) (*UploadResult, error) {
	item, err := CreateDataItem(data, tags, signer)
	if err != nil {
		return nil, err
	}
	raw, err := item.Raw()
	if err != nil {
		return nil, err
	}
	result, err := c.UploadSignedDataItem(ctx,
		func() (io.Reader, error) { return bytes.NewReader(raw), nil },
		func() int64 { return int64(len(raw)) },
	)
	if err != nil {
		return nil, err
	}
	if result.ID != item.ID() {
		logging.Warn("Bundler returned an id that differs from the local data item id", logging.Bundler,
			"localId", item.ID(), "remoteId", result.ID)
	}
	logging.Info("Uploaded data item", logging.Bundler,
		"id", result.ID, "owner", result.Owner, "dataCaches", result.DataCaches,
		"fastFinalityIndexes", result.FastFinalityIndexes, "bytes", len(raw))
	return result, nil
}
