// Package chainclient reads block heights and block data from a ledger gateway.
package chainclient

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"ar-io-observer/logging"
	"ar-io-observer/utils"
)

// MaxForkDepth is the number of blocks after which a block is assumed to be
// safe from reorganisation.
const MaxForkDepth = 50

type Block struct {
	IndepHash     string `json:"indep_hash"`
	Height        int64  `json:"height"`
	PreviousBlock string `json:"previous_block"`
	Timestamp     int64  `json:"timestamp"`
}

type Client struct {
	url        string
	httpClient *http.Client
	retry      utils.RetryPolicy
}

func NewClient(url string) *Client {
	return &Client{
		url:        strings.TrimRight(url, "/"),
		httpClient: utils.NewHttpClient(30 * time.Second),
		retry:      utils.DefaultRetryPolicy(),
	}
}

func (c *Client) WithRetryPolicy(policy utils.RetryPolicy) *Client {
	c.retry = policy
	return c
}

func (c *Client) GetHeight(ctx context.Context) (int64, error) {
	return utils.Retry(ctx, c.retry, logging.Epochs, "GetHeight", func() (int64, error) {
		resp, err := utils.SendGetRequest(ctx, c.httpClient, c.url+"/height")
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()
		if err := utils.CheckStatus(resp); err != nil {
			return 0, err
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, 64))
		if err != nil {
			return 0, err
		}
		height, err := strconv.ParseInt(strings.TrimSpace(string(body)), 10, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "parsing height %q", string(body))
		}
		return height, nil
	})
}

func (c *Client) GetBlockByHeight(ctx context.Context, height int64) (*Block, error) {
	url := c.url + "/block/height/" + strconv.FormatInt(height, 10)
	return utils.Retry(ctx, c.retry, logging.Epochs, "GetBlockByHeight", func() (*Block, error) {
		var block Block
		if err := utils.GetJSON(ctx, c.httpClient, url, &block); err != nil {
			return nil, err
		}
		if block.IndepHash == "" {
			return nil, errors.Errorf("block at height %d has no indep_hash", height)
		}
		return &block, nil
	})
}

// GetEntropySourceData returns the decoded independent hash of the block at
// height. Every party fetching the same height sees the same bytes.
func (c *Client) GetEntropySourceData(ctx context.Context, height int64) ([]byte, error) {
	block, err := c.GetBlockByHeight(ctx, height)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching block %d", height)
	}
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(block.IndepHash, "="))
	if err != nil {
		return nil, errors.Wrapf(err, "decoding indep_hash of block %d", height)
	}
	return data, nil
}
