// Package contractclient reads network contract state from a contract cache
// service and submits contract interactions through the bundler.
package contractclient

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"ar-io-observer/bundler"
	"ar-io-observer/chainphase"
	"ar-io-observer/logging"
	"ar-io-observer/utils"
)

var ErrReadOnly = errors.New("contract client has no signer")

type WeightedObserver struct {
	GatewayAddress            string  `json:"gatewayAddress"`
	ObserverAddress           string  `json:"observerAddress"`
	Stake                     int64   `json:"stake"`
	Start                     int64   `json:"start"`
	StakeWeight               float64 `json:"stakeWeight"`
	TenureWeight              float64 `json:"tenureWeight"`
	GatewayRewardRatioWeight  float64 `json:"gatewayRewardRatioWeight"`
	ObserverRewardRatioWeight float64 `json:"observerRewardRatioWeight"`
	CompositeWeight           float64 `json:"compositeWeight"`
	NormalizedCompositeWeight float64 `json:"normalizedCompositeWeight"`
}

type GatewaySettings struct {
	FQDN     string `json:"fqdn"`
	Label    string `json:"label"`
	Port     int    `json:"port"`
	Protocol string `json:"protocol"`
}

type Gateway struct {
	ObserverWallet string          `json:"observerWallet"`
	OperatorStake  int64           `json:"operatorStake"`
	Status         string          `json:"status"`
	Start          int64           `json:"start"`
	End            int64           `json:"end"`
	Settings       GatewaySettings `json:"settings"`
}

type NameRecord struct {
	ContractTxID   string `json:"contractTxId"`
	StartTimestamp int64  `json:"startTimestamp"`
	EndTimestamp   int64  `json:"endTimestamp"`
	Type           string `json:"type"`
	Undernames     int    `json:"undernames"`
}

// InteractionResult identifies a submitted interaction.
type InteractionResult struct {
	OriginalTxID string `json:"originalTxId"`
}

type Client struct {
	cacheURL   string
	contractID string
	httpClient *http.Client
	retry      utils.RetryPolicy

	bundler *bundler.Client
	signer  *bundler.Signer
}

func NewClient(cacheURL, contractID string) *Client {
	return &Client{
		cacheURL:   strings.TrimRight(cacheURL, "/"),
		contractID: contractID,
		httpClient: utils.NewHttpClient(30 * time.Second),
		retry:      utils.DefaultRetryPolicy(),
	}
}

// WithWriter enables WriteInteraction.
func (c *Client) WithWriter(b *bundler.Client, signer *bundler.Signer) *Client {
	c.bundler = b
	c.signer = signer
	return c
}

func (c *Client) WithRetryPolicy(policy utils.RetryPolicy) *Client {
	c.retry = policy
	return c
}

func (c *Client) ContractID() string {
	return c.contractID
}

func (c *Client) CanWrite() bool {
	return c.bundler != nil && c.signer != nil
}

func (c *Client) contractURL(path string) string {
	return c.cacheURL + "/v1/contract/" + c.contractID + path
}

type readResponse[T any] struct {
	Result T `json:"result"`
}

func read[T any](ctx context.Context, c *Client, name string) (T, error) {
	url := c.contractURL("/read/" + name)
	return utils.Retry(ctx, c.retry, logging.Contract, "read/"+name, func() (T, error) {
		var resp readResponse[T]
		err := utils.GetJSON(ctx, c.httpClient, url, &resp)
		return resp.Result, err
	})
}

type epochState struct {
	EpochZeroStartHeight int64 `json:"epochZeroStartHeight"`
	EpochBlockLength     int64 `json:"epochBlockLength"`
	EpochStartHeight     int64 `json:"epochStartHeight"`
	EpochEndHeight       int64 `json:"epochEndHeight"`
}

// GetCurrentEpoch returns the epoch parameters of the contract.
func (c *Client) GetCurrentEpoch(ctx context.Context) (chainphase.EpochParams, error) {
	epoch, err := read[epochState](ctx, c, "epoch")
	if err != nil {
		return chainphase.EpochParams{}, errors.Wrap(err, "reading current epoch")
	}
	return chainphase.EpochParams{
		EpochZeroStartHeight: epoch.EpochZeroStartHeight,
		EpochBlockLength:     epoch.EpochBlockLength,
	}, nil
}

func (c *Client) GetPrescribedObservers(ctx context.Context) ([]WeightedObserver, error) {
	observers, err := read[[]WeightedObserver](ctx, c, "prescribed-observers")
	if err != nil {
		return nil, errors.Wrap(err, "reading prescribed observers")
	}
	return observers, nil
}

// GetPrescribedObserverAddresses returns only the observer addresses.
func (c *Client) GetPrescribedObserverAddresses(ctx context.Context) ([]string, error) {
	observers, err := c.GetPrescribedObservers(ctx)
	if err != nil {
		return nil, err
	}
	addresses := make([]string, 0, len(observers))
	for _, o := range observers {
		addresses = append(addresses, o.ObserverAddress)
	}
	return addresses, nil
}

func (c *Client) GetGateways(ctx context.Context) (map[string]Gateway, error) {
	url := c.contractURL("/gateways")
	resp, err := utils.Retry(ctx, c.retry, logging.Contract, "gateways", func() (map[string]Gateway, error) {
		var resp struct {
			Gateways map[string]Gateway `json:"gateways"`
		}
		err := utils.GetJSON(ctx, c.httpClient, url, &resp)
		return resp.Gateways, err
	})
	if err != nil {
		return nil, errors.Wrap(err, "reading gateways")
	}
	return resp, nil
}

func (c *Client) GetNameRecords(ctx context.Context) (map[string]NameRecord, error) {
	url := c.contractURL("/records")
	resp, err := utils.Retry(ctx, c.retry, logging.Contract, "records", func() (map[string]NameRecord, error) {
		var resp struct {
			Records map[string]NameRecord `json:"records"`
		}
		err := utils.GetJSON(ctx, c.httpClient, url, &resp)
		return resp.Records, err
	})
	if err != nil {
		return nil, errors.Wrap(err, "reading name records")
	}
	return resp, nil
}

// WriteInteraction signs input as a contract interaction data item and
// uploads it. The returned id is the interaction's transaction id.
func (c *Client) WriteInteraction(ctx context.Context, input any) (*InteractionResult, error) {
	if !c.CanWrite() {
		return nil, ErrReadOnly
	}
	encoded, err := json.Marshal(input)
	if err != nil {
		return nil, errors.Wrap(err, "encoding interaction input")
	}
	tags := []bundler.Tag{
		{Name: "App-Name", Value: "SmartWeaveAction"},
		{Name: "App-Version", Value: "0.3.0"},
		{Name: "Contract", Value: c.contractID},
		{Name: "Input", Value: string(encoded)},
	}
	result, err := c.bundler.Upload(ctx, c.signer, []byte(`{}`), tags)
	if err != nil {
		return nil, errors.Wrap(err, "submitting contract interaction")
	}
	logging.Info("Contract interaction submitted", logging.Contract, "txId", result.ID, "contractId", c.contractID)
	return &InteractionResult{OriginalTxID: result.ID}, nil
}
