package observer

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"ar-io-observer/hosts"
	"ar-io-observer/report"
	"ar-io-observer/utils"
)

const ResolvedIDHeader = "X-ArNS-Resolved-Id"

// HTTPAssessor probes gateways over HTTP. Ownership is confirmed through the
// gateway's info endpoint and names by comparing the resolved id header with
// the reference gateway's answer.
type HTTPAssessor struct {
	referenceHost string
	scheme        string
	client        *http.Client
}

type HTTPAssessorOption func(*HTTPAssessor)

func WithHTTPClient(client *http.Client) HTTPAssessorOption {
	return func(a *HTTPAssessor) { a.client = client }
}

func WithScheme(scheme string) HTTPAssessorOption {
	return func(a *HTTPAssessor) { a.scheme = scheme }
}

func NewHTTPAssessor(referenceHost string, opts ...HTTPAssessorOption) *HTTPAssessor {
	a := &HTTPAssessor{
		referenceHost: referenceHost,
		scheme:        "https",
		client:        utils.NewHttpClient(10 * time.Second),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type gatewayInfo struct {
	Wallet string `json:"wallet"`
}

func (a *HTTPAssessor) AssessOwnership(ctx context.Context, host hosts.HostRecord) report.OwnershipAssessment {
	result := report.OwnershipAssessment{ExpectedWallets: []string{}}
	if host.WalletAddress != "" && host.WalletAddress != hosts.UnknownWallet {
		result.ExpectedWallets = []string{host.WalletAddress}
	}

	var info gatewayInfo
	if err := utils.GetJSON(ctx, a.client, a.scheme+"://"+host.FQDN+"/ar-io/info", &info); err != nil {
		result.FailureReason = err.Error()
		return result
	}
	result.ObservedWallet = info.Wallet

	switch {
	case info.Wallet == "":
		result.FailureReason = "gateway did not report a wallet"
	case len(result.ExpectedWallets) == 0:
		result.Pass = true
	case info.Wallet == result.ExpectedWallets[0]:
		result.Pass = true
	default:
		result.FailureReason = "wallet mismatch: expected " + result.ExpectedWallets[0] + ", observed " + info.Wallet
	}
	return result
}

func (a *HTTPAssessor) ResolveExpected(ctx context.Context, name string) (string, error) {
	return a.resolve(ctx, name, a.referenceHost)
}

func (a *HTTPAssessor) AssessName(ctx context.Context, host hosts.HostRecord, name string, expectedID string) report.ArnsNameAssessment {
	start := time.Now()
	result := report.ArnsNameAssessment{
		AssessedAt: start.Unix(),
		ExpectedID: expectedID,
	}
	resolved, err := a.resolve(ctx, name, host.FQDN)
	result.TimingsMs = time.Since(start).Milliseconds()
	result.ResolvedID = resolved

	switch {
	case err != nil:
		result.FailureReason = err.Error()
	case expectedID == "":
		result.FailureReason = "reference gateway did not resolve name"
	case resolved != expectedID:
		result.FailureReason = "resolved id mismatch"
	default:
		result.Pass = true
	}
	return result
}

func (a *HTTPAssessor) resolve(ctx context.Context, name string, fqdn string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, a.scheme+"://"+name+"."+fqdn+"/", nil)
	if err != nil {
		return "", err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return "", errors.Errorf("status %d resolving %s on %s", resp.StatusCode, name, fqdn)
	}
	id := resp.Header.Get(ResolvedIDHeader)
	if id == "" {
		return "", errors.Errorf("missing %s header resolving %s on %s", ResolvedIDHeader, name, fqdn)
	}
	return id, nil
}
