// Package observer assesses gateways and assembles the epoch report.
package observer

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"ar-io-observer/chainphase"
	"ar-io-observer/hosts"
	"ar-io-observer/logging"
	"ar-io-observer/report"
)

// Assessor performs the network checks against a single gateway.
type Assessor interface {
	// ResolveExpected returns the id a name should resolve to, as seen by
	// the reference gateway.
	ResolveExpected(ctx context.Context, name string) (string, error)
	AssessOwnership(ctx context.Context, host hosts.HostRecord) report.OwnershipAssessment
	AssessName(ctx context.Context, host hosts.HostRecord, name string, expectedID string) report.ArnsNameAssessment
}

type EpochSource interface {
	GetCurrentEpoch(ctx context.Context) (chainphase.Epoch, error)
}

type NamesSource interface {
	GetNames(ctx context.Context, height int64, count int) ([]string, error)
}

type Config struct {
	ObserverAddress              string
	GatewayAssessmentConcurrency int
	NameAssessmentConcurrency    int
	NamesPerGroup                int
}

type Observer struct {
	config     Config
	epochs     EpochSource
	hosts      hosts.Source
	prescribed NamesSource
	chosen     NamesSource
	assessor   Assessor
	now        func() time.Time
}

func NewObserver(config Config, epochs EpochSource, hostsSource hosts.Source, prescribed NamesSource, chosen NamesSource, assessor Assessor) *Observer {
	if config.GatewayAssessmentConcurrency <= 0 {
		config.GatewayAssessmentConcurrency = 1
	}
	if config.NameAssessmentConcurrency <= 0 {
		config.NameAssessmentConcurrency = 1
	}
	return &Observer{
		config:     config,
		epochs:     epochs,
		hosts:      hostsSource,
		prescribed: prescribed,
		chosen:     chosen,
		assessor:   assessor,
		now:        time.Now,
	}
}

func (o *Observer) Address() string {
	return o.config.ObserverAddress
}

func (o *Observer) GenerateReport(ctx context.Context) (*report.ObserverReport, error) {
	epoch, err := o.epochs.GetCurrentEpoch(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "determining current epoch")
	}

	prescribedNames, err := o.prescribed.GetNames(ctx, epoch.StartHeight, o.config.NamesPerGroup)
	if err != nil {
		return nil, errors.Wrap(err, "selecting prescribed names")
	}
	chosenNames, err := o.chosen.GetNames(ctx, epoch.StartHeight, o.config.NamesPerGroup)
	if err != nil {
		return nil, errors.Wrap(err, "selecting chosen names")
	}
	gatewayHosts, err := o.hosts.GetHosts(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing gateway hosts")
	}

	expected, err := o.resolveExpected(ctx, append(append([]string{}, prescribedNames...), chosenNames...))
	if err != nil {
		return nil, err
	}

	logging.Info("Assessing gateways", logging.Observer,
		"epochStartHeight", epoch.StartHeight,
		"gateways", len(gatewayHosts),
		"prescribedNames", prescribedNames,
		"chosenNames", chosenNames)

	var mu sync.Mutex
	assessments := make(map[string]report.GatewayAssessment, len(gatewayHosts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.config.GatewayAssessmentConcurrency)
	for _, host := range gatewayHosts {
		host := host
		g.Go(func() error {
			assessment, err := o.assessGateway(gctx, host, prescribedNames, chosenNames, expected)
			if err != nil {
				return err
			}
			mu.Lock()
			assessments[GatewayID(host)] = assessment
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &report.ObserverReport{
		FormatVersion:      report.FormatVersion,
		ObserverAddress:    o.config.ObserverAddress,
		EpochStartHeight:   epoch.StartHeight,
		EpochEndHeight:     epoch.EndHeight,
		GeneratedAt:        o.now().Unix(),
		GatewayAssessments: assessments,
	}, nil
}

// GatewayID keys a gateway in the report: its wallet address when known,
// otherwise its fqdn.
func GatewayID(host hosts.HostRecord) string {
	if host.WalletAddress == "" || host.WalletAddress == hosts.UnknownWallet {
		return host.FQDN
	}
	return host.WalletAddress
}

func (o *Observer) resolveExpected(ctx context.Context, names []string) (map[string]string, error) {
	var mu sync.Mutex
	expected := make(map[string]string, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.config.NameAssessmentConcurrency)
	for _, name := range names {
		name := name
		g.Go(func() error {
			id, err := o.assessor.ResolveExpected(gctx, name)
			if err != nil {
				logging.Warn("Reference gateway failed to resolve name", logging.Observer, "name", name, "error", err)
			}
			mu.Lock()
			expected[name] = id
			mu.Unlock()
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "resolving reference ids")
	}
	return expected, nil
}

func (o *Observer) assessGateway(ctx context.Context, host hosts.HostRecord, prescribed, chosen []string, expected map[string]string) (report.GatewayAssessment, error) {
	ownership := o.assessor.AssessOwnership(ctx, host)

	prescribedResults, err := o.assessNames(ctx, host, prescribed, expected)
	if err != nil {
		return report.GatewayAssessment{}, err
	}
	chosenResults, err := o.assessNames(ctx, host, chosen, expected)
	if err != nil {
		return report.GatewayAssessment{}, err
	}

	arnsPass := allPass(prescribedResults) && allPass(chosenResults)
	assessment := report.GatewayAssessment{
		OwnershipAssessment: ownership,
		ArnsAssessments: report.ArnsAssessments{
			PrescribedNames: prescribedResults,
			ChosenNames:     chosenResults,
			Pass:            arnsPass,
		},
		Pass: ownership.Pass && arnsPass,
	}
	logging.Debug("Gateway assessed", logging.Observer, "fqdn", host.FQDN, "pass", assessment.Pass)
	return assessment, nil
}

func (o *Observer) assessNames(ctx context.Context, host hosts.HostRecord, names []string, expected map[string]string) (map[string]report.ArnsNameAssessment, error) {
	var mu sync.Mutex
	results := make(map[string]report.ArnsNameAssessment, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.config.NameAssessmentConcurrency)
	for _, name := range names {
		name := name
		g.Go(func() error {
			result := o.assessor.AssessName(gctx, host, name, expected[name])
			mu.Lock()
			results[name] = result
			mu.Unlock()
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func allPass(results map[string]report.ArnsNameAssessment) bool {
	for _, r := range results {
		if !r.Pass {
			return false
		}
	}
	return true
}
