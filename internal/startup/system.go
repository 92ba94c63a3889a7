// Package startup wires the observer's components into a System. All remote
// calls made while building it are explicit steps with logged fallbacks.
package startup

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"ar-io-observer/bundler"
	"ar-io-observer/chainclient"
	"ar-io-observer/chainphase"
	"ar-io-observer/contractclient"
	"ar-io-observer/entropy"
	"ar-io-observer/hosts"
	natsclient "ar-io-observer/internal/nats/client"
	natsserver "ar-io-observer/internal/nats/server"
	"ar-io-observer/internal/reportcache"
	"ar-io-observer/internal/server/public"
	"ar-io-observer/logging"
	"ar-io-observer/names"
	"ar-io-observer/nodeconfig"
	"ar-io-observer/observer"
	"ar-io-observer/scheduler"
	"ar-io-observer/store"
)

const ReportsDirName = "reports"

var ErrNoObserverAddress = errors.New("observer wallet address is not configured and no signing key is available")

type System struct {
	Config      *nodeconfig.ConfigManager
	Signer      *bundler.Signer
	Chain       *chainclient.Client
	Contract    *contractclient.Client
	Bundler     *bundler.Client
	Epochs      *chainphase.EpochHeightSource
	Tracker     *chainphase.ChainPhaseTracker
	Entropy     Entropy
	Prescribed  *names.Sampler
	Chosen      *names.Sampler
	Observer    *observer.Observer
	FsStore     *store.FsReportStore
	Pipeline    *store.PipelineReportSink
	ReportCache reportcache.Cache
	Scheduler   *scheduler.Scheduler
	Server      *public.Server

	closers []func() error
}

// Entropy groups the sources used by the samplers and the scheduler.
type Entropy struct {
	Chain     entropy.Source
	Random    entropy.Source
	Composite entropy.Source
}

// NewSystem builds every component from the loaded config. Close must be
// called on the returned System even when Run is never invoked.
func NewSystem(ctx context.Context, config *nodeconfig.ConfigManager) (*System, error) {
	s := &System{Config: config}
	if err := s.build(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *System) build(ctx context.Context) error {
	cfg := s.Config.GetConfig()

	signer, err := bundler.LoadSigner(cfg.Observer.JWK, cfg.Observer.KeyFile)
	switch {
	case errors.Is(err, bundler.ErrNoKeyConfigured):
		logging.Warn("No signing key configured, publication to the ledger is disabled", logging.System)
	case err != nil:
		logging.Warn("Unable to load signing key, publication to the ledger is disabled", logging.System, "error", err)
	default:
		s.Signer = signer
	}

	observerAddress := cfg.Observer.Wallet
	if observerAddress == "" && s.Signer != nil {
		observerAddress = s.Signer.Address()
	}
	if observerAddress == "" {
		return ErrNoObserverAddress
	}
	if s.Signer != nil && s.Signer.Address() != observerAddress {
		logging.Warn("Signing key does not match configured wallet", logging.System,
			"wallet", observerAddress, "keyAddress", s.Signer.Address())
	}

	s.Chain = chainclient.NewClient(cfg.Chain.Url)
	s.Bundler = bundler.NewClient(cfg.Bundler.Url)
	s.Contract = contractclient.NewClient(cfg.Contract.CacheUrl, cfg.Contract.Id)
	if s.Signer != nil {
		s.Contract = s.Contract.WithWriter(s.Bundler, s.Signer)
	}

	defaults := chainphase.EpochParams{
		EpochZeroStartHeight: cfg.Contract.EpochZeroStartHeight,
		EpochBlockLength:     cfg.Contract.EpochBlockLength,
	}
	params := chainphase.LoadEpochParams(ctx, s.Contract, defaults)
	s.Epochs = chainphase.NewEpochHeightSource(s.Chain, params)
	s.Tracker = chainphase.NewChainPhaseTracker()
	s.Tracker.UpdateEpochParams(params)

	if err := s.buildEntropy(cfg); err != nil {
		return err
	}

	var nameList names.NameList
	if len(cfg.Observer.ArnsNames) > 0 {
		nameList = names.NewStaticNameList(cfg.Observer.ArnsNames)
	} else {
		nameList = names.NewRemoteCacheNameList(s.Contract)
	}
	s.Prescribed = names.NewSampler(nameList, s.Entropy.Chain, cfg.Observer.NumNamesToObservePerGroup)
	s.Chosen = names.NewSampler(nameList, s.Entropy.Composite, cfg.Observer.NumNamesToObservePerGroup)

	var hostsSource hosts.Source
	if len(cfg.Observer.ObservedGatewayHosts) > 0 {
		hostsSource = hosts.NewStaticHostsSource(cfg.Observer.ObservedGatewayHosts)
	} else {
		hostsSource = hosts.NewRemoteCacheHostsSource(s.Contract)
	}

	s.Observer = observer.NewObserver(
		observer.Config{
			ObserverAddress:              observerAddress,
			GatewayAssessmentConcurrency: cfg.Observer.GatewayAssessmentConcurrency,
			NameAssessmentConcurrency:    cfg.Observer.NameAssessmentConcurrency,
			NamesPerGroup:                cfg.Observer.NumNamesToObservePerGroup,
		},
		s.Epochs,
		hostsSource,
		s.Prescribed,
		s.Chosen,
		observer.NewHTTPAssessor(cfg.Observer.ReferenceGatewayHost),
	)

	if err := s.buildReportCache(ctx, cfg.Cache); err != nil {
		return err
	}
	if err := s.buildPipeline(cfg); err != nil {
		return err
	}

	s.Scheduler = scheduler.NewScheduler(
		scheduler.Config{
			ObserverAddress: observerAddress,
			MaxForkDepth:    cfg.Chain.MaxForkDepth,
			ReportCacheTTL:  cfg.Observer.ReportCacheTTL,
			Interval:        cfg.Observer.ReportGenerationInterval,
		},
		s.Observer,
		s.Chain,
		s.Contract,
		// saveAfterHeight is seeded from composite entropy, not chain
		// entropy alone, so the publish height stays private to this node.
		s.Entropy.Composite,
		s.Pipeline,
		s.ReportCache,
		s.Config,
		s.Tracker,
	)

	s.Server = public.NewServer(
		public.Info{
			WalletAddress:      observerAddress,
			ContractID:         cfg.Contract.Id,
			NodeReleaseVersion: cfg.Observer.NodeReleaseVersion,
		},
		s.ReportCache,
		s.Config,
		s.Tracker,
	)

	logging.Info("Observer system initialized", logging.System,
		"observerAddress", observerAddress,
		"epochZeroStartHeight", params.EpochZeroStartHeight,
		"epochBlockLength", params.EpochBlockLength,
		"sinks", s.Pipeline.Names())
	return nil
}

func (s *System) buildEntropy(cfg nodeconfig.Config) error {
	chain := entropy.NewChainEntropySource(s.Chain)

	badgerStore, err := entropy.OpenBadgerStore(cfg.Observer.DataDir)
	if err != nil {
		return errors.Wrap(err, "opening entropy store")
	}
	s.closers = append(s.closers, badgerStore.Close)
	random := entropy.NewCachedEntropySource(entropy.NewRandomEntropySource(), badgerStore)

	s.Entropy = Entropy{
		Chain:     chain,
		Random:    random,
		Composite: entropy.NewCompositeEntropySource(random, chain),
	}
	return nil
}

func (s *System) buildReportCache(ctx context.Context, cfg nodeconfig.CacheConfig) error {
	if cfg.Backend != nodeconfig.CacheBackendRedis {
		s.ReportCache = reportcache.NewMemoryCache()
		return nil
	}
	redisCache, err := reportcache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDb)
	if err != nil {
		return err
	}
	s.closers = append(s.closers, redisCache.Close)
	if err := redisCache.Ping(ctx); err != nil {
		logging.Warn("Redis report cache unreachable, continuing", logging.Cache, "addr", cfg.RedisAddr, "error", err)
	}
	s.ReportCache = redisCache
	return nil
}

func (s *System) buildPipeline(cfg nodeconfig.Config) error {
	s.FsStore = store.NewFsReportStore(filepath.Join(cfg.Observer.DataDir, ReportsDirName))
	sinks := []store.ReportSinkEntry{{Name: "fs", Sink: s.FsStore}}

	if s.Signer != nil {
		sinks = append(sinks, store.ReportSinkEntry{
			Name: "turbo",
			Sink: store.NewTurboReportSink(s.Bundler, s.Signer, cfg.Observer.NodeReleaseVersion),
		})
		if cfg.Observer.SubmitContractInteractions {
			sinks = append(sinks, store.ReportSinkEntry{
				Name: "contract",
				Sink: store.NewContractReportSink(s.Contract),
			})
		}
	}

	if cfg.Nats.Enabled {
		nc, err := s.startNats(cfg.Nats)
		if err != nil {
			return err
		}
		natsSink, err := store.NewNatsReportSink(nc, natsserver.ReportsStream)
		if err != nil {
			return err
		}
		sinks = append(sinks, store.ReportSinkEntry{Name: "nats", Sink: natsSink})
	}

	s.Pipeline = store.NewPipelineReportSink(sinks)
	return nil
}

func (s *System) startNats(cfg nodeconfig.NatsConfig) (*nats.Conn, error) {
	srv := natsserver.NewServer(cfg)
	if err := srv.Start(); err != nil {
		return nil, errors.Wrap(err, "starting embedded nats server")
	}
	s.closers = append(s.closers, func() error {
		srv.Shutdown()
		return nil
	})

	nc, err := natsclient.ConnectToNats(srv.ClientURL())
	if err != nil {
		return nil, errors.Wrap(err, "connecting to nats")
	}
	s.closers = append(s.closers, func() error {
		nc.Close()
		return nil
	})
	return nc, nil
}

// Run starts the HTTP server and the report scheduler, blocking until ctx is
// done.
func (s *System) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%v", s.Config.GetServerConfig().Port)
	logging.Info("start public server on addr", logging.Server, "addr", addr)
	s.Server.Start(addr)

	s.Scheduler.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.Server.Shutdown(shutdownCtx)
}

// Close releases resources in reverse order of acquisition.
func (s *System) Close() error {
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.closers = nil
	return firstErr
}
