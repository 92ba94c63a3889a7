package nodeconfig

import "time"

type Config struct {
	Observer ObserverConfig `koanf:"observer"`
	Chain    ChainConfig    `koanf:"chain"`
	Contract ContractConfig `koanf:"contract"`
	Bundler  BundlerConfig  `koanf:"bundler"`
	Server   ServerConfig   `koanf:"server"`
	Nats     NatsConfig     `koanf:"nats"`
	Cache    CacheConfig    `koanf:"cache"`
}

type ObserverConfig struct {
	Wallet                       string        `koanf:"wallet"`
	KeyFile                      string        `koanf:"key_file"`
	JWK                          string        `koanf:"jwk"`
	ReferenceGatewayHost         string        `koanf:"reference_gateway_host"`
	GatewayAssessmentConcurrency int           `koanf:"gateway_assessment_concurrency"`
	NameAssessmentConcurrency    int           `koanf:"name_assessment_concurrency"`
	NumNamesToObservePerGroup    int           `koanf:"num_names_to_observe_per_group"`
	ReportCacheTTL               time.Duration `koanf:"report_cache_ttl"`
	ReportGenerationInterval     time.Duration `koanf:"report_generation_interval"`
	SubmitContractInteractions   bool          `koanf:"submit_contract_interactions"`
	ObservedGatewayHosts         []string      `koanf:"observed_gateway_hosts"`
	ArnsNames                    []string      `koanf:"arns_names"`
	NodeReleaseVersion           string        `koanf:"node_release_version"`
	Debug                        bool          `koanf:"debug"`
	DataDir                      string        `koanf:"data_dir"`
}

type ChainConfig struct {
	Url          string `koanf:"url"`
	MaxForkDepth int64  `koanf:"max_fork_depth"`
}

type ContractConfig struct {
	Id                   string `koanf:"id"`
	CacheUrl             string `koanf:"cache_url"`
	EpochZeroStartHeight int64  `koanf:"epoch_zero_start_height"`
	EpochBlockLength     int64  `koanf:"epoch_block_length"`
}

type BundlerConfig struct {
	Url string `koanf:"url"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

type NatsConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	StoreDir string `koanf:"store_dir"`
}

type CacheConfig struct {
	Backend       string `koanf:"backend"`
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDb       int    `koanf:"redis_db"`
}

const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

func DefaultConfig() Config {
	return Config{
		Observer: ObserverConfig{
			ReferenceGatewayHost:         "arweave.dev",
			GatewayAssessmentConcurrency: 10,
			NameAssessmentConcurrency:    5,
			NumNamesToObservePerGroup:    8,
			ReportCacheTTL:               150 * time.Minute,
			ReportGenerationInterval:     time.Hour,
			DataDir:                      "./data",
			KeyFile:                      "./wallets/observer.json",
		},
		Chain: ChainConfig{
			Url:          "https://arweave.net",
			MaxForkDepth: 50,
		},
		Contract: ContractConfig{
			CacheUrl:             "https://api.arns.app",
			EpochZeroStartHeight: 0,
			EpochBlockLength:     5000,
		},
		Bundler: BundlerConfig{
			Url: "https://upload.ardrive.io",
		},
		Server: ServerConfig{
			Port: 5050,
		},
		Nats: NatsConfig{
			Host: "127.0.0.1",
			Port: 4222,
		},
		Cache: CacheConfig{
			Backend:   CacheBackendMemory,
			RedisAddr: "127.0.0.1:6379",
		},
	}
}
