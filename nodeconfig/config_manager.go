package nodeconfig

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"

	"ar-io-observer/logging"
)

const EnvPrefix = "OBSERVER_"

type ConfigManager struct {
	currentConfig  Config
	KoanProvider   koanf.Provider
	WriterProvider WriteCloserProvider
	stateDb        *SqliteDb
	mutex          sync.Mutex
}

type WriteCloserProvider interface {
	GetWriter() (WriteCloser, error)
}

type WriteCloser interface {
	Write([]byte) (int, error)
	Close() error
}

func LoadDefaultConfigManager() (*ConfigManager, error) {
	return LoadConfigManagerWithPaths(getConfigPath(), os.Getenv("OBSERVER_SQLITE_PATH"))
}

// LoadConfigManagerWithPaths loads the static config and opens the state
// database. An empty sqlitePath places the database in the data directory.
func LoadConfigManagerWithPaths(configPath, sqlitePath string) (*ConfigManager, error) {
	manager := &ConfigManager{}
	if _, err := os.Stat(configPath); err == nil {
		manager.KoanProvider = file.Provider(configPath)
	} else {
		logging.Info("Config file not found, using defaults and environment", logging.Config, "path", configPath)
	}
	if err := manager.Load(); err != nil {
		return nil, err
	}

	if strings.TrimSpace(sqlitePath) == "" {
		sqlitePath = filepath.Join(manager.currentConfig.Observer.DataDir, "observer.db")
	}
	if err := os.MkdirAll(filepath.Dir(sqlitePath), 0o755); err != nil {
		return nil, errors.Wrap(err, "creating state directory")
	}

	db := NewSQLiteDb(SqliteConfig{Path: sqlitePath})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.BootstrapLocal(ctx); err != nil {
		return nil, errors.Wrap(err, "bootstrapping state database")
	}
	manager.stateDb = db

	sanitized := manager.currentConfig
	if sanitized.Observer.JWK != "" {
		sanitized.Observer.JWK = "<redacted>"
	}
	sanitized.Cache.RedisPassword = ""
	if cfgBytes, err := json.Marshal(sanitized); err == nil {
		logging.Info("Loaded config", logging.Config, "config", string(cfgBytes))
	}
	return manager, nil
}

func (cm *ConfigManager) Load() error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	config, err := readConfig(cm.KoanProvider)
	if err != nil {
		return err
	}
	cm.currentConfig = config
	return nil
}

func (cm *ConfigManager) Write() error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	return writeConfig(cm.currentConfig, cm.WriterProvider)
}

// GetConfig returns a snapshot copy of the current configuration.
func (cm *ConfigManager) GetConfig() Config {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	return cm.currentConfig
}

func (cm *ConfigManager) GetObserverConfig() ObserverConfig {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	c := cm.currentConfig.Observer
	c.ObservedGatewayHosts = append([]string(nil), c.ObservedGatewayHosts...)
	c.ArnsNames = append([]string(nil), c.ArnsNames...)
	return c
}

func (cm *ConfigManager) GetChainConfig() ChainConfig {
	return cm.currentConfig.Chain
}

func (cm *ConfigManager) GetContractConfig() ContractConfig {
	return cm.currentConfig.Contract
}

func (cm *ConfigManager) GetNatsConfig() NatsConfig {
	return cm.currentConfig.Nats
}

func (cm *ConfigManager) GetServerConfig() ServerConfig {
	return cm.currentConfig.Server
}

func (cm *ConfigManager) GetCacheConfig() CacheConfig {
	return cm.currentConfig.Cache
}

// StateDb returns the dynamic state store, nil when only static config was loaded.
func (cm *ConfigManager) StateDb() *SqliteDb {
	return cm.stateDb
}

func (cm *ConfigManager) db() (*sql.DB, error) {
	if cm.stateDb == nil || cm.stateDb.GetDb() == nil {
		return nil, errors.New("state database is not open")
	}
	return cm.stateDb.GetDb(), nil
}

func (cm *ConfigManager) SetLastObservedHeight(ctx context.Context, height int64) error {
	db, err := cm.db()
	if err != nil {
		return err
	}
	logging.Debug("Setting last observed height", logging.Config, "height", height)
	return KVSetInt64(ctx, db, kvKeyLastObservedHeight, height)
}

func (cm *ConfigManager) GetLastObservedHeight(ctx context.Context) (int64, bool, error) {
	db, err := cm.db()
	if err != nil {
		return 0, false, err
	}
	return KVGetInt64(ctx, db, kvKeyLastObservedHeight)
}

func (cm *ConfigManager) RecordReportSave(ctx context.Context, record ReportSaveRecord) error {
	db, err := cm.db()
	if err != nil {
		return err
	}
	id, err := InsertReportSave(ctx, db, record)
	if err != nil {
		return err
	}
	logging.Info("Recorded report save", logging.Config, "id", id, "epochStartHeight", record.EpochStartHeight, "reportTxId", record.ReportTxID)
	return nil
}

func (cm *ConfigManager) HasPublishedReport(ctx context.Context, epochStartHeight int64) (bool, error) {
	db, err := cm.db()
	if err != nil {
		return false, err
	}
	return HasPublishedReport(ctx, db, epochStartHeight)
}

func (cm *ConfigManager) ListReportSaves(ctx context.Context, limit int) ([]ReportSaveRecord, error) {
	db, err := cm.db()
	if err != nil {
		return nil, err
	}
	return ListReportSaves(ctx, db, limit)
}

func (cm *ConfigManager) Close() error {
	if cm.stateDb == nil || cm.stateDb.GetDb() == nil {
		return nil
	}
	return cm.stateDb.GetDb().Close()
}

func getConfigPath() string {
	configPath := os.Getenv("OBSERVER_CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	return configPath
}

type FileWriteCloserProvider struct {
	path string
}

func NewFileWriteCloserProvider(path string) *FileWriteCloserProvider {
	return &FileWriteCloserProvider{path: path}
}

func (f *FileWriteCloserProvider) GetWriter() (WriteCloser, error) {
	return os.OpenFile(f.path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
}

// readConfig layers defaults, the YAML provider (if any) and OBSERVER_
// environment variables, in that order.
func readConfig(provider koanf.Provider) (Config, error) {
	k := koanf.New(".")
	parser := yaml.Parser()

	if err := k.Load(structs.Provider(DefaultConfig(), "koanf"), nil); err != nil {
		return Config{}, errors.Wrap(err, "loading defaults")
	}
	if provider != nil {
		if err := k.Load(provider, parser); err != nil {
			return Config{}, errors.Wrap(err, "loading config")
		}
	}
	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil)
	if err != nil {
		return Config{}, errors.Wrap(err, "loading env")
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return Config{}, errors.Wrap(err, "unmarshalling config")
	}
	config.Observer.ObservedGatewayHosts = splitList(config.Observer.ObservedGatewayHosts)
	config.Observer.ArnsNames = splitList(config.Observer.ArnsNames)

	if err := validate(config); err != nil {
		return Config{}, err
	}
	return config, nil
}

// splitList accepts comma separated values inside list entries so that lists
// can be set from a single environment variable.
func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func validate(config Config) error {
	if config.Observer.GatewayAssessmentConcurrency <= 0 {
		return errors.New("observer.gateway_assessment_concurrency must be positive")
	}
	if config.Observer.NameAssessmentConcurrency <= 0 {
		return errors.New("observer.name_assessment_concurrency must be positive")
	}
	if config.Observer.ReportGenerationInterval <= 0 {
		return errors.New("observer.report_generation_interval must be positive")
	}
	if config.Chain.MaxForkDepth <= 0 {
		return errors.New("chain.max_fork_depth must be positive")
	}
	switch config.Cache.Backend {
	case CacheBackendMemory, CacheBackendRedis:
	default:
		return errors.Errorf("unknown cache backend %q", config.Cache.Backend)
	}
	return nil
}

func writeConfig(config Config, writerProvider WriteCloserProvider) error {
	if writerProvider == nil {
		return nil
	}

	writer, err := writerProvider.GetWriter()
	if err != nil {
		return err
	}
	defer writer.Close()

	k := koanf.New(".")
	parser := yaml.Parser()
	if err := k.Load(structs.Provider(config, "koanf"), nil); err != nil {
		logging.Error("error loading config", logging.Config, "error", err)
		return err
	}
	output, err := k.Marshal(parser)
	if err != nil {
		logging.Error("error marshalling config", logging.Config, "error", err)
		return err
	}
	if _, err := writer.Write(output); err != nil {
		logging.Error("error writing config", logging.Config, "error", err)
		return err
	}
	return nil
}

const (
	kvKeyLastObservedHeight = "last_observed_height"
)
