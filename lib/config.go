package lib

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/alecthomas/units"
	"github.com/kelseyhightower/envconfig"
	"github.com/mitchellh/go-homedir"
)

/* This file implements logic for 'user controlled' configurations of each module of the storage node */

const (
	// FILE NAMES in the 'data directory'
	ConfigFilePath         = "config.json"     // the file path for the node configuration
	NodeKeyPath            = "node_key.json"   // the file path for the node's protocol private key
	CommitteesFilePath     = "committees.json" // the file path for the file-backed committee lookup
	CommitteesTOMLFilePath = "committees.toml" // the hand-edited alternative to the committees json file

	// EnvPrefix is the prefix of environment variables that override the config file
	EnvPrefix = "SHARDNODE"
)

// Config is the structure of the user configuration options for a storage node
type Config struct {
	MainConfig             // main options spanning over all modules
	CommitteeServiceConfig // committee service request and transition options
	RPCConfig              // rpc API options
	StoreConfig            // persistence options
	MetricsConfig          // telemetry options
}

// DefaultConfig() returns a Config with developer set options
func DefaultConfig() Config {
	return Config{
		MainConfig:             DefaultMainConfig(),
		CommitteeServiceConfig: DefaultCommitteeServiceConfig(),
		RPCConfig:              DefaultRPCConfig(),
		StoreConfig:            DefaultStoreConfig(),
		MetricsConfig:          DefaultMetricsConfig(),
	}
}

// MAIN CONFIG BELOW

type MainConfig struct {
	LogLevel        string `json:"logLevel"`        // any level includes the levels above it: debug < info < warning < error
	LogMaxSizeMB    int    `json:"logMaxSizeMB"`    // size of a log file before rotation
	CommitteeSource string `json:"committeeSource"` // where the active committees are looked up: 'file' or 'rootChain'
}

// DefaultMainConfig() sets log level to 'info'
func DefaultMainConfig() MainConfig {
	return MainConfig{
		LogLevel:        "info", // everything but debug is the default
		LogMaxSizeMB:    10,     // rotate the log every 10 MB
		CommitteeSource: "file", // read committees from the data directory by default
	}
}

// GetLogLevel() parses the log string in the config file into a LogLevel Enum
func (m *MainConfig) GetLogLevel() int32 { return ParseLogLevel(m.LogLevel) }

// COMMITTEE SERVICE CONFIG BELOW

// CommitteeServiceConfig defines the timeouts and limits read by the committee service and its request executors
type CommitteeServiceConfig struct {
	MetadataRequestTimeoutMS     uint64 `json:"metadataRequestTimeoutMS"`     // how long a single metadata request to a member may take
	SliverRequestTimeoutMS       uint64 `json:"sliverRequestTimeoutMS"`       // how long a single sliver request to a member may take
	InvalidityCertTimeoutMS      uint64 `json:"invalidityCertTimeoutMS"`      // how long collecting an invalid blob certificate may take in total
	SyncShardTimeoutMS           uint64 `json:"syncShardTimeoutMS"`           // how long a single shard sync request may take
	ServiceConstructionTimeoutMS uint64 `json:"serviceConstructionTimeoutMS"` // how long building a service for one member may take
	MaxConcurrentRequests        int    `json:"maxConcurrentRequests"`        // the size of the fan-out worker pool
	RetryInitialMS               uint64 `json:"retryInitialMS"`               // the initial exponential backoff interval
	RetryMaxMS                   uint64 `json:"retryMaxMS"`                   // the maximum exponential backoff interval
	MaxRetries                   uint64 `json:"maxRetries"`                   // the maximum retries for operations retried by the node
	SyncShardSliverCount         uint64 `json:"syncShardSliverCount"`         // the page size used when migrating a shard
	EpochPollMS                  uint64 `json:"epochPollMS"`                  // how often the lookup source is polled for a new epoch
}

// DefaultCommitteeServiceConfig() returns the developer recommended committee service configuration
func DefaultCommitteeServiceConfig() CommitteeServiceConfig {
	return CommitteeServiceConfig{
		MetadataRequestTimeoutMS:     5000,  // 5 seconds
		SliverRequestTimeoutMS:       45000, // 45 seconds
		InvalidityCertTimeoutMS:      60000, // 1 minute
		SyncShardTimeoutMS:           60000, // 1 minute
		ServiceConstructionTimeoutMS: 10000, // 10 seconds
		MaxConcurrentRequests:        32,    // 32 in-flight requests per executor
		RetryInitialMS:               250,   // 1/4 second
		RetryMaxMS:                   30000, // 30 seconds
		MaxRetries:                   10,    // give up after 10 retries
		SyncShardSliverCount:         1000,  // 1000 slivers per page
		EpochPollMS:                  5000,  // poll every 5 seconds
	}
}

// RPC CONFIG BELOW

type RPCConfig struct {
	RPCPort          string `json:"rpcPort"`          // the port where the rpc server is hosted
	RPCUrl           string `json:"rpcURL"`           // the url where the rpc server is hosted
	RootChainUrl     string `json:"rootChainURL"`     // the url of the root chain rpc that publishes the active committees
	TimeoutS         int    `json:"timeoutS"`         // the rpc request timeout in seconds
	MaxRequestBytes  int64  `json:"maxRequestBytes"`  // the largest request body the server reads
	MaxResponseBytes int64  `json:"maxResponseBytes"` // the largest response body the client reads

	SyncShardBytesPerSec int64 `json:"syncShardBytesPerSec"` // bandwidth cap for downloading shard sync pages, 0 is unlimited
}

// DefaultRPCConfig() sets rpc url to localhost
func DefaultRPCConfig() RPCConfig {
	return RPCConfig{
		RPCPort:          "50002",                  // the rpc is served on localhost:50002
		RPCUrl:           "http://localhost:50002", // use a local rpc by default
		RootChainUrl:     "http://localhost:50002", // the root chain points to self
		TimeoutS:         60,                       // shard sync pages may be large
		MaxRequestBytes:  int64(units.MiB),         // 1 MiB requests
		MaxResponseBytes: int64(256 * units.MiB),   // 256 MiB responses
		// shard sync downloads are not rate limited
		SyncShardBytesPerSec: 0,
	}
}

// STORE CONFIG BELOW

// StoreConfig is user configurations for the key value database
type StoreConfig struct {
	DataDirPath string `json:"dataDirPath"` // path of the designated folder where the application stores its data
	DBName      string `json:"dbName"`      // name of the database
	InMemory    bool   `json:"inMemory"`    // non-disk database, only for testing
}

// DefaultDataDirPath() is $USERHOME/.shardnode
func DefaultDataDirPath() string {
	// get the user home
	home, err := homedir.Dir()
	// if unable to get the user home
	if err != nil {
		// fatal error
		panic(err)
	}
	// exit with full default data directory path
	return filepath.Join(home, ".shardnode")
}

// DefaultStoreConfig() returns the developer recommended store configuration
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		DataDirPath: DefaultDataDirPath(), // use the default data dir path
		DBName:      "slivers",            // 'slivers' database name
		InMemory:    false,                // persist to disk, not memory
	}
}

// METRICS CONFIG BELOW

// MetricsConfig represents the configuration for the metrics server
type MetricsConfig struct {
	Enabled           bool   `json:"enabled"`           // if the metrics are enabled
	PrometheusAddress string `json:"prometheusAddress"` // the address of the server
}

// DefaultMetricsConfig() returns the default metrics configuration
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:           true,           // enabled by default
		PrometheusAddress: "0.0.0.0:9090", // the default prometheus address
	}
}

// WriteToFile() saves the Config object to a JSON file
func (c Config) WriteToFile(filepath string) error {
	// convert the config to indented 'pretty' json bytes
	jsonBytes, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	// write the config.json file to the data directory
	return os.WriteFile(filepath, jsonBytes, os.ModePerm)
}

// NewConfigFromFile() populates a Config object from a JSON file, then applies environment overrides
func NewConfigFromFile(filepath string) (Config, error) {
	// read the file into bytes
	fileBytes, err := os.ReadFile(filepath)
	if err != nil {
		return Config{}, err
	}
	// define the default config to fill in any blanks in the file
	c := DefaultConfig()
	// populate the default config with the file bytes
	if err = json.Unmarshal(fileBytes, &c); err != nil {
		return Config{}, err
	}
	if err = c.ApplyEnv(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// ApplyEnv() overrides fields from SHARDNODE_<FIELD> environment variables (ex. SHARDNODE_RPCPORT)
// and expands a leading '~' in the data directory
func (c *Config) ApplyEnv() error {
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return err
	}
	dataDir, err := homedir.Expand(c.DataDirPath)
	if err != nil {
		return err
	}
	c.DataDirPath = dataDir
	return nil
}
