// Package config loads the client and server configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (SANDBLOCK_*)
//  2. Configuration file (YAML)
//  3. Default values
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	ModeRemote   = "remote"
	ModeEmbedded = "embedded"

	DiscoveryStatic = "static"
	DiscoveryEtcd   = "etcd"

	TransportGRPC = "grpc"
	TransportHTTP = "http"

	RoleMetadata = "mds"
	RoleChunk    = "chunk"
	RoleAll      = "all"
)

type Config struct {
	// Logging controls where the client log goes and how verbose it is
	Logging LoggingConfig `mapstructure:"logging"`

	// Mode selects a remote cluster or an in-process one
	Mode string `mapstructure:"mode" validate:"required,oneof=remote embedded"`

	// ClientID identifies this process to the metadata service. Generated when empty.
	ClientID string `mapstructure:"client_id"`

	// Transport used to reach cluster nodes
	Transport string `mapstructure:"transport" validate:"required,oneof=grpc http"`

	MDS         MDSConfig         `mapstructure:"mds"`
	IO          IOConfig          `mapstructure:"io"`
	Lease       LeaseConfig       `mapstructure:"lease"`
	DummyServer DummyServerConfig `mapstructure:"dummy_server"`
	Embedded    EmbeddedConfig    `mapstructure:"embedded"`
	Server      ServerConfig      `mapstructure:"server"`
}

type LoggingConfig struct {
	// Level is the minimum level written: DEBUG, INFO, WARN, ERROR
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR"`

	// Path is the log directory
	Path string `mapstructure:"path" validate:"required"`

	// Name is the log file base name and the node id stamped on each line
	Name string `mapstructure:"name" validate:"required"`
}

type MDSConfig struct {
	// Discovery is how metadata servers are found: static or etcd
	Discovery string `mapstructure:"discovery" validate:"required,oneof=static etcd"`

	// Addrs lists metadata servers for static discovery
	Addrs []string `mapstructure:"addrs"`

	// Chunk servers for static discovery; empty means the metadata servers also hold chunks
	ChunkAddrs []string `mapstructure:"chunk_addrs"`

	EtcdEndpoints []string `mapstructure:"etcd_endpoints"`
	EtcdPrefix    string   `mapstructure:"etcd_prefix"`

	RPCTimeout    time.Duration `mapstructure:"rpc_timeout" validate:"gt=0"`
	RetryTimes    int           `mapstructure:"retry_times" validate:"gte=0"`
	RetryInterval time.Duration `mapstructure:"retry_interval" validate:"gte=0"`
}

type IOConfig struct {
	// MaxInflightAIO bounds asynchronous requests running per open file
	MaxInflightAIO int `mapstructure:"max_inflight_aio" validate:"gt=0"`

	// MaxSplitConcurrency bounds chunk requests one read or write fans out to
	MaxSplitConcurrency int `mapstructure:"max_split_concurrency" validate:"gt=0"`
}

type LeaseConfig struct {
	// RefreshTimesPerLease is how many refreshes are attempted within one lease period
	RefreshTimesPerLease int `mapstructure:"refresh_times_per_lease" validate:"gt=0"`
}

type DummyServerConfig struct {
	// Enabled starts the diagnostic metrics listener on first Init
	Enabled bool `mapstructure:"enabled"`

	// StartPort is the first port probed
	StartPort int `mapstructure:"start_port" validate:"gte=1,lte=65535"`
}

type EmbeddedConfig struct {
	RootUser     string        `mapstructure:"root_user"`
	RootPassword string        `mapstructure:"root_password"`
	ChunkSize    uint64        `mapstructure:"chunk_size" validate:"gt=0"`
	LeaseTime    time.Duration `mapstructure:"lease_time" validate:"gt=0"`

	Metadata MetadataStoreConfig `mapstructure:"metadata"`
	Chunk    ChunkStoreConfig    `mapstructure:"chunk"`
}

type MetadataStoreConfig struct {
	// Type specifies which metadata store implementation to use
	// Valid values: memory, badger
	Type string `mapstructure:"type" validate:"required,oneof=memory badger"`

	// Badger contains BadgerDB-specific configuration
	Badger map[string]any `mapstructure:"badger"`
}

type ChunkStoreConfig struct {
	// Type specifies which chunk store implementation to use
	// Valid values: localdisc, s3
	Type string `mapstructure:"type" validate:"required,oneof=localdisc s3"`

	Localdisc map[string]any `mapstructure:"localdisc"`
	S3        map[string]any `mapstructure:"s3"`
}

// ServerConfig is read by sandblock-server only.
type ServerConfig struct {
	NodeID     string `mapstructure:"node_id"`
	ListenAddr string `mapstructure:"listen_addr"`

	// AdvertiseAddr is what other nodes and clients dial. Defaults to the bound address.
	AdvertiseAddr string `mapstructure:"advertise_addr"`

	// Role is mds, chunk or all
	Role string `mapstructure:"role" validate:"omitempty,oneof=mds chunk all"`

	// Register announces the node in etcd under mds.etcd_prefix
	Register bool `mapstructure:"register"`
}

// Load reads configPath (YAML) on top of defaults and the environment. An empty
// path loads defaults and environment only; a path that does not exist is an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return nil, fmt.Errorf("config file %s: %w", configPath, err)
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration Load produces without a file.
func Default() *Config {
	cfg := &Config{DummyServer: DummyServerConfig{Enabled: true}}
	ApplyDefaults(cfg)
	return cfg
}

func setupViper(v *viper.Viper, configPath string) {
	// Example: SANDBLOCK_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("SANDBLOCK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Booleans cannot be defaulted after unmarshal.
	v.SetDefault("dummy_server.enabled", true)

	// AutomaticEnv only sees keys viper already knows about.
	for _, key := range []string{
		"logging.level", "logging.path", "logging.name",
		"mode", "client_id", "transport",
		"mds.discovery", "mds.rpc_timeout", "mds.etcd_prefix",
		"dummy_server.start_port",
		"server.node_id", "server.listen_addr", "server.advertise_addr", "server.role",
	} {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
	}
}
