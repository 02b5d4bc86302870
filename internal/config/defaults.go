package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultDummyServerPort = 9000
	DefaultChunkSize       = 16 << 20
	DefaultLeaseTime       = 5 * time.Second
	DefaultListenAddr      = ":6700"
)

// ApplyDefaults fills zero values. Explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)

	if cfg.Mode == "" {
		cfg.Mode = ModeRemote
	}
	if cfg.Transport == "" {
		cfg.Transport = TransportGRPC
	}

	applyMDSDefaults(&cfg.MDS)

	if cfg.IO.MaxInflightAIO == 0 {
		cfg.IO.MaxInflightAIO = 64
	}
	if cfg.IO.MaxSplitConcurrency == 0 {
		cfg.IO.MaxSplitConcurrency = 8
	}
	if cfg.Lease.RefreshTimesPerLease == 0 {
		cfg.Lease.RefreshTimesPerLease = 4
	}
	if cfg.DummyServer.StartPort == 0 {
		cfg.DummyServer.StartPort = DefaultDummyServerPort
	}

	applyEmbeddedDefaults(&cfg.Embedded)
	applyServerDefaults(&cfg.Server)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)
	if cfg.Level == "WARNING" {
		cfg.Level = "WARN"
	}
	if cfg.Path == "" {
		cfg.Path = filepath.Join(os.TempDir(), "sandblock", "logs")
	}
	if cfg.Name == "" {
		cfg.Name = "libsand"
	}
}

func applyMDSDefaults(cfg *MDSConfig) {
	if cfg.Discovery == "" {
		cfg.Discovery = DiscoveryStatic
	}
	if len(cfg.Addrs) == 0 {
		cfg.Addrs = []string{"127.0.0.1:6700"}
	}
	if cfg.RPCTimeout == 0 {
		cfg.RPCTimeout = 3 * time.Second
	}
	if cfg.RetryTimes == 0 {
		cfg.RetryTimes = 3
	}
	if cfg.RetryInterval == 0 {
		cfg.RetryInterval = 100 * time.Millisecond
	}
}

func applyEmbeddedDefaults(cfg *EmbeddedConfig) {
	if cfg.RootUser == "" {
		cfg.RootUser = "root"
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.LeaseTime == 0 {
		cfg.LeaseTime = DefaultLeaseTime
	}
	if cfg.Metadata.Type == "" {
		cfg.Metadata.Type = "memory"
	}
	if cfg.Chunk.Type == "" {
		cfg.Chunk.Type = "localdisc"
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.NodeID == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "sandblock"
		}
		cfg.NodeID = host
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
	if cfg.Role == "" {
		cfg.Role = RoleAll
	}
}
