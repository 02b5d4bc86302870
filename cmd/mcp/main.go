package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"
	"gopkg.in/yaml.v3"

	sandlib "github.com/AnishMulay/sandblock/clients/library"
)

type MCPConfig struct {
	// ClientConfig is the sandblock client config the tools connect with
	ClientConfig string `yaml:"client_config"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`

	// MaxReadBytes caps what one read_file call returns
	MaxReadBytes int `yaml:"max_read_bytes"`
}

const defaultMaxReadBytes = 1 << 20

// LoadConfig reads path, writing a default config there first if it does not exist.
func LoadConfig(path string) (*MCPConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := &MCPConfig{User: "mcp", MaxReadBytes: defaultMaxReadBytes}

		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal default config: %w", err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg MCPConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.MaxReadBytes <= 0 {
		cfg.MaxReadBytes = defaultMaxReadBytes
	}
	return &cfg, nil
}

func main() {
	configPath := flag.String("config", "mcp.yaml", "MCP server config file")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	client := sandlib.NewFileClient()
	if err := client.Init(cfg.ClientConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Client init failed: %v\n", err)
		os.Exit(1)
	}
	defer client.UnInit()

	s := server.NewMCPServer(
		"sandblock",
		"1.0.0",
		server.WithToolCapabilities(false),
	)
	addTools(s, &toolSet{client: client, cfg: cfg})

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
	}
}
