package main

import (
	"context"
	"flag"
	"log"

	"github.com/AnishMulay/sandblock/internal/config"
	"github.com/AnishMulay/sandblock/servers/simple"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML config file")
		nodeID     = flag.String("node-id", "", "Node ID (overrides server.node_id)")
		listen     = flag.String("listen", "", "Listen address (overrides server.listen_addr)")
		role       = flag.String("role", "", "Node role: mds, chunk or all (overrides server.role)")
		register   = flag.Bool("register", false, "Register the node in etcd")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *nodeID != "" {
		cfg.Server.NodeID = *nodeID
	}
	if *listen != "" {
		cfg.Server.ListenAddr = *listen
	}
	if *role != "" {
		cfg.Server.Role = *role
	}
	if *register {
		cfg.Server.Register = true
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	node, err := simple.Build(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to build node: %v", err)
	}
	if err := node.Run(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
