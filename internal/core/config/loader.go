package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Set defaults if necessary
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Arweave.GatewayURL == "" {
		cfg.Arweave.GatewayURL = "https://arweave.net"
	}
	if cfg.Arweave.GraphQLURL == "" {
		cfg.Arweave.GraphQLURL = cfg.Arweave.GatewayURL + "/graphql"
	}

	for i := range cfg.Processes {
		if cfg.Processes[i].PageSize == 0 {
			cfg.Processes[i].PageSize = 100
		}
		if cfg.Processes[i].PollInterval == 0 {
			cfg.Processes[i].PollInterval = 30 * time.Second
		}
		if cfg.Processes[i].CycleTimeout == 0 {
			cfg.Processes[i].CycleTimeout = 2 * time.Minute
		}
	}

	if cfg.Monitor.SweepInterval == 0 {
		cfg.Monitor.SweepInterval = time.Minute
	}
	if cfg.Monitor.CheckTimeout == 0 {
		cfg.Monitor.CheckTimeout = 10 * time.Second
	}
	if cfg.Monitor.Concurrency == 0 {
		cfg.Monitor.Concurrency = 8
	}
	if cfg.Monitor.Retention == 0 {
		cfg.Monitor.Retention = 14 * 24 * time.Hour
	}

	return &cfg, nil
}
