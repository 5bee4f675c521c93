package main

import (
	"fmt"
	"os"

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

// Config holds the plexusd settings. All fields have working defaults so
// the binary runs without a config file.
type Config struct {
	// HTTPAddr is the listen address of the websocket subscription
	// endpoint.
	HTTPAddr string `yaml:"http_addr"`
	// TCPAddr is the listen address of the framed tool-call transport.
	TCPAddr string `yaml:"tcp_addr"`
	// Debug enables debug logging.
	Debug bool `yaml:"debug"`
	// ProgressRate caps advisory progress notifications per call per
	// second; zero disables throttling.
	ProgressRate rate.Limit `yaml:"progress_rate"`
	// ProgressBurst is the throttle burst size.
	ProgressBurst int `yaml:"progress_burst"`
}

func loadConfig(path string) (Config, error) {
	cfg := Config{
		HTTPAddr:      ":8080",
		TCPAddr:       ":9090",
		ProgressRate:  10,
		ProgressBurst: 5,
	}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
