package app

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Store backend names accepted in config.
const (
	BackendMemory   = "memory"
	BackendSnapshot = "snapshot"
	BackendRedis    = "redis"
)

// Config holds everything beacond needs to run. Resolution order is CLI
// flag, then environment, then config file, then default.
type Config struct {
	ListenAddr      string
	StoreBackend    string
	SnapshotPath    string
	RedisAddr       string
	LiveEnabled     bool
	ShutdownTimeout time.Duration
}

// DefaultConfig mirrors the service's historical defaults: port 5000 and a
// JSON snapshot file next to the binary.
func DefaultConfig() Config {
	return Config{
		ListenAddr:      ":5000",
		StoreBackend:    BackendSnapshot,
		SnapshotPath:    "data_store.json",
		RedisAddr:       "127.0.0.1:6379",
		LiveEnabled:     true,
		ShutdownTimeout: 5 * time.Second,
	}
}

// Validate rejects unknown backend names.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory, BackendSnapshot, BackendRedis:
		return nil
	default:
		return fmt.Errorf("unknown store backend %q: must be %q, %q or %q",
			c.StoreBackend, BackendMemory, BackendSnapshot, BackendRedis)
	}
}

// fileConfig is the HCL schema of the optional config file. Pointer fields
// distinguish "absent" from "set to the zero value".
type fileConfig struct {
	ListenAddr *string     `hcl:"listen_addr,optional"`
	Store      *storeBlock `hcl:"store,block"`
	Live       *liveBlock  `hcl:"live,block"`
}

type storeBlock struct {
	Backend string  `hcl:"backend,label"`
	Path    *string `hcl:"path,optional"`
	Addr    *string `hcl:"addr,optional"`
}

type liveBlock struct {
	Enabled bool `hcl:"enabled"`
}

// ApplyFile merges an HCL config file into the config.
func (c *Config) ApplyFile(path string) error {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse config file %s: %w", path, diags)
	}

	var fc fileConfig
	if diags := gohcl.DecodeBody(file.Body, nil, &fc); diags.HasErrors() {
		return fmt.Errorf("failed to decode config file %s: %w", path, diags)
	}

	if fc.ListenAddr != nil {
		c.ListenAddr = *fc.ListenAddr
	}
	if fc.Store != nil {
		c.StoreBackend = fc.Store.Backend
		if fc.Store.Path != nil {
			c.SnapshotPath = *fc.Store.Path
		}
		if fc.Store.Addr != nil {
			c.RedisAddr = *fc.Store.Addr
		}
	}
	if fc.Live != nil {
		c.LiveEnabled = fc.Live.Enabled
	}
	return nil
}

// ApplyEnv merges BEACOND_* environment variables (typically loaded from a
// .env file) into the config.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("BEACOND_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("BEACOND_STORE_BACKEND"); v != "" {
		c.StoreBackend = v
	}
	if v := os.Getenv("BEACOND_SNAPSHOT_PATH"); v != "" {
		c.SnapshotPath = v
	}
	if v := os.Getenv("BEACOND_REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
}
