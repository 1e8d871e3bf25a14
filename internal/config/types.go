// Package config loads pipeline configuration from defaults, glpipe.yaml,
// GLPIPE_ environment variables and CLI flags, in ascending precedence.
package config

import "github.com/dakota-labs/glpipe/internal/warehouse"

// Default configuration values.
const (
	DefaultWarehouseType = "duckdb"
	DefaultWarehousePath = "glpipe.duckdb"
	DefaultStatePath     = ".glpipe/state.db"
	DefaultProducerURL   = "http://localhost:8000"
	DefaultBatchSize     = 1000
	DefaultServerAddr    = ":8080"
)

// Config is the full pipeline configuration.
type Config struct {
	Warehouse WarehouseConfig `koanf:"warehouse"`
	Producer  ProducerConfig  `koanf:"producer"`
	Server    ServerConfig    `koanf:"server"`

	// StatePath locates the SQLite metadata store.
	StatePath string `koanf:"state_path"`
	// ChecksPath optionally points at a YAML check suite merged into the
	// built-in quality checks.
	ChecksPath string `koanf:"checks_path"`
	// AuditUser tags access-audit entries; defaults to the OS user.
	AuditUser string `koanf:"audit_user"`
	Verbose   bool   `koanf:"verbose"`
}

// WarehouseConfig selects and configures the analytical store.
type WarehouseConfig struct {
	Type     string `koanf:"type"`
	Path     string `koanf:"path"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Database string `koanf:"database"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
}

// ProducerConfig points at the upstream GL record producer.
type ProducerConfig struct {
	URL       string `koanf:"url"`
	BatchSize int    `koanf:"batch_size"`
}

// ServerConfig configures the metadata API server.
type ServerConfig struct {
	Addr string `koanf:"addr"`
}

// WarehouseConn returns the adapter-level connection config.
func (c *Config) WarehouseConn() warehouse.Config {
	return warehouse.Config{
		Type:     c.Warehouse.Type,
		Path:     c.Warehouse.Path,
		Host:     c.Warehouse.Host,
		Port:     c.Warehouse.Port,
		Database: c.Warehouse.Database,
		Username: c.Warehouse.Username,
		Password: c.Warehouse.Password,
	}
}
