package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/hoopline/gatekeeper/types"
	"github.com/hoopline/gatekeeper/warehouse"
)

// Config represents a gatekeeper.yaml configuration file.
// All values are optional and act as defaults for gatekeeper run flags.
// CLI flags always override config values.
type Config struct {
	Warehouse WarehouseConfig        `yaml:"warehouse"`
	Ledger    LedgerConfig           `yaml:"ledger"`
	HashStore HashStoreConfig        `yaml:"hash_store"`
	Redis     RedisConfig            `yaml:"redis"`
	Locking   LockingConfig          `yaml:"locking"`
	Retry     RetryConfig            `yaml:"retry"`
	Window    WindowConfig           `yaml:"window"`
	Stages    map[string]StageConfig `yaml:"stages"`
	Signal    SignalConfig           `yaml:"signal"`
	Alerts    AlertConfig            `yaml:"alerts"`
	Snapshot  SnapshotConfig         `yaml:"snapshot"`
}

// WarehouseConfig points at the analytical store.
type WarehouseConfig struct {
	// Path is the SQLite database file.
	Path string `yaml:"path"`
}

// LedgerConfig points at the run and failure ledgers.
type LedgerConfig struct {
	Path string `yaml:"path"`
}

// HashStoreConfig configures the change-hash tracker.
type HashStoreConfig struct {
	Path string `yaml:"path"`
	// PrimarySource is the source prefix consulted in primary-only skip
	// mode.
	PrimarySource string `yaml:"primary_source"`
	// CheckAllSources requires every source unchanged before skipping.
	CheckAllSources bool `yaml:"check_all_sources"`
}

// RedisConfig configures the coordination service and the redis signal
// adapter.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// URL assembles a redis:// connection URL from the parts. Empty when no
// address is configured.
func (r RedisConfig) URL() string {
	if r.Addr == "" {
		return ""
	}
	u := "redis://"
	if r.Password != "" {
		u += ":" + r.Password + "@"
	}
	u += r.Addr
	if r.DB > 0 {
		u += fmt.Sprintf("/%d", r.DB)
	}
	return u
}

// LockingConfig configures processing locks.
type LockingConfig struct {
	StaleAfter        Duration `yaml:"stale_after"`
	HeartbeatInterval Duration `yaml:"heartbeat_interval"`
}

// RetryConfig configures the dependency-check retry schedule.
type RetryConfig struct {
	MaxRetries int      `yaml:"max_retries"`
	BaseDelay  Duration `yaml:"base_delay"`
}

// WindowConfig configures rolling-window validation.
type WindowConfig struct {
	Sizes            []int   `yaml:"sizes"`
	ComputeThreshold float64 `yaml:"compute_threshold"`
}

// StageConfig is one pipeline stage's validation wiring.
type StageConfig struct {
	// Source is the warehouse table the stage reads.
	Source SourceConfig `yaml:"source"`
	// Upstreams are the dependency rules gating the stage.
	Upstreams []UpstreamConfig `yaml:"upstreams"`
	// RawFeed enables raw-data probing for failure classification.
	RawFeed bool `yaml:"raw_feed"`
	// OutputLocation is reported in the completion signal.
	OutputLocation string `yaml:"output_location"`
}

// SourceConfig maps to a warehouse source table.
type SourceConfig struct {
	Name          string `yaml:"name"`
	Table         string `yaml:"table"`
	DateColumn    string `yaml:"date_column"`
	EntityColumn  string `yaml:"entity_column"`
	UpdatedColumn string `yaml:"updated_column"`
}

// Source converts the config entry to a warehouse.Source.
func (s SourceConfig) Source() warehouse.Source {
	return warehouse.Source{
		Table:         s.Table,
		DateColumn:    s.DateColumn,
		EntityColumn:  s.EntityColumn,
		UpdatedColumn: s.UpdatedColumn,
	}
}

// UpstreamConfig is one dependency rule in the config file.
type UpstreamConfig struct {
	Stage       string  `yaml:"stage"`
	Hard        bool    `yaml:"hard"`
	MinCoverage float64 `yaml:"min_coverage"`
}

// Rule converts the config entry to a types.DependencyRule.
func (u UpstreamConfig) Rule() types.DependencyRule {
	return types.DependencyRule{
		UpstreamStage: u.Stage,
		IsHard:        u.Hard,
		MinCoverage:   u.MinCoverage,
	}
}

// SignalConfig configures the stage-completion signal adapter.
type SignalConfig struct {
	// Type is redis, webhook, or none.
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// AlertConfig configures the failure alert channel.
type AlertConfig struct {
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
}

// SnapshotConfig configures run-report archiving.
type SnapshotConfig struct {
	// Backend is fs, s3, or none.
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Bucket      string `yaml:"bucket"`
	Prefix      string `yaml:"prefix"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// StageNames returns the configured stage names, sorted for deterministic
// listing.
func (c *Config) StageNames() []string {
	names := make([]string, 0, len(c.Stages))
	for name := range c.Stages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stage looks up one stage's config.
func (c *Config) Stage(name string) (StageConfig, error) {
	sc, ok := c.Stages[name]
	if !ok {
		return StageConfig{}, fmt.Errorf("stage %q is not configured", name)
	}
	return sc, nil
}
