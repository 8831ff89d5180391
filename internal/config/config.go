package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/blackmichael/bluesky-ingest/internal/domain"
	"github.com/blackmichael/bluesky-ingest/internal/scylla"
)

// Config holds all configuration for the application.
type Config struct {
	// ScyllaHosts are the contact points of the cluster.
	ScyllaHosts []string

	// ScyllaPort is the CQL native protocol port.
	ScyllaPort int

	Keyspace          string
	Datacenter        string
	Username          string
	Password          string
	ReplicationFactor int

	// ScyllaTimeout bounds a single request round trip.
	ScyllaTimeout time.Duration

	// FirehoseURL is the Jetstream WebSocket endpoint.
	FirehoseURL string

	// ReplayFile, when set, replaces the firehose with a JSONL capture of
	// Jetstream messages. The run ends when the file is exhausted.
	ReplayFile string

	// StatePath is the SQLite file holding dead letters and the firehose cursor.
	StatePath string

	// OpsAddr is the listen address of the health and metrics server.
	// Empty disables it.
	OpsAddr string

	LogLevel string

	WriteAttempts       uint
	WriteInitialBackoff time.Duration
	WriteMaxBackoff     time.Duration
	WriteMaxElapsed     time.Duration
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	retry := domain.DefaultRetryPolicy()
	return &Config{
		ScyllaHosts:         []string{"127.0.0.1"},
		ScyllaPort:          9042,
		Keyspace:            "social",
		Datacenter:          "datacenter1",
		Username:            "scylla",
		Password:            "scylla",
		ReplicationFactor:   1,
		ScyllaTimeout:       5 * time.Second,
		FirehoseURL:         "wss://jetstream1.us-east.bsky.network/subscribe",
		StatePath:           "ingest.db",
		OpsAddr:             ":2471",
		LogLevel:            "info",
		WriteAttempts:       retry.MaxAttempts,
		WriteInitialBackoff: retry.InitialInterval,
		WriteMaxBackoff:     retry.MaxInterval,
		WriteMaxElapsed:     retry.MaxElapsed,
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if len(c.ScyllaHosts) == 0 {
		errs = append(errs, errors.New("at least one scylla host is required"))
	}
	for _, h := range c.ScyllaHosts {
		if strings.TrimSpace(h) == "" {
			errs = append(errs, errors.New("empty scylla host"))
			break
		}
	}
	if c.ScyllaPort <= 0 || c.ScyllaPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid scylla port %d", c.ScyllaPort))
	}
	if c.Keyspace == "" {
		errs = append(errs, errors.New("keyspace is required"))
	}
	if c.Datacenter == "" {
		errs = append(errs, errors.New("datacenter is required"))
	}
	if c.ReplicationFactor < 1 {
		errs = append(errs, fmt.Errorf("replication factor must be at least 1, got %d", c.ReplicationFactor))
	}
	if c.ReplayFile == "" {
		u, err := url.Parse(c.FirehoseURL)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid firehose url: %w", err))
		} else if u.Scheme != "ws" && u.Scheme != "wss" {
			errs = append(errs, fmt.Errorf("firehose url must use ws or wss, got %q", c.FirehoseURL))
		}
	}
	if c.StatePath == "" {
		errs = append(errs, errors.New("state path is required"))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	if c.WriteAttempts < 1 {
		errs = append(errs, errors.New("write attempts must be at least 1"))
	}
	if c.WriteInitialBackoff <= 0 || c.WriteMaxBackoff < c.WriteInitialBackoff {
		errs = append(errs, fmt.Errorf("invalid write backoff %s..%s", c.WriteInitialBackoff, c.WriteMaxBackoff))
	}
	return errors.Join(errs...)
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return level, nil
}

// RetryPolicy returns the executor retry policy.
func (c *Config) RetryPolicy() domain.RetryPolicy {
	return domain.RetryPolicy{
		MaxAttempts:     c.WriteAttempts,
		InitialInterval: c.WriteInitialBackoff,
		MaxInterval:     c.WriteMaxBackoff,
		MaxElapsed:      c.WriteMaxElapsed,
	}
}

// ScyllaOptions returns the connection options for the store.
func (c *Config) ScyllaOptions() scylla.Options {
	return scylla.Options{
		Hosts:             c.ScyllaHosts,
		Port:              c.ScyllaPort,
		Keyspace:          c.Keyspace,
		Datacenter:        c.Datacenter,
		Username:          c.Username,
		Password:          c.Password,
		ReplicationFactor: c.ReplicationFactor,
		Timeout:           c.ScyllaTimeout,
		ConnectAttempts:   5,
	}
}
