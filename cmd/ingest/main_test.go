package main

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cli "github.com/urfave/cli/v2"
)

func parseRun(t *testing.T, args ...string) *cli.Context {
	t.Helper()
	app := &cli.App{}
	set := flag.NewFlagSet("run", flag.ContinueOnError)
	for _, f := range runCmd.Flags {
		require.NoError(t, f.Apply(set))
	}
	for _, f := range []cli.Flag{
		&cli.StringFlag{Name: "state-path", Value: "ingest.db"},
		&cli.StringFlag{Name: "log-level", Value: "info"},
	} {
		require.NoError(t, f.Apply(set))
	}
	require.NoError(t, set.Parse(args))
	return cli.NewContext(app, set, nil)
}

func TestConfigFromCLIDefaults(t *testing.T) {
	cfg := configFromCLI(parseRun(t))
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []string{"127.0.0.1"}, cfg.ScyllaHosts)
	assert.Equal(t, "social", cfg.Keyspace)
	assert.Equal(t, "datacenter1", cfg.Datacenter)
	assert.Equal(t, "scylla", cfg.Username)
}

func TestConfigFromCLIPositionalHost(t *testing.T) {
	cfg := configFromCLI(parseRun(t, "--scylla-hosts", "10.0.0.1", "--scylla-datacenter", "dc2", "10.0.0.9"))
	assert.Equal(t, []string{"10.0.0.9"}, cfg.ScyllaHosts)
	assert.Equal(t, "dc2", cfg.Datacenter)
}

func TestConfigFromCLIReplay(t *testing.T) {
	cfg := configFromCLI(parseRun(t, "--replay-file", "events.jsonl", "--write-attempts", "2"))
	assert.Equal(t, "events.jsonl", cfg.ReplayFile)
	assert.Equal(t, uint(2), cfg.WriteAttempts)
	assert.NoError(t, cfg.Validate())
}
