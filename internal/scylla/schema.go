package scylla

import (
	"context"
	"fmt"
	"regexp"

	"github.com/gocql/gocql"
)

var identRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]{0,47}$`)

// Datacenter names come from the snitch, e.g. "datacenter1" or "us-east-1".
var datacenterRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.\-]{0,63}$`)

func keyspaceStatement(keyspace, datacenter string, replicationFactor int) (string, error) {
	if !identRegex.MatchString(keyspace) {
		return "", fmt.Errorf("invalid keyspace name %q", keyspace)
	}
	if datacenter == "" {
		return "", fmt.Errorf("datacenter is required")
	}
	if !datacenterRegex.MatchString(datacenter) {
		return "", fmt.Errorf("invalid datacenter name %q", datacenter)
	}
	if replicationFactor < 1 {
		return "", fmt.Errorf("replication factor must be at least 1, got %d", replicationFactor)
	}
	return fmt.Sprintf(
		`CREATE KEYSPACE IF NOT EXISTS %s WITH replication = {'class': 'NetworkTopologyStrategy', '%s': %d}`,
		keyspace, datacenter, replicationFactor,
	), nil
}

// createTableTexts are applied in order; types must exist before the types
// and tables that reference them.
var createTableTexts = []string{
	`CREATE TYPE IF NOT EXISTS avatar (cid text, mime_type text, size bigint)`,
	`CREATE TYPE IF NOT EXISTS reply (parent text, root text)`,
	`CREATE TYPE IF NOT EXISTS embed_blob (cid text, mime_type text, size bigint)`,
	`CREATE TYPE IF NOT EXISTS embed_media (kind text, alt text, blob frozen<embed_blob>, aspect_ratio map<text, int>)`,
	`CREATE TYPE IF NOT EXISTS external_ref (description text, thumb frozen<embed_blob>, title text, uri text)`,
	`CREATE TYPE IF NOT EXISTS embeddings (media list<frozen<embed_media>>, external frozen<external_ref>, record text)`,
	`CREATE TABLE IF NOT EXISTS profile (
		did text PRIMARY KEY,
		avatar frozen<avatar>,
		created_at timestamp,
		description text,
		display_name text,
		labels list<text>,
		pinned_post text)`,
	// indexed_at makes every like an append, so redelivered likes are kept
	// as separate audit rows.
	`CREATE TABLE IF NOT EXISTS likes_by_author (
		author text,
		subject text,
		created_at timestamp,
		indexed_at timeuuid,
		cid text,
		PRIMARY KEY ((author), subject, created_at, indexed_at))`,
	`CREATE TABLE IF NOT EXISTS post_likes (
		subject text PRIMARY KEY,
		likes counter)`,
	`CREATE TABLE IF NOT EXISTS post (
		id text PRIMARY KEY,
		author text,
		created_at timestamp,
		content text,
		language text,
		reply frozen<reply>,
		tags list<text>,
		labels list<text>,
		embed frozen<embeddings>)`,
}

func createTables(ctx context.Context, session *gocql.Session) error {
	for i, text := range createTableTexts {
		if err := session.Query(text).WithContext(ctx).Exec(); err != nil {
			return fmt.Errorf("scylla create table statement [%d] %v: %w", i, text, err)
		}
	}
	return nil
}
