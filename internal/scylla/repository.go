package scylla

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gocql/gocql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/blackmichael/bluesky-ingest/internal/domain"
)

var tracer = otel.Tracer("scylla")

const (
	insertProfileCQL = `INSERT INTO profile (did, avatar, created_at, description, display_name, labels, pinned_post) VALUES (?, ?, ?, ?, ?, ?, ?)`
	insertLikeCQL    = `INSERT INTO likes_by_author (author, subject, created_at, indexed_at, cid) VALUES (?, ?, ?, ?, ?)`
	incrementLikeCQL = `UPDATE post_likes SET likes = likes + 1 WHERE subject = ?`
	insertPostCQL    = `INSERT INTO post (id, author, created_at, content, language, reply, tags, labels, embed) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
)

// Options configures the connection to the cluster.
type Options struct {
	Hosts             []string
	Port              int
	Keyspace          string
	Datacenter        string
	Username          string
	Password          string
	ReplicationFactor int

	// Timeout bounds a single request round trip.
	Timeout time.Duration

	// ConnectAttempts bounds session creation retries at startup.
	ConnectAttempts int
}

// Repository implements domain.RowWriter on ScyllaDB or Cassandra. All
// writes use LOCAL_QUORUM. The underlying session is safe for concurrent use.
type Repository struct {
	session *gocql.Session
	logger  *slog.Logger
}

// NewRepository creates the keyspace if needed, opens a session on it and
// creates the types and tables. The caller should call Close when the
// repository is no longer needed.
func NewRepository(ctx context.Context, opts Options, logger *slog.Logger) (*Repository, error) {
	stmt, err := keyspaceStatement(opts.Keyspace, opts.Datacenter, opts.ReplicationFactor)
	if err != nil {
		return nil, err
	}

	logger.Debug("scylla connect", "hosts", opts.Hosts, "dc", opts.Datacenter)

	// The keyspace may not exist yet, so bootstrap on a session without one.
	bootstrap, err := connect(ctx, opts, "", logger)
	if err != nil {
		return nil, err
	}
	err = bootstrap.Query(stmt).WithContext(ctx).Exec()
	bootstrap.Close()
	if err != nil {
		return nil, fmt.Errorf("create keyspace %s: %w", opts.Keyspace, err)
	}

	session, err := connect(ctx, opts, opts.Keyspace, logger)
	if err != nil {
		return nil, err
	}
	if err := createTables(ctx, session); err != nil {
		session.Close()
		return nil, fmt.Errorf("scylla could not create tables, %w", err)
	}

	logger.Info("connected to scylla", "hosts", opts.Hosts, "keyspace", opts.Keyspace, "dc", opts.Datacenter)
	return &Repository{session: session, logger: logger}, nil
}

func newCluster(opts Options, keyspace string) *gocql.ClusterConfig {
	cluster := gocql.NewCluster(opts.Hosts...)
	cluster.Keyspace = keyspace
	if opts.Port > 0 {
		cluster.Port = opts.Port
	}
	if opts.Timeout > 0 {
		cluster.Timeout = opts.Timeout
	}
	cluster.Consistency = gocql.LocalQuorum
	cluster.RetryPolicy = noRetry
	cluster.PoolConfig.HostSelectionPolicy = gocql.TokenAwareHostPolicy(gocql.DCAwareRoundRobinPolicy(opts.Datacenter))
	cluster.Compressor = &gocql.SnappyCompressor{}
	if opts.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: opts.Username,
			Password: opts.Password,
		}
	}
	return cluster
}

func connect(ctx context.Context, opts Options, keyspace string, logger *slog.Logger) (*gocql.Session, error) {
	attempts := opts.ConnectAttempts
	if attempts <= 0 {
		attempts = 1
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second

	session, err := backoff.Retry(ctx, func() (*gocql.Session, error) {
		return newCluster(opts, keyspace).CreateSession()
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			logger.Error("failed to connect to scylla, retrying", "wait", wait, "err", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect scylla session after %d attempts: %w", attempts, err)
	}
	return session, nil
}

// Close closes the underlying session.
func (r *Repository) Close() {
	r.session.Close()
}

// UpsertProfile writes a profile row.
func (r *Repository) UpsertProfile(ctx context.Context, row *domain.ProfileRow) error {
	return r.exec(ctx, "profile", row.DID, true, insertProfileCQL,
		row.DID,
		toBlobUDT(row.Avatar),
		row.CreatedAt,
		row.Description,
		row.DisplayName,
		row.Labels,
		row.PinnedPost,
	)
}

// AppendLike appends a likes_by_author row. Each call gets a fresh
// indexed_at, so it is not retried on ambiguous failures.
func (r *Repository) AppendLike(ctx context.Context, row *domain.LikeAuthorRow) error {
	return r.exec(ctx, "likes_by_author", row.Subject, false, insertLikeCQL,
		row.Author,
		row.Subject,
		row.CreatedAt,
		gocql.TimeUUID(),
		row.CID,
	)
}

// IncrementPostLikes adds one to the like counter of subject. Counter
// updates are not idempotent and are never replayed by the driver.
func (r *Repository) IncrementPostLikes(ctx context.Context, subject string) error {
	return r.exec(ctx, "post_likes", subject, false, incrementLikeCQL, subject)
}

// InsertPost writes a post row.
func (r *Repository) InsertPost(ctx context.Context, row *domain.PostRow) error {
	return r.exec(ctx, "post", row.ID, true, insertPostCQL,
		row.ID,
		row.Author,
		row.CreatedAt,
		row.Text,
		row.Language,
		toReplyUDT(row.Reply),
		row.Tags,
		row.Labels,
		toEmbeddingsUDT(row.Embed),
	)
}

func (r *Repository) exec(ctx context.Context, table, key string, idempotent bool, stmt string, values ...any) error {
	ctx, span := tracer.Start(ctx, "scylla.write")
	defer span.End()
	span.SetAttributes(attribute.String("table", table), attribute.Bool("idempotent", idempotent))

	start := time.Now()
	q := r.session.Query(stmt, values...).
		WithContext(ctx).
		Consistency(gocql.LocalQuorum).
		Idempotent(idempotent)
	err := q.Exec()
	writeTimes.WithLabelValues(table).Observe(time.Since(start).Seconds())

	if err != nil {
		err = classify(err, idempotent)
		class := "permanent"
		if domain.IsRetryable(err) {
			class = "transient"
		}
		writeErrors.WithLabelValues(table, class).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Debug("scylla write failed", "table", table, "key", key, "class", class, "err", err)
		return fmt.Errorf("write %s %s: %w", table, key, err)
	}
	writes.WithLabelValues(table).Inc()
	return nil
}
