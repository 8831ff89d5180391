package scylla

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gocql/gocql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackmichael/bluesky-ingest/internal/domain"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		idempotent bool
		retryable  bool
		fatal      bool
	}{
		{"nil", nil, true, false, false},
		{"no hosts", gocql.ErrNoConnections, false, true, true},
		{"session closed", fmt.Errorf("exec: %w", gocql.ErrSessionClosed), true, true, true},
		{"unavailable", &gocql.RequestErrUnavailable{}, false, true, false},
		{"write timeout idempotent", &gocql.RequestErrWriteTimeout{}, true, true, false},
		{"write timeout counter", &gocql.RequestErrWriteTimeout{}, false, false, false},
		{"no response counter", gocql.ErrTimeoutNoResponse, false, false, false},
		{"no response idempotent", gocql.ErrTimeoutNoResponse, true, true, false},
		{"invalid query", errors.New("line 1:0 no viable alternative"), true, false, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := classify(tc.err, tc.idempotent)
			if tc.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.err)
			assert.Equal(t, tc.retryable, domain.IsRetryable(err))
			assert.Equal(t, tc.fatal, errors.Is(err, domain.ErrStoreUnavailable))
		})
	}
}

func TestKeyspaceStatement(t *testing.T) {
	stmt, err := keyspaceStatement("social", "datacenter1", 3)
	require.NoError(t, err)
	assert.Equal(t, `CREATE KEYSPACE IF NOT EXISTS social WITH replication = {'class': 'NetworkTopologyStrategy', 'datacenter1': 3}`, stmt)

	_, err = keyspaceStatement("social; DROP KEYSPACE x", "datacenter1", 1)
	assert.Error(t, err)
	_, err = keyspaceStatement("social", "", 1)
	assert.Error(t, err)
	_, err = keyspaceStatement("social", "datacenter1", 0)
	assert.Error(t, err)

	stmt, err = keyspaceStatement("social", "us-east-1", 3)
	require.NoError(t, err)
	assert.Contains(t, stmt, `'us-east-1': 3`)

	_, err = keyspaceStatement("social", "dc1': 1, 'dc2", 1)
	assert.ErrorContains(t, err, "invalid datacenter name")
}

func TestNewCluster(t *testing.T) {
	cluster := newCluster(Options{
		Hosts:      []string{"10.0.0.1", "10.0.0.2"},
		Port:       19042,
		Datacenter: "dc1",
		Username:   "ingest",
		Password:   "secret",
		Timeout:    3 * time.Second,
	}, "social")

	assert.Equal(t, "social", cluster.Keyspace)
	assert.Equal(t, 19042, cluster.Port)
	assert.Equal(t, gocql.LocalQuorum, cluster.Consistency)
	assert.Equal(t, 3*time.Second, cluster.Timeout)
	// The executor owns retries; the driver never replays a statement.
	assert.Same(t, noRetry, cluster.RetryPolicy)
	assert.Equal(t, 0, noRetry.NumRetries)
	assert.Equal(t, gocql.PasswordAuthenticator{Username: "ingest", Password: "secret"}, cluster.Authenticator)
}

func TestEmbeddingsUDT(t *testing.T) {
	assert := assert.New(t)
	cid := "bafy"
	size := int64(10)

	none := toEmbeddingsUDT(domain.EmbedStruct{Media: []domain.MediaEmbedItem{}})
	assert.NotNil(none.Media)
	assert.Empty(none.Media)
	assert.Nil(none.External)
	assert.Nil(none.Record)

	ext := toEmbeddingsUDT(domain.EmbedStruct{
		Media: []domain.MediaEmbedItem{},
		External: &domain.ExternalRef{
			Title: "t",
			URI:   "https://example.com",
			Thumb: &domain.BlobStruct{CID: &cid, Size: &size},
		},
	})
	if assert.NotNil(ext.External) && assert.NotNil(ext.External.Thumb) {
		assert.Equal("https://example.com", ext.External.URI)
		assert.Equal(&cid, ext.External.Thumb.CID)
		assert.Nil(ext.External.Thumb.MimeType)
	}

	media := toEmbeddingsUDT(domain.EmbedStruct{Media: []domain.MediaEmbedItem{{
		Kind:        "Image",
		Blob:        domain.BlobStruct{CID: &cid},
		AspectRatio: map[string]int32{"width": 16, "height": 9},
	}}})
	if assert.Len(media.Media, 1) {
		assert.Equal("Image", media.Media[0].Kind)
		assert.Equal(int32(16), media.Media[0].AspectRatio["width"])
	}
}

// TestRepositoryIntegration runs against a live cluster, e.g.
// SCYLLA_TEST_HOSTS=127.0.0.1 SCYLLA_TEST_DC=datacenter1.
func TestRepositoryIntegration(t *testing.T) {
	hosts := os.Getenv("SCYLLA_TEST_HOSTS")
	if hosts == "" {
		t.Skip("SCYLLA_TEST_HOSTS not set")
	}
	dc := os.Getenv("SCYLLA_TEST_DC")
	if dc == "" {
		dc = "datacenter1"
	}

	ctx := context.Background()
	repo, err := NewRepository(ctx, Options{
		Hosts:             strings.Split(hosts, ","),
		Keyspace:          "ingest_test",
		Datacenter:        dc,
		ReplicationFactor: 1,
		Timeout:           10 * time.Second,
		ConnectAttempts:   3,
	}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	defer repo.Close()

	tr := domain.NewTransformer(nil)
	exec := domain.NewExecutor(repo, domain.DefaultRetryPolicy(), nil)

	size := int64(5)
	profile, err := tr.Profile(&domain.ProfileEvent{DID: "did:plc:integration"})
	require.NoError(t, err)
	require.NoError(t, exec.WriteProfile(ctx, profile))
	require.NoError(t, exec.WriteProfile(ctx, profile))

	var count int
	require.NoError(t, repo.session.Query(`SELECT COUNT(*) FROM profile WHERE did = ?`, "did:plc:integration").Scan(&count))
	assert.Equal(t, 1, count)

	subject := fmt.Sprintf("at://did:plc:integration/app.bsky.feed.post/%d", time.Now().UnixNano())
	post, err := tr.Post(&domain.PostEvent{
		Author: "did:plc:integration",
		ID:     subject,
		Text:   "hello",
		Embed: &domain.MediaEmbed{Items: []domain.MediaItem{{
			Kind:        domain.MediaImage,
			Blob:        &domain.Blob{CID: "bafy", MimeType: "image/png", Size: &size},
			AspectRatio: &domain.AspectRatio{Width: 16, Height: 9},
		}}},
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, exec.WritePost(ctx, post))

	like, err := tr.Like(&domain.LikeEvent{Author: "did:plc:liker", Subject: subject, CreatedAt: time.Now()})
	require.NoError(t, err)
	require.NoError(t, exec.WriteLike(ctx, like))
	require.NoError(t, exec.WriteLike(ctx, like))

	var likes int64
	require.NoError(t, repo.session.Query(`SELECT likes FROM post_likes WHERE subject = ?`, subject).Scan(&likes))
	assert.Equal(t, int64(2), likes)
}
