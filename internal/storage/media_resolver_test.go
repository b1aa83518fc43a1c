package storage

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/exam-attempt-service/internal/config"
)

func TestStaticMediaResolver(t *testing.T) {
	r := StaticMediaResolver{BaseURL: "https://cdn.example.com/media/"}
	ctx := context.Background()

	got, err := r.Resolve(ctx, "/images/q1.png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/media/images/q1.png", got)

	got, _ = r.Resolve(ctx, "https://elsewhere.example.com/a.mp3")
	assert.Equal(t, "https://elsewhere.example.com/a.mp3", got)

	got, _ = r.Resolve(ctx, "")
	assert.Empty(t, got)
}

func TestMinioMediaResolver_SignsLocally(t *testing.T) {
	// presigning is computed client side, no server round trip
	r, err := NewMinioMediaResolver(config.MinioConfig{
		Endpoint:  "localhost:9000",
		AccessKey: "minio",
		SecretKey: "minio-secret",
		Bucket:    "exam-media",
		Region:    "us-east-1",
		URLTTL:    15 * time.Minute,
	})
	require.NoError(t, err)

	signed, err := r.Resolve(context.Background(), "audio/listening-1.mp3")
	require.NoError(t, err)

	u, err := url.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, "/exam-media/audio/listening-1.mp3", u.Path)
	assert.Equal(t, "900", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
}
