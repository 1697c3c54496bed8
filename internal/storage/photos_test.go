package storage

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, cfg Config) *PhotoStore {
	t.Helper()
	if cfg.AccessKey == "" {
		cfg.AccessKey = "test-access"
		cfg.SecretKey = "test-secret"
	}
	if cfg.Bucket == "" {
		cfg.Bucket = "bailey-photos"
	}
	store, err := NewPhotoStore(context.Background(), cfg)
	require.NoError(t, err)
	return store
}

func TestNewPhotoStoreRequiresBucketAndCredentials(t *testing.T) {
	_, err := NewPhotoStore(context.Background(), Config{AccessKey: "a", SecretKey: "b"})
	require.Error(t, err)

	_, err = NewPhotoStore(context.Background(), Config{Bucket: "b"})
	require.Error(t, err)
}

func TestPublicURL(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want string
	}{
		{name: "explicit public url", cfg: Config{PublicURL: "https://cdn.example.com/"}, want: "https://cdn.example.com/photos/2026/10/a.jpg"},
		{name: "path style endpoint", cfg: Config{Endpoint: "http://localhost:9000", UsePathStyle: true}, want: "http://localhost:9000/bailey-photos/photos/2026/10/a.jpg"},
		{name: "virtual host endpoint", cfg: Config{Endpoint: "minio.example.com"}, want: "https://bailey-photos.minio.example.com/photos/2026/10/a.jpg"},
		{name: "aws default", cfg: Config{Region: "us-west-2"}, want: "https://bailey-photos.s3.us-west-2.amazonaws.com/photos/2026/10/a.jpg"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newTestStore(t, tc.cfg)
			require.Equal(t, tc.want, store.PublicURL("photos/2026/10/a.jpg"))
		})
	}
}

func TestPresignUploadSignsPut(t *testing.T) {
	store := newTestStore(t, Config{Endpoint: "http://localhost:9000", UsePathStyle: true, PresignTTL: 5 * time.Minute})

	signed, expires, err := store.PresignUpload(context.Background(), "photos/2026/10/a.jpg", "image/jpeg")
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(5*time.Minute), expires, 5*time.Second)

	u, err := url.Parse(signed)
	require.NoError(t, err)
	require.Equal(t, "localhost:9000", u.Host)
	require.True(t, strings.HasPrefix(u.Path, "/bailey-photos/photos/2026/10/a.jpg"))
	require.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
	require.Equal(t, "300", u.Query().Get("X-Amz-Expires"))

	_, _, err = store.PresignUpload(context.Background(), "", "image/jpeg")
	require.Error(t, err)
}
