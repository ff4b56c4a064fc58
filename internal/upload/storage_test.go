package upload

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestObjectKeyStripsPaths(t *testing.T) {
	cases := map[string]string{
		"report.pdf":            "report.pdf",
		"../../etc/passwd":      "passwd",
		`C:\Users\me\notes.txt`: "notes.txt",
		"":                      "file",
	}
	for in, wantBase := range cases {
		key := ObjectKey("prj_1", in)
		require.True(t, strings.HasPrefix(key, "projects/prj_1/obj_"), key)
		require.True(t, strings.HasSuffix(key, "-"+wantBase), "%q -> %q", in, key)
		require.NotContains(t, strings.TrimPrefix(key, "projects/prj_1/"), "/")
	}
	require.NotEqual(t, ObjectKey("p", "a.txt"), ObjectKey("p", "a.txt"))
}

func TestMemoryStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	require.NoError(t, s.Put(ctx, "k", strings.NewReader("hello"), 5, "text/plain"))
	data, ok := s.Object("k")
	require.True(t, ok)
	require.Equal(t, "hello", string(data))

	link, err := s.URL(ctx, "k", "hello.txt", time.Minute)
	require.NoError(t, err)
	require.Equal(t, "memory://k", link)

	require.Error(t, s.Put(ctx, "short", strings.NewReader("hi"), 5, "text/plain"))

	require.NoError(t, s.Remove(ctx, "k"))
	_, err = s.URL(ctx, "k", "hello.txt", time.Minute)
	require.Error(t, err)
}

func TestNewMinioStorageRequiresEndpoint(t *testing.T) {
	_, err := NewMinioStorage(context.Background(), MinioConfig{})
	require.ErrorIs(t, err, ErrNotConfigured)
}
