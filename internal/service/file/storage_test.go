package file

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ashwinyue/rag-chat/internal/config"
	"github.com/ashwinyue/rag-chat/internal/service/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 最小的 S3 路径风格实现
type fakeS3 struct {
	mu      sync.Mutex
	buckets map[string]bool
	objects map[string][]byte
	puts    []string
	deny    bool
}

func newFakeS3() *fakeS3 {
	return &fakeS3{buckets: map[string]bool{}, objects: map[string][]byte{}}
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.deny {
		writeS3Error(w, http.StatusForbidden, "AccessDenied")
		return
	}

	p := strings.TrimPrefix(r.URL.Path, "/")
	bucket, key, _ := strings.Cut(p, "/")
	bucket = strings.TrimSuffix(bucket, "/")

	if key == "" {
		switch r.Method {
		case http.MethodHead:
			if !f.buckets[bucket] {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.WriteHeader(http.StatusOK)
		case http.MethodPut:
			f.buckets[bucket] = true
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotImplemented)
		}
		return
	}

	full := bucket + "/" + key
	switch r.Method {
	case http.MethodPut:
		f.objects[full] = []byte("uploaded")
		f.puts = append(f.puts, full)
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet, http.MethodHead:
		data, ok := f.objects[full]
		if !ok {
			writeS3Error(w, http.StatusNotFound, "NoSuchKey")
			return
		}
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Length", fmt.Sprint(len(data)))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = w.Write(data)
		}
	case http.MethodDelete:
		delete(f.objects, full)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func (f *fakeS3) snapshot() (map[string]bool, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	buckets := make(map[string]bool, len(f.buckets))
	for k, v := range f.buckets {
		buckets[k] = v
	}
	return buckets, append([]string(nil), f.puts...)
}

func writeS3Error(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>%s</Code><Message>%s</Message></Error>`, code, code)
}

func remoteConfig(endpoint string) config.RemoteStorageConfig {
	return config.RemoteStorageConfig{
		Endpoint:  strings.TrimPrefix(endpoint, "http://"),
		AccessKey: "access",
		SecretKey: "secret",
		Bucket:    "documents",
		Prefix:    "uploads",
		Region:    "us-east-1",
		UseSSL:    false,
	}
}

func TestMinIOStorage_ObjectLifecycle(t *testing.T) {
	fake := newFakeS3()
	srv := httptest.NewServer(fake)
	defer srv.Close()

	ctx := context.Background()
	cfg := remoteConfig(srv.URL)
	s, err := NewMinIOStorage(ctx, &cfg)
	require.NoError(t, err)
	assert.Equal(t, StorageTypeRemote, s.Type())
	buckets, _ := fake.snapshot()
	assert.True(t, buckets["documents"], "bucket should be created")

	stored, err := s.SaveBytes(ctx, "doc-9", ".pdf", []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, "doc-9.pdf", stored.StoredName)
	assert.Equal(t, int64(8), stored.SizeBytes)
	_, puts := fake.snapshot()
	assert.Equal(t, []string{"documents/uploads/doc-9.pdf"}, puts)

	fake.mu.Lock()
	fake.objects["documents/uploads/doc-9.pdf"] = []byte("stored bytes")
	fake.mu.Unlock()

	data, err := s.ReadBytes(ctx, "doc-9.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("stored bytes"), data)

	require.NoError(t, s.Delete(ctx, "doc-9.pdf"))
	_, err = s.ReadBytes(ctx, "doc-9.pdf")
	assert.ErrorIs(t, err, types.ErrStorage)
	assert.Equal(t, "Stored file not found.", types.Detail(err))
}

func TestNewStorage_Selection(t *testing.T) {
	ctx := context.Background()

	t.Run("no credentials uses local", func(t *testing.T) {
		s, err := NewStorage(ctx, &config.StorageConfig{LocalDir: t.TempDir()})
		require.NoError(t, err)
		assert.Equal(t, StorageTypeLocal, s.Type())
	})

	t.Run("explicit local wins over credentials", func(t *testing.T) {
		fake := newFakeS3()
		srv := httptest.NewServer(fake)
		defer srv.Close()

		s, err := NewStorage(ctx, &config.StorageConfig{
			Backend:  "local",
			LocalDir: t.TempDir(),
			Remote:   remoteConfig(srv.URL),
		})
		require.NoError(t, err)
		assert.Equal(t, StorageTypeLocal, s.Type())
	})

	t.Run("credentials use remote", func(t *testing.T) {
		fake := newFakeS3()
		srv := httptest.NewServer(fake)
		defer srv.Close()

		s, err := NewStorage(ctx, &config.StorageConfig{LocalDir: t.TempDir(), Remote: remoteConfig(srv.URL)})
		require.NoError(t, err)
		assert.Equal(t, StorageTypeRemote, s.Type())
	})

	t.Run("remote failure falls back to local", func(t *testing.T) {
		fake := newFakeS3()
		fake.deny = true
		srv := httptest.NewServer(fake)
		defer srv.Close()

		s, err := NewStorage(ctx, &config.StorageConfig{LocalDir: t.TempDir(), Remote: remoteConfig(srv.URL)})
		require.NoError(t, err)
		assert.Equal(t, StorageTypeLocal, s.Type())
	})

	t.Run("explicit remote does not fall back", func(t *testing.T) {
		fake := newFakeS3()
		fake.deny = true
		srv := httptest.NewServer(fake)
		defer srv.Close()

		_, err := NewStorage(ctx, &config.StorageConfig{Backend: "remote", LocalDir: t.TempDir(), Remote: remoteConfig(srv.URL)})
		assert.ErrorIs(t, err, types.ErrStorage)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := NewStorage(ctx, &config.StorageConfig{Backend: "ftp"})
		assert.Error(t, err)
	})
}
