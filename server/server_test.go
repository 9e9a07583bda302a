package server

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/meridianmc/worldpack"
)

func testDescriptor(t *testing.T, content []byte) *worldpack.ArchiveDescriptor {
	t.Helper()
	path := filepath.Join(t.TempDir(), "world.tar.zst")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return &worldpack.ArchiveDescriptor{
		Format:     worldpack.FormatTarZstd,
		Path:       path,
		TotalBytes: uint64(len(content)),
		Digest:     digest.FromBytes(content),
	}
}

func TestHandler_Download(t *testing.T) {
	t.Parallel()

	content := []byte("archive bytes")
	desc := testDescriptor(t, content)
	srv := httptest.NewServer(New(desc, Config{HostPath: "world"}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/world")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/zstd", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="world.tar.zst"`, resp.Header.Get("Content-Disposition"))
	assert.Equal(t, fmt.Sprint(len(content)), resp.Header.Get("Content-Length"))
	assert.Equal(t, `"`+desc.Digest.Encoded()+`"`, resp.Header.Get("ETag"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, content, body)
}

func TestHandler_ConditionalAndRange(t *testing.T) {
	t.Parallel()

	content := []byte("0123456789")
	desc := testDescriptor(t, content)
	srv := httptest.NewServer(New(desc, Config{HostPath: "world"}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/world", nil)
	require.NoError(t, err)
	req.Header.Set("If-None-Match", `"`+desc.Digest.Encoded()+`"`)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotModified, resp.StatusCode)

	req, err = http.NewRequest(http.MethodGet, srv.URL+"/world", nil)
	require.NoError(t, err)
	req.Header.Set("Range", "bytes=2-5")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusPartialContent, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, []byte("2345"), body)
}

func TestHandler_Ping(t *testing.T) {
	t.Parallel()

	desc := testDescriptor(t, []byte("x"))
	srv := httptest.NewServer(New(desc, Config{HostPath: "world"}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ping")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "Pong!", string(body))
}

func TestHandler_UnknownPath(t *testing.T) {
	t.Parallel()

	desc := testDescriptor(t, []byte("x"))
	srv := httptest.NewServer(New(desc, Config{HostPath: "world"}))
	defer srv.Close()

	for _, p := range []string{"/", "/other", "/world/extra"} {
		resp, err := http.Get(srv.URL + p)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, p)
	}
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	desc := testDescriptor(t, []byte("x"))
	srv := httptest.NewServer(New(desc, Config{HostPath: "world"}))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/world", "text/plain", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, "GET, HEAD", resp.Header.Get("Allow"))
}

func TestHandler_MissingArchive(t *testing.T) {
	t.Parallel()

	desc := testDescriptor(t, []byte("x"))
	require.NoError(t, os.Remove(desc.Path))
	srv := httptest.NewServer(New(desc, Config{HostPath: "world"}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/world")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandler_ConcurrentDownloads(t *testing.T) {
	t.Parallel()

	content := make([]byte, 1<<20)
	for i := range content {
		content[i] = byte(i)
	}
	desc := testDescriptor(t, content)
	srv := httptest.NewServer(New(desc, Config{HostPath: "world"}))
	defer srv.Close()

	var eg errgroup.Group
	for i := 0; i < 50; i++ {
		eg.Go(func() error {
			resp, err := http.Get(srv.URL + "/world")
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("status %d", resp.StatusCode)
			}
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			if len(body) != len(content) {
				return fmt.Errorf("read %d of %d bytes", len(body), len(content))
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())
}
