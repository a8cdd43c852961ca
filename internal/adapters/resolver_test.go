package adapters_test

import (
	"archive/zip"
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formiel/adapter-transformers/internal/adapters"
)

// zipDirectory packs every file of a saved artifact directory into a zip
// archive, entries at the archive root.
func zipDirectory(t *testing.T, dir string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, entry := range entries {
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		require.NoError(t, err)
		w, err := zw.Create(entry.Name())
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestLoadAdapterFromURL(t *testing.T) {
	saved := t.TempDir()
	x := testInput(t)

	src := newBase(t)
	require.NoError(t, src.AddAdapter("sst", adapters.TextTask, nil))
	want, err := src.Forward(x, "sst")
	require.NoError(t, err)
	require.NoError(t, adapters.NewAdapterManager(src, quietLogger()).SaveAdapter(saved, "sst", nil, nil))

	archive := zipDirectory(t, saved)
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write(archive)
	}))
	defer server.Close()

	cacheDir := t.TempDir()
	dst := newBase(t)
	name, err := adapters.NewAdapterManager(dst, quietLogger()).
		LoadAdapter(server.URL+"/sst.zip", adapters.LoadOptions{CacheDir: cacheDir}, nil)
	require.NoError(t, err)
	assert.Equal(t, "sst", name)
	assert.Equal(t, 1, hits)

	got, err := dst.Forward(x, "sst")
	require.NoError(t, err)
	assert.Equal(t, want.AsFloat32(), got.AsFloat32())

	// A second load of the same URL hits the extraction cache.
	other := newBase(t)
	_, err = adapters.NewAdapterManager(other, quietLogger()).
		LoadAdapter(server.URL+"/sst.zip", adapters.LoadOptions{CacheDir: cacheDir}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, hits, "cached archive must not be downloaded again")
}

func TestLoadAdapterFromURLNotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	m := newBase(t)
	_, err := adapters.NewAdapterManager(m, quietLogger()).
		LoadAdapter(server.URL+"/missing.zip", adapters.LoadOptions{CacheDir: t.TempDir()}, nil)
	assert.ErrorIs(t, err, adapters.ErrNotFound)
}

func TestLoadAdapterFromURLBadArchive(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("this is not a zip archive"))
	}))
	defer server.Close()

	m := newBase(t)
	_, err := adapters.NewAdapterManager(m, quietLogger()).
		LoadAdapter(server.URL+"/broken.zip", adapters.LoadOptions{CacheDir: t.TempDir()}, nil)
	assert.Error(t, err)
}
