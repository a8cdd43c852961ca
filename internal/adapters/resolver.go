package adapters

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// resolveRequest carries the context an identifier is resolved under.
// The requested config, type and model name exist for source
// implementations that pick between candidate artifacts; the built-in
// directory and URL sources do not need them.
type resolveRequest struct {
	config      Config
	adapterType AdapterType
	modelName   string
	version     string
	cacheDir    string
}

// resolveSource turns an adapter identifier into a local directory:
// an existing directory is returned as is, an http(s) URL of a zip
// archive is downloaded and extracted into the cache directory.
func resolveSource(source string, req resolveRequest, log *slog.Logger) (string, error) {
	if info, err := os.Stat(source); err == nil && info.IsDir() {
		return source, nil
	}

	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return fetchArchive(source, req.cacheDir, log)
	}

	return "", fmt.Errorf("%w: could not resolve %q to a local adapter directory", ErrNotFound, source)
}

// defaultCacheDir returns the per-user extraction cache.
func defaultCacheDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "adapter-transformers"), nil
}

// fetchArchive downloads a zip archive and extracts it into the cache,
// keyed by the URL so repeated loads reuse the extracted copy.
func fetchArchive(url, cacheDir string, log *slog.Logger) (string, error) {
	if cacheDir == "" {
		var err error
		if cacheDir, err = defaultCacheDir(); err != nil {
			return "", err
		}
	}

	key := sha256.Sum256([]byte(url))
	target := filepath.Join(cacheDir, hex.EncodeToString(key[:8]))
	if info, err := os.Stat(target); err == nil && info.IsDir() {
		log.Info("using cached adapter archive", "url", url, "dir", target)
		return target, nil
	}

	log.Info("downloading adapter archive", "url", url)
	resp, err := http.Get(url)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %s returned status %d", ErrNotFound, url, resp.StatusCode)
	}

	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return "", err
	}

	// Stage the download under a unique name, extract, then move the
	// extracted tree into place.
	staging := filepath.Join(cacheDir, "download-"+uuid.NewString())
	defer os.RemoveAll(staging)
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return "", err
	}

	archivePath := filepath.Join(staging, "archive.zip")
	if err := writeBody(archivePath, resp.Body); err != nil {
		return "", err
	}

	extracted := filepath.Join(staging, "extracted")
	if err := extractZip(archivePath, extracted); err != nil {
		return "", fmt.Errorf("failed to extract %s: %w", url, err)
	}

	if err := os.Rename(extracted, target); err != nil {
		return "", err
	}
	return target, nil
}

func writeBody(path string, body io.Reader) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	_, err = io.Copy(file, body)
	return err
}

func extractZip(archivePath, dest string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer reader.Close()

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}

	for _, file := range reader.File {
		target := filepath.Join(dest, filepath.Clean(file.Name))
		if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry %q escapes extraction directory", file.Name)
		}

		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := extractFile(file, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(file *zip.File, target string) (err error) {
	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := dst.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	_, err = io.Copy(dst, src)
	return err
}
