// Package utils provides file and logging helpers shared by the sweep-scope commands.
package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var ErrNotFound = errors.New("file not found on server")

type progressWriter struct {
	io.Writer
	total uint64
	last  uint64
	label string
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.Writer.Write(p)
	pw.total += uint64(n)
	if pw.total-pw.last > 5*1024*1024 { // Log every 5MB
		log.Printf("%s: Wrote %d MB", pw.label, pw.total/1024/1024)
		pw.last = pw.total
	}
	return n, err
}

// WriteFileAtomic writes path through fn. Output goes to a temp file in the
// same directory that is renamed over path only when fn succeeds.
func WriteFileAtomic(path string, fn func(w io.Writer) error) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmpFile.Name()
	defer func() {
		if err := os.Remove(tmpName); err != nil && !os.IsNotExist(err) {
			log.Printf("Error removing temp file %s: %v", tmpName, err)
		}
	}() // Clean up if we fail

	pw := &progressWriter{Writer: tmpFile, label: filepath.Base(path)}
	if err := fn(pw); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// DownloadFile downloads a file from a URL to a local path safely.
func DownloadFile(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("Error closing response body: %v", err)
		}
	}()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s", resp.Status)
	}

	return WriteFileAtomic(path, func(w io.Writer) error {
		_, err := io.Copy(w, resp.Body)
		return err
	})
}

// CacheFileName returns the local filename used to cache rawURL. The
// extension is kept so compressed captures are still recognised.
func CacheFileName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return filepath.Base(rawURL)
	}
	name := path.Base(u.Path)
	if name == "/" || name == "." {
		name = "index"
	}
	host := strings.ReplaceAll(u.Hostname(), ".", "_")
	return host + "_" + name
}

// IsRemote reports whether location is an http(s) URL rather than a path.
func IsRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// FetchCached returns a local path for location. Local paths are returned
// unchanged; URLs are downloaded into cacheDir once and reused after that.
func FetchCached(ctx context.Context, location, cacheDir string) (string, error) {
	if !IsRemote(location) {
		return location, nil
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create cache dir: %w", err)
	}
	localPath := filepath.Join(cacheDir, CacheFileName(location))
	if _, err := os.Stat(localPath); err == nil {
		log.Printf("[CACHE] Using cached file: %s", localPath)
		return localPath, nil
	}
	log.Printf("[CACHE] Downloading %s", location)
	if err := DownloadFile(ctx, location, localPath); err != nil {
		return "", err
	}
	return localPath, nil
}
