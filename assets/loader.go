package assets

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	// Decoders registered with image.Decode.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"golang.org/x/sync/errgroup"
)

// ImageSource fetches and decodes a named image.
type ImageSource interface {
	Load(ctx context.Context, name string) (image.Image, error)
}

// Loader resolves image names against Root, which is either a local
// directory or an http(s) base URL. Remote images are kept in CacheDir when
// UseCache is set.
type Loader struct {
	Root     string
	UseCache bool
	CacheDir string
	Client   *http.Client
}

// NewLoader returns a Loader for root. The cache directory is created lazily
// on the first remote fetch.
func NewLoader(root string, useCache bool) *Loader {
	return &Loader{
		Root:     root,
		UseCache: useCache,
		Client:   http.DefaultClient,
	}
}

func isRemote(root string) bool {
	return strings.HasPrefix(root, "http://") || strings.HasPrefix(root, "https://")
}

// Resolve joins name onto root.
func Resolve(root, name string) string {
	if isRemote(root) {
		return strings.TrimSuffix(root, "/") + "/" + strings.TrimPrefix(name, "/")
	}
	return filepath.Join(root, name)
}

// Load implements ImageSource.
func (l *Loader) Load(ctx context.Context, name string) (image.Image, error) {
	location := Resolve(l.Root, name)
	if !isRemote(l.Root) {
		f, err := os.Open(location)
		if err != nil {
			return nil, fmt.Errorf("failed to open image %s: %w", location, err)
		}
		defer f.Close()
		img, _, err := image.Decode(f)
		if err != nil {
			return nil, fmt.Errorf("failed to decode image %s: %w", location, err)
		}
		return img, nil
	}

	var cachePath string
	if l.UseCache {
		dir, err := l.cacheDir()
		if err != nil {
			log.Printf("Warning: image cache disabled: %v", err)
		} else {
			cachePath = filepath.Join(dir, cacheKey(location))
			if data, err := os.ReadFile(cachePath); err == nil {
				img, _, err := image.Decode(bytes.NewReader(data))
				if err == nil {
					return img, nil
				}
				log.Printf("Warning: could not decode cached image %s: %v. Redownloading...", cachePath, err)
			}
		}
	}

	data, err := l.download(ctx, location)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode downloaded image from %s: %w", location, err)
	}

	if cachePath != "" {
		if err := os.WriteFile(cachePath, data, 0644); err != nil {
			log.Printf("Warning: failed to save image to cache at %s: %v", cachePath, err)
		}
	}
	return img, nil
}

// cacheKey names the cache entry for a resolved URL. Equal base names from
// different roots get distinct entries.
func cacheKey(location string) string {
	sum := sha256.Sum256([]byte(location))
	return hex.EncodeToString(sum[:]) + strings.ToLower(filepath.Ext(location))
}

func (l *Loader) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to load image %s, status code: %d", url, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data from %s: %w", url, err)
	}
	return data, nil
}

func (l *Loader) cacheDir() (string, error) {
	if l.CacheDir != "" {
		if err := os.MkdirAll(l.CacheDir, 0755); err != nil {
			return "", fmt.Errorf("failed to create cache directory at %s: %w", l.CacheDir, err)
		}
		return l.CacheDir, nil
	}
	return getCacheDir("images")
}

// getCacheDir determines the appropriate OS-specific cache directory.
func getCacheDir(subdir string) (string, error) {
	var baseCacheDir string
	var err error

	switch runtime.GOOS {
	case "windows":
		baseCacheDir = os.Getenv("LOCALAPPDATA")
		if baseCacheDir == "" {
			err = fmt.Errorf("LOCALAPPDATA environment variable not set")
		}
	case "darwin":
		homeDir := os.Getenv("HOME")
		if homeDir == "" {
			err = fmt.Errorf("HOME environment variable not set")
		} else {
			baseCacheDir = filepath.Join(homeDir, "Library", "Caches")
		}
	default: // linux, bsd, etc.
		baseCacheDir = os.Getenv("XDG_CACHE_HOME")
		if baseCacheDir == "" {
			homeDir := os.Getenv("HOME")
			if homeDir == "" {
				err = fmt.Errorf("HOME environment variable not set")
			} else {
				baseCacheDir = filepath.Join(homeDir, ".cache")
			}
		}
	}

	if err != nil {
		return "", err
	}

	cacheDir := filepath.Join(baseCacheDir, "gotransition", subdir)
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create cache directory at %s: %w", cacheDir, err)
	}
	return cacheDir, nil
}

// LoadPair fetches both images of p concurrently. It fails as soon as either
// load fails, cancelling the other.
func LoadPair(ctx context.Context, src ImageSource, p Pair) ([2]image.Image, error) {
	var images [2]image.Image
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range [2]string{p.First, p.Second} {
		i, name := i, name
		g.Go(func() error {
			img, err := src.Load(gctx, name)
			if err != nil {
				return fmt.Errorf("texture %d (%s): %w", i, name, err)
			}
			images[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return [2]image.Image{}, err
	}
	if err := ctx.Err(); err != nil {
		return [2]image.Image{}, err
	}
	return images, nil
}
