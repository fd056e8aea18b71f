package assets

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 0x80, 0xff})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestLookup(t *testing.T) {
	tests := []struct {
		mode   string
		first  string
		second string
	}{
		{"demo-1", "lady.jpg", "lady-map.jpg"},
		{"demo-2", "ball.jpg", "ball-map.jpg"},
		{"demo-3", "mount.jpg", "mount-map.jpg"},
		{"demo-4", "canyon.jpg", "canyon-map.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			p, err := Lookup(tt.mode)
			if err != nil {
				t.Fatal(err)
			}
			if p.First != tt.first || p.Second != tt.second {
				t.Errorf("Lookup(%q) = %+v", tt.mode, p)
			}
		})
	}

	if _, err := Lookup("demo-99"); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("Lookup(demo-99) err = %v, want ErrUnknownMode", err)
	}
}

func TestRegisterExtendsModes(t *testing.T) {
	Register("test-extra", "a.png", "b.png")
	p, err := Lookup("test-extra")
	if err != nil {
		t.Fatal(err)
	}
	if p.Mode != "test-extra" || p.First != "a.png" || p.Second != "b.png" {
		t.Errorf("registered pair = %+v", p)
	}
	found := false
	for _, m := range Modes() {
		if m == "test-extra" {
			found = true
		}
	}
	if !found {
		t.Error("Modes() does not list registered mode")
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		root, name, want string
	}{
		{"https://example.com/img/", "ball.jpg", "https://example.com/img/ball.jpg"},
		{"http://example.com/img", "/ball.jpg", "http://example.com/img/ball.jpg"},
		{"img", "ball.jpg", filepath.Join("img", "ball.jpg")},
	}
	for _, tt := range tests {
		if got := Resolve(tt.root, tt.name); got != tt.want {
			t.Errorf("Resolve(%q, %q) = %q, want %q", tt.root, tt.name, got, tt.want)
		}
	}
}

func TestLoaderLocal(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.png"), encodePNG(t, 4, 2), 0644); err != nil {
		t.Fatal(err)
	}
	l := NewLoader(dir, false)

	img, err := l.Load(context.Background(), "a.png")
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 2 {
		t.Errorf("bounds = %v, want 4x2", b)
	}

	if _, err := l.Load(context.Background(), "missing.png"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoaderRemoteUsesCache(t *testing.T) {
	data := encodePNG(t, 8, 8)
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.URL.Path != "/img/ball.png" {
			http.NotFound(w, r)
			return
		}
		w.Write(data)
	}))
	defer srv.Close()

	l := NewLoader(srv.URL+"/img", true)
	l.CacheDir = t.TempDir()

	for i := 0; i < 2; i++ {
		if _, err := l.Load(context.Background(), "ball.png"); err != nil {
			t.Fatalf("load %d: %v", i, err)
		}
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Errorf("server hits = %d, want 1", got)
	}
	if _, err := os.Stat(filepath.Join(l.CacheDir, cacheKey(srv.URL+"/img/ball.png"))); err != nil {
		t.Errorf("cache file missing: %v", err)
	}

	if _, err := l.Load(context.Background(), "nope.png"); err == nil {
		t.Error("expected error for 404")
	}
}

func TestLoaderCacheSeparatesRoots(t *testing.T) {
	serve := func(data []byte) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write(data)
		}))
	}
	small := serve(encodePNG(t, 4, 4))
	defer small.Close()
	wide := serve(encodePNG(t, 16, 8))
	defer wide.Close()

	dir := t.TempDir()
	tests := []struct {
		root string
		w, h int
	}{
		{small.URL, 4, 4},
		{wide.URL, 16, 8},
		{small.URL, 4, 4},
	}
	for _, tt := range tests {
		l := NewLoader(tt.root, true)
		l.CacheDir = dir
		img, err := l.Load(context.Background(), "ball.png")
		if err != nil {
			t.Fatalf("Load from %s: %v", tt.root, err)
		}
		if b := img.Bounds(); b.Dx() != tt.w || b.Dy() != tt.h {
			t.Errorf("Load from %s = %dx%d, want %dx%d", tt.root, b.Dx(), b.Dy(), tt.w, tt.h)
		}
	}
	if cacheKey(small.URL+"/ball.png") == cacheKey(wide.URL+"/ball.png") {
		t.Error("cache keys collide across roots")
	}
}

type mapSource map[string]image.Image

func (m mapSource) Load(ctx context.Context, name string) (image.Image, error) {
	img, ok := m[name]
	if !ok {
		return nil, errors.New("not found")
	}
	return img, nil
}

func TestLoadPair(t *testing.T) {
	a := image.NewRGBA(image.Rect(0, 0, 2, 1))
	b := image.NewRGBA(image.Rect(0, 0, 1, 1))
	src := mapSource{"a.png": a, "b.png": b}

	images, err := LoadPair(context.Background(), src, Pair{First: "a.png", Second: "b.png"})
	if err != nil {
		t.Fatal(err)
	}
	if images[0] != a || images[1] != b {
		t.Error("images returned out of order")
	}

	if _, err := LoadPair(context.Background(), src, Pair{First: "a.png", Second: "c.png"}); err == nil {
		t.Error("expected error when one image is missing")
	}
}

type blockingSource struct{}

func (blockingSource) Load(ctx context.Context, name string) (image.Image, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestLoadPairCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := LoadPair(ctx, blockingSource{}, Pair{First: "a", Second: "b"}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
