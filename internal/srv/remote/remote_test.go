package remote

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func encodePng(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestMetaInfoCacheFetchesOnce(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/info.json" {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(`{"apps": [{"nb_screens": 1}, {"nb_screens": 3}]}`))
	}))
	defer server.Close()

	cache := NewMetaInfoCache(NewClient(server.URL+"/", time.Second))
	ctx := context.Background()

	appCount, err := cache.AppCount(ctx)
	if err != nil {
		t.Fatalf("AppCount() error = %v", err)
	}
	if appCount != 2 {
		t.Errorf("AppCount() = %d, want 2", appCount)
	}
	for app, want := range []int{1, 3} {
		got, err := cache.ScreenCount(ctx, app)
		if err != nil {
			t.Fatalf("ScreenCount(%d) error = %v", app, err)
		}
		if got != want {
			t.Errorf("ScreenCount(%d) = %d, want %d", app, got, want)
		}
	}
	if _, err := cache.ScreenCount(ctx, 2); err == nil {
		t.Errorf("ScreenCount(2) error = nil, want out of range error")
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Errorf("info.json fetched %d times, want 1", got)
	}
}

func TestMetaInfoCacheFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: "oops"},
		{name: "not found", status: http.StatusNotFound, body: ""},
		{name: "malformed json", status: http.StatusOK, body: `{"apps": [`},
		{name: "no app", status: http.StatusOK, body: `{"apps": []}`},
		{name: "app without screen", status: http.StatusOK, body: `{"apps": [{"nb_screens": 0}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&hits, 1)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			cache := NewMetaInfoCache(NewClient(server.URL, time.Second))
			_, err := cache.MetaInfo(context.Background())
			if !errors.Is(err, ErrMetadataUnavailable) {
				t.Fatalf("MetaInfo() error = %v, want ErrMetadataUnavailable", err)
			}
			// Nothing is cached after a failure
			_, err = cache.AppCount(context.Background())
			if !errors.Is(err, ErrMetadataUnavailable) {
				t.Fatalf("AppCount() error = %v, want ErrMetadataUnavailable", err)
			}
			if got := atomic.LoadInt32(&hits); got != 2 {
				t.Errorf("server hit %d times, want 2", got)
			}
		})
	}
}

func TestMetaInfoCacheUnreachableServer(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	cache := NewMetaInfoCache(NewClient(url, 200*time.Millisecond))
	if _, err := cache.MetaInfo(context.Background()); !errors.Is(err, ErrMetadataUnavailable) {
		t.Fatalf("MetaInfo() error = %v, want ErrMetadataUnavailable", err)
	}
}

func TestImageFetcher(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 2))
	img.SetGray(1, 1, color.Gray{Y: 0xff})
	pngBytes := encodePng(t, img)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/app/1/2.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write(pngBytes)
		case "/app/0/0.png":
			w.WriteHeader(http.StatusInternalServerError)
		case "/app/0/1.png":
			w.Write([]byte("not a png"))
		case "/app/0/2.png":
			time.Sleep(500 * time.Millisecond)
			w.Write(pngBytes)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	fetcher := NewImageFetcher(NewClient(server.URL, 100*time.Millisecond))
	ctx := context.Background()

	got := fetcher.Fetch(ctx, 1, 2)
	if got == nil {
		t.Fatalf("Fetch(1, 2) = nil")
	}
	if got.Bounds() != img.Bounds() {
		t.Errorf("Fetch(1, 2) bounds = %v, want %v", got.Bounds(), img.Bounds())
	}
	if r, _, _, _ := got.At(1, 1).RGBA(); r != 0xffff {
		t.Errorf("pixel (1, 1) not decoded as white")
	}

	failures := []struct {
		name   string
		screen int
	}{
		{name: "server error", screen: 0},
		{name: "bad png", screen: 1},
		{name: "timeout", screen: 2},
	}
	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			if got := fetcher.Fetch(ctx, 0, tt.screen); got != nil {
				t.Errorf("Fetch(0, %d) = %v, want nil", tt.screen, got.Bounds())
			}
			_, err := fetcher.FetchImage(ctx, 0, tt.screen)
			if !errors.Is(err, ErrImageFetchFailed) {
				t.Errorf("FetchImage(0, %d) error = %v, want ErrImageFetchFailed", tt.screen, err)
			}
		})
	}
}

func TestFetchImageReportsStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewImageFetcher(NewClient(server.URL, time.Second)).FetchImage(context.Background(), 3, 4)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("FetchImage() error = %v, want a StatusError", err)
	}
	if statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d", statusErr.StatusCode)
	}
	if statusErr.Url != server.URL+"/app/3/4.png" {
		t.Errorf("Url = %q", statusErr.Url)
	}
}
