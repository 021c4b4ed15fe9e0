package figma

import (
	"comparison-controller/internal/errs"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type memoryCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func (c *memoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.items[key]
	return data, ok, nil
}

func (c *memoryCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.items == nil {
		c.items = map[string][]byte{}
	}
	c.items[key] = data
	return nil
}

var pngBytes = []byte("\x89PNG\r\n\x1a\nfake")

type fakeAPI struct {
	server        *httptest.Server
	imagesStatus  int
	imagesBody    func(baseURL string) string
	imageStatus   int
	imageRequests atomic.Int32

	mu       sync.Mutex
	gotToken string
	gotQuery string
}

func newFakeAPI(t *testing.T, configure ...func(f *fakeAPI)) *fakeAPI {
	f := &fakeAPI{
		imagesStatus: http.StatusOK,
		imageStatus:  http.StatusOK,
		imagesBody: func(baseURL string) string {
			return fmt.Sprintf(`{"err":null,"images":{"1:2":"%s/render/1.png"}}`, baseURL)
		},
	}
	for _, c := range configure {
		c(f)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/images/{key}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.gotToken = r.Header.Get("X-Figma-Token")
		f.gotQuery = r.URL.RawQuery
		f.mu.Unlock()
		w.WriteHeader(f.imagesStatus)
		_, _ = w.Write([]byte(f.imagesBody("http://" + r.Host)))
	})
	mux.HandleFunc("GET /render/{name}", func(w http.ResponseWriter, r *http.Request) {
		f.imageRequests.Add(1)
		w.WriteHeader(f.imageStatus)
		if f.imageStatus == http.StatusOK {
			_, _ = w.Write(pngBytes)
		}
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)

	return f
}

func newTestClient(t *testing.T, api *fakeAPI, token string, cache Cache) *Client {
	client, err := NewClient(Config{
		Token:      token,
		BaseURL:    api.server.URL,
		HTTPClient: api.server.Client(),
		Cache:      cache,
		CacheTTL:   time.Hour,
	})
	if err != nil {
		t.Fatal(err)
	}
	return client
}

func TestClient_ExportNode(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		api := newFakeAPI(t)
		client := newTestClient(t, api, "secret", nil)

		got, err := client.ExportNode(context.Background(), "rLqGVk83OKICyAhvW7gjFW", "1:2")
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(pngBytes, got); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
		api.mu.Lock()
		defer api.mu.Unlock()
		if api.gotToken != "secret" {
			t.Errorf("expected token header, got %q", api.gotToken)
		}
		if diff := cmp.Diff("format=png&ids=1%3A2", api.gotQuery); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("FallsBackToFirstImage", func(t *testing.T) {
		api := newFakeAPI(t, func(f *fakeAPI) {
			f.imagesBody = func(baseURL string) string {
				return fmt.Sprintf(`{"err":null,"images":{"1-2":null,"9:9":"%s/render/9.png"}}`, baseURL)
			}
		})
		client := newTestClient(t, api, "secret", nil)

		got, err := client.ExportNode(context.Background(), "rLqGVk83OKICyAhvW7gjFW", "1:2")
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(pngBytes, got); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("MissingToken", func(t *testing.T) {
		api := newFakeAPI(t)
		client := newTestClient(t, api, "", nil)

		_, err := client.ExportNode(context.Background(), "rLqGVk83OKICyAhvW7gjFW", "1:2")
		if !errors.Is(err, errs.ErrAuthenticationFailed) {
			t.Errorf("expected ErrAuthenticationFailed, got %v", err)
		}
	})

	t.Run("Forbidden", func(t *testing.T) {
		api := newFakeAPI(t, func(f *fakeAPI) {
			f.imagesStatus = http.StatusForbidden
			f.imagesBody = func(string) string { return `{"status":403,"err":"Invalid token"}` }
		})
		client := newTestClient(t, api, "expired", nil)

		_, err := client.ExportNode(context.Background(), "rLqGVk83OKICyAhvW7gjFW", "1:2")
		if !errors.Is(err, errs.ErrAuthenticationFailed) {
			t.Errorf("expected ErrAuthenticationFailed, got %v", err)
		}
		if diff := cmp.Diff("rLqGVk83OKICyAhvW7gjFW/1:2", errs.SourceOf(err)); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		api := newFakeAPI(t, func(f *fakeAPI) {
			f.imagesStatus = http.StatusNotFound
			f.imagesBody = func(string) string { return `{"status":404,"err":"Not found"}` }
		})
		client := newTestClient(t, api, "secret", nil)

		_, err := client.ExportNode(context.Background(), "rLqGVk83OKICyAhvW7gjFW", "1:2")
		if !errors.Is(err, errs.ErrExportUnavailable) {
			t.Errorf("expected ErrExportUnavailable, got %v", err)
		}
	})

	t.Run("RenderError", func(t *testing.T) {
		api := newFakeAPI(t, func(f *fakeAPI) {
			f.imagesBody = func(string) string { return `{"err":"Render timeout","images":{}}` }
		})
		client := newTestClient(t, api, "secret", nil)

		_, err := client.ExportNode(context.Background(), "rLqGVk83OKICyAhvW7gjFW", "1:2")
		if !errors.Is(err, errs.ErrExportUnavailable) {
			t.Errorf("expected ErrExportUnavailable, got %v", err)
		}
	})

	t.Run("NothingRendered", func(t *testing.T) {
		api := newFakeAPI(t, func(f *fakeAPI) {
			f.imagesBody = func(string) string { return `{"err":null,"images":{"1:2":null}}` }
		})
		client := newTestClient(t, api, "secret", nil)

		_, err := client.ExportNode(context.Background(), "rLqGVk83OKICyAhvW7gjFW", "1:2")
		if !errors.Is(err, errs.ErrExportUnavailable) {
			t.Errorf("expected ErrExportUnavailable, got %v", err)
		}
	})

	t.Run("MalformedResponse", func(t *testing.T) {
		api := newFakeAPI(t, func(f *fakeAPI) {
			f.imagesBody = func(string) string { return `<html>` }
		})
		client := newTestClient(t, api, "secret", nil)

		_, err := client.ExportNode(context.Background(), "rLqGVk83OKICyAhvW7gjFW", "1:2")
		if !errors.Is(err, errs.ErrEncoding) {
			t.Errorf("expected ErrEncoding, got %v", err)
		}
	})

	t.Run("DownloadFails", func(t *testing.T) {
		api := newFakeAPI(t, func(f *fakeAPI) {
			f.imageStatus = http.StatusGone
		})
		client := newTestClient(t, api, "secret", nil)

		_, err := client.ExportNode(context.Background(), "rLqGVk83OKICyAhvW7gjFW", "1:2")
		if !errors.Is(err, errs.ErrExportUnavailable) {
			t.Errorf("expected ErrExportUnavailable, got %v", err)
		}
	})

	t.Run("Cached", func(t *testing.T) {
		api := newFakeAPI(t)
		cache := &memoryCache{}
		client := newTestClient(t, api, "secret", cache)

		for i := 0; i < 3; i++ {
			got, err := client.ExportNode(context.Background(), "rLqGVk83OKICyAhvW7gjFW", "1:2")
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(pngBytes, got); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		}
		if got := api.imageRequests.Load(); got != 1 {
			t.Errorf("expected a single download, got %d", got)
		}
	})
}
