package worker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/storyqueue/internal/logging"
	"github.com/dmitrijs2005/storyqueue/internal/worker/cache"
	"github.com/dmitrijs2005/storyqueue/internal/worker/manifest"
)

// testOrigin serves the default manifest assets and counts requests per path.
type testOrigin struct {
	srv *httptest.Server

	mu     sync.Mutex
	hits   map[string]int
	status map[string]int
}

func newTestOrigin(t *testing.T) *testOrigin {
	t.Helper()
	o := &testOrigin{hits: map[string]int{}, status: map[string]int{}}
	o.srv = httptest.NewServer(http.HandlerFunc(o.serve))
	t.Cleanup(o.srv.Close)
	return o
}

func (o *testOrigin) serve(w http.ResponseWriter, r *http.Request) {
	o.mu.Lock()
	o.hits[r.URL.Path]++
	status, ok := o.status[r.URL.Path]
	o.mu.Unlock()

	if ok {
		http.Error(w, http.StatusText(status), status)
		return
	}
	if r.Method != http.MethodGet {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(r.Method + " " + r.URL.Path))
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("asset " + r.URL.RequestURI()))
}

func (o *testOrigin) setStatus(path string, status int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.status[path] = status
}

func (o *testOrigin) hitsFor(path string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.hits[path]
}

type fakeNotifier struct {
	mu      sync.Mutex
	shown   []Notification
	closed  []string
	showErr error
}

func (f *fakeNotifier) Show(_ context.Context, n Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.showErr != nil {
		return f.showErr
	}
	f.shown = append(f.shown, n)
	return nil
}

func (f *fakeNotifier) Close(_ context.Context, tag string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, tag)
	return nil
}

func (f *fakeNotifier) Shown() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Notification(nil), f.shown...)
}

// failingStorage refuses to open generations.
type failingStorage struct {
	cache.Storage
}

func (failingStorage) Open(context.Context, string) (cache.Cache, error) {
	return nil, errors.New("quota exceeded")
}

func newTestWorker(t *testing.T, origin *testOrigin, storage cache.Storage, n Notifier, perm Permission) *Worker {
	t.Helper()
	if storage == nil {
		storage = cache.NewMemoryStorage()
	}
	if n == nil {
		n = &fakeNotifier{}
	}
	baseURL := "http://127.0.0.1:1"
	if origin != nil {
		baseURL = origin.srv.URL
	}
	return New(manifest.Default(), storage, NewOrigin(baseURL, 2*time.Second), n, nil, logging.Discard(), Options{
		Permission:   perm,
		FetchRetries: 2,
		RetryBase:    time.Millisecond,
	})
}
