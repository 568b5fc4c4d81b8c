// Package worker implements the caching network intermediary that sits in
// front of the static-asset origin.
//
// A Worker precaches the manifest assets into a named cache generation
// (Install), drops every other generation and takes control of the known
// clients (Activate), and then answers GET requests cache-first with an
// offline fallback for page loads (ServeHTTP). The same Worker also
// receives pushes and page messages and turns them into notifications.
package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/dmitrijs2005/storyqueue/internal/logging"
	"github.com/dmitrijs2005/storyqueue/internal/netx"
	"github.com/dmitrijs2005/storyqueue/internal/worker/cache"
	"github.com/dmitrijs2005/storyqueue/internal/worker/manifest"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
)

type State int

const (
	StateParsed State = iota
	StateInstalling
	StateInstalled
	StateActivating
	StateActive
	StateRedundant
)

func (s State) String() string {
	switch s {
	case StateParsed:
		return "parsed"
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateActivating:
		return "activating"
	case StateActive:
		return "active"
	case StateRedundant:
		return "redundant"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

const (
	cacheHeader = "X-Cache"

	// maxShown bounds the notifications remembered for click handling.
	maxShown = 256

	defaultInstallConcurrency = 4
	defaultRetryBase          = 200 * time.Millisecond
)

type Options struct {
	Permission         Permission
	InstallConcurrency int
	// FetchRetries is the number of extra attempts per asset on transport
	// errors and 5xx answers.
	FetchRetries uint64
	RetryBase    time.Duration
}

func (o *Options) applyDefaults() {
	if o.Permission == "" {
		o.Permission = PermissionDefault
	}
	if o.InstallConcurrency <= 0 {
		o.InstallConcurrency = defaultInstallConcurrency
	}
	if o.RetryBase <= 0 {
		o.RetryBase = defaultRetryBase
	}
}

// AssetResult is the precache outcome of one manifest asset.
type AssetResult struct {
	Path   string `json:"path"`
	OK     bool   `json:"ok"`
	Status int    `json:"status,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type InstallReport struct {
	CacheName string        `json:"cache_name"`
	Assets    []AssetResult `json:"assets"`
	Cached    int           `json:"cached"`
	Failed    int           `json:"failed"`
}

// Status is a point-in-time view for the control surface.
type Status struct {
	State      string         `json:"state"`
	CacheName  string         `json:"cache_name"`
	Install    *InstallReport `json:"install,omitempty"`
	Clients    []Client       `json:"clients"`
	Permission Permission     `json:"permission"`
}

type Worker struct {
	manifest manifest.Manifest
	storage  cache.Storage
	origin   Fetcher
	notifier Notifier
	clients  *Clients
	log      logging.Logger
	opts     Options
	now      func() time.Time

	mu        sync.RWMutex
	state     State
	installed cache.Cache
	active    cache.Cache
	report    *InstallReport
	shown     map[string]Notification
	// tags of shown, oldest first
	shownOrder []string
}

func New(m manifest.Manifest, storage cache.Storage, origin Fetcher, notifier Notifier, clients *Clients, log logging.Logger, opts Options) *Worker {
	opts.applyDefaults()
	if clients == nil {
		clients = NewClients()
	}
	return &Worker{
		manifest: m,
		storage:  storage,
		origin:   origin,
		notifier: notifier,
		clients:  clients,
		log:      log.With("component", "worker", "cache", m.CacheName),
		opts:     opts,
		now:      time.Now,
		shown:    make(map[string]Notification),
	}
}

func (w *Worker) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

func (w *Worker) Clients() *Clients { return w.clients }

func (w *Worker) Status() Status {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return Status{
		State:      w.state.String(),
		CacheName:  w.manifest.CacheName,
		Install:    w.report,
		Clients:    w.clients.Windows(),
		Permission: w.opts.Permission,
	}
}

func (w *Worker) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

// Start installs and, without waiting for older workers to go away,
// activates. Only an install failure is returned; activation problems are
// logged.
func (w *Worker) Start(ctx context.Context) (InstallReport, error) {
	report, err := w.Install(ctx)
	if err != nil {
		return report, err
	}
	if err := w.Activate(ctx); err != nil {
		w.log.Warn(ctx, "activation finished with errors", "error", err)
	}
	return report, nil
}

// Install opens the current generation and precaches every manifest asset.
// Assets are fetched independently; a failed asset is reported, not fatal.
func (w *Worker) Install(ctx context.Context) (InstallReport, error) {
	w.setState(StateInstalling)
	w.log.Info(ctx, "installing")

	report := InstallReport{CacheName: w.manifest.CacheName}
	c, err := w.storage.Open(ctx, w.manifest.CacheName)
	if err != nil {
		w.setState(StateRedundant)
		return report, fmt.Errorf("%w: %w", ErrInstallFailed, err)
	}

	report.Assets = make([]AssetResult, len(w.manifest.Assets))
	var g errgroup.Group
	g.SetLimit(w.opts.InstallConcurrency)
	for i, p := range w.manifest.Assets {
		g.Go(func() error {
			report.Assets[i] = w.precache(ctx, c, p)
			return nil
		})
	}
	_ = g.Wait()

	for _, a := range report.Assets {
		if a.OK {
			report.Cached++
			precacheAssetsTotal.WithLabelValues("cached").Inc()
			continue
		}
		report.Failed++
		precacheAssetsTotal.WithLabelValues("failed").Inc()
		w.log.Warn(ctx, "asset not precached", "path", a.Path, "status", a.Status, "reason", a.Reason)
	}

	w.mu.Lock()
	w.installed = c
	w.state = StateInstalled
	w.report = &report
	w.mu.Unlock()

	w.log.Info(ctx, "installed", "cached", report.Cached, "failed", report.Failed)
	return report, nil
}

func (w *Worker) precache(ctx context.Context, c cache.Cache, path string) AssetResult {
	res := AssetResult{Path: path}
	var entry *cache.Entry

	b := retry.WithMaxRetries(w.opts.FetchRetries, retry.NewExponential(w.opts.RetryBase))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		resp, err := w.origin.Fetch(ctx, http.MethodGet, path, nil, nil)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return retry.RetryableError(err)
		}
		res.Status = resp.StatusCode
		switch {
		case resp.StatusCode >= http.StatusInternalServerError:
			return retry.RetryableError(fmt.Errorf("origin answered %d", resp.StatusCode))
		case !netx.IsSuccess(resp.StatusCode):
			return fmt.Errorf("origin answered %d", resp.StatusCode)
		}
		entry = w.newEntry(resp, body)
		return nil
	})
	if err != nil {
		res.Reason = err.Error()
		return res
	}

	if err := c.Put(ctx, keyForPath(path), entry); err != nil {
		res.Reason = fmt.Sprintf("store: %v", err)
		return res
	}
	res.OK = true
	return res
}

// Activate removes every generation except the installed one and claims
// the registered clients. Cleanup failures are returned joined, but the
// worker is active regardless.
func (w *Worker) Activate(ctx context.Context) error {
	w.mu.Lock()
	if w.installed == nil || w.state == StateRedundant {
		w.mu.Unlock()
		return ErrNotInstalled
	}
	w.state = StateActivating
	current := w.installed
	w.mu.Unlock()

	var errs []error
	names, err := w.storage.Names(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("list generations: %w", err))
	}
	for _, n := range names {
		if n == current.Name() {
			continue
		}
		if _, err := w.storage.Delete(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("delete generation %s: %w", n, err))
			continue
		}
		w.log.Info(ctx, "deleted stale cache generation", "generation", n)
	}

	claimed := w.clients.Claim()

	w.mu.Lock()
	w.active = current
	w.state = StateActive
	w.mu.Unlock()

	w.log.Info(ctx, "activated", "claimed", claimed)
	return errors.Join(errs...)
}

// MarkRedundant retires the worker; requests then go straight to the origin.
func (w *Worker) MarkRedundant() {
	w.mu.Lock()
	w.state = StateRedundant
	w.active = nil
	w.mu.Unlock()
	w.log.Info(context.Background(), "marked redundant")
}

// CheckSuperseded marks the worker redundant once its active generation is
// gone from storage. A newer worker activating against the same storage
// deletes every generation but its own.
func (w *Worker) CheckSuperseded(ctx context.Context) (bool, error) {
	active := w.activeCache()
	if active == nil {
		return false, nil
	}
	names, err := w.storage.Names(ctx)
	if err != nil {
		return false, fmt.Errorf("list generations: %w", err)
	}
	if slices.Contains(names, active.Name()) {
		return false, nil
	}
	w.log.Info(ctx, "active generation removed by a newer worker", "generations", names)
	w.MarkRedundant()
	return true, nil
}

// WatchGeneration calls CheckSuperseded every interval until the worker is
// redundant or ctx is done.
func (w *Worker) WatchGeneration(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			done, err := w.CheckSuperseded(ctx)
			if err != nil {
				w.log.Warn(ctx, "generation check failed", "error", err)
				continue
			}
			if done {
				return
			}
		}
	}
}

func (w *Worker) activeCache() cache.Cache {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.active
}

// ServeHTTP intercepts a request from a controlled client.
func (w *Worker) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	active := w.activeCache()
	if r.Method != http.MethodGet || active == nil {
		w.passThrough(rw, r)
		return
	}

	key := netx.CacheKey(r.URL)
	e, err := active.Match(ctx, key)
	if err == nil {
		cacheRequestsTotal.WithLabelValues("hit").Inc()
		writeEntry(rw, e, "HIT")
		return
	}
	if !errors.Is(err, cache.ErrNotFound) {
		w.log.Warn(ctx, "cache lookup failed", "key", key, "error", err)
	}

	resp, err := w.fetch(ctx, r)
	if err != nil {
		w.offline(rw, r, active, err)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		w.offline(rw, r, active, err)
		return
	}

	entry := w.newEntry(resp, body)
	if netx.IsSuccess(resp.StatusCode) {
		if err := active.Put(ctx, key, entry); err != nil {
			w.log.Warn(ctx, "failed to store response", "key", key, "error", err)
		}
	}
	cacheRequestsTotal.WithLabelValues("miss").Inc()
	writeEntry(rw, entry, "MISS")
}

// offline answers a GET the origin could not serve.
func (w *Worker) offline(rw http.ResponseWriter, r *http.Request, active cache.Cache, cause error) {
	ctx := r.Context()
	if netx.IsNavigation(r) {
		for _, p := range w.manifest.Fallback {
			e, err := active.Match(ctx, keyForPath(p))
			if err != nil {
				continue
			}
			cacheRequestsTotal.WithLabelValues("fallback").Inc()
			w.log.Debug(ctx, "serving offline fallback", "path", r.URL.Path, "fallback", p, "error", cause)
			writeEntry(rw, e, "FALLBACK")
			return
		}
	}
	cacheRequestsTotal.WithLabelValues("network_error").Inc()
	w.log.Warn(ctx, "origin unreachable", "path", r.URL.Path, "error", cause)
	http.Error(rw, "network unavailable", http.StatusBadGateway)
}

func (w *Worker) passThrough(rw http.ResponseWriter, r *http.Request) {
	resp, err := w.fetch(r.Context(), r)
	if err != nil {
		w.log.Warn(r.Context(), "origin unreachable", "method", r.Method, "path", r.URL.Path, "error", err)
		http.Error(rw, "network unavailable", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	h := resp.Header.Clone()
	netx.StripHopHeaders(h)
	netx.CopyHeader(rw.Header(), h)
	rw.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(rw, resp.Body); err != nil {
		w.log.Debug(r.Context(), "copy response body", "error", err)
	}
}

func (w *Worker) fetch(ctx context.Context, r *http.Request) (*http.Response, error) {
	h := r.Header.Clone()
	netx.StripHopHeaders(h)
	var body io.Reader
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		// let the transport negotiate compression so stored bodies are plain
		h.Del("Accept-Encoding")
	} else if r.Body != nil && r.Body != http.NoBody {
		body = r.Body
	}
	return w.origin.Fetch(ctx, r.Method, netx.CacheKey(r.URL), h, body)
}

func (w *Worker) newEntry(resp *http.Response, body []byte) *cache.Entry {
	h := resp.Header.Clone()
	netx.StripHopHeaders(h)
	h.Del(cacheHeader)
	e := &cache.Entry{
		Status:   resp.StatusCode,
		Header:   h,
		Body:     body,
		StoredAt: w.now().UTC(),
	}
	if resp.Request != nil && resp.Request.URL != nil {
		e.URL = resp.Request.URL.String()
	}
	return e
}

func writeEntry(rw http.ResponseWriter, e *cache.Entry, result string) {
	netx.CopyHeader(rw.Header(), e.Header)
	rw.Header().Set(cacheHeader, result)
	rw.WriteHeader(e.Status)
	_, _ = rw.Write(e.Body)
}

func keyForPath(p string) string {
	u, err := url.Parse(p)
	if err != nil {
		return p
	}
	return netx.CacheKey(u)
}
