package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/dmitrijs2005/storyqueue/internal/client/client"
	"github.com/dmitrijs2005/storyqueue/internal/client/config"
	"github.com/dmitrijs2005/storyqueue/internal/client/services"
	"github.com/dmitrijs2005/storyqueue/internal/client/store"
	"github.com/dmitrijs2005/storyqueue/internal/logging"
	"github.com/dmitrijs2005/storyqueue/internal/worker/message"
)

// syncer is the part of services.SyncService the REPL reports on. Passes
// are started only by the connectivity monitor.
type syncer interface {
	State() services.SyncState
	Wait()
}

// connectivity is the part of services.ConnectivityMonitor the REPL reads.
type connectivity interface {
	Status() services.Status
	Online() bool
}

type workerAPI interface {
	RegisterClient(ctx context.Context, url string) (string, error)
	PostMessage(ctx context.Context, id string, m message.Message) error
	Messages(ctx context.Context, id string) ([]message.Message, error)
}

type App struct {
	config *config.Config
	log    logging.Logger
	out    io.Writer
	reader *bufio.Reader

	store   *store.Store
	drafts  *services.DraftService
	sync    syncer
	monitor connectivity
	auth    *services.AuthService
	meta    services.MetaStore
	api     client.StoryAPI
	worker  workerAPI

	// run starts background loops; nil in tests.
	run func(ctx context.Context)
}

// NewApp wires the local store, services and API clients.
func NewApp(cfg *config.Config, log logging.Logger, in io.Reader, out io.Writer) (*App, error) {
	if log == nil {
		log = logging.Discard()
	}
	out = &lockedWriter{w: out}

	st := store.New(store.Config{Path: cfg.DBPath, BusyTimeout: cfg.BusyTimeout}, log)

	api := client.NewStoryClient(cfg.APIURL, cfg.RequestTimeout, cfg.PingPath)
	monitor := services.NewConnectivityMonitor(api, services.MonitorConfig{
		Interval:     cfg.OnlineCheckInterval,
		CheckTimeout: cfg.CheckTimeout,
		MaxBackoff:   cfg.MaxBackoff,
	}, log)

	drafts := services.NewDraftService(st, log)
	auth := services.NewAuthService(st, log)
	syncSvc := services.NewSyncService(drafts, api, auth, monitor, log)

	monitor.OnOnline(syncSvc.Trigger)
	monitor.OnChange(func(_ context.Context, from, to services.Status) {
		if from != services.StatusUnknown || to == services.StatusOffline {
			fmt.Fprintf(out, "\nSwitched to %s mode\n", to)
		}
	})

	return &App{
		config:  cfg,
		log:     log,
		out:     out,
		reader:  bufio.NewReader(in),
		store:   st,
		drafts:  drafts,
		sync:    syncSvc,
		monitor: monitor,
		auth:    auth,
		meta:    st,
		api:     api,
		worker:  client.NewWorkerClient(cfg.WorkerURL, cfg.RequestTimeout),
		run:     monitor.Run,
	}, nil
}

// Run starts the connectivity monitor and blocks in the REPL until the user
// exits or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// fail early when the database is unusable
	h, err := a.store.Open(ctx)
	if err != nil {
		return err
	}
	h.Release()

	if a.run != nil {
		go a.run(ctx)
	}

	fmt.Fprintln(a.out, "Welcome to storyqueue (type 'help' for commands)")
	runREPL(ctx, a, a.status, bufio.NewScanner(a.reader), a.out)

	cancel()
	a.sync.Wait()
	return a.store.Close()
}

func (a *App) status() string {
	return string(a.monitor.Status())
}

// lockedWriter serialises writes from the REPL and background listeners.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
