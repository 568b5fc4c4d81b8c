package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/dmitrijs2005/storyqueue/internal/client/client"
	"github.com/dmitrijs2005/storyqueue/internal/client/models"
	"github.com/dmitrijs2005/storyqueue/internal/client/store"
	"github.com/dmitrijs2005/storyqueue/internal/logging"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s := store.New(store.Config{Path: filepath.Join(t.TempDir(), "drafts.db")}, logging.Discard())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// fakeAPI records submissions and rejects descriptions listed in reject.
type fakeAPI struct {
	mu        sync.Mutex
	submitted []models.NewStory
	tokens    []string
	reject    map[string]error
	// block, when set, is received from before each AddStory returns.
	block   chan struct{}
	entered chan struct{}
	pingErr error
}

var _ client.StoryAPI = (*fakeAPI)(nil)

func (f *fakeAPI) AddStory(ctx context.Context, token string, s models.NewStory) error {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.reject[s.Description]; ok {
		return err
	}
	f.submitted = append(f.submitted, s)
	f.tokens = append(f.tokens, token)
	return nil
}

func (f *fakeAPI) GetStories(context.Context, string, int, int) ([]models.Story, error) {
	return nil, nil
}

func (f *fakeAPI) Unsubscribe(context.Context, string, string) error { return nil }

func (f *fakeAPI) Subscribe(context.Context, string, models.PushSubscription) error {
	return nil
}

func (f *fakeAPI) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingErr
}

func (f *fakeAPI) setPingErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pingErr = err
}

func (f *fakeAPI) descriptions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.submitted))
	for _, s := range f.submitted {
		out = append(out, s.Description)
	}
	return out
}

type staticConn bool

func (c staticConn) Online() bool { return bool(c) }

type staticToken struct {
	token string
	err   error
}

func (s staticToken) Token(context.Context) (string, error) { return s.token, s.err }
