package services

import (
	"context"
	"errors"
	"sync"

	"github.com/dmitrijs2005/storyqueue/internal/client/client"
	"github.com/dmitrijs2005/storyqueue/internal/client/models"
	"github.com/dmitrijs2005/storyqueue/internal/logging"
)

type SyncState string

const (
	SyncIdle    SyncState = "idle"
	SyncSyncing SyncState = "syncing"
)

// Connectivity tells the sync engine whether the API is reachable.
type Connectivity interface {
	Online() bool
}

// TokenSource yields the bearer token to submit with; "" means none.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// SyncReport summarises what a SyncOnce call did. Counters add up over the
// follow-up pass when triggers were coalesced.
type SyncReport struct {
	Passes    int
	Attempted int
	Synced    int
	Failed    int
	// Skipped is set when the pass found the client offline.
	Skipped bool
	// Coalesced is set when another pass was already running; the request
	// was folded into that pass's follow-up.
	Coalesced bool
}

func (r SyncReport) add(o SyncReport) SyncReport {
	r.Passes += o.Passes
	r.Attempted += o.Attempted
	r.Synced += o.Synced
	r.Failed += o.Failed
	r.Skipped = r.Skipped || o.Skipped
	return r
}

// SyncService replays queued drafts against the story API. At most one pass
// runs at a time; requests arriving during a pass are coalesced into a
// single follow-up pass.
type SyncService struct {
	drafts *DraftService
	api    client.StoryAPI
	tokens TokenSource
	conn   Connectivity
	log    logging.Logger

	mu      sync.Mutex
	state   SyncState
	pending bool
	wg      sync.WaitGroup
}

func NewSyncService(drafts *DraftService, api client.StoryAPI, tokens TokenSource, conn Connectivity, log logging.Logger) *SyncService {
	if log == nil {
		log = logging.Discard()
	}
	return &SyncService{
		drafts: drafts,
		api:    api,
		tokens: tokens,
		conn:   conn,
		log:    log.With("component", "sync"),
		state:  SyncIdle,
	}
}

func (s *SyncService) State() SyncState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Trigger starts a pass in the background and returns immediately.
func (s *SyncService) Trigger(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		r := s.SyncOnce(ctx)
		if !r.Coalesced {
			s.log.Info(ctx, "background sync finished",
				"passes", r.Passes, "attempted", r.Attempted, "synced", r.Synced, "failed", r.Failed, "skipped", r.Skipped)
		}
	}()
}

// Wait blocks until every triggered pass has returned.
func (s *SyncService) Wait() {
	s.wg.Wait()
}

// SyncOnce runs a guarded pass. It never fails; problems are logged and
// counted in the report.
func (s *SyncService) SyncOnce(ctx context.Context) SyncReport {
	s.mu.Lock()
	if s.state == SyncSyncing {
		s.pending = true
		s.mu.Unlock()
		s.log.Debug(ctx, "sync already running, coalescing")
		return SyncReport{Coalesced: true}
	}
	s.state = SyncSyncing
	s.mu.Unlock()

	var report SyncReport
	for {
		report = report.add(s.pass(ctx))

		s.mu.Lock()
		if !s.pending || ctx.Err() != nil {
			s.pending = false
			s.state = SyncIdle
			s.mu.Unlock()
			return report
		}
		s.pending = false
		s.mu.Unlock()
	}
}

func (s *SyncService) pass(ctx context.Context) SyncReport {
	r := SyncReport{Passes: 1}

	if s.conn != nil && !s.conn.Online() {
		r.Skipped = true
		syncPassesTotal.WithLabelValues("skipped").Inc()
		s.log.Debug(ctx, "offline, sync skipped")
		return r
	}

	drafts, err := s.drafts.List(ctx)
	if err != nil {
		syncPassesTotal.WithLabelValues("error").Inc()
		s.log.Error(ctx, "sync: list drafts", "error", err)
		return r
	}
	if len(drafts) == 0 {
		syncPassesTotal.WithLabelValues("completed").Inc()
		return r
	}

	token := s.token(ctx)

	for _, d := range drafts {
		if ctx.Err() != nil {
			break
		}
		r.Attempted++
		if s.submit(ctx, token, d) {
			r.Synced++
			syncDraftsTotal.WithLabelValues("synced").Inc()
		} else {
			r.Failed++
			syncDraftsTotal.WithLabelValues("failed").Inc()
		}
	}

	syncPassesTotal.WithLabelValues("completed").Inc()
	return r
}

func (s *SyncService) token(ctx context.Context) string {
	if s.tokens == nil {
		return ""
	}
	t, err := s.tokens.Token(ctx)
	if err != nil {
		s.log.Warn(ctx, "sync: token unavailable, submitting unauthenticated", "error", err)
		return ""
	}
	return t
}

// submit posts one draft and drops it once the API accepted it.
func (s *SyncService) submit(ctx context.Context, token string, d models.Draft) bool {
	if err := s.api.AddStory(ctx, token, d.Story()); err != nil {
		level := s.log.Warn
		if errors.Is(err, client.ErrUnavailable) {
			level = s.log.Info
		}
		level(ctx, "sync: draft kept", "id", d.ID, "error", err)
		return false
	}

	if err := s.drafts.Delete(ctx, d.ID); err != nil {
		// Accepted remotely; the next pass may resubmit it.
		s.log.Error(ctx, "sync: draft posted but not removed", "id", d.ID, "error", err)
		return true
	}
	s.log.Info(ctx, "sync: draft posted", "id", d.ID)
	return true
}
