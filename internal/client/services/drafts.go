// Package services contains the application services of the storyqueue
// client: the draft queue, its synchronisation with the story API, the
// connectivity monitor and bearer-token storage.
package services

import (
	"cmp"
	"context"
	"slices"

	"github.com/dmitrijs2005/storyqueue/internal/client/models"
	"github.com/dmitrijs2005/storyqueue/internal/logging"
)

// DraftStore is the persistence the draft queue needs. store.Store
// implements it.
type DraftStore interface {
	Add(ctx context.Context, d models.Draft) (int64, error)
	List(ctx context.Context) ([]models.Draft, error)
	Remove(ctx context.Context, id int64) error
}

// DraftService is the contract the REPL and the sync engine use to queue,
// list and drop drafts.
type DraftService struct {
	store DraftStore
	log   logging.Logger
}

func NewDraftService(store DraftStore, log logging.Logger) *DraftService {
	if log == nil {
		log = logging.Discard()
	}
	return &DraftService{store: store, log: log.With("component", "drafts")}
}

// Add validates and queues d, returning its id.
func (s *DraftService) Add(ctx context.Context, d models.Draft) (int64, error) {
	d = d.Normalize()
	if d.Empty() {
		return 0, ErrEmptyDraft
	}
	id, err := s.store.Add(ctx, d)
	if err != nil {
		return 0, err
	}
	s.log.Debug(ctx, "draft queued", "id", id)
	return id, nil
}

// AddText queues a text-only draft.
func (s *DraftService) AddText(ctx context.Context, text string) (int64, error) {
	return s.Add(ctx, models.NewTextDraft(text))
}

// List returns drafts oldest first.
func (s *DraftService) List(ctx context.Context) ([]models.Draft, error) {
	ds, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(ds, func(a, b models.Draft) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return ds, nil
}

func (s *DraftService) Delete(ctx context.Context, id int64) error {
	return s.store.Remove(ctx, id)
}
