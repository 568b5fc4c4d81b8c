package devapi

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/storyqueue/internal/client/models"
	"github.com/dmitrijs2005/storyqueue/internal/common"
	"golang.org/x/crypto/bcrypt"
)

const defaultPageSize = 10

// ErrBadPassword is returned when a login password does not match the one
// the name was first claimed with.
var ErrBadPassword = errors.New("bad password")

// Store keeps stories and push subscriptions in memory.
type Store struct {
	mu      sync.RWMutex
	stories []models.Story
	subs    map[string]models.PushSubscription
	// bcrypt hashes of names claimed with a password
	claims map[string][]byte
	cost   int
	now    func() time.Time
}

func NewStore() *Store {
	return &Store{
		subs:   make(map[string]models.PushSubscription),
		claims: make(map[string][]byte),
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
	}
}

// Authenticate checks password against the hash stored for userID. The
// first login with a non-empty password claims the name; logins for
// unclaimed names are accepted without one.
func (s *Store) Authenticate(userID, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash, ok := s.claims[userID]
	if !ok {
		if password == "" {
			return nil
		}
		h, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		s.claims[userID] = h
		return nil
	}

	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return ErrBadPassword
	}
	return nil
}

func (s *Store) AddStory(author, description string) (models.Story, error) {
	id, err := common.MakeRandHexString(8)
	if err != nil {
		return models.Story{}, fmt.Errorf("story id: %w", err)
	}
	st := models.Story{
		ID:          "story-" + id,
		Name:        author,
		Description: description,
		CreatedAt:   s.now().UTC(),
	}

	s.mu.Lock()
	s.stories = append(s.stories, st)
	s.mu.Unlock()
	return st, nil
}

// Stories returns page (1-based) of the newest-first list. A non-positive
// size means the default page size.
func (s *Store) Stories(page, size int) []models.Story {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = defaultPageSize
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	start := (page - 1) * size
	out := []models.Story{}
	for i := len(s.stories) - 1 - start; i >= 0 && len(out) < size; i-- {
		out = append(out, s.stories[i])
	}
	return out
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.stories)
}

// Subscribe records sub, replacing an earlier one with the same endpoint.
func (s *Store) Subscribe(sub models.PushSubscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[sub.Endpoint] = sub
}

// Unsubscribe drops the subscription for endpoint and reports whether one
// existed.
func (s *Store) Unsubscribe(endpoint string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.subs[endpoint]
	delete(s.subs, endpoint)
	return ok
}

func (s *Store) Subscriptions() []models.PushSubscription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.PushSubscription, 0, len(s.subs))
	for _, sub := range s.subs {
		out = append(out, sub)
	}
	return out
}
