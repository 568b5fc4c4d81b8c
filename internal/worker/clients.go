package worker

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/storyqueue/internal/worker/message"
	"github.com/google/uuid"
)

// Client is a page the worker can talk to.
type Client struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	Focused    bool   `json:"focused"`
	Controlled bool   `json:"controlled"`
}

type clientSlot struct {
	Client
	outbox []json.RawMessage
}

// Clients is the registry of window clients, kept in registration order.
type Clients struct {
	mu    sync.Mutex
	byID  map[string]*clientSlot
	order []string
}

func NewClients() *Clients {
	return &Clients{byID: make(map[string]*clientSlot)}
}

// Register adds a window at url. It is controlled only once the worker
// claims it.
func (c *Clients) Register(url string) Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &clientSlot{Client: Client{ID: uuid.NewString(), URL: url}}
	c.byID[s.ID] = s
	c.order = append(c.order, s.ID)
	return s.Client
}

func (c *Clients) Get(id string) (Client, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.byID[id]
	if !ok {
		return Client{}, false
	}
	return s.Client, true
}

// Windows lists every client, controlled or not.
func (c *Clients) Windows() []Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Client, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id].Client)
	}
	return out
}

// Claim marks every client as controlled and returns how many changed.
func (c *Clients) Claim() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, s := range c.byID {
		if !s.Controlled {
			s.Controlled = true
			n++
		}
	}
	return n
}

// FocusAndNavigate focuses id, unfocuses the others and points id at url.
func (c *Clients) FocusAndNavigate(id, url string) (Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.byID[id]
	if !ok {
		return Client{}, fmt.Errorf("%w: %s", ErrUnknownClient, id)
	}
	for _, o := range c.byID {
		o.Focused = false
	}
	s.Focused = true
	s.URL = url
	return s.Client, nil
}

// Open registers a new focused, controlled window at url.
func (c *Clients) Open(url string) Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, o := range c.byID {
		o.Focused = false
	}
	s := &clientSlot{Client: Client{ID: uuid.NewString(), URL: url, Focused: true, Controlled: true}}
	c.byID[s.ID] = s
	c.order = append(c.order, s.ID)
	return s.Client
}

// Post queues m for client id.
func (c *Clients) Post(id string, m message.Message) error {
	b, err := message.Encode(m)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownClient, id)
	}
	s.outbox = append(s.outbox, b)
	return nil
}

// Drain returns and clears the queued messages of id.
func (c *Clients) Drain(id string) ([]json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownClient, id)
	}
	out := s.outbox
	s.outbox = nil
	if out == nil {
		out = []json.RawMessage{}
	}
	return out, nil
}
