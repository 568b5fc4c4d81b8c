package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/dmitrijs2005/storyqueue/internal/worker/message"
	"github.com/fatih/color"
	"github.com/google/uuid"
)

type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
	PermissionDefault Permission = "default"
)

const (
	DefaultTitle = "New story!"
	DefaultBody  = "A new story is waiting for you!"
	DefaultIcon  = "/icons/icon-192x192.png"

	defaultClickURL = "/"
)

// ParsePermission accepts granted, denied or default; empty means default.
func ParsePermission(s string) (Permission, error) {
	switch p := Permission(s); p {
	case PermissionGranted, PermissionDenied, PermissionDefault:
		return p, nil
	case "":
		return PermissionDefault, nil
	default:
		return "", fmt.Errorf("unknown notification permission %q", s)
	}
}

type Notification struct {
	Tag   string         `json:"tag"`
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Icon  string         `json:"icon"`
	Badge string         `json:"badge"`
	Data  map[string]any `json:"data,omitempty"`
}

// Notifier displays notifications to the user.
type Notifier interface {
	Show(ctx context.Context, n Notification) error
	Close(ctx context.Context, tag string) error
}

// ParsePush builds a notification from a push payload. Empty or malformed
// payloads yield the defaults; fields other than title and body are kept
// in Data.
func ParsePush(payload []byte) Notification {
	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil || raw == nil {
		raw = map[string]any{}
	}

	n := newNotification("", "")
	if s, ok := raw["title"].(string); ok && s != "" {
		n.Title = s
	}
	if s, ok := raw["body"].(string); ok && s != "" {
		n.Body = s
	}
	for k, v := range raw {
		if k == "title" || k == "body" {
			continue
		}
		n.Data[k] = v
	}
	return n
}

func newNotification(title, body string) Notification {
	if title == "" {
		title = DefaultTitle
	}
	if body == "" {
		body = DefaultBody
	}
	return Notification{
		Tag:   uuid.NewString(),
		Title: title,
		Body:  body,
		Icon:  DefaultIcon,
		Badge: DefaultIcon,
		Data:  map[string]any{},
	}
}

// HandlePush shows the notification carried by a push. Without permission
// the push is dropped with a log line.
func (w *Worker) HandlePush(ctx context.Context, payload []byte) (Notification, error) {
	n := ParsePush(payload)
	if err := w.show(ctx, n); err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			w.log.Info(ctx, "push dropped", "reason", err)
			return n, nil
		}
		return n, err
	}
	return n, nil
}

// HandleMessage processes a page message from clientID. A mock push that
// cannot be shown is answered with a failed PushMockResult.
func (w *Worker) HandleMessage(ctx context.Context, clientID string, m message.Message) error {
	if _, ok := w.clients.Get(clientID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownClient, clientID)
	}

	switch m := m.(type) {
	case message.PushMock:
		n := newNotification(m.Title, m.Body)
		if err := w.show(ctx, n); err != nil {
			w.log.Info(ctx, "mock push not shown", "client", clientID, "reason", err)
			return w.clients.Post(clientID, message.PushMockResult{OK: false, Reason: err.Error()})
		}
		w.log.Info(ctx, "mock push received", "client", clientID, "tag", n.Tag)
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedMessage, m.Type())
	}
}

// HandleNotificationClick closes the notification and brings a window to
// its url: the first window client is focused and navigated, otherwise a
// new one is opened.
func (w *Worker) HandleNotificationClick(ctx context.Context, tag string) (Client, error) {
	w.mu.Lock()
	n, ok := w.shown[tag]
	if ok {
		delete(w.shown, tag)
		w.shownOrder = slices.DeleteFunc(w.shownOrder, func(t string) bool { return t == tag })
	}
	w.mu.Unlock()
	if !ok {
		return Client{}, fmt.Errorf("%w: %s", ErrNotificationNotFound, tag)
	}

	if err := w.notifier.Close(ctx, tag); err != nil {
		w.log.Warn(ctx, "failed to close notification", "tag", tag, "error", err)
	}

	target := defaultClickURL
	if s, ok := n.Data["url"].(string); ok && s != "" {
		target = s
	}

	if windows := w.clients.Windows(); len(windows) > 0 {
		c, err := w.clients.FocusAndNavigate(windows[0].ID, target)
		if err != nil {
			return Client{}, err
		}
		w.log.Info(ctx, "focused client", "client", c.ID, "url", target)
		return c, nil
	}

	c := w.clients.Open(target)
	w.log.Info(ctx, "opened client", "client", c.ID, "url", target)
	return c, nil
}

func (w *Worker) show(ctx context.Context, n Notification) error {
	if w.opts.Permission != PermissionGranted {
		notificationsTotal.WithLabelValues("denied").Inc()
		return fmt.Errorf("%w (%s)", ErrPermissionDenied, w.opts.Permission)
	}
	if err := w.notifier.Show(ctx, n); err != nil {
		notificationsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("show notification: %w", err)
	}
	notificationsTotal.WithLabelValues("shown").Inc()

	w.remember(ctx, n)
	return nil
}

// remember keeps n for click handling. Past maxShown the oldest
// notification is closed and forgotten.
func (w *Worker) remember(ctx context.Context, n Notification) {
	w.mu.Lock()
	w.shown[n.Tag] = n
	w.shownOrder = append(w.shownOrder, n.Tag)
	var evicted []string
	for len(w.shownOrder) > maxShown {
		old := w.shownOrder[0]
		w.shownOrder = w.shownOrder[1:]
		delete(w.shown, old)
		evicted = append(evicted, old)
	}
	w.mu.Unlock()

	for _, tag := range evicted {
		if err := w.notifier.Close(ctx, tag); err != nil {
			w.log.Warn(ctx, "failed to close evicted notification", "tag", tag, "error", err)
		}
	}
}

// TerminalNotifier prints notifications to a terminal.
type TerminalNotifier struct {
	mu  sync.Mutex
	out io.Writer
}

func NewTerminalNotifier(out io.Writer) *TerminalNotifier {
	return &TerminalNotifier{out: out}
}

var (
	titleColor = color.New(color.FgCyan, color.Bold)
	dimColor   = color.New(color.Faint)
)

func (t *TerminalNotifier) Show(_ context.Context, n Notification) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := titleColor.Fprintf(t.out, "[notification] %s\n", n.Title); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(t.out, "  %s\n", n.Body); err != nil {
		return err
	}
	_, err := dimColor.Fprintf(t.out, "  tag=%s icon=%s\n", n.Tag, n.Icon)
	return err
}

func (t *TerminalNotifier) Close(_ context.Context, tag string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := dimColor.Fprintf(t.out, "[notification] closed %s\n", tag)
	return err
}
