package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/storyqueue/internal/client/client"
	"github.com/dmitrijs2005/storyqueue/internal/client/models"
	"github.com/dmitrijs2005/storyqueue/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/storyqueue/internal/client/services"
	"github.com/dmitrijs2005/storyqueue/internal/client/store"
	"github.com/dmitrijs2005/storyqueue/internal/common"
	"github.com/dmitrijs2005/storyqueue/internal/worker/message"
)

const storiesPageSize = 10

func (a *App) Login(ctx context.Context, args []string) error {
	var token []byte
	if len(args) > 0 {
		token = []byte(args[0])
	} else {
		var err error
		token, err = GetSecret(a.out, "Bearer token: ")
		if err != nil {
			fmt.Fprintln(a.out, "Could not read token:", err)
			return err
		}
	}
	defer common.WipeByteArray(token)

	if err := a.auth.SaveToken(ctx, string(token)); err != nil {
		fmt.Fprintln(a.out, "Token not saved:", err)
		return err
	}
	if exp, ok := services.ExpiresAt(string(token)); ok {
		fmt.Fprintf(a.out, "Token saved (expires %s).\n", exp.UTC().Format(timeLayout))
	} else {
		fmt.Fprintln(a.out, "Token saved.")
	}
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if err := a.auth.Logout(ctx); err != nil {
		fmt.Fprintln(a.out, "Logout failed:", err)
		return err
	}
	fmt.Fprintln(a.out, "Logged out.")
	return nil
}

// Post always queues the story locally first. When online, that one draft
// is sent straight away and dropped once the API accepts it; older drafts
// are left to the sync engine.
func (a *App) Post(ctx context.Context, args []string) error {
	text := strings.Join(args, " ")
	if text == "" {
		var err error
		text, err = GetMultiline(a.reader, "Story text", a.out)
		if err != nil {
			return err
		}
	}

	d := models.NewTextDraft(text).Normalize()
	id, err := a.drafts.Add(ctx, d)
	switch {
	case errors.Is(err, services.ErrEmptyDraft):
		fmt.Fprintln(a.out, "Nothing to post: the story text is empty.")
		return err
	case store.IsUnavailable(err):
		fmt.Fprintln(a.out, "Local storage is unavailable; the story was not saved.")
		return err
	case err != nil:
		fmt.Fprintln(a.out, "Could not save the story:", err)
		return err
	}

	if a.monitor.Online() && a.submit(ctx, id, d) {
		fmt.Fprintln(a.out, "Story posted.")
		return nil
	}
	fmt.Fprintf(a.out, "Queued as draft #%d; it will be sent when you're back online.\n", id)
	return nil
}

// submit makes the single immediate attempt for a freshly queued draft.
func (a *App) submit(ctx context.Context, id int64, d models.Draft) bool {
	token, _ := a.auth.Token(ctx)
	if err := a.api.AddStory(ctx, token, d.Story()); err != nil {
		a.log.Info(ctx, "immediate post failed, draft kept", "id", id, "error", err)
		return false
	}
	if err := a.drafts.Delete(ctx, id); err != nil {
		a.log.Error(ctx, "story posted but draft not removed", "id", id, "error", err)
	}
	return true
}

// Drafts lists queued drafts. "-a" or "-z" sorts by text; any other
// arguments form a case-insensitive filter.
func (a *App) Drafts(ctx context.Context, args []string) error {
	order := orderQueued
	var terms []string
	for _, arg := range args {
		switch arg {
		case "-a":
			order = orderTextAsc
		case "-z":
			order = orderTextDesc
		default:
			terms = append(terms, arg)
		}
	}

	ds, err := a.drafts.List(ctx)
	if err != nil {
		fmt.Fprintln(a.out, "Could not read drafts:", err)
		return err
	}
	filter := strings.Join(terms, " ")
	selected := selectDrafts(ds, filter, order)
	if len(selected) == 0 && len(ds) > 0 {
		fmt.Fprintf(a.out, "No drafts match %q.\n", filter)
		return nil
	}
	return renderDrafts(a.out, selected)
}

func (a *App) Delete(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(a.out, "Usage: delete <id>")
		return nil
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		fmt.Fprintf(a.out, "Invalid draft id %q\n", args[0])
		return common.ErrorValidation
	}
	if err := a.drafts.Delete(ctx, id); err != nil {
		fmt.Fprintln(a.out, "Delete failed:", err)
		return err
	}
	fmt.Fprintf(a.out, "Draft #%d deleted.\n", id)
	return nil
}

func (a *App) Stories(ctx context.Context, args []string) error {
	page := 1
	if len(args) > 0 {
		if p, err := strconv.Atoi(args[0]); err == nil && p > 0 {
			page = p
		}
	}
	token, _ := a.auth.Token(ctx)

	stories, err := a.api.GetStories(ctx, token, page, storiesPageSize)
	switch {
	case errors.Is(err, client.ErrUnavailable):
		fmt.Fprintln(a.out, "Offline: stories are unavailable right now.")
		return err
	case errors.Is(err, client.ErrUnauthorized):
		fmt.Fprintln(a.out, "Not authorised; use 'login' first.")
		return err
	case err != nil:
		fmt.Fprintln(a.out, "Could not load stories:", err)
		return err
	}
	return renderStories(a.out, stories)
}

func (a *App) pushEndpoint() string {
	return strings.TrimRight(a.config.WorkerURL, "/") + "/__worker/push"
}

// Subscribe registers the worker's push endpoint with the story API.
func (a *App) Subscribe(ctx context.Context) error {
	auth, err := common.MakeRandHexString(16)
	if err != nil {
		return err
	}
	p256dh, err := common.MakeRandHexString(32)
	if err != nil {
		return err
	}
	token, _ := a.auth.Token(ctx)

	sub := models.PushSubscription{
		Endpoint: a.pushEndpoint(),
		Keys:     models.PushKeys{P256dh: p256dh, Auth: auth},
	}
	if err := a.api.Subscribe(ctx, token, sub); err != nil {
		fmt.Fprintln(a.out, "Subscription failed:", err)
		return err
	}
	fmt.Fprintln(a.out, "Subscribed to push notifications.")
	return nil
}

// Unsubscribe removes the worker's push endpoint from the story API.
func (a *App) Unsubscribe(ctx context.Context) error {
	token, _ := a.auth.Token(ctx)
	if err := a.api.Unsubscribe(ctx, token, a.pushEndpoint()); err != nil {
		fmt.Fprintln(a.out, "Unsubscribe failed:", err)
		return err
	}
	fmt.Fprintln(a.out, "Push notifications disabled.")
	return nil
}

// PushTest asks the worker to display a local notification and reports any
// failure the worker posts back.
func (a *App) PushTest(ctx context.Context, args []string) error {
	mock := message.PushMock{Title: strings.Join(args, " ")}

	id, err := a.workerClientID(ctx, false)
	if err == nil {
		err = a.worker.PostMessage(ctx, id, mock)
		if errors.Is(err, client.ErrRejected) {
			// the worker restarted and forgot us
			if id, err = a.workerClientID(ctx, true); err == nil {
				err = a.worker.PostMessage(ctx, id, mock)
			}
		}
	}
	if err != nil {
		fmt.Fprintln(a.out, "Worker unreachable:", err)
		return err
	}

	replies, err := a.worker.Messages(ctx, id)
	if err != nil {
		fmt.Fprintln(a.out, "Could not read worker replies:", err)
		return err
	}
	for _, m := range replies {
		if r, ok := m.(message.PushMockResult); ok && !r.OK {
			fmt.Fprintln(a.out, "Worker could not show the notification:", r.Reason)
			return nil
		}
	}
	fmt.Fprintln(a.out, "Test notification sent.")
	return nil
}

// workerClientID returns the persisted worker client id, registering a new
// one when absent or when fresh is set.
func (a *App) workerClientID(ctx context.Context, fresh bool) (string, error) {
	if !fresh {
		if b, err := a.meta.Meta(ctx, metadata.KeyWorkerClientID); err == nil && len(b) > 0 {
			return string(b), nil
		}
	}
	id, err := a.worker.RegisterClient(ctx, "/")
	if err != nil {
		return "", err
	}
	if err := a.meta.SetMeta(ctx, metadata.KeyWorkerClientID, []byte(id)); err != nil {
		a.log.Warn(ctx, "persist worker client id", "error", err)
	}
	return id, nil
}

func (a *App) Status(ctx context.Context) error {
	ds, err := a.drafts.List(ctx)
	queued := "unknown"
	if err == nil {
		queued = strconv.Itoa(len(ds))
	}
	login := "no"
	if a.auth.LoggedIn(ctx) {
		login = "yes"
	}
	fmt.Fprintf(a.out, "connectivity: %s\nsync: %s\nqueued drafts: %s\nlogged in: %s\n",
		a.monitor.Status(), a.sync.State(), queued, login)
	return nil
}
