package devapi

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/dmitrijs2005/storyqueue/internal/client/models"
	"github.com/dmitrijs2005/storyqueue/internal/logging"
	"github.com/go-resty/resty/v2"
)

// pushPayload is what the worker's push endpoint receives.
type pushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
}

// Pusher delivers new-story alerts to subscribed endpoints in the
// background.
type Pusher struct {
	http *resty.Client
	log  logging.Logger
	wg   sync.WaitGroup
}

func NewPusher(timeout time.Duration, log logging.Logger) *Pusher {
	return &Pusher{
		http: resty.New().SetTimeout(timeout).SetHeader("Content-Type", "application/json"),
		log:  log.With("component", "pusher"),
	}
}

// Broadcast posts st to every subscription without blocking the caller.
func (p *Pusher) Broadcast(ctx context.Context, subs []models.PushSubscription, st models.Story) {
	if len(subs) == 0 {
		return
	}
	body, err := json.Marshal(pushPayload{Title: "New story from " + st.Name, Body: st.Description, URL: "/#/stories/" + st.ID})
	if err != nil {
		p.log.Error(ctx, "encode push payload", "error", err)
		return
	}

	ctx = context.WithoutCancel(ctx)
	for _, sub := range subs {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			resp, err := p.http.R().SetContext(ctx).SetBody(body).Post(sub.Endpoint)
			switch {
			case err != nil:
				p.log.Warn(ctx, "push delivery failed", "endpoint", sub.Endpoint, "error", err)
			case resp.IsError():
				p.log.Warn(ctx, "push rejected", "endpoint", sub.Endpoint, "status", resp.StatusCode())
			default:
				p.log.Debug(ctx, "push delivered", "endpoint", sub.Endpoint)
			}
		}()
	}
}

// Wait blocks until in-flight deliveries finish.
func (p *Pusher) Wait() {
	p.wg.Wait()
}
