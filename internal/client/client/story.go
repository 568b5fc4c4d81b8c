package client

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/storyqueue/internal/client/models"
	"github.com/dmitrijs2005/storyqueue/internal/common"
	"github.com/go-resty/resty/v2"
)

// StoryAPI is the remote story service as seen by the client.
// An empty token sends the request unauthenticated.
type StoryAPI interface {
	AddStory(ctx context.Context, token string, story models.NewStory) error
	GetStories(ctx context.Context, token string, page, size int) ([]models.Story, error)
	Subscribe(ctx context.Context, token string, sub models.PushSubscription) error
	Unsubscribe(ctx context.Context, token, endpoint string) error
	Ping(ctx context.Context) error
}

// envelope is the common response body of the story API.
type envelope struct {
	Error     bool           `json:"error"`
	Message   string         `json:"message"`
	ListStory []models.Story `json:"listStory,omitempty"`
}

type StoryClient struct {
	http     *resty.Client
	pingPath string
}

var _ StoryAPI = (*StoryClient)(nil)

// NewStoryClient builds a client for the API rooted at baseURL.
func NewStoryClient(baseURL string, timeout time.Duration, pingPath string) *StoryClient {
	if pingPath == "" {
		pingPath = "/"
	}
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetTimeout(timeout)

	return &StoryClient{http: c, pingPath: pingPath}
}

func (c *StoryClient) request(ctx context.Context, token string) *resty.Request {
	r := c.http.R().SetContext(ctx)
	if token != "" {
		r.SetHeader(common.AuthorizationHeader, common.BearerPrefix+token)
	}
	return r
}

func (c *StoryClient) AddStory(ctx context.Context, token string, story models.NewStory) error {
	var env envelope
	resp, err := c.request(ctx, token).
		SetBody(story).
		SetResult(&env).
		SetError(&env).
		Post("/stories")
	return mapResponse(resp, err, &env)
}

func (c *StoryClient) GetStories(ctx context.Context, token string, page, size int) ([]models.Story, error) {
	var env envelope
	r := c.request(ctx, token).
		SetQueryParam("location", "1").
		SetResult(&env).
		SetError(&env)
	if page > 0 {
		r.SetQueryParam("page", strconv.Itoa(page))
	}
	if size > 0 {
		r.SetQueryParam("size", strconv.Itoa(size))
	}

	resp, err := r.Get("/stories")
	if err := mapResponse(resp, err, &env); err != nil {
		return nil, err
	}
	return env.ListStory, nil
}

func (c *StoryClient) Subscribe(ctx context.Context, token string, sub models.PushSubscription) error {
	var env envelope
	resp, err := c.request(ctx, token).
		SetBody(sub).
		SetResult(&env).
		SetError(&env).
		Post("/notifications/subscribe")
	return mapResponse(resp, err, &env)
}

// Unsubscribe removes the subscription registered for endpoint.
func (c *StoryClient) Unsubscribe(ctx context.Context, token, endpoint string) error {
	var env envelope
	resp, err := c.request(ctx, token).
		SetBody(map[string]string{"endpoint": endpoint}).
		SetResult(&env).
		SetError(&env).
		Delete("/notifications/subscribe")
	return mapResponse(resp, err, &env)
}

// Ping reports whether the API answers at all. Any HTTP response counts as
// reachable; only transport failures make it fail.
func (c *StoryClient) Ping(ctx context.Context) error {
	_, err := c.http.R().SetContext(ctx).Head(c.pingPath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

func mapResponse(resp *resty.Response, err error, env *envelope) error {
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	code := resp.StatusCode()
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: status %d: %s", ErrUnauthorized, code, env.Message)
	case code < 200 || code >= 300:
		return fmt.Errorf("%w: status %d: %s", ErrRejected, code, env.Message)
	case env.Error:
		return fmt.Errorf("%w: %s", ErrRejected, env.Message)
	}
	return nil
}
