package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/storyqueue/internal/worker/message"
	"github.com/go-resty/resty/v2"
)

// WorkerClient drives the worker control surface on behalf of one window.
type WorkerClient struct {
	http *resty.Client
}

func NewWorkerClient(baseURL string, timeout time.Duration) *WorkerClient {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
	return &WorkerClient{http: c}
}

type registerRequest struct {
	URL string `json:"url"`
}

type registerResponse struct {
	ID string `json:"id"`
}

type errorBody struct {
	Error string `json:"error"`
}

// RegisterClient announces a window showing url and returns its client id.
func (c *WorkerClient) RegisterClient(ctx context.Context, url string) (string, error) {
	var out registerResponse
	var eb errorBody
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(registerRequest{URL: url}).
		SetResult(&out).
		SetError(&eb).
		Post("/__worker/clients")
	if err := mapWorker(resp, err, eb); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("%w: empty client id", ErrRejected)
	}
	return out.ID, nil
}

// PostMessage sends m to the worker as coming from client id.
func (c *WorkerClient) PostMessage(ctx context.Context, id string, m message.Message) error {
	body, err := message.Encode(m)
	if err != nil {
		return err
	}
	var eb errorBody
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetBody(body).
		SetError(&eb).
		Post("/__worker/clients/{id}/messages")
	return mapWorker(resp, err, eb)
}

// Messages drains the messages the worker posted to client id.
func (c *WorkerClient) Messages(ctx context.Context, id string) ([]message.Message, error) {
	var raw []json.RawMessage
	var eb errorBody
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&raw).
		SetError(&eb).
		Get("/__worker/clients/{id}/messages")
	if err := mapWorker(resp, err, eb); err != nil {
		return nil, err
	}

	out := make([]message.Message, 0, len(raw))
	for _, r := range raw {
		m, err := message.Decode(r)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func mapWorker(resp *resty.Response, err error, eb errorBody) error {
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode(), eb.Error)
	}
	return nil
}
