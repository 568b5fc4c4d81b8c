package devapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/storyqueue/internal/client/client"
	"github.com/dmitrijs2005/storyqueue/internal/client/models"
	"github.com/dmitrijs2005/storyqueue/internal/devapi/auth"
	"github.com/dmitrijs2005/storyqueue/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret"

func newTestAPI(t *testing.T, opts Options) (*httptest.Server, *Handler) {
	t.Helper()
	if opts.SecretKey == "" {
		opts.SecretKey = testSecret
	}
	if opts.TokenTTL == 0 {
		opts.TokenTTL = time.Hour
	}
	h := NewHandler(NewStore(), NewPusher(time.Second, logging.Discard()), logging.Discard(), opts)
	srv := httptest.NewServer(New(h))
	t.Cleanup(srv.Close)
	return srv, h
}

func login(t *testing.T, baseURL, name string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Post(baseURL+"/login", "application/json", strings.NewReader(`{"name":"`+name+`"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func tokenFor(t *testing.T, baseURL, name string) string {
	t.Helper()
	status, body := login(t, baseURL, name)
	require.Equal(t, http.StatusOK, status)
	res := body["loginResult"].(map[string]any)
	return res["token"].(string)
}

func TestHealth(t *testing.T) {
	srv, _ := newTestAPI(t, Options{})

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])

	sc := client.NewStoryClient(srv.URL, time.Second, "/health")
	assert.NoError(t, sc.Ping(context.Background()))
}

func TestLogin(t *testing.T) {
	srv, _ := newTestAPI(t, Options{})

	status, body := login(t, srv.URL, "Ada Lovelace")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["error"])
	res := body["loginResult"].(map[string]any)
	assert.Equal(t, "user-ada-lovelace", res["userId"])

	claims, err := auth.ParseToken(res["token"].(string), []byte(testSecret))
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", claims.Name)

	status, body = login(t, srv.URL, "  ")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, true, body["error"])
	assert.Equal(t, "name is required", body["message"])
}

func TestStories_ThroughStoryClient(t *testing.T) {
	srv, h := newTestAPI(t, Options{})
	sc := client.NewStoryClient(srv.URL, time.Second, "/health")
	ctx := context.Background()
	token := tokenFor(t, srv.URL, "alice")

	err := sc.AddStory(ctx, "", models.NewStory{Title: "t", Description: "d"})
	assert.ErrorIs(t, err, client.ErrUnauthorized)

	err = sc.AddStory(ctx, "garbage", models.NewStory{Title: "t", Description: "d"})
	assert.ErrorIs(t, err, client.ErrUnauthorized)

	err = sc.AddStory(ctx, token, models.NewStory{Title: "t", Description: "   "})
	require.ErrorIs(t, err, client.ErrRejected)
	assert.Contains(t, err.Error(), "description is required")

	require.NoError(t, sc.AddStory(ctx, token, models.NewStory{Title: "first", Description: "first story"}))
	require.NoError(t, sc.AddStory(ctx, token, models.NewStory{Title: "second", Description: "second story"}))
	assert.Equal(t, 2, h.store.Count())

	stories, err := sc.GetStories(ctx, "", 1, 10)
	require.NoError(t, err)
	require.Len(t, stories, 2)
	assert.Equal(t, "second story", stories[0].Description)
	assert.Equal(t, "alice", stories[0].Name)

	stories, err = sc.GetStories(ctx, token, 2, 1)
	require.NoError(t, err)
	require.Len(t, stories, 1)
	assert.Equal(t, "first story", stories[0].Description)
}

func TestWriteStatusCodes(t *testing.T) {
	srv, _ := newTestAPI(t, Options{})
	token := tokenFor(t, srv.URL, "alice")

	send := func(method, path, body string) (int, Envelope) {
		req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		var env Envelope
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
		return resp.StatusCode, env
	}

	tests := []struct {
		name    string
		method  string
		path    string
		body    string
		status  int
		message string
	}{
		{"add story", http.MethodPost, "/stories", `{"description":"hi"}`, http.StatusCreated, "Story created successfully"},
		{"subscribe", http.MethodPost, "/notifications/subscribe", `{"endpoint":"http://x","keys":{"p256dh":"p","auth":"a"}}`, http.StatusOK, "Success to subscribe web push notification."},
		{"unsubscribe", http.MethodDelete, "/notifications/subscribe", `{"endpoint":"http://x"}`, http.StatusOK, "Success to unsubscribe web push notification."},
		{"unsubscribe without endpoint", http.MethodDelete, "/notifications/subscribe", `{}`, http.StatusBadRequest, "endpoint is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := send(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.message, env.Message)
			assert.Equal(t, tt.status >= 400, env.Error)
		})
	}
}

func TestUnsubscribe_StopsBroadcasts(t *testing.T) {
	srv, h := newTestAPI(t, Options{})
	sink := &pushSink{}
	receiver := httptest.NewServer(sink)
	defer receiver.Close()

	sc := client.NewStoryClient(srv.URL, time.Second, "/health")
	ctx := context.Background()
	token := tokenFor(t, srv.URL, "alice")

	sub := models.PushSubscription{Endpoint: receiver.URL + "/__worker/push"}
	require.NoError(t, sc.Subscribe(ctx, token, sub))
	require.ErrorIs(t, sc.Unsubscribe(ctx, "", sub.Endpoint), client.ErrUnauthorized)
	require.NoError(t, sc.Unsubscribe(ctx, token, sub.Endpoint))
	require.NoError(t, sc.Unsubscribe(ctx, token, sub.Endpoint), "removing twice is harmless")
	assert.Empty(t, h.store.Subscriptions())

	require.NoError(t, sc.AddStory(ctx, token, models.NewStory{Description: "quiet"}))
	h.pusher.Wait()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Empty(t, sink.payloads)
}

func TestAddStory_ExpiredToken(t *testing.T) {
	srv, _ := newTestAPI(t, Options{})
	token, err := auth.GenerateToken("u1", "bob", []byte(testSecret), -time.Minute)
	require.NoError(t, err)

	sc := client.NewStoryClient(srv.URL, time.Second, "/health")
	err = sc.AddStory(context.Background(), token, models.NewStory{Description: "late"})
	require.ErrorIs(t, err, client.ErrUnauthorized)
	assert.Contains(t, err.Error(), "Token expired")
}

type pushSink struct {
	mu       sync.Mutex
	payloads []pushPayload
}

func (p *pushSink) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var pl pushPayload
	_ = json.NewDecoder(r.Body).Decode(&pl)
	p.mu.Lock()
	p.payloads = append(p.payloads, pl)
	p.mu.Unlock()
	w.WriteHeader(http.StatusAccepted)
}

func TestSubscribe_BroadcastsNewStories(t *testing.T) {
	srv, h := newTestAPI(t, Options{})
	sink := &pushSink{}
	receiver := httptest.NewServer(sink)
	defer receiver.Close()

	sc := client.NewStoryClient(srv.URL, time.Second, "/health")
	ctx := context.Background()
	token := tokenFor(t, srv.URL, "alice")

	sub := models.PushSubscription{Endpoint: receiver.URL + "/__worker/push", Keys: models.PushKeys{P256dh: "p", Auth: "a"}}
	require.ErrorIs(t, sc.Subscribe(ctx, "", sub), client.ErrUnauthorized)
	require.NoError(t, sc.Subscribe(ctx, token, sub))
	require.NoError(t, sc.Subscribe(ctx, token, sub))
	assert.Len(t, h.store.Subscriptions(), 1)

	require.NoError(t, sc.AddStory(ctx, token, models.NewStory{Description: "hello"}))
	h.pusher.Wait()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.payloads, 1)
	assert.Equal(t, "New story from alice", sink.payloads[0].Title)
	assert.Equal(t, "hello", sink.payloads[0].Body)
	assert.True(t, strings.HasPrefix(sink.payloads[0].URL, "/#/stories/story-"))
}

func TestSubscribe_EmptyEndpoint(t *testing.T) {
	srv, _ := newTestAPI(t, Options{})
	sc := client.NewStoryClient(srv.URL, time.Second, "/health")
	token := tokenFor(t, srv.URL, "alice")

	err := sc.Subscribe(context.Background(), token, models.PushSubscription{Endpoint: " "})
	assert.ErrorIs(t, err, client.ErrRejected)
}

func TestRateLimit(t *testing.T) {
	srv, _ := newTestAPI(t, Options{RateLimit: 0.001, RateBurst: 1})

	resp, err := http.Get(srv.URL + "/stories")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/stories")
	require.NoError(t, err)
	var env Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.True(t, env.Error)
}

func TestLogin_PasswordClaimsName(t *testing.T) {
	srv, h := newTestAPI(t, Options{})
	h.store.cost = bcrypt.MinCost

	post := func(body string) (int, map[string]any) {
		resp, err := http.Post(srv.URL+"/login", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		defer resp.Body.Close()
		var out map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return resp.StatusCode, out
	}

	status, _ := post(`{"name":"dora","password":"s3cret"}`)
	assert.Equal(t, http.StatusOK, status)

	status, _ = post(`{"name":"Dora","password":"s3cret"}`)
	assert.Equal(t, http.StatusOK, status, "user id is case-insensitive")

	status, body := post(`{"name":"dora","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid credentials", body["message"])
	assert.Nil(t, body["loginResult"])
}
