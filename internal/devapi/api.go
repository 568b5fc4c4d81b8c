// Package devapi is a local stand-in for the remote story API. It issues
// bearer tokens, accepts and lists stories, records push subscriptions and
// fans new stories out to them.
package devapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/dmitrijs2005/storyqueue/internal/client/models"
	"github.com/dmitrijs2005/storyqueue/internal/devapi/auth"
	"github.com/dmitrijs2005/storyqueue/internal/logging"
	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"
)

type Options struct {
	SecretKey string
	TokenTTL  time.Duration
	// RateLimit is requests per second across all clients; zero disables it.
	RateLimit float64
	RateBurst int
}

// Envelope is the common body of every story API response.
type Envelope struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

type Handler struct {
	store  *Store
	pusher *Pusher
	log    logging.Logger
	opts   Options

	public    huma.Middlewares
	protected huma.Middlewares
}

func NewHandler(store *Store, pusher *Pusher, log logging.Logger, opts Options) *Handler {
	h := &Handler{store: store, pusher: pusher, log: log.With("module", "devapi"), opts: opts}

	var mws huma.Middlewares
	if opts.RateLimit > 0 {
		mws = append(mws, rateLimitMiddleware(rate.NewLimiter(rate.Limit(opts.RateLimit), max(opts.RateBurst, 1))))
	}
	mws = append(mws, loggerMiddleware(log))
	h.public = mws
	h.protected = append(append(huma.Middlewares{}, mws...), authMiddleware([]byte(opts.SecretKey), h.log))
	return h
}

// New builds the router with every operation registered.
func New(h *Handler) *chi.Mux {
	mux := chi.NewMux()

	config := huma.DefaultConfig("Story API (dev)", "1.0.0")
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {Type: "http", Scheme: "bearer"},
	}
	api := humachi.New(mux, config)
	h.SetupRoutes(api)
	return mux
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.healthOp(http.MethodGet), h.health)
	huma.Register(api, h.healthOp(http.MethodHead), h.healthHead)
	huma.Register(api, h.loginOp(), h.login)
	huma.Register(api, h.addStoryOp(), h.addStory)
	huma.Register(api, h.listStoriesOp(), h.listStories)
	huma.Register(api, h.subscribeOp(), h.subscribe)
	huma.Register(api, h.unsubscribeOp(), h.unsubscribe)
}

type healthOutput struct {
	Body struct {
		Status string `json:"status" example:"ok"`
	}
}

func (h *Handler) health(_ context.Context, _ *struct{}) (*healthOutput, error) {
	out := &healthOutput{}
	out.Body.Status = "ok"
	return out, nil
}

func (h *Handler) healthHead(_ context.Context, _ *struct{}) (*struct{}, error) {
	return &struct{}{}, nil
}

type loginInput struct {
	Body struct {
		Name     string `json:"name" required:"false" doc:"Display name"`
		Password string `json:"password,omitempty" required:"false" doc:"Optional; the first login with a password claims the name"`
	}
}

type loginResult struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Token  string `json:"token"`
}

type loginOutput struct {
	Status int
	Body   struct {
		Envelope
		LoginResult *loginResult `json:"loginResult,omitempty"`
	}
}

func (h *Handler) login(ctx context.Context, in *loginInput) (*loginOutput, error) {
	out := &loginOutput{}
	name := strings.TrimSpace(in.Body.Name)
	if name == "" {
		out.Status = http.StatusBadRequest
		out.Body.Envelope = Envelope{Error: true, Message: "name is required"}
		return out, nil
	}

	userID := "user-" + strings.ToLower(strings.Join(strings.Fields(name), "-"))
	if err := h.store.Authenticate(userID, in.Body.Password); err != nil {
		if errors.Is(err, ErrBadPassword) {
			out.Status = http.StatusUnauthorized
			out.Body.Envelope = Envelope{Error: true, Message: "Invalid credentials"}
			return out, nil
		}
		h.log.Error(ctx, "authenticate", "error", err)
		return nil, huma.Error500InternalServerError("could not authenticate")
	}

	token, err := auth.GenerateToken(userID, name, []byte(h.opts.SecretKey), h.opts.TokenTTL)
	if err != nil {
		h.log.Error(ctx, "issue token", "error", err)
		return nil, huma.Error500InternalServerError("could not issue token")
	}

	out.Status = http.StatusOK
	out.Body.Envelope = Envelope{Message: "success"}
	out.Body.LoginResult = &loginResult{UserID: userID, Name: name, Token: token}
	return out, nil
}

type addStoryInput struct {
	Body struct {
		Title       string `json:"title,omitempty" required:"false"`
		Description string `json:"description" required:"false"`
	}
}

type envelopeOutput struct {
	Status int
	Body   Envelope
}

func (h *Handler) addStory(ctx context.Context, in *addStoryInput) (*envelopeOutput, error) {
	who, _ := identityFrom(ctx)
	desc := strings.TrimSpace(in.Body.Description)
	if desc == "" {
		return &envelopeOutput{
			Status: http.StatusBadRequest,
			Body:   Envelope{Error: true, Message: "description is required"},
		}, nil
	}

	st, err := h.store.AddStory(who.Name, desc)
	if err != nil {
		h.log.Error(ctx, "add story", "error", err)
		return nil, huma.Error500InternalServerError("could not store story")
	}
	h.log.Info(ctx, "story added", "id", st.ID, "user", who.UserID)
	h.pusher.Broadcast(ctx, h.store.Subscriptions(), st)

	return &envelopeOutput{
		Status: http.StatusCreated,
		Body:   Envelope{Message: "Story created successfully"},
	}, nil
}

type listStoriesInput struct {
	Page     int `query:"page" minimum:"0"`
	Size     int `query:"size" minimum:"0"`
	Location int `query:"location" minimum:"0" maximum:"1"`
}

type listStoriesOutput struct {
	Body struct {
		Envelope
		ListStory []models.Story `json:"listStory"`
	}
}

func (h *Handler) listStories(_ context.Context, in *listStoriesInput) (*listStoriesOutput, error) {
	out := &listStoriesOutput{}
	out.Body.Envelope = Envelope{Message: "Stories fetched successfully"}
	out.Body.ListStory = h.store.Stories(in.Page, in.Size)
	return out, nil
}

type subscribeInput struct {
	Body models.PushSubscription
}

func (h *Handler) subscribe(ctx context.Context, in *subscribeInput) (*envelopeOutput, error) {
	if strings.TrimSpace(in.Body.Endpoint) == "" {
		return &envelopeOutput{
			Status: http.StatusBadRequest,
			Body:   Envelope{Error: true, Message: "endpoint is required"},
		}, nil
	}
	h.store.Subscribe(in.Body)
	who, _ := identityFrom(ctx)
	h.log.Info(ctx, "push subscription stored", "user", who.UserID, "endpoint", in.Body.Endpoint)
	return &envelopeOutput{
		Status: http.StatusOK,
		Body:   Envelope{Message: "Success to subscribe web push notification."},
	}, nil
}

type unsubscribeInput struct {
	Body struct {
		Endpoint string `json:"endpoint" required:"false"`
	}
}

func (h *Handler) unsubscribe(ctx context.Context, in *unsubscribeInput) (*envelopeOutput, error) {
	endpoint := strings.TrimSpace(in.Body.Endpoint)
	if endpoint == "" {
		return &envelopeOutput{
			Status: http.StatusBadRequest,
			Body:   Envelope{Error: true, Message: "endpoint is required"},
		}, nil
	}
	removed := h.store.Unsubscribe(endpoint)
	who, _ := identityFrom(ctx)
	h.log.Info(ctx, "push subscription removed", "user", who.UserID, "endpoint", endpoint, "found", removed)
	return &envelopeOutput{
		Status: http.StatusOK,
		Body:   Envelope{Message: "Success to unsubscribe web push notification."},
	}, nil
}
