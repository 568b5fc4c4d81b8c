package devapi

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

var bearer = []map[string][]string{{"bearer": {}}}

func (h *Handler) healthOp(method string) huma.Operation {
	id := "health-check"
	if method == http.MethodHead {
		id = "health-check-head"
	}
	return huma.Operation{
		OperationID: id,
		Method:      method,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"health"},
	}
}

func (h *Handler) loginOp() huma.Operation {
	return huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/login",
		Summary:     "Issue a bearer token",
		Tags:        []string{"auth"},
		Middlewares: h.public,
	}
}

func (h *Handler) addStoryOp() huma.Operation {
	return huma.Operation{
		OperationID:   "add-story",
		Method:        http.MethodPost,
		Path:          "/stories",
		Summary:       "Add a story",
		Tags:          []string{"stories"},
		DefaultStatus: http.StatusCreated,
		Security:      bearer,
		Middlewares:   h.protected,
	}
}

func (h *Handler) listStoriesOp() huma.Operation {
	return huma.Operation{
		OperationID: "list-stories",
		Method:      http.MethodGet,
		Path:        "/stories",
		Summary:     "List stories, newest first",
		Tags:        []string{"stories"},
		Middlewares: h.public,
	}
}

func (h *Handler) subscribeOp() huma.Operation {
	return huma.Operation{
		OperationID: "subscribe",
		Method:      http.MethodPost,
		Path:        "/notifications/subscribe",
		Summary:     "Register a push subscription",
		Tags:        []string{"notifications"},
		Security:    bearer,
		Middlewares: h.protected,
	}
}

func (h *Handler) unsubscribeOp() huma.Operation {
	return huma.Operation{
		OperationID: "unsubscribe",
		Method:      http.MethodDelete,
		Path:        "/notifications/subscribe",
		Summary:     "Remove a push subscription",
		Tags:        []string{"notifications"},
		Security:    bearer,
		Middlewares: h.protected,
	}
}
