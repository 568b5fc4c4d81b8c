package worker

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Fetcher performs a request against the asset origin. Callers close the
// response body.
type Fetcher interface {
	Fetch(ctx context.Context, method, target string, header http.Header, body io.Reader) (*http.Response, error)
}

// Origin is the upstream static-asset server.
type Origin struct {
	http *resty.Client
}

// NewOrigin returns a Fetcher for baseURL. Redirects are handed back to the
// caller instead of being followed.
func NewOrigin(baseURL string, timeout time.Duration) *Origin {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}))
	return &Origin{http: c}
}

func (o *Origin) Fetch(ctx context.Context, method, target string, header http.Header, body io.Reader) (*http.Response, error) {
	req := o.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true)
	for k, vv := range header {
		req.Header[k] = append([]string(nil), vv...)
	}
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, target)
	if err != nil {
		return nil, err
	}
	return resp.RawResponse, nil
}
