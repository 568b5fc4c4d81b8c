// Package client contains the HTTP clients the storyqueue REPL talks to.
//
// # Overview
//
//  1. StoryClient speaks to the remote story API: POST /stories,
//     GET /stories, POST /notifications/subscribe and a reachability Ping.
//  2. WorkerClient speaks to the worker control surface: it registers the
//     REPL as a window client and exchanges page↔worker messages.
//
// Both are built on go-resty and carry a request timeout.
//
// # Error Handling
//
// Failures are reported as sentinel errors that callers match with
// errors.Is: ErrUnavailable (the request never got a response),
// ErrUnauthorized (401/403) and ErrRejected (any other non-success reply or
// an API envelope with error=true). The returned errors wrap the status and
// server message for logging.
//
// Concurrency & Contexts
//
// Clients are safe for concurrent use. Every call takes a context.Context and
// honours its cancellation.
package client
