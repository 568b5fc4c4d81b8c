// Package common contains shared constants and sentinel errors used across
// storyqueue components.
package common

const (
	// AuthorizationHeader carries the bearer credential on story API calls.
	AuthorizationHeader = "Authorization"

	// BearerPrefix precedes the token inside AuthorizationHeader.
	BearerPrefix = "Bearer "

	// FetchModeHeader is set by browsers to "navigate" for page loads.
	FetchModeHeader = "Sec-Fetch-Mode"
)
