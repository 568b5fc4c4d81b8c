// Package models defines client-side data models used by the storyqueue CLI.
package models

import (
	"strings"
	"time"
)

// Draft is a story submission queued locally until the story API accepts it.
type Draft struct {
	// ID is assigned by the local store on insert and never reused.
	ID int64 `json:"id"`

	Title       string `json:"title"`
	Description string `json:"description"`

	// CreatedAt is stamped by the store when left zero.
	CreatedAt time.Time `json:"createdAt"`
}

// NewTextDraft builds a draft from a single piece of text, used both as the
// title and the description.
func NewTextDraft(text string) Draft {
	text = strings.TrimSpace(text)
	return Draft{Title: text, Description: text}
}

// Normalize trims content and fills an empty title from the description.
func (d Draft) Normalize() Draft {
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	if d.Title == "" {
		d.Title = d.Description
	}
	return d
}

// Empty reports whether the draft carries no content to submit.
func (d Draft) Empty() bool {
	return strings.TrimSpace(d.Description) == ""
}

// Story returns the payload submitted to the story API for this draft.
func (d Draft) Story() NewStory {
	return NewStory{Title: d.Title, Description: d.Description}
}
