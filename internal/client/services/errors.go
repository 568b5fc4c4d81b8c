package services

import "errors"

var (
	ErrEmptyDraft = errors.New("draft has no description")
	ErrEmptyToken = errors.New("token is empty")
)
