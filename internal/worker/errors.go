package worker

import "errors"

var (
	ErrInstallFailed        = errors.New("worker install failed")
	ErrNotInstalled         = errors.New("worker is not installed")
	ErrPermissionDenied     = errors.New("notification permission not granted")
	ErrUnknownClient        = errors.New("unknown client")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrUnsupportedMessage   = errors.New("unsupported message")
)
