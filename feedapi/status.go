package feedapi

import (
	"github.com/EddyProjects/eddy"
)

var (
	ErrNoUpdates       = eddy.ErrNoUpdates
	ErrMissingRequired = eddy.ErrMissingRequired

	ErrNotFound = eddy.ErrNotFound
)

type StatusError = eddy.StatusError

// Reimplement Statusf and WrapError functions here for faster reference

func Statusf(status int, format string, args ...any) *StatusError {
	return eddy.Statusf(status, format, args...)
}

func WrapError(err error, text string) *StatusError {
	return eddy.WrapError(err, text)
}
