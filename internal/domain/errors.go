package domain

import "errors"

var (
	ErrQuotaExceeded  = errors.New("daily quota would be exceeded")
	ErrSourceNotFound = errors.New("source not found")

	// ErrInvalidPageToken means a stored continuation token is no longer accepted.
	ErrInvalidPageToken = errors.New("page token rejected")
)
