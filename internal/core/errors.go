package core

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig reports a missing credential or setting. Not retried.
	ErrConfig = errors.New("configuration error")
	// ErrUpstreamUnavailable reports a network or HTTP failure talking to an upstream API.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrUpstreamData reports an empty or malformed upstream result.
	ErrUpstreamData = errors.New("upstream data error")
	// ErrCacheCorrupt marks an unreadable cache entry. Callers treat it as a miss.
	ErrCacheCorrupt = errors.New("cache corrupt")
)

// SourceError names the source whose fetch aborted an aggregation.
type SourceError struct {
	Source Source
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s fetch failed: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// NewSourceError wraps err with the failing source; nil stays nil.
func NewSourceError(src Source, err error) error {
	if err == nil {
		return nil
	}
	return &SourceError{Source: src, Err: err}
}
