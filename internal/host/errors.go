package host

import "errors"

var (
	ErrUnknownLooper = errors.New("unknown looper")
	ErrNotLoaded     = errors.New("runner has no loopers loaded")
	ErrAlreadyLoaded = errors.New("runner already loaded")
	ErrStopped       = errors.New("runner stopped")
)
