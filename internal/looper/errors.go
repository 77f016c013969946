package looper

import "errors"

var (
	ErrInvalidDefinition = errors.New("invalid looper definition")
	ErrDuplicateName     = errors.New("duplicate looper name")
)
