package config

import "errors"

var (
	ErrInvalidConfig   = errors.New("invalid config")
	ErrRestartRequired = errors.New("change requires restart")
)
