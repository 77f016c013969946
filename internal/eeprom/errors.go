package eeprom

import "errors"

var (
	ErrUnknownDriver = errors.New("unknown eeprom driver")
	ErrOutOfRange    = errors.New("eeprom access out of range")
	ErrClosed        = errors.New("eeprom device closed")
	ErrTypeMismatch  = errors.New("eeprom item type mismatch")
	ErrUnknownItem   = errors.New("unknown eeprom item")
	ErrInvalidLayout = errors.New("invalid eeprom layout")
)
