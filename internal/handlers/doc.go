// Package handlers binds looper names from configuration to built-in
// handlers and wraps them with the configured interval.
package handlers
