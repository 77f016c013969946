// Package logx wraps zerolog for looperd.
//
// Console lines carry a millisecond timestamp and a file:line caller; the
// optional log file gets JSON. Service.Apply swaps sinks at runtime, which
// the config reload path uses. Throttled loggers bound the cost of warnings
// emitted from the dispatch loop.
package logx
