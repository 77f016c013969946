// Package looper implements the cooperative dispatch core: a fixed registry of
// periodic callbacks ("loopers"), a sorted array queue of the live ones, and the
// enable/disable protocol that callbacks may use on themselves or on each other
// while a dispatch batch is in progress.
//
// A Scheduler is owned by exactly one goroutine. It holds no locks and does not
// allocate on the dispatch path.
package looper
