// Package concurrency holds small self-synchronizing primitives shared by
// the client registry and the token refresher.
package concurrency

import "golang.org/x/sync/singleflight"

// ControlledRunner collapses concurrent calls into a single in-flight
// execution. Callers that arrive while a run is in flight join it and
// receive the same outcome; the slot is cleared once the run completes,
// success or failure, so the next caller starts fresh.
type ControlledRunner[T any] struct {
	group singleflight.Group
}

// JoinPreviousOrRun runs fn, unless a previous call on this runner is still
// in flight, in which case it waits for that call and returns its result
// without invoking fn again.
func (r *ControlledRunner[T]) JoinPreviousOrRun(fn func() (T, error)) (T, error) {
	v, err, _ := r.group.Do("in-flight", func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
