// Package time provides the current time to the code that names output
// files, such that the names can be tested.
package time

import "time"

// Source returns the current time.
type Source interface {
	Now() time.Time
}

// StdSource is the wall clock.
type StdSource struct{}

func (s *StdSource) Now() time.Time {
	return time.Now()
}

// FixedSource always returns the same time.
type FixedSource struct {
	T time.Time
}

func (f *FixedSource) Now() time.Time {
	return f.T
}

// Set sets the time to the given unix time.
func (f *FixedSource) Set(sec int64, nsec int64) {
	f.T = time.Unix(sec, nsec).UTC()
}
