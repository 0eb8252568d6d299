package archive

import "time"

// referenceInstant is the epoch archive timestamps are offset from.
var referenceInstant = time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)

// TimeFromArchive converts a signed nanosecond offset from the reference
// instant to an absolute time. Offsets <= 0 mean absent and return nil.
func TimeFromArchive(ns int64) *time.Time {
	if ns <= 0 {
		return nil
	}
	t := referenceInstant.Add(time.Duration(ns))
	return &t
}

// TimeToArchive converts an absolute time back to an archive offset.
func TimeToArchive(t time.Time) int64 {
	return t.Sub(referenceInstant).Nanoseconds()
}
