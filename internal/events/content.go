package events

import "time"

// ContentLookup is emitted for every point read against the content store.
type ContentLookup struct {
	Kind     string
	Key      string
	Found    bool
	Duration time.Duration
}
