package events

import "time"

// BreadcrumbStart is emitted when breadcrumb resolution begins for an entry.
type BreadcrumbStart struct {
	EntryID    string
	Locale     string
	Navigation string
}

// BreadcrumbFinish is emitted once per resolution. Strategy names the
// source that produced the trail ("navigation" or "collection"); Fallback is
// set when a requested navigation strategy yielded nothing.
type BreadcrumbFinish struct {
	EntryID  string
	Strategy string
	Fallback bool
	Count    int
	Err      error
	Duration time.Duration
}

// NavigationMissing is emitted when a requested navigation handle does not
// resolve to a structure.
type NavigationMissing struct {
	Handle string
	Locale string
}
