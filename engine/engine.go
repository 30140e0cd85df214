package engine

import (
	"context"
	"time"
)

// Engine is the interface that all fetch engines must implement.
type Engine interface {
	// Name returns the engine identifier (e.g. "http", "browser").
	Name() string

	// Fetch loads the page and reports its title.
	Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error)
}

// FetchRequest contains everything an engine needs to load a page.
type FetchRequest struct {
	URL     string
	Headers map[string]string

	// NavigationTimeout bounds navigation until the load event.
	NavigationTimeout time.Duration

	// TitleTimeout bounds how long an engine may wait for Accept to hold
	// after load. Engines that cannot observe title changes ignore it.
	TitleTimeout time.Duration

	// ReadySelector must match an element before the title is read.
	ReadySelector string

	// Accept reports whether a title is the one being waited for.
	// A nil Accept takes the first title read.
	Accept func(title string) bool
}

// accepts applies req.Accept, treating a nil func as accept-all.
func (r *FetchRequest) accepts(title string) bool {
	return r.Accept == nil || r.Accept(title)
}

// FetchResult is the output of a successful engine fetch: the page loaded.
// Whether the title is acceptable is decided by the caller.
type FetchResult struct {
	Title          string
	StatusCode     int
	FinalURL       string
	EngineName     string
	NavigationTime time.Duration
}
