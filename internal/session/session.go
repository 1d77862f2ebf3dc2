package session

import (
	"context"
	"strings"
	"time"
)

// Session is an isolated browser context that can load a web page and read
// its content. A session is owned by exactly one task at a time and must be
// closed when the task finishes.
type Session interface {
	// Navigate loads the given URL and waits for the document body to be ready.
	Navigate(ctx context.Context, url string) error

	// WaitForText polls the page text until one of the keywords appears or the
	// timeout elapses. It returns true if a keyword was seen. This is an
	// early-exit optimization so fast-loading pages do not pay a fixed wait.
	WaitForText(ctx context.Context, timeout time.Duration, keywords ...string) bool

	// BodyText returns the visible text content of the page.
	BodyText(ctx context.Context) (string, error)

	// Title returns the document title.
	Title(ctx context.Context) (string, error)

	// Close tears down the session's resources.
	Close()
}

// Launcher creates new sessions. The pool owns launch and teardown; fetchers
// only ever see a checked-out Session.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

// LaunchError indicates the underlying automation engine could not start,
// e.g. a missing Chrome executable. It is fatal to the one acquire call that
// hit it, not to the pool.
type LaunchError struct {
	Err error
}

func (e *LaunchError) Error() string {
	return "failed to launch browser session: " + e.Err.Error()
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// containsAny reports whether text contains any of the keywords,
// case-insensitively.
func containsAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
