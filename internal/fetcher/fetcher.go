// Package fetcher implements the browser-driven acquisition layer: one URL
// in, rendered markup out, with retries, exponential backoff and session
// recovery. The real browser hides behind the Session interface so the retry
// state machine is testable without a driver.
package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Session is one live browser page. Implementations own exactly one page and
// are discarded (Close) whenever a navigation error occurs.
type Session interface {
	Navigate(url string) error
	// WaitForContent blocks until the expected page content is present or
	// the timeout elapses. A timeout error is not fatal: the caller falls
	// back to whatever markup is currently rendered.
	WaitForContent(timeout time.Duration) error
	// DismissConsent clicks away cookie/consent dialogs. Best effort.
	DismissConsent()
	// ScrollToBottom forces lazy-loaded content to render.
	ScrollToBottom()
	Content() (string, error)
	Close() error
}

// SessionFactory creates a fresh Session, typically a new browser page.
type SessionFactory func() (Session, error)

// State is the fetcher's position in its acquisition cycle.
type State int

const (
	StateIdle State = iota
	StateNavigating
	StateWaitingForContent
	StateSuccess
	StateTimeoutFallback
	StateReinitializing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateNavigating:
		return "navigating"
	case StateWaitingForContent:
		return "waiting_for_content"
	case StateSuccess:
		return "success"
	case StateTimeoutFallback:
		return "timeout_fallback"
	case StateReinitializing:
		return "reinitializing"
	default:
		return "unknown"
	}
}

// RetrievalError means acquisition exhausted its retries for one URL. It is
// terminal for that URL only.
type RetrievalError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("failed to retrieve %s after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}

type Options struct {
	// MaxRetries is the number of navigation attempts per URL.
	MaxRetries int
	// RequestDelay is the fixed politeness delay after a successful fetch.
	RequestDelay time.Duration
	// WaitTimeout bounds the wait for expected content; hitting it is not
	// fatal.
	WaitTimeout time.Duration
	// ScrollToBottom enables the lazy-load scroll loop after content
	// appears.
	ScrollToBottom bool
}

func DefaultOptions() Options {
	return Options{
		MaxRetries:   3,
		RequestDelay: 2 * time.Second,
		WaitTimeout:  30 * time.Second,
	}
}

// Fetcher owns at most one Session at a time; calls are strictly sequential
// by construction, so no locking is needed.
type Fetcher struct {
	factory SessionFactory
	session Session
	opts    Options
	state   State
	logger  *slog.Logger

	// sleep is swapped out in tests to verify delay sequencing.
	sleep func(time.Duration)
}

func New(factory SessionFactory, opts Options) *Fetcher {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	return &Fetcher{
		factory: factory,
		opts:    opts,
		state:   StateIdle,
		logger:  slog.Default().With("component", "fetcher"),
		sleep:   time.Sleep,
	}
}

// State reports the current acquisition state.
func (f *Fetcher) State() State {
	return f.state
}

// Fetch retrieves rendered markup for url. Each failed attempt tears the
// session down and backs off 2^attempt seconds before a fresh session
// retries; after MaxRetries failures it returns a *RetrievalError.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	var lastErr error

	for attempt := 0; attempt < f.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			f.logger.Warn("retrying fetch",
				"url", url, "attempt", attempt+1, "max", f.opts.MaxRetries, "backoff", backoff)
			f.sleep(backoff)
		}

		if err := ctx.Err(); err != nil {
			f.state = StateIdle
			return "", err
		}

		html, err := f.attempt(url)
		if err == nil {
			f.sleep(f.opts.RequestDelay)
			f.state = StateIdle
			return html, nil
		}

		lastErr = err
		f.logger.Error("fetch attempt failed", "url", url, "attempt", attempt+1, "error", err)
		f.teardown()
	}

	f.state = StateIdle
	return "", &RetrievalError{URL: url, Attempts: f.opts.MaxRetries, Err: lastErr}
}

func (f *Fetcher) attempt(url string) (string, error) {
	sess, err := f.ensureSession()
	if err != nil {
		return "", fmt.Errorf("initialize session: %w", err)
	}

	f.state = StateNavigating
	if err := sess.Navigate(url); err != nil {
		return "", fmt.Errorf("navigate: %w", err)
	}

	sess.DismissConsent()

	f.state = StateWaitingForContent
	if err := sess.WaitForContent(f.opts.WaitTimeout); err != nil {
		// Not fatal: return whatever is rendered and let extraction
		// degrade gracefully.
		f.logger.Warn("timed out waiting for content, using current markup", "url", url)
		f.state = StateTimeoutFallback
	} else {
		if f.opts.ScrollToBottom {
			sess.ScrollToBottom()
		}
		f.state = StateSuccess
	}

	html, err := sess.Content()
	if err != nil {
		return "", fmt.Errorf("read page content: %w", err)
	}
	return html, nil
}

func (f *Fetcher) ensureSession() (Session, error) {
	if f.session != nil {
		return f.session, nil
	}
	sess, err := f.factory()
	if err != nil {
		return nil, err
	}
	f.session = sess
	return sess, nil
}

// teardown discards the active session so the next attempt starts clean.
func (f *Fetcher) teardown() {
	f.state = StateReinitializing
	if f.session == nil {
		return
	}
	if err := f.session.Close(); err != nil {
		f.logger.Warn("error closing session", "error", err)
	}
	f.session = nil
}

// Close releases the active session, if any.
func (f *Fetcher) Close() error {
	if f.session == nil {
		return nil
	}
	err := f.session.Close()
	f.session = nil
	f.state = StateIdle
	return err
}
