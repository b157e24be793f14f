package fetcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSession scripts one browser page. Error fields make the corresponding
// step fail; counters record what the fetcher actually did.
type fakeSession struct {
	html        string
	navigateErr error
	waitErr     error
	contentErr  error

	navigated []string
	consent   int
	scrolled  int
	closed    int
}

func (s *fakeSession) Navigate(url string) error {
	s.navigated = append(s.navigated, url)
	return s.navigateErr
}

func (s *fakeSession) WaitForContent(time.Duration) error { return s.waitErr }
func (s *fakeSession) DismissConsent()                    { s.consent++ }
func (s *fakeSession) ScrollToBottom()                    { s.scrolled++ }

func (s *fakeSession) Content() (string, error) {
	if s.contentErr != nil {
		return "", s.contentErr
	}
	return s.html, nil
}

func (s *fakeSession) Close() error {
	s.closed++
	return nil
}

// recordingClock captures sleep calls so backoff and politeness delays can be
// asserted without waiting.
type recordingClock struct {
	sleeps []time.Duration
}

func (c *recordingClock) sleep(d time.Duration) { c.sleeps = append(c.sleeps, d) }

func newTestFetcher(factory SessionFactory, opts Options) (*Fetcher, *recordingClock) {
	f := New(factory, opts)
	clock := &recordingClock{}
	f.sleep = clock.sleep
	return f, clock
}

func TestFetchSuccessFirstAttempt(t *testing.T) {
	sess := &fakeSession{html: "<html>ok</html>"}
	f, clock := newTestFetcher(func() (Session, error) { return sess, nil }, Options{
		MaxRetries:   3,
		RequestDelay: 2 * time.Second,
		WaitTimeout:  time.Second,
	})

	html, err := f.Fetch(context.Background(), "https://example.test/page")
	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", html)

	assert.Equal(t, []string{"https://example.test/page"}, sess.navigated)
	assert.Equal(t, 1, sess.consent)
	// Only the politeness delay, no backoff.
	assert.Equal(t, []time.Duration{2 * time.Second}, clock.sleeps)
	assert.Equal(t, StateIdle, f.State())
}

func TestFetchRetriesWithExponentialBackoff(t *testing.T) {
	factoryCalls := 0
	var sessions []*fakeSession
	factory := func() (Session, error) {
		factoryCalls++
		s := &fakeSession{navigateErr: errors.New("net::ERR_CONNECTION_RESET")}
		sessions = append(sessions, s)
		return s, nil
	}

	f, clock := newTestFetcher(factory, Options{
		MaxRetries:   3,
		RequestDelay: 2 * time.Second,
		WaitTimeout:  time.Second,
	})

	_, err := f.Fetch(context.Background(), "https://example.test/page")

	var retrievalErr *RetrievalError
	require.ErrorAs(t, err, &retrievalErr)
	assert.Equal(t, "https://example.test/page", retrievalErr.URL)
	assert.Equal(t, 3, retrievalErr.Attempts)

	// A fresh session per attempt; each failed attempt closes its session.
	assert.Equal(t, 3, factoryCalls)
	for _, s := range sessions {
		assert.Equal(t, 1, s.closed)
	}

	// Backoff doubles: 2s before attempt 2, 4s before attempt 3.
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, clock.sleeps)
}

func TestFetchRecoversAfterFailure(t *testing.T) {
	attempt := 0
	factory := func() (Session, error) {
		attempt++
		if attempt == 1 {
			return &fakeSession{navigateErr: errors.New("timeout")}, nil
		}
		return &fakeSession{html: "<html>recovered</html>"}, nil
	}

	f, _ := newTestFetcher(factory, Options{MaxRetries: 3, WaitTimeout: time.Second})

	html, err := f.Fetch(context.Background(), "https://example.test/page")
	require.NoError(t, err)
	assert.Equal(t, "<html>recovered</html>", html)
	assert.Equal(t, 2, attempt)
}

func TestFetchTimeoutFallbackReturnsCurrentMarkup(t *testing.T) {
	sess := &fakeSession{html: "<html>partial</html>", waitErr: errors.New("wait timeout")}
	f, _ := newTestFetcher(func() (Session, error) { return sess, nil }, Options{
		MaxRetries:     2,
		WaitTimeout:    time.Second,
		ScrollToBottom: true,
	})

	html, err := f.Fetch(context.Background(), "https://example.test/slow")
	require.NoError(t, err)
	assert.Equal(t, "<html>partial</html>", html)
	// The scroll loop is skipped when content never appeared.
	assert.Equal(t, 0, sess.scrolled)
}

func TestFetchScrollsOnSuccess(t *testing.T) {
	sess := &fakeSession{html: "<html>full</html>"}
	f, _ := newTestFetcher(func() (Session, error) { return sess, nil }, Options{
		MaxRetries:     1,
		WaitTimeout:    time.Second,
		ScrollToBottom: true,
	})

	_, err := f.Fetch(context.Background(), "https://example.test/page")
	require.NoError(t, err)
	assert.Equal(t, 1, sess.scrolled)
}

func TestFetchSessionReusedAcrossURLs(t *testing.T) {
	factoryCalls := 0
	sess := &fakeSession{html: "<html>ok</html>"}
	f, _ := newTestFetcher(func() (Session, error) {
		factoryCalls++
		return sess, nil
	}, Options{MaxRetries: 2, WaitTimeout: time.Second})

	_, err := f.Fetch(context.Background(), "https://example.test/a")
	require.NoError(t, err)
	_, err = f.Fetch(context.Background(), "https://example.test/b")
	require.NoError(t, err)

	assert.Equal(t, 1, factoryCalls)
	assert.Equal(t, []string{"https://example.test/a", "https://example.test/b"}, sess.navigated)
}

func TestFetchFactoryFailureCountsAsAttempt(t *testing.T) {
	factoryCalls := 0
	f, _ := newTestFetcher(func() (Session, error) {
		factoryCalls++
		return nil, errors.New("browser crashed")
	}, Options{MaxRetries: 2, WaitTimeout: time.Second})

	_, err := f.Fetch(context.Background(), "https://example.test/page")

	var retrievalErr *RetrievalError
	require.ErrorAs(t, err, &retrievalErr)
	assert.Equal(t, 2, factoryCalls)
}

func TestFetchContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f, _ := newTestFetcher(func() (Session, error) {
		t.Fatal("factory must not run after cancellation")
		return nil, nil
	}, Options{MaxRetries: 2, WaitTimeout: time.Second})

	_, err := f.Fetch(ctx, "https://example.test/page")
	require.ErrorIs(t, err, context.Canceled)
}

func TestRetrievalErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &RetrievalError{URL: "u", Attempts: 3, Err: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "after 3 attempts")
}
