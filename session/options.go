package session

import "time"

type (
	Option func(*Cache)

	// Observer receives counts of issued and evicted tokens,
	// *metrics.Recorder implements it.
	Observer interface {
		Issued()
		Evicted(reason string, n int)
	}

	nopObserver struct{}
)

func (nopObserver) Issued() {}

func (nopObserver) Evicted(string, int) {}

func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func WithTokenGenerator(gen func() (string, error)) Option {
	return func(c *Cache) { c.generate = gen }
}

// WithSweepInterval overrides the sweep period, which defaults to the idle timeout
func WithSweepInterval(d time.Duration) Option {
	return func(c *Cache) { c.interval = d }
}

func WithObserver(o Observer) Option {
	return func(c *Cache) { c.observer = o }
}
