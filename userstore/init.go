package userstore

import "context"

type (
	State int32

	// Init tracks one Initialize call. Done is closed once the store is
	// either Ready or Failed, Err reports the failure (if any) after that.
	Init struct {
		done chan struct{}
		err  error
	}
)

const (
	Uninitialized State = iota
	OpeningBacking
	OpeningTable
	Ready
	Failed
	Closed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case OpeningBacking:
		return "opening-backing"
	case OpeningTable:
		return "opening-table"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	case Closed:
		return "closed"
	}
	return "unknown"
}

func newInit() *Init {
	return &Init{done: make(chan struct{})}
}

func failedInit(err error) *Init {
	i := newInit()
	i.finish(err)
	return i
}

func (i *Init) finish(err error) {
	i.err = err
	close(i.done)
}

func (i *Init) Done() <-chan struct{} {
	return i.done
}

// Err returns nil while initialization is still running
func (i *Init) Err() error {
	select {
	case <-i.done:
		return i.err
	default:
		return nil
	}
}

// Wait blocks until initialization completes or ctx is done
func (i *Init) Wait(ctx context.Context) error {
	select {
	case <-i.done:
		return i.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
