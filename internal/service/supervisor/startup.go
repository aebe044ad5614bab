package supervisor

import (
	"context"
	"sync"
)

// Startup settles once per spawned process: nil when the backend is ready or
// exited cleanly, a *ProcessExitedError otherwise.
type Startup struct {
	once sync.Once
	done chan struct{}
	err  error
}

func newStartup() *Startup {
	return &Startup{done: make(chan struct{})}
}

// resolve settles the startup and reports whether this call did it.
func (s *Startup) resolve(err error) bool {
	settled := false

	s.once.Do(func() {
		s.err = err
		settled = true

		close(s.done)
	})

	return settled
}

// Done is closed when the startup settles.
func (s *Startup) Done() <-chan struct{} {
	return s.done
}

// Err returns the outcome after Done is closed and nil before.
func (s *Startup) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Wait blocks until the startup settles or ctx is done.
func (s *Startup) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return s.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
