package acmewin

import (
	"context"
	"fmt"
	"time"

	"9fans.net/go/acme"
	"go.uber.org/zap"

	"github.com/cptaffe/acme-chroma/internal/logger"
)

// Watch adds every window acme already has, then tracks window creation and
// deletion through acme's log.  It returns nil once ctx is done and an error
// if the log cannot be opened or read.
//
// Listing and opening the log are retried a few times: a daemon restarted
// right after a crash can find acme still releasing the old connection.
func Watch(ctx context.Context, s *Server) error {
	l := logger.L(ctx)

	wins, err := retryOn(ctx, 10, 200*time.Millisecond, acme.Windows)
	if err != nil {
		return fmt.Errorf("list windows: %w", err)
	}
	for _, w := range wins {
		s.AddWin(w.ID)
	}
	l.Info("mirroring windows", zap.Int("count", len(wins)))

	lr, err := retryOn(ctx, 10, 200*time.Millisecond, acme.Log)
	if err != nil {
		return fmt.Errorf("open acme log: %w", err)
	}
	defer lr.Close()

	evs, errc := readLog(ctx, lr)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read acme log: %w", err)
		case ev := <-evs:
			switch ev.Op {
			case "new":
				s.AddWin(ev.ID)
			case "del":
				s.DelWin(ev.ID)
			}
		}
	}
}

// logReader is the part of *acme.LogReader Watch uses.
type logReader interface {
	Read() (acme.LogEvent, error)
}

// readLog feeds log events to the returned channel until a read fails.  The
// reader goroutine may outlive ctx by one blocked Read; closing the log
// releases it.
func readLog(ctx context.Context, lr logReader) (<-chan acme.LogEvent, <-chan error) {
	evs := make(chan acme.LogEvent)
	errc := make(chan error, 1)
	go func() {
		for {
			ev, err := lr.Read()
			if err != nil {
				errc <- err
				return
			}
			select {
			case evs <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return evs, errc
}

// retryOn runs fn up to attempts times, sleeping delay after each failure,
// and returns the first success or the last error.  It gives up early with
// ctx.Err() when ctx is done.
func retryOn[T any](ctx context.Context, attempts int, delay time.Duration, fn func() (T, error)) (T, error) {
	var zero T
	t := time.NewTimer(delay)
	t.Stop()
	defer t.Stop()

	var err error
	for i := 0; i < attempts; i++ {
		var v T
		if v, err = fn(); err == nil {
			return v, nil
		}
		if i == attempts-1 {
			break
		}
		t.Reset(delay)
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-t.C:
		}
	}
	if ctx.Err() != nil {
		return zero, ctx.Err()
	}
	return zero, err
}
