package usecase

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"chatline/internal/domain"
)

func TestSendGuardBasic(t *testing.T) {
	g := NewSendGuard()

	release, err := g.TryAcquire("session-1")
	if err != nil {
		t.Fatalf("TryAcquire: %v", err)
	}
	if !g.Busy("session-1") || g.ActiveCount() != 1 {
		t.Errorf("Busy = %v, ActiveCount = %d", g.Busy("session-1"), g.ActiveCount())
	}

	if _, err := g.TryAcquire("session-1"); !errors.Is(err, domain.ErrSendInFlight) {
		t.Errorf("second TryAcquire error = %v, want ErrSendInFlight", err)
	}

	other, err := g.TryAcquire("session-2")
	if err != nil {
		t.Fatalf("other session: %v", err)
	}
	other()

	release()
	release() // idempotent
	if g.Busy("session-1") || g.ActiveCount() != 0 {
		t.Errorf("after release: Busy = %v, ActiveCount = %d", g.Busy("session-1"), g.ActiveCount())
	}

	again, err := g.TryAcquire("session-1")
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	again()
}

func TestSendGuardConcurrent(t *testing.T) {
	g := NewSendGuard()
	var (
		wg       sync.WaitGroup
		acquired atomic.Int32
		start    = make(chan struct{})
		releases = make(chan func(), 50)
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if release, err := g.TryAcquire("same"); err == nil {
				acquired.Add(1)
				releases <- release
			}
		}()
	}
	close(start)
	wg.Wait()
	close(releases)

	if acquired.Load() != 1 {
		t.Errorf("acquired = %d, want exactly 1", acquired.Load())
	}
	for r := range releases {
		r()
	}
	if g.ActiveCount() != 0 {
		t.Errorf("ActiveCount = %d", g.ActiveCount())
	}
}
