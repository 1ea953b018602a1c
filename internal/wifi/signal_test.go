package wifi

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestSignalSetAndBits(t *testing.T) {
	s := NewSignal()
	if s.Bits() != 0 {
		t.Errorf("initial bits: got %b", s.Bits())
	}
	s.Set(FlagFailed)
	s.Set(FlagFailed)
	if s.Bits() != FlagFailed {
		t.Errorf("got %b, want %b", s.Bits(), FlagFailed)
	}
}

func TestSignalWaitAlreadySet(t *testing.T) {
	s := NewSignal()
	s.Set(FlagConnected)

	bits, err := s.Wait(context.Background(), FlagConnected|FlagFailed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bits != FlagConnected {
		t.Errorf("got %b", bits)
	}
}

func TestSignalWaitIgnoresOtherFlags(t *testing.T) {
	s := NewSignal()
	s.Set(FlagFailed)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := s.Wait(ctx, FlagConnected); err == nil {
		t.Error("Wait returned for a flag outside the mask")
	}
}

func TestSignalWakesAllWaiters(t *testing.T) {
	s := NewSignal()

	const waiters = 5
	var wg sync.WaitGroup
	results := make(chan Flags, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bits, _ := s.Wait(context.Background(), FlagConnected|FlagFailed)
			results <- bits
		}()
	}

	time.Sleep(10 * time.Millisecond)
	s.Set(FlagFailed)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("not all waiters woke")
	}
	close(results)
	for bits := range results {
		if bits != FlagFailed {
			t.Errorf("waiter saw %b, want %b", bits, FlagFailed)
		}
	}
}
