package transport

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
)

func TestInFlightRegistryLifecycle(t *testing.T) {
	t.Run("cancel fires the registered func once", func(t *testing.T) {
		r := NewInFlightRegistry()
		fired := 0
		r.Register("conv_live", func() { fired++ })

		if !r.Cancel("conv_live") {
			t.Fatal("Cancel returned false for a registered conversation")
		}
		if fired != 1 {
			t.Fatalf("cancel func fired %d times, want 1", fired)
		}
		if r.Cancel("conv_live") {
			t.Error("second Cancel returned true, want false")
		}
		if fired != 1 {
			t.Errorf("cancel func fired %d times after double cancel, want 1", fired)
		}
	})

	t.Run("cancel of unknown conversation is a no-op", func(t *testing.T) {
		r := NewInFlightRegistry()
		if r.Cancel("conv_missing") {
			t.Error("Cancel returned true for an unknown conversation")
		}
	})

	t.Run("remove forgets without cancelling", func(t *testing.T) {
		r := NewInFlightRegistry()
		fired := false
		r.Register("conv_done", func() { fired = true })

		r.Remove("conv_done")

		if fired {
			t.Error("Remove invoked the cancel func")
		}
		if r.Cancel("conv_done") {
			t.Error("Cancel returned true after Remove")
		}
	})

	t.Run("remove of unknown conversation is a no-op", func(t *testing.T) {
		r := NewInFlightRegistry()
		r.Remove("conv_missing")
	})

	t.Run("re-register after remove works", func(t *testing.T) {
		r := NewInFlightRegistry()
		r.Register("conv_again", func() {})
		r.Remove("conv_again")

		fired := false
		r.Register("conv_again", func() { fired = true })
		if !r.Cancel("conv_again") || !fired {
			t.Error("re-registered conversation was not cancellable")
		}
	})
}

func TestInFlightRegistryConcurrency(t *testing.T) {
	r := NewInFlightRegistry()
	const n = 128

	var fired atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			r.Register(id, func() { fired.Add(1) })
		}(fmt.Sprintf("conv_%03d", i))
	}
	wg.Wait()

	// Cancel the even half and Remove the odd half in parallel.
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("conv_%03d", i)
			if i%2 == 0 {
				r.Cancel(id)
			} else {
				r.Remove(id)
			}
		}(i)
	}
	wg.Wait()

	if got := fired.Load(); got != n/2 {
		t.Errorf("cancel funcs fired = %d, want %d", got, n/2)
	}
}
