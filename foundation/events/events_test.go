package events_test

import (
	"testing"

	"github.com/ardanlabs/forkchain/foundation/events"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func Test_Events(t *testing.T) {
	t.Log("Given the need to fan out chain events.")
	{
		evts := events.New()

		ch1 := evts.Acquire("one")
		ch2 := evts.Acquire("two")
		if evts.Subscribers() != 2 {
			t.Fatalf("\t%s\tShould have 2 subscribers, got %d.", failed, evts.Subscribers())
		}
		t.Logf("\t%s\tShould have 2 subscribers.", success)

		evts.Send("forkset: Resolve: merged[1]")

		for _, ch := range []<-chan string{ch1, ch2} {
			if msg := <-ch; msg != "forkset: Resolve: merged[1]" {
				t.Fatalf("\t%s\tShould receive the event, got %q.", failed, msg)
			}
		}
		t.Logf("\t%s\tShould deliver the event to every subscriber.", success)

		for range 200 {
			evts.Send("flood")
		}
		t.Logf("\t%s\tShould not block when a subscriber falls behind.", success)

		if err := evts.Release("one"); err != nil {
			t.Fatalf("\t%s\tShould be able to release a subscriber: %s", failed, err)
		}
		if err := evts.Release("one"); err == nil {
			t.Fatalf("\t%s\tShould not release a subscriber twice.", failed)
		}
		t.Logf("\t%s\tShould release a subscriber once.", success)

		evts.Shutdown()
		for range ch2 {
		}
		if evts.Subscribers() != 0 {
			t.Fatalf("\t%s\tShould have no subscribers after shutdown.", failed)
		}
		t.Logf("\t%s\tShould close every channel on shutdown.", success)
	}
}
