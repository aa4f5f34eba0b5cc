package sensor

import (
	"sort"
	"testing"
)

type cancelLog struct{ ids []string }

func (c *cancelLog) cancel(id string) { c.ids = append(c.ids, id) }

func TestSubscriptionDeliverDisarmsTimeout(t *testing.T) {
	var log cancelLog
	sub := NewSubscription(log.cancel)
	sub.Add("a")
	sub.Add("b")
	sub.SetTimeout("timeout")

	if !sub.Deliver(false) {
		t.Fatalf("first Deliver rejected")
	}
	if len(log.ids) != 1 || log.ids[0] != "timeout" {
		t.Fatalf("cancelled = %v, want only the timeout", log.ids)
	}
	if sub.Timeout() {
		t.Fatalf("Timeout accepted after delivery")
	}
	if !sub.Deliver(false) {
		t.Fatalf("second non-final Deliver rejected")
	}
	if sub.Closed() {
		t.Fatalf("non-final delivery closed the subscription")
	}
}

func TestSubscriptionFinalDeliveryCloses(t *testing.T) {
	var log cancelLog
	sub := NewSubscription(log.cancel)
	sub.Add("a")
	sub.Add("b")

	if !sub.Deliver(true) {
		t.Fatalf("Deliver rejected")
	}
	if !sub.Closed() {
		t.Fatalf("final delivery did not close")
	}
	if sub.Deliver(false) || sub.Fail() || sub.Timeout() {
		t.Fatalf("transitions accepted after close")
	}
	sort.Strings(log.ids)
	if len(log.ids) != 2 || log.ids[0] != "a" || log.ids[1] != "b" {
		t.Fatalf("cancelled = %v", log.ids)
	}
}

func TestSubscriptionCloseIsIdempotent(t *testing.T) {
	var log cancelLog
	sub := NewSubscription(log.cancel)
	sub.Add("a")
	sub.SetTimeout("t")

	sub.Close()
	sub.Close()
	if len(log.ids) != 2 {
		t.Fatalf("cancelled = %v, want a and t once each", log.ids)
	}

	sub.Add("late")
	sub.SetTimeout("late-timeout")
	if len(log.ids) != 4 || log.ids[2] != "late" || log.ids[3] != "late-timeout" {
		t.Fatalf("events added after close not cancelled: %v", log.ids)
	}
}

func TestSubscriptionTimeoutWins(t *testing.T) {
	var log cancelLog
	sub := NewSubscription(log.cancel)
	sub.Add("a")
	sub.SetTimeout("t")

	if !sub.Timeout() {
		t.Fatalf("Timeout rejected")
	}
	if sub.Deliver(true) {
		t.Fatalf("Deliver accepted after timeout")
	}
}

func TestSubscriptionDoneForgetsEvent(t *testing.T) {
	var log cancelLog
	sub := NewSubscription(log.cancel)
	sub.Add("a")
	sub.Add("b")
	sub.Done("a")
	sub.Done("unknown")

	sub.Close()
	if len(log.ids) != 1 || log.ids[0] != "b" {
		t.Fatalf("cancelled = %v, want only b", log.ids)
	}
}

func TestSubscriptionTrackForgetsRunEvents(t *testing.T) {
	var log cancelLog
	sub := NewSubscription(log.cancel)

	var queued []func()
	schedule := func(f func()) string {
		queued = append(queued, f)
		return "tick"
	}
	ran := 0
	sub.Track(schedule, func() { ran++ })
	queued[0]()

	sub.Close()
	if ran != 1 {
		t.Fatalf("ran = %d, want 1", ran)
	}
	if len(log.ids) != 0 {
		t.Fatalf("cancelled = %v, want none after the event ran", log.ids)
	}
}
