package events

import "testing"

func TestEmitDeliversToMatchingSubscribers(t *testing.T) {
	e := NewEmitter()
	var transfers, all int
	e.Subscribe(EventTransfer, func(Event) { transfers++ })
	e.SubscribeAll(func(Event) { all++ })

	e.Emit(Event{Type: EventTransfer})
	e.Emit(Event{Type: EventApproval})

	if transfers != 1 {
		t.Errorf("transfer subscriber: got %d calls want 1", transfers)
	}
	if all != 2 {
		t.Errorf("catch-all subscriber: got %d calls want 2", all)
	}
}

func TestEmitRecoversFromPanickingHandler(t *testing.T) {
	e := NewEmitter()
	called := false
	e.Subscribe(EventPropBought, func(Event) { panic("boom") })
	e.Subscribe(EventPropBought, func(Event) { called = true })

	e.Emit(Event{Type: EventPropBought})
	if !called {
		t.Error("handler after a panicking one should still run")
	}
}
