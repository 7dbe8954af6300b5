package core

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/valed-dm/chatroom-server/internal/protocol"
)

func TestRegisterSendsAcknowledgement(t *testing.T) {
	r := NewConnectionRegistry()
	c := newFakeConn("alice")

	id, err := r.Register(c)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if id.String() != "alice:127.0.0.1" {
		t.Fatalf("unexpected identity %q", id.String())
	}
	if !r.Contains(c) || r.Len() != 1 {
		t.Fatal("connection not registered")
	}

	evs := c.events(t)
	if len(evs) != 1 {
		t.Fatalf("expected one ack, got %d", len(evs))
	}
	want := "Client alice:127.0.0.1 added to connected clients"
	if evs[0].Type != protocol.TypeSystem || evs[0].Content != want {
		t.Fatalf("unexpected ack: %#v", evs[0])
	}
	if evs[0].Timestamp == "" {
		t.Fatal("ack has no timestamp")
	}
}

func TestRegisterFailedAckLeavesNoEntry(t *testing.T) {
	r := NewConnectionRegistry()
	c := newFakeConn("bob")
	c.setFail(true)

	_, err := r.Register(c)
	if err == nil || errors.Is(err, ErrRegistryClosed) {
		t.Fatalf("expected acknowledgement failure, got %v", err)
	}
	if r.Contains(c) || r.Len() != 0 {
		t.Fatal("dead connection still registered")
	}
}

func TestUnregisterIsIdempotent(t *testing.T) {
	r := NewConnectionRegistry()
	c := newFakeConn("carol")
	r.Register(c)

	if id := r.Unregister(c); id.Token != "carol" {
		t.Fatalf("unexpected identity %#v", id)
	}
	if id := r.Unregister(c); id.Token != "carol" {
		t.Fatalf("unexpected identity on second unregister %#v", id)
	}
	r.Unregister(newFakeConn("never"))
	if r.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", r.Len())
	}
}

func TestCloseRefusesLaterRegistrations(t *testing.T) {
	r := NewConnectionRegistry()
	early := newFakeConn("early")
	if _, err := r.Register(early); err != nil {
		t.Fatalf("register: %v", err)
	}

	snap := r.Close("Planned maintenance")
	if len(snap) != 1 || snap[0] != Conn(early) {
		t.Fatalf("unexpected snapshot %#v", snap)
	}

	late := newFakeConn("late")
	if _, err := r.Register(late); !errors.Is(err, ErrRegistryClosed) {
		t.Fatalf("expected ErrRegistryClosed, got %v", err)
	}
	if r.Contains(late) || late.count() != 0 {
		t.Fatal("refused connection was registered or acknowledged")
	}

	r.Close("second reason")
	if reason, closed := r.ClosedReason(); !closed || reason != "Planned maintenance" {
		t.Fatalf("unexpected close state %q %v", reason, closed)
	}
}

func TestListIsSnapshotUnderConcurrentUnregister(t *testing.T) {
	r := NewConnectionRegistry()
	conns := make([]*fakeConn, 40)
	for i := range conns {
		conns[i] = newFakeConn(fmt.Sprintf("c%d", i))
		r.Register(conns[i])
	}

	snap := r.List()
	var wg sync.WaitGroup
	for _, c := range conns {
		wg.Add(1)
		go func(c *fakeConn) {
			defer wg.Done()
			r.Unregister(c)
		}(c)
	}
	wg.Wait()

	if len(snap) != len(conns) {
		t.Fatalf("snapshot length changed: %d", len(snap))
	}
	if r.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", r.Len())
	}
}

func TestRegistryBroadcastIsolatesFailures(t *testing.T) {
	r := NewConnectionRegistry()
	a, b := newFakeConn("a"), newFakeConn("b")
	r.Register(a)
	r.Register(b)
	b.setFail(true)

	d := r.Broadcast(protocol.Shutdown("Planned maintenance"))
	if d.Recipients != 2 || d.Delivered != 1 || d.Failed != 1 {
		t.Fatalf("unexpected delivery: %#v", d)
	}
	evs := a.events(t)
	last := evs[len(evs)-1]
	if last.Type != protocol.TypeDisconnect || last.Reason != "Planned maintenance" {
		t.Fatalf("unexpected event: %#v", last)
	}
}

type panicConn struct{ *fakeConn }

func (panicConn) Send([]byte) error { panic("boom") }

func TestFanoutRecoversPanickingSend(t *testing.T) {
	ok := newFakeConn("ok")
	d := Fanout([]Conn{panicConn{newFakeConn("bad")}, ok}, []byte(`{"type":"system"}`))
	if d.Delivered != 1 || d.Failed != 1 {
		t.Fatalf("unexpected delivery: %#v", d)
	}
	if ok.count() != 1 {
		t.Fatal("healthy peer did not receive payload")
	}
}
