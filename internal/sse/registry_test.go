package sse

import (
	"context"
	"testing"
)

func TestRegistryStopCancelsActiveStream(t *testing.T) {
	r := NewStreamRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	r.Register("chat-1", cancel)

	if !r.Stop("chat-1") {
		t.Fatal("Stop returned false for an active stream")
	}
	if ctx.Err() == nil {
		t.Fatal("stream context was not canceled")
	}
	if r.Len() != 0 {
		t.Fatalf("registry len = %d after stop", r.Len())
	}
}

func TestRegistryStopMissingIsNoOp(t *testing.T) {
	r := NewStreamRegistry()
	if r.Stop("nope") {
		t.Fatal("Stop returned true for an unknown chat")
	}
}

func TestRegistryUnregisterOnlyRemovesOwnEntry(t *testing.T) {
	r := NewStreamRegistry()
	_, cancel1 := context.WithCancel(context.Background())
	old := r.Register("chat-1", cancel1)

	ctx2, cancel2 := context.WithCancel(context.Background())
	r.Register("chat-1", cancel2)

	// The replaced stream finishing must not evict its successor.
	r.Unregister(old)
	if r.Len() != 1 {
		t.Fatalf("registry len = %d, want 1", r.Len())
	}
	if ctx2.Err() != nil {
		t.Fatal("successor stream was canceled")
	}
}

func TestRegistryRegisterCancelsPrevious(t *testing.T) {
	r := NewStreamRegistry()
	ctx1, cancel1 := context.WithCancel(context.Background())
	r.Register("chat-1", cancel1)

	_, cancel2 := context.WithCancel(context.Background())
	entry := r.Register("chat-1", cancel2)

	if ctx1.Err() == nil {
		t.Fatal("previous stream was not canceled")
	}

	r.Unregister(entry)
	if r.Len() != 0 {
		t.Fatalf("registry len = %d after steady state", r.Len())
	}
}

func TestRegistryUnregisterNil(t *testing.T) {
	r := NewStreamRegistry()
	r.Unregister(nil)
}
