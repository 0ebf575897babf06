package realtime

import (
	"testing"
	"time"

	"github.com/loopmarked/dashboard/internal/store"
)

func mustReceive(t *testing.T, ch <-chan store.Message) store.Message {
	t.Helper()

	select {
	case msg, ok := <-ch:
		if !ok {
			t.Fatalf("subscription closed before delivery")
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("expected message not received")
	}
	return store.Message{}
}

func mustBeQuiet(t *testing.T, ch <-chan store.Message) {
	t.Helper()

	select {
	case msg, ok := <-ch:
		if ok {
			t.Fatalf("unexpected delivery: %+v", msg)
		}
	case <-time.After(50 * time.Millisecond):
	}
}
