package ghost

import (
	"errors"
	"testing"

	"github.com/danmuck/ghostnet/internal/testutil/testlog"
)

func TestParentEchoAndAdd1Scenario(t *testing.T) {
	testlog.Start(t)
	events := make([]string, 0)
	parent, err := NewParent[testRequest, testResponse, echoEvent, Ack]("root", newTestActor(), func(msg *Message[echoEvent, Ack]) error {
		events = append(events, msg.Take().Text)
		return nil
	})
	if err != nil {
		t.Fatalf("new parent: %v", err)
	}

	if err := parent.Publish(printRequest{Text: "zombies"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	calls := 0
	var got testResponse
	var gotErr error
	if _, err := parent.Request(add1Request{Value: 42}, func(resp testResponse, err error) {
		calls++
		got = resp
		gotErr = err
	}); err != nil {
		t.Fatalf("request: %v", err)
	}

	work := make([]bool, 0, 4)
	for i := 0; i < 4; i++ {
		w, err := parent.Process()
		if err != nil {
			t.Fatalf("process %d: %v", i, err)
		}
		if !parent.Attached() {
			t.Fatalf("child left detached after process %d", i)
		}
		work = append(work, w)
	}

	if len(events) != 1 || events[0] != "echo: zombies" {
		t.Fatalf("unexpected event log: %v", events)
	}
	if calls != 1 {
		t.Fatalf("expected continuation once, got %d", calls)
	}
	if gotErr != nil || got.Value != 43 {
		t.Fatalf("unexpected add1 outcome: %+v err=%v", got, gotErr)
	}
	if !work[0] {
		t.Fatalf("first process should report work")
	}
	if work[3] {
		t.Fatalf("process after resolution should report no work")
	}
	if parent.Pending() != 0 {
		t.Fatalf("expected no pending requests, got %d", parent.Pending())
	}
}

func TestParentWithoutHandlerKeepsMessagesForDrain(t *testing.T) {
	testlog.Start(t)
	parent, err := NewParent[testRequest, testResponse, echoEvent, Ack]("root", newTestActor(), nil)
	if err != nil {
		t.Fatalf("new parent: %v", err)
	}
	for _, text := range []string{"a", "b", "c"} {
		if err := parent.Publish(printRequest{Text: text}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	if _, err := parent.Process(); err != nil {
		t.Fatalf("process: %v", err)
	}
	msgs := parent.Drain()
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	for i, want := range []string{"echo: a", "echo: b", "echo: c"} {
		if got := msgs[i].Take().Text; got != want {
			t.Fatalf("message %d out of order: %q", i, got)
		}
	}
	if len(parent.Drain()) != 0 {
		t.Fatalf("drain should empty the queue")
	}
}

func TestNewParentRejectsTakenEndpoint(t *testing.T) {
	testlog.Start(t)
	actor := newTestActor()
	if _, err := NewParent[testRequest, testResponse, echoEvent, Ack]("first", actor, nil); err != nil {
		t.Fatalf("first parent: %v", err)
	}
	_, err := NewParent[testRequest, testResponse, echoEvent, Ack]("second", actor, nil)
	if !errors.Is(err, ErrEndpointTaken) {
		t.Fatalf("expected ErrEndpointTaken, got %v", err)
	}
}

func TestParentProcessReentryFaults(t *testing.T) {
	testlog.Start(t)
	var parent *Parent[testRequest, testResponse, echoEvent, Ack, *testActor]
	var err error
	parent, err = NewParent[testRequest, testResponse, echoEvent, Ack]("root", newTestActor(), func(msg *Message[echoEvent, Ack]) error {
		msg.Take()
		_, err := parent.Process()
		return err
	})
	if err != nil {
		t.Fatalf("new parent: %v", err)
	}
	if err := parent.Publish(printRequest{Text: "again"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	expectFault(t, "process re-entered", func() {
		_, _ = parent.Process()
	})
	if !parent.Attached() {
		t.Fatalf("child must be reattached after fault")
	}
}

func TestParentActorAccessibleBetweenTicks(t *testing.T) {
	testlog.Start(t)
	parent, err := NewParent[testRequest, testResponse, echoEvent, Ack]("root", newTestActor(), nil)
	if err != nil {
		t.Fatalf("new parent: %v", err)
	}
	_ = parent.Publish(printRequest{Text: "x"})
	if _, err := parent.Process(); err != nil {
		t.Fatalf("process: %v", err)
	}
	if parent.Actor().handled != 1 {
		t.Fatalf("expected actor to have handled one message, got %d", parent.Actor().handled)
	}
}

func TestParentCloseFailsPendingOnce(t *testing.T) {
	testlog.Start(t)
	parent, err := NewParent[testRequest, testResponse, echoEvent, Ack]("root", newTestActor(), nil)
	if err != nil {
		t.Fatalf("new parent: %v", err)
	}
	calls := 0
	var gotErr error
	if _, err := parent.Request(add1Request{Value: 1}, func(_ testResponse, err error) {
		calls++
		gotErr = err
	}); err != nil {
		t.Fatalf("request: %v", err)
	}
	parent.Close()
	if _, err := parent.Process(); err != nil {
		t.Fatalf("process after close: %v", err)
	}
	if calls != 1 || !errors.Is(gotErr, ErrChannelClosed) {
		t.Fatalf("expected one ErrChannelClosed callback, calls=%d err=%v", calls, gotErr)
	}
	if err := parent.Publish(printRequest{Text: "late"}); !errors.Is(err, ErrChannelClosed) {
		t.Fatalf("expected publish on closed channel to fail, got %v", err)
	}
}
