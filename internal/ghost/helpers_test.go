package ghost

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

type testRequest interface {
	isTestRequest()
}

type printRequest struct {
	Text string
}

type add1Request struct {
	Value int
}

func (printRequest) isTestRequest() {}
func (add1Request) isTestRequest()  {}

type testResponse struct {
	Value int
}

type echoEvent struct {
	Text string
}

type testActor struct {
	Hosted[testRequest, testResponse, echoEvent, Ack]
	handled int
}

func newTestActor(opts ...EndpointOption) *testActor {
	return &testActor{
		Hosted: NewHosted[testRequest, testResponse, echoEvent, Ack]("test_actor", opts...),
	}
}

func (a *testActor) Process() (WorkWasDone, error) {
	defer a.Guard.Enter()()
	return a.Self().ProcessWith(a.handle)
}

func (a *testActor) handle(msg *Message[testRequest, testResponse]) error {
	a.handled++
	switch req := msg.Take().(type) {
	case printRequest:
		return a.Self().Publish(echoEvent{Text: "echo: " + req.Text})
	case add1Request:
		return msg.Respond(testResponse{Value: req.Value + 1}, nil)
	default:
		return fmt.Errorf("unexpected request %T", req)
	}
}

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func expectFault(t *testing.T, contains string, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected fault containing %q", contains)
		}
		msg, ok := r.(string)
		if !ok || !strings.Contains(msg, contains) {
			t.Fatalf("unexpected fault: %v", r)
		}
	}()
	fn()
}
