package approval

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

type testClock struct {
	mu  sync.Mutex
	cur time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.cur = c.cur.Add(d)
	c.mu.Unlock()
}

func newTestQueue() (*Queue, *testClock) {
	clk := &testClock{cur: time.Unix(1_700_000_000, 0)}
	q := NewQueue(nil)
	q.now = clk.Now
	return q, clk
}

func connReq(origin, window string) Request {
	return Request{Origin: origin, WindowID: window, Kind: KindConnection}
}

func TestEnqueueAssignsIdentityAndDeadline(t *testing.T) {
	q, clk := newTestQueue()

	p, err := q.Enqueue(Request{
		Origin:   "https://app.example",
		WindowID: "w1",
		Kind:     KindTransaction,
		Transaction: &TransactionPayload{
			From: "0xabc", To: "0xdef", Value: "1000000000000000000", ValueEther: "1", GasLimit: 21000,
		},
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if p.ID() == "" {
		t.Fatal("expected generated id")
	}
	req := p.Request()
	if req.Status != StatusPending {
		t.Fatalf("status = %s, want pending", req.Status)
	}
	if got, want := req.Deadline, clk.Now().Add(DefaultTTL); !got.Equal(want) {
		t.Fatalf("deadline = %v, want %v", got, want)
	}
	if req.Transaction == nil || req.Transaction.GasLimit != 21000 {
		t.Fatal("transaction payload not carried through")
	}
}

func TestApproveDeliversOutcomeWithData(t *testing.T) {
	q, _ := newTestQueue()
	p, err := q.Enqueue(connReq("https://app.example", "w1"))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	data := json.RawMessage(`{"password":"hunter2"}`)
	if err := q.Respond(p.ID(), true, data); err != nil {
		t.Fatalf("respond: %v", err)
	}

	select {
	case out := <-p.Done():
		if out.Decision != DecisionApproved {
			t.Fatalf("decision = %s, want approved", out.Decision)
		}
		if string(out.Data) != string(data) {
			t.Fatalf("data = %s, want %s", out.Data, data)
		}
	default:
		t.Fatal("outcome not delivered")
	}
}

func TestRejectDeliversOutcome(t *testing.T) {
	q, _ := newTestQueue()
	p, _ := q.Enqueue(connReq("https://app.example", "w1"))

	if err := q.Respond(p.ID(), false, nil); err != nil {
		t.Fatalf("respond: %v", err)
	}
	if out := <-p.Done(); out.Decision != DecisionRejected {
		t.Fatalf("decision = %s, want rejected", out.Decision)
	}
}

func TestSecondRespondIsNotFound(t *testing.T) {
	q, _ := newTestQueue()
	p, _ := q.Enqueue(connReq("https://app.example", "w1"))

	if err := q.Respond(p.ID(), true, nil); err != nil {
		t.Fatalf("first respond: %v", err)
	}
	if err := q.Respond(p.ID(), false, nil); err != ErrNotFound {
		t.Fatalf("second respond = %v, want ErrNotFound", err)
	}
	// The first decision stands.
	if out := <-p.Done(); out.Decision != DecisionApproved {
		t.Fatalf("decision = %s, want approved", out.Decision)
	}
}

func TestRespondUnknownIdIsNotFound(t *testing.T) {
	q, _ := newTestQueue()
	if err := q.Respond("no-such-id", true, nil); err != ErrNotFound {
		t.Fatalf("respond = %v, want ErrNotFound", err)
	}
}

func TestQueueCapRejectsEnqueue(t *testing.T) {
	q, _ := newTestQueue()
	for i := 0; i < maxPending; i++ {
		if _, err := q.Enqueue(connReq("https://app.example", "w1")); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	if _, err := q.Enqueue(connReq("https://app.example", "w1")); err != ErrQueueFull {
		t.Fatalf("enqueue past cap = %v, want ErrQueueFull", err)
	}
	if q.Len() != maxPending {
		t.Fatalf("len = %d, want %d", q.Len(), maxPending)
	}
}

func TestExpiryResolvesWaiter(t *testing.T) {
	q, clk := newTestQueue()
	p, _ := q.Enqueue(connReq("https://app.example", "w1"))

	clk.Advance(DefaultTTL + time.Second)

	// Lazy sweep runs on any access.
	if got := q.ListPending(); len(got) != 0 {
		t.Fatalf("pending = %d, want 0", len(got))
	}
	if out := <-p.Done(); out.Decision != DecisionExpired {
		t.Fatalf("decision = %s, want expired", out.Decision)
	}
	if err := q.Respond(p.ID(), true, nil); err != ErrNotFound {
		t.Fatalf("respond after expiry = %v, want ErrNotFound", err)
	}
}

func TestExpiryFreesCapacity(t *testing.T) {
	q, clk := newTestQueue()
	for i := 0; i < maxPending; i++ {
		q.Enqueue(connReq("https://app.example", "w1"))
	}
	clk.Advance(DefaultTTL + time.Second)

	if _, err := q.Enqueue(connReq("https://app.example", "w1")); err != nil {
		t.Fatalf("enqueue after expiry: %v", err)
	}
	if q.Len() != 1 {
		t.Fatalf("len = %d, want 1", q.Len())
	}
}

func TestCancelWindowRejectsOnlyThatWindow(t *testing.T) {
	q, _ := newTestQueue()
	p1, _ := q.Enqueue(connReq("https://app.example", "w1"))
	p2, _ := q.Enqueue(connReq("https://app.example", "w1"))
	p3, _ := q.Enqueue(connReq("https://other.example", "w2"))

	if n := q.CancelWindow("w1"); n != 2 {
		t.Fatalf("canceled = %d, want 2", n)
	}
	for _, p := range []*Pending{p1, p2} {
		if out := <-p.Done(); out.Decision != DecisionRejected {
			t.Fatalf("decision = %s, want rejected", out.Decision)
		}
	}
	select {
	case <-p3.Done():
		t.Fatal("other window resolved unexpectedly")
	default:
	}

	got := q.ListPending()
	if len(got) != 1 || got[0].ID != p3.ID() {
		t.Fatalf("pending = %+v, want only %s", got, p3.ID())
	}
}

func TestListPendingArrivalOrder(t *testing.T) {
	q, clk := newTestQueue()
	var ids []string
	for i := 0; i < 3; i++ {
		p, _ := q.Enqueue(connReq("https://app.example", "w1"))
		ids = append(ids, p.ID())
		clk.Advance(time.Second)
	}

	got := q.ListPending()
	if len(got) != 3 {
		t.Fatalf("pending = %d, want 3", len(got))
	}
	for i, r := range got {
		if r.ID != ids[i] {
			t.Fatalf("order[%d] = %s, want %s", i, r.ID, ids[i])
		}
	}
}

func TestListPendingForWindow(t *testing.T) {
	q, _ := newTestQueue()
	q.Enqueue(connReq("https://app.example", "w1"))
	p, _ := q.Enqueue(connReq("https://other.example", "w2"))

	got := q.ListPendingForWindow("w2")
	if len(got) != 1 || got[0].ID != p.ID() {
		t.Fatalf("window pending = %+v, want only %s", got, p.ID())
	}
}

func TestOnResolveObservesEveryTerminalState(t *testing.T) {
	q, clk := newTestQueue()

	var mu sync.Mutex
	seen := map[string]Decision{}
	q.OnResolve(func(req Request, out Outcome) {
		mu.Lock()
		seen[req.ID] = out.Decision
		mu.Unlock()
	})

	pa, _ := q.Enqueue(connReq("https://app.example", "w1"))
	pr, _ := q.Enqueue(connReq("https://app.example", "w1"))
	pe, _ := q.Enqueue(connReq("https://app.example", "w1"))

	q.Respond(pa.ID(), true, nil)
	q.Respond(pr.ID(), false, nil)
	clk.Advance(DefaultTTL + time.Second)
	q.ListPending()

	mu.Lock()
	defer mu.Unlock()
	if seen[pa.ID()] != DecisionApproved || seen[pr.ID()] != DecisionRejected || seen[pe.ID()] != DecisionExpired {
		t.Fatalf("observed = %v", seen)
	}
}

func TestConcurrentRespondResolvesOnce(t *testing.T) {
	q, _ := newTestQueue()
	p, _ := q.Enqueue(connReq("https://app.example", "w1"))

	var wg sync.WaitGroup
	var mu sync.Mutex
	okCount := 0
	for i := 0; i < 10; i++ {
		approved := i%2 == 0
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := q.Respond(p.ID(), approved, nil); err == nil {
				mu.Lock()
				okCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if okCount != 1 {
		t.Fatalf("successful responds = %d, want 1", okCount)
	}
	select {
	case <-p.Done():
	default:
		t.Fatal("outcome not delivered")
	}
	select {
	case <-p.Done():
		t.Fatal("outcome delivered twice")
	default:
	}
}
