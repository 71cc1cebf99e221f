// Package approval bridges untrusted dApp calls and the wallet UI: sensitive
// operations park here until the user decides, and every request resolves
// exactly once, as approved, rejected, or expired.
package approval

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("approval: request not found")
	ErrQueueFull = errors.New("approval: queue is full")
)

// Status of a request as shown to the UI.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
)

// Kind tags the request variant.
type Kind string

const (
	KindConnection    Kind = "connection"
	KindTransaction   Kind = "transaction"
	KindPersonalSign  Kind = "personalSign"
	KindTypedDataSign Kind = "typedDataSign"
	KindWatchAsset    Kind = "watchAsset"
	KindSwitchNetwork Kind = "switchNetwork"
	KindAddNetwork    Kind = "addNetwork"
)

// TransactionPayload carries everything the UI needs to render a faithful
// transaction preview.
type TransactionPayload struct {
	From       string `json:"from"`
	To         string `json:"to"`
	Value      string `json:"value"`      // wei, decimal
	ValueEther string `json:"valueEther"` // display form
	GasLimit   uint64 `json:"gasLimit"`
	GasPrice   string `json:"gasPrice,omitempty"` // wei, decimal
	Data       string `json:"data,omitempty"`
}

type PersonalSignPayload struct {
	Address string `json:"address"`
	Message string `json:"message"`
}

type TypedDataPayload struct {
	Address   string          `json:"address"`
	TypedData json.RawMessage `json:"typedData"`
}

type WatchAssetPayload struct {
	AssetType string `json:"assetType"`
	Address   string `json:"address"`
	Symbol    string `json:"symbol"`
	Decimals  uint8  `json:"decimals"`
	Image     string `json:"image,omitempty"`
}

type SwitchNetworkPayload struct {
	ChainID uint64 `json:"chainId"`
}

type AddNetworkPayload struct {
	ChainID        uint64 `json:"chainId"`
	ChainName      string `json:"chainName"`
	RPCURL         string `json:"rpcUrl"`
	CurrencySymbol string `json:"currencySymbol,omitempty"`
	ExplorerURL    string `json:"explorerUrl,omitempty"`
}

// Request is one pending decision. Exactly one payload pointer matching Kind
// is set.
type Request struct {
	ID       string `json:"id"`
	Origin   string `json:"origin"`
	WindowID string `json:"windowId"`
	Kind     Kind   `json:"kind"`

	Transaction   *TransactionPayload   `json:"transaction,omitempty"`
	PersonalSign  *PersonalSignPayload  `json:"personalSign,omitempty"`
	TypedData     *TypedDataPayload     `json:"typedData,omitempty"`
	WatchAsset    *WatchAssetPayload    `json:"watchAsset,omitempty"`
	SwitchNetwork *SwitchNetworkPayload `json:"switchNetwork,omitempty"`
	AddNetwork    *AddNetworkPayload    `json:"addNetwork,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	Deadline  time.Time `json:"deadline"`
	Status    Status    `json:"status"`
}

// Decision is the terminal resolution of a request.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
	DecisionExpired  Decision = "expired"
)

// Outcome is delivered to the waiting gateway call. Data carries whatever
// the UI attached on approval (an unlock password, a chosen account list).
type Outcome struct {
	Decision Decision
	Data     json.RawMessage
}

// Pending is the await handle returned by Enqueue. Done yields exactly one
// Outcome.
type Pending struct {
	req  Request
	done chan Outcome
}

func (p *Pending) ID() string          { return p.req.ID }
func (p *Pending) Request() Request    { return p.req }
func (p *Pending) Done() <-chan Outcome { return p.done }

type entry struct {
	req  Request
	done chan Outcome
}

const (
	// DefaultTTL is how long a request may stay pending before it expires.
	DefaultTTL = 5 * time.Minute
	// maxPending caps the queue; a dApp cannot stack unbounded prompts.
	maxPending = 10

	sweepTick = time.Second
)

// Queue holds pending requests and resolves each exactly once. Safe for
// concurrent Enqueue/Respond/Cancel from any number of goroutines.
type Queue struct {
	mu      sync.Mutex
	pending map[string]*entry
	ttl     time.Duration
	logger  *log.Logger

	// onEnqueue and onResolve observe the queue lifecycle (UI push, audit
	// log). Both are called outside the queue lock.
	onEnqueue func(Request)
	onResolve func(Request, Outcome)

	now   func() time.Time // test hook
	newID func() string
}

func NewQueue(logger *log.Logger) *Queue {
	return &Queue{
		pending: make(map[string]*entry),
		ttl:     DefaultTTL,
		logger:  logger,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// OnEnqueue registers an arrival observer. Call before the queue starts
// serving requests.
func (q *Queue) OnEnqueue(fn func(Request)) { q.onEnqueue = fn }

// OnResolve registers a resolution observer. Call before the queue starts
// serving requests.
func (q *Queue) OnResolve(fn func(Request, Outcome)) { q.onResolve = fn }

// SetTTL overrides the pending deadline. Call before the queue starts
// serving requests.
func (q *Queue) SetTTL(d time.Duration) { q.ttl = d }

type resolution struct {
	req     Request
	outcome Outcome
	done    chan Outcome
}

func (q *Queue) emit(rs []resolution) {
	for _, r := range rs {
		r.done <- r.outcome // buffered, never blocks
		if q.onResolve != nil {
			q.onResolve(r.req, r.outcome)
		}
		q.logf("resolved %s: kind=%s origin=%s decision=%s", r.req.ID, r.req.Kind, r.req.Origin, r.outcome.Decision)
	}
}

// Enqueue stores the request and returns an await handle immediately; the
// caller suspends on Pending.Done, not on the queue. ID, timestamps and
// status are assigned here.
func (q *Queue) Enqueue(req Request) (*Pending, error) {
	q.mu.Lock()
	expired := q.expireLocked(q.now())

	if len(q.pending) >= maxPending {
		q.mu.Unlock()
		q.emit(expired)
		return nil, ErrQueueFull
	}

	now := q.now()
	req.ID = q.newID()
	req.CreatedAt = now
	req.Deadline = now.Add(q.ttl)
	req.Status = StatusPending

	e := &entry{req: req, done: make(chan Outcome, 1)}
	q.pending[req.ID] = e
	q.mu.Unlock()

	q.emit(expired)
	if q.onEnqueue != nil {
		q.onEnqueue(req)
	}
	q.logf("enqueued %s: kind=%s origin=%s window=%s", req.ID, req.Kind, req.Origin, req.WindowID)
	return &Pending{req: req, done: e.done}, nil
}

// ListPending returns pending requests in arrival order.
func (q *Queue) ListPending() []Request {
	q.mu.Lock()
	expired := q.expireLocked(q.now())
	out := make([]Request, 0, len(q.pending))
	for _, e := range q.pending {
		out = append(out, e.req)
	}
	q.mu.Unlock()

	q.emit(expired)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// ListPendingForWindow returns pending requests for one window.
func (q *Queue) ListPendingForWindow(windowID string) []Request {
	all := q.ListPending()
	out := all[:0]
	for _, r := range all {
		if r.WindowID == windowID {
			out = append(out, r)
		}
	}
	return out
}

// Respond resolves a request. The second call for the same id returns
// ErrNotFound and has no further effect.
func (q *Queue) Respond(id string, approved bool, data json.RawMessage) error {
	q.mu.Lock()
	expired := q.expireLocked(q.now())

	e, ok := q.pending[id]
	if !ok {
		q.mu.Unlock()
		q.emit(expired)
		return ErrNotFound
	}
	delete(q.pending, id)
	if approved {
		e.req.Status = StatusApproved
	} else {
		e.req.Status = StatusRejected
	}
	rs := resolution{req: e.req, done: e.done, outcome: Outcome{Data: data}}
	if approved {
		rs.outcome.Decision = DecisionApproved
	} else {
		rs.outcome.Decision = DecisionRejected
	}
	q.mu.Unlock()

	q.emit(append(expired, rs))
	return nil
}

// Cancel withdraws a request (window closed, transport gone) and resolves
// its waiter as rejected.
func (q *Queue) Cancel(id string) error {
	return q.Respond(id, false, nil)
}

// CancelWindow rejects every pending request belonging to a window and
// returns how many it resolved.
func (q *Queue) CancelWindow(windowID string) int {
	q.mu.Lock()
	expired := q.expireLocked(q.now())
	var rs []resolution
	for id, e := range q.pending {
		if e.req.WindowID != windowID {
			continue
		}
		delete(q.pending, id)
		e.req.Status = StatusRejected
		rs = append(rs, resolution{req: e.req, done: e.done, outcome: Outcome{Decision: DecisionRejected}})
	}
	q.mu.Unlock()

	q.emit(append(expired, rs...))
	return len(rs)
}

// Len reports the number of pending requests.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Run sweeps for expired requests until ctx is done. Expiry also happens
// lazily on every queue access, so embedders that never call Run still see
// deadlines enforced eventually.
func (q *Queue) Run(ctx context.Context) error {
	ticker := time.NewTicker(sweepTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			q.mu.Lock()
			expired := q.expireLocked(q.now())
			q.mu.Unlock()
			q.emit(expired)
		}
	}
}

// expireLocked collects overdue entries for resolution. Caller must hold
// q.mu and emit the result after unlocking.
func (q *Queue) expireLocked(now time.Time) []resolution {
	var rs []resolution
	for id, e := range q.pending {
		if now.Before(e.req.Deadline) {
			continue
		}
		delete(q.pending, id)
		e.req.Status = StatusExpired
		rs = append(rs, resolution{req: e.req, done: e.done, outcome: Outcome{Decision: DecisionExpired}})
	}
	return rs
}

func (q *Queue) logf(format string, args ...any) {
	if q.logger != nil {
		q.logger.Printf(format, args...)
	}
}
