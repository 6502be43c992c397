package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/target/scriptcheck/internal/domain/model"
)

// ErrWaiterRequired indicates a notifier cannot be constructed without a waiter.
var ErrWaiterRequired = errors.New("notifier waiter is required")

// Waiter blocks until a run of the given type was enqueued or ctx ends.
// The Postgres run repository implements it with LISTEN.
type Waiter interface {
	WaitForNotification(ctx context.Context, wt model.WorkflowType) error
}

// Notifier fans run availability out to idle workers.
type Notifier interface {
	Subscribe(wt model.WorkflowType) (func(), <-chan struct{})
	Notify(wt model.WorkflowType)
	StopAll()
}

// NotifierOptions configure the default notifier.
type NotifierOptions struct {
	Waiter     Waiter
	WaitWindow time.Duration
	Backoff    time.Duration
	Logger     *slog.Logger
}

// topic is the listener and subscriber set of one workflow type.
type topic struct {
	cancel context.CancelFunc
	subs   map[chan struct{}]struct{}
}

// DefaultNotifier runs one LISTEN loop per subscribed workflow type and
// wakes every subscriber of that type on each notification or wait timeout.
type DefaultNotifier struct {
	waiter     Waiter
	waitWindow time.Duration
	backoff    time.Duration
	logger     *slog.Logger

	mu     sync.Mutex
	topics map[model.WorkflowType]*topic
}

// NewNotifier constructs the default notifier.
func NewNotifier(opts NotifierOptions) (*DefaultNotifier, error) {
	if opts.Waiter == nil {
		return nil, ErrWaiterRequired
	}
	n := &DefaultNotifier{
		waiter:     opts.Waiter,
		waitWindow: opts.WaitWindow,
		backoff:    opts.Backoff,
		logger:     opts.Logger,
		topics:     make(map[model.WorkflowType]*topic),
	}
	if n.waitWindow <= 0 {
		n.waitWindow = time.Minute
	}
	if n.backoff <= 0 {
		n.backoff = 250 * time.Millisecond
	}
	if n.logger == nil {
		n.logger = slog.Default()
	}
	n.logger = n.logger.With("component", "run_notifier")
	return n, nil
}

// Subscribe registers a wake-up channel for wt. The returned func
// unsubscribes and closes the channel; it is safe to call more than once.
func (n *DefaultNotifier) Subscribe(wt model.WorkflowType) (func(), <-chan struct{}) {
	n.mu.Lock()
	defer n.mu.Unlock()

	t, ok := n.topics[wt]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())
		t = &topic{cancel: cancel, subs: make(map[chan struct{}]struct{})}
		n.topics[wt] = t
		go n.listenLoop(ctx, wt)
	}

	ch := make(chan struct{}, 1)
	t.subs[ch] = struct{}{}

	return func() { n.unsubscribe(wt, ch) }, ch
}

func (n *DefaultNotifier) unsubscribe(wt model.WorkflowType, ch chan struct{}) {
	n.mu.Lock()
	defer n.mu.Unlock()

	t, ok := n.topics[wt]
	if !ok {
		return
	}
	if _, ok := t.subs[ch]; !ok {
		return
	}
	delete(t.subs, ch)
	drainAndClose(ch)
	if len(t.subs) == 0 {
		t.cancel()
		delete(n.topics, wt)
	}
}

// Notify wakes local subscribers without waiting for the database round trip.
func (n *DefaultNotifier) Notify(wt model.WorkflowType) {
	n.broadcast(wt)
}

// StopAll stops every listener and closes every subscriber channel.
func (n *DefaultNotifier) StopAll() {
	n.mu.Lock()
	defer n.mu.Unlock()

	for wt, t := range n.topics {
		t.cancel()
		for ch := range t.subs {
			drainAndClose(ch)
		}
		delete(n.topics, wt)
	}
}

func (n *DefaultNotifier) listenLoop(ctx context.Context, wt model.WorkflowType) {
	for ctx.Err() == nil {
		waitCtx, cancel := context.WithTimeout(ctx, n.waitWindow)
		err := n.waiter.WaitForNotification(waitCtx, wt)
		cancel()

		// A timed-out wait still wakes workers so they re-poll for
		// retries whose scheduled_at has passed.
		n.broadcast(wt)

		if err == nil || ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			continue
		}
		n.logger.WarnContext(ctx, "wait for run notification failed",
			"workflow_type", wt, "error", err, "backoff", n.backoff)
		timer := time.NewTimer(n.backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (n *DefaultNotifier) broadcast(wt model.WorkflowType) {
	n.mu.Lock()
	defer n.mu.Unlock()

	t, ok := n.topics[wt]
	if !ok {
		return
	}
	for ch := range t.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// drainAndClose empties a buffered channel before closing it so receivers
// observe the close immediately.
func drainAndClose(ch chan struct{}) {
	for {
		select {
		case <-ch:
		default:
			close(ch)
			return
		}
	}
}

var _ Notifier = (*DefaultNotifier)(nil)
