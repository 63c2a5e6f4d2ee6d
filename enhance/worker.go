package enhance

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RequestKind distinguishes prompt enhancement from smart responses.
type RequestKind int

const (
	KindEnhance RequestKind = iota
	KindSmartResponse
)

// Request is one unit of work for the worker.
type Request struct {
	ID           uuid.UUID
	Kind         RequestKind
	Input        string
	ResponseType ResponseType
	RequestedAt  time.Time
}

// Result reports the outcome of a request. Exactly one Result is delivered
// per request that runs to completion; superseded requests deliver nothing.
type Result struct {
	Request Request
	Output  string
	Err     *Error
}

// Completer is the AI collaborator the worker drives. Implemented by Client.
type Completer interface {
	Enhance(ctx context.Context, prompt string) (string, *Error)
	SmartResponse(ctx context.Context, input string, rt ResponseType) (string, *Error)
}

// Worker executes at most one outstanding request against the AI
// collaborator. Submitting while a request is in flight cancels the
// in-flight request; a late result from a cancelled call is discarded.
// Failures are classified and delivered on the same channel as successes,
// never propagated across goroutines as panics.
type Worker struct {
	completer Completer
	timeout   time.Duration
	results   chan Result

	mu     sync.Mutex
	cancel context.CancelFunc
	gen    uint64
	wg     sync.WaitGroup
	closed bool
}

// NewWorker creates a worker with the given per-request timeout.
func NewWorker(completer Completer, timeout time.Duration) *Worker {
	return &Worker{
		completer: completer,
		timeout:   timeout,
		results:   make(chan Result, 4),
	}
}

// Results delivers completions and classified failures.
func (w *Worker) Results() <-chan Result {
	return w.results
}

// NewRequest builds a request with a fresh id and timestamp.
func NewRequest(kind RequestKind, input string, rt ResponseType) Request {
	return Request{
		ID:           uuid.New(),
		Kind:         kind,
		Input:        input,
		ResponseType: rt,
		RequestedAt:  time.Now(),
	}
}

// Submit starts req, cancelling any request already in flight. It returns
// promptly; the outcome arrives on Results.
func (w *Worker) Submit(req Request) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	if w.cancel != nil {
		slog.Info("Superseding in-flight enhancement request", "new_id", req.ID)
		w.cancel()
	}
	w.gen++
	gen := w.gen

	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	w.cancel = cancel
	w.wg.Add(1)
	w.mu.Unlock()

	go w.run(ctx, cancel, gen, req)
}

func (w *Worker) run(ctx context.Context, cancel context.CancelFunc, gen uint64, req Request) {
	defer w.wg.Done()
	defer cancel()

	var output string
	var cerr *Error

	switch req.Kind {
	case KindSmartResponse:
		output, cerr = w.completer.SmartResponse(ctx, req.Input, req.ResponseType)
	default:
		output, cerr = w.completer.Enhance(ctx, req.Input)
	}

	w.mu.Lock()
	superseded := gen != w.gen || w.closed
	if !superseded {
		w.cancel = nil
	}
	w.mu.Unlock()

	// A result that arrives after its request was superseded is discarded.
	if superseded {
		return
	}

	// A cancelled context on the current generation means the timeout hit.
	if cerr != nil && ctx.Err() == context.DeadlineExceeded && cerr.Kind != KindTimeout {
		cerr = classified(KindTimeout, cerr.Err)
	}

	w.results <- Result{Request: req, Output: output, Err: cerr}
}

// Close cancels any in-flight request, waits for its goroutine to exit,
// and closes the results channel. No Submit may be issued after Close.
func (w *Worker) Close() {
	w.mu.Lock()
	w.closed = true
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	w.mu.Unlock()

	w.wg.Wait()
	close(w.results)
}
