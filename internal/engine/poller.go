package engine

import (
	"context"
	"crypto/rand"
	"log/slog"
	"math/big"
	"sync"
	"time"
)

// PollerConfig governs the poll/dispatch loop (worker.poll.batchSize,
// worker.poll.intervalMs, worker.maxInFlight).
type PollerConfig struct {
	WorkerID     string
	BatchSize    int
	PollInterval time.Duration
	MaxInFlight  int
	DrainTimeout time.Duration
}

// Poller is the per-process loop grounded in the teacher's Worker.Start
// ticker pattern, generalized from a two-ticker schedule/process split to a
// single select-then-claim-then-dispatch cycle over eligible units.
type Poller struct {
	store    Store
	lease    *LeaseManager
	executor *Executor
	cfg      PollerConfig

	inFlight chan struct{} // bounded admission-control semaphore
	wg       sync.WaitGroup
}

func NewPoller(store Store, lease *LeaseManager, executor *Executor, cfg PollerConfig) *Poller {
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 1
	}
	return &Poller{
		store:    store,
		lease:    lease,
		executor: executor,
		cfg:      cfg,
		inFlight: make(chan struct{}, cfg.MaxInFlight),
	}
}

// Run blocks, polling for eligible units and dispatching claimed ones to the
// Executor, until ctx is cancelled. On cancellation it stops issuing new
// SelectEligible calls immediately but waits (bounded by DrainTimeout) for
// in-flight Executor calls to finish before returning.
//
// In-flight executors run against a context detached from ctx's
// cancellation (it still carries ctx's values): cancelling the parent the
// instant shutdown begins would fail every in-flight DB mutation underway,
// defeating the point of draining. That detached context is only cancelled
// if drain itself times out, so a stuck executor is not left running
// forever.
func (p *Poller) Run(ctx context.Context) error {
	slog.InfoContext(ctx, "poller started", "worker_id", p.cfg.WorkerID, "max_in_flight", p.cfg.MaxInFlight)

	execCtx, cancelExec := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelExec()

	for {
		select {
		case <-ctx.Done():
			return p.drain(cancelExec)
		default:
		}

		claimed, err := p.tick(ctx, execCtx)
		if err != nil {
			slog.ErrorContext(ctx, "poll tick failed", "error", err)
		}

		if claimed == 0 {
			if err := p.sleepIdle(ctx); err != nil {
				return p.drain(cancelExec)
			}
		}
	}
}

// tick runs one SelectEligible -> TryClaim -> dispatch cycle, admitting only
// as many units as the free slots in inFlight allow, so a single tick never
// over-commits the concurrency budget. ctx governs the poll-loop calls
// themselves; execCtx is handed to dispatched executors so they keep running
// through shutdown until drained.
func (p *Poller) tick(ctx, execCtx context.Context) (int, error) {
	free := cap(p.inFlight) - len(p.inFlight)
	if free <= 0 {
		return 0, nil
	}
	limit := p.cfg.BatchSize
	if limit > free {
		limit = free
	}
	if limit <= 0 {
		return 0, nil
	}

	candidates, err := p.store.SelectEligible(ctx, limit, time.Now().UTC())
	if err != nil {
		return 0, err
	}

	claimed := 0
	for _, inputID := range candidates {
		ok, err := p.lease.TryClaim(ctx, inputID, p.cfg.WorkerID)
		if err != nil {
			slog.ErrorContext(ctx, "claim failed", "input_id", inputID, "error", err)
			continue
		}
		if !ok {
			continue // another worker won the race; not an error
		}
		claimed++
		p.dispatch(execCtx, inputID)
	}
	return claimed, nil
}

// dispatch hydrates the claimed unit and hands it to Executor on its own
// goroutine, holding one inFlight slot for the duration of execution.
func (p *Poller) dispatch(execCtx context.Context, inputID string) {
	p.inFlight <- struct{}{}
	p.wg.Add(1)
	go func() {
		defer func() {
			<-p.inFlight
			p.wg.Done()
		}()

		unit, err := p.store.GetUnit(execCtx, inputID)
		if err != nil {
			slog.ErrorContext(execCtx, "failed to hydrate claimed unit", "input_id", inputID, "error", err)
			return
		}
		if unit == nil {
			slog.WarnContext(execCtx, "claimed unit vanished before hydration", "input_id", inputID)
			return
		}

		if err := p.executor.Execute(execCtx, *unit); err != nil {
			slog.ErrorContext(execCtx, "unit execution returned error", "input_id", inputID, "error", err)
		}
	}()
}

// sleepIdle waits one poll interval plus a small jitter, so many worker
// processes polling the same table do not thunder-herd in lockstep.
func (p *Poller) sleepIdle(ctx context.Context) error {
	jitter, err := rand.Int(rand.Reader, big.NewInt(int64(p.cfg.PollInterval)/4+1))
	if err != nil {
		jitter = big.NewInt(0)
	}
	wait := p.cfg.PollInterval + time.Duration(jitter.Int64())

	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drain waits up to DrainTimeout for in-flight Executor calls to complete.
// If the timeout elapses first, it cancels the in-flight executors'
// (cancellation-detached) context so they stop instead of running unbounded.
func (p *Poller) drain(cancelExec context.CancelFunc) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timeout := p.cfg.DrainTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	select {
	case <-done:
		slog.Info("poller drained cleanly", "worker_id", p.cfg.WorkerID)
		return nil
	case <-time.After(timeout):
		slog.Warn("poller drain timed out, cancelling in-flight executors", "worker_id", p.cfg.WorkerID)
		cancelExec()
		return nil
	}
}
