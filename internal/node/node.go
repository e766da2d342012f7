// Package node drives one Engine on a dedicated goroutine. Other goroutines
// reach it only through Submit and the published snapshot.
package node

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/ghostnet/internal/admin"
	"github.com/danmuck/ghostnet/internal/auth"
	"github.com/danmuck/ghostnet/internal/engine"
	"github.com/danmuck/ghostnet/internal/ghost"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Engine  engine.Config
	Deps    engine.Deps
	Backoff BackoffConfig
	// AdminAddr enables the admin HTTP server when set.
	AdminAddr   string
	CorsOrigins []string
	// AdminTokens guard the admin routes when non-empty.
	AdminTokens []string
	// OnEvent runs on the loop goroutine for every client event.
	OnEvent func(engine.ClientEvent)
}

type submission struct {
	req  engine.ClientRequest
	done chan outcome
}

type outcome struct {
	resp engine.ClientResponse
	err  error
}

type Runner struct {
	client  *engine.Client
	backoff BackoffConfig
	onEvent func(engine.ClientEvent)
	admin   *admin.Server

	mu     sync.Mutex
	queue  []submission
	closed bool
	wake   chan struct{}

	snapshot atomic.Pointer[engine.Snapshot]
}

func New(opts Options) (*Runner, error) {
	e, err := engine.New(opts.Engine, opts.Deps)
	if err != nil {
		return nil, err
	}
	r := &Runner{
		backoff: opts.Backoff,
		onEvent: opts.OnEvent,
		queue:   make([]submission, 0),
		wake:    make(chan struct{}, 1),
	}
	if r.backoff == (BackoffConfig{}) {
		r.backoff = DefaultBackoffConfig()
	}
	client, err := engine.NewClient(e, r.handleEvent)
	if err != nil {
		return nil, err
	}
	r.client = client
	if opts.AdminAddr != "" {
		var validator auth.Validator
		if len(opts.AdminTokens) > 0 {
			validator = auth.Tokens(opts.AdminTokens)
		}
		r.admin = admin.New(e.Name(), opts.AdminAddr, opts.CorsOrigins, r, validator)
	}
	return r, nil
}

// Snapshot returns the state published after the latest tick.
func (r *Runner) Snapshot() (engine.Snapshot, bool) {
	snap := r.snapshot.Load()
	if snap == nil {
		return engine.Snapshot{}, false
	}
	return *snap, true
}

func (r *Runner) Admin() *admin.Server {
	return r.admin
}

// Submit queues req for the loop goroutine and waits for its single response.
func (r *Runner) Submit(ctx context.Context, req engine.ClientRequest) (engine.ClientResponse, error) {
	sub := submission{req: req, done: make(chan outcome, 1)}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, engine.ErrClosed
	}
	r.queue = append(r.queue, sub)
	r.mu.Unlock()
	r.signal()

	select {
	case out := <-sub.done:
		return out.resp, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Runner) signal() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Step runs one tick on the calling goroutine: queued submissions, one
// engine Process, then a fresh snapshot.
func (r *Runner) Step() (ghost.WorkWasDone, error) {
	r.mu.Lock()
	batch := r.queue
	r.queue = make([]submission, 0)
	r.mu.Unlock()

	for _, sub := range batch {
		done := sub.done
		if _, err := r.client.Request(sub.req, func(resp engine.ClientResponse, err error) {
			done <- outcome{resp: resp, err: err}
		}); err != nil {
			done <- outcome{err: err}
		}
	}

	work, err := r.client.Process()
	snap := r.client.Actor().Snapshot()
	r.snapshot.Store(&snap)
	return work || len(batch) > 0, err
}

// Run ticks until ctx ends, sleeping with back-off while idle, then closes
// the engine.
func (r *Runner) Run(ctx context.Context) error {
	var srv *http.Server
	serveErr := make(chan error, 1)
	if r.admin != nil {
		srv = &http.Server{Addr: r.admin.Addr(), Handler: r.admin.Handler()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
		}()
		log.Info().Str("addr", r.admin.Addr()).Msg("node.Runner.admin")
	}

	idle := 0
	var runErr error
loop:
	for {
		work, err := r.Step()
		if err != nil {
			if errors.Is(err, engine.ErrClosed) {
				runErr = err
				break
			}
			log.Warn().Err(err).Msg("node.Runner.step")
		}
		if work {
			idle = 0
			if ctx.Err() != nil {
				break
			}
			continue
		}
		idle++
		timer := time.NewTimer(NextIdleDelay(r.backoff, idle, nil))
		select {
		case <-ctx.Done():
			timer.Stop()
			break loop
		case err := <-serveErr:
			timer.Stop()
			runErr = fmt.Errorf("node: admin server: %w", err)
			break loop
		case <-r.wake:
			timer.Stop()
			idle = 0
		case <-timer.C:
		}
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
	if err := r.Close(); err != nil {
		log.Warn().Err(err).Msg("node.Runner.close")
	}
	return runErr
}

// Close shuts the engine down on the calling goroutine. Waiting and queued
// submissions fail. Do not call it while Run is active.
func (r *Runner) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	batch := r.queue
	r.queue = nil
	r.mu.Unlock()

	for _, sub := range batch {
		sub.done <- outcome{err: engine.ErrClosed}
	}
	err := r.client.Actor().Close()
	r.client.Close()
	return err
}

func (r *Runner) handleEvent(msg *ghost.Message[engine.ClientEvent, ghost.Ack]) error {
	ev := msg.Take()
	if failed, ok := ev.(engine.ErrorOccurred); ok {
		log.Debug().Str("space", failed.Space).Err(failed.Err).Msg("node.Runner.event")
	}
	if r.onEvent != nil {
		r.onEvent(ev)
	}
	if msg.IsRequest() {
		return msg.Respond(ghost.Ack{}, nil)
	}
	return nil
}
