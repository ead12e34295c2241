package core

import (
	"FlightSurety/internal/event"
	"context"
	"errors"
	"sync"
)

// ErrExecutorStopped is returned once the executor no longer accepts work.
var ErrExecutorStopped = errors.New("executor stopped")

// Executor owns the engine on a single goroutine. Calls from NATS, gRPC and
// HTTP are funneled through Submit; reads go through View so they observe a
// consistent state between two calls.
type Executor struct {
	engine *Engine
	cmds   chan command

	stopOnce sync.Once
	done     chan struct{}
}

type command struct {
	call  event.Call
	view  func(*Engine)
	reply chan result
}

type result struct {
	receipt *Receipt
	err     error
}

func NewExecutor(engine *Engine, queueSize int) *Executor {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &Executor{
		engine: engine,
		cmds:   make(chan command, queueSize),
		done:   make(chan struct{}),
	}
}

// Run processes commands until ctx is cancelled or Stop is called.
func (x *Executor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-x.done:
			return nil
		case cmd := <-x.cmds:
			if cmd.view != nil {
				cmd.view(x.engine)
				cmd.reply <- result{}
				continue
			}
			receipt, err := x.engine.Execute(cmd.call)
			cmd.reply <- result{receipt: receipt, err: err}
		}
	}
}

// Stop makes Run return; queued commands are abandoned.
func (x *Executor) Stop() {
	x.stopOnce.Do(func() { close(x.done) })
}

// Submit executes call and waits for its receipt.
func (x *Executor) Submit(ctx context.Context, call event.Call) (*Receipt, error) {
	res, err := x.do(ctx, command{call: call, reply: make(chan result, 1)})
	if err != nil {
		return nil, err
	}
	return res.receipt, res.err
}

// View runs fn against the engine between two calls. fn must not retain the
// engine or call Submit.
func (x *Executor) View(ctx context.Context, fn func(*Engine)) error {
	_, err := x.do(ctx, command{view: fn, reply: make(chan result, 1)})
	return err
}

func (x *Executor) do(ctx context.Context, cmd command) (result, error) {
	select {
	case x.cmds <- cmd:
	case <-ctx.Done():
		return result{}, ctx.Err()
	case <-x.done:
		return result{}, ErrExecutorStopped
	}

	select {
	case res := <-cmd.reply:
		return res, nil
	case <-ctx.Done():
		return result{}, ctx.Err()
	case <-x.done:
		return result{}, ErrExecutorStopped
	}
}
