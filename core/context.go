package core

import (
	"context"
	"log/slog"

	"creditchain/core/state"
	"creditchain/core/types"
)

// Env describes the block the current transaction executes in.
type Env struct {
	ChainID string `json:"chainId"`
	Height  uint64 `json:"height"`
	// Time is the block time in seconds since the Unix epoch.
	Time uint64 `json:"time"`
}

// MessageInfo carries the immediate caller and the coins it attached.
type MessageInfo struct {
	Sender string      `json:"sender"`
	Funds  types.Coins `json:"funds"`
}

// Eventer is implemented by the typed events in core/events.
type Eventer interface {
	Event() *types.Event
}

// Context is the execution context shared by every message of one top-level
// transaction. All reads and writes go through the same store view, so a
// failure anywhere discards the whole batch.
type Context struct {
	goCtx  context.Context
	env    Env
	store  *state.Manager
	logger *slog.Logger
	events []types.Event
}

// NewContext builds a context over store. Engines use it directly in tests.
func NewContext(goCtx context.Context, env Env, store *state.Manager, logger *slog.Logger) *Context {
	if goCtx == nil {
		goCtx = context.Background()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Context{goCtx: goCtx, env: env, store: store, logger: logger}
}

// Context returns the Go context of the request.
func (c *Context) Context() context.Context { return c.goCtx }

// Env returns the block environment.
func (c *Context) Env() Env { return c.env }

// BlockTime returns the block time in seconds.
func (c *Context) BlockTime() uint64 { return c.env.Time }

// Store returns the transaction-scoped state view.
func (c *Context) Store() *state.Manager { return c.store }

// Logger returns the request logger.
func (c *Context) Logger() *slog.Logger { return c.logger }

// EmitEvent appends a typed event to the transaction log.
func (c *Context) EmitEvent(e Eventer) {
	if e == nil {
		return
	}
	if ev := e.Event(); ev != nil {
		c.events = append(c.events, *ev)
	}
}

// Events returns the events emitted so far.
func (c *Context) Events() []types.Event {
	out := make([]types.Event, len(c.events))
	copy(out, c.events)
	return out
}
