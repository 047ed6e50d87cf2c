package core

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	errorsmod "cosmossdk.io/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"lukechampine.com/blake3"

	cerrors "creditchain/core/errors"
	"creditchain/core/state"
	"creditchain/core/types"
	"creditchain/observability"
	"creditchain/storage"
)

// DefaultMaxDepth bounds nested contract calls within one transaction.
const DefaultMaxDepth = 16

// Bank moves coins between addresses inside a transaction.
type Bank interface {
	Send(ctx *Context, from, to string, amount types.Coins) error
}

// Result describes a committed transaction.
type Result struct {
	TxHash   string        `json:"txHash"`
	Height   uint64        `json:"height"`
	Time     uint64        `json:"time"`
	Sender   string        `json:"sender"`
	Contract string        `json:"contract"`
	Events   []types.Event `json:"events"`
	Data     any           `json:"data,omitempty"`
}

type route struct {
	name    string
	handler Handler
}

// Executor runs messages one transaction at a time. Each top-level call
// executes inside a storage transaction that is committed only when the call
// and every sub-message it produced succeed.
type Executor struct {
	mu        sync.Mutex
	db        storage.Database
	bank      Bank
	routes    map[string]route
	logger    *slog.Logger
	maxDepth  int
	seq       uint64
	listeners []func(Result)
}

// NewExecutor creates an executor over db.
func NewExecutor(db storage.Database, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		db:       db,
		routes:   make(map[string]route),
		logger:   logger,
		maxDepth: DefaultMaxDepth,
	}
}

// SetBank installs the coin ledger used for attached funds and BankMsg.
func (e *Executor) SetBank(bank Bank) {
	e.bank = bank
}

// Register binds a handler to a contract address. The name labels metrics and
// logs.
func (e *Executor) Register(name, addr string, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.routes[addr] = route{name: name, handler: h}
}

// Subscribe registers fn to receive every committed result. Listeners run
// synchronously after commit and must not call back into the executor.
func (e *Executor) Subscribe(fn func(Result)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// Execute runs msg against contract as a single atomic transaction.
func (e *Executor) Execute(ctx context.Context, env Env, sender, contract string, msg any, funds types.Coins) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	name := e.routes[contract].name
	ctx, span := otel.Tracer("creditchain/core").Start(ctx, "executor.execute")
	span.SetAttributes(
		attribute.String("contract", name),
		attribute.String("msg", fmt.Sprintf("%T", msg)),
		attribute.Int64("height", int64(env.Height)),
	)
	defer span.End()

	e.seq++
	hash := txHash(env, e.seq, sender, contract, msg)
	logger := e.logger.With("tx_hash", hash, "sender", sender, "contract", name, "height", env.Height)

	res, err := e.run(ctx, env, logger, sender, contract, msg, funds)
	observability.Executor().Observe(name, err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn("transaction reverted", "msg", fmt.Sprintf("%T", msg), "error", err)
		return nil, err
	}
	res.TxHash = hash
	logger.Debug("transaction committed", "events", len(res.Events))
	for _, ev := range res.Events {
		observability.Events().RecordEvent(ev.Type)
	}
	for _, fn := range e.listeners {
		fn(*res)
	}
	return res, nil
}

func (e *Executor) run(goCtx context.Context, env Env, logger *slog.Logger, sender, contract string, msg any, funds types.Coins) (*Result, error) {
	tx, err := e.db.Begin()
	if err != nil {
		return nil, err
	}
	c := NewContext(goCtx, env, state.NewManager(tx), logger)
	data, err := e.dispatch(c, 0, sender, contract, msg, funds)
	if err != nil {
		tx.Discard()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("executor: commit: %w", err)
	}
	return &Result{
		Height:   env.Height,
		Time:     env.Time,
		Sender:   sender,
		Contract: contract,
		Events:   c.Events(),
		Data:     data,
	}, nil
}

func (e *Executor) dispatch(c *Context, depth int, sender, contract string, msg any, funds types.Coins) (any, error) {
	if depth > e.maxDepth {
		return nil, errorsmod.Wrapf(cerrors.ErrValidation, "call depth %d exceeds %d", depth, e.maxDepth)
	}
	r, ok := e.routes[contract]
	if !ok {
		return nil, errorsmod.Wrapf(cerrors.ErrUnknownContract, "%s", contract)
	}
	if !funds.Empty() {
		if err := funds.Validate(); err != nil {
			return nil, errorsmod.Wrap(cerrors.ErrValidation, err.Error())
		}
		if e.bank == nil {
			return nil, fmt.Errorf("executor: bank not configured")
		}
		if err := e.bank.Send(c, sender, contract, funds); err != nil {
			return nil, err
		}
	}
	resp, err := r.handler.Execute(c, MessageInfo{Sender: sender, Funds: funds}, msg)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}
	for _, sub := range resp.Messages {
		switch m := sub.(type) {
		case ExecuteMsg:
			if _, err := e.dispatch(c, depth+1, contract, m.Contract, m.Msg, m.Funds); err != nil {
				return nil, err
			}
		case BankMsg:
			if e.bank == nil {
				return nil, fmt.Errorf("executor: bank not configured")
			}
			if err := e.bank.Send(c, contract, m.To, m.Amount); err != nil {
				return nil, err
			}
		default:
			return nil, errorsmod.Wrapf(cerrors.ErrUnknownMessage, "%T", sub)
		}
	}
	return resp.Data, nil
}

// Query runs fn against committed state. Writes fail with state.ErrReadOnly.
func (e *Executor) Query(ctx context.Context, env Env, fn func(*Context) error) error {
	c := NewContext(ctx, env, state.NewReadOnlyManager(e.db), e.logger)
	return fn(c)
}

func txHash(env Env, seq uint64, sender, contract string, msg any) string {
	payload, err := json.Marshal(struct {
		ChainID  string `json:"chainId"`
		Height   uint64 `json:"height"`
		Seq      uint64 `json:"seq"`
		Sender   string `json:"sender"`
		Contract string `json:"contract"`
		Type     string `json:"type"`
		Msg      any    `json:"msg"`
	}{env.ChainID, env.Height, seq, sender, contract, fmt.Sprintf("%T", msg), msg})
	if err != nil {
		payload = []byte(fmt.Sprintf("%s/%d/%d/%s/%s/%T", env.ChainID, env.Height, seq, sender, contract, msg))
	}
	sum := blake3.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
