// Package app wires the protocol engines into one transactional executor and
// keeps the block clock the executor runs against.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	errorsmod "cosmossdk.io/errors"

	"creditchain/core"
	cerrors "creditchain/core/errors"
	"creditchain/core/state"
	"creditchain/core/types"
	"creditchain/crypto"
	"creditchain/native/accountnft"
	"creditchain/native/bank"
	"creditchain/native/common"
	"creditchain/native/creditmanager"
	"creditchain/native/incentives"
	"creditchain/native/oracle"
	"creditchain/native/params"
	"creditchain/native/redbank"
	"creditchain/native/swapper"
	"creditchain/native/vaults"
	"creditchain/native/zapper"
	"creditchain/storage"
)

// BlockInterval is the number of seconds between two blocks.
const BlockInterval = 5

// Contract names. Module addresses are derived from them.
const (
	NameBank             = "bank"
	NameParams           = "params"
	NameOracle           = "oracle"
	NameRedBank          = "redbank"
	NameCreditManager    = "creditmanager"
	NameAccountNFT       = "accountnft"
	NameIncentives       = "incentives"
	NameSwapper          = "swapper"
	NameZapper           = "zapper"
	NameRewardsCollector = "rewards_collector"
)

// DefaultAddresses derives every protocol address from its contract name.
func DefaultAddresses() common.Addresses {
	return common.Addresses{
		Params:           crypto.ModuleAddress(NameParams),
		Oracle:           crypto.ModuleAddress(NameOracle),
		RedBank:          crypto.ModuleAddress(NameRedBank),
		CreditManager:    crypto.ModuleAddress(NameCreditManager),
		AccountNFT:       crypto.ModuleAddress(NameAccountNFT),
		Incentives:       crypto.ModuleAddress(NameIncentives),
		Swapper:          crypto.ModuleAddress(NameSwapper),
		Zapper:           crypto.ModuleAddress(NameZapper),
		RewardsCollector: crypto.ModuleAddress(NameRewardsCollector),
	}
}

// App is the protocol node: engines, the executor they are registered on and
// the current block.
type App struct {
	Addresses common.Addresses

	Bank          *bank.Engine
	Params        *params.Engine
	Oracle        *oracle.Engine
	RedBank       *redbank.Engine
	CreditManager *creditmanager.Engine
	AccountNFT    *accountnft.Engine
	Incentives    *incentives.Engine
	Swapper       *swapper.Engine
	Zapper        *zapper.Engine
	Vaults        map[string]*vaults.Engine

	db       storage.Database
	executor *core.Executor
	logger   *slog.Logger
	codec    *Codec
	queries  *QueryRouter

	mu  sync.RWMutex
	env core.Env
}

// New builds the engines and registers them. Vaults are added from genesis.
func New(db storage.Database, chainID string, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	addrs := DefaultAddresses()
	a := &App{
		Addresses: addrs,
		Bank:      bank.NewEngine(),
		Params:    params.NewEngine(),
		Oracle:    oracle.NewEngine(),
		Vaults:    make(map[string]*vaults.Engine),
		db:        db,
		executor:  core.NewExecutor(db, logger),
		logger:    logger,
		env:       core.Env{ChainID: chainID},
	}
	a.RedBank = redbank.NewEngine(addrs, a.Params, a.Oracle)
	a.AccountNFT = accountnft.NewEngine(addrs.CreditManager)
	a.Incentives = incentives.NewEngine(addrs)
	a.Incentives.SetCollateralView(a.RedBank)
	a.Swapper = swapper.NewEngine(a.Oracle, a.Params)
	a.Zapper = zapper.NewEngine(addrs.Zapper, a.Oracle, a.Bank, a.Params)
	a.CreditManager = creditmanager.NewEngine(addrs, creditmanager.Deps{
		Params:     a.Params,
		Prices:     a.Oracle,
		RedBank:    a.RedBank,
		Accounts:   a.AccountNFT,
		Ledger:     a.Bank,
		Incentives: a.Incentives,
		Swapper:    a.Swapper,
		Zapper:     a.Zapper,
	})

	a.executor.SetBank(a.Bank)
	a.executor.Register(NameBank, crypto.ModuleAddress(NameBank), a.Bank)
	a.executor.Register(NameParams, addrs.Params, a.Params)
	a.executor.Register(NameOracle, addrs.Oracle, a.Oracle)
	a.executor.Register(NameRedBank, addrs.RedBank, a.RedBank)
	a.executor.Register(NameCreditManager, addrs.CreditManager, a.CreditManager)
	a.executor.Register(NameAccountNFT, addrs.AccountNFT, a.AccountNFT)
	a.executor.Register(NameIncentives, addrs.Incentives, a.Incentives)
	a.executor.Register(NameSwapper, addrs.Swapper, a.Swapper)
	a.executor.Register(NameZapper, addrs.Zapper, a.Zapper)

	a.codec = newCodec(a)
	a.queries = newQueryRouter(a)
	return a
}

// AddVault deploys a vault, registers it on the executor and makes it known
// to the credit manager. The credit manager is always allowed to force
// withdraw unlocking positions.
func (a *App) AddVault(name string, cfg vaults.Config) (*vaults.Engine, error) {
	if cfg.Addr == "" {
		cfg.Addr = vaults.Address(name)
	}
	if _, ok := a.Vaults[cfg.Addr]; ok {
		return nil, fmt.Errorf("app: vault %s already registered", cfg.Addr)
	}
	found := false
	for _, addr := range cfg.ForceWithdraws {
		found = found || addr == a.Addresses.CreditManager
	}
	if !found {
		cfg.ForceWithdraws = append(cfg.ForceWithdraws, a.Addresses.CreditManager)
	}
	v := vaults.NewEngine(cfg, a.Bank, a.Params)
	a.Vaults[cfg.Addr] = v
	a.executor.Register("vault/"+name, cfg.Addr, v)
	a.CreditManager.RegisterVault(v)
	a.codec.registerVault(cfg.Addr)
	return v, nil
}

// Executor exposes the underlying executor.
func (a *App) Executor() *core.Executor { return a.executor }

// Codec returns the JSON message codec.
func (a *App) Codec() *Codec { return a.codec }

// Queries returns the named query router.
func (a *App) Queries() *QueryRouter { return a.queries }

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger { return a.logger }

// Env returns the current block.
func (a *App) Env() core.Env {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.env
}

// SetTime moves the block clock to t without producing blocks.
func (a *App) SetTime(t uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.env.Time = t
}

// AdvanceBlocks produces n empty blocks.
func (a *App) AdvanceBlocks(n uint64) core.Env {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.env.Height += n
	a.env.Time += n * BlockInterval
	return a.env
}

// AdvanceTime produces enough blocks to move the clock forward by at least
// seconds.
func (a *App) AdvanceTime(seconds uint64) core.Env {
	return a.AdvanceBlocks((seconds + BlockInterval - 1) / BlockInterval)
}

// Subscribe forwards every committed result to fn.
func (a *App) Subscribe(fn func(core.Result)) {
	a.executor.Subscribe(fn)
}

// Execute runs msg against contract in the current block.
func (a *App) Execute(ctx context.Context, sender, contract string, msg any, funds ...types.Coin) (*core.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	return a.executor.Execute(ctx, a.Env(), sender, contract, msg, types.NewCoins(funds...))
}

// Query runs fn against committed state at the current block.
func (a *App) Query(ctx context.Context, fn func(*core.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return a.executor.Query(ctx, a.Env(), fn)
}

// Update runs fn in its own transaction outside of message dispatch. It is
// used for genesis and operator tooling; nothing it does is routed through a
// handler.
func (a *App) Update(ctx context.Context, fn func(*core.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	tx, err := a.db.Begin()
	if err != nil {
		return err
	}
	c := core.NewContext(ctx, a.Env(), state.NewManager(tx), a.logger)
	if err := fn(c); err != nil {
		tx.Discard()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("app: commit: %w", err)
	}
	return nil
}

// ContractAddress resolves a contract name to its address. Vault names are
// written "vault/<name>".
func (a *App) ContractAddress(name string) (string, error) {
	switch name {
	case NameBank:
		return crypto.ModuleAddress(NameBank), nil
	case NameParams:
		return a.Addresses.Params, nil
	case NameOracle:
		return a.Addresses.Oracle, nil
	case NameRedBank:
		return a.Addresses.RedBank, nil
	case NameCreditManager:
		return a.Addresses.CreditManager, nil
	case NameAccountNFT:
		return a.Addresses.AccountNFT, nil
	case NameIncentives:
		return a.Addresses.Incentives, nil
	case NameSwapper:
		return a.Addresses.Swapper, nil
	case NameZapper:
		return a.Addresses.Zapper, nil
	}
	if rest, ok := strings.CutPrefix(name, "vault/"); ok {
		addr := vaults.Address(rest)
		if _, ok := a.Vaults[addr]; ok {
			return addr, nil
		}
	}
	if _, ok := a.Vaults[name]; ok {
		return name, nil
	}
	return "", errorsmod.Wrapf(cerrors.ErrUnknownContract, "%s", name)
}

// Close releases the database.
func (a *App) Close() error {
	return a.db.Close()
}
