package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"creditchain/config"
	"creditchain/core"
	"creditchain/storage"
)

var blockKey = []byte("app/block")

// Open opens the node database under cfg.DataDir and brings the app to its
// last committed block. Genesis is only applied to an empty database.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	g, err := GenesisFromConfig(cfg.Genesis)
	if err != nil {
		return nil, fmt.Errorf("app: genesis: %w", err)
	}
	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	a := New(db, cfg.ChainID, logger)
	if err := a.Bootstrap(ctx, g); err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

// Bootstrap applies g when the database holds no chain yet. Otherwise the
// genesis vaults are redeployed in memory and the block clock is restored
// from the last committed block.
func (a *App) Bootstrap(ctx context.Context, g Genesis) error {
	raw, err := a.db.Get(blockKey)
	if storage.IsNotFound(err) {
		if err := a.InitGenesis(ctx, g); err != nil {
			return err
		}
		return a.saveBlock()
	}
	if err != nil {
		return fmt.Errorf("app: read block: %w", err)
	}
	var env core.Env
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("app: decode block: %w", err)
	}
	if chainID := a.Env().ChainID; env.ChainID != chainID {
		return fmt.Errorf("app: database holds chain %q, configured %q", env.ChainID, chainID)
	}
	for _, v := range g.Vaults {
		if _, err := a.AddVault(v.Name, v.Config); err != nil {
			return err
		}
	}
	a.mu.Lock()
	a.env = env
	a.mu.Unlock()
	a.logger.Info("chain resumed", "height", env.Height, "time", env.Time, "vaults", len(g.Vaults))
	return nil
}

// CommitBlock produces one block and persists the clock so a restarted node
// resumes from it.
func (a *App) CommitBlock() (core.Env, error) {
	env := a.AdvanceBlocks(1)
	if err := a.saveBlock(); err != nil {
		return env, err
	}
	return env, nil
}

func (a *App) saveBlock() error {
	raw, err := json.Marshal(a.Env())
	if err != nil {
		return fmt.Errorf("app: encode block: %w", err)
	}
	if err := a.db.Put(blockKey, raw); err != nil {
		return fmt.Errorf("app: write block: %w", err)
	}
	return nil
}
