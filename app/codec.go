package app

import (
	"encoding/json"
	"sort"
	"sync"

	errorsmod "cosmossdk.io/errors"

	cerrors "creditchain/core/errors"
	"creditchain/crypto"
	"creditchain/native/accountnft"
	"creditchain/native/bank"
	"creditchain/native/creditmanager"
	"creditchain/native/incentives"
	"creditchain/native/oracle"
	"creditchain/native/params"
	"creditchain/native/redbank"
	"creditchain/native/swapper"
	"creditchain/native/vaults"
	"creditchain/native/zapper"
)

type decoder func(json.RawMessage) (any, error)

func decodeMsg[T any](raw json.RawMessage) (any, error) {
	var v T
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// Codec decodes externally submitted messages. A message is a single-key
// object, {"<name>": {...}}, addressed to a contract. Internal messages such
// as credit manager callbacks, incentive balance hooks and NFT mints have no
// external name.
type Codec struct {
	mu     sync.RWMutex
	routes map[string]map[string]decoder
}

func newCodec(a *App) *Codec {
	c := &Codec{routes: make(map[string]map[string]decoder)}
	c.register(crypto.ModuleAddress(NameBank), map[string]decoder{
		"send": decodeMsg[bank.MsgSend],
	})
	c.register(a.Addresses.Params, map[string]decoder{
		"update_asset_params":         decodeMsg[params.UpdateAssetParams],
		"update_vault_config":         decodeMsg[params.UpdateVaultConfig],
		"update_target_health_factor": decodeMsg[params.UpdateTargetHealthFactor],
		"update_max_close_factor":     decodeMsg[params.UpdateMaxCloseFactor],
		"set_paused":                  decodeMsg[params.SetPaused],
		"update_owner":                decodeMsg[params.UpdateOwner],
	})
	c.register(a.Addresses.Oracle, map[string]decoder{
		"set_price":     decodeMsg[oracle.SetPrice],
		"remove_price":  decodeMsg[oracle.RemovePrice],
		"update_config": decodeMsg[oracle.UpdateConfig],
	})
	c.register(a.Addresses.RedBank, map[string]decoder{
		"init_asset":                         decodeMsg[redbank.InitAsset],
		"update_asset":                       decodeMsg[redbank.UpdateAsset],
		"update_uncollateralized_loan_limit": decodeMsg[redbank.UpdateUncollateralizedLoanLimit],
		"update_migration_guard":             decodeMsg[redbank.UpdateMigrationGuard],
		"deposit":                            decodeMsg[redbank.Deposit],
		"withdraw":                           decodeMsg[redbank.Withdraw],
		"borrow":                             decodeMsg[redbank.Borrow],
		"repay":                              decodeMsg[redbank.Repay],
		"update_asset_collateral_status":     decodeMsg[redbank.UpdateAssetCollateralStatus],
		"liquidate":                          decodeMsg[redbank.Liquidate],
	})
	c.register(a.Addresses.CreditManager, map[string]decoder{
		"update_credit_account": decodeMsg[creditmanager.UpdateCreditAccount],
		"update_config":         decodeMsg[creditmanager.UpdateConfig],
	})
	c.register(a.Addresses.AccountNFT, map[string]decoder{
		"transfer_nft": decodeMsg[accountnft.TransferNft],
	})
	c.register(a.Addresses.Incentives, map[string]decoder{
		"set_asset_incentive": decodeMsg[incentives.SetAssetIncentive],
		"claim_rewards":       decodeMsg[incentives.ClaimRewards],
		"fund_lp_rewards":     decodeMsg[incentives.FundLpRewards],
	})
	c.register(a.Addresses.Swapper, map[string]decoder{
		"swap_exact_in": decodeMsg[swapper.SwapExactIn],
		"update_config": decodeMsg[swapper.UpdateConfig],
	})
	c.register(a.Addresses.Zapper, map[string]decoder{
		"create_pool":        decodeMsg[zapper.CreatePool],
		"provide_liquidity":  decodeMsg[zapper.ProvideLiquidity],
		"withdraw_liquidity": decodeMsg[zapper.WithdrawLiquidity],
	})
	return c
}

func (c *Codec) register(addr string, msgs map[string]decoder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routes[addr] = msgs
}

func (c *Codec) registerVault(addr string) {
	c.register(addr, map[string]decoder{
		"deposit":                  decodeMsg[vaults.Deposit],
		"redeem":                   decodeMsg[vaults.Redeem],
		"request_unlock":           decodeMsg[vaults.RequestUnlock],
		"withdraw_unlocked":        decodeMsg[vaults.WithdrawUnlocked],
		"force_withdraw_unlocking": decodeMsg[vaults.ForceWithdrawUnlocking],
	})
}

// Decode turns a tagged message addressed to contract into its Go value.
func (c *Codec) Decode(contract string, data []byte) (any, error) {
	c.mu.RLock()
	msgs, ok := c.routes[contract]
	c.mu.RUnlock()
	if !ok {
		return nil, errorsmod.Wrapf(cerrors.ErrUnknownContract, "%s", contract)
	}
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, errorsmod.Wrap(cerrors.ErrValidation, err.Error())
	}
	if len(wrapper) != 1 {
		return nil, errorsmod.Wrapf(cerrors.ErrValidation, "message must have exactly one key, got %d", len(wrapper))
	}
	for name, raw := range wrapper {
		decode, ok := msgs[name]
		if !ok {
			return nil, errorsmod.Wrapf(cerrors.ErrUnknownMessage, "%s", name)
		}
		msg, err := decode(raw)
		if err != nil {
			return nil, errorsmod.Wrapf(cerrors.ErrValidation, "%s: %v", name, err)
		}
		return msg, nil
	}
	return nil, nil
}

// Messages lists the message names accepted by contract.
func (c *Codec) Messages(contract string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.routes[contract]))
	for name := range c.routes[contract] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
