package config

// Genesis seeds a fresh chain. Decimal and integer values are strings so the
// file keeps full precision.
type Genesis struct {
	Time                  uint64    `toml:"Time"`
	Owner                 string    `toml:"Owner"`
	TargetHealthFactor    string    `toml:"TargetHealthFactor"`
	MaxCloseFactor        string    `toml:"MaxCloseFactor"`
	OracleMaxAge          uint64    `toml:"OracleMaxAge"`
	SwapFee               string    `toml:"SwapFee"`
	MaxUnlockingPositions uint64    `toml:"MaxUnlockingPositions"`
	MaxSlippage           string    `toml:"MaxSlippage"`
	Assets                []Asset   `toml:"assets"`
	Vaults                []Vault   `toml:"vaults"`
	Pools                 []Pool    `toml:"pools"`
	Balances              []Balance `toml:"balances"`
}

// Asset lists a denom with its risk parameters, its oracle price and,
// when Market is set, a money market.
type Asset struct {
	Denom                  string  `toml:"Denom"`
	Price                  string  `toml:"Price"`
	LiquidationPrice       string  `toml:"LiquidationPrice,omitempty"`
	Whitelisted            bool    `toml:"Whitelisted"`
	DepositEnabled         bool    `toml:"DepositEnabled"`
	BorrowEnabled          bool    `toml:"BorrowEnabled"`
	MaxLoanToValue         string  `toml:"MaxLoanToValue"`
	LiquidationThreshold   string  `toml:"LiquidationThreshold"`
	BonusStartingLB        string  `toml:"BonusStartingLB"`
	BonusSlope             string  `toml:"BonusSlope"`
	BonusMinLB             string  `toml:"BonusMinLB"`
	BonusMaxLB             string  `toml:"BonusMaxLB"`
	ProtocolLiquidationFee string  `toml:"ProtocolLiquidationFee"`
	DepositCap             string  `toml:"DepositCap"`
	Hls                    *Hls    `toml:"hls,omitempty"`
	Market                 *Market `toml:"market,omitempty"`
}

// Hls holds the high-leverage ratios. Correlations name denoms, or vaults
// as "vault/<name>".
type Hls struct {
	MaxLoanToValue       string   `toml:"MaxLoanToValue"`
	LiquidationThreshold string   `toml:"LiquidationThreshold"`
	Correlations         []string `toml:"Correlations"`
}

// Market holds the money market settings of an asset.
type Market struct {
	ReserveFactor          string `toml:"ReserveFactor"`
	OptimalUtilizationRate string `toml:"OptimalUtilizationRate"`
	Base                   string `toml:"Base"`
	Slope1                 string `toml:"Slope1"`
	Slope2                 string `toml:"Slope2"`
}

// Vault deploys a vault adapter and lists its shares as collateral.
type Vault struct {
	Name                 string `toml:"Name"`
	BaseDenom            string `toml:"BaseDenom"`
	VaultToken           string `toml:"VaultToken"`
	Lockup               uint64 `toml:"Lockup"`
	DepositCap           string `toml:"DepositCap"`
	MaxLoanToValue       string `toml:"MaxLoanToValue"`
	LiquidationThreshold string `toml:"LiquidationThreshold"`
	Whitelisted          bool   `toml:"Whitelisted"`
	Hls                  *Hls   `toml:"hls,omitempty"`
}

// Pool registers a zapper pool.
type Pool struct {
	LpDenom string   `toml:"LpDenom"`
	Denoms  []string `toml:"Denoms"`
}

// Balance mints coins to an address at genesis.
type Balance struct {
	Address string `toml:"Address"`
	Denom   string `toml:"Denom"`
	Amount  string `toml:"Amount"`
}

func (g *Genesis) applyDefaults() {
	if g.TargetHealthFactor == "" {
		g.TargetHealthFactor = "1.2"
	}
	if g.MaxCloseFactor == "" {
		g.MaxCloseFactor = "0.5"
	}
	if g.SwapFee == "" {
		g.SwapFee = "0.003"
	}
	if g.MaxUnlockingPositions == 0 {
		g.MaxUnlockingPositions = 10
	}
	if g.MaxSlippage == "" {
		g.MaxSlippage = "0.05"
	}
	for i := range g.Assets {
		a := &g.Assets[i]
		if a.BonusStartingLB == "" {
			a.BonusStartingLB = "0"
		}
		if a.BonusSlope == "" {
			a.BonusSlope = "1"
		}
		if a.BonusMinLB == "" {
			a.BonusMinLB = "0"
		}
		if a.BonusMaxLB == "" {
			a.BonusMaxLB = "0.05"
		}
		if a.ProtocolLiquidationFee == "" {
			a.ProtocolLiquidationFee = "0"
		}
	}
}
