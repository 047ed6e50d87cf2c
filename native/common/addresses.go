package common

// Addresses resolves the contract addresses of the protocol. The app builds
// one instance at genesis and hands it to every engine.
type Addresses struct {
	Params           string `json:"params" toml:"params"`
	Oracle           string `json:"oracle" toml:"oracle"`
	RedBank          string `json:"red_bank" toml:"red_bank"`
	CreditManager    string `json:"credit_manager" toml:"credit_manager"`
	AccountNFT       string `json:"account_nft" toml:"account_nft"`
	Incentives       string `json:"incentives" toml:"incentives"`
	Swapper          string `json:"swapper" toml:"swapper"`
	Zapper           string `json:"zapper" toml:"zapper"`
	RewardsCollector string `json:"rewards_collector" toml:"rewards_collector"`
}
