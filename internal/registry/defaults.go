package registry

import (
	"github.com/Fantasim/vaultscan/internal/config"
)

type evmChain struct {
	chain     string
	symbol    string
	alchemy   string // Alchemy URL template, empty when Alchemy does not serve the chain
	publicRPC []string
	moralis   string // Moralis chain parameter, used where Alchemy has no token API
}

var evmChains = []evmChain{
	{chain: "ethereum", symbol: "ETH", alchemy: config.AlchemyEthereumURL, publicRPC: []string{config.PublicEthereumRPC}},
	{chain: "polygon", symbol: "POL", alchemy: config.AlchemyPolygonURL, publicRPC: []string{config.PublicPolygonRPC}},
	{chain: "arbitrum", symbol: "ETH", alchemy: config.AlchemyArbitrumURL, publicRPC: []string{config.PublicArbitrumRPC}},
	{chain: "optimism", symbol: "ETH", alchemy: config.AlchemyOptimismURL, publicRPC: []string{config.PublicOptimismRPC}},
	{chain: "base", symbol: "ETH", alchemy: config.AlchemyBaseURL, publicRPC: []string{config.PublicBaseRPC}},
	{chain: "avalanche", symbol: "AVAX", alchemy: config.AlchemyAvalancheURL, publicRPC: []string{config.PublicAvalancheRPC}},
	{chain: "bnb", symbol: "BNB", publicRPC: []string{config.PublicBNBRPC, config.PublicBNBRPC2}, moralis: "bsc"},
	{chain: "fantom", symbol: "FTM", publicRPC: []string{config.PublicFantomRPC}, moralis: "fantom"},
	{chain: "gnosis", symbol: "XDAI", publicRPC: []string{config.PublicGnosisRPC}, moralis: "gnosis"},
	{chain: "cronos", symbol: "CRO", publicRPC: []string{config.PublicCronosRPC}, moralis: "cronos"},
}

var bscTokens = []TokenSpec{
	{Symbol: "USDC", Name: "USD Coin", Contract: config.BSCUSDCContract, Decimals: Decimals(18)},
	{Symbol: "USDT", Name: "Tether USD", Contract: config.BSCUSDTContract, Decimals: Decimals(18)},
}

// DefaultDescriptors returns the built-in source table for cfg's credentials.
//
// Every chain gets a native source that tries Alchemy first (when it serves
// the chain) and falls back to public RPC. Token balances come from Alchemy,
// or from Moralis where Alchemy has no coverage. Without a Moralis key, BNB
// tokens are read directly from their contracts.
func DefaultDescriptors(cfg *config.Config) []SourceDescriptor {
	var descs []SourceDescriptor

	for _, c := range evmChains {
		var endpoints []string
		if c.alchemy != "" {
			endpoints = append(endpoints, c.alchemy)
		}
		endpoints = append(endpoints, c.publicRPC...)

		descs = append(descs, SourceDescriptor{
			Name:      c.chain + "-native",
			Chain:     c.chain,
			Protocol:  ProtocolEVM,
			Endpoints: endpoints,
			APIKey:    cfg.AlchemyAPIKey,
			Symbol:    c.symbol,
		})

		switch {
		case c.alchemy != "":
			descs = append(descs, SourceDescriptor{
				Name:      c.chain + "-alchemy-tokens",
				Chain:     c.chain,
				Protocol:  ProtocolAlchemy,
				Endpoints: []string{c.alchemy},
				APIKey:    cfg.AlchemyAPIKey,
			})
		case c.moralis != "" && cfg.MoralisAPIKey != "":
			descs = append(descs, SourceDescriptor{
				Name:       c.chain + "-moralis-tokens",
				Chain:      c.chain,
				Protocol:   ProtocolMoralisEVM,
				Endpoints:  []string{config.MoralisEVMURL},
				APIKey:     cfg.MoralisAPIKey,
				ChainParam: c.moralis,
			})
		case c.chain == "bnb":
			descs = append(descs, SourceDescriptor{
				Name:      "bnb-erc20-tokens",
				Chain:     c.chain,
				Protocol:  ProtocolERC20,
				Endpoints: c.publicRPC,
				Tokens:    bscTokens,
			})
		}
	}

	descs = append(descs,
		SourceDescriptor{
			Name:      "solana-native",
			Chain:     "solana",
			Protocol:  ProtocolSolana,
			Endpoints: []string{config.AlchemySolanaURL, config.PublicSolanaRPC},
			APIKey:    cfg.AlchemyAPIKey,
			Symbol:    "SOL",
		},
		// Moralis resolves SPL symbols and names; the RPC listing only knows
		// mints. Both are TokenAPI, so the first one listed wins a duplicate.
		SourceDescriptor{
			Name:      "solana-moralis-tokens",
			Chain:     "solana",
			Protocol:  ProtocolMoralisSolana,
			Endpoints: []string{config.MoralisSolanaURL},
			APIKey:    cfg.MoralisAPIKey,
		},
		SourceDescriptor{
			Name:      "solana-spl-tokens",
			Chain:     "solana",
			Protocol:  ProtocolSolanaRPC,
			Endpoints: []string{config.AlchemySolanaURL, config.PublicSolanaRPC},
			APIKey:    cfg.AlchemyAPIKey,
		},
	)

	return descs
}

// Default builds the registry from the built-in table.
func Default(cfg *config.Config) (*Registry, error) {
	return New(DefaultDescriptors(cfg))
}
