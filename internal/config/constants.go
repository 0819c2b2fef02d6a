package config

import "time"

// Transport defaults
const (
	DefaultCallTimeout   = 7 * time.Second
	DefaultRetryAttempts = 2
	DefaultBackoffBase   = 400 * time.Millisecond
	MaxBackoffDelay      = 10 * time.Second
	MaxRetryAttempts     = 10
	DefaultRateLimitRPS  = 10
)

// Circuit Breaker
const (
	CircuitBreakerThreshold   = 3
	CircuitBreakerCooldown    = 30 * time.Second
	CircuitBreakerHalfOpenMax = 1

	CircuitClosed   = "closed"
	CircuitOpen     = "open"
	CircuitHalfOpen = "half_open"
)

// HTTP connection pool
const (
	HTTPMaxConnsPerHost     = 16
	HTTPMaxIdleConnsPerHost = 8
	HTTPMaxIdleConns        = 64
	HTTPResponseMaxBytes    = 4 << 20
	HealthCheckTimeout      = 5 * time.Second
)

// Unit exponents
const (
	EVMNativeDecimals    = 18
	SolanaNativeDecimals = 9
	DefaultTokenDecimals = 18
)

// Token metadata placeholders used when a lookup fails.
const (
	UnknownTokenSymbol = "UNKNOWN"
	UnknownTokenName   = "Unknown Token"
	MetadataCacheSize  = 2048
)

// Token balance enumeration
const (
	MetadataConcurrency = 4 // parallel alchemy_getTokenMetadata lookups per query
	AlchemyMaxPages     = 5 // pageKey pages read from alchemy_getTokenBalances
)

// APIKeyPlaceholder is substituted with the provider credential in endpoint URLs.
const APIKeyPlaceholder = "{apiKey}"

// Alchemy endpoints
const (
	AlchemyEthereumURL  = "https://eth-mainnet.g.alchemy.com/v2/{apiKey}"
	AlchemyPolygonURL   = "https://polygon-mainnet.g.alchemy.com/v2/{apiKey}"
	AlchemyArbitrumURL  = "https://arb-mainnet.g.alchemy.com/v2/{apiKey}"
	AlchemyOptimismURL  = "https://opt-mainnet.g.alchemy.com/v2/{apiKey}"
	AlchemyBaseURL      = "https://base-mainnet.g.alchemy.com/v2/{apiKey}"
	AlchemyAvalancheURL = "https://avax-mainnet.g.alchemy.com/v2/{apiKey}"
	AlchemySolanaURL    = "https://solana-mainnet.g.alchemy.com/v2/{apiKey}"
)

// Public RPC endpoints
const (
	PublicEthereumRPC  = "https://cloudflare-eth.com"
	PublicPolygonRPC   = "https://polygon-rpc.com"
	PublicArbitrumRPC  = "https://arb1.arbitrum.io/rpc"
	PublicOptimismRPC  = "https://mainnet.optimism.io"
	PublicBaseRPC      = "https://mainnet.base.org"
	PublicAvalancheRPC = "https://api.avax.network/ext/bc/C/rpc"
	PublicBNBRPC       = "https://bsc-dataseed1.binance.org"
	PublicBNBRPC2      = "https://rpc.ankr.com/bsc"
	PublicFantomRPC    = "https://rpc.fantom.network"
	PublicGnosisRPC    = "https://rpc.gnosischain.com"
	PublicCronosRPC    = "https://evm.cronos.org"
	PublicSolanaRPC    = "https://api.mainnet-beta.solana.com"
)

// Moralis endpoints
const (
	MoralisEVMURL    = "https://deep-index.moralis.io/api/v2.2"
	MoralisSolanaURL = "https://solana-gateway.moralis.io"
)

// SPLTokenProgramID is the SPL Token program owning fungible token accounts.
const SPLTokenProgramID = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"

// Server
const (
	ServerPort           = 8080
	ServerReadTimeout    = 30 * time.Second
	ServerWriteTimeout   = 120 * time.Second
	ServerIdleTimeout    = 60 * time.Second
	ServerMaxHeaderBytes = 1 << 20
	APITimeout           = 90 * time.Second
	ServerShutdownWindow = 10 * time.Second
)

// Logging
const (
	LogDir        = "./logs"
	LogFilePrefix = "vaultscan-"
	LogMaxAgeDays = 30
)

// Database
const (
	DBPath        = "./data/vaultscan.sqlite"
	DBBusyTimeout = 5000 // milliseconds
)

// BSC token contracts queried by the built-in erc20 source.
const (
	BSCUSDCContract = "0x8AC76a51cc950d9822D68b83fE1Ad97B32Cd580d"
	BSCUSDTContract = "0x55d398326f99059fF775485246999027B3197955"
)

// Source health status, derived from outcomes and breaker state.
const (
	SourceStatusHealthy  = "healthy"
	SourceStatusDegraded = "degraded"
	SourceStatusDown     = "down"
)
