package constants

import "time"

// Redis keys
const (
	RedisKeyMetadataPrefix = "metadata:"
)

// Redis Pub/Sub channels
const (
	PubSubChannelActions    = "actions:all"
	PubSubChannelKindPrefix = "actions:kind:"
)

// Limits
const (
	MaxMetadataBatch      = 100 // ids per cache / asset-index request
	OnChainFetchWorkers   = 4
	CompressedAccountPage = 1000
)

// Timeouts for detached work
const (
	WritebackTimeout = 10 * time.Second
	ActionLogTimeout = 5 * time.Second
)

// Well-known program and account addresses
const (
	MetaplexTokenMetadataProgram = "metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s"
	AssociatedTokenProgram       = "ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL"
	CompressedTokenProgram       = "cTokenmWW8bposK2VCWQ1MSGb7oZbmREDvBpVogLFsg"
	LightSystemProgram           = "SySTEM1eSU2p4BGQfQpimFEWWSC1XDFeun3Nqzz3rT7"
	AccountCompressionProgram    = "compr6CUsB5m2jS4Y3831ztGSTnDpnKJTKS95d64XVq"
	NoopProgram                  = "noopb9bkMVfRPU8AsbpTUg8AQkHtKwMYZiFUjNRtMmV"

	// Lookup table holding the compression runtime accounts.
	CompressionLookupTable = "9NYFyEqPkyXUhkerbGHXUXkvb4qpzeEdHuGpgbgpH1NJ"

	// Default public state tree and its nullifier queue.
	DefaultStateTree      = "smt1NamzXdq4AMqS2fS2F1i5KTYPZRhoHgWx38d8WsT"
	DefaultNullifierQueue = "nfq1NvQDJ2GEgnS8zt9prAe8rjjpAW1zFkrvZoBR148"
)

// Token mints
const (
	MintWrappedSOL = "So11111111111111111111111111111111111111112"
	MintUSDC       = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

// ImageOverrides replaces images from off-chain documents that are known to be
// missing or broken.
var ImageOverrides = map[string]string{
	MintUSDC: "https://raw.githubusercontent.com/solana-labs/token-list/main/assets/mainnet/EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v/logo.png",
}

// Compute unit limit applied when a swap consumes compressed state. The
// runtime caps a transaction at MaxComputeUnitLimit.
const (
	DefaultComputeUnitLimit = 1_400_000
	MaxComputeUnitLimit     = 1_400_000
)
