package solana

// Environment is the public RPC endpoint of a Solana cluster. The stake
// server indexes devnet unless configured otherwise.
type Environment string

const (
	EnvironmentDev  Environment = "https://api.devnet.solana.com"
	EnvironmentTest Environment = "https://api.testnet.solana.com"
	EnvironmentProd Environment = "https://api.mainnet-beta.solana.com"
)
