package config

// ChainConfig configures the RPC connection and signer.
type ChainConfig struct {
	RPCURL          string
	ContractAddress string
	PrivateKey      string
	ChainID         int64
	TokenDecimals   int
	GasMargin       float64
}

func loadChainConfig() ChainConfig {
	return ChainConfig{
		RPCURL:          getEnv("CHAIN_RPC_URL", "http://127.0.0.1:8545"),
		ContractAddress: getEnv("CHAIN_CONTRACT_ADDRESS", ""),
		PrivateKey:      getEnv("CHAIN_PRIVATE_KEY", ""),
		ChainID:         getEnvInt64("CHAIN_ID", 0),
		TokenDecimals:   getEnvInt("CHAIN_TOKEN_DECIMALS", 18),
		GasMargin:       getEnvFloat("CHAIN_GAS_MARGIN", 1.2),
	}
}
