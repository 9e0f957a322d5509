package chain

import "github.com/raffleport/relay/pkg/errx"

var chainErrors = errx.NewRegistry("CHAIN")

var (
	ErrBadKey              = chainErrors.Register("BAD_KEY", errx.TypeInternal, 500, "Invalid signer private key")
	ErrBadABI              = chainErrors.Register("BAD_ABI", errx.TypeInternal, 500, "Invalid contract ABI")
	ErrDial                = chainErrors.Register("DIAL", errx.TypeExternal, 502, "Failed to connect to RPC endpoint")
	ErrPack                = chainErrors.Register("PACK", errx.TypeInternal, 500, "Failed to encode contract call")
	ErrRPC                 = chainErrors.Register("RPC", errx.TypeExternal, 502, "RPC request failed")
	ErrEstimateGas         = chainErrors.Register("ESTIMATE_GAS", errx.TypeExternal, 502, "Gas estimation failed")
	ErrSubmit              = chainErrors.Register("SUBMIT", errx.TypeExternal, 502, "Transaction broadcast failed")
	ErrReverted            = chainErrors.Register("REVERTED", errx.TypeBusiness, 422, "Transaction reverted on-chain")
	ErrConfirmationTimeout = chainErrors.Register("CONFIRMATION_TIMEOUT", errx.TypeExternal, 504, "Timed out waiting for confirmation")
	ErrCall                = chainErrors.Register("CALL", errx.TypeExternal, 502, "Contract read failed")
)
