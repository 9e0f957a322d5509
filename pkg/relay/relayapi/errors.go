package relayapi

import "github.com/raffleport/relay/pkg/errx"

var apiErrors = errx.NewRegistry("RELAY_API")

var (
	ErrBadBody        = apiErrors.Register("BAD_BODY", errx.TypeValidation, 400, "Malformed request body")
	ErrEnqueueFailed  = apiErrors.Register("ENQUEUE_FAILED", errx.TypeExternal, 500, "Failed to enqueue job")
	ErrChainRead      = apiErrors.Register("CHAIN_READ", errx.TypeExternal, 502, "Chain read failed")
	ErrSnapshotFailed = apiErrors.Register("SNAPSHOT_FAILED", errx.TypeExternal, 500, "Failed to compute health snapshot")
)
