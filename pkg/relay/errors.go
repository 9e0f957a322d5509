package relay

import "github.com/raffleport/relay/pkg/errx"

var relayErrors = errx.NewRegistry("RELAY")

var (
	ErrValidation     = relayErrors.Register("VALIDATION", errx.TypeValidation, 400, "Invalid job payload")
	ErrUnknownJobType = relayErrors.Register("UNKNOWN_JOB_TYPE", errx.TypeValidation, 400, "Unknown job type")
	ErrSubmission     = relayErrors.Register("SUBMISSION", errx.TypeExternal, 502, "Transaction submission failed")
	ErrEnqueue        = relayErrors.Register("ENQUEUE", errx.TypeExternal, 500, "Failed to enqueue job")
	ErrRetryExhausted = relayErrors.Register("RETRY_EXHAUSTED", errx.TypeInternal, 500, "Retry attempts exhausted, manual intervention required")
)
