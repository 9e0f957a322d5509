package jobx

import "github.com/raffleport/relay/pkg/errx"

var jobxErrors = errx.NewRegistry("JOBX")

var (
	ErrNoHandler      = jobxErrors.Register("NO_HANDLER", errx.TypeValidation, 400, "No handler registered for job type")
	ErrAlreadyRunning = jobxErrors.Register("ALREADY_RUNNING", errx.TypeConflict, 409, "Worker is already running")
)
