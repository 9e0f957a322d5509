package jobxredis

import "github.com/raffleport/relay/pkg/errx"

var redisErrors = errx.NewRegistry("JOBX_REDIS")

var (
	ErrMarshal   = redisErrors.Register("MARSHAL", errx.TypeInternal, 500, "Failed to marshal job")
	ErrUnmarshal = redisErrors.Register("UNMARSHAL", errx.TypeInternal, 500, "Failed to unmarshal job")
	ErrEnqueue   = redisErrors.Register("ENQUEUE", errx.TypeExternal, 500, "Redis enqueue failed")
	ErrDequeue   = redisErrors.Register("DEQUEUE", errx.TypeExternal, 500, "Redis dequeue failed")
	ErrGetJob    = redisErrors.Register("GET_JOB", errx.TypeExternal, 500, "Redis job lookup failed")
	ErrNotFound  = redisErrors.Register("NOT_FOUND", errx.TypeNotFound, 404, "Job not found")
	ErrComplete  = redisErrors.Register("COMPLETE", errx.TypeExternal, 500, "Redis complete failed")
	ErrFail      = redisErrors.Register("FAIL", errx.TypeExternal, 500, "Redis fail-mark failed")
	ErrRetry     = redisErrors.Register("RETRY", errx.TypeExternal, 500, "Redis retry scheduling failed")
	ErrHeartbeat = redisErrors.Register("HEARTBEAT", errx.TypeExternal, 500, "Redis lease renewal failed")
	ErrPromote   = redisErrors.Register("PROMOTE", errx.TypeExternal, 500, "Redis scheduled promotion failed")
	ErrRecover   = redisErrors.Register("RECOVER", errx.TypeExternal, 500, "Redis stalled recovery failed")
	ErrCounts    = redisErrors.Register("COUNTS", errx.TypeExternal, 500, "Redis queue counts failed")
)
